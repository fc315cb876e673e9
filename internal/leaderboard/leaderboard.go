// Package leaderboard ranks students and groups by points.
package leaderboard

import (
	"sort"

	"github.com/dukerupert/classpoints/internal/model"
)

type StudentEntry struct {
	Rank    int     `json:"rank"`
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	GroupID *string `json:"group_id"`
	Points  int     `json:"points"`
	Badges  int     `json:"badges"`
}

// GroupEntry scores a group as the average of its members' points plus
// the group's own bonus.
type GroupEntry struct {
	Rank      int     `json:"rank"`
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Size      int     `json:"size"`
	AvgPoints float64 `json:"avg_points"`
	Bonus     int     `json:"bonus"`
	Total     float64 `json:"total"`
}

// Students ranks by points, highest first. Ties keep roster order.
func Students(students []model.Student) []StudentEntry {
	out := make([]StudentEntry, 0, len(students))
	for _, s := range students {
		out = append(out, StudentEntry{
			ID:      s.ID,
			Name:    s.Name,
			GroupID: s.GroupID,
			Points:  s.Points,
			Badges:  len(s.Badges),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func Groups(groups []model.Group, students []model.Student) []GroupEntry {
	type agg struct{ size, sum int }
	byGroup := make(map[string]*agg)
	for _, s := range students {
		if !s.HasGroup() {
			continue
		}
		a := byGroup[*s.GroupID]
		if a == nil {
			a = &agg{}
			byGroup[*s.GroupID] = a
		}
		a.size++
		a.sum += s.Points
	}

	out := make([]GroupEntry, 0, len(groups))
	for _, g := range groups {
		e := GroupEntry{ID: g.ID, Name: g.Name, Bonus: g.Points}
		if a := byGroup[g.ID]; a != nil {
			e.Size = a.size
			e.AvgPoints = float64(a.sum) / float64(a.size)
		}
		e.Total = e.AvgPoints + float64(e.Bonus)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
