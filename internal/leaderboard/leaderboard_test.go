package leaderboard

import (
	"testing"

	"github.com/dukerupert/classpoints/internal/model"
)

func strPtr(s string) *string { return &s }

func TestStudentsRanking(t *testing.T) {
	got := Students([]model.Student{
		{ID: "a", Name: "Ann", Points: 10},
		{ID: "b", Name: "Bo", Points: 30, Badges: model.StringList{"x", "y"}},
		{ID: "c", Name: "Cy", Points: 10},
	})
	if got[0].ID != "b" || got[0].Rank != 1 || got[0].Badges != 2 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].ID != "a" || got[2].ID != "c" {
		t.Errorf("ties should keep roster order: %+v", got)
	}
	if got[2].Rank != 3 {
		t.Errorf("last rank = %d, want 3", got[2].Rank)
	}
}

func TestGroupsAveragePlusBonus(t *testing.T) {
	groups := []model.Group{
		{ID: "red", Name: "Red", Points: 5},
		{ID: "blue", Name: "Blue", Points: 0},
		{ID: "empty", Name: "Empty", Points: 12},
	}
	students := []model.Student{
		{ID: "1", GroupID: strPtr("red"), Points: 10},
		{ID: "2", GroupID: strPtr("red"), Points: 20},
		{ID: "3", GroupID: strPtr("blue"), Points: 40},
		{ID: "4", Points: 100},
	}

	got := Groups(groups, students)
	if len(got) != 3 {
		t.Fatalf("entries = %d, want 3", len(got))
	}
	if got[0].ID != "blue" || got[0].Total != 40 {
		t.Errorf("first = %+v, want blue with 40", got[0])
	}
	if got[1].ID != "red" || got[1].Size != 2 || got[1].AvgPoints != 15 || got[1].Total != 20 {
		t.Errorf("second = %+v, want red avg 15 total 20", got[1])
	}
	if got[2].ID != "empty" || got[2].Total != 12 || got[2].Size != 0 {
		t.Errorf("third = %+v, want empty with bonus only", got[2])
	}
}
