// Package peer validates how a student spends a peer event's budget and
// turns an accepted allocation into ledger rows.
package peer

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/classpoints/internal/model"
)

type Reason string

const (
	ReasonNoActiveEvent       Reason = "no_active_event"
	ReasonEventLocked         Reason = "event_locked"
	ReasonNoBudget            Reason = "no_budget"
	ReasonScopeMisconfigured  Reason = "scope_misconfigured"
	ReasonUnderAllocated      Reason = "under_allocated"
	ReasonOverAllocated       Reason = "over_allocated"
	ReasonMissingReason       Reason = "missing_reason"
	ReasonIneligibleRecipient Reason = "ineligible_recipient"
)

// Rejection explains why an allocation was refused. Nothing is written
// when a Rejection is returned.
type Rejection struct {
	Reason      Reason `json:"reason"`
	Message     string `json:"error"`
	Shortfall   int    `json:"shortfall,omitempty"`
	Excess      int    `json:"excess,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
}

func (r *Rejection) Error() string {
	return r.Message
}

func reject(reason Reason, msg string) *Rejection {
	return &Rejection{Reason: reason, Message: msg}
}

// Entry is the amount and reason proposed for one recipient.
type Entry struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// Recipient is something a student may give points to. UnitCost is what
// one point costs against the budget: 1 for a student, the member count
// for a group.
type Recipient struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Target   model.Target `json:"target"`
	GroupID  string       `json:"group_id,omitempty"`
	Members  []string     `json:"members,omitempty"`
	UnitCost int          `json:"unit_cost"`
}

// Spent sums what the student already allocated for the event.
func Spent(existing []model.PeerAward) int {
	total := 0
	for _, pa := range existing {
		if pa.TotalAmount != 0 {
			total += pa.TotalAmount
			continue
		}
		n := len(pa.Recipients)
		if n == 0 {
			n = 1
		}
		total += pa.Amount * n
	}
	return total
}

// Remaining is the unspent budget, never negative.
func Remaining(event *model.PeerEvent, existing []model.PeerAward) int {
	if event == nil {
		return 0
	}
	r := event.Budget - Spent(existing)
	if r < 0 {
		return 0
	}
	return r
}

// Eligible lists who the actor may award under the event's scope, sorted
// by name. Under other_groups the recipients are groups with at least one
// member, excluding the actor's own group.
func Eligible(event *model.PeerEvent, actor *model.Student, students []model.Student, groups []model.Group) ([]Recipient, *Rejection) {
	if event == nil || actor == nil {
		return nil, reject(ReasonNoActiveEvent, "There is no open peer event.")
	}

	var out []Recipient
	switch event.RecipientScope {
	case model.ScopeAll, model.ScopeOwnGroup:
		if event.RecipientScope == model.ScopeOwnGroup && !actor.HasGroup() {
			return nil, reject(ReasonScopeMisconfigured, "This event is for your own group, but you are not in a group.")
		}
		for _, s := range students {
			if s.ID == actor.ID {
				continue
			}
			if event.RecipientScope == model.ScopeOwnGroup && !s.InGroup(*actor.GroupID) {
				continue
			}
			r := Recipient{ID: s.ID, Name: s.Name, Target: model.TargetStudent, UnitCost: 1}
			if s.GroupID != nil {
				r.GroupID = *s.GroupID
			}
			out = append(out, r)
		}
	case model.ScopeOtherGroups:
		members := make(map[string][]string)
		for _, s := range students {
			if s.HasGroup() {
				members[*s.GroupID] = append(members[*s.GroupID], s.ID)
			}
		}
		for _, g := range groups {
			if actor.InGroup(g.ID) || len(members[g.ID]) == 0 {
				continue
			}
			out = append(out, Recipient{
				ID:       g.ID,
				Name:     g.Name,
				Target:   model.TargetGroup,
				Members:  members[g.ID],
				UnitCost: len(members[g.ID]),
			})
		}
	default:
		return nil, reject(ReasonScopeMisconfigured, "This event has no recipient scope.")
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

type Request struct {
	Event    *model.PeerEvent
	Actor    *model.Student
	Students []model.Student
	Groups   []model.Group
	// Existing holds the actor's PeerAward rows for Event.
	Existing []model.PeerAward
	Entries  map[string]Entry
	Now      time.Time
	NewID    func() string
}

// Allocation is an accepted request ready to be written in one batch.
type Allocation struct {
	EventID       string
	StudentID     string
	Total         int
	Awards        []model.Award
	PeerAwards    []model.PeerAward
	StudentDeltas map[string]int
	GroupDeltas   map[string]int
}

// Plan validates req and, when acceptable, builds the ledger rows and
// point deltas. Validation runs to completion before anything is built.
func Plan(req Request) (*Allocation, *Rejection) {
	event := req.Event
	if event == nil || !event.Active {
		return nil, reject(ReasonNoActiveEvent, "There is no open peer event.")
	}
	if req.Actor == nil {
		return nil, reject(ReasonNoActiveEvent, "There is no open peer event.")
	}
	if len(req.Existing) > 0 {
		return nil, reject(ReasonEventLocked, "You already submitted points for this event.")
	}

	eligible, rej := Eligible(event, req.Actor, req.Students, req.Groups)
	if rej != nil {
		return nil, rej
	}

	remaining := Remaining(event, req.Existing)
	if remaining <= 0 {
		return nil, reject(ReasonNoBudget, "This event has no budget.")
	}

	byID := make(map[string]Recipient, len(eligible))
	for _, r := range eligible {
		byID[r.ID] = r
	}

	ids := make([]string, 0, len(req.Entries))
	for id, e := range req.Entries {
		if e.Amount > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	cost := 0
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			rej := reject(ReasonIneligibleRecipient, "You cannot give points to this recipient in this event.")
			rej.RecipientID = id
			return nil, rej
		}
		if strings.TrimSpace(req.Entries[id].Reason) == "" {
			rej := reject(ReasonMissingReason, "Give a reason for every allocation.")
			rej.RecipientID = id
			return nil, rej
		}
		cost = addCost(cost, req.Entries[id].Amount, r.UnitCost)
	}

	switch {
	case cost < remaining:
		rej := reject(ReasonUnderAllocated, fmt.Sprintf("You still have %d points to hand out.", remaining-cost))
		rej.Shortfall = remaining - cost
		return nil, rej
	case cost == math.MaxInt:
		rej := reject(ReasonOverAllocated, "You handed out more points than the event allows.")
		rej.Excess = cost - remaining
		return nil, rej
	case cost > remaining:
		rej := reject(ReasonOverAllocated, fmt.Sprintf("You handed out %d points too many.", cost-remaining))
		rej.Excess = cost - remaining
		return nil, rej
	}

	return build(req, byID, ids, cost), nil
}

// addCost returns total + amount*unit, saturating at math.MaxInt.
func addCost(total, amount, unit int) int {
	if unit < 1 {
		unit = 1
	}
	if amount > (math.MaxInt-total)/unit {
		return math.MaxInt
	}
	return total + amount*unit
}

func build(req Request, byID map[string]Recipient, ids []string, total int) *Allocation {
	newID := req.NewID
	if newID == nil {
		var n int
		newID = func() string {
			n++
			return fmt.Sprintf("%s-%s-%d", req.Event.ID, req.Actor.ID, n)
		}
	}
	ts := req.Now.UTC()

	label := " (peer event)"
	if req.Event.Title != "" {
		label = " (" + req.Event.Title + ")"
	}

	alloc := &Allocation{
		EventID:       req.Event.ID,
		StudentID:     req.Actor.ID,
		Total:         total,
		StudentDeltas: make(map[string]int),
		GroupDeltas:   make(map[string]int),
	}

	for _, id := range ids {
		r := byID[id]
		entry := req.Entries[id]
		reason := strings.TrimSpace(entry.Reason)
		totalAmount := entry.Amount * r.UnitCost

		var awardReason string
		var recipients model.StringList
		if r.Target == model.TargetGroup {
			awardReason = fmt.Sprintf("Peer points%s (group) from %s: %s", label, req.Actor.Name, reason)
			recipients = append(recipients, r.Members...)
			alloc.GroupDeltas[id] += totalAmount
		} else {
			awardReason = fmt.Sprintf("Peer points%s from %s: %s", label, req.Actor.Name, reason)
			recipients = model.StringList{id}
			alloc.StudentDeltas[id] += totalAmount
		}

		alloc.Awards = append(alloc.Awards, model.Award{
			ID:       newID(),
			TS:       ts,
			Target:   r.Target,
			TargetID: id,
			Amount:   totalAmount,
			Reason:   awardReason,
		})
		alloc.PeerAwards = append(alloc.PeerAwards, model.PeerAward{
			ID:            newID(),
			TS:            ts,
			FromStudentID: req.Actor.ID,
			EventID:       req.Event.ID,
			EventTitle:    req.Event.Title,
			Target:        r.Target,
			TargetID:      id,
			Amount:        entry.Amount,
			TotalAmount:   totalAmount,
			Reason:        reason,
			Recipients:    recipients,
		})
	}

	return alloc
}
