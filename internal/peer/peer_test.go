package peer

import (
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/classpoints/internal/model"
)

func strPtr(s string) *string { return &s }

// roster: red = {ana, ben, cas, dan}, blue = {eva}, green = {}; fay has no group.
func roster() ([]model.Student, []model.Group) {
	students := []model.Student{
		{ID: "ana", Name: "Ana", GroupID: strPtr("red")},
		{ID: "ben", Name: "Ben", GroupID: strPtr("red")},
		{ID: "cas", Name: "Cas", GroupID: strPtr("red")},
		{ID: "dan", Name: "Dan", GroupID: strPtr("red")},
		{ID: "eva", Name: "Eva", GroupID: strPtr("blue")},
		{ID: "fay", Name: "Fay"},
	}
	groups := []model.Group{
		{ID: "red", Name: "Red"},
		{ID: "blue", Name: "Blue"},
		{ID: "green", Name: "Green"},
	}
	return students, groups
}

func actor(students []model.Student, id string) *model.Student {
	for i := range students {
		if students[i].ID == id {
			return &students[i]
		}
	}
	return nil
}

func event(scope model.RecipientScope, budget int) *model.PeerEvent {
	return &model.PeerEvent{ID: "ev1", Title: "Sprint 1", Budget: budget, Active: true, RecipientScope: scope}
}

func request(scope model.RecipientScope, budget int, actorID string, entries map[string]Entry) Request {
	students, groups := roster()
	return Request{
		Event:    event(scope, budget),
		Actor:    actor(students, actorID),
		Students: students,
		Groups:   groups,
		Entries:  entries,
		Now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestExactBudgetRequired(t *testing.T) {
	under := request(model.ScopeAll, 100, "ana", map[string]Entry{
		"ben": {Amount: 50, Reason: "help"},
		"eva": {Amount: 40, Reason: "help"},
	})
	_, rej := Plan(under)
	if rej == nil || rej.Reason != ReasonUnderAllocated {
		t.Fatalf("rejection = %+v, want under_allocated", rej)
	}
	if rej.Shortfall != 10 {
		t.Errorf("shortfall = %d, want 10", rej.Shortfall)
	}

	over := request(model.ScopeAll, 100, "ana", map[string]Entry{
		"ben": {Amount: 50, Reason: "help"},
		"eva": {Amount: 60, Reason: "help"},
	})
	_, rej = Plan(over)
	if rej == nil || rej.Reason != ReasonOverAllocated {
		t.Fatalf("rejection = %+v, want over_allocated", rej)
	}
	if rej.Excess != 10 {
		t.Errorf("excess = %d, want 10", rej.Excess)
	}

	exact := request(model.ScopeAll, 100, "ana", map[string]Entry{
		"ben": {Amount: 50, Reason: "help"},
		"eva": {Amount: 50, Reason: "help"},
	})
	alloc, rej := Plan(exact)
	if rej != nil {
		t.Fatalf("unexpected rejection: %+v", rej)
	}
	if alloc.Total != 100 {
		t.Errorf("total = %d, want 100", alloc.Total)
	}
	if alloc.StudentDeltas["ben"] != 50 || alloc.StudentDeltas["eva"] != 50 {
		t.Errorf("deltas = %v", alloc.StudentDeltas)
	}
	if len(alloc.Awards) != 2 || len(alloc.PeerAwards) != 2 {
		t.Fatalf("awards/peer awards = %d/%d, want 2/2", len(alloc.Awards), len(alloc.PeerAwards))
	}
	if !strings.HasPrefix(alloc.Awards[0].Reason, "Peer points (Sprint 1) from Ana: ") {
		t.Errorf("award reason = %q", alloc.Awards[0].Reason)
	}
}

func TestOneShotLock(t *testing.T) {
	req := request(model.ScopeAll, 100, "ana", map[string]Entry{
		"ben": {Amount: 100, Reason: "carried the team"},
	})
	alloc, rej := Plan(req)
	if rej != nil {
		t.Fatalf("first submission rejected: %+v", rej)
	}

	req.Existing = alloc.PeerAwards
	_, rej = Plan(req)
	if rej == nil || rej.Reason != ReasonEventLocked {
		t.Fatalf("rejection = %+v, want event_locked", rej)
	}

	// even a zero-total leftover row locks the event
	req.Existing = []model.PeerAward{{ID: "old", EventID: "ev1", FromStudentID: "ana"}}
	req.Entries = map[string]Entry{}
	_, rej = Plan(req)
	if rej == nil || rej.Reason != ReasonEventLocked {
		t.Fatalf("rejection = %+v, want event_locked", rej)
	}
}

func TestGroupCostScaling(t *testing.T) {
	req := request(model.ScopeOtherGroups, 20, "eva", map[string]Entry{
		"red": {Amount: 5, Reason: "great demo"},
	})
	alloc, rej := Plan(req)
	if rej != nil {
		t.Fatalf("unexpected rejection: %+v", rej)
	}
	if alloc.GroupDeltas["red"] != 20 {
		t.Errorf("group delta = %d, want 20", alloc.GroupDeltas["red"])
	}
	if len(alloc.StudentDeltas) != 0 {
		t.Errorf("student deltas = %v, want none", alloc.StudentDeltas)
	}
	if len(alloc.Awards) != 1 || alloc.Awards[0].Amount != 20 || alloc.Awards[0].Target != model.TargetGroup {
		t.Errorf("awards = %+v", alloc.Awards)
	}
	pa := alloc.PeerAwards[0]
	if pa.Amount != 5 || pa.TotalAmount != 20 {
		t.Errorf("peer award amount/total = %d/%d, want 5/20", pa.Amount, pa.TotalAmount)
	}
	if len(pa.Recipients) != 4 {
		t.Errorf("recipients = %v, want 4 members", pa.Recipients)
	}
	if !strings.Contains(alloc.Awards[0].Reason, "(group) from Eva") {
		t.Errorf("award reason = %q", alloc.Awards[0].Reason)
	}
}

func TestMissingReasonRejects(t *testing.T) {
	req := request(model.ScopeAll, 10, "ana", map[string]Entry{
		"ben": {Amount: 5, Reason: "thanks"},
		"cas": {Amount: 5, Reason: "   "},
	})
	_, rej := Plan(req)
	if rej == nil || rej.Reason != ReasonMissingReason {
		t.Fatalf("rejection = %+v, want missing_reason", rej)
	}
	if rej.RecipientID != "cas" {
		t.Errorf("recipient = %q, want cas", rej.RecipientID)
	}
}

func TestNonPositiveEntriesIgnored(t *testing.T) {
	req := request(model.ScopeAll, 10, "ana", map[string]Entry{
		"ben":     {Amount: 10, Reason: "thanks"},
		"cas":     {Amount: 0},
		"nowhere": {Amount: -3},
	})
	alloc, rej := Plan(req)
	if rej != nil {
		t.Fatalf("unexpected rejection: %+v", rej)
	}
	if len(alloc.Awards) != 1 {
		t.Errorf("awards = %d, want 1", len(alloc.Awards))
	}
}

func TestRejectionReasons(t *testing.T) {
	inactive := request(model.ScopeAll, 10, "ana", nil)
	inactive.Event.Active = false
	if _, rej := Plan(inactive); rej == nil || rej.Reason != ReasonNoActiveEvent {
		t.Errorf("inactive: %+v", rej)
	}

	noEvent := request(model.ScopeAll, 10, "ana", nil)
	noEvent.Event = nil
	if _, rej := Plan(noEvent); rej == nil || rej.Reason != ReasonNoActiveEvent {
		t.Errorf("nil event: %+v", rej)
	}

	noBudget := request(model.ScopeAll, 0, "ana", nil)
	if _, rej := Plan(noBudget); rej == nil || rej.Reason != ReasonNoBudget {
		t.Errorf("no budget: %+v", rej)
	}

	ownNoGroup := request(model.ScopeOwnGroup, 10, "fay", nil)
	if _, rej := Plan(ownNoGroup); rej == nil || rej.Reason != ReasonScopeMisconfigured {
		t.Errorf("own group without group: %+v", rej)
	}

	badScope := request("friends", 10, "ana", nil)
	if _, rej := Plan(badScope); rej == nil || rej.Reason != ReasonScopeMisconfigured {
		t.Errorf("unknown scope: %+v", rej)
	}

	outsider := request(model.ScopeOwnGroup, 10, "ana", map[string]Entry{
		"eva": {Amount: 10, Reason: "nice"},
	})
	if _, rej := Plan(outsider); rej == nil || rej.Reason != ReasonIneligibleRecipient {
		t.Errorf("outside own group: %+v", rej)
	}

	self := request(model.ScopeAll, 10, "ana", map[string]Entry{
		"ana": {Amount: 10, Reason: "me"},
	})
	if _, rej := Plan(self); rej == nil || rej.Reason != ReasonIneligibleRecipient {
		t.Errorf("self award: %+v", rej)
	}

	nothing := request(model.ScopeAll, 10, "ana", map[string]Entry{})
	if _, rej := Plan(nothing); rej == nil || rej.Reason != ReasonUnderAllocated || rej.Shortfall != 10 {
		t.Errorf("empty allocation: %+v", rej)
	}
}

func TestEligibleScopes(t *testing.T) {
	students, groups := roster()

	all, _ := Eligible(event(model.ScopeAll, 1), actor(students, "ana"), students, groups)
	if len(all) != 5 {
		t.Errorf("all scope = %d recipients, want 5", len(all))
	}

	own, _ := Eligible(event(model.ScopeOwnGroup, 1), actor(students, "ana"), students, groups)
	if len(own) != 3 {
		t.Errorf("own group = %d recipients, want 3", len(own))
	}
	for _, r := range own {
		if r.GroupID != "red" {
			t.Errorf("own group recipient %s in %s", r.ID, r.GroupID)
		}
	}

	other, _ := Eligible(event(model.ScopeOtherGroups, 1), actor(students, "ana"), students, groups)
	if len(other) != 1 || other[0].ID != "blue" || other[0].UnitCost != 1 {
		t.Errorf("other groups for ana = %+v, want only blue", other)
	}

	// without a group every non-empty group is eligible
	noGroup, _ := Eligible(event(model.ScopeOtherGroups, 1), actor(students, "fay"), students, groups)
	if len(noGroup) != 2 {
		t.Errorf("other groups for fay = %+v, want blue and red", noGroup)
	}
	if noGroup[0].Name != "Blue" || noGroup[1].Name != "Red" {
		t.Errorf("recipients not sorted by name: %+v", noGroup)
	}
}

func TestRemaining(t *testing.T) {
	ev := event(model.ScopeAll, 30)
	existing := []model.PeerAward{
		{TotalAmount: 12},
		{Amount: 3, Recipients: model.StringList{"a", "b"}},
		{Amount: 4},
	}
	if got := Spent(existing); got != 22 {
		t.Errorf("spent = %d, want 22", got)
	}
	if got := Remaining(ev, existing); got != 8 {
		t.Errorf("remaining = %d, want 8", got)
	}
	ev.Budget = 10
	if got := Remaining(ev, existing); got != 0 {
		t.Errorf("remaining = %d, want 0", got)
	}
}

func TestHugeAmountsCannotWrapBudget(t *testing.T) {
	const huge = 1 << 62

	students := request(model.ScopeAll, 100, "ana", map[string]Entry{
		"ben": {Amount: huge, Reason: "x"},
		"cas": {Amount: huge, Reason: "x"},
		"dan": {Amount: huge, Reason: "x"},
		"eva": {Amount: huge + 100, Reason: "x"},
	})
	alloc, rej := Plan(students)
	if rej == nil || rej.Reason != ReasonOverAllocated {
		t.Fatalf("alloc = %+v, rejection = %+v, want over_allocated", alloc, rej)
	}
	if rej.Excess <= 0 {
		t.Errorf("excess = %d, want positive", rej.Excess)
	}

	group := request(model.ScopeOtherGroups, 100, "eva", map[string]Entry{
		"red": {Amount: huge + 25, Reason: "x"},
	})
	alloc, rej = Plan(group)
	if rej == nil || rej.Reason != ReasonOverAllocated {
		t.Fatalf("alloc = %+v, rejection = %+v, want over_allocated", alloc, rej)
	}

	// 26 points to a four-member group costs 104
	group.Entries = map[string]Entry{"red": {Amount: 26, Reason: "x"}}
	_, rej = Plan(group)
	if rej == nil || rej.Reason != ReasonOverAllocated || rej.Excess != 4 {
		t.Errorf("rejection = %+v, want over_allocated with excess 4", rej)
	}
}

func TestGroupPeerAwardTotalsMatchMembers(t *testing.T) {
	req := request(model.ScopeOtherGroups, 13, "fay", map[string]Entry{
		"red":  {Amount: 3, Reason: "demo"},
		"blue": {Amount: 1, Reason: "slides"},
	})
	alloc, rej := Plan(req)
	if rej != nil {
		t.Fatalf("unexpected rejection: %+v", rej)
	}

	sum := 0
	for i, pa := range alloc.PeerAwards {
		if pa.Target != model.TargetGroup {
			t.Fatalf("peer award %s target = %q", pa.TargetID, pa.Target)
		}
		if pa.TotalAmount != pa.Amount*len(pa.Recipients) {
			t.Errorf("%s: total %d != amount %d x %d members", pa.TargetID, pa.TotalAmount, pa.Amount, len(pa.Recipients))
		}
		if alloc.Awards[i].Amount != pa.TotalAmount {
			t.Errorf("%s: award amount %d != peer award total %d", pa.TargetID, alloc.Awards[i].Amount, pa.TotalAmount)
		}
		sum += pa.TotalAmount
	}
	if sum != alloc.Total || alloc.Total != 13 {
		t.Errorf("sum of totals = %d, allocation total = %d, want 13", sum, alloc.Total)
	}
}
