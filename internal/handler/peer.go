package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/classpoints/internal/auth"
	"github.com/dukerupert/classpoints/internal/metrics"
	"github.com/dukerupert/classpoints/internal/model"
	"github.com/dukerupert/classpoints/internal/peer"
	"github.com/dukerupert/classpoints/internal/store"
	"github.com/dukerupert/classpoints/internal/websocket"
)

type PeerHandler struct {
	peers    *store.PeerStore
	students *store.StudentStore
	groups   *store.GroupStore
	now      func() time.Time
	notifier
	logger *slog.Logger
}

func NewPeerHandler(ps *store.PeerStore, ss *store.StudentStore, gs *store.GroupStore, b websocket.Broadcaster, logger *slog.Logger) *PeerHandler {
	return &PeerHandler{
		peers:    ps,
		students: ss,
		groups:   gs,
		now:      time.Now,
		notifier: notifier{b},
		logger:   logger,
	}
}

// --- teacher ---

type peerEventRequest struct {
	Title          string               `json:"title" validate:"required,max=200"`
	Description    string               `json:"description" validate:"max=2000"`
	Budget         int                  `json:"budget" validate:"gte=0"`
	Active         bool                 `json:"active"`
	RecipientScope model.RecipientScope `json:"recipient_scope" validate:"required,oneof=all own_group other_groups"`
	Version        int                  `json:"version"`
}

func (req peerEventRequest) event() model.PeerEvent {
	return model.PeerEvent{
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		Budget:         req.Budget,
		Active:         req.Active,
		RecipientScope: req.RecipientScope,
	}
}

func (h *PeerHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.peers.ListEvents(false)
	if err != nil {
		storeError(w, h.logger, "peer events", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(events))
}

func (h *PeerHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req peerEventRequest
	if !decode(w, r, &req) {
		return
	}
	event, err := h.peers.CreateEvent(req.event())
	if err != nil {
		storeError(w, h.logger, "peer event", err)
		return
	}
	h.broadcast("peer_event", "created", event.ID, nil)
	writeJSON(w, http.StatusCreated, event)
}

func (h *PeerHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req peerEventRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Version < 1 {
		writeError(w, http.StatusBadRequest, "version is required")
		return
	}
	event, err := h.peers.UpdateEvent(id, req.Version, req.event())
	if err != nil {
		storeError(w, h.logger, "peer event", err)
		return
	}
	h.broadcast("peer_event", "updated", id, nil)
	writeJSON(w, http.StatusOK, event)
}

func (h *PeerHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.peers.DeleteEvent(id); err != nil {
		storeError(w, h.logger, "peer event", err)
		return
	}
	h.broadcast("peer_event", "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *PeerHandler) ListAwards(w http.ResponseWriter, r *http.Request) {
	awards, err := h.peers.ListAwards()
	if err != nil {
		storeError(w, h.logger, "peer awards", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(awards))
}

// --- student ---

// MyEvents lists active events the caller has not submitted yet.
func (h *PeerHandler) MyEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.peers.ListEvents(true)
	if err != nil {
		storeError(w, h.logger, "peer events", err)
		return
	}
	done, err := h.peers.SubmittedEvents(auth.UserID(r.Context()))
	if err != nil {
		storeError(w, h.logger, "peer events", err)
		return
	}
	open := make([]model.PeerEvent, 0, len(events))
	for _, e := range events {
		if !done[e.ID] {
			open = append(open, e)
		}
	}
	writeJSON(w, http.StatusOK, open)
}

type peerEventView struct {
	Event      *model.PeerEvent `json:"event"`
	Budget     int              `json:"budget"`
	Spent      int              `json:"spent"`
	Remaining  int              `json:"remaining"`
	Locked     bool             `json:"locked"`
	Recipients []peer.Recipient `json:"recipients"`
	Problem    *peer.Rejection  `json:"problem,omitempty"`
}

// peerContext is everything Plan and Eligible need for one request.
type peerContext struct {
	event     *model.PeerEvent
	actor     *model.Student
	students  []model.Student
	groups    []model.Group
	existing  []model.PeerAward
	submitted bool
}

func (h *PeerHandler) load(w http.ResponseWriter, r *http.Request) (*peerContext, bool) {
	event, err := h.peers.GetEvent(r.PathValue("id"))
	if err != nil {
		storeError(w, h.logger, "peer event", err)
		return nil, false
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "peer event not found")
		return nil, false
	}

	actor, err := h.students.GetByID(auth.UserID(r.Context()))
	if err != nil {
		storeError(w, h.logger, "student", err)
		return nil, false
	}
	if actor == nil {
		writeError(w, http.StatusNotFound, "student not found")
		return nil, false
	}

	// The roster is the actor's own semester.
	sem := ""
	if actor.SemesterID != nil {
		sem = *actor.SemesterID
	}
	students, err := h.students.List(sem)
	if err != nil {
		storeError(w, h.logger, "students", err)
		return nil, false
	}
	groups, err := h.groups.List(sem)
	if err != nil {
		storeError(w, h.logger, "groups", err)
		return nil, false
	}
	existing, err := h.peers.AwardsFrom(event.ID, actor.ID)
	if err != nil {
		storeError(w, h.logger, "peer awards", err)
		return nil, false
	}
	submitted, err := h.peers.Submitted(event.ID, actor.ID)
	if err != nil {
		storeError(w, h.logger, "peer event", err)
		return nil, false
	}

	return &peerContext{
		event:     event,
		actor:     actor,
		students:  students,
		groups:    groups,
		existing:  existing,
		submitted: submitted,
	}, true
}

func (h *PeerHandler) MyEvent(w http.ResponseWriter, r *http.Request) {
	pc, ok := h.load(w, r)
	if !ok {
		return
	}
	if !pc.event.Active {
		writeError(w, http.StatusNotFound, "peer event not found")
		return
	}
	recipients, rej := peer.Eligible(pc.event, pc.actor, pc.students, pc.groups)
	writeJSON(w, http.StatusOK, peerEventView{
		Event:      pc.event,
		Budget:     pc.event.Budget,
		Spent:      peer.Spent(pc.existing),
		Remaining:  peer.Remaining(pc.event, pc.existing),
		Locked:     pc.submitted || len(pc.existing) > 0,
		Recipients: emptyIfNil(recipients),
		Problem:    rej,
	})
}

type allocateRequest struct {
	Allocations map[string]peer.Entry `json:"allocations"`
}

// Allocate validates and applies the caller's whole allocation for an
// event. Either every row is written or none is.
func (h *PeerHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if !decode(w, r, &req) {
		return
	}
	pc, ok := h.load(w, r)
	if !ok {
		return
	}

	if pc.event.Active && pc.submitted {
		h.rejectAllocation(w, &peer.Rejection{
			Reason:  peer.ReasonEventLocked,
			Message: "You already submitted points for this event.",
		})
		return
	}

	alloc, rej := peer.Plan(peer.Request{
		Event:    pc.event,
		Actor:    pc.actor,
		Students: pc.students,
		Groups:   pc.groups,
		Existing: pc.existing,
		Entries:  req.Allocations,
		Now:      h.now(),
		NewID:    uuid.NewString,
	})
	if rej != nil {
		h.rejectAllocation(w, rej)
		return
	}

	if err := h.peers.Apply(alloc); err != nil {
		if errors.Is(err, store.ErrEventLocked) {
			h.rejectAllocation(w, &peer.Rejection{
				Reason:  peer.ReasonEventLocked,
				Message: "You already submitted points for this event.",
			})
			return
		}
		metrics.PeerAllocationsTotal.WithLabelValues("error").Inc()
		storeError(w, h.logger, "peer allocation", err)
		return
	}

	metrics.PeerAllocationsTotal.WithLabelValues("accepted").Inc()
	metrics.PointsAwardedTotal.WithLabelValues(metrics.SourcePeer).Add(float64(len(alloc.Awards)))
	h.logger.Info("peer allocation applied",
		"event_id", alloc.EventID,
		"student_id", alloc.StudentID,
		"total", alloc.Total,
		"recipients", len(alloc.PeerAwards),
	)
	h.broadcast("peer_award", "created", alloc.EventID, map[string]any{
		"from_student_id": alloc.StudentID,
		"total":           alloc.Total,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"total":       alloc.Total,
		"peer_awards": alloc.PeerAwards,
	})
}

func (h *PeerHandler) rejectAllocation(w http.ResponseWriter, rej *peer.Rejection) {
	metrics.PeerAllocationsTotal.WithLabelValues(string(rej.Reason)).Inc()
	status := http.StatusUnprocessableEntity
	if rej.Reason == peer.ReasonEventLocked {
		status = http.StatusConflict
	}
	writeJSON(w, status, rej)
}
