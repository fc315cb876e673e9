package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/classpoints/internal/auth"
	"github.com/dukerupert/classpoints/internal/bingo"
	"github.com/dukerupert/classpoints/internal/model"
	"github.com/dukerupert/classpoints/internal/store"
	"github.com/dukerupert/classpoints/internal/websocket"
)

type BingoHandler struct {
	students *store.StudentStore
	settings *store.SettingsStore
	notifier
	logger *slog.Logger
}

func NewBingoHandler(ss *store.StudentStore, sets *store.SettingsStore, b websocket.Broadcaster, logger *slog.Logger) *BingoHandler {
	return &BingoHandler{students: ss, settings: sets, notifier: notifier{b}, logger: logger}
}

type bingoView struct {
	Questions    []string           `json:"questions"`
	Card         model.BingoCard    `json:"card"`
	Matches      model.BingoMatches `json:"matches"`
	Patterns     bingo.Patterns     `json:"patterns"`
	HintsEnabled bool               `json:"hints_enabled"`
	Hints        map[string]bool    `json:"hints,omitempty"`
}

func (h *BingoHandler) Mine(w http.ResponseWriter, r *http.Request) {
	me, ok := h.me(w, r)
	if !ok {
		return
	}
	app, err := h.settings.App()
	if err != nil {
		storeError(w, h.logger, "settings", err)
		return
	}

	view := bingoView{
		Questions:    bingo.Questions(),
		Card:         me.Bingo,
		Matches:      me.BingoMatches,
		Patterns:     bingo.Evaluate(me.BingoMatches),
		HintsEnabled: app.BingoHintsEnabled,
	}
	if view.Card == nil {
		view.Card = model.BingoCard{}
	}
	if view.Matches == nil {
		view.Matches = model.BingoMatches{}
	}
	if app.BingoHintsEnabled {
		sem := ""
		if me.SemesterID != nil {
			sem = *me.SemesterID
		}
		roster, err := h.students.List(sem)
		if err != nil {
			storeError(w, h.logger, "students", err)
			return
		}
		view.Hints = bingo.Hints(me, roster)
	}
	writeJSON(w, http.StatusOK, view)
}

type bingoAnswersRequest struct {
	Answers model.BingoCard `json:"answers" validate:"required"`
}

func (h *BingoHandler) SaveMine(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, auth.UserID(r.Context()))
}

// SaveFor lets a teacher correct a student's answers.
func (h *BingoHandler) SaveFor(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, r.PathValue("id"))
}

func (h *BingoHandler) save(w http.ResponseWriter, r *http.Request, studentID string) {
	var req bingoAnswersRequest
	if !decode(w, r, &req) {
		return
	}
	card := bingo.CleanCard(req.Answers)
	if err := h.students.SetBingo(studentID, card); err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	h.broadcast("bingo", "updated", studentID, nil)
	writeJSON(w, http.StatusOK, card)
}

type bingoMatchRequest struct {
	Question       string `json:"question" validate:"required"`
	Answer         string `json:"answer" validate:"required"`
	OtherStudentID string `json:"other_student_id" validate:"required"`
}

// Match records that another student shares an answer with the caller.
func (h *BingoHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req bingoMatchRequest
	if !decode(w, r, &req) {
		return
	}
	me, ok := h.me(w, r)
	if !ok {
		return
	}
	other, err := h.students.GetByID(strings.TrimSpace(req.OtherStudentID))
	if err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	if other == nil {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}

	match, err := bingo.Match(me, other, req.Question, req.Answer)
	switch {
	case errors.Is(err, bingo.ErrNoMatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, err := h.students.AddBingoMatch(me.ID, req.Question, match)
	if err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	patterns := bingo.Evaluate(matches)

	h.broadcast("bingo", "matched", me.ID, map[string]any{"question": req.Question})
	writeJSON(w, http.StatusOK, map[string]any{
		"match":    match,
		"matches":  matches,
		"patterns": patterns,
	})
}

func (h *BingoHandler) me(w http.ResponseWriter, r *http.Request) (*model.Student, bool) {
	me, err := h.students.GetByID(auth.UserID(r.Context()))
	if err != nil {
		storeError(w, h.logger, "student", err)
		return nil, false
	}
	if me == nil {
		writeError(w, http.StatusNotFound, "student not found")
		return nil, false
	}
	return me, true
}
