// Package bingo scores the 5x5 icebreaker card. Questions are the opaque
// keys Q1..Q25, laid out row by row.
package bingo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/classpoints/internal/model"
)

const Size = 5

var (
	ErrUnknownQuestion = errors.New("unknown bingo question")
	ErrSelfMatch       = errors.New("cannot match with yourself")
	ErrOtherSemester   = errors.New("student is in another semester")
	ErrNoMatch         = errors.New("answer not found for that student")
	ErrEmptyAnswer     = errors.New("answer is empty")
)

// Key returns the question key at row, col.
func Key(row, col int) string {
	return fmt.Sprintf("Q%d", row*Size+col+1)
}

// Questions returns every question key in card order.
func Questions() []string {
	keys := make([]string, 0, Size*Size)
	for i := 1; i <= Size*Size; i++ {
		keys = append(keys, fmt.Sprintf("Q%d", i))
	}
	return keys
}

// ValidQuestion reports whether q is one of Q1..Q25.
func ValidQuestion(q string) bool {
	for _, k := range Questions() {
		if k == q {
			return true
		}
	}
	return false
}

// Patterns lists the completed lines on a card.
type Patterns struct {
	Rows    [Size]bool `json:"rows"`
	Cols    [Size]bool `json:"cols"`
	Diag1   bool       `json:"diag1"`
	Diag2   bool       `json:"diag2"`
	Full    bool       `json:"full"`
	Matched int        `json:"matched"`
}

// Any reports whether at least one line is complete.
func (p Patterns) Any() bool {
	for i := 0; i < Size; i++ {
		if p.Rows[i] || p.Cols[i] {
			return true
		}
	}
	return p.Diag1 || p.Diag2 || p.Full
}

// Evaluate computes the completed patterns for a set of matches.
func Evaluate(matches model.BingoMatches) Patterns {
	done := func(row, col int) bool {
		m, ok := matches[Key(row, col)]
		return ok && m.Answer != ""
	}

	var p Patterns
	for _, q := range Questions() {
		if m, ok := matches[q]; ok && m.Answer != "" {
			p.Matched++
		}
	}
	for row := 0; row < Size; row++ {
		p.Rows[row] = true
		for col := 0; col < Size; col++ {
			p.Rows[row] = p.Rows[row] && done(row, col)
		}
	}
	for col := 0; col < Size; col++ {
		p.Cols[col] = true
		for row := 0; row < Size; row++ {
			p.Cols[col] = p.Cols[col] && done(row, col)
		}
	}
	p.Diag1, p.Diag2 = true, true
	for i := 0; i < Size; i++ {
		p.Diag1 = p.Diag1 && done(i, i)
		p.Diag2 = p.Diag2 && done(i, Size-1-i)
	}
	p.Full = p.Matched == Size*Size
	return p
}

// Match checks that other gave answer to question and returns the cell
// to record on me's card.
func Match(me, other *model.Student, question, answer string) (model.BingoMatch, error) {
	if !ValidQuestion(question) {
		return model.BingoMatch{}, ErrUnknownQuestion
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return model.BingoMatch{}, ErrEmptyAnswer
	}
	if me.ID == other.ID {
		return model.BingoMatch{}, ErrSelfMatch
	}
	if semesterOf(me) != semesterOf(other) {
		return model.BingoMatch{}, ErrOtherSemester
	}
	if !other.Bingo.HasAnswer(question, answer) {
		return model.BingoMatch{}, ErrNoMatch
	}
	return model.BingoMatch{OtherID: other.ID, OtherName: other.Name, Answer: answer}, nil
}

func semesterOf(s *model.Student) string {
	if s.SemesterID == nil {
		return ""
	}
	return *s.SemesterID
}

// CleanCard drops unknown questions and blank answers.
func CleanCard(card model.BingoCard) model.BingoCard {
	out := make(model.BingoCard, len(card))
	for q, answers := range card {
		if !ValidQuestion(q) {
			continue
		}
		var kept []string
		for _, a := range answers {
			if a = strings.TrimSpace(a); a != "" {
				kept = append(kept, a)
			}
		}
		if len(kept) > 0 {
			out[q] = kept
		}
	}
	return out
}

// Hints marks the questions where at least one other student in me's
// semester gave one of me's answers.
func Hints(me *model.Student, roster []model.Student) map[string]bool {
	out := make(map[string]bool)
	for _, q := range Questions() {
		for _, a := range me.Bingo[q] {
			if strings.TrimSpace(a) == "" {
				continue
			}
			for i := range roster {
				other := &roster[i]
				if other.ID == me.ID || semesterOf(other) != semesterOf(me) {
					continue
				}
				if other.Bingo.HasAnswer(q, a) {
					out[q] = true
					break
				}
			}
			if out[q] {
				break
			}
		}
	}
	return out
}
