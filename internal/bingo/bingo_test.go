package bingo

import (
	"errors"
	"testing"

	"github.com/dukerupert/classpoints/internal/model"
)

func fill(keys ...string) model.BingoMatches {
	m := make(model.BingoMatches)
	for _, k := range keys {
		m[k] = model.BingoMatch{OtherID: "x", OtherName: "X", Answer: "yes"}
	}
	return m
}

func TestEvaluateRowAndColumn(t *testing.T) {
	p := Evaluate(fill("Q6", "Q7", "Q8", "Q9", "Q10"))
	if !p.Rows[1] {
		t.Error("expected second row complete")
	}
	if p.Rows[0] || p.Cols[0] || p.Full {
		t.Errorf("unexpected patterns %+v", p)
	}
	if p.Matched != 5 {
		t.Errorf("matched = %d, want 5", p.Matched)
	}

	p = Evaluate(fill("Q3", "Q8", "Q13", "Q18", "Q23"))
	if !p.Cols[2] {
		t.Error("expected third column complete")
	}
	if !p.Any() {
		t.Error("Any() = false")
	}
}

func TestEvaluateDiagonals(t *testing.T) {
	p := Evaluate(fill("Q1", "Q7", "Q13", "Q19", "Q25"))
	if !p.Diag1 || p.Diag2 {
		t.Errorf("diag1/diag2 = %v/%v, want true/false", p.Diag1, p.Diag2)
	}
	p = Evaluate(fill("Q5", "Q9", "Q13", "Q17", "Q21"))
	if p.Diag1 || !p.Diag2 {
		t.Errorf("diag1/diag2 = %v/%v, want false/true", p.Diag1, p.Diag2)
	}
}

func TestEvaluateFullCard(t *testing.T) {
	p := Evaluate(fill(Questions()...))
	if !p.Full || p.Matched != 25 {
		t.Errorf("full = %v matched = %d", p.Full, p.Matched)
	}
	for i := 0; i < Size; i++ {
		if !p.Rows[i] || !p.Cols[i] {
			t.Errorf("row/col %d incomplete", i)
		}
	}
}

func TestEvaluateIgnoresBlankCells(t *testing.T) {
	m := fill("Q1", "Q2", "Q3", "Q4")
	m["Q5"] = model.BingoMatch{OtherID: "x"}
	if p := Evaluate(m); p.Rows[0] || p.Any() {
		t.Errorf("blank answer counted: %+v", p)
	}
}

func TestMatch(t *testing.T) {
	sem := "s1"
	me := &model.Student{ID: "me", Name: "Me", SemesterID: &sem}
	other := &model.Student{ID: "o", Name: "Olga", SemesterID: &sem, Bingo: model.BingoCard{"Q4": {"Chess"}}}

	got, err := Match(me, other, "Q4", " chess ")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if got.OtherID != "o" || got.OtherName != "Olga" || got.Answer != "chess" {
		t.Errorf("match = %+v", got)
	}

	if _, err := Match(me, other, "Q4", "checkers"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}
	if _, err := Match(me, other, "Q26", "chess"); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("err = %v, want ErrUnknownQuestion", err)
	}
	if _, err := Match(me, me, "Q4", "chess"); !errors.Is(err, ErrSelfMatch) {
		t.Errorf("err = %v, want ErrSelfMatch", err)
	}

	other.SemesterID = nil
	if _, err := Match(me, other, "Q4", "chess"); !errors.Is(err, ErrOtherSemester) {
		t.Errorf("err = %v, want ErrOtherSemester", err)
	}
}

func TestCleanCard(t *testing.T) {
	card := CleanCard(model.BingoCard{
		"Q1":    {" pizza ", ""},
		"Q2":    {"  "},
		"Bogus": {"x"},
	})
	if len(card) != 1 || card["Q1"][0] != "pizza" {
		t.Errorf("card = %v", card)
	}
}

func TestHints(t *testing.T) {
	sem := "s1"
	me := &model.Student{ID: "me", SemesterID: &sem, Bingo: model.BingoCard{
		"Q1": {"Pizza"},
		"Q2": {"Tokyo"},
		"Q3": {"Blue"},
	}}
	roster := []model.Student{
		*me,
		{ID: "a", SemesterID: &sem, Bingo: model.BingoCard{"Q1": {"pizza "}, "Q3": {"Red"}}},
		{ID: "b", Bingo: model.BingoCard{"Q2": {"Tokyo"}}},
	}

	got := Hints(me, roster)
	if !got["Q1"] {
		t.Error("Q1 should be hinted")
	}
	if got["Q2"] {
		t.Error("Q2 matches only a student in another semester")
	}
	if got["Q3"] {
		t.Error("Q3 has no shared answer")
	}
}
