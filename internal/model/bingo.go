package model

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
)

// BingoCard maps a question key (Q1..Q25) to the student's answers.
type BingoCard map[string][]string

func (c *BingoCard) Scan(src any) error {
	*c = nil
	return scanJSON(src, c)
}

func (c BingoCard) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	return jsonValue(map[string][]string(c))
}

// HasAnswer reports whether answer is among the answers to question,
// ignoring case and surrounding space.
func (c BingoCard) HasAnswer(question, answer string) bool {
	want := strings.ToLower(strings.TrimSpace(answer))
	if want == "" {
		return false
	}
	for _, a := range c[question] {
		if strings.ToLower(strings.TrimSpace(a)) == want {
			return true
		}
	}
	return false
}

type BingoMatch struct {
	OtherID   string `json:"other_id"`
	OtherName string `json:"other_name"`
	Answer    string `json:"answer"`
}

// UnmarshalJSON also accepts the older otherId/otherName keys.
func (m *BingoMatch) UnmarshalJSON(data []byte) error {
	var raw struct {
		OtherID       string `json:"other_id"`
		OtherName     string `json:"other_name"`
		Answer        string `json:"answer"`
		LegacyOtherID string `json:"otherId"`
		LegacyName    string `json:"otherName"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.OtherID = raw.OtherID
	if m.OtherID == "" {
		m.OtherID = raw.LegacyOtherID
	}
	m.OtherName = raw.OtherName
	if m.OtherName == "" {
		m.OtherName = raw.LegacyName
	}
	m.Answer = raw.Answer
	return nil
}

// BingoMatches maps a question key to the classmate who matched it.
type BingoMatches map[string]BingoMatch

func (m *BingoMatches) Scan(src any) error {
	*m = nil
	return scanJSON(src, m)
}

func (m BingoMatches) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return jsonValue(map[string]BingoMatch(m))
}
