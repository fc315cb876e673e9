// Package recurrence expands an RRULE subset into class meeting dates.
// Only DAILY and WEEKLY frequencies are supported; dates are calendar
// days with no time of day.
package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxDates caps a single expansion.
const MaxDates = 200

const dateLayout = "2006-01-02"

var ErrUnbounded = errors.New("rule needs COUNT or UNTIL")

type Freq int

const (
	Daily Freq = iota
	Weekly
)

var weekdays = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

type Rule struct {
	Freq     Freq
	Interval int
	ByDay    []time.Weekday
	Count    int
	Until    time.Time
}

// Parse reads rules like "FREQ=WEEKLY;BYDAY=TU,TH;UNTIL=20240614". Keys
// may appear in any order and are case-insensitive.
func Parse(s string) (Rule, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "RRULE:")
	if s == "" {
		return Rule{}, errors.New("empty rule")
	}

	r := Rule{Interval: 1}
	seenFreq := false
	for _, part := range strings.Split(s, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return Rule{}, fmt.Errorf("invalid rule part %q", part)
		}
		key, val = strings.ToUpper(strings.TrimSpace(key)), strings.ToUpper(strings.TrimSpace(val))

		switch key {
		case "FREQ":
			switch val {
			case "DAILY":
				r.Freq = Daily
			case "WEEKLY":
				r.Freq = Weekly
			default:
				return Rule{}, fmt.Errorf("unsupported frequency %q", val)
			}
			seenFreq = true
		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("invalid interval %q", val)
			}
			r.Interval = n
		case "BYDAY":
			for _, d := range strings.Split(val, ",") {
				wd, ok := weekdays[strings.TrimSpace(d)]
				if !ok {
					return Rule{}, fmt.Errorf("unknown day %q", d)
				}
				r.ByDay = append(r.ByDay, wd)
			}
		case "COUNT":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("invalid count %q", val)
			}
			r.Count = n
		case "UNTIL":
			t, err := parseUntil(val)
			if err != nil {
				return Rule{}, err
			}
			r.Until = t
		default:
			return Rule{}, fmt.Errorf("unsupported rule key %q", key)
		}
	}

	if !seenFreq {
		return Rule{}, errors.New("FREQ is required")
	}
	if r.Count == 0 && r.Until.IsZero() {
		return Rule{}, ErrUnbounded
	}
	return r, nil
}

func parseUntil(val string) (time.Time, error) {
	for _, layout := range []string{"20060102", "20060102T150405Z", dateLayout} {
		if t, err := time.Parse(layout, val); err == nil {
			return civil(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid UNTIL %q", val)
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (r Rule) String() string {
	parts := []string{"FREQ=DAILY"}
	if r.Freq == Weekly {
		parts[0] = "FREQ=WEEKLY"
	}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if len(r.ByDay) > 0 {
		days := make([]string, 0, len(r.ByDay))
		for _, d := range r.ByDay {
			days = append(days, strings.ToUpper(d.String()[:2]))
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	if r.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}
	if !r.Until.IsZero() {
		parts = append(parts, "UNTIL="+r.Until.Format("20060102"))
	}
	return strings.Join(parts, ";")
}
