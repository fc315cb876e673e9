package recurrence

import (
	"fmt"
	"time"
)

// Dates expands rule from start (YYYY-MM-DD) and returns the meeting
// dates in order. Dates listed in skip are left out but still count
// toward COUNT, so a holiday does not push the series past its end.
func Dates(rule Rule, start string, skip []string) ([]string, error) {
	first, err := time.Parse(dateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q", start)
	}
	first = civil(first)

	skipped := make(map[string]bool, len(skip))
	for _, d := range skip {
		skipped[d] = true
	}

	var out []string
	emitted := 0
	next := iterate(rule, first)
	for {
		d, ok := next()
		if !ok {
			break
		}
		if !rule.Until.IsZero() && d.After(rule.Until) {
			break
		}
		if rule.Count > 0 && emitted >= rule.Count {
			break
		}
		emitted++
		key := d.Format(dateLayout)
		if skipped[key] {
			continue
		}
		if len(out) == MaxDates {
			return nil, fmt.Errorf("rule produces more than %d meetings", MaxDates)
		}
		out = append(out, key)
	}
	return out, nil
}

// iterate yields candidate dates on or after first, with no end.
func iterate(rule Rule, first time.Time) func() (time.Time, bool) {
	if rule.Freq == Daily || len(rule.ByDay) == 0 {
		step := rule.Interval
		if rule.Freq == Weekly {
			step *= 7
		}
		cur := first
		started := false
		return func() (time.Time, bool) {
			if started {
				cur = cur.AddDate(0, 0, step)
			}
			started = true
			return cur, true
		}
	}

	// WEEKLY with BYDAY: walk day by day through the active weeks.
	monday := weekStart(first)
	offsets := make(map[time.Weekday]bool, len(rule.ByDay))
	for _, wd := range rule.ByDay {
		offsets[wd] = true
	}
	cur := first.AddDate(0, 0, -1)
	return func() (time.Time, bool) {
		// A year of empty weeks means BYDAY can never match.
		for range 7 * 53 * rule.Interval {
			cur = cur.AddDate(0, 0, 1)
			weeks := int(cur.Sub(monday).Hours()/24) / 7
			if weeks%rule.Interval != 0 {
				continue
			}
			if offsets[cur.Weekday()] {
				return cur, true
			}
		}
		return time.Time{}, false
	}
}

func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}
