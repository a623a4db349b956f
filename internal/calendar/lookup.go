package calendar

import (
	"fmt"
	"time"
)

// Lookup returns the entries for an exact date key and the recurring entries
// for its month and day, exact ones first, without duplicates.
func (idx Index) Lookup(dateKey, mmdd string) []Entry {
	type pair struct{ summary, description string }
	seen := make(map[pair]bool)
	var out []Entry
	for _, list := range [][]Entry{idx[dateKey], idx[mmdd]} {
		for _, e := range list {
			k := pair{e.Summary, e.Description}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, e)
		}
	}
	return out
}

// On returns the entries for the calendar day of t.
func (idx Index) On(t time.Time) []Entry {
	full := t.Format("20060102")
	return idx.Lookup(full, full[4:])
}

// Month returns the entries for every day of a month, keyed by day of month.
// Days without entries are absent.
func (idx Index) Month(year int, month time.Month) map[int][]Entry {
	out := make(map[int][]Entry)
	days := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	for d := 1; d <= days; d++ {
		mmdd := fmt.Sprintf("%02d%02d", int(month), d)
		if es := idx.Lookup(fmt.Sprintf("%04d%s", year, mmdd), mmdd); len(es) > 0 {
			out[d] = es
		}
	}
	return out
}

// Len returns the number of distinct date keys.
func (idx Index) Len() int { return len(idx) }
