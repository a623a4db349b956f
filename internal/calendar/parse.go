// Package calendar parses iCalendar holiday feeds into a date index.
package calendar

import (
	"regexp"
	"strings"
)

// Entry is one calendar event.
type Entry struct {
	Summary     string
	Description string
	Yearly      bool
}

// Index maps date keys to entries. Keys are "YYYYMMDD" for exact dates and
// "MMDD" for events that repeat every year.
type Index map[string][]Entry

var (
	foldedLine = regexp.MustCompile(`\r?\n[ \t]`)
	lineBreak  = regexp.MustCompile(`\r?\n`)
	dateDigits = regexp.MustCompile(`\d{8}`)
)

var unescaper = strings.NewReplacer(
	`\\`, `\`,
	`\n`, "\n",
	`\N`, "\n",
	`\,`, ",",
	`\;`, ";",
)

func unescape(s string) string {
	return strings.TrimSpace(unescaper.Replace(s))
}

// value returns the text after the first colon of a content line, skipping
// any property parameters before it.
func value(line string) string {
	_, v, _ := strings.Cut(line, ":")
	return v
}

// Parse builds an Index from a feed document. Blocks without a start date or
// a summary are skipped; the parse never fails.
func Parse(doc string) Index {
	idx := make(Index)
	doc = foldedLine.ReplaceAllString(doc, "")

	var (
		in    bool
		date  string
		entry Entry
	)
	for _, line := range lineBreak.Split(doc, -1) {
		line = strings.TrimRight(line, " \t")
		switch {
		case line == "BEGIN:VEVENT":
			in, date, entry = true, "", Entry{}
		case line == "END:VEVENT":
			if in && date != "" && entry.Summary != "" {
				idx[date] = append(idx[date], entry)
				if entry.Yearly {
					idx[date[4:]] = append(idx[date[4:]], entry)
				}
			}
			in = false
		case !in:
		case strings.HasPrefix(line, "DTSTART"):
			date = dateDigits.FindString(value(line))
		case strings.HasPrefix(line, "SUMMARY"):
			entry.Summary = unescape(value(line))
		case strings.HasPrefix(line, "DESCRIPTION"):
			entry.Description = unescape(value(line))
		case strings.HasPrefix(line, "RRULE"):
			entry.Yearly = strings.Contains(line, "FREQ=YEARLY")
		}
	}
	return idx
}
