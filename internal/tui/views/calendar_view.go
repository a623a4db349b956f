package views

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/matheus3301/typec/internal/api"
	"github.com/matheus3301/typec/internal/tui/ui"
	"github.com/rivo/tview"
)

// CalendarView shows a month grid with holidays highlighted and listed.
type CalendarView struct {
	*tview.TextView
	theme *ui.Theme
	year  int
	month time.Month
	now   func() time.Time
}

// NewCalendarView creates a calendar view for the current month.
func NewCalendarView(theme *ui.Theme) *CalendarView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)

	cv := &CalendarView{TextView: tv, theme: theme, now: time.Now}
	now := cv.now()
	cv.year, cv.month = now.Year(), now.Month()
	return cv
}

// Name implements Component.
func (cv *CalendarView) Name() string { return "Calendar" }

// Init implements Component.
func (cv *CalendarView) Init() {}

// Start implements Component.
func (cv *CalendarView) Start() {}

// Stop implements Component.
func (cv *CalendarView) Stop() {}

// Hints implements Component.
func (cv *CalendarView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "h", Description: "Previous month"},
		{Key: "l", Description: "Next month"},
		{Key: "t", Description: "Today"},
		{Key: "R", Description: "Reload feed"},
		{Key: "Esc", Description: "Back"},
	}
}

// Month returns the month shown.
func (cv *CalendarView) Month() (int, time.Month) {
	return cv.year, cv.month
}

// Shift moves the shown month by delta months.
func (cv *CalendarView) Shift(delta int) (int, time.Month) {
	t := time.Date(cv.year, cv.month+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	cv.year, cv.month = t.Year(), t.Month()
	return cv.year, cv.month
}

// Today moves back to the current month.
func (cv *CalendarView) Today() (int, time.Month) {
	now := cv.now()
	cv.year, cv.month = now.Year(), now.Month()
	return cv.year, cv.month
}

// Update renders the month grid for resp.
func (cv *CalendarView) Update(resp *api.MonthResponse) {
	cv.Clear()
	if resp == nil {
		return
	}
	cv.year, cv.month = resp.Year, time.Month(resp.Month)
	_, _ = fmt.Fprint(cv, renderMonth(cv.theme, resp, cv.now()))
	cv.SetTitle(fmt.Sprintf(" %s %d ", cv.month, cv.year))
}

func renderMonth(theme *ui.Theme, resp *api.MonthResponse, now time.Time) string {
	hc := ui.ColorTag(theme.HolidayColor)
	first := time.Date(resp.Year, time.Month(resp.Month), 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()

	var b strings.Builder
	b.WriteString("\n  Mo Tu We Th Fr Sa Su\n  ")
	offset := (int(first.Weekday()) + 6) % 7
	b.WriteString(strings.Repeat("   ", offset))
	for d := 1; d <= days; d++ {
		cell := fmt.Sprintf("%2d", d)
		today := now.Year() == resp.Year && int(now.Month()) == resp.Month && now.Day() == d
		switch {
		case len(resp.Days[d]) > 0 && today:
			cell = fmt.Sprintf("[%s::bu]%s[-:-:-]", hc, cell)
		case len(resp.Days[d]) > 0:
			cell = fmt.Sprintf("[%s::b]%s[-:-:-]", hc, cell)
		case today:
			cell = fmt.Sprintf("[::u]%s[-:-:-]", cell)
		}
		b.WriteString(cell)
		if (offset+d)%7 == 0 {
			b.WriteString("\n  ")
		} else {
			b.WriteString(" ")
		}
	}
	b.WriteString("\n\n")

	keys := make([]int, 0, len(resp.Days))
	for d := range resp.Days {
		keys = append(keys, d)
	}
	sort.Ints(keys)
	for _, d := range keys {
		for _, h := range resp.Days[d] {
			fmt.Fprintf(&b, "  [%s]%2d[-]  %s", hc, d, tview.Escape(sanitizeForTerminal(h.Summary)))
			if h.Description != "" {
				fmt.Fprintf(&b, " [::d]%s[-:-:-]", tview.Escape(sanitizeForTerminal(h.Description)))
			}
			b.WriteString("\n")
		}
	}
	if len(keys) == 0 {
		b.WriteString("  [::d]no holidays this month[-:-:-]\n")
	}
	return b.String()
}
