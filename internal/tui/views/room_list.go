package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/typec/internal/api"
	"github.com/matheus3301/typec/internal/tui/ui"
	"github.com/rivo/tview"
	"golang.org/x/text/cases"
)

// Tabs in display order.
var Tabs = []string{"dms", "rooms", "invites"}

// RoomList is the main room list view for the active tab.
type RoomList struct {
	*tview.Table
	theme  *ui.Theme
	rooms  []api.Room
	tab    string
	filter string
	fold   cases.Caser
}

// NewRoomList creates a new room list table.
func NewRoomList(theme *ui.Theme) *RoomList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	rl := &RoomList{
		Table: table,
		theme: theme,
		tab:   Tabs[0],
		fold:  cases.Fold(),
	}
	rl.render()
	return rl
}

// Name implements Component.
func (rl *RoomList) Name() string { return "Rooms" }

// Init implements Component.
func (rl *RoomList) Init() {}

// Start implements Component.
func (rl *RoomList) Start() {}

// Stop implements Component.
func (rl *RoomList) Stop() {}

// Hints implements Component.
func (rl *RoomList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "Tab", Description: "Switch tab"},
		{Key: "a", Description: "Accept invite"},
		{Key: "i", Description: "Details"},
		{Key: "r", Description: "Recent"},
		{Key: "c", Description: "Calendar"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the rows of the given tab.
func (rl *RoomList) Update(tab string, rooms []api.Room) {
	if tab != "" {
		rl.tab = tab
	}
	rl.rooms = rooms
	rl.render()
}

// Tab returns the tab currently shown.
func (rl *RoomList) Tab() string { return rl.tab }

// NextTab returns the tab after the current one.
func (rl *RoomList) NextTab() string {
	for i, t := range Tabs {
		if t == rl.tab {
			return Tabs[(i+1)%len(Tabs)]
		}
	}
	return Tabs[0]
}

// SetFilter sets the active filter text and re-renders.
func (rl *RoomList) SetFilter(filter string) {
	rl.filter = filter
	rl.render()
}

// ClearFilter clears the active filter.
func (rl *RoomList) ClearFilter() {
	rl.filter = ""
	rl.render()
}

// Filter returns the active filter text.
func (rl *RoomList) Filter() string { return rl.filter }

func (rl *RoomList) visible() []api.Room {
	if rl.filter == "" {
		return rl.rooms
	}
	needle := rl.fold.String(rl.filter)
	var out []api.Room
	for _, r := range rl.rooms {
		if strings.Contains(rl.fold.String(r.Name), needle) ||
			strings.Contains(rl.fold.String(r.Preview), needle) ||
			strings.Contains(rl.fold.String(r.RoomID), needle) {
			out = append(out, r)
		}
	}
	return out
}

func (rl *RoomList) render() {
	rl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" KIND", 0},
	}
	for col, h := range headers {
		rl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(rl.theme.TableHeaderFg).
			SetBackgroundColor(rl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	rows := rl.visible()
	for i, r := range rows {
		row := i + 1
		color := rl.theme.FgColor
		name := r.Name
		if r.Badge {
			name = fmt.Sprintf("(%d) %s", r.Unread, name)
			color = rl.theme.UnreadColor
		}
		if r.Encrypted {
			name += " [e2e]"
		}
		preview := r.Preview
		if r.Invited {
			preview = "invited"
			if r.Inviter != "" {
				preview += " by " + r.Inviter
			}
		}

		cell := tview.NewTableCell(" " + tview.Escape(sanitizeForTerminal(name))).SetExpansion(1).SetTextColor(color)
		if r.Active {
			cell.SetAttributes(tcell.AttrBold)
		}
		rl.SetCell(row, 0, cell)
		rl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(preview))).SetExpansion(2).SetTextColor(rl.theme.FgColor))
		rl.SetCell(row, 2, tview.NewTableCell(formatTimestamp(r.LastMessageAt)).SetTextColor(rl.theme.FgColor).SetAlign(tview.AlignRight))
		rl.SetCell(row, 3, tview.NewTableCell(kindLabel(r)).SetTextColor(rl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	var tabs []string
	for _, t := range Tabs {
		if t == rl.tab {
			tabs = append(tabs, fmt.Sprintf("[%s::b]%s[-:-:-]", ui.ColorTag(rl.theme.CrumbActiveBg), t))
			continue
		}
		tabs = append(tabs, t)
	}
	title := fmt.Sprintf(" %s (%d) ", strings.Join(tabs, " | "), len(rl.rooms))
	if rl.filter != "" {
		title = fmt.Sprintf(" %s (%d/%d) filter: %s ", strings.Join(tabs, " | "), len(rows), len(rl.rooms), tview.Escape(rl.filter))
	}
	rl.SetTitle(title)
}

func kindLabel(r api.Room) string {
	switch {
	case r.Invited:
		return "INVITE"
	case r.Kind == "dm":
		return "DM"
	default:
		return "GROUP"
	}
}

// SelectedRoom returns the currently highlighted room, if any.
func (rl *RoomList) SelectedRoom() *api.Room {
	row, _ := rl.GetSelection()
	return rl.RoomByIndex(row)
}

// RoomByIndex returns the Nth visible room (1-based).
func (rl *RoomList) RoomByIndex(n int) *api.Room {
	rows := rl.visible()
	if n < 1 || n > len(rows) {
		return nil
	}
	r := rows[n-1]
	return &r
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
