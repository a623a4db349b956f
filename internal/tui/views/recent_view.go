package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/typec/internal/api"
	"github.com/matheus3301/typec/internal/tui/ui"
	"github.com/rivo/tview"
)

// RecentView lists the rooms most recently opened, newest first.
type RecentView struct {
	*tview.Table
	theme *ui.Theme
	rooms []api.Room
}

// NewRecentView creates a new recent rooms table.
func NewRecentView(theme *ui.Theme) *RecentView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Recent ")
	table.SetTitleColor(theme.TitleColor)
	return &RecentView{Table: table, theme: theme}
}

// Name implements Component.
func (rv *RecentView) Name() string { return "Recent" }

// Init implements Component.
func (rv *RecentView) Init() {}

// Start implements Component.
func (rv *RecentView) Start() {}

// Stop implements Component.
func (rv *RecentView) Stop() {}

// Hints implements Component.
func (rv *RecentView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update replaces the list.
func (rv *RecentView) Update(rooms []api.Room) {
	rv.rooms = rooms
	rv.Clear()
	for i, r := range rooms {
		color := rv.theme.FgColor
		name := r.Name
		if r.Badge {
			name = fmt.Sprintf("(%d) %s", r.Unread, name)
			color = rv.theme.UnreadColor
		}
		rv.SetCell(i, 0, tview.NewTableCell(fmt.Sprintf(" %d", i+1)).SetTextColor(rv.theme.NumericKeyColor))
		rv.SetCell(i, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetExpansion(1).SetTextColor(color))
	}
	rv.SetTitle(fmt.Sprintf(" Recent (%d) ", len(rooms)))
}

// SelectedRoom returns the highlighted room.
func (rv *RecentView) SelectedRoom() *api.Room {
	row, _ := rv.GetSelection()
	if row < 0 || row >= len(rv.rooms) {
		return nil
	}
	r := rv.rooms[row]
	return &r
}
