package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // digit shortcuts, drawn in NumericKeyColor
}

// Component is the lifecycle interface for all TUI views.
type Component interface {
	Name() string
	Init()
	Start()
	Stop()
	Hints() []MenuHint
}

// Menu lays out the hints of the current view in columns of a fixed height.
type Menu struct {
	*tview.Table
	theme *Theme
	rows  int
}

// NewMenu creates a menu that fills columns of rows hints each.
func NewMenu(theme *Theme, rows int) *Menu {
	t := tview.NewTable().SetBorders(false)
	t.SetBackgroundColor(theme.BgColor)
	t.SetBorderPadding(0, 0, 2, 0)
	return &Menu{Table: t, theme: theme, rows: max(rows, 1)}
}

// Update renders hints column by column.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	for i, h := range hints {
		row, col := i%m.rows, (i/m.rows)*2
		color := m.theme.MenuKeyColor
		if h.Numeric {
			color = m.theme.NumericKeyColor
		}
		m.SetCell(row, col, tview.NewTableCell("<"+h.Key+">").
			SetTextColor(color).
			SetAttributes(tcell.AttrBold).
			SetBackgroundColor(m.theme.BgColor))
		m.SetCell(row, col+1, tview.NewTableCell(h.Description+"  ").
			SetTextColor(m.theme.FgColor).
			SetBackgroundColor(m.theme.BgColor))
	}
}
