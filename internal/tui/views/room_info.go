package views

import (
	"fmt"

	"github.com/matheus3301/typec/internal/api"
	"github.com/matheus3301/typec/internal/tui/ui"
	"github.com/rivo/tview"
)

// RoomInfo displays detailed information about a room.
type RoomInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewRoomInfo creates a new room info view.
func NewRoomInfo(theme *ui.Theme) *RoomInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Room Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &RoomInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ri *RoomInfo) Name() string { return "Details" }

// Init implements Component.
func (ri *RoomInfo) Init() {}

// Start implements Component.
func (ri *RoomInfo) Start() {}

// Stop implements Component.
func (ri *RoomInfo) Stop() {}

// Hints implements Component.
func (ri *RoomInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders room details.
func (ri *RoomInfo) Update(r *api.Room) {
	ri.Clear()
	if r == nil {
		return
	}

	fg := ui.ColorTag(ri.theme.FgColor)
	ct := ui.ColorTag(ri.theme.CounterColor)

	kind := "Direct Message"
	if r.Kind != "dm" {
		kind = "Group"
	}
	if r.Invited {
		kind += " (invite)"
	}
	lastActive := formatTimestamp(r.LastMessageAt)
	if lastActive == "" {
		lastActive = "-"
	}
	encryption := "off"
	if r.Encrypted {
		encryption = "on"
	}

	rows := [][2]string{
		{"Name", r.Name},
		{"Room ID", r.RoomID},
		{"Kind", kind},
		{"Unread", fmt.Sprint(r.Unread)},
		{"Encryption", encryption},
		{"Last Active", lastActive},
		{"Last Message", r.Preview},
	}
	if r.Inviter != "" {
		rows = append(rows, [2]string{"Invited By", r.Inviter})
	}
	_, _ = fmt.Fprintln(ri)
	for _, row := range rows {
		_, _ = fmt.Fprintf(ri, " [%s::b]%-13s[-:-:-] [%s]%s[-]\n", fg, row[0]+":", ct, tview.Escape(sanitizeForTerminal(row[1])))
	}
	ri.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(r.Name)))
}
