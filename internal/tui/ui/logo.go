package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

var logoArt = []string{
	"╔╦╗╦ ╦╔═╗╔═╗╔═╗",
	" ║ ╚╦╝╠═╝║╣ ║  ",
	" ╩  ╩ ╩  ╚═╝╚═╝",
}

const defaultTagline = "matrix in a terminal"

// Logo draws the wordmark with the homeserver underneath once known.
type Logo struct {
	*tview.TextView
	theme   *Theme
	tagline string
}

func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	l := &Logo{TextView: tv, theme: theme, tagline: defaultTagline}
	l.render()
	return l
}

// SetServer shows the homeserver of userID ("@me:example.org") as the
// tagline. An id without a server part restores the default.
func (l *Logo) SetServer(userID string) {
	tagline := defaultTagline
	if _, server, ok := strings.Cut(userID, ":"); ok && server != "" {
		tagline = server
	}
	if tagline == l.tagline {
		return
	}
	l.tagline = tagline
	l.render()
}

func (l *Logo) render() {
	l.Clear()
	title := colorName(l.theme.TitleColor)
	for _, line := range logoArt {
		_, _ = fmt.Fprintf(l, "[%s::b]%s[-:-:-]\n", title, line)
	}
	_, _ = fmt.Fprintf(l, "[%s]%s[-:-:-]", colorName(l.theme.FgColor), tview.Escape(l.tagline))
}
