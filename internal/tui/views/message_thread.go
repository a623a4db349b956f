package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/typec/internal/api"
	"github.com/matheus3301/typec/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays the open room timeline and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	roomName string
	roomID   string
	selfID   string
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := strings.TrimSpace(composer.GetText())
			if text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.roomName != "" {
		return mt.roomName
	}
	return "Messages"
}

// Init implements Component.
func (mt *MessageThread) Init() {}

// Start implements Component.
func (mt *MessageThread) Start() {}

// Stop implements Component.
func (mt *MessageThread) Stop() {}

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "d", Description: "Details"},
		{Key: "m", Description: "Mark read"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// SetRoom updates the open room and the title.
func (mt *MessageThread) SetRoom(roomID, name string) {
	mt.roomID = roomID
	mt.roomName = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(name)))
}

// RoomID returns the open room id.
func (mt *MessageThread) RoomID() string {
	return mt.roomID
}

// SetSelf sets the local user id so own messages are labelled.
func (mt *MessageThread) SetSelf(userID string) {
	mt.selfID = userID
}

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update refreshes the view. Messages arrive oldest first.
func (mt *MessageThread) Update(msgs []api.Message) {
	mt.messages.Clear()
	for _, m := range msgs {
		_, _ = fmt.Fprint(mt.messages, mt.format(m))
	}
	mt.messages.ScrollToEnd()
}

func (mt *MessageThread) format(m api.Message) string {
	sender := m.SenderName
	if sender == "" {
		sender = m.SenderID
	}
	if mt.selfID != "" && m.SenderID == mt.selfID {
		sender = "You"
	}
	senderColor := "::b"
	if m.Admin {
		senderColor = ui.ColorTag(mt.theme.AdminColor) + "::b"
		sender += " (admin)"
	}

	meta := m.Time
	if m.Local {
		meta += " " + fmt.Sprintf("[%s]sending[-]", ui.ColorTag(mt.theme.PendingColor))
	}

	body := tview.Escape(sanitizeForTerminal(m.Body))
	if m.Placeholder {
		body = fmt.Sprintf("[%s::i]%s[-:-:-]", ui.ColorTag(mt.theme.PlaceholderColor), body)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]%s[-:-:-] [::d]%s[-:-:-]\n", senderColor, tview.Escape(sanitizeForTerminal(sender)), meta)
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	if a := m.Attachment; a != nil {
		b.WriteString(attachmentLine(a))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func attachmentLine(a *api.Attachment) string {
	state := a.State
	switch {
	case a.Error != "":
		state = "failed: " + a.Error
	case a.State == "ready" && a.Size > 0:
		state = humanSize(a.Size)
	}
	return fmt.Sprintf("[::d]%s %s (%s)[-:-:-]", tview.Escape("["+a.Kind+"]"), tview.Escape(sanitizeForTerminal(a.Name)), tview.Escape(state))
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
