package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashNotice
	FlashWarn
	FlashErr
)

var flashTTL = map[FlashLevel]time.Duration{
	FlashInfo:   5 * time.Second,
	FlashNotice: 8 * time.Second,
	FlashWarn:   8 * time.Second,
	FlashErr:    10 * time.Second,
}

// FlashMessage is a flash notification with a level and expiry.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	More    int // further notices folded into this one
	Expires time.Time
}

// FlashModel holds the current transient message for the flash bar.
type FlashModel struct {
	mu      sync.RWMutex
	current FlashMessage
	watchCh chan FlashMessage
}

func NewFlashModel() *FlashModel {
	return &FlashModel{watchCh: make(chan FlashMessage, 8)}
}

func (f *FlashModel) Info(msg string) { f.set(FlashMessage{Text: msg, Level: FlashInfo}, 0) }

func (f *FlashModel) Warn(msg string) { f.set(FlashMessage{Text: msg, Level: FlashWarn}, 0) }

func (f *FlashModel) Err(err error) { f.set(FlashMessage{Text: err.Error(), Level: FlashErr}, 0) }

// Notice shows an incoming message notification. more counts the other
// notifications that arrived in the same batch.
func (f *FlashModel) Notice(msg string, more int) {
	f.set(FlashMessage{Text: msg, Level: FlashNotice, More: max(more, 0)}, 0)
}

// Set shows an info message for d.
func (f *FlashModel) Set(msg string, d time.Duration) {
	f.set(FlashMessage{Text: msg, Level: FlashInfo}, d)
}

func (f *FlashModel) set(fm FlashMessage, d time.Duration) {
	if d == 0 {
		d = flashTTL[fm.Level]
	}
	fm.Expires = time.Now().Add(d)

	f.mu.Lock()
	// A notice never hides a pending error.
	if fm.Level == FlashNotice && f.current.Level == FlashErr && time.Now().Before(f.current.Expires) {
		f.mu.Unlock()
		return
	}
	f.current = fm
	f.mu.Unlock()

	select {
	case f.watchCh <- fm:
	default:
	}
}

// Get returns the current flash text, or "" once expired.
func (f *FlashModel) Get() string {
	if m := f.GetMessage(); m != nil {
		return m.Text
	}
	return ""
}

// GetMessage returns the current flash message, or nil once expired.
func (f *FlashModel) GetMessage() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// Watch returns a channel that receives every message set.
func (f *FlashModel) Watch() <-chan FlashMessage {
	return f.watchCh
}

// FlashBar is the UI component that displays flash notifications.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// Update renders msg, or clears the bar for nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}

	color := fb.theme.FlashInfoColor
	switch msg.Level {
	case FlashNotice:
		color = fb.theme.UnreadColor
	case FlashWarn:
		color = fb.theme.FlashWarnColor
	case FlashErr:
		color = fb.theme.FlashErrColor
	}
	text := tview.Escape(msg.Text)
	if msg.More > 0 {
		text += fmt.Sprintf(" (+%d more)", msg.More)
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", colorName(color), text)
}
