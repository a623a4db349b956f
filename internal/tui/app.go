// Package tui is the terminal client. It renders daemon state through tview
// and never talks to the homeserver itself.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/typec/internal/api"
	"github.com/matheus3301/typec/internal/tui/client"
	"github.com/matheus3301/typec/internal/tui/keys"
	"github.com/matheus3301/typec/internal/tui/model"
	"github.com/matheus3301/typec/internal/tui/ui"
	"github.com/matheus3301/typec/internal/tui/views"
	"github.com/rivo/tview"
)

// Page names.
const (
	pageRooms    = "rooms"
	pageThread   = "thread"
	pageDetails  = "details"
	pageSearch   = "search"
	pageRecent   = "recent"
	pageCalendar = "calendar"
	pageHelp     = "help"
)

const (
	callTimeout    = 10 * time.Second
	statusInterval = 5 * time.Second
	headerHeight   = 6
	promptHeight   = 3
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	root     *tview.Flex
	pages    *ui.Pages
	crumbs   *ui.Crumbs
	menu     *ui.Menu
	info     *ui.SessionInfo
	logo     *ui.Logo
	prompt   *ui.Prompt
	flash    *ui.FlashModel
	flashBar *ui.FlashBar
	registry *keys.Registry
	vm       *model.ViewModel

	rooms    *views.RoomList
	thread   *views.MessageThread
	details  *views.RoomInfo
	search   *views.SearchView
	recent   *views.RecentView
	calendar *views.CalendarView
	help     *views.HelpView

	components map[string]ui.Component
	session    string
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		pages:    ui.NewPages(),
		crumbs:   ui.NewCrumbs(theme),
		menu:     ui.NewMenu(theme, headerHeight),
		info:     ui.NewSessionInfo(theme),
		logo:     ui.NewLogo(theme),
		prompt:   ui.NewPrompt(theme),
		flash:    ui.NewFlashModel(),
		flashBar: ui.NewFlashBar(theme),
		registry: keys.NewRegistry(),
		vm:       model.New(c),
		rooms:    views.NewRoomList(theme),
		thread:   views.NewMessageThread(theme),
		details:  views.NewRoomInfo(theme),
		search:   views.NewSearchView(theme),
		recent:   views.NewRecentView(theme),
		calendar: views.NewCalendarView(theme),
		help:     views.NewHelpView(theme),
		session:  sessionName,
		ctx:      ctx,
		cancel:   cancel,
	}
	a.components = map[string]ui.Component{
		pageRooms:    a.rooms,
		pageThread:   a.thread,
		pageDetails:  a.details,
		pageSearch:   a.search,
		pageRecent:   a.recent,
		pageCalendar: a.calendar,
		pageHelp:     a.help,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	a.help.Update(a.helpSections())

	return a
}

func (a *App) setupBindings() {
	key := func(name string, r rune, desc string, fn func()) *keys.Action {
		return &keys.Action{Name: name, Key: tcell.KeyRune, Rune: r, Description: desc, Handler: fn, Visible: true}
	}

	a.registry.AddGlobal(key("command", ':', "Command mode", func() { a.showPrompt(ui.PromptCommand) }))
	a.registry.AddGlobal(key("help", '?', "Help", func() { a.show(pageHelp) }))
	a.registry.AddGlobal(key("calendar", 'c', "Holiday calendar", func() { a.showCalendar(a.calendar.Today()) }))
	a.registry.AddGlobal(key("recent", 'r', "Recent rooms", func() { a.show(pageRecent) }))
	a.registry.AddGlobal(key("quit", 'q', "Quit / Back", func() {
		if a.pages.Depth() > 1 {
			a.back()
			return
		}
		a.Stop()
	}))

	a.registry.AddView(pageRooms, key("filter", '/', "Filter rooms", func() { a.showPrompt(ui.PromptFilter) }))
	a.registry.AddView(pageRooms, key("clear", '0', "Clear filter", func() { a.rooms.ClearFilter() }))
	a.registry.AddView(pageRooms, &keys.Action{Name: "tab", Key: tcell.KeyTab, Description: "Switch tab", Visible: true, Handler: func() {
		a.switchTab(a.rooms.NextTab())
	}})
	a.registry.AddView(pageRooms, key("accept", 'a', "Accept invite", func() {
		if r := a.rooms.SelectedRoom(); r != nil && r.Invited {
			a.acceptInvite(r.RoomID)
		}
	}))
	a.registry.AddView(pageRooms, key("details", 'i', "Room details", func() {
		if r := a.rooms.SelectedRoom(); r != nil {
			a.details.Update(r)
			a.show(pageDetails)
		}
	}))
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageRooms, &keys.Action{
			Name: fmt.Sprintf("jump%d", n), Key: tcell.KeyRune, Rune: rune('0' + n),
			Label: "1-9", Description: "Jump to Nth room", Visible: n == 1,
			Handler: func() {
				if r := a.rooms.RoomByIndex(n); r != nil {
					a.openRoom(r.RoomID)
				}
			},
		})
	}

	a.registry.AddView(pageThread, key("compose", 'i', "Focus composer", func() { a.app.SetFocus(a.thread.Composer()) }))
	a.registry.AddView(pageThread, key("details", 'd', "Room details", func() {
		a.details.Update(a.roomByID(a.vm.RoomID()))
		a.show(pageDetails)
	}))
	a.registry.AddView(pageThread, key("read", 'm', "Mark read", a.markRead))

	a.registry.AddView(pageCalendar, key("prev", 'h', "Previous month", func() { a.showCalendar(a.calendar.Shift(-1)) }))
	a.registry.AddView(pageCalendar, key("next", 'l', "Next month", func() { a.showCalendar(a.calendar.Shift(1)) }))
	a.registry.AddView(pageCalendar, key("today", 't', "Current month", func() { a.showCalendar(a.calendar.Today()) }))
	a.registry.AddView(pageCalendar, key("reload", 'R', "Reload holiday feed", a.reloadHolidays))

	a.registry.AddView(pageSearch, &keys.Action{Name: "results", Key: tcell.KeyTab, Description: "Focus results", Visible: true, Handler: func() {
		a.app.SetFocus(a.search.Results())
	}})
}

func (a *App) setupCallbacks() {
	a.rooms.SetSelectedFunc(func(row, _ int) {
		if r := a.rooms.RoomByIndex(row); r != nil {
			a.openRoom(r.RoomID)
		}
	})
	a.recent.SetSelectedFunc(func(int, int) {
		if r := a.recent.SelectedRoom(); r != nil {
			a.openRoom(r.RoomID)
		}
	})
	a.search.Results().SetSelectedFunc(func(int, int) {
		if h := a.search.SelectedHit(); h != nil {
			a.openRoom(h.RoomID)
		}
	})

	a.thread.SetOnSend(func(text string) {
		a.do("send", func(ctx context.Context) error {
			if err := a.vm.Send(ctx, text); err != nil {
				return err
			}
			return a.vm.LoadMessages(ctx)
		}, func() { a.thread.Update(a.vm.Messages()) })
	})
	a.search.SetOnQuery(a.runSearch)

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.rooms.SetFilter(text)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(stack []string) {
		names := make([]string, 0, len(stack))
		for _, p := range stack {
			names = append(names, a.components[p].Name())
		}
		a.crumbs.Update(names)
		if len(stack) > 0 {
			a.menu.Update(a.components[stack[len(stack)-1]].Hints())
		}
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageRooms, a.rooms, true, false)
	a.pages.AddPage(pageThread, a.thread, true, false)
	a.pages.AddPage(pageDetails, a.details, true, false)
	a.pages.AddPage(pageSearch, a.search, true, false)
	a.pages.AddPage(pageRecent, a.recent, true, false)
	a.pages.AddPage(pageCalendar, a.calendar, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	header := tview.NewFlex().
		AddItem(a.info, 44, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 24, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerHeight, 0, false).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.onKey)
	a.pages.Reset(pageRooms)
	a.app.SetFocus(a.rooms)
}

func (a *App) onKey(ev *tcell.EventKey) *tcell.EventKey {
	if a.prompt.HasFocus() {
		return ev
	}
	current := a.pages.Current()

	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		switch {
		case ev.Key() == tcell.KeyEscape && current == pageThread:
			a.app.SetFocus(a.thread.Messages())
			return nil
		case ev.Key() == tcell.KeyEscape:
			a.back()
			return nil
		case ev.Key() == tcell.KeyTab && current == pageSearch:
			a.app.SetFocus(a.search.Results())
			return nil
		}
		return ev
	}

	if ev.Key() == tcell.KeyEscape {
		a.back()
		return nil
	}
	if a.registry.HandleEvent(current, ev) {
		return nil
	}
	return ev
}

func (a *App) focusTarget(page string) tview.Primitive {
	switch page {
	case pageThread:
		return a.thread.Messages()
	case pageSearch:
		return a.search.Input()
	}
	if p, ok := a.components[page].(tview.Primitive); ok {
		return p
	}
	return a.rooms
}

func (a *App) show(page string) {
	if a.pages.Current() != page {
		a.pages.Push(page)
	}
	a.app.SetFocus(a.focusTarget(page))
}

func (a *App) back() {
	if a.pages.Depth() <= 1 {
		return
	}
	a.pages.Pop()
	a.app.SetFocus(a.focusTarget(a.pages.Current()))
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	if mode == ui.PromptFilter {
		a.prompt.SetText(a.rooms.Filter())
	}
	a.root.ResizeItem(a.prompt, promptHeight, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.app.SetFocus(a.focusTarget(a.pages.Current()))
}

// do runs fn off the UI goroutine and applies then on success. Failures go
// to the flash bar prefixed with what.
func (a *App) do(what string, fn func(ctx context.Context) error, then func()) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
		err := fn(ctx)
		cancel()
		if errors.Is(err, context.Canceled) && a.ctx.Err() != nil {
			return
		}
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.flash.Err(fmt.Errorf("%s: %w", what, err))
			} else if then != nil {
				then()
			}
			a.flashBar.Update(a.flash.GetMessage())
		})
	}()
}

func (a *App) roomByID(roomID string) *api.Room {
	for _, list := range [][]api.Room{a.vm.Rooms(), a.vm.Recent()} {
		for _, r := range list {
			if r.RoomID == roomID {
				return &r
			}
		}
	}
	return nil
}

func (a *App) openRoom(roomID string) {
	a.do("open room", func(ctx context.Context) error {
		return a.vm.SelectRoom(ctx, roomID)
	}, func() {
		a.thread.SetRoom(a.vm.RoomID(), a.vm.RoomName(a.vm.RoomID()))
		a.thread.Update(a.vm.Messages())
		a.show(pageThread)
	})
}

func (a *App) markRead() {
	a.do("mark read", a.vm.MarkRead, func() { a.flash.Info("Marked read") })
}

func (a *App) switchTab(tab string) {
	a.do("switch tab", func(ctx context.Context) error {
		return a.vm.SetTab(ctx, tab)
	}, a.renderRooms)
}

func (a *App) acceptInvite(roomID string) {
	a.do("accept invite", func(ctx context.Context) error {
		return a.vm.AcceptInvite(ctx, roomID)
	}, func() {
		a.renderRooms()
		a.flash.Info("Joined " + a.vm.RoomName(roomID))
	})
}

func (a *App) leave(roomID string) {
	a.do("leave", func(ctx context.Context) error {
		return a.vm.Leave(ctx, roomID)
	}, func() {
		a.renderRooms()
		a.pages.Reset(pageRooms)
		a.app.SetFocus(a.rooms)
		a.flash.Info("Left " + roomID)
	})
}

func (a *App) runSearch(query string) {
	a.search.SetQuery(query)
	a.do("search", func(ctx context.Context) error {
		hits, err := a.vm.Search(ctx, query, "")
		if err != nil {
			return err
		}
		names := a.vm.RoomNames()
		a.app.QueueUpdate(func() {
			a.search.Update(hits, names)
			a.app.SetFocus(a.search.Results())
		})
		return nil
	}, nil)
}

func (a *App) showCalendar(year int, month time.Month) {
	a.do("calendar", func(ctx context.Context) error {
		resp, err := a.vm.Month(ctx, year, int(month))
		if err != nil {
			return err
		}
		a.app.QueueUpdate(func() { a.calendar.Update(resp) })
		return nil
	}, func() { a.show(pageCalendar) })
}

func (a *App) reloadHolidays() {
	var dates int
	a.do("reload holidays", func(ctx context.Context) (err error) {
		dates, err = a.vm.ReloadHolidays(ctx)
		return err
	}, func() {
		a.flash.Info(fmt.Sprintf("Holiday feed loaded: %d dates", dates))
		a.showCalendar(a.calendar.Month())
	})
}

func (a *App) showDigest() {
	a.do("digest", func(ctx context.Context) error {
		rooms, err := a.vm.Digest(ctx)
		if err != nil {
			return err
		}
		parts := make([]string, 0, len(rooms))
		for _, r := range rooms {
			parts = append(parts, fmt.Sprintf("%s (%d)", r.Name, r.Unread))
		}
		a.app.QueueUpdate(func() {
			if len(parts) == 0 {
				a.flash.Info("Nothing unread")
				return
			}
			a.flash.Info("Unread: " + strings.Join(parts, ", "))
		})
		return nil
	}, nil)
}

func (a *App) runCommand(cmd Command) {
	if err := cmd.Validate(); err != nil {
		a.flash.Warn(err.Error())
		a.flashBar.Update(a.flash.GetMessage())
		return
	}
	switch cmd.Name {
	case "dm":
		a.do("open dm", func(ctx context.Context) error {
			return a.vm.OpenDM(ctx, cmd.Args)
		}, func() {
			a.thread.SetRoom(a.vm.RoomID(), a.vm.RoomName(a.vm.RoomID()))
			a.thread.Update(a.vm.Messages())
			a.show(pageThread)
		})
	case "join":
		a.acceptInvite(cmd.Args)
	case "leave":
		roomID := cmd.Args
		if roomID == "" {
			roomID = a.vm.RoomID()
		}
		if roomID == "" {
			a.flash.Warn("no room open")
			a.flashBar.Update(a.flash.GetMessage())
			return
		}
		a.leave(roomID)
	case "read":
		a.markRead()
	case "search":
		a.show(pageSearch)
		if cmd.Args != "" {
			a.runSearch(cmd.Args)
		}
	case "tab":
		a.switchTab(cmd.Args)
	case "recent":
		a.show(pageRecent)
	case "digest":
		a.showDigest()
	case "cal":
		a.showCalendar(a.calendar.Today())
	case "help":
		a.show(pageHelp)
	case "quit":
		a.Stop()
	}
}

func (a *App) helpSections() []views.HelpSection {
	entries := func(actions []*keys.Action, skip map[*keys.Action]bool) []views.HelpEntry {
		var out []views.HelpEntry
		for _, act := range actions {
			if !skip[act] {
				out = append(out, views.HelpEntry{Key: act.KeyLabel(), Description: act.Description})
			}
		}
		return out
	}

	global := a.registry.Bindings("")
	skip := make(map[*keys.Action]bool, len(global))
	for _, act := range global {
		skip[act] = true
	}
	sections := []views.HelpSection{{Title: "Global Keys", Entries: entries(global, nil)}}
	for _, page := range []string{pageRooms, pageThread, pageCalendar, pageSearch} {
		sections = append(sections, views.HelpSection{
			Title:   a.components[page].Name(),
			Entries: entries(a.registry.Bindings(page), skip),
		})
	}

	var cmds []views.HelpEntry
	for _, def := range Commands {
		cmds = append(cmds, views.HelpEntry{Key: ":" + def.Usage, Description: def.Description})
	}
	return append(sections, views.HelpSection{Title: "Commands", Entries: cmds})
}

func (a *App) renderStatus() {
	s := a.vm.Status()
	if s == nil {
		return
	}
	a.thread.SetSelf(s.UserID)
	a.logo.SetServer(s.UserID)
	a.info.Update(&ui.SessionData{
		Session: a.session,
		UserID:  s.UserID,
		Status:  s.State,
		Reason:  s.Reason,
		Online:  s.Online,
		Unread:  s.UnreadTotal,
		Uptime:  a.vm.Uptime(),
	})
}

func (a *App) renderRooms() {
	a.rooms.Update(a.vm.Tab(), a.vm.Rooms())
	a.recent.Update(a.vm.Recent())
}

// reload fetches the state named by changes and redraws it.
func (a *App) reload(changes model.Change) {
	ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
	defer cancel()

	var errs []error
	if changes&model.ChangeStatus != 0 {
		errs = append(errs, a.vm.LoadStatus(ctx))
	}
	if changes&model.ChangeRooms != 0 {
		errs = append(errs, a.vm.LoadRooms(ctx))
	}
	timeline := changes&model.ChangeTimeline != 0 && a.vm.RoomID() != ""
	if timeline {
		errs = append(errs, a.vm.LoadMessages(ctx))
	}
	notices := a.vm.TakeNotices()
	err := errors.Join(errs...)

	a.app.QueueUpdateDraw(func() {
		a.renderStatus()
		if changes&model.ChangeRooms != 0 {
			a.renderRooms()
		}
		if timeline {
			a.thread.Update(a.vm.Messages())
		}
		if len(notices) > 0 {
			a.flash.Notice(notices[len(notices)-1], len(notices)-1)
		}
		if err != nil && a.ctx.Err() == nil {
			a.flash.Err(err)
		}
		a.flashBar.Update(a.flash.GetMessage())
	})
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case msg := <-a.flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&msg) })
		case <-a.vm.RefreshCh():
			a.reload(a.vm.TakeChanges())
		case <-ticker.C:
			a.reload(model.ChangeStatus)
		case <-a.ctx.Done():
			return
		}
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
		_ = a.vm.SetFocus(ctx, true)
		cancel()
		a.reload(model.ChangeStatus | model.ChangeRooms)
		go a.refreshLoop()
		_ = a.vm.Watch(a.ctx)
	}()

	err := a.app.Run()
	a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = a.vm.SetFocus(ctx, false)
	return err
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
