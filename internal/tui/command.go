package tui

import (
	"fmt"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':'). Aliases
// resolve to their command name.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	for _, def := range Commands {
		for _, alias := range def.Aliases {
			if cmd.Name == alias {
				cmd.Name = def.Name
			}
		}
	}
	return cmd
}

// CommandDef documents one prompt command.
type CommandDef struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	NeedsArgs   bool
}

// Commands lists the prompt commands in help order.
var Commands = []CommandDef{
	{Name: "dm", Usage: "dm <@user:server>", Description: "Open a direct message", NeedsArgs: true},
	{Name: "join", Usage: "join <!room>", Description: "Accept an invite", NeedsArgs: true},
	{Name: "leave", Usage: "leave [!room]", Description: "Leave a room (default: open room)"},
	{Name: "read", Usage: "read", Description: "Mark the open room read"},
	{Name: "search", Aliases: []string{"s"}, Usage: "search <query>", Description: "Search stored messages"},
	{Name: "tab", Usage: "tab <dms|rooms|invites>", Description: "Switch room list tab", NeedsArgs: true},
	{Name: "recent", Usage: "recent", Description: "Recently opened rooms"},
	{Name: "digest", Usage: "digest", Description: "Rooms with unread messages"},
	{Name: "cal", Aliases: []string{"calendar", "holidays"}, Usage: "cal", Description: "Holiday calendar"},
	{Name: "help", Aliases: []string{"h"}, Usage: "help", Description: "Show this help"},
	{Name: "quit", Aliases: []string{"q"}, Usage: "quit", Description: "Quit application"},
}

// Validate reports unknown commands and missing arguments.
func (c Command) Validate() error {
	for _, def := range Commands {
		if def.Name != c.Name {
			continue
		}
		if def.NeedsArgs && c.Args == "" {
			return fmt.Errorf("usage: %s", def.Usage)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", c.Name)
}
