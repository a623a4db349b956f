package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/matheus3301/typec/internal/api"
	"github.com/matheus3301/typec/internal/tui/client"
	"github.com/spf13/cobra"
)

func printRooms(w io.Writer, rooms []api.Room) {
	if len(rooms) == 0 {
		fmt.Fprintln(w, "No rooms.")
		return
	}
	for _, r := range rooms {
		flags := ""
		switch {
		case r.Invited:
			flags = " [invite]"
		case r.Badge:
			flags = fmt.Sprintf(" [%d unread]", r.Unread)
		}
		fmt.Fprintf(w, "%-32s %-6s %s%s\n", r.RoomID, r.Kind, r.Name, flags)
	}
}

func newRoomsCmd(o *options) *cobra.Command {
	var tab, query string
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List rooms of a tab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				rooms, err := c.Rooms.ListRooms(ctx, tab, query)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), rooms, func(w io.Writer) { printRooms(w, rooms) })
			})
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "", "dms, rooms or invites (default: the session's tab)")
	cmd.Flags().StringVar(&query, "query", "", "filter by name")
	return cmd
}

func newDigestCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "List rooms with unread messages, busiest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				rooms, err := c.Rooms.Digest(ctx)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), rooms, func(w io.Writer) { printRooms(w, rooms) })
			})
		},
	}
}

func printMessages(w io.Writer, msgs []api.Message) {
	for _, m := range msgs {
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderID
		}
		body := m.Body
		if m.Attachment != nil {
			body = strings.TrimSpace(fmt.Sprintf("%s [%s %s %s]", body, m.Attachment.Kind, m.Attachment.Name, m.Attachment.State))
		}
		pending := ""
		if m.Local {
			pending = " (sending)"
		}
		fmt.Fprintf(w, "%s %s: %s%s\n", m.Time, sender, body, pending)
	}
}

func newSelectCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "select <room>",
		Short: "Open a room and print its timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Rooms.SelectRoom(ctx, args[0])
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), resp, func(w io.Writer) { printMessages(w, resp.Messages) })
			})
		},
	}
}

func newMessagesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "messages",
		Short: "Print the open room's timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messages.ListMessages(ctx)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), resp, func(w io.Writer) {
					if resp.RoomID == "" {
						fmt.Fprintln(w, "No room open.")
						return
					}
					printMessages(w, resp.Messages)
				})
			})
		},
	}
}

func newSendCmd(o *options) *cobra.Command {
	var roomID string
	cmd := &cobra.Command{
		Use:   "send <text...>",
		Short: "Send a text message (default: the open room)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				eventID, err := c.Messages.Send(ctx, roomID, strings.Join(args, " "))
				if err != nil {
					return err
				}
				resp := api.SendResponse{EventID: eventID}
				return o.print(cmd.OutOrStdout(), resp, func(w io.Writer) { fmt.Fprintf(w, "Sent %s\n", eventID) })
			})
		},
	}
	cmd.Flags().StringVar(&roomID, "room", "", "target room id")
	return cmd
}

func newReadCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "read [room]",
		Short: "Mark a room read (default: the open room)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID := ""
			if len(args) == 1 {
				roomID = args[0]
			}
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				return c.Rooms.MarkRead(ctx, roomID)
			})
		},
	}
}

func newDMCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dm <user>",
		Short: "Find or create a direct room with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				roomID, err := c.Rooms.OpenDM(ctx, args[0])
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), api.OpenDMResponse{RoomID: roomID}, func(w io.Writer) {
					fmt.Fprintln(w, roomID)
				})
			})
		},
	}
}

func newJoinCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "join <room>",
		Short: "Accept an invite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				return c.Rooms.AcceptInvite(ctx, args[0])
			})
		},
	}
}

func newLeaveCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "leave <room>",
		Short: "Leave a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				return c.Rooms.Leave(ctx, args[0])
			})
		},
	}
}

func newSearchCmd(o *options) *cobra.Command {
	var roomID string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Full-text search over stored messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				hits, err := c.Messages.Search(ctx, strings.Join(args, " "), roomID, limit)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), hits, func(w io.Writer) {
					if len(hits) == 0 {
						fmt.Fprintln(w, "No matches.")
						return
					}
					for _, h := range hits {
						fmt.Fprintf(w, "%s %s %s: %s\n", formatMillis(h.Timestamp), h.RoomID, h.SenderID, h.Snippet)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&roomID, "room", "", "restrict to one room")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	return cmd
}

func newOutboxCmd(o *options) *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "List queued and sent messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				entries, err := c.Messages.ListOutbox(ctx, status, limit)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), entries, func(w io.Writer) {
					if len(entries) == 0 {
						fmt.Fprintln(w, "Outbox empty.")
						return
					}
					for _, e := range entries {
						detail := e.EventID
						if e.Error != "" {
							detail = e.Error
						}
						fmt.Fprintf(w, "%s %-8s %s %q %s\n", formatMillis(e.CreatedAt), e.Status, e.RoomID, e.Body, detail)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (queued, sending, sent, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries")
	return cmd
}
