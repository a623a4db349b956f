package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/matheus3301/typec/internal/config"
	"github.com/matheus3301/typec/internal/lock"
	"github.com/matheus3301/typec/internal/session"
	"github.com/matheus3301/typec/internal/tui/client"
	"github.com/spf13/cobra"
)

func newStatusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Session.GetStatus(ctx)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), resp, func(w io.Writer) {
					state := resp.State
					if resp.Reason != "" {
						state += " (" + resp.Reason + ")"
					}
					fmt.Fprintf(w, "Session: %s\n", resp.Session)
					fmt.Fprintf(w, "User:    %s\n", resp.UserID)
					fmt.Fprintf(w, "Status:  %s\n", state)
					fmt.Fprintf(w, "Unread:  %d\n", resp.UnreadTotal)
					fmt.Fprintf(w, "Uptime:  %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
				})
			})
		},
	}
}

func newSyncCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect the sync loop",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show sync status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Sync.GetSyncStatus(ctx)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), resp, func(w io.Writer) {
					fmt.Fprintf(w, "State:        %s\n", resp.State)
					if resp.Reason != "" {
						fmt.Fprintf(w, "Reason:       %s\n", resp.Reason)
					}
					fmt.Fprintf(w, "Online:       %v\n", resp.Online)
					fmt.Fprintf(w, "Last event:   %s\n", orDash(resp.LastEventTs))
					fmt.Fprintf(w, "Bus dropped:  %d\n", resp.BusDropped)
				})
			})
		},
	})
	return cmd
}

func newWatchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [prefix...]",
		Short: "Stream daemon events until interrupted",
		Long: `Stream daemon events. Prefixes filter by event kind, for example
"notify." or "rooms.". Without prefixes every kind except raw sync traffic
is shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := o.sessionName()
			if err != nil {
				return err
			}
			c, err := client.New(session.SocketPath(name))
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stream, err := c.Sync.WatchEvents(cmd.Context(), args...)
			if err != nil {
				return err
			}
			for {
				env, err := stream.Recv()
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				_ = o.print(cmd.OutOrStdout(), env, func(w io.Writer) {
					ts := time.UnixMilli(env.OccurredAtMs).Format("15:04:05")
					fmt.Fprintf(w, "%s %-24s %s\n", ts, env.Kind, env.Payload)
				})
			}
		},
	}
}

func newStateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the open room, focus and recent rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Rooms.GetState(ctx)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), resp, func(w io.Writer) {
					fmt.Fprintf(w, "Open room: %s\n", orDash(resp.CurrentRoomID))
					fmt.Fprintf(w, "Focused:   %v\n", resp.HasFocus)
					fmt.Fprintf(w, "Tab:       %s\n", resp.Tab)
					for i, r := range resp.Recent {
						fmt.Fprintf(w, "  %d. %s (%s)\n", i+1, r.Name, r.RoomID)
					}
				})
			})
		},
	}
}

type sessionInfo struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Default bool   `json:"default"`
}

func newSessionsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := session.List()
			if err != nil {
				return err
			}
			current := session.Resolve("")
			infos := make([]sessionInfo, 0, len(names))
			for _, n := range names {
				pid := lock.Holder(session.Dir(n))
				infos = append(infos, sessionInfo{
					Name: n, Path: session.Dir(n), Running: pid > 0, PID: pid, Default: n == current,
				})
			}
			return o.print(cmd.OutOrStdout(), infos, func(w io.Writer) {
				if len(infos) == 0 {
					fmt.Fprintln(w, "No sessions found.")
					return
				}
				for _, s := range infos {
					running := "stopped"
					if s.Running {
						running = fmt.Sprintf("running, pid %d", s.PID)
					}
					marker := " "
					if s.Default {
						marker = "*"
					}
					fmt.Fprintf(w, "%s %-20s %s (%s)\n", marker, s.Name, s.Path, running)
				}
			})
		},
	})
	return cmd
}

func newSessionCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Configure the default session",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "use <name>",
		Short: "Make name the default session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := session.ValidateName(name); err != nil {
				return err
			}
			path := session.ConfigPath()
			cfg, err := config.Load(path)
			if errors.Is(err, fs.ErrNotExist) {
				cfg, err = &config.Config{}, nil
			}
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			cfg.DefaultSession = name
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			return o.print(cmd.OutOrStdout(), map[string]string{"default_session": name}, func(w io.Writer) {
				fmt.Fprintf(w, "Default session is now %q\n", name)
			})
		},
	})
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
