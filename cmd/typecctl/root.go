package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/matheus3301/typec/internal/session"
	"github.com/matheus3301/typec/internal/tui/client"
	"github.com/spf13/cobra"
)

type options struct {
	session string
	json    bool
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "typecctl",
		Short:         "Control a running typec daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.session, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&o.json, "json", false, "output in JSON format")
	root.PersistentFlags().DurationVar(&o.timeout, "timeout", 10*time.Second, "per-call timeout")

	root.AddCommand(
		newStatusCmd(o),
		newSyncCmd(o),
		newWatchCmd(o),
		newRoomsCmd(o),
		newStateCmd(o),
		newSelectCmd(o),
		newMessagesCmd(o),
		newSendCmd(o),
		newReadCmd(o),
		newSearchCmd(o),
		newOutboxCmd(o),
		newDigestCmd(o),
		newDMCmd(o),
		newJoinCmd(o),
		newLeaveCmd(o),
		newHolidaysCmd(o),
		newMonthCmd(o),
		newReloadHolidaysCmd(o),
		newSessionsCmd(o),
		newSessionCmd(o),
	)
	return root
}

func (o *options) sessionName() (string, error) {
	name := session.Resolve(o.session)
	if err := session.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// call dials the session daemon and runs fn with a bounded context.
func (o *options) call(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	name, err := o.sessionName()
	if err != nil {
		return err
	}
	c, err := client.New(session.SocketPath(name))
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()
	return fn(ctx, c)
}

// print writes v as indented JSON with --json, otherwise runs text.
func (o *options) print(w io.Writer, v any, text func(w io.Writer)) error {
	if o.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}
