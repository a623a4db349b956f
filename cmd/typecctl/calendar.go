package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/matheus3301/typec/internal/tui/client"
	"github.com/spf13/cobra"
)

func newHolidaysCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "holidays [YYYY-MM-DD]",
		Short: "List holidays on a date (default: today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := ""
			if len(args) == 1 {
				date = args[0]
			}
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Calendar.Holidays(ctx, date)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), resp, func(w io.Writer) {
					if len(resp.Holidays) == 0 {
						fmt.Fprintf(w, "%s: no holidays\n", resp.Date)
						return
					}
					for _, h := range resp.Holidays {
						fmt.Fprintf(w, "%s: %s\n", resp.Date, h.Summary)
					}
				})
			})
		},
	}
}

func newMonthCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "month [YYYY MM]",
		Short: "List holidays of a month (default: this month)",
		Args: cobra.MatchAll(cobra.MaximumNArgs(2), func(_ *cobra.Command, args []string) error {
			if len(args) == 1 {
				return fmt.Errorf("month needs both a year and a month")
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			var year, month int
			if len(args) == 2 {
				var err error
				if year, err = strconv.Atoi(args[0]); err != nil {
					return fmt.Errorf("year: %w", err)
				}
				if month, err = strconv.Atoi(args[1]); err != nil {
					return fmt.Errorf("month: %w", err)
				}
			}
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Calendar.Month(ctx, year, month)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), resp, func(w io.Writer) {
					days := make([]int, 0, len(resp.Days))
					for d := range resp.Days {
						days = append(days, d)
					}
					sort.Ints(days)
					if len(days) == 0 {
						fmt.Fprintf(w, "%04d-%02d: no holidays\n", resp.Year, resp.Month)
					}
					for _, d := range days {
						for _, h := range resp.Days[d] {
							fmt.Fprintf(w, "%04d-%02d-%02d: %s\n", resp.Year, resp.Month, d, h.Summary)
						}
					}
				})
			})
		},
	}
}

func newReloadHolidaysCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reload-holidays",
		Short: "Refetch the holiday feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.call(cmd, func(ctx context.Context, c *client.Client) error {
				n, err := c.Calendar.Reload(ctx)
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), map[string]int{"dates": n}, func(w io.Writer) {
					fmt.Fprintf(w, "Loaded holidays for %d dates\n", n)
				})
			})
		},
	}
}
