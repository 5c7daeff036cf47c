package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cronwork/internal/cron"
)

func newNextCmd() *cobra.Command {
	var (
		tz    string
		mode  string
		count int
		from  string
	)
	cmd := &cobra.Command{
		Use:   "next <trigger>",
		Short: "Print upcoming run times for a trigger",
		Long: `Print upcoming run times for a trigger.

A trigger is a number of seconds ("90"), a Go duration ("5m"), a shortcut
("@daily", "@every 90s") or a cron expression ("*/5 * * * *").`,
		Example: `  cronwork next 90
  cronwork next "@weekly" --tz Europe/Berlin -n 3
  cronwork next "30 2 * * 1-5" --mode standard`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trigger, err := cron.ParseTrigger(args[0])
			if err != nil {
				return err
			}
			loc, err := cron.LoadLocation(tz)
			if err != nil {
				return err
			}
			m, err := cron.ParseMode(mode)
			if err != nil {
				return err
			}
			now := time.Now()
			if from != "" {
				if now, err = time.Parse(time.RFC3339, from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			if count < 1 {
				count = 1
			}

			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				next, err := cron.NextRun(trigger, loc, now, m)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, next.In(loc).Format(time.RFC3339))
				now = next
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tz, "tz", "", "IANA timezone (default UTC)")
	cmd.Flags().StringVar(&mode, "mode", "compat", "expression mode: compat or standard")
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of run times to print")
	cmd.Flags().StringVar(&from, "from", "", "start time in RFC3339 (default now)")
	return cmd
}
