package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"cronwork/internal/app"
)

func newRunCmd() *cobra.Command {
	var (
		cfgPath     string
		stopTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler until SIGINT/SIGTERM (SIGHUP reloads the config)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewApp(cfgPath)
			if err != nil {
				return fmt.Errorf("load: %w", err)
			}

			sigs := make(chan os.Signal, 4)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer signal.Stop(sigs)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := a.Start(ctx); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			sdNotify(daemon.SdNotifyReady)

			reason := waitForStop(ctx, a, sigs)

			sdNotify(daemon.SdNotifyStopping)
			stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
			defer stopCancel()
			_ = a.Stop(stopCtx, reason)

			if reason == app.StopFatalError {
				return fmt.Errorf("fatal: %w", a.Err())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "./cronwork.yaml", "path to the config file (yaml or json)")
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 15*time.Second, "upper bound for graceful shutdown")
	return cmd
}

func waitForStop(ctx context.Context, a *app.App, sigs <-chan os.Signal) app.StopReason {
	for {
		select {
		case <-ctx.Done():
			return app.StopAppStop
		case <-a.Done():
			return app.StopFatalError
		case s := <-sigs:
			switch s {
			case syscall.SIGHUP:
				sdNotify(daemon.SdNotifyReloading)
				if err := a.Reload(ctx); err != nil {
					fmt.Fprintln(os.Stderr, "reload:", err)
				}
				sdNotify(daemon.SdNotifyReady)
			case syscall.SIGTERM:
				return app.StopSIGTERM
			default:
				return app.StopSIGINT
			}
		}
	}
}

// sdNotify is a no-op outside systemd (NOTIFY_SOCKET unset).
func sdNotify(state string) {
	_, _ = daemon.SdNotify(false, state)
}
