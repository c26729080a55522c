package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/application"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/client"
)

const defaultWatchInterval = 5 * time.Second

func statusCmd(opts *rootOptions) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status <batch-id|batch-code>",
		Short: "Show reconciliation progress of a batch",
		Long: `Show how many crates of a batch have been reconciled.

With --watch the status is polled until every crate is reconciled or the
command is interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			out := cmd.OutOrStdout()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			batch, err := c.ResolveBatch(ctx, args[0])
			cancel()
			if err != nil {
				return describeError(args[0], err)
			}

			poll := func() (bool, error) {
				ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
				defer cancel()
				status, err := c.ReconciliationStatus(ctx, batch.ID)
				if err != nil {
					return false, err
				}
				printStatus(out, status)
				return status.IsFullyReconciled, nil
			}

			if !watch {
				_, err := poll()
				return err
			}
			if interval <= 0 {
				interval = defaultWatchInterval
			}
			return watchStatus(cmd.Context(), out, interval, poll)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "poll until the batch is fully reconciled")
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "poll interval for --watch")
	return cmd
}

// watchStatus polls until poll reports done or ctx ends. Transient errors are
// printed and polling continues.
func watchStatus(ctx context.Context, out io.Writer, interval time.Duration, poll func() (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := poll()
		if err != nil {
			if client.IsNotFound(err) {
				return err
			}
			fmt.Fprintf(out, "%s %v\n", warnColor.Sprint("poll failed:"), err)
		}
		if done {
			fmt.Fprintln(out, okColor.Sprint("All crates reconciled."))
			return nil
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Stopped watching.")
			return nil
		case <-ticker.C:
		}
	}
}

func printStatus(out io.Writer, s *application.ReconciliationStatus) {
	fmt.Fprintf(out, "[%s] %s %s %s %s\n",
		time.Now().Format("15:04:05"),
		s.BatchCode,
		statusLabel(string(s.Status)),
		progressBar(s.Percentage, 20),
		s.Label,
	)
	if s.MissingCrates > 0 && s.TotalCrates > 0 {
		fmt.Fprintf(out, "           %d crate(s) still to scan\n", s.MissingCrates)
	}
}
