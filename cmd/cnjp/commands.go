package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cnjp_news/internal/jst"
	"cnjp_news/internal/pipeline"
	"cnjp_news/internal/storage"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch, translate and archive once, then rebuild the home feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			r := a.runner()
			if n := a.notifier(); n != nil {
				r.SetNotifier(n)
			}

			sum, err := r.Run(cmd.Context())
			if errors.Is(err, storage.ErrLocked) {
				a.log.Info("another run is in progress, skipping")
				return nil
			}
			if err != nil {
				return err
			}
			a.log.Info("run finished",
				"day", sum.Day, "fetched", sum.Fetched, "failed_sources", sum.Failed,
				"skipped", sum.Skipped, "added", sum.Added, "fallbacks", sum.Fallbacks, "home", sum.HomeCount)
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var interval, streamsInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a schedule and answer Telegram commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if interval <= 0 {
				interval = a.cfg.Interval
			}

			ctx := cmd.Context()
			r := a.runner()
			n := a.notifier()

			g, ctx := errgroup.WithContext(ctx)
			if n != nil {
				r.SetNotifier(n)
				g.Go(func() error {
					n.Run(ctx)
					return nil
				})
			}
			if streamsInterval > 0 {
				job, err := a.streamJob(ctx)
				if err != nil {
					return err
				}
				g.Go(func() error {
					every(ctx, streamsInterval, func() {
						if _, err := job.Run(ctx); err != nil && ctx.Err() == nil {
							a.log.Error("stream job failed", "error", err)
						}
					})
					return nil
				})
			}
			g.Go(func() error {
				r.Loop(ctx, interval)
				return nil
			})

			a.log.Info("serving", "interval", interval, "streams_interval", streamsInterval)
			err = g.Wait()
			a.log.Info("stopped")
			return err
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "pipeline interval (default RUN_INTERVAL)")
	cmd.Flags().DurationVar(&streamsInterval, "streams-interval", 0, "also refresh live streams at this interval (0 disables)")
	return cmd
}

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Regenerate the home feed from the archives without fetching",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			count, err := a.runner().Rebuild(cmd.Context())
			if err != nil {
				return err
			}
			days, err := a.archive().Days()
			if err != nil {
				return err
			}
			a.log.Info("home feed rebuilt", "items", count, "archived_days", len(days))
			return nil
		},
	}
}

func newStreamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streams",
		Short: "Refresh the YouTube live-stream snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.streamJob(cmd.Context())
			if err != nil {
				return err
			}
			_, err = job.Run(cmd.Context())
			return err
		},
	}
}

func newRunsCmd() *cobra.Command {
	var job string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs from the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.db == nil {
				return fmt.Errorf("DATABASE_PATH is not set")
			}
			runs, err := a.db.ListRuns(cmd.Context(), job, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED (JST)\tSTATUS\tFETCHED\tADDED\tHOME\tDURATION\tERROR")
			for _, r := range runs {
				dur := "-"
				if r.FinishedAt != nil {
					dur = r.FinishedAt.Sub(r.StartedAt).String()
				}
				status := string(r.Status)
				if status == "" {
					status = "running"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					r.StartedAt.In(jst.Zone).Format("2006-01-02 15:04:05"), status,
					r.Fetched, r.Added, r.HomeCount, dur, r.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&job, "job", pipeline.JobNews, "job name")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

// every calls fn immediately and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func()) {
	fn()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
