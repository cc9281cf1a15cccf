package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/reqpipe/internal/jobs"
	"github.com/cuongbtq/reqpipe/internal/report"
)

const commandTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "reqpipe",
		Short:         "Manage requirement-extraction jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	root.AddCommand(
		newCreateCmd(&configPath),
		newListCmd(&configPath),
		newGetCmd(&configPath),
		newCancelCmd(&configPath),
		newReportCmd(&configPath),
		newStatsCmd(&configPath),
		newStuckCmd(&configPath),
	)

	return root
}

func newCreateCmd(configPath *string) *cobra.Command {
	var document string

	cmd := &cobra.Command{
		Use:   "create <description>",
		Short: "Create a new extraction job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			job, err := a.manager.Create(ctx, args[0], document, nil)
			if err != nil {
				if errors.Is(err, jobs.ErrEmptyDescription) || errors.Is(err, jobs.ErrMissingDocument) {
					return fmt.Errorf("%v\nusage: reqpipe create <description> [--document <path-or-url>]", err)
				}
				return err
			}

			fmt.Printf("created job %s\n", job.JobID)
			return nil
		},
	}

	cmd.Flags().StringVar(&document, "document", "", "Source document path or URL")

	return cmd
}

func newListCmd(configPath *string) *cobra.Command {
	var status string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			list, err := a.manager.List(ctx, status, limit, offset)
			if err != nil {
				return err
			}

			if len(list) == 0 {
				fmt.Println("no jobs found")
				return nil
			}

			for _, job := range list {
				fmt.Printf("%s  %-10s  ext=%-10s val=%-10s  %s\n",
					job.JobID, job.Status,
					job.ExtractionStatus, job.ValidationStatus,
					job.Description,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by job status")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of jobs to skip")

	return cmd
}

func newGetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show job status and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			status, err := a.manager.GetStatus(ctx, args[0])
			if err != nil {
				return cliError(err)
			}

			completion, err := a.monitor.CheckCompletion(ctx, args[0])
			if err != nil {
				return cliError(err)
			}

			progress, err := a.monitor.ComputeProgress(ctx, args[0])
			if err != nil {
				return cliError(err)
			}

			job := status.Job
			fmt.Printf("job:        %s\n", job.JobID)
			fmt.Printf("desc:       %s\n", job.Description)
			fmt.Printf("status:     %s (completion: %s)\n", job.Status, completion)
			fmt.Printf("extraction: %s\n", job.ExtractionStatus)
			fmt.Printf("validation: %s\n", job.ValidationStatus)
			fmt.Printf("items:      %d total, %d pending, %d in_progress, %d integrated, %d rejected, %d failed\n",
				status.Counts.Total(), status.Counts.Pending, status.Counts.InProgress,
				status.Counts.Integrated, status.Counts.Rejected, status.Counts.Failed,
			)
			fmt.Printf("progress:   %.1f%%  elapsed: %s", status.ProgressPercent, progress.Elapsed.Round(time.Second))
			if progress.ETA != nil {
				fmt.Printf("  eta: %s", progress.ETA.Round(time.Second))
			}
			fmt.Println()
			return nil
		},
	}
}

func newCancelCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			cancelled, err := a.manager.Cancel(ctx, args[0])
			if err != nil {
				return err
			}

			if !cancelled {
				fmt.Println("job not cancelled (not found or already finished)")
				return nil
			}

			fmt.Printf("cancelled job %s\n", args[0])
			return nil
		},
	}
}

func newReportCmd(configPath *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "report <job-id>",
		Short: "Render a per-job report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			summary, err := a.reporter.Summary(ctx, args[0])
			if err != nil {
				return cliError(err)
			}

			return renderOutput(format, summary, func() string {
				return report.RenderSummaryText(summary)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}

func newStatsCmd(configPath *string) *cobra.Command {
	var days int
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show daily statistics over a trailing window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			stats, err := a.reporter.DailyStats(ctx, days)
			if err != nil {
				return err
			}

			return renderOutput(format, stats, func() string {
				return report.RenderDailyStatsText(stats)
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Window size in days")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}

func newStuckCmd(configPath *string) *cobra.Command {
	var stale time.Duration

	cmd := &cobra.Command{
		Use:   "stuck",
		Short: "List jobs that have stopped progressing",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			stuck, err := a.monitor.DetectStuckJobs(ctx, stale)
			if err != nil {
				return err
			}

			if len(stuck) == 0 {
				fmt.Println("no stuck jobs")
				return nil
			}

			for _, s := range stuck {
				fmt.Printf("%s  component=%-10s pending=%d  stalled=%s\n  %s\n",
					s.JobID, s.Component, s.PendingCount,
					s.StalledFor.Round(time.Second), s.Reason,
				)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&stale, "stale", 10*time.Minute, "Age threshold for considering a job stuck")

	return cmd
}

// cliError rewords not-found to a short message instead of an SQL-flavored one.
func cliError(err error) error {
	if errors.Is(err, jobs.ErrJobNotFound) {
		return errors.New("not found")
	}
	return err
}

func renderOutput(format string, v interface{}, text func() string) error {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Println(text())
	return nil
}
