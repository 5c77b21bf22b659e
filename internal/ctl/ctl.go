// Package ctl implements clipforgectl, the operator CLI for inspecting and
// maintaining the job store.
package ctl

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/models"
	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/ports"
	"clipforge/internal/worker"
)

const timeLayout = "2006-01-02 15:04:05"

// Env is how commands reach the backends. The queue is opened only by
// requeue and by queue, which reports the broker depth.
type Env struct {
	OpenStore func(ctx context.Context) (ports.Store, error)
	OpenQueue func(ctx context.Context, store ports.JobStore) (ports.JobQueue, error)
	Now       func() time.Time
}

func NewRootCmd(env Env) *cobra.Command {
	if env.Now == nil {
		env.Now = time.Now
	}
	root := &cobra.Command{
		Use:           "clipforgectl",
		Short:         "Inspect and maintain the ClipForge job queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		listCmd(env),
		queueCmd(env),
		showCmd(env),
		cleanupCmd(env),
		requeueCmd(env),
	)
	return root
}

// withStore opens the store for the duration of fn.
func withStore(cmd *cobra.Command, env Env, fn func(ctx context.Context, s ports.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := env.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func listCmd(env Env) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := models.JobStatus(strings.ToLower(status))
			if st != "" && !st.Valid() {
				return apperrors.ValidationField("status", "unknown job status: "+status)
			}
			return withStore(cmd, env, func(ctx context.Context, s ports.Store) error {
				jobs, err := s.List(ctx, models.JobFilter{Status: st, Limit: limit})
				if err != nil {
					return err
				}
				return printJobs(cmd.OutOrStdout(), jobs)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (queued, processing, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum jobs to show")
	return cmd
}

func printJobs(out io.Writer, jobs []models.Job) error {
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(out, "No jobs found.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tCREATED\tTITLE")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\n",
			j.ID, j.Status, j.Progress, j.CreatedAt.Local().Format(timeLayout), truncate(j.VideoData.Title, 30))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "Total: %d jobs\n", len(jobs))
	return err
}

func queueCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show per-status counts and the pending queue in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, env, func(ctx context.Context, s ports.Store) error {
				counts, err := s.Counts(ctx)
				if err != nil {
					return err
				}
				ids, err := s.QueuedIDs(ctx)
				if err != nil {
					return err
				}
				processing, err := s.List(ctx, models.JobFilter{Status: models.JobProcessing, Limit: 50})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, st := range []models.JobStatus{models.JobQueued, models.JobProcessing, models.JobCompleted, models.JobFailed} {
					fmt.Fprintf(out, "%-11s %d\n", st+":", counts[st])
				}
				if len(ids) > 0 {
					fmt.Fprintln(out, "\nQueued jobs:")
					for i, id := range ids {
						title := ""
						if j, err := s.Get(ctx, id); err == nil {
							title = j.VideoData.Title
						}
						fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, title, id)
					}
				}
				if len(processing) > 0 {
					fmt.Fprintln(out, "\nProcessing jobs:")
					for _, j := range processing {
						fmt.Fprintf(out, "  - %s (%d%%) %s\n", j.VideoData.Title, j.Progress, j.Message)
					}
				}
				printBrokerDepth(ctx, out, env, s)
				return nil
			})
		},
	}
}

// lengther is implemented by queues that hold ids outside the store.
type lengther interface {
	Len(ctx context.Context) (int64, error)
}

// printBrokerDepth shows how many ids the broker holds. The count can differ
// from the queued total: recovery pushes duplicates, and a claimed id is
// popped before its job leaves queued.
func printBrokerDepth(ctx context.Context, out io.Writer, env Env, s ports.Store) {
	if env.OpenQueue == nil {
		return
	}
	q, err := env.OpenQueue(ctx, s)
	if err != nil {
		fmt.Fprintf(out, "\nbroker:     unavailable (%v)\n", err)
		return
	}
	defer q.Close()
	l, ok := q.(lengther)
	if !ok {
		return
	}
	n, err := l.Len(ctx)
	if err != nil {
		fmt.Fprintf(out, "\nbroker:     unavailable (%v)\n", err)
		return
	}
	fmt.Fprintf(out, "\nbroker:     %d ids waiting\n", n)
}

func showCmd(env Env) *cobra.Command {
	var jobID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one job in detail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, env, func(ctx context.Context, s ports.Store) error {
				j, err := s.Get(ctx, jobID)
				if err != nil {
					return err
				}
				printJob(cmd.OutOrStdout(), j)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&jobID, "job-id", "", "job id")
	_ = cmd.MarkFlagRequired("job-id")
	return cmd
}

func printJob(out io.Writer, j *models.Job) {
	fmt.Fprintf(out, "ID:        %s\n", j.ID)
	fmt.Fprintf(out, "Status:    %s\n", j.Status)
	fmt.Fprintf(out, "Progress:  %d%%\n", j.Progress)
	fmt.Fprintf(out, "Message:   %s\n", j.Message)
	fmt.Fprintf(out, "Created:   %s\n", formatTime(&j.CreatedAt))
	fmt.Fprintf(out, "Started:   %s\n", formatTime(j.StartedAt))
	fmt.Fprintf(out, "Completed: %s\n", formatTime(j.CompletedAt))

	d := j.VideoData
	fmt.Fprintf(out, "\nTitle:  %s\nFormat: %s\nStyle:  %s\nVoice:  %s\n", d.Title, d.Format, d.Style, d.Voice)

	if j.Result != nil {
		fmt.Fprintf(out, "\nVideo ID: %d\nPath:     %s\n", j.Result.ID, j.Result.Path)
	}
	if j.Status == models.JobFailed && j.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", truncate(j.Error, 200))
	}
}

func cleanupCmd(env Env) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete finished jobs older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, env, func(ctx context.Context, s ports.Store) error {
				n, err := worker.CleanupOldJobs(ctx, s, days, env.Now())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d old jobs (older than %d days)\n", n, days)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "days to keep finished jobs")
	return cmd
}

// requeueCmd returns a job stuck in processing to the head of the queue.
func requeueCmd(env Env) *cobra.Command {
	var jobID string
	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Put a stuck processing job back in the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, env, func(ctx context.Context, s ports.Store) error {
				if err := s.Requeue(ctx, jobID); err != nil {
					return err
				}
				q, err := env.OpenQueue(ctx, s)
				if err != nil {
					return err
				}
				defer q.Close()
				if err := q.Push(ctx, jobID); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Requeued %s\n", jobID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&jobID, "job-id", "", "job id")
	_ = cmd.MarkFlagRequired("job-id")
	return cmd
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "N/A"
	}
	return t.Local().Format(timeLayout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
