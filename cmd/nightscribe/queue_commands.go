package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"nightscribe/internal/ipc"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Add an audio file to the transcription queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Add(absPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as job %s\n", filepath.Base(absPath), resp.Job.ID)
				return nil
			})
		},
	}
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(listStatuses)
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				columns := []tableColumn{
					{title: "ID"},
					{title: "Title"},
					{title: "Status"},
					{title: "Attempts", numeric: true},
					{title: "Created"},
					{title: "Error"},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(columns, buildQueueListRows(resp.Jobs)))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (pending, running, done, failed, skipped)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show the details of one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueDescribe(args[0])
				if err != nil {
					return err
				}
				printJobDetail(cmd, resp.Job)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all pending jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d pending job(s)\n", resp.Removed)
				return nil
			})
		},
	}
}

func buildQueueListRows(jobs []ipc.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			job.DisplayTitle,
			job.Status,
			fmt.Sprintf("%d", job.Attempts),
			job.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			job.ErrorMessage,
		})
	}
	return rows
}

func printJobDetail(cmd *cobra.Command, job ipc.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", job.ID)
	fmt.Fprintf(out, "Title:     %s\n", job.DisplayTitle)
	fmt.Fprintf(out, "Source:    %s\n", job.SourcePath)
	fmt.Fprintf(out, "Status:    %s\n", job.Status)
	fmt.Fprintf(out, "Attempts:  %d\n", job.Attempts)
	fmt.Fprintf(out, "Created:   %s\n", job.CreatedAt.Local().Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Fprintf(out, "Started:   %s\n", job.StartedAt.Local().Format(time.RFC3339))
	}
	if job.FinishedAt != nil {
		fmt.Fprintf(out, "Finished:  %s\n", job.FinishedAt.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(out, "Output:    %s\n", job.OutputDir)
	if job.LogPath != "" {
		fmt.Fprintf(out, "Job log:   %s\n", job.LogPath)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", job.ErrorMessage)
	}
	for name, path := range job.Artifacts {
		fmt.Fprintf(out, "Artifact:  %s = %s\n", name, path)
	}
}
