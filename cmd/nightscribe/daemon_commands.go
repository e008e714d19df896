package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"nightscribe/internal/ipc"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Finish the current job, then stop taking new work",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.StopAfterCurrent(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Runner will pause after the current job finishes")
				return nil
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume processing after a stop request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Resume(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Processing resumed")
				return nil
			})
		},
	}
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Sweep the watch folder for new audio files now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Scan()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Admitted %d file(s)\n", resp.Admitted)
				return nil
			})
		},
	}
}

func newShutdownCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Ask the daemon process to exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Shutdown(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Shutdown requested")
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				fmt.Fprintln(stdout, sectionHeader("Daemon", colorize))
				fmt.Fprintln(stdout, renderStatusLine("Running", boolState(status.Running), fmt.Sprintf("pid %d", status.PID), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Stop after current", stateInfo, yesNo(status.StopAfterCurrent), colorize))
				fmt.Fprintln(stdout, renderStatusLine("State file", stateInfo, status.StateFilePath, colorize))
				if status.WatchFolder != "" {
					fmt.Fprintln(stdout, renderStatusLine("Watch folder", stateInfo, status.WatchFolder, colorize))
				}
				fmt.Fprintln(stdout)

				fmt.Fprintln(stdout, sectionHeader("Queue", colorize))
				rows := buildQueueStatusRows(status.QueueCounts)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				columns := []tableColumn{{title: "Status"}, {title: "Count", numeric: true}}
				fmt.Fprintln(stdout, renderTable(columns, rows))
				return nil
			})
		},
	}
}

func buildQueueStatusRows(counts map[string]int) [][]string {
	names := make([]string, 0, len(counts))
	for name, count := range counts {
		if count > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, fmt.Sprintf("%d", counts[name])})
	}
	return rows
}

func boolState(value bool) checkState {
	if value {
		return stateOK
	}
	return stateWarn
}
