package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon runtime status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.EngineStatus(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Zeus Daemon", colorize) {
				fmt.Fprintln(out, line)
			}

			runningKind := statusError
			runningMsg := "not running"
			if status.Running {
				runningKind = statusOK
				runningMsg = fmt.Sprintf("pid %d", status.PID)
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", runningKind, runningMsg, colorize))
			fmt.Fprintln(out, renderStatusLine("Job database", statusInfo, status.JobDBPath, colorize))
			if status.LastError != "" {
				fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, status.LastError, colorize))
			}

			names := make([]string, 0, len(status.JobCounts))
			for name := range status.JobCounts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(out, renderStatusLine("Jobs "+name, statusInfo,
					fmt.Sprintf("%d", status.JobCounts[name]), colorize))
			}
			return nil
		},
	}
}
