package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"zeus/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage transcription jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	return jobsCmd
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove completed jobs from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			result, err := client.ClearCompleted(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed job(s)\n", result.RemovedCount)
			return nil
		},
	}
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var states []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			views, err := client.ListJobs(cmd.Context(), states...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}

			rows := make([][]string, 0, len(views))
			for _, view := range views {
				rows = append(rows, []string{
					strconv.FormatInt(view.ID, 10),
					view.RequestID,
					view.Priority,
					view.State,
					fmt.Sprintf("%d/%d", view.SucceededPasses, view.NumPasses),
					scoreCell(view),
					view.UpdatedAt,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "REQUEST", "PRIORITY", "STATE", "PASSES", "SCORE", "UPDATED"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&states, "state", nil, "Filter by state (repeatable)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var showTranscript bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			view, err := client.GetJob(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %d (request %s)\n", view.ID, view.RequestID)
			fmt.Fprintf(out, "  State:    %s\n", view.State)
			fmt.Fprintf(out, "  Source:   %s\n", view.VideoSource)
			fmt.Fprintf(out, "  Priority: %s\n", view.Priority)
			fmt.Fprintf(out, "  Level:    %s\n", view.ComplianceLevel)
			fmt.Fprintf(out, "  Model:    %s\n", view.WhisperModel)
			fmt.Fprintf(out, "  Passes:   %d succeeded of %d\n", view.SucceededPasses, view.NumPasses)
			if view.ErrorDetail != "" {
				fmt.Fprintf(out, "  Error:    %s\n", view.ErrorDetail)
			}
			if view.Report != nil {
				fmt.Fprintf(out, "  Compliance: score %d, compliant %t (%d issues, %d warnings)\n",
					view.Report.Score, view.Report.Compliant, len(view.Report.Issues), len(view.Report.Warnings))
				for _, issue := range view.Report.Issues {
					fmt.Fprintf(out, "    issue: %s\n", issue)
				}
				for _, warning := range view.Report.Warnings {
					fmt.Fprintf(out, "    warning: %s\n", warning)
				}
			}
			if len(view.Outputs) > 0 {
				fmt.Fprintln(out, "  Outputs:")
				for format, uri := range view.Outputs {
					fmt.Fprintf(out, "    %s: %s\n", format, uri)
				}
			}
			if showTranscript {
				for _, segment := range view.Transcript {
					fmt.Fprintf(out, "  [%7.2f - %7.2f] %s\n", segment.Start, segment.End, segment.Text)
				}
			} else if count := len(view.Transcript); count > 0 {
				fmt.Fprintf(out, "  Transcript: %d segments (use --transcript to print)\n", count)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTranscript, "transcript", false, "Print the consolidated transcript")
	return cmd
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			result, err := client.CancelJob(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Cancelled {
				fmt.Fprintf(out, "Cancelled job %d\n", id)
			} else {
				fmt.Fprintf(out, "Job %d is already %s\n", id, result.State)
			}
			return nil
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>...",
		Short: "Requeue failed jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			var total int64
			for _, arg := range args {
				id, err := parseJobID(arg)
				if err != nil {
					return err
				}
				result, err := client.RetryJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				total += result.UpdatedCount
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d job(s)\n", total)
			return nil
		},
	}
}

func scoreCell(view api.JobView) string {
	if view.Report == nil {
		return "-"
	}
	return strconv.Itoa(view.Report.Score)
}

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}
