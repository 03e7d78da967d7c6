package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"zeus/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var requestID string
	var priority string
	var level string
	var model string
	var passes int

	cmd := &cobra.Command{
		Use:   "submit <video-source-url>",
		Short: "Submit a video for multi-pass transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			id := strings.TrimSpace(requestID)
			if id == "" {
				id = uuid.NewString()
			}

			resp, err := client.Submit(cmd.Context(), api.SubmitRequest{
				RequestID:       id,
				VideoSource:     strings.TrimSpace(args[0]),
				Priority:        priority,
				ComplianceLevel: level,
				WhisperModel:    model,
				NumPasses:       passes,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.Created {
				fmt.Fprintf(out, "Submitted job %d (request %s)\n", resp.Job.ID, resp.Job.RequestID)
			} else {
				fmt.Fprintf(out, "Request %s already accepted as job %d\n", resp.Job.RequestID, resp.Job.ID)
			}
			fmt.Fprintf(out, "Priority: %s, level: %s, model: %s, passes: %d\n",
				resp.Job.Priority, resp.Job.ComplianceLevel, resp.Job.WhisperModel, resp.Job.NumPasses)
			return nil
		},
	}

	cmd.Flags().StringVar(&requestID, "request-id", "", "Caller-supplied idempotency key (generated when omitted)")
	cmd.Flags().StringVar(&priority, "priority", "", "Job priority: low, normal, high, urgent")
	cmd.Flags().StringVar(&level, "level", "", "Compliance level: wcag_aa, eaa, section_508")
	cmd.Flags().StringVar(&model, "model", "", "Whisper model override")
	cmd.Flags().IntVar(&passes, "passes", 0, "Number of transcription passes (1-10)")
	return cmd
}
