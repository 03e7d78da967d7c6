package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newClusterCommand(ctx *commandContext) *cobra.Command {
	clusterCmd := &cobra.Command{
		Use:   "cluster",
		Short: "Observe and scale the transcription node pool",
	}
	clusterCmd.AddCommand(newClusterStatusCommand(ctx))
	clusterCmd.AddCommand(newClusterScaleCommand(ctx))
	return clusterCmd
}

func newClusterStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node pool size and queue pressure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.ClusterStatus(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Cluster", colorize) {
				fmt.Fprintln(out, line)
			}

			healthKind := statusOK
			if !strings.EqualFold(status.HealthStatus, "healthy") {
				healthKind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Health", healthKind, status.HealthStatus, colorize))
			fmt.Fprintln(out, renderStatusLine("Nodes", statusInfo,
				fmt.Sprintf("%d (target %d)", status.NodeCount, status.TargetNodes), colorize))
			fmt.Fprintln(out, renderStatusLine("Queue depth", statusInfo, strconv.Itoa(status.QueueDepth), colorize))
			fmt.Fprintln(out, renderStatusLine("Active jobs", statusInfo, strconv.Itoa(status.ActiveJobs), colorize))

			autoscaleMsg := "disabled"
			autoscaleKind := statusWarn
			if status.Autoscale {
				autoscaleMsg = "enabled"
				autoscaleKind = statusOK
			}
			fmt.Fprintln(out, renderStatusLine("Autoscale", autoscaleKind, autoscaleMsg, colorize))
			return nil
		},
	}
}

func newClusterScaleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scale <node-count>",
		Short: "Manually resize the node pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || nodes < 0 {
				return fmt.Errorf("invalid node count %q", args[0])
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if err := client.Scale(cmd.Context(), nodes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requested scale to %d node(s)\n", nodes)
			return nil
		},
	}
}
