package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/joss/navigator/internal/audit"
	"github.com/joss/navigator/internal/render"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the tool call trail",
		Long: `Query the tool calls recorded in audit.path.

Only tool names, outcomes and timings are recorded.`,
	}

	cmd.AddCommand(auditLogCmd(), auditStatsCmd())
	return cmd
}

func openAudit() (*audit.Store, error) {
	if cfg.Audit.Path == "" {
		return nil, errors.New("audit.path is not set")
	}
	return audit.Open(cfg.Audit.Path)
}

func auditLogCmd() *cobra.Command {
	var tool, status, requestID string
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent tool calls",
		Long: `Display recent tool calls with filters.

Examples:
  navigator audit log                     # Show recent calls
  navigator audit log --tool searchMedia  # One tool
  navigator audit log --status error      # Failures only
  navigator audit log --request <id>      # One chat request`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openAudit()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(context.Background(), audit.QueryFilter{
				Tool:      tool,
				Status:    audit.Status(status),
				RequestID: requestID,
				Limit:     limit,
			})
			if err != nil {
				return err
			}
			render.NewAudit(render.Stdout()).Entries(entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "", "Filter by tool name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (success, error)")
	cmd.Flags().StringVar(&requestID, "request", "", "Filter by request id")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries")
	return cmd
}

func auditStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show tool call statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openAudit()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(context.Background())
			if err != nil {
				return err
			}
			render.NewAudit(render.Stdout()).Stats(stats)
			return nil
		},
	}
}
