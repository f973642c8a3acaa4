package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/a3tai/reportshield/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the audit tools over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol; keep logs quiet unless debugging.
		if !cfg.IsDebug() {
			zap.ReplaceGlobals(zap.NewNop())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := initPipeline(cfg)
		if err != nil {
			return err
		}

		server, err := mcp.NewServer(cfg, p)
		if err != nil {
			return err
		}
		return server.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
