package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/inbound/stdio"
)

const (
	engineNative = "native"
	engineMCPGo  = "mcp-go"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tools over stdin/stdout",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("engine", engineNative, "Protocol engine: native | mcp-go")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	engine, _ := cmd.Flags().GetString("engine")
	if engine != engineNative && engine != engineMCPGo {
		return fmt.Errorf("unknown engine %q, want %s or %s", engine, engineNative, engineMCPGo)
	}

	ctx := cmd.Context()
	rt, closeFn, err := setup(ctx, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer closeFn()

	logger := rt.logger.With(slog.String("engine", engine))
	logger.Info("Starting in STDIO mode")

	switch engine {
	case engineMCPGo:
		bridge := rt.app.bridge()
		if _, err := bridge.Sync(ctx); err != nil {
			logger.Error("Failed to publish tools on mcp-go server", slog.Any("error", err))
			return err
		}
		err = bridge.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	default:
		err = stdio.NewServer(rt.app.router, logger).Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	rt.otel.logMetricsSummary(ctx, logger)
	if err != nil && ctx.Err() == nil {
		logger.Error("STDIO server error", slog.Any("error", err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the available tools as JSON",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}
}

func runTools(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, closeFn, err := setup(ctx, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer closeFn()

	proxy, err := rt.app.connect(ctx)
	if err != nil {
		return err
	}
	defer proxy.Close()

	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"client": proxy.Info(),
		"tools":  proxy.ListTools(),
	})
}

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <tool> [json-arguments]",
		Short: "Call one tool and print the outcome as JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runCall,
	}
	cmd.Flags().Bool("stats", false, "Also print server statistics after the call")
	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	withStats, _ := cmd.Flags().GetBool("stats")

	arguments := map[string]any{}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &arguments); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

	ctx := cmd.Context()
	rt, closeFn, err := setup(ctx, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer closeFn()

	proxy, err := rt.app.connect(ctx)
	if err != nil {
		return err
	}
	defer proxy.Close()

	outcome := proxy.CallTool(ctx, args[0], arguments)
	out := map[string]any{"outcome": outcome}
	if withStats {
		stats, err := rt.app.stats.Execute(ctx)
		if err != nil {
			return err
		}
		out["stats"] = stats
	}
	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if !outcome.Success {
		return fmt.Errorf("tool %s failed: %s", args[0], outcome.Error)
	}
	return nil
}
