package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/configs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "toolcall",
		Short:        "Tool-calling server and client over JSON-RPC",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newToolsCmd(), newCallCmd())
	return root
}

// deps bundles what every subcommand needs.
type deps struct {
	cfg    *configs.Config
	logger *slog.Logger
	otel   *otelProviders
	app    *app
}

// setup loads configuration, builds the logger and wires the application.
// Logs go to logOut; close must be called when the command finishes.
func setup(ctx context.Context, logOut io.Writer, toFile bool) (*deps, func(), error) {
	cfg, err := configs.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := cfg.ParsedLogLevel()
	var logFile *os.File
	if toFile {
		// In stdio mode, log to a file to avoid interfering with protocol traffic.
		logFile, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logOut = io.Discard
		} else {
			logOut = logFile
		}
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	logger.Info("Logger initialized.", slog.String("level", logLevel.String()))

	closeLog := func() {
		if logFile != nil {
			_ = logFile.Close()
		}
	}

	providers, err := initOtelProvider(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry.", slog.Any("error", err))
		closeLog()
		return nil, nil, err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application.", slog.Any("error", err))
		_ = providers.shutdown(context.Background())
		closeLog()
		return nil, nil, err
	}

	closeFn := func() {
		a.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := providers.shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry providers.", slog.Any("error", err))
		}
		closeLog()
	}
	return &deps{cfg: cfg, logger: logger, otel: providers, app: a}, closeFn, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
