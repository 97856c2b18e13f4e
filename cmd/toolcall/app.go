package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/configs"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/inbound/jsonrpc"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/inbound/mcpgo"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/builtin"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/invoker"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/memrepo"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/schemacheck"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/client"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/telemetry"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/usecase"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/pkg/shared/mcpjsonrpc"
)

// app is the wired server: registry, use cases and the protocol router.
type app struct {
	cfg    *configs.Config
	logger *slog.Logger

	executor   *invoker.Executor
	serverInfo mcpjsonrpc.Implementation
	serveTools *usecase.ServeToolsUseCase
	invokeTool *usecase.InvokeToolUseCase
	stats      *usecase.ServerStatsUseCase
	router     *jsonrpc.Router
}

func newApp(ctx context.Context, cfg *configs.Config, logger *slog.Logger) (*app, error) {
	logger.Info("Initializing dependencies...")

	root, err := filepath.Abs(cfg.WorkDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work directory: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	instruments, err := telemetry.FromGlobal()
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry instruments: %w", err)
	}

	checker := schemacheck.New(logger)
	registry := memrepo.NewRegistry(checker, logger)
	policy := builtin.FilePolicy{
		Root:              root,
		AllowedExtensions: cfg.AllowedFileExtensions,
		MaxFileSize:       cfg.MaxFileSize,
	}
	if err := builtin.Register(ctx, registry, policy, logger); err != nil {
		return nil, err
	}

	executor := invoker.NewExecutor(invoker.Options{
		Timeout:       cfg.ToolTimeout,
		MaxConcurrent: cfg.MaxConcurrentTools,
	}, logger)
	logger.Debug("Tool executor configured.",
		slog.Duration("timeout", cfg.ToolTimeout),
		slog.Int("max_concurrent", cfg.MaxConcurrentTools))

	serverInfo := mcpjsonrpc.Implementation{Name: cfg.ServerName, Version: cfg.ServerVersion}
	handshake := usecase.NewInitializeUseCase(serverInfo, logger)
	serveTools := usecase.NewServeToolsUseCase(registry, logger)
	invokeTool := usecase.NewInvokeToolUseCase(registry, checker, executor, instruments, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		executor:   executor,
		serverInfo: serverInfo,
		serveTools: serveTools,
		invokeTool: invokeTool,
		stats:      usecase.NewServerStatsUseCase(registry, handshake, logger),
		router:     jsonrpc.NewRouter(handshake, serveTools, invokeTool, instruments, logger),
	}, nil
}

// bridge publishes the registry on an mcp-go server.
func (a *app) bridge() *mcpgo.Bridge {
	return mcpgo.NewBridge(a.serverInfo, a.serveTools, a.invokeTool, a.logger)
}

// connect returns an initialized proxy talking to the router in process.
func (a *app) connect(ctx context.Context) (*client.Proxy, error) {
	proxy := client.New(client.NewInProcessTransport(a.router), client.Options{
		ClientInfo:  mcpjsonrpc.Implementation{Name: a.cfg.ClientName, Version: a.cfg.ClientVersion},
		CallTimeout: a.cfg.CallTimeout,
	}, a.logger)
	if !proxy.Initialize(ctx) {
		_ = proxy.Close()
		return nil, errors.New("failed to initialize client session")
	}
	return proxy, nil
}

func (a *app) Close() {
	a.executor.Close()
}
