package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/pkg/shared/mcpjsonrpc"
)

// InitializeUseCase performs the server side of the handshake and remembers
// that it happened. Re-initialization is a no-op that returns the same payload.
type InitializeUseCase struct {
	result      mcpjsonrpc.InitializeResult
	initialized atomic.Bool
	logger      *slog.Logger
}

// NewInitializeUseCase creates a new InitializeUseCase for the given server identity.
func NewInitializeUseCase(serverInfo mcpjsonrpc.Implementation, logger *slog.Logger) *InitializeUseCase {
	return &InitializeUseCase{
		result: mcpjsonrpc.InitializeResult{
			ProtocolVersion: mcpjsonrpc.ProtocolVersion,
			Capabilities: mcpjsonrpc.ServerCapabilities{
				Tools: &mcpjsonrpc.ToolsCapability{ListChanged: false},
			},
			ServerInfo: serverInfo,
		},
		logger: logger.With("usecase", "Initialize"),
	}
}

// Execute completes the handshake and returns server identity and capabilities.
func (uc *InitializeUseCase) Execute(ctx context.Context, params mcpjsonrpc.InitializeParams) mcpjsonrpc.InitializeResult {
	log := uc.logger.With(
		slog.String("client_name", params.ClientInfo.Name),
		slog.String("client_version", params.ClientInfo.Version),
	)
	if params.ProtocolVersion != "" && params.ProtocolVersion != mcpjsonrpc.ProtocolVersion {
		log.Warn("Client requested a different protocol version, answering with ours",
			slog.String("requested", params.ProtocolVersion),
			slog.String("served", mcpjsonrpc.ProtocolVersion))
	}

	if uc.initialized.Swap(true) {
		log.Debug("Session already initialized, returning cached handshake")
	} else {
		log.Info("Session initialized")
	}
	return uc.result
}

// Initialized reports whether a handshake has completed.
func (uc *InitializeUseCase) Initialized() bool {
	return uc.initialized.Load()
}

// RequireInitialized returns ErrNotInitialized until the handshake has completed.
func (uc *InitializeUseCase) RequireInitialized() error {
	if !uc.initialized.Load() {
		return ErrNotInitialized
	}
	return nil
}

// ServerInfo returns the identity announced during the handshake.
func (uc *InitializeUseCase) ServerInfo() mcpjsonrpc.Implementation {
	return uc.result.ServerInfo
}

// Capabilities returns the capabilities announced during the handshake.
func (uc *InitializeUseCase) Capabilities() mcpjsonrpc.ServerCapabilities {
	return uc.result.Capabilities
}
