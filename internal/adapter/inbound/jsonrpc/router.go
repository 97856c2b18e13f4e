package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/domain"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/telemetry"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/usecase"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/pkg/shared/mcpjsonrpc"
)

// Router validates request envelopes and dispatches them to the use cases.
// It holds no per-request state and is safe for concurrent use.
type Router struct {
	handshake  *usecase.InitializeUseCase
	serveTools *usecase.ServeToolsUseCase
	invokeTool *usecase.InvokeToolUseCase
	telemetry  *telemetry.Instruments
	logger     *slog.Logger
}

// NewRouter creates a new Router. A nil instruments disables tracing.
func NewRouter(
	handshake *usecase.InitializeUseCase,
	serveTools *usecase.ServeToolsUseCase,
	invokeTool *usecase.InvokeToolUseCase,
	instruments *telemetry.Instruments,
	logger *slog.Logger,
) *Router {
	if instruments == nil {
		instruments = telemetry.Noop()
	}
	return &Router{
		handshake:  handshake,
		serveTools: serveTools,
		invokeTool: invokeTool,
		telemetry:  instruments,
		logger:     logger.With("component", "jsonrpc_router"),
	}
}

// Handle decodes one raw request and returns the encoded response.
// The boolean is false when no response must be written (a notification).
func (r *Router) Handle(ctx context.Context, data []byte) ([]byte, bool) {
	var req mcpjsonrpc.Request
	if err := json.Unmarshal(data, &req); err != nil {
		var resp mcpjsonrpc.Response
		if json.Valid(data) {
			r.logger.Warn("Rejecting malformed envelope", slog.Any("error", err))
			resp = mcpjsonrpc.NewError(mcpjsonrpc.NullID, mcpjsonrpc.NewInvalidRequest(err.Error()))
		} else {
			r.logger.Warn("Rejecting unparsable request", slog.Any("error", err))
			resp = mcpjsonrpc.NewError(mcpjsonrpc.NullID, mcpjsonrpc.NewParseError(err))
		}
		return r.encode(resp), true
	}

	resp, ok := r.Serve(ctx, req)
	if !ok {
		return nil, false
	}
	return r.encode(resp), true
}

func (r *Router) encode(resp mcpjsonrpc.Response) []byte {
	out, err := json.Marshal(resp)
	if err != nil {
		r.logger.Error("Failed to encode response", slog.Any("error", err))
		out, _ = json.Marshal(mcpjsonrpc.NewError(resp.ID, mcpjsonrpc.NewInternalError("Internal error", err.Error())))
	}
	return out
}

// Serve processes a decoded request. Panics raised while serving it are
// reported as internal errors instead of escaping to the transport.
func (r *Router) Serve(ctx context.Context, req mcpjsonrpc.Request) (resp mcpjsonrpc.Response, ok bool) {
	log := r.logger.With(slog.String("method", req.Method), slog.String("id", req.ID.String()))
	ctx, span := r.telemetry.StartRequest(ctx, req.Method)

	defer func() {
		if recovered := recover(); recovered != nil {
			log.Error("Recovered from panic while serving request",
				slog.Any("panic", recovered), slog.String("stack", string(debug.Stack())))
			resp = mcpjsonrpc.NewError(req.ID, mcpjsonrpc.NewInternalError("Internal error", fmt.Sprint(recovered)))
			ok = !req.IsNotification()
		}
		if resp.Error != nil {
			telemetry.EndRequest(span, resp.Error.Code, resp.Error.Message)
		} else {
			telemetry.EndRequest(span, 0, "")
		}
	}()

	log.Debug("Serving request")
	return r.dispatch(ctx, log, req)
}

func (r *Router) dispatch(ctx context.Context, log *slog.Logger, req mcpjsonrpc.Request) (mcpjsonrpc.Response, bool) {
	// Envelope errors are answered even without an id: the message was never a valid notification.
	if req.Version != mcpjsonrpc.Version {
		log.Warn("Rejecting request with wrong protocol tag", slog.String("jsonrpc", req.Version))
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.NewInvalidRequest(fmt.Sprintf("jsonrpc must be %q", mcpjsonrpc.Version))), true
	}
	if req.Method == "" {
		log.Warn("Rejecting request without a method")
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.NewInvalidRequest("method is required")), true
	}

	call, rpcErr := mcpjsonrpc.DecodeCall(req)
	if rpcErr != nil {
		if req.IsNotification() {
			log.Debug("Ignoring undecodable notification", slog.String("reason", rpcErr.Message))
			return mcpjsonrpc.Response{}, false
		}
		log.Warn("Rejecting request", slog.Int("code", rpcErr.Code), slog.String("reason", rpcErr.Message))
		return mcpjsonrpc.NewError(req.ID, rpcErr), true
	}

	var result any
	switch c := call.(type) {
	case mcpjsonrpc.InitializeCall:
		result = r.handshake.Execute(ctx, c.Params)

	case mcpjsonrpc.InitializedNotification:
		log.Debug("Client confirmed initialization")
		result = struct{}{}

	case mcpjsonrpc.ListToolsCall:
		if err := r.handshake.RequireInitialized(); err != nil {
			rpcErr = notInitialized()
			break
		}
		tools, err := r.serveTools.Execute(ctx)
		if err != nil {
			rpcErr = mcpjsonrpc.NewInternalError("Internal error", err.Error())
			break
		}
		descriptors, err := Descriptors(tools)
		if err != nil {
			rpcErr = mcpjsonrpc.NewInternalError("Internal error", err.Error())
			break
		}
		result = mcpjsonrpc.ListToolsResult{Tools: descriptors}

	case mcpjsonrpc.CallToolCall:
		if err := r.handshake.RequireInitialized(); err != nil {
			rpcErr = notInitialized()
			break
		}
		result = r.invokeTool.ExecuteCall(ctx, c)

	default:
		rpcErr = mcpjsonrpc.NewInternalError("Internal error", fmt.Sprintf("unhandled call %T", call))
	}

	if req.IsNotification() {
		return mcpjsonrpc.Response{}, false
	}
	if rpcErr != nil {
		log.Warn("Request failed", slog.Int("code", rpcErr.Code), slog.String("message", rpcErr.Message))
		return mcpjsonrpc.NewError(req.ID, rpcErr), true
	}

	resp, err := mcpjsonrpc.NewResult(req.ID, result)
	if err != nil {
		log.Error("Failed to encode result", slog.Any("error", err))
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.NewInternalError("Internal error", err.Error())), true
	}
	return resp, true
}

// notInitialized is the error for tool methods sent before the handshake.
func notInitialized() *mcpjsonrpc.Error {
	return mcpjsonrpc.NewInternalError("Server not initialized", map[string]string{"reason": "not_initialized"})
}

// Descriptors converts domain tools into their wire form, preserving order.
func Descriptors(tools []domain.Tool) ([]mcpjsonrpc.ToolDescriptor, error) {
	out := make([]mcpjsonrpc.ToolDescriptor, 0, len(tools))
	for _, tool := range tools {
		schema, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to encode input schema of %s: %w", tool.Name, err)
		}
		out = append(out, mcpjsonrpc.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}
