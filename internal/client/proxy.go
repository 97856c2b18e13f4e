// Package client implements the caller side of the tool-calling protocol.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/pkg/shared/mcpjsonrpc"
)

// Errors reported by the proxy.
var (
	ErrClosed         = errors.New("proxy closed")
	ErrNotInitialized = errors.New("client not initialized")
)

// Options configures a Proxy.
type Options struct {
	// ClientInfo is announced to the server during the handshake.
	ClientInfo mcpjsonrpc.Implementation
	// CallTimeout bounds every request. Zero leaves the caller's context in charge.
	CallTimeout time.Duration
}

// Outcome is the result of one tool call as seen by the caller.
// It never carries a Go error: every failure is described in Error.
type Outcome struct {
	Success   bool           `json:"success"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	TimedOut  bool           `json:"timed_out,omitempty"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// ClientInfo describes the proxy's session.
type ClientInfo struct {
	ClientName          string                        `json:"client_name"`
	ClientVersion       string                        `json:"client_version"`
	SessionID           string                        `json:"session_id"`
	Initialized         bool                          `json:"initialized"`
	ProtocolVersion     string                        `json:"protocol_version,omitempty"`
	ServerInfo          mcpjsonrpc.Implementation     `json:"server_info"`
	ServerCapabilities  mcpjsonrpc.ServerCapabilities `json:"server_capabilities"`
	AvailableToolsCount int                           `json:"available_tools_count"`
}

type reply struct {
	resp mcpjsonrpc.Response
	err  error
}

// Proxy performs the handshake, caches the tool list and correlates
// concurrent calls with their responses by request id.
type Proxy struct {
	transport Transport
	opts      Options
	sessionID string
	logger    *slog.Logger

	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan reply
	closed  bool
	readErr error // set once the reader stops; no response can arrive after that

	stateMu         sync.RWMutex
	initialized     bool
	protocolVersion string
	serverInfo      mcpjsonrpc.Implementation
	capabilities    mcpjsonrpc.ServerCapabilities
	tools           []mcpjsonrpc.ToolDescriptor

	cancel     context.CancelFunc
	readerDone chan struct{}
}

// New creates a proxy over transport and starts its response reader.
func New(transport Transport, opts Options, logger *slog.Logger) *Proxy {
	if opts.ClientInfo.Name == "" {
		opts.ClientInfo.Name = "Langchain-MCP-Client"
	}
	if opts.ClientInfo.Version == "" {
		opts.ClientInfo.Version = "1.0.0"
	}
	sessionID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	p := &Proxy{
		transport:  transport,
		opts:       opts,
		sessionID:  sessionID,
		logger:     logger.With("component", "client_proxy", slog.String("session_id", sessionID)),
		pending:    make(map[int64]chan reply),
		cancel:     cancel,
		readerDone: make(chan struct{}),
	}
	go p.readLoop(ctx)
	return p
}

func (p *Proxy) readLoop(ctx context.Context) {
	defer close(p.readerDone)
	for {
		data, err := p.transport.Recv(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("Transport receive failed, failing pending calls", slog.Any("error", err))
			}
			p.mu.Lock()
			p.readErr = fmt.Errorf("transport receive failed: %w", err)
			p.failPendingLocked(p.readErr)
			p.mu.Unlock()
			return
		}

		var resp mcpjsonrpc.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			p.logger.Warn("Dropping undecodable response", slog.Any("error", err))
			continue
		}
		id, ok := resp.ID.Int()
		if !ok {
			p.logger.Warn("Dropping response without a known id", slog.String("id", resp.ID.String()))
			continue
		}

		p.mu.Lock()
		waiter, found := p.pending[id]
		if found {
			delete(p.pending, id)
			waiter <- reply{resp: resp}
		}
		p.mu.Unlock()
		if !found {
			p.logger.Warn("Dropping response with no waiting caller", slog.Int64("id", id))
		}
	}
}

func (p *Proxy) failPending(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failPendingLocked(err)
}

func (p *Proxy) failPendingLocked(err error) {
	for id, waiter := range p.pending {
		delete(p.pending, id)
		waiter <- reply{err: err}
	}
}

func (p *Proxy) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, p.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// request sends one call and waits for its response. Envelope errors are
// returned as *mcpjsonrpc.Error.
func (p *Proxy) request(ctx context.Context, method mcpjsonrpc.Method, params any) (json.RawMessage, error) {
	id := p.nextID.Add(1)
	log := p.logger.With(slog.String("method", string(method)), slog.Int64("id", id))

	req := mcpjsonrpc.Request{Version: mcpjsonrpc.Version, ID: mcpjsonrpc.NewIntID(id), Method: string(method)}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s params: %w", method, err)
		}
		req.Params = raw
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	waiter := make(chan reply, 1)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.readErr != nil {
		err := p.readErr
		p.mu.Unlock()
		return nil, err
	}
	p.pending[id] = waiter
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	log.Debug("Sending request")
	if err := p.transport.Send(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", method, err)
	}

	select {
	case r := <-waiter:
		if r.err != nil {
			return nil, r.err
		}
		if err := r.resp.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s response: %w", method, err)
		}
		if r.resp.Error != nil {
			return nil, r.resp.Error
		}
		return r.resp.Result, nil
	case <-ctx.Done():
		log.Warn("Request abandoned", slog.Any("reason", ctx.Err()))
		return nil, fmt.Errorf("%s request: %w", method, ctx.Err())
	}
}

func (p *Proxy) notify(ctx context.Context, method mcpjsonrpc.Method) error {
	data, err := json.Marshal(mcpjsonrpc.Request{Version: mcpjsonrpc.Version, Method: string(method)})
	if err != nil {
		return fmt.Errorf("failed to encode %s notification: %w", method, err)
	}
	if err := p.transport.Send(ctx, data); err != nil {
		return fmt.Errorf("failed to send %s notification: %w", method, err)
	}
	return nil
}

// Initialize performs the handshake and loads the tool list.
// It reports false on any failure; the reason is logged.
func (p *Proxy) Initialize(ctx context.Context) bool {
	callCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	raw, err := p.request(callCtx, mcpjsonrpc.MethodInitialize, mcpjsonrpc.InitializeParams{
		ProtocolVersion: mcpjsonrpc.ProtocolVersion,
		Capabilities:    map[string]any{"roots": map[string]any{"listChanged": true}},
		ClientInfo:      p.opts.ClientInfo,
	})
	if err != nil {
		p.logger.Error("Initialization failed", slog.Any("error", err))
		return false
	}

	var result mcpjsonrpc.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		p.logger.Error("Initialization failed: undecodable result", slog.Any("error", err))
		return false
	}
	if result.ProtocolVersion != mcpjsonrpc.ProtocolVersion {
		p.logger.Warn("Server answered with a different protocol version", slog.String("server_version", result.ProtocolVersion))
	}

	p.stateMu.Lock()
	p.protocolVersion = result.ProtocolVersion
	p.serverInfo = result.ServerInfo
	p.capabilities = result.Capabilities
	p.initialized = true
	p.stateMu.Unlock()

	if err := p.notify(callCtx, mcpjsonrpc.MethodInitialized); err != nil {
		p.logger.Error("Initialization failed", slog.Any("error", err))
		p.setInitialized(false)
		return false
	}
	if err := p.RefreshTools(ctx); err != nil {
		p.logger.Error("Initialization failed: could not load tools", slog.Any("error", err))
		p.setInitialized(false)
		return false
	}

	p.logger.Info("Connected to server",
		slog.String("server_name", result.ServerInfo.Name),
		slog.String("server_version", result.ServerInfo.Version),
		slog.Int("tools", len(p.ListTools())))
	return true
}

func (p *Proxy) setInitialized(v bool) {
	p.stateMu.Lock()
	p.initialized = v
	p.stateMu.Unlock()
}

func (p *Proxy) isInitialized() bool {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.initialized
}

// RefreshTools re-queries the server's tool list and replaces the cache.
func (p *Proxy) RefreshTools(ctx context.Context) error {
	if !p.isInitialized() {
		return ErrNotInitialized
	}
	callCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	raw, err := p.request(callCtx, mcpjsonrpc.MethodToolsList, nil)
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	var result mcpjsonrpc.ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to decode tool list: %w", err)
	}

	p.stateMu.Lock()
	p.tools = result.Tools
	p.stateMu.Unlock()
	p.logger.Info("Refreshed tool list", slog.Int("count", len(result.Tools)))
	return nil
}

// ListTools returns a copy of the cached tool list without a round trip.
func (p *Proxy) ListTools() []mcpjsonrpc.ToolDescriptor {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()

	out := make([]mcpjsonrpc.ToolDescriptor, len(p.tools))
	for i, tool := range p.tools {
		tool.InputSchema = append(json.RawMessage(nil), tool.InputSchema...)
		out[i] = tool
	}
	return out
}

// CallTool invokes a tool on the server.
func (p *Proxy) CallTool(ctx context.Context, name string, args map[string]any) Outcome {
	if args == nil {
		args = map[string]any{}
	}
	out := Outcome{ToolName: name, Arguments: args}
	log := p.logger.With(slog.String("tool_name", name))

	if !p.isInitialized() {
		out.Error = ErrNotInitialized.Error()
		return out
	}

	callCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	raw, err := p.request(callCtx, mcpjsonrpc.MethodToolsCall, mcpjsonrpc.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		var rpcErr *mcpjsonrpc.Error
		switch {
		case errors.As(err, &rpcErr):
			out.Error = rpcErr.Message
		case errors.Is(err, context.DeadlineExceeded):
			out.TimedOut = true
			out.Error = fmt.Sprintf("tool call timed out: %v", err)
		default:
			out.Error = err.Error()
		}
		log.Warn("Tool call failed", slog.String("error", out.Error), slog.Bool("timed_out", out.TimedOut))
		return out
	}

	var result mcpjsonrpc.ToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		out.Error = fmt.Sprintf("failed to decode tool result: %v", err)
		log.Warn("Tool call failed", slog.String("error", out.Error))
		return out
	}

	text := result.Text()
	if result.IsError {
		out.Error = text
		if out.Error == "" {
			out.Error = "Unknown error"
		}
		log.Info("Tool reported an error", slog.String("error", out.Error))
		return out
	}

	out.Success = true
	out.Result = decodePayload(result)
	log.Debug("Tool call succeeded")
	return out
}

// decodePayload parses the first text block as JSON, falling back to raw text.
func decodePayload(result mcpjsonrpc.ToolResult) any {
	if len(result.Content) == 0 || result.Content[0].Type != mcpjsonrpc.ContentTypeText {
		return map[string]any{}
	}
	text := result.Content[0].Text
	var payload any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return map[string]any{"raw_text": text}
	}
	return payload
}

// Info reports the state of the session.
func (p *Proxy) Info() ClientInfo {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return ClientInfo{
		ClientName:          p.opts.ClientInfo.Name,
		ClientVersion:       p.opts.ClientInfo.Version,
		SessionID:           p.sessionID,
		Initialized:         p.initialized,
		ProtocolVersion:     p.protocolVersion,
		ServerInfo:          p.serverInfo,
		ServerCapabilities:  p.capabilities,
		AvailableToolsCount: len(p.tools),
	}
}

// SessionID returns the random identifier of this session.
func (p *Proxy) SessionID() string {
	return p.sessionID
}

// Close stops the reader, fails all pending calls and closes the transport.
func (p *Proxy) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.setInitialized(false)
	p.cancel()
	err := p.transport.Close()
	<-p.readerDone
	p.failPending(ErrClosed)
	p.logger.Info("Proxy closed")
	return err
}
