package stdio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// MaxMessageSize bounds a single newline-delimited message.
const MaxMessageSize = 10 * 1024 * 1024 // 10MB

// Handler turns one raw request into a raw response.
// It returns false when nothing should be written back.
type Handler interface {
	Handle(ctx context.Context, data []byte) ([]byte, bool)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, data []byte) ([]byte, bool)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, data []byte) ([]byte, bool) { return f(ctx, data) }

// Server serves newline-delimited JSON-RPC over a reader/writer pair.
// Every message is handled on its own goroutine, so responses may be written
// out of request order; clients correlate them by id.
type Server struct {
	handler Handler
	logger  *slog.Logger
}

// NewServer creates a new Server.
func NewServer(handler Handler, logger *slog.Logger) *Server {
	return &Server{
		handler: handler,
		logger:  logger.With("component", "stdio_server"),
	}
}

// Serve reads messages from in until EOF or ctx is cancelled, then waits for
// in-flight messages to be answered.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), MaxMessageSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			msg := append([]byte(nil), line...)
			select {
			case lines <- msg:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	w := &lineWriter{w: out}
	var wg sync.WaitGroup
	defer wg.Wait()

	s.logger.Info("Serving on stdio")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping stdio server", slog.Any("reason", ctx.Err()))
			return ctx.Err()

		case msg, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						s.logger.Error("Failed to read input", slog.Any("error", err))
						return fmt.Errorf("failed to read input: %w", err)
					}
					s.logger.Info("Input closed, stopping stdio server")
					return nil
				default:
					return ctx.Err()
				}
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, ok := s.handler.Handle(ctx, msg)
				if !ok {
					return
				}
				if err := w.writeLine(resp); err != nil {
					s.logger.Error("Failed to write response", slog.Any("error", err))
				}
			}()
		}
	}
}

// lineWriter serializes whole-line writes from concurrent handlers.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) writeLine(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	_, err := l.w.Write(buf)
	return err
}
