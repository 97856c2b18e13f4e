package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrTransportClosed is returned by a transport after Close.
var ErrTransportClosed = errors.New("transport closed")

// Transport moves raw JSON-RPC messages between a proxy and a server.
// Send and Recv may be called concurrently with each other.
type Transport interface {
	// Send delivers one message.
	Send(ctx context.Context, msg []byte) error
	// Recv blocks until the next inbound message, ctx is done, or the transport closes.
	Recv(ctx context.Context) ([]byte, error)
	// Close releases the transport. Blocked Recv calls return ErrTransportClosed.
	Close() error
}

// Handler serves one raw request, returning false when there is no response.
type Handler interface {
	Handle(ctx context.Context, data []byte) ([]byte, bool)
}

// InProcessTransport connects a proxy directly to a handler in the same
// process. Each message is served on its own goroutine.
type InProcessTransport struct {
	handler  Handler
	incoming chan []byte
	done     chan struct{}
	once     sync.Once
}

// NewInProcessTransport creates a transport backed by handler.
func NewInProcessTransport(handler Handler) *InProcessTransport {
	return &InProcessTransport{
		handler:  handler,
		incoming: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

// Send implements Transport. The handler sees ctx, so cancelling a call
// also cancels the work it started on the server side.
func (t *InProcessTransport) Send(ctx context.Context, msg []byte) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}

	data := append([]byte(nil), msg...)
	go func() {
		resp, ok := t.handler.Handle(ctx, data)
		if !ok {
			return
		}
		select {
		case t.incoming <- resp:
		case <-t.done:
		}
	}()
	return nil
}

// Recv implements Transport.
func (t *InProcessTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-t.incoming:
		return msg, nil
	case <-t.done:
		return nil, ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements Transport.
func (t *InProcessTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

// StreamTransport exchanges newline-delimited JSON over a reader/writer pair,
// such as the pipes of a server subprocess.
type StreamTransport struct {
	w        io.Writer
	closers  []io.Closer
	writeMu  sync.Mutex
	incoming chan []byte
	readErr  error
	done     chan struct{}
	readDone chan struct{}
	once     sync.Once
}

// NewStreamTransport starts reading r in the background.
// r and w are closed by Close when they implement io.Closer.
func NewStreamTransport(r io.Reader, w io.Writer) *StreamTransport {
	t := &StreamTransport{
		w:        w,
		incoming: make(chan []byte),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	for _, v := range []any{w, r} {
		if c, ok := v.(io.Closer); ok {
			t.closers = append(t.closers, c)
		}
	}
	go t.readLoop(r)
	return t
}

func (t *StreamTransport) readLoop(r io.Reader) {
	defer close(t.readDone)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		select {
		case t.incoming <- append([]byte(nil), line...):
		case <-t.done:
			return
		}
	}
	t.readErr = scanner.Err()
	if t.readErr == nil {
		t.readErr = io.EOF
	}
}

// Send implements Transport.
func (t *StreamTransport) Send(ctx context.Context, msg []byte) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	line := make([]byte, 0, len(msg)+1)
	line = append(append(line, msg...), '\n')
	_, err := t.w.Write(line)
	return err
}

// Recv implements Transport. It returns io.EOF once the peer closes its end.
func (t *StreamTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-t.incoming:
		return msg, nil
	case <-t.readDone:
		return nil, t.readErr
	case <-t.done:
		return nil, ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements Transport.
func (t *StreamTransport) Close() error {
	var errs []error
	t.once.Do(func() {
		close(t.done)
		for _, c := range t.closers {
			errs = append(errs, c.Close())
		}
	})
	return errors.Join(errs...)
}
