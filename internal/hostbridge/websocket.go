package hostbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketTransport talks to the host bridge over a single websocket.
// Responses are matched to requests by request id; event frames are handed
// to the OnEvent callback from the reader goroutine.
type WebSocketTransport struct {
	url         string
	dialTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	pending map[string]chan Response
	onEvent func(HostEvent)

	writeMu sync.Mutex
}

// NewWebSocketTransport creates a transport for url. It does not dial;
// call Connect or KeepConnected.
func NewWebSocketTransport(url string, dialTimeout time.Duration, logger *slog.Logger) *WebSocketTransport {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	return &WebSocketTransport{
		url:         url,
		dialTimeout: dialTimeout,
		logger:      logger,
		pending:     make(map[string]chan Response),
	}
}

// Connect dials the bridge if no connection is open.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("transport closed")
	}
	if t.conn != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: t.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, t.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial host bridge %s: %w", t.url, err)
	}

	t.mu.Lock()
	if t.closed || t.conn != nil {
		t.mu.Unlock()
		conn.Close()
		return nil
	}
	t.conn = conn
	t.mu.Unlock()

	t.logger.Info("host bridge connected", "url", t.url)
	go t.readLoop(conn)
	return nil
}

// KeepConnected dials the bridge and redials every interval while the
// connection is down. It returns when ctx is done.
func (t *WebSocketTransport) KeepConnected(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !t.Connected() {
			if err := t.Connect(ctx); err != nil && ctx.Err() == nil {
				t.logger.Warn("host bridge connect failed", "url", t.url, "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Connected reports whether a connection is open.
func (t *WebSocketTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// OnEvent registers the handler for host-raised events.
func (t *WebSocketTransport) OnEvent(fn func(HostEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEvent = fn
}

func (t *WebSocketTransport) Call(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, ProtocolError{Message: err.Error()}
	}

	t.mu.Lock()
	conn := t.conn
	if conn == nil {
		t.mu.Unlock()
		return Response{}, ErrNotConnected
	}
	ch := make(chan Response, 1)
	t.pending[req.RequestID] = ch
	t.mu.Unlock()
	defer t.forget(req.RequestID)

	t.writeMu.Lock()
	deadline, _ := ctx.Deadline()
	conn.SetWriteDeadline(deadline)
	err := conn.WriteJSON(Frame{Type: FrameRequest, Request: &req})
	t.writeMu.Unlock()
	if err != nil {
		t.drop(conn, err)
		return Response{}, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, ErrNotConnected
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Close closes the connection and fails every pending call. A closed
// transport does not reconnect.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	t.drop(conn, nil)
	return nil
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.drop(conn, err)
			return
		}
		switch f.Type {
		case FrameResponse:
			if f.Response != nil {
				t.deliver(*f.Response)
			}
		case FrameEvent:
			if f.Event != nil {
				t.emit(*f.Event)
			}
		default:
			t.logger.Warn("unexpected host bridge frame", "type", f.Type)
		}
	}
}

func (t *WebSocketTransport) deliver(resp Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.pending[resp.RequestID]
	if !ok {
		t.logger.Debug("response for unknown request", "request_id", resp.RequestID)
		return
	}
	delete(t.pending, resp.RequestID)
	ch <- resp
}

func (t *WebSocketTransport) emit(ev HostEvent) {
	t.mu.Lock()
	fn := t.onEvent
	t.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (t *WebSocketTransport) forget(requestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, requestID)
}

// drop tears down conn if it is still the active connection.
func (t *WebSocketTransport) drop(conn *websocket.Conn, cause error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
	t.mu.Unlock()

	conn.Close()
	if cause != nil {
		t.logger.Warn("host bridge disconnected", "url", t.url, "error", cause)
	}
}
