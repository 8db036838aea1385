package hostbridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// HandlerFunc answers one host method on a MemoryTransport. A returned
// CallError is reported with its own code; any other error is reported as
// HOST_ERROR.
type HandlerFunc func(ctx context.Context, req Request) (any, error)

// MemoryTransport is an in-process host. Handlers run on the caller's
// goroutine.
type MemoryTransport struct {
	mu       sync.RWMutex
	handlers map[Method]HandlerFunc
	onEvent  func(HostEvent)

	connected atomic.Bool
	calls     atomic.Int64
}

// NewMemoryTransport returns a connected transport with no handlers.
func NewMemoryTransport() *MemoryTransport {
	t := &MemoryTransport{handlers: make(map[Method]HandlerFunc)}
	t.connected.Store(true)
	return t
}

// Handle installs fn for method, replacing any previous handler.
func (t *MemoryTransport) Handle(method Method, fn HandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[method] = fn
}

// SetConnected toggles reachability.
func (t *MemoryTransport) SetConnected(connected bool) {
	t.connected.Store(connected)
}

func (t *MemoryTransport) Connected() bool {
	return t.connected.Load()
}

// Calls returns the number of requests that reached a handler lookup.
func (t *MemoryTransport) Calls() int64 {
	return t.calls.Load()
}

func (t *MemoryTransport) Call(ctx context.Context, req Request) (Response, error) {
	if !t.connected.Load() {
		return Response{}, ErrNotConnected
	}
	if err := req.Validate(); err != nil {
		return Response{}, ProtocolError{Message: err.Error()}
	}
	t.calls.Add(1)

	resp := Response{
		RequestID:     req.RequestID,
		CorrelationID: req.CorrelationID,
	}

	t.mu.RLock()
	fn, ok := t.handlers[req.Method]
	t.mu.RUnlock()
	if !ok {
		resp.Error = &BridgeError{Code: "METHOD_NOT_SUPPORTED", Message: "method " + string(req.Method) + " is not supported"}
		resp.Timestamp = time.Now().UTC()
		return resp, nil
	}

	out, err := fn(ctx, req)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Response{}, ctxErr
	}
	resp.Timestamp = time.Now().UTC()
	if err != nil {
		if callErr, ok := AsCallError(err); ok {
			resp.Error = &BridgeError{Code: callErr.Code, Message: callErr.Message, Details: callErr.Details}
		} else {
			resp.Error = &BridgeError{Code: "HOST_ERROR", Message: err.Error()}
		}
		return resp, nil
	}

	if out != nil {
		payload, err := json.Marshal(out)
		if err != nil {
			resp.Error = &BridgeError{Code: "HOST_ERROR", Message: "encode payload: " + err.Error()}
			return resp, nil
		}
		resp.Payload = payload
	}
	resp.Success = true
	return resp, nil
}

// OnEvent registers the handler for events raised through Emit.
func (t *MemoryTransport) OnEvent(fn func(HostEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEvent = fn
}

// Emit raises ev as if the host had sent it.
func (t *MemoryTransport) Emit(ev HostEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	t.mu.RLock()
	fn := t.onEvent
	t.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

func (t *MemoryTransport) Close() error {
	t.connected.Store(false)
	return nil
}
