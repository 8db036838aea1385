package hostbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/hostrunner/internal/model"
)

// Health is a snapshot of the bridge's recent call history.
type Health struct {
	Connected           bool      `json:"connected"`
	LastSuccessAt       time.Time `json:"last_success_at,omitzero"`
	LastFailureAt       time.Time `json:"last_failure_at,omitzero"`
	LastFailureMessage  string    `json:"last_failure_message,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Client issues typed host calls over a Transport.
type Client struct {
	transport Transport
	logger    *slog.Logger

	mu     sync.RWMutex
	health Health
}

func NewClient(transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: transport,
		logger:    logger,
	}
}

// Available reports whether the host can currently be reached.
func (c *Client) Available() bool {
	return c.transport != nil && c.transport.Connected()
}

// Call sends method with payload and returns the raw response payload. An
// unsuccessful host response is returned as a CallError.
func (c *Client) Call(ctx context.Context, correlationID string, method Method, payload any) (json.RawMessage, error) {
	if c.transport == nil {
		c.setFailure(ErrNotConnected)
		return nil, ErrNotConnected
	}
	if correlationID == "" {
		correlationID = model.NewCorrelationID()
	}

	req := Request{
		RequestID:     model.NewID(),
		CorrelationID: correlationID,
		Method:        method,
		Timestamp:     time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", method, err)
		}
		req.Payload = raw
	}

	resp, err := c.transport.Call(ctx, req)
	if err != nil {
		c.setFailure(err)
		return nil, err
	}
	if err := resp.ValidateAgainstRequest(req); err != nil {
		c.setFailure(err)
		return nil, ProtocolError{Message: err.Error()}
	}
	if !resp.Success {
		callErr := CallError{
			Code:          resp.Error.Code,
			Message:       resp.Error.Message,
			CorrelationID: resp.CorrelationID,
			Details:       resp.Error.Details,
		}
		c.setFailure(callErr)
		return nil, callErr
	}

	c.setSuccess()
	return resp.Payload, nil
}

// OnEvent registers fn for host-raised events. It is a no-op when the
// transport cannot deliver events.
func (c *Client) OnEvent(fn func(HostEvent)) {
	src, ok := c.transport.(EventSource)
	if !ok {
		c.logger.Debug("transport does not deliver host events")
		return
	}
	src.OnEvent(fn)
}

func (c *Client) Health() Health {
	c.mu.RLock()
	h := c.health
	c.mu.RUnlock()
	h.Connected = c.Available()
	return h
}

func (c *Client) Close() error {
	if c.transport == nil {
		return nil
	}
	return c.transport.Close()
}

func (c *Client) setSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.health.LastSuccessAt = time.Now().UTC()
	c.health.LastFailureMessage = ""
	c.health.ConsecutiveFailures = 0
}

func (c *Client) setFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.health.LastFailureAt = time.Now().UTC()
	c.health.LastFailureMessage = err.Error()
	c.health.ConsecutiveFailures++
}
