package hostbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Method names a host call.
type Method string

// Host methods.
const (
	MethodCreateSession  Method = "createSession"
	MethodCreateTab      Method = "createTab"
	MethodNotifyEvent    Method = "notifyEvent"
	MethodGetTabs        Method = "getTabs"
	MethodGetEnvironment Method = "getEnvironment"
	MethodSetPresence    Method = "setPresence"
	MethodGetPresence    Method = "getPresence"
	MethodSetMode        Method = "setMode"
	MethodGetMode        Method = "getMode"
	MethodSetWidth       Method = "setWidth"
	MethodGetWidth       Method = "getWidth"
)

// Frame types.
const (
	FrameRequest  = "request"
	FrameResponse = "response"
	FrameEvent    = "event"
)

// Frame is the envelope for every message on the wire.
type Frame struct {
	Type     string     `json:"type"`
	Request  *Request   `json:"request,omitempty"`
	Response *Response  `json:"response,omitempty"`
	Event    *HostEvent `json:"event,omitempty"`
}

// Request is a call from us to the host.
type Request struct {
	RequestID     string          `json:"requestId"`
	CorrelationID string          `json:"correlationId"`
	Method        Method          `json:"method"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Response is the host's answer to a Request.
type Response struct {
	RequestID     string          `json:"requestId"`
	CorrelationID string          `json:"correlationId"`
	Success       bool            `json:"success"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Error         *BridgeError    `json:"error,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// BridgeError is the error body of an unsuccessful Response.
type BridgeError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// HostEvent is raised by the host without a matching request.
type HostEvent struct {
	Name      string    `json:"name"`
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func (r Request) Validate() error {
	if r.RequestID == "" {
		return errors.New("requestId is required")
	}
	if r.CorrelationID == "" {
		return errors.New("correlationId is required")
	}
	if r.Method == "" {
		return errors.New("method is required")
	}
	if r.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}

func (r Response) Validate() error {
	if r.RequestID == "" {
		return errors.New("requestId is required")
	}
	if r.CorrelationID == "" {
		return errors.New("correlationId is required")
	}
	if r.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	if r.Success && r.Error != nil {
		return errors.New("successful response cannot include error")
	}
	if !r.Success {
		if r.Error == nil {
			return errors.New("failed response must include error")
		}
		if r.Error.Code == "" {
			return errors.New("error.code is required")
		}
		if r.Error.Message == "" {
			return errors.New("error.message is required")
		}
	}
	return nil
}

// ValidateAgainstRequest checks r and that it answers req.
func (r Response) ValidateAgainstRequest(req Request) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.RequestID != req.RequestID {
		return fmt.Errorf("response requestId mismatch: got %q want %q", r.RequestID, req.RequestID)
	}
	if r.CorrelationID != req.CorrelationID {
		return fmt.Errorf("response correlationId mismatch: got %q want %q", r.CorrelationID, req.CorrelationID)
	}
	return nil
}
