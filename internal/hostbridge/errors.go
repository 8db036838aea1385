package hostbridge

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when no connection to the host is open.
var ErrNotConnected = errors.New("host bridge is not connected")

// ProtocolError reports a malformed or mismatched frame.
type ProtocolError struct {
	Message string
}

func (e ProtocolError) Error() string {
	return "protocol error: " + e.Message
}

// CallError is a failure reported by the host for one call.
type CallError struct {
	Code          string         `json:"code"`
	Message       string         `json:"message"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

func (e CallError) Error() string {
	return fmt.Sprintf("host call failed (%s): %s", e.Code, e.Message)
}

// AsCallError unwraps err into a CallError.
func AsCallError(err error) (CallError, bool) {
	var target CallError
	if errors.As(err, &target) {
		return target, true
	}
	return CallError{}, false
}
