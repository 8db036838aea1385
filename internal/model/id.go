package model

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID generates a new ULID string for use as an entity identifier.
func NewID() string {
	return ulid.Make().String()
}

// NewCorrelationID generates a random (version 4) UUID that tags one
// execution attempt for host-side tracing.
func NewCorrelationID() string {
	return uuid.NewString()
}
