package hostbridge

import "context"

// Transport carries requests to the host and returns its responses.
type Transport interface {
	Call(ctx context.Context, req Request) (Response, error)
	Connected() bool
	Close() error
}

// EventSource is implemented by transports that deliver host-raised events.
type EventSource interface {
	OnEvent(fn func(HostEvent))
}
