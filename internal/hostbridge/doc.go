// Package hostbridge is the adapter to the host application's bridge API.
// It speaks a small JSON frame protocol over a Transport (a websocket in
// production, an in-process simulated host in tests), tracks bridge health,
// exposes one typed method per host call and delivers host-raised events.
//
// The host does not tolerate overlapping calls; serializing calls is the
// caller's job (see internal/engine).
package hostbridge
