// Package engine runs named host operations strictly one at a time.
//
// Callers submit an operation by name and get back a future; the engine
// appends the name to a FIFO queue and a single drain goroutine executes
// queued operations in order, each under a deadline, stamping duration,
// start time and correlation id on the result before settling the future.
// Every transition is published on the event bus for the execution history
// and the live event stream.
package engine
