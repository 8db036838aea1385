package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"

	"github.com/seantiz/hostrunner/internal/completion"
	"github.com/seantiz/hostrunner/internal/globalctx"
	"github.com/seantiz/hostrunner/internal/model"
	"github.com/seantiz/hostrunner/internal/operation"
	"github.com/seantiz/hostrunner/internal/queue"
)

// DefaultTimeout bounds a single operation execution.
const DefaultTimeout = 10 * time.Second

var (
	// ErrOperationNotFound is matched by the error a submission is rejected
	// with when no strategy is registered under its name.
	ErrOperationNotFound = errors.New("operation not found")
	// ErrExecutionTimeout is wrapped by the error a submission is rejected
	// with when its strategy outlives the deadline.
	ErrExecutionTimeout = errors.New("execution timed out")
)

// NotFoundError reports a queued name without a registered strategy.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "operation " + e.Name + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrOperationNotFound
}

// HostProbe reports whether the host can be reached right now.
type HostProbe interface {
	Available() bool
}

// Resolver looks up the strategy for an operation name.
type Resolver interface {
	Resolve(name string) (operation.Strategy, error)
}

// Callbacks are invoked from the drain goroutine. All are optional.
type Callbacks struct {
	OnStarted  func()
	OnComplete func(model.ExecutionResult)
	OnFailure  func(error)
}

// Submission is the caller's view of an accepted submission.
type Submission struct {
	ID     string
	Name   string
	Future *completion.Future[model.ExecutionResult]
}

type pendingEntry struct {
	id       string
	handle   *completion.Handle[model.ExecutionResult]
	cb       *Callbacks
	started  bool
	queuedAt time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithCorrelationIDs replaces the correlation id generator.
func WithCorrelationIDs(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newCorrelationID = fn
		}
	}
}

// Engine serializes operation executions against the host.
type Engine struct {
	registry         Resolver
	host             HostProbe
	globals          *globalctx.Store
	bus              evbus.Bus
	logger           *slog.Logger
	timeout          time.Duration
	newCorrelationID func() string

	mu       sync.Mutex
	queue    *queue.Queue[string]
	pending  map[string]*pendingEntry
	draining bool
	wg       sync.WaitGroup
}

// New creates an engine. bus may be nil, in which case no lifecycle events
// are published.
func New(reg Resolver, host HostProbe, globals *globalctx.Store, bus evbus.Bus, logger *slog.Logger, opts ...Option) *Engine {
	if globals == nil {
		globals = globalctx.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		registry:         reg,
		host:             host,
		globals:          globals,
		bus:              bus,
		logger:           logger,
		timeout:          DefaultTimeout,
		newCorrelationID: model.NewCorrelationID,
		queue:            queue.New[string](),
		pending:          make(map[string]*pendingEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the per-execution deadline.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// IsQueued reports whether name is waiting or executing.
func (e *Engine) IsQueued(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Contains(name)
}

// Len returns the number of queued names, including the one executing.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Len()
}

// SetGlobalContext stores value under key for strategies executed after the
// call.
func (e *Engine) SetGlobalContext(key, value string) {
	e.globals.Set(key, value)
}

// Submit queues name for execution. It returns nil without queuing anything
// when the host is unreachable. Submitting a name whose previous submission
// has not started replaces it; the replaced future is never settled.
func (e *Engine) Submit(name string, cb *Callbacks) *Submission {
	if e.host == nil || !e.host.Available() {
		submissionsDropped.Inc()
		e.logger.Debug("host unreachable, submission dropped", "operation", name)
		return nil
	}

	p := &pendingEntry{
		id:       model.NewID(),
		handle:   completion.New[model.ExecutionResult](),
		cb:       cb,
		queuedAt: time.Now().UTC(),
	}

	e.mu.Lock()
	prev := e.pending[name]
	e.pending[name] = p
	e.queue.Enqueue(name)
	queueDepth.Set(float64(e.queue.Len()))

	// Published under the lock so the drain goroutine cannot report this
	// submission as started before it is reported as queued.
	e.publish(model.Event{Type: model.EventQueued, SubmissionID: p.id, Operation: name, At: p.queuedAt})
	if prev != nil && !prev.started {
		submissionsSuperseded.Inc()
		e.logger.Info("submission superseded", "operation", name, "submission_id", prev.id, "superseded_by", p.id)
		e.publish(model.Event{Type: model.EventSuperseded, SubmissionID: prev.id, Operation: name})
	}

	start := !e.draining
	e.draining = true
	e.mu.Unlock()

	e.logger.Debug("operation queued", "operation", name, "submission_id", p.id)
	if start {
		e.wg.Go(e.drain)
	}

	return &Submission{ID: p.id, Name: name, Future: p.handle.Future()}
}

// Wait blocks until the drain goroutine has emptied the queue.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) drain() {
	for {
		e.mu.Lock()
		name, ok := e.queue.Peek()
		if !ok {
			e.draining = false
			e.mu.Unlock()
			return
		}
		p := e.pending[name]
		if p != nil {
			p.started = true
		}
		e.mu.Unlock()

		e.process(name, p)

		// The head leaves the queue only after it has settled, so IsQueued
		// stays true while it executes.
		e.mu.Lock()
		e.queue.Dequeue()
		if cur, ok := e.pending[name]; ok && cur == p {
			delete(e.pending, name)
		}
		queueDepth.Set(float64(e.queue.Len()))
		e.mu.Unlock()
	}
}

type outcome struct {
	result model.ExecutionResult
	err    error
}

func (e *Engine) process(name string, p *pendingEntry) {
	if p == nil {
		// A later submission of the same name already ran with this slot.
		e.logger.Debug("queued operation has no pending entry", "operation", name)
		return
	}

	strategy, err := e.registry.Resolve(name)
	if err != nil {
		e.fail(name, p, "", &NotFoundError{Name: name}, false, nil)
		return
	}

	if p.cb != nil && p.cb.OnStarted != nil {
		e.safeCall(name, "OnStarted", p.cb.OnStarted)
	}

	correlationID := e.newCorrelationID()
	start := time.Now()
	startedAt := start.UTC()
	e.publish(model.Event{Type: model.EventStarted, SubmissionID: p.id, Operation: name, CorrelationID: correlationID, At: startedAt})
	e.logger.Info("operation started", "operation", name, "submission_id", p.id, "correlation_id", correlationID)

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	resc := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resc <- outcome{err: fmt.Errorf("operation %s panicked: %v", name, r)}
			}
		}()
		res, err := strategy.Execute(ctx, model.ExecutionContext{CorrelationID: correlationID})
		resc <- outcome{result: res, err: err}
	}()

	var out outcome
	timedOut := false
	select {
	case out = <-resc:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			timedOut = true
		}
	case <-ctx.Done():
		timedOut = true
	}
	// Cancelling abandons a strategy that is still running; it is not awaited.
	cancel()
	elapsed := time.Since(start)

	if timedOut {
		err := fmt.Errorf("%w: operation %s exceeded %v", ErrExecutionTimeout, name, e.timeout)
		e.fail(name, p, correlationID, err, true, &elapsed)
		return
	}
	if out.err != nil {
		e.fail(name, p, correlationID, out.err, false, &elapsed)
		return
	}

	result := out.result
	if result.Result != nil {
		stamped := *result.Result
		stamped.Duration = formatDuration(elapsed)
		stamped.TimeStamp = &startedAt
		stamped.CorrelationID = correlationID
		result.Result = &stamped
	}

	if err := p.handle.Resolve(result); err != nil {
		e.logger.Error("resolve submission", "operation", name, "submission_id", p.id, "error", err)
	}
	if p.cb != nil && p.cb.OnComplete != nil {
		e.safeCall(name, "OnComplete", func() { p.cb.OnComplete(result) })
	}

	status := model.ExecResolved
	if result.Status == model.StatusRejected {
		status = model.ExecRejected
	}
	operationsTotal.WithLabelValues(name, status).Inc()
	operationDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	ms := durationMS(elapsed)
	e.publish(model.Event{
		Type:          model.EventCompleted,
		SubmissionID:  p.id,
		Operation:     name,
		CorrelationID: correlationID,
		Result:        &result,
		DurationMS:    &ms,
	})
	e.logger.Info("operation completed",
		"operation", name,
		"submission_id", p.id,
		"correlation_id", correlationID,
		"status", result.Status,
		"duration_ms", ms,
	)
}

// fail rejects p with err. elapsed is nil when execution never started.
func (e *Engine) fail(name string, p *pendingEntry, correlationID string, err error, timedOut bool, elapsed *time.Duration) {
	if rejectErr := p.handle.Reject(err); rejectErr != nil {
		e.logger.Error("reject submission", "operation", name, "submission_id", p.id, "error", rejectErr)
	}
	if p.cb != nil && p.cb.OnFailure != nil {
		e.safeCall(name, "OnFailure", func() { p.cb.OnFailure(err) })
	}

	status := model.ExecFailed
	if timedOut {
		status = model.ExecTimedOut
	}
	operationsTotal.WithLabelValues(name, status).Inc()

	ev := model.Event{
		Type:          model.EventFailed,
		SubmissionID:  p.id,
		Operation:     name,
		CorrelationID: correlationID,
		Error:         err.Error(),
		TimedOut:      timedOut,
	}
	if elapsed != nil {
		operationDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		ms := durationMS(*elapsed)
		ev.DurationMS = &ms
	}
	e.publish(ev)
	e.logger.Warn("operation failed",
		"operation", name,
		"submission_id", p.id,
		"correlation_id", correlationID,
		"timed_out", timedOut,
		"error", err,
	)
}

func (e *Engine) safeCall(name, callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("callback panicked", "operation", name, "callback", callback, "panic", r)
		}
	}()
	fn()
}

func (e *Engine) publish(ev model.Event) {
	if e.bus == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	e.bus.Publish(model.TopicLifecycle, ev)
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// formatDuration renders d in milliseconds with two decimals.
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Nanoseconds())/float64(time.Millisecond))
}
