package store

import (
	"context"
	"log/slog"
	"time"

	evbus "github.com/asaskevich/EventBus"

	"github.com/seantiz/hostrunner/internal/model"
)

// writeTimeout bounds a single history write.
const writeTimeout = 5 * time.Second

// Recorder turns lifecycle events into execution history rows.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

func NewRecorder(s Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: s, logger: logger}
}

// Attach subscribes the recorder to lifecycle events on bus. The
// subscription is asynchronous and transactional, so events are written one
// at a time in publish order without blocking the engine.
func (r *Recorder) Attach(bus evbus.Bus) error {
	return bus.SubscribeAsync(model.TopicLifecycle, r.Handle, true)
}

// Handle records ev. Failures are logged; history is best effort.
func (r *Recorder) Handle(ev model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch ev.Type {
	case model.EventQueued:
		err = r.store.CreateExecution(ctx, &model.Execution{
			ID:        ev.SubmissionID,
			Operation: ev.Operation,
			Status:    model.ExecQueued,
			QueuedAt:  ev.At,
		})
	case model.EventStarted:
		at := ev.At
		err = r.store.UpdateExecution(ctx, &model.Execution{
			ID:            ev.SubmissionID,
			Status:        model.ExecRunning,
			CorrelationID: ev.CorrelationID,
			StartedAt:     &at,
		})
	case model.EventCompleted:
		err = r.store.UpdateExecution(ctx, completedExecution(ev))
	case model.EventFailed:
		err = r.store.UpdateExecution(ctx, failedExecution(ev))
	case model.EventSuperseded:
		err = r.store.UpdateExecutionStatus(ctx, ev.SubmissionID, model.ExecSuperseded)
	default:
		return
	}

	if err != nil {
		r.logger.Error("failed to record execution event",
			"event", ev.Type,
			"operation", ev.Operation,
			"submission_id", ev.SubmissionID,
			"error", err,
		)
	}
}

func completedExecution(ev model.Event) *model.Execution {
	at := ev.At
	e := &model.Execution{
		ID:            ev.SubmissionID,
		Status:        model.ExecResolved,
		CorrelationID: ev.CorrelationID,
		DurationMS:    ev.DurationMS,
		FinishedAt:    &at,
	}
	if ev.Result == nil {
		return e
	}
	if ev.Result.Status == model.StatusRejected {
		e.Status = model.ExecRejected
	}
	if res := ev.Result.Result; res != nil {
		e.Value = res.Value
		e.SimpleDisplayValue = res.SimpleDisplayValue
		e.Error = res.Error
	}
	return e
}

func failedExecution(ev model.Event) *model.Execution {
	at := ev.At
	e := &model.Execution{
		ID:            ev.SubmissionID,
		Status:        model.ExecFailed,
		CorrelationID: ev.CorrelationID,
		Error:         ev.Error,
		DurationMS:    ev.DurationMS,
		FinishedAt:    &at,
	}
	if ev.TimedOut {
		e.Status = model.ExecTimedOut
	}
	return e
}
