package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	evbus "github.com/asaskevich/EventBus"

	"github.com/seantiz/hostrunner/internal/model"
)

func newTestRecorder(t *testing.T) (*Recorder, *SQLiteStore, evbus.Bus) {
	t.Helper()
	s := newTestStore(t)
	r := NewRecorder(s, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	bus := evbus.New()
	if err := r.Attach(bus); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return r, s, bus
}

func TestRecorderResolvedLifecycle(t *testing.T) {
	_, s, bus := newTestRecorder(t)
	id := model.NewID()
	dur := 4.2
	res := model.Resolved(`"tab-1"`)
	res.Result.SimpleDisplayValue = "tab-1"

	now := time.Now().UTC()
	bus.Publish(model.TopicLifecycle, model.Event{Type: model.EventQueued, SubmissionID: id, Operation: model.OpCreateTab, At: now})
	bus.Publish(model.TopicLifecycle, model.Event{Type: model.EventStarted, SubmissionID: id, Operation: model.OpCreateTab, CorrelationID: "corr", At: now})
	bus.Publish(model.TopicLifecycle, model.Event{Type: model.EventCompleted, SubmissionID: id, Operation: model.OpCreateTab, CorrelationID: "corr", Result: &res, DurationMS: &dur, At: now})
	bus.WaitAsync()

	got, err := s.GetExecution(context.Background(), id)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.Status != model.ExecResolved || got.Value != `"tab-1"` || got.SimpleDisplayValue != "tab-1" {
		t.Errorf("execution = %+v", got)
	}
	if got.CorrelationID != "corr" || got.StartedAt == nil || got.FinishedAt == nil {
		t.Errorf("execution = %+v", got)
	}
}

func TestRecorderRejectedResult(t *testing.T) {
	r, s, _ := newTestRecorder(t)
	id := model.NewID()
	res := model.Rejected(`{"code":"NO_SESSION"}`, "no session is focused")

	r.Handle(model.Event{Type: model.EventQueued, SubmissionID: id, Operation: model.OpCreateTab, At: time.Now().UTC()})
	r.Handle(model.Event{Type: model.EventStarted, SubmissionID: id, At: time.Now().UTC()})
	r.Handle(model.Event{Type: model.EventCompleted, SubmissionID: id, Result: &res, At: time.Now().UTC()})

	got, _ := s.GetExecution(context.Background(), id)
	if got.Status != model.ExecRejected || got.Error != "no session is focused" {
		t.Errorf("execution = %+v", got)
	}
}

func TestRecorderFailures(t *testing.T) {
	r, s, _ := newTestRecorder(t)
	ctx := context.Background()

	notFound := model.NewID()
	r.Handle(model.Event{Type: model.EventQueued, SubmissionID: notFound, Operation: "nope", At: time.Now().UTC()})
	r.Handle(model.Event{Type: model.EventFailed, SubmissionID: notFound, Error: "operation nope not found", At: time.Now().UTC()})

	timedOut := model.NewID()
	r.Handle(model.Event{Type: model.EventQueued, SubmissionID: timedOut, Operation: model.OpGetTabs, At: time.Now().UTC()})
	r.Handle(model.Event{Type: model.EventStarted, SubmissionID: timedOut, At: time.Now().UTC()})
	r.Handle(model.Event{Type: model.EventFailed, SubmissionID: timedOut, Error: "execution timed out", TimedOut: true, At: time.Now().UTC()})

	superseded := model.NewID()
	r.Handle(model.Event{Type: model.EventQueued, SubmissionID: superseded, Operation: model.OpGetTabs, At: time.Now().UTC()})
	r.Handle(model.Event{Type: model.EventSuperseded, SubmissionID: superseded})

	for id, want := range map[string]string{
		notFound:   model.ExecFailed,
		timedOut:   model.ExecTimedOut,
		superseded: model.ExecSuperseded,
	} {
		got, err := s.GetExecution(ctx, id)
		if err != nil {
			t.Fatalf("GetExecution(%s): %v", id, err)
		}
		if got.Status != want {
			t.Errorf("status = %q, want %q", got.Status, want)
		}
	}
}

func TestRecorderIgnoresUnknownEvents(t *testing.T) {
	r, s, _ := newTestRecorder(t)
	r.Handle(model.Event{Type: model.EventHost, Operation: "onSizeChanged"})

	stats, _ := s.GetExecutionStats(context.Background())
	if stats.Total != 0 {
		t.Errorf("recorded %d executions for a host event", stats.Total)
	}
}
