package hostbridge_test

import (
	"testing"
	"time"

	"github.com/seantiz/hostrunner/internal/hostbridge"
)

func TestSimpleDisplay(t *testing.T) {
	tests := []struct {
		name, event, data, want string
	}{
		{"session switched", hostbridge.EventSessionSwitched, `{"sessionId":"s-1","focused":true}`, "s-1"},
		{"session closed", hostbridge.EventSessionClosed, `{"sessionId":"s-2"}`, "s-2"},
		{"size", hostbridge.EventSizeChanged, `{"value":300}`, "300"},
		{"mode", hostbridge.EventModeChanged, `{"value":0}`, "0"},
		{"click to act", hostbridge.EventClickToAct, `{"value":"+1 555 0100"}`, "+1 555 0100"},
		{"presence", hostbridge.EventPresenceChanged, `{"presenceInfo":{"presenceText":"Busy"}}`, "Busy"},
		{"missing field", hostbridge.EventPresenceChanged, `{"presenceInfo":"x"}`, ""},
		{"bad json", hostbridge.EventSizeChanged, `not json`, ""},
		{"unknown event", "onSomethingElse", `{"value":1}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hostbridge.SimpleDisplay(tt.event, tt.data); got != tt.want {
				t.Errorf("SimpleDisplay = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventLedgerKeepsLatest(t *testing.T) {
	var published []hostbridge.EventRecord
	l := hostbridge.NewEventLedger(func(rec hostbridge.EventRecord) {
		published = append(published, rec)
	})

	l.Record(hostbridge.HostEvent{Name: hostbridge.EventSizeChanged, Data: `{"value":300}`})
	l.Record(hostbridge.HostEvent{Name: hostbridge.EventSizeChanged, Data: `{"value":420}`})
	l.Record(hostbridge.HostEvent{Name: hostbridge.EventModeChanged, Data: `{"value":1}`, Timestamp: time.Unix(10, 0)})

	rec, ok := l.Get(hostbridge.EventSizeChanged)
	if !ok || rec.SimpleDisplayValue != "420" {
		t.Errorf("latest size = %+v, %v", rec, ok)
	}
	if rec.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not set")
	}

	latest := l.Latest()
	if len(latest) != 2 {
		t.Fatalf("Latest len = %d, want 2", len(latest))
	}
	if latest[0].Name != hostbridge.EventModeChanged || latest[1].Name != hostbridge.EventSizeChanged {
		t.Errorf("Latest not sorted: %v", latest)
	}
	if len(published) != 3 {
		t.Errorf("published %d records, want 3", len(published))
	}
}
