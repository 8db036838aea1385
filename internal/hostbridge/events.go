package hostbridge

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Host event names.
const (
	EventSizeChanged     = "onSizeChanged"
	EventModeChanged     = "onModeChanged"
	EventSessionClosed   = "onSessionClosed"
	EventSessionSwitched = "onSessionSwitched"
	EventClickToAct      = "onClickToAct"
	EventPresenceChanged = "onSetPresence"
)

// EventNames lists the host events the ledger tracks.
var EventNames = []string{
	EventSizeChanged,
	EventModeChanged,
	EventSessionClosed,
	EventSessionSwitched,
	EventClickToAct,
	EventPresenceChanged,
}

// displayPaths locates the short display value inside each event's data.
var displayPaths = map[string][]string{
	EventSizeChanged:     {"value"},
	EventModeChanged:     {"value"},
	EventSessionClosed:   {"sessionId"},
	EventSessionSwitched: {"sessionId"},
	EventClickToAct:      {"value"},
	EventPresenceChanged: {"presenceInfo", "presenceText"},
}

// EventRecord is the latest observation of one host event.
type EventRecord struct {
	Name               string    `json:"name"`
	Value              string    `json:"value"`
	SimpleDisplayValue string    `json:"simple_display_value"`
	ReceivedAt         time.Time `json:"received_at"`
}

// EventLedger keeps the latest record per host event and forwards every
// event to an optional publish hook.
type EventLedger struct {
	mu      sync.RWMutex
	latest  map[string]EventRecord
	publish func(EventRecord)
}

// NewEventLedger creates a ledger. publish may be nil.
func NewEventLedger(publish func(EventRecord)) *EventLedger {
	return &EventLedger{
		latest:  make(map[string]EventRecord),
		publish: publish,
	}
}

// Record stores ev as the latest observation for its name.
func (l *EventLedger) Record(ev HostEvent) EventRecord {
	at := ev.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	rec := EventRecord{
		Name:               ev.Name,
		Value:              ev.Data,
		SimpleDisplayValue: SimpleDisplay(ev.Name, ev.Data),
		ReceivedAt:         at,
	}

	l.mu.Lock()
	l.latest[ev.Name] = rec
	l.mu.Unlock()

	if l.publish != nil {
		l.publish(rec)
	}
	return rec
}

func (l *EventLedger) Get(name string) (EventRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.latest[name]
	return rec, ok
}

// Latest returns every recorded event sorted by name.
func (l *EventLedger) Latest() []EventRecord {
	l.mu.RLock()
	out := make([]EventRecord, 0, len(l.latest))
	for _, rec := range l.latest {
		out = append(out, rec)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SimpleDisplay extracts the short display value of a host event. It
// returns "" for unknown events or data that does not carry the field.
func SimpleDisplay(name, data string) string {
	path, ok := displayPaths[name]
	if !ok {
		return ""
	}
	var cur any
	if err := json.Unmarshal([]byte(data), &cur); err != nil {
		return ""
	}
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[key]
	}
	switch v := cur.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
