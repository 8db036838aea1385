package hostbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// SimulatedHost is an in-process host with session, tab, presence, mode and
// width state. It raises the same events a real host would when that state
// changes.
type SimulatedHost struct {
	*MemoryTransport

	latency time.Duration

	mu       sync.Mutex
	seq      int
	focused  string
	tabs     map[string][]string
	presence string
	mode     int
	width    int
}

// NewSimulatedHost returns a connected simulated host whose every call takes
// latency.
func NewSimulatedHost(latency time.Duration) *SimulatedHost {
	h := &SimulatedHost{
		MemoryTransport: NewMemoryTransport(),
		latency:         latency,
		tabs:            make(map[string][]string),
		presence:        "Available",
		mode:            1,
		width:           340,
	}

	h.Handle(MethodCreateSession, h.createSession)
	h.Handle(MethodCreateTab, h.createTab)
	h.Handle(MethodNotifyEvent, h.notifyEvent)
	h.Handle(MethodGetTabs, h.getTabs)
	h.Handle(MethodGetEnvironment, h.getEnvironment)
	h.Handle(MethodSetPresence, h.setPresence)
	h.Handle(MethodGetPresence, h.getPresence)
	h.Handle(MethodSetMode, h.setMode)
	h.Handle(MethodGetMode, h.getMode)
	h.Handle(MethodSetWidth, h.setWidth)
	h.Handle(MethodGetWidth, h.getWidth)
	return h
}

func (h *SimulatedHost) wait(ctx context.Context) error {
	if h.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(h.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *SimulatedHost) emitJSON(name string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	h.Emit(HostEvent{Name: name, Data: string(raw)})
}

func decodeTemplate(req Request) (templateInput, error) {
	var in templateInput
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return in, CallError{Code: "INVALID_PAYLOAD", Message: err.Error()}
		}
	}
	if in.TemplateName == "" {
		return in, CallError{Code: "INVALID_TEMPLATE", Message: "templateName is required"}
	}
	return in, nil
}

func (h *SimulatedHost) createSession(ctx context.Context, req Request) (any, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	if _, err := decodeTemplate(req); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.seq++
	id := fmt.Sprintf("session-id-%d", h.seq)
	h.tabs[id] = nil
	h.focused = id
	h.mu.Unlock()

	h.emitJSON(EventSessionSwitched, map[string]any{"sessionId": id, "focused": true})
	return id, nil
}

func (h *SimulatedHost) createTab(ctx context.Context, req Request) (any, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	if _, err := decodeTemplate(req); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.focused == "" {
		return nil, CallError{Code: "NO_SESSION", Message: "no session is focused"}
	}
	h.seq++
	id := fmt.Sprintf("tab-id-%d", h.seq)
	h.tabs[h.focused] = append(h.tabs[h.focused], id)
	return id, nil
}

func (h *SimulatedHost) notifyEvent(ctx context.Context, req Request) (any, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	in, err := decodeTemplate(req)
	if err != nil {
		return nil, err
	}
	if in.CancellationToken == "" {
		return nil, CallError{Code: "INVALID_PAYLOAD", Message: "cancellationToken is required"}
	}
	return map[string]any{"actionName": "Accept", "responseReason": "ActionTaken"}, nil
}

func (h *SimulatedHost) getTabs(ctx context.Context, _ Request) (any, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	tabs := append([]string{}, h.tabs[h.focused]...)
	return tabs, nil
}

func (h *SimulatedHost) getEnvironment(ctx context.Context, _ Request) (any, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	env, _ := json.Marshal(map[string]string{
		"appId":     "simulated-app",
		"clientUrl": "http://localhost",
		"orgId":     "simulated-org",
		"userId":    "simulated-user",
	})
	return string(env), nil
}

func (h *SimulatedHost) setPresence(ctx context.Context, req Request) (any, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	var in struct {
		Presence string `json:"presence"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil || in.Presence == "" {
		return false, nil
	}

	h.mu.Lock()
	h.presence = in.Presence
	h.mu.Unlock()

	h.emitJSON(EventPresenceChanged, map[string]any{
		"presenceInfo": map[string]string{"presenceText": in.Presence},
	})
	return true, nil
}

func (h *SimulatedHost) getPresence(ctx context.Context, _ Request) (any, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return map[string]string{"presenceId": "simulated", "presenceText": h.presence}, nil
}

func (h *SimulatedHost) setMode(ctx context.Context, req Request) (any, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	var in struct {
		Mode int `json:"mode"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil {
		return nil, CallError{Code: "INVALID_PAYLOAD", Message: err.Error()}
	}

	h.mu.Lock()
	h.mode = in.Mode
	h.mu.Unlock()

	h.emitJSON(EventModeChanged, map[string]int{"value": in.Mode})
	return nil, nil
}

func (h *SimulatedHost) getMode(ctx context.Context, _ Request) (any, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mode, nil
}

func (h *SimulatedHost) setWidth(ctx context.Context, req Request) (any, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	var in struct {
		Width int `json:"width"`
	}
	if err := json.Unmarshal(req.Payload, &in); err != nil {
		return nil, CallError{Code: "INVALID_PAYLOAD", Message: err.Error()}
	}
	if in.Width <= 0 {
		return nil, CallError{Code: "INVALID_WIDTH", Message: "width must be positive"}
	}

	h.mu.Lock()
	h.width = in.Width
	h.mu.Unlock()

	h.emitJSON(EventSizeChanged, map[string]int{"value": in.Width})
	return nil, nil
}

func (h *SimulatedHost) getWidth(ctx context.Context, _ Request) (any, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.width, nil
}
