package operation_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/seantiz/hostrunner/internal/globalctx"
	"github.com/seantiz/hostrunner/internal/hostbridge"
	"github.com/seantiz/hostrunner/internal/model"
	"github.com/seantiz/hostrunner/internal/operation"
)

func newDefaultRegistry(t *testing.T) (*operation.Registry, *globalctx.Store, *hostbridge.SimulatedHost) {
	t.Helper()
	host := hostbridge.NewSimulatedHost(0)
	globals := globalctx.New()
	reg, err := operation.NewDefaultRegistry(hostbridge.NewClient(host, slog.Default()), globals)
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}
	return reg, globals, host
}

func execute(t *testing.T, reg *operation.Registry, name string) (model.ExecutionResult, error) {
	t.Helper()
	s, err := reg.Resolve(name)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", name, err)
	}
	return s.Execute(context.Background(), model.ExecutionContext{CorrelationID: "corr-test"})
}

func TestDefaultRegistryHasEveryOperation(t *testing.T) {
	reg, _, _ := newDefaultRegistry(t)

	list := reg.List()
	if len(list) != len(model.OperationNames) {
		t.Fatalf("registered %d operations, want %d", len(list), len(model.OperationNames))
	}
	for _, name := range model.OperationNames {
		d, ok := reg.Describe(name)
		if !ok {
			t.Errorf("operation %q not registered", name)
			continue
		}
		if d.DisplayName == "" || d.Description == "" {
			t.Errorf("operation %q has empty descriptor: %+v", name, d)
		}
	}
}

func TestCreateSessionRequiresTemplate(t *testing.T) {
	reg, _, _ := newDefaultRegistry(t)

	_, err := execute(t, reg, model.OpCreateSession)
	if !errors.Is(err, operation.ErrMissingContext) {
		t.Errorf("error = %v, want ErrMissingContext", err)
	}
}

func TestCreateSessionResolves(t *testing.T) {
	reg, globals, _ := newDefaultRegistry(t)
	globals.Set(globalctx.KeySessionTemplate, "chat-session")

	res, err := execute(t, reg, model.OpCreateSession)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != model.StatusResolved {
		t.Fatalf("status = %s, want RESOLVED", res.Status)
	}
	var id string
	if err := json.Unmarshal([]byte(res.Result.Value), &id); err != nil {
		t.Fatalf("value %q is not a JSON string: %v", res.Result.Value, err)
	}
	if id == "" || res.Result.SimpleDisplayValue != id {
		t.Errorf("id = %q, simple display = %q", id, res.Result.SimpleDisplayValue)
	}
	if res.Result.Duration != "" || res.Result.TimeStamp != nil || res.Result.CorrelationID != "" {
		t.Error("strategy stamped engine-owned fields")
	}
}

func TestCreateTabRejectedWithoutSession(t *testing.T) {
	reg, globals, _ := newDefaultRegistry(t)
	globals.Set(globalctx.KeyApplicationTemplate, "search")

	res, err := execute(t, reg, model.OpCreateTab)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != model.StatusRejected {
		t.Fatalf("status = %s, want REJECTED", res.Status)
	}
	var body hostbridge.CallError
	if err := json.Unmarshal([]byte(res.Result.Value), &body); err != nil {
		t.Fatalf("rejected value %q is not JSON: %v", res.Result.Value, err)
	}
	if body.Code != "NO_SESSION" || res.Result.Error != body.Message {
		t.Errorf("rejection = %+v, error = %q", body, res.Result.Error)
	}
}

func TestGetTabsCountsTabs(t *testing.T) {
	reg, globals, _ := newDefaultRegistry(t)
	globals.Set(globalctx.KeySessionTemplate, "chat-session")
	globals.Set(globalctx.KeyApplicationTemplate, "search")

	execute(t, reg, model.OpCreateSession)
	execute(t, reg, model.OpCreateTab)
	execute(t, reg, model.OpCreateTab)

	res, err := execute(t, reg, model.OpGetTabs)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var tabs []string
	json.Unmarshal([]byte(res.Result.Value), &tabs)
	if len(tabs) != 2 || res.Result.SimpleDisplayValue != "2" {
		t.Errorf("tabs = %v, simple display = %q", tabs, res.Result.SimpleDisplayValue)
	}
}

func TestGetTabsEmptyIsArray(t *testing.T) {
	reg, _, _ := newDefaultRegistry(t)
	res, _ := execute(t, reg, model.OpGetTabs)
	if res.Result.Value != "[]" {
		t.Errorf("value = %q, want []", res.Result.Value)
	}
}

func TestSetPresenceDefaultsOffline(t *testing.T) {
	reg, globals, _ := newDefaultRegistry(t)

	res, err := execute(t, reg, model.OpSetPresence)
	if err != nil || res.Result.Value != "true" || res.Result.SimpleDisplayValue != operation.DefaultPresence {
		t.Fatalf("setPresence = %+v, %v", res.Result, err)
	}

	globals.Set(globalctx.KeyPresenceStatus, "Busy")
	execute(t, reg, model.OpSetPresence)
	res, _ = execute(t, reg, model.OpGetPresence)
	if res.Result.Value != `{"presenceId":"simulated","presenceText":"Busy"}` {
		t.Errorf("getPresence = %q", res.Result.Value)
	}
}

func TestSetWidthDefaultAndOverride(t *testing.T) {
	reg, globals, _ := newDefaultRegistry(t)

	res, err := execute(t, reg, model.OpSetWidth)
	if err != nil || res.Status != model.StatusResolved || res.Result.Value != "" {
		t.Fatalf("setWidth = %+v, %v", res, err)
	}
	res, _ = execute(t, reg, model.OpGetWidth)
	if res.Result.Value != "300" {
		t.Errorf("width = %q, want 300", res.Result.Value)
	}

	globals.Set(globalctx.KeyWidth, "480")
	execute(t, reg, model.OpSetWidth)
	res, _ = execute(t, reg, model.OpGetWidth)
	if res.Result.Value != "480" {
		t.Errorf("width = %q, want 480", res.Result.Value)
	}
}

func TestSetModeInvalidContext(t *testing.T) {
	reg, globals, _ := newDefaultRegistry(t)
	globals.Set(globalctx.KeyMode, "docked")

	_, err := execute(t, reg, model.OpSetMode)
	if !errors.Is(err, operation.ErrInvalidContext) {
		t.Errorf("error = %v, want ErrInvalidContext", err)
	}

	globals.Set(globalctx.KeyMode, "0")
	if _, err := execute(t, reg, model.OpSetMode); err != nil {
		t.Fatalf("setMode: %v", err)
	}
	res, _ := execute(t, reg, model.OpGetMode)
	if res.Result.Value != "0" {
		t.Errorf("mode = %q, want 0", res.Result.Value)
	}
}

func TestNotifyEventSendsCancellationToken(t *testing.T) {
	reg, globals, host := newDefaultRegistry(t)
	globals.Set(globalctx.KeyNotificationTemplate, "incoming-call")

	var tokens []string
	host.Handle(hostbridge.MethodNotifyEvent, func(_ context.Context, req hostbridge.Request) (any, error) {
		var in struct {
			CancellationToken string `json:"cancellationToken"`
		}
		json.Unmarshal(req.Payload, &in)
		tokens = append(tokens, in.CancellationToken)
		return "notification-1", nil
	})

	for range 2 {
		res, err := execute(t, reg, model.OpNotifyEvent)
		if err != nil || res.Result.Value != `"notification-1"` {
			t.Fatalf("notifyEvent = %+v, %v", res.Result, err)
		}
	}
	if len(tokens) != 2 || tokens[0] == "" || tokens[0] == tokens[1] {
		t.Errorf("cancellation tokens = %v, want two distinct", tokens)
	}
}

func TestGetEnvironmentPassesJSONThrough(t *testing.T) {
	reg, _, _ := newDefaultRegistry(t)
	res, err := execute(t, reg, model.OpGetEnvironment)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var env map[string]string
	if err := json.Unmarshal([]byte(res.Result.Value), &env); err != nil {
		t.Fatalf("value %q: %v", res.Result.Value, err)
	}
	if env["orgId"] == "" {
		t.Errorf("environment = %v", env)
	}
}

func TestUnreachableHostRejects(t *testing.T) {
	reg, _, host := newDefaultRegistry(t)
	host.SetConnected(false)

	res, err := execute(t, reg, model.OpGetWidth)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != model.StatusRejected || res.Result.Error != hostbridge.ErrNotConnected.Error() {
		t.Errorf("result = %+v", res.Result)
	}
}

func TestContextErrorsPassThrough(t *testing.T) {
	reg, _, host := newDefaultRegistry(t)
	host.Handle(hostbridge.MethodGetMode, func(ctx context.Context, _ hostbridge.Request) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s, _ := reg.Resolve(model.OpGetMode)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Execute(ctx, model.ExecutionContext{CorrelationID: "c"})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
