package operation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/seantiz/hostrunner/internal/globalctx"
	"github.com/seantiz/hostrunner/internal/hostbridge"
	"github.com/seantiz/hostrunner/internal/model"
)

var (
	// ErrMissingContext is returned when a strategy needs a global context
	// value that has not been set.
	ErrMissingContext = errors.New("required context value is not set")
	// ErrInvalidContext is returned when a global context value cannot be
	// parsed.
	ErrInvalidContext = errors.New("context value is invalid")
)

// Defaults applied when the optional context keys are unset.
const (
	DefaultPresence = "Offline"
	DefaultMode     = 1
	DefaultWidth    = 300
)

// Host is the set of host calls the built-in strategies use.
// *hostbridge.Client implements it.
type Host interface {
	CreateSession(ctx context.Context, correlationID, templateName string) (string, error)
	CreateTab(ctx context.Context, correlationID, templateName string) (string, error)
	NotifyEvent(ctx context.Context, correlationID, templateName, cancellationToken string) (string, error)
	GetTabs(ctx context.Context, correlationID string) ([]string, error)
	GetEnvironment(ctx context.Context, correlationID string) (string, error)
	SetPresence(ctx context.Context, correlationID, status string) (bool, error)
	GetPresence(ctx context.Context, correlationID string) (string, error)
	SetMode(ctx context.Context, correlationID string, mode int) error
	GetMode(ctx context.Context, correlationID string) (int, error)
	SetWidth(ctx context.Context, correlationID string, width int) error
	GetWidth(ctx context.Context, correlationID string) (int, error)
}

// NewDefaultRegistry registers every built-in operation against host.
// Strategies read templates and settings from globals at execution time.
func NewDefaultRegistry(host Host, globals globalctx.Reader) (*Registry, error) {
	b := builtins{host: host, globals: globals}
	reg := NewRegistry()
	for _, op := range []struct {
		desc Descriptor
		fn   StrategyFunc
	}{
		{Descriptor{
			Name: model.OpCreateSession, DisplayName: "Create Session",
			Description: "Creates a new multi-session for the user.",
			Reads:       []string{globalctx.KeySessionTemplate},
		}, b.createSession},
		{Descriptor{
			Name: model.OpNotifyEvent, DisplayName: "Notify Event",
			Description: "Creates a new notification for the user.",
			Reads:       []string{globalctx.KeyNotificationTemplate},
		}, b.notifyEvent},
		{Descriptor{
			Name: model.OpCreateTab, DisplayName: "Create Tab",
			Description: "Creates a new application tab for the user.",
			Reads:       []string{globalctx.KeyApplicationTemplate},
		}, b.createTab},
		{Descriptor{
			Name: model.OpGetTabs, DisplayName: "Get Tabs",
			Description: "Gets the tabs of the focused session.",
		}, b.getTabs},
		{Descriptor{
			Name: model.OpSetPresence, DisplayName: "Set Presence",
			Description: "Sets the presence for the user.",
			Reads:       []string{globalctx.KeyPresenceStatus},
		}, b.setPresence},
		{Descriptor{
			Name: model.OpGetPresence, DisplayName: "Get Presence",
			Description: "Gets the presence for the user.",
		}, b.getPresence},
		{Descriptor{
			Name: model.OpGetEnvironment, DisplayName: "Get Environment",
			Description: "Gets environment information for the user.",
		}, b.getEnvironment},
		{Descriptor{
			Name: model.OpSetMode, DisplayName: "Set Mode",
			Description: "Sets the mode of the provider panel.",
			Reads:       []string{globalctx.KeyMode},
		}, b.setMode},
		{Descriptor{
			Name: model.OpGetMode, DisplayName: "Get Mode",
			Description: "Gets the mode of the provider panel.",
		}, b.getMode},
		{Descriptor{
			Name: model.OpSetWidth, DisplayName: "Set Width",
			Description: "Sets the width of the provider panel.",
			Reads:       []string{globalctx.KeyWidth},
		}, b.setWidth},
		{Descriptor{
			Name: model.OpGetWidth, DisplayName: "Get Width",
			Description: "Gets the width of the provider panel.",
		}, b.getWidth},
	} {
		if err := reg.Register(op.desc, op.fn); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

type builtins struct {
	host    Host
	globals globalctx.Reader
}

func (b builtins) require(key string) (string, error) {
	v, ok := b.globals.Get(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingContext, key)
	}
	return v, nil
}

func (b builtins) intOr(key string, def int) (int, error) {
	v, ok := b.globals.Get(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidContext, key, v)
	}
	return n, nil
}

func (b builtins) createSession(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error) {
	tmpl, err := b.require(globalctx.KeySessionTemplate)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	id, err := b.host.CreateSession(ctx, ec.CorrelationID, tmpl)
	if err != nil {
		return rejection(err)
	}
	res := resolvedJSON(id)
	res.Result.SimpleDisplayValue = id
	return res, nil
}

func (b builtins) notifyEvent(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error) {
	tmpl, err := b.require(globalctx.KeyNotificationTemplate)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	resp, err := b.host.NotifyEvent(ctx, ec.CorrelationID, tmpl, model.NewCorrelationID())
	if err != nil {
		return rejection(err)
	}
	return resolvedJSON(resp), nil
}

func (b builtins) createTab(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error) {
	tmpl, err := b.require(globalctx.KeyApplicationTemplate)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	id, err := b.host.CreateTab(ctx, ec.CorrelationID, tmpl)
	if err != nil {
		return rejection(err)
	}
	res := resolvedJSON(id)
	res.Result.SimpleDisplayValue = id
	return res, nil
}

func (b builtins) getTabs(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error) {
	tabs, err := b.host.GetTabs(ctx, ec.CorrelationID)
	if err != nil {
		return rejection(err)
	}
	if tabs == nil {
		tabs = []string{}
	}
	res := resolvedJSON(tabs)
	res.Result.SimpleDisplayValue = strconv.Itoa(len(tabs))
	return res, nil
}

func (b builtins) setPresence(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error) {
	status := DefaultPresence
	if v, ok := b.globals.Get(globalctx.KeyPresenceStatus); ok && v != "" {
		status = v
	}
	ok, err := b.host.SetPresence(ctx, ec.CorrelationID, status)
	if err != nil {
		return rejection(err)
	}
	res := resolvedJSON(ok)
	res.Result.SimpleDisplayValue = status
	return res, nil
}

func (b builtins) getPresence(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error) {
	presence, err := b.host.GetPresence(ctx, ec.CorrelationID)
	if err != nil {
		return rejection(err)
	}
	return model.Resolved(presence), nil
}

func (b builtins) getEnvironment(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error) {
	env, err := b.host.GetEnvironment(ctx, ec.CorrelationID)
	if err != nil {
		return rejection(err)
	}
	return model.Resolved(env), nil
}

func (b builtins) setMode(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error) {
	mode, err := b.intOr(globalctx.KeyMode, DefaultMode)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	if err := b.host.SetMode(ctx, ec.CorrelationID, mode); err != nil {
		return rejection(err)
	}
	return model.Resolved(""), nil
}

func (b builtins) getMode(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error) {
	mode, err := b.host.GetMode(ctx, ec.CorrelationID)
	if err != nil {
		return rejection(err)
	}
	return resolvedJSON(mode), nil
}

func (b builtins) setWidth(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error) {
	width, err := b.intOr(globalctx.KeyWidth, DefaultWidth)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	if err := b.host.SetWidth(ctx, ec.CorrelationID, width); err != nil {
		return rejection(err)
	}
	return model.Resolved(""), nil
}

func (b builtins) getWidth(ctx context.Context, ec model.ExecutionContext) (model.ExecutionResult, error) {
	width, err := b.host.GetWidth(ctx, ec.CorrelationID)
	if err != nil {
		return rejection(err)
	}
	return resolvedJSON(width), nil
}

// resolvedJSON resolves with the JSON encoding of v.
func resolvedJSON(v any) model.ExecutionResult {
	raw, err := json.Marshal(v)
	if err != nil {
		return model.Rejected("", fmt.Sprintf("encode result: %v", err))
	}
	return model.Resolved(string(raw))
}

// rejection converts a host failure into a Rejected result carrying the
// JSON-encoded error. Context errors are returned unchanged so the engine
// can report its own deadline.
func rejection(err error) (model.ExecutionResult, error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.ExecutionResult{}, err
	}
	body, ok := hostbridge.AsCallError(err)
	if !ok {
		body = hostbridge.CallError{Code: "BRIDGE_ERROR", Message: err.Error()}
	}
	raw, encErr := json.Marshal(body)
	if encErr != nil {
		raw = []byte(`{}`)
	}
	return model.Rejected(string(raw), body.Message), nil
}
