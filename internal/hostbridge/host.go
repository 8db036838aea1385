package hostbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

type templateInput struct {
	TemplateName       string            `json:"templateName"`
	TemplateParameters map[string]string `json:"templateParameters"`
	CancellationToken  string            `json:"cancellationToken,omitempty"`
}

func newTemplateInput(name string) templateInput {
	return templateInput{TemplateName: name, TemplateParameters: map[string]string{}}
}

// CreateSession opens a session from templateName and returns its id.
func (c *Client) CreateSession(ctx context.Context, correlationID, templateName string) (string, error) {
	var id string
	err := c.callInto(ctx, correlationID, MethodCreateSession, newTemplateInput(templateName), &id)
	return id, err
}

// CreateTab opens a tab in the focused session and returns its id.
func (c *Client) CreateTab(ctx context.Context, correlationID, templateName string) (string, error) {
	var id string
	err := c.callInto(ctx, correlationID, MethodCreateTab, newTemplateInput(templateName), &id)
	return id, err
}

// NotifyEvent raises a notification and returns the host's notification
// response.
func (c *Client) NotifyEvent(ctx context.Context, correlationID, templateName, cancellationToken string) (string, error) {
	in := newTemplateInput(templateName)
	in.CancellationToken = cancellationToken
	raw, err := c.Call(ctx, correlationID, MethodNotifyEvent, in)
	if err != nil {
		return "", err
	}
	return rawText(raw), nil
}

// GetTabs returns the tab ids of the focused session.
func (c *Client) GetTabs(ctx context.Context, correlationID string) ([]string, error) {
	var ids []string
	err := c.callInto(ctx, correlationID, MethodGetTabs, nil, &ids)
	return ids, err
}

// GetEnvironment returns the host environment as JSON text.
func (c *Client) GetEnvironment(ctx context.Context, correlationID string) (string, error) {
	raw, err := c.Call(ctx, correlationID, MethodGetEnvironment, nil)
	if err != nil {
		return "", err
	}
	return rawText(raw), nil
}

func (c *Client) SetPresence(ctx context.Context, correlationID, status string) (bool, error) {
	var ok bool
	err := c.callInto(ctx, correlationID, MethodSetPresence, map[string]string{"presence": status}, &ok)
	return ok, err
}

// GetPresence returns the agent presence as JSON text.
func (c *Client) GetPresence(ctx context.Context, correlationID string) (string, error) {
	raw, err := c.Call(ctx, correlationID, MethodGetPresence, nil)
	if err != nil {
		return "", err
	}
	return rawText(raw), nil
}

func (c *Client) SetMode(ctx context.Context, correlationID string, mode int) error {
	_, err := c.Call(ctx, correlationID, MethodSetMode, map[string]int{"mode": mode})
	return err
}

func (c *Client) GetMode(ctx context.Context, correlationID string) (int, error) {
	var mode int
	err := c.callInto(ctx, correlationID, MethodGetMode, nil, &mode)
	return mode, err
}

func (c *Client) SetWidth(ctx context.Context, correlationID string, width int) error {
	_, err := c.Call(ctx, correlationID, MethodSetWidth, map[string]int{"width": width})
	return err
}

func (c *Client) GetWidth(ctx context.Context, correlationID string) (int, error) {
	var width int
	err := c.callInto(ctx, correlationID, MethodGetWidth, nil, &width)
	return width, err
}

func (c *Client) callInto(ctx context.Context, correlationID string, method Method, payload, out any) error {
	raw, err := c.Call(ctx, correlationID, method, payload)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return ProtocolError{Message: fmt.Sprintf("decode %s response: %v", method, err)}
	}
	return nil
}

// rawText unwraps a JSON string payload and returns any other payload as
// its JSON text.
func rawText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
