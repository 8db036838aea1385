package hostbridge

import (
	"testing"
	"time"
)

func validRequest() Request {
	return Request{
		RequestID:     "req-1",
		CorrelationID: "corr-1",
		Method:        MethodGetMode,
		Timestamp:     time.Now().UTC(),
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr bool
	}{
		{"valid", func(*Request) {}, false},
		{"missing request id", func(r *Request) { r.RequestID = "" }, true},
		{"missing correlation id", func(r *Request) { r.CorrelationID = "" }, true},
		{"missing method", func(r *Request) { r.Method = "" }, true},
		{"missing timestamp", func(r *Request) { r.Timestamp = time.Time{} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			if err := req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResponseValidateAgainstRequest(t *testing.T) {
	req := validRequest()
	ok := Response{RequestID: req.RequestID, CorrelationID: req.CorrelationID, Success: true, Timestamp: time.Now()}

	tests := []struct {
		name    string
		mutate  func(*Response)
		wantErr bool
	}{
		{"valid", func(*Response) {}, false},
		{"request id mismatch", func(r *Response) { r.RequestID = "other" }, true},
		{"correlation id mismatch", func(r *Response) { r.CorrelationID = "other" }, true},
		{"success with error", func(r *Response) { r.Error = &BridgeError{Code: "X", Message: "x"} }, true},
		{"failure without error", func(r *Response) { r.Success = false }, true},
		{"failure without code", func(r *Response) {
			r.Success = false
			r.Error = &BridgeError{Message: "x"}
		}, true},
		{"failure with error", func(r *Response) {
			r.Success = false
			r.Error = &BridgeError{Code: "X", Message: "x"}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ok
			tt.mutate(&resp)
			if err := resp.ValidateAgainstRequest(req); (err != nil) != tt.wantErr {
				t.Errorf("ValidateAgainstRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRawText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"plain"`, "plain"},
		{`"{\"a\":1}"`, `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{` 42 `, "42"},
		{``, ""},
	}
	for _, tt := range tests {
		if got := rawText([]byte(tt.raw)); got != tt.want {
			t.Errorf("rawText(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
