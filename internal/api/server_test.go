package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/seantiz/hostrunner/internal/engine"
	"github.com/seantiz/hostrunner/internal/globalctx"
	"github.com/seantiz/hostrunner/internal/hostbridge"
	"github.com/seantiz/hostrunner/internal/model"
	"github.com/seantiz/hostrunner/internal/operation"
	"github.com/seantiz/hostrunner/internal/store"
)

// testEnv is a fully wired server backed by a simulated host.
type testEnv struct {
	srv     *Server
	host    *hostbridge.SimulatedHost
	bus     evbus.Bus
	release chan struct{}
}

// Extra operations registered for tests.
const (
	opBlocking = "blocking"
	opBroken   = "broken"
)

func newTestEnv(t *testing.T, opts ...engine.Option) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}

	host := hostbridge.NewSimulatedHost(0)
	client := hostbridge.NewClient(host, logger)
	globals := globalctx.New()

	reg, err := operation.NewDefaultRegistry(client, globals)
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}

	release := make(chan struct{})
	mustRegister(t, reg, opBlocking, func(ctx context.Context, _ model.ExecutionContext) (model.ExecutionResult, error) {
		select {
		case <-release:
			return model.Resolved("released"), nil
		case <-ctx.Done():
			return model.ExecutionResult{}, ctx.Err()
		}
	})
	mustRegister(t, reg, opBroken, func(context.Context, model.ExecutionContext) (model.ExecutionResult, error) {
		return model.ExecutionResult{}, errors.New("strategy exploded")
	})

	bus := evbus.New()
	broker := engine.NewEventBroker()
	if err := broker.Attach(bus); err != nil {
		t.Fatalf("broker.Attach: %v", err)
	}
	if err := store.NewRecorder(s, logger).Attach(bus); err != nil {
		t.Fatalf("recorder.Attach: %v", err)
	}

	eng := engine.New(reg, client, globals, bus, logger, opts...)
	ledger := hostbridge.NewEventLedger(nil)

	env := &testEnv{
		srv: NewServer(":0", Deps{
			Registry: reg,
			Engine:   eng,
			Store:    s,
			Globals:  globals,
			Broker:   broker,
			Ledger:   ledger,
			Bridge:   client,
			Logger:   logger,
		}),
		host:    host,
		bus:     bus,
		release: release,
	}
	t.Cleanup(func() {
		env.unblock()
		eng.Wait()
		bus.WaitAsync()
		broker.Close()
		s.Close()
	})
	return env
}

func mustRegister(t *testing.T, reg *operation.Registry, name string, fn operation.StrategyFunc) {
	t.Helper()
	if err := reg.Register(operation.Descriptor{Name: name, DisplayName: name}, fn); err != nil {
		t.Fatalf("Register(%s): %v", name, err)
	}
}

// unblock releases every current and future execution of opBlocking.
func (e *testEnv) unblock() {
	select {
	case <-e.release:
	default:
		close(e.release)
	}
}

// settle waits until the engine is idle and history has been written.
func (e *testEnv) settle() {
	e.srv.engine.Wait()
	e.bus.WaitAsync()
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestEnv(t).srv
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)
	var reqID string
	srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		reqID = middleware.GetReqID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/test", nil)
	req.Header.Set("X-Request-Id", "req-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if reqID != "req-123" {
		t.Errorf("request id in context = %q, want %q", reqID, "req-123")
	}
}

func TestPanicRecovery(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/test", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /test: %v", err)
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t)
	srv.addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/nothing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if body, _ := io.ReadAll(resp.Body); !strings.Contains(string(body), "not found") {
		t.Errorf("body = %q", body)
	}
}
