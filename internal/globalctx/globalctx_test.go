package globalctx_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/seantiz/hostrunner/internal/globalctx"
)

func TestSetGet(t *testing.T) {
	s := globalctx.New()
	if _, ok := s.Get(globalctx.KeySessionTemplate); ok {
		t.Fatal("empty store returned a value")
	}

	s.Set(globalctx.KeySessionTemplate, "msdyn_chat_session")
	s.Set(globalctx.KeySessionTemplate, "msdyn_3p_session")

	v, ok := s.Get(globalctx.KeySessionTemplate)
	if !ok || v != "msdyn_3p_session" {
		t.Errorf("Get = %q, %v; want last write", v, ok)
	}

	s.Delete(globalctx.KeySessionTemplate)
	if _, ok := s.Get(globalctx.KeySessionTemplate); ok {
		t.Error("value still present after Delete")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := globalctx.New()
	s.Set("a", "1")

	snap := s.Snapshot()
	snap["a"] = "changed"

	if v, _ := s.Get("a"); v != "1" {
		t.Errorf("store mutated through snapshot: %q", v)
	}
}

func TestConcurrentWriters(t *testing.T) {
	s := globalctx.New()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			for j := range 100 {
				s.Set(fmt.Sprintf("k%d", i), fmt.Sprint(j))
				s.Get("k0")
			}
		})
	}
	wg.Wait()

	if got := len(s.Snapshot()); got != 8 {
		t.Errorf("len = %d, want 8", got)
	}
}
