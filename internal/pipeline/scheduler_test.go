package pipeline

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestLoopRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := sampleFetcher()
	f.onFetch = func() {
		f.mu.Lock()
		n := f.calls
		f.mu.Unlock()
		if n >= 2*len(testSources) {
			cancel()
		}
	}
	env := newTestEnv(t, f)

	done := make(chan struct{})
	go func() {
		env.runner.Loop(ctx, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Loop did not stop after cancel")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls < 2*len(testSources) {
		t.Errorf("fetch calls = %d, want at least %d", f.calls, 2*len(testSources))
	}
	if _, err := os.Stat(env.store.Path(today)); err != nil {
		t.Errorf("first run did not archive: %v", err)
	}
}
