package rollup

import (
	"context"
	"testing"
	"time"

	"github.com/jeffpierce/aggrollup/internal/agentrollup"
	"github.com/jeffpierce/aggrollup/internal/config"
)

type emptyNodeSource struct{}

func (emptyNodeSource) Nodes() []agentrollup.Node { return nil }

func TestScheduler_Name(t *testing.T) {
	t.Parallel()

	engine := New(nil, nil, nil, config.RollupConfig{}, nil, nil)
	s := NewScheduler(engine, emptyNodeSource{}, time.Millisecond, nil)
	if s.Name() != "rollup_scheduler" {
		t.Fatalf("Name() = %q, want rollup_scheduler", s.Name())
	}
}

func TestScheduler_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	engine := New(nil, nil, nil, config.RollupConfig{}, nil, nil)
	s := NewScheduler(engine, emptyNodeSource{}, time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil on context cancellation", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}
