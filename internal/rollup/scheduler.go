package rollup

import (
	"context"
	"time"

	"github.com/jeffpierce/aggrollup/internal/agentrollup"
	"github.com/jeffpierce/aggrollup/internal/logging"
)

// NodeSource supplies the set of agent-rollup nodes a Scheduler drives.
// agentrollup.StaticResolver satisfies this.
type NodeSource interface {
	Nodes() []agentrollup.Node
}

// Scheduler is a ticker-driven background worker (Name plus Run(ctx)) that
// calls Engine.Rollup for every known agent-rollup node on a fixed tick,
// one node after another.
type Scheduler struct {
	engine   *Engine
	nodes    NodeSource
	interval time.Duration
	log      *logging.Logger
}

// NewScheduler builds a Scheduler. interval should be no coarser than the
// smallest configured rollup interval, so a stalled last-bucket is picked
// up promptly once it clears the "last bucket" hold-back window.
func NewScheduler(engine *Engine, nodes NodeSource, interval time.Duration, log *logging.Logger) *Scheduler {
	return &Scheduler{engine: engine, nodes: nodes, interval: interval, log: log}
}

// Name identifies this worker for logging.
func (s *Scheduler) Name() string { return "rollup_scheduler" }

// Run ticks until ctx is cancelled, rolling up every known node once per
// tick. One node's failure is logged and does not stop the others or the
// loop itself — a transient Cassandra error on one subtree should not
// starve the rest of the tree.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, n := range s.nodes.Nodes() {
		if err := s.engine.Rollup(ctx, n.ID, n.Parent, n.IsLeaf); err != nil {
			if s.log != nil {
				s.log.LogError("rollup scheduler: node %s: %v", n.ID, err)
			}
		}
	}
}
