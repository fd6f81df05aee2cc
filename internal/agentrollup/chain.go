// Package agentrollup resolves the agent-rollup tree: the ordered chain of
// ancestor group identifiers an agent belongs to, and the immediate parent
// of a given node. Storage and management of that tree (enrollment, group
// naming, UI configuration) is explicitly out of scope for this engine —
// spec.md §4.1 only needs the shape of chain resolution, not its backing
// store, so Resolver is an interface with a small in-memory implementation
// for tests and standalone deployments where the tree is flat.
package agentrollup

import (
	"context"
	"fmt"
	"sort"

	"github.com/jeffpierce/aggrollup/internal/apmerr"
)

// Resolver resolves an agent-rollup's ancestor chain.
type Resolver interface {
	// Chain returns the ordered list of ancestor agent-rollup IDs, nearest
	// parent first, for the given leaf agent-rollup ID. An agent with no
	// parent returns an empty slice.
	Chain(ctx context.Context, agentRollupID string) ([]string, error)
}

// StaticResolver is an in-memory Resolver backed by a fixed parent map,
// suitable for single-tenant or flat deployments and for tests.
type StaticResolver struct {
	parent map[string]string
}

// NewStaticResolver builds a StaticResolver from a child->parent map.
func NewStaticResolver(parent map[string]string) *StaticResolver {
	return &StaticResolver{parent: parent}
}

// Chain walks the parent map until it runs out of ancestors, detecting
// cycles (which would otherwise loop forever) and reporting them as an
// InvariantViolation — a malformed agent-rollup tree is a configuration
// bug, not a transient condition.
func (r *StaticResolver) Chain(_ context.Context, agentRollupID string) ([]string, error) {
	var chain []string
	seen := map[string]bool{agentRollupID: true}
	cur := agentRollupID
	for {
		p, ok := r.parent[cur]
		if !ok || p == "" {
			return chain, nil
		}
		if seen[p] {
			return nil, &apmerr.InvariantViolation{Detail: fmt.Sprintf("agent-rollup cycle detected at %q", p)}
		}
		chain = append(chain, p)
		seen[p] = true
		cur = p
	}
}

// Parent returns the immediate parent of an agent-rollup ID, if any.
func (r *StaticResolver) Parent(agentRollupID string) (string, bool) {
	p, ok := r.parent[agentRollupID]
	if !ok || p == "" {
		return "", false
	}
	return p, true
}

// Node is one agent-rollup tree member as the scheduler needs to see it:
// its immediate parent (nil at the root) and whether it is a leaf (an
// actual reporting agent, as opposed to a synthetic group that only
// aggregates children).
type Node struct {
	ID       string
	Parent   *string
	IsLeaf   bool
}

// Nodes enumerates every node mentioned anywhere in the parent map —
// either as a child or as a parent — in a stable, sorted order. A node is
// a leaf iff no other node names it as a parent.
func (r *StaticResolver) Nodes() []Node {
	isParent := make(map[string]bool, len(r.parent))
	ids := make(map[string]bool, len(r.parent)*2)
	for child, parent := range r.parent {
		ids[child] = true
		if parent != "" {
			ids[parent] = true
			isParent[parent] = true
		}
	}

	out := make([]Node, 0, len(ids))
	for id := range ids {
		n := Node{ID: id, IsLeaf: !isParent[id]}
		if p, ok := r.parent[id]; ok && p != "" {
			parent := p
			n.Parent = &parent
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
