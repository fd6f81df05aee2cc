package agentrollup

import (
	"context"
	"testing"

	"github.com/jeffpierce/aggrollup/internal/apmerr"
)

func TestChain_WalksToRoot(t *testing.T) {
	t.Parallel()

	r := NewStaticResolver(map[string]string{
		"host-1": "service-a",
		"service-a": "app-group",
	})

	chain, err := r.Chain(context.Background(), "host-1")
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	want := []string{"service-a", "app-group"}
	if len(chain) != len(want) {
		t.Fatalf("chain = %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("chain = %v, want %v", chain, want)
		}
	}
}

func TestChain_RootHasEmptyChain(t *testing.T) {
	t.Parallel()

	r := NewStaticResolver(map[string]string{"lonely": ""})
	chain, err := r.Chain(context.Background(), "lonely")
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(chain) != 0 {
		t.Fatalf("chain = %v, want empty", chain)
	}
}

func TestChain_UnknownIDHasEmptyChain(t *testing.T) {
	t.Parallel()

	r := NewStaticResolver(map[string]string{})
	chain, err := r.Chain(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(chain) != 0 {
		t.Fatalf("chain = %v, want empty", chain)
	}
}

func TestChain_DetectsCycle(t *testing.T) {
	t.Parallel()

	r := NewStaticResolver(map[string]string{
		"a": "b",
		"b": "a",
	})

	_, err := r.Chain(context.Background(), "a")
	if err == nil {
		t.Fatalf("Chain should detect the a->b->a cycle")
	}
	if _, ok := err.(*apmerr.InvariantViolation); !ok {
		t.Fatalf("err = %v (%T), want *apmerr.InvariantViolation", err, err)
	}
}

func TestParent(t *testing.T) {
	t.Parallel()

	r := NewStaticResolver(map[string]string{"child": "parent"})

	if p, ok := r.Parent("child"); !ok || p != "parent" {
		t.Fatalf("Parent(child) = (%q, %v), want (parent, true)", p, ok)
	}
	if _, ok := r.Parent("parent"); ok {
		t.Fatalf("Parent(parent) should report no parent")
	}
}

func TestNodes_IdentifiesLeavesAndSortsStably(t *testing.T) {
	t.Parallel()

	r := NewStaticResolver(map[string]string{
		"host-2": "service-a",
		"host-1": "service-a",
		"service-a": "",
	})

	nodes := r.Nodes()
	if len(nodes) != 3 {
		t.Fatalf("len(nodes) = %d, want 3", len(nodes))
	}
	if nodes[0].ID != "host-1" || nodes[1].ID != "host-2" || nodes[2].ID != "service-a" {
		t.Fatalf("nodes not sorted by ID: %+v", nodes)
	}
	for _, n := range nodes {
		switch n.ID {
		case "host-1", "host-2":
			if !n.IsLeaf {
				t.Fatalf("%q should be a leaf", n.ID)
			}
			if n.Parent == nil || *n.Parent != "service-a" {
				t.Fatalf("%q.Parent = %v, want service-a", n.ID, n.Parent)
			}
		case "service-a":
			if n.IsLeaf {
				t.Fatalf("service-a should not be a leaf (it is named as a parent)")
			}
		}
	}
}
