package store

import (
	"strings"
	"testing"

	"github.com/jeffpierce/aggrollup/internal/schema"
)

func TestNewCache_BuildsEveryKindAndLevel(t *testing.T) {
	t.Parallel()

	catalog := schema.New()
	cache := NewCache("aggrollup", catalog, 3)

	for _, k := range schema.AllKinds {
		for level := 0; level < 3; level++ {
			stmt := cache.Get(k, level, OpInsertOverall) // panics if missing
			if stmt == "" {
				t.Fatalf("empty insert statement for kind=%s level=%d", k, level)
			}
		}
	}
}

func TestCache_Get_PanicsOnUnbuiltCombination(t *testing.T) {
	t.Parallel()

	catalog := schema.New()
	cache := NewCache("aggrollup", catalog, 1)

	defer func() {
		if recover() == nil {
			t.Fatalf("Get should panic for a level out of the built range")
		}
	}()
	cache.Get(schema.KindSummary, 99, OpInsertOverall)
}

func TestCache_ExistsProbeOnlyBuiltForProfileKinds(t *testing.T) {
	t.Parallel()

	catalog := schema.New()
	cache := NewCache("aggrollup", catalog, 1)

	stmt := cache.Get(schema.KindMainThreadProfile, 0, OpExistsOverall) // must not panic
	if !strings.Contains(stmt, "LIMIT 1") {
		t.Fatalf("exists statement = %q, want a LIMIT 1 probe", stmt)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("summary kinds have no exists probe; Get should panic")
		}
	}()
	cache.Get(schema.KindSummary, 0, OpExistsOverall)
}

func TestCache_SummaryReadIsLowerBoundExclusive(t *testing.T) {
	t.Parallel()

	catalog := schema.New()
	cache := NewCache("aggrollup", catalog, 1)

	stmt := cache.Get(schema.KindSummary, 0, OpReadOverall)
	if !strings.Contains(stmt, "capture_time > ?") {
		t.Fatalf("summary read statement should be lower-bound exclusive: %s", stmt)
	}
}

func TestCache_OverviewReadIsLowerBoundInclusive(t *testing.T) {
	t.Parallel()

	catalog := schema.New()
	cache := NewCache("aggrollup", catalog, 1)

	stmt := cache.Get(schema.KindOverview, 0, OpReadOverall)
	if !strings.Contains(stmt, "capture_time >= ?") {
		t.Fatalf("overview read statement should be lower-bound inclusive: %s", stmt)
	}
}

func TestCache_InsertStatementIncludesTTLPlaceholder(t *testing.T) {
	t.Parallel()

	catalog := schema.New()
	cache := NewCache("aggrollup", catalog, 1)

	stmt := cache.Get(schema.KindThroughput, 0, OpInsertOverall)
	if !strings.Contains(stmt, "USING TTL ?") {
		t.Fatalf("insert statement should carry a TTL placeholder: %s", stmt)
	}
}

func TestCache_SummaryInsertSharesOverallAndTransactionStatement(t *testing.T) {
	t.Parallel()

	catalog := schema.New()
	cache := NewCache("aggrollup", catalog, 1)

	overall := cache.Get(schema.KindSummary, 0, OpInsertOverall)
	txn := cache.Get(schema.KindSummary, 0, OpInsertTransaction)
	if overall != txn {
		t.Fatalf("summary insert statements should be identical for overall/transaction: %q vs %q", overall, txn)
	}
}
