package aggregate

import "testing"

func TestQueryCollector_CapIsSubsetOfUnion(t *testing.T) {
	t.Parallel()

	c := NewQueryCollector()
	rows := []QueryRow{
		{Type: "SELECT", TruncatedText: "a", FullTextSha1: "sha-a", TotalDurationNanos: 10, ExecutionCount: 1},
		{Type: "SELECT", TruncatedText: "b", FullTextSha1: "sha-b", TotalDurationNanos: 30, ExecutionCount: 1},
		{Type: "SELECT", TruncatedText: "c", FullTextSha1: "sha-c", TotalDurationNanos: 20, ExecutionCount: 1},
	}
	c.Add(rows)

	capped := c.Cap(2)
	if len(capped) != 2 {
		t.Fatalf("len(capped) = %d, want 2", len(capped))
	}

	union := make(map[string]bool, len(rows))
	for _, r := range rows {
		union[r.FullTextSha1] = true
	}
	for _, r := range capped {
		if !union[r.FullTextSha1] {
			t.Fatalf("capped row %q not present in the union of inputs", r.FullTextSha1)
		}
	}
}

func TestQueryCollector_CapKeepsHighestDuration(t *testing.T) {
	t.Parallel()

	c := NewQueryCollector()
	c.Add([]QueryRow{
		{Type: "SELECT", FullTextSha1: "low", TotalDurationNanos: 1},
		{Type: "SELECT", FullTextSha1: "high", TotalDurationNanos: 1000},
	})

	capped := c.Cap(1)
	if len(capped) != 1 || capped[0].FullTextSha1 != "high" {
		t.Fatalf("capped = %+v, want the single highest-duration row", capped)
	}
}

func TestQueryCollector_CapPerTypeIndependently(t *testing.T) {
	t.Parallel()

	c := NewQueryCollector()
	c.Add([]QueryRow{
		{Type: "SELECT", FullTextSha1: "s1", TotalDurationNanos: 5},
		{Type: "SELECT", FullTextSha1: "s2", TotalDurationNanos: 6},
		{Type: "INSERT", FullTextSha1: "i1", TotalDurationNanos: 1},
	})

	capped := c.Cap(1)
	if len(capped) != 2 {
		t.Fatalf("len(capped) = %d, want 2 (top 1 per distinct query_type)", len(capped))
	}
}

func TestQueryCollector_Add_AccumulatesDuplicateKeys(t *testing.T) {
	t.Parallel()

	c := NewQueryCollector()
	c.Add([]QueryRow{
		{Type: "SELECT", FullTextSha1: "s1", TotalDurationNanos: 5, ExecutionCount: 1},
		{Type: "SELECT", FullTextSha1: "s1", TotalDurationNanos: 7, ExecutionCount: 2},
	})

	capped := c.Cap(0) // 0 means no cap
	if len(capped) != 1 {
		t.Fatalf("len(capped) = %d, want 1 (same key merges)", len(capped))
	}
	if capped[0].TotalDurationNanos != 12 || capped[0].ExecutionCount != 3 {
		t.Fatalf("capped[0] = %+v, want TotalDurationNanos=12 ExecutionCount=3", capped[0])
	}
}

func TestServiceCallCollector_CapIsSubsetOfUnion(t *testing.T) {
	t.Parallel()

	c := NewServiceCallCollector()
	rows := []ServiceCallRow{
		{Type: "HTTP", Text: "a", TotalDurationNanos: 10},
		{Type: "HTTP", Text: "b", TotalDurationNanos: 30},
		{Type: "HTTP", Text: "c", TotalDurationNanos: 20},
	}
	c.Add(rows)

	capped := c.Cap(2)
	if len(capped) != 2 {
		t.Fatalf("len(capped) = %d, want 2", len(capped))
	}
	union := map[string]bool{"a": true, "b": true, "c": true}
	for _, r := range capped {
		if !union[r.Text] {
			t.Fatalf("capped row %q not present in the union of inputs", r.Text)
		}
	}
}
