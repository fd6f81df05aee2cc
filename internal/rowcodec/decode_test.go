package rowcodec

import (
	"testing"

	"github.com/jeffpierce/aggrollup/internal/aggregate"
	"github.com/jeffpierce/aggrollup/internal/codec"
	"github.com/jeffpierce/aggrollup/internal/schema"
	"github.com/jeffpierce/aggrollup/internal/store"
)

func float64Ptr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64       { return &v }

func TestDecodeAggregateRow_Summary(t *testing.T) {
	t.Parallel()

	row := store.Row{Values: []interface{}{float64(100), int64(5)}}
	agg, err := DecodeAggregateRow(schema.KindSummary, row)
	if err != nil {
		t.Fatalf("DecodeAggregateRow: %v", err)
	}
	if agg.TotalDurationNanos != 100 || agg.TransactionCount != 5 {
		t.Fatalf("agg = %+v, want {100, 5}", agg)
	}
}

func TestDecodeAggregateRow_Overview(t *testing.T) {
	t.Parallel()

	timers, err := codec.EncodeRootTimers([]*aggregate.RootTimer{{Name: "a", TotalNanos: 1, Count: 1}})
	if err != nil {
		t.Fatalf("EncodeRootTimers: %v", err)
	}
	empty, err := codec.EncodeRootTimers(nil)
	if err != nil {
		t.Fatalf("EncodeRootTimers(nil): %v", err)
	}

	row := store.Row{Values: []interface{}{
		float64(500), int64(10), true,
		timers, empty, empty,
		float64Ptr(1), float64Ptr(2), float64Ptr(3), float64Ptr(4),
		(*float64)(nil), (*float64)(nil), (*float64)(nil), (*float64)(nil),
	}}

	agg, err := DecodeAggregateRow(schema.KindOverview, row)
	if err != nil {
		t.Fatalf("DecodeAggregateRow: %v", err)
	}
	if !agg.AsyncTransactions {
		t.Fatalf("AsyncTransactions = false, want true")
	}
	if len(agg.MainThreadRootTimers) != 1 {
		t.Fatalf("MainThreadRootTimers = %+v, want 1 entry", agg.MainThreadRootTimers)
	}
	if agg.MainThreadStats.CPUNanos == nil || *agg.MainThreadStats.CPUNanos != 1 {
		t.Fatalf("MainThreadStats.CPUNanos = %v, want 1", agg.MainThreadStats.CPUNanos)
	}
	if agg.AuxThreadStats.CPUNanos != nil {
		t.Fatalf("AuxThreadStats.CPUNanos = %v, want nil (absent)", agg.AuxThreadStats.CPUNanos)
	}
}

func TestDecodeAggregateRow_QueryKindIsUnsupported(t *testing.T) {
	t.Parallel()

	if _, err := DecodeAggregateRow(schema.KindQuery, store.Row{}); err == nil {
		t.Fatalf("DecodeAggregateRow(KindQuery) should error: use DecodeQueryRow instead")
	}
}

func TestDecodeQueryRow_WithTotalRows(t *testing.T) {
	t.Parallel()

	row := store.Row{
		ClusterValues: []interface{}{"SELECT", "select * from ...", "sha1abc"},
		Values:        []interface{}{float64(20), int64(4), int64Ptr(100)},
	}
	got := DecodeQueryRow(row)

	if !got.HasTotalRows || got.TotalRows != 100 {
		t.Fatalf("got = %+v, want HasTotalRows=true TotalRows=100", got)
	}
	if got.Type != "SELECT" || got.FullTextSha1 != "sha1abc" {
		t.Fatalf("got = %+v, want Type=SELECT FullTextSha1=sha1abc", got)
	}
}

func TestDecodeQueryRow_WithoutTotalRows(t *testing.T) {
	t.Parallel()

	row := store.Row{
		ClusterValues: []interface{}{"SELECT", "select * from ...", "sha1abc"},
		Values:        []interface{}{float64(20), int64(4), (*int64)(nil)},
	}
	got := DecodeQueryRow(row)

	if got.HasTotalRows {
		t.Fatalf("got.HasTotalRows = true, want false when total_rows is NULL")
	}
}

func TestDecodeServiceCallRow(t *testing.T) {
	t.Parallel()

	row := store.Row{
		ClusterValues: []interface{}{"HTTP", "GET /foo"},
		Values:        []interface{}{float64(30), int64(2)},
	}
	got := DecodeServiceCallRow(row)
	if got.Type != "HTTP" || got.Text != "GET /foo" || got.TotalDurationNanos != 30 || got.ExecutionCount != 2 {
		t.Fatalf("got = %+v, unexpected", got)
	}
}
