package writer

import (
	"fmt"

	"github.com/jeffpierce/aggrollup/internal/aggregate"
	"github.com/jeffpierce/aggrollup/internal/codec"
	"github.com/jeffpierce/aggrollup/internal/schema"
)

// SingleRowValues builds the (ClusterKeys..., Columns...) value slice for
// every kind except query and service_call, which fan out to one row per
// collected entry (see QueryRowValues/ServiceCallRowValues). internal/rollup
// reuses this to re-encode a merged aggregate at the next level, so the
// write-side encoding is defined in exactly one place.
func SingleRowValues(kind schema.Kind, agg *aggregate.Aggregate) ([]interface{}, error) {
	switch kind {
	case schema.KindSummary:
		return []interface{}{agg.TotalDurationNanos, agg.TransactionCount}, nil

	case schema.KindErrorSummary:
		return []interface{}{agg.ErrorCount, agg.TransactionCount}, nil

	case schema.KindOverview:
		main, err := codec.EncodeRootTimers(agg.MainThreadRootTimers)
		if err != nil {
			return nil, fmt.Errorf("encode main thread root timers: %w", err)
		}
		aux, err := codec.EncodeRootTimers(agg.AuxThreadRootTimers)
		if err != nil {
			return nil, fmt.Errorf("encode aux thread root timers: %w", err)
		}
		async, err := codec.EncodeRootTimers(agg.AsyncRootTimers)
		if err != nil {
			return nil, fmt.Errorf("encode async root timers: %w", err)
		}
		mainStats := agg.MainThreadStats
		auxStats := agg.AuxThreadStats
		if mainStats == nil {
			mainStats = &aggregate.ThreadStats{}
		}
		if auxStats == nil {
			auxStats = &aggregate.ThreadStats{}
		}
		return []interface{}{
			agg.TotalDurationNanos, agg.TransactionCount, agg.AsyncTransactions,
			main, aux, async,
			mainStats.CPUNanos, mainStats.BlockedNanos, mainStats.WaitedNanos, mainStats.AllocatedBytes,
			auxStats.CPUNanos, auxStats.BlockedNanos, auxStats.WaitedNanos, auxStats.AllocatedBytes,
		}, nil

	case schema.KindHistogram:
		h := agg.DurationNanosHistogram
		if h == nil {
			h = &aggregate.Histogram{}
		}
		return []interface{}{agg.TotalDurationNanos, agg.TransactionCount, codec.EncodeHistogram(h)}, nil

	case schema.KindThroughput:
		return []interface{}{agg.TransactionCount}, nil

	case schema.KindMainThreadProfile:
		blob, err := codec.EncodeProfile(agg.MainThreadProfile)
		if err != nil {
			return nil, fmt.Errorf("encode main thread profile: %w", err)
		}
		return []interface{}{blob}, nil

	case schema.KindAuxThreadProfile:
		blob, err := codec.EncodeProfile(agg.AuxThreadProfile)
		if err != nil {
			return nil, fmt.Errorf("encode aux thread profile: %w", err)
		}
		return []interface{}{blob}, nil

	default:
		return nil, fmt.Errorf("writer: kind %s is not a single-row kind", kind)
	}
}

func QueryRowValues(r aggregate.QueryRow) ([]interface{}, []interface{}) {
	clusterValues := []interface{}{r.Type, r.TruncatedText, r.FullTextSha1}
	var totalRows interface{}
	if r.HasTotalRows {
		v := r.TotalRows
		totalRows = &v
	}
	return clusterValues, []interface{}{r.TotalDurationNanos, r.ExecutionCount, totalRows}
}

func ServiceCallRowValues(r aggregate.ServiceCallRow) ([]interface{}, []interface{}) {
	clusterValues := []interface{}{r.Type, r.Text}
	return clusterValues, []interface{}{r.TotalDurationNanos, r.ExecutionCount}
}

// ShouldWriteKind implements step 3's conditional writes: summary,
// overview, histogram, and throughput are unconditional; error_summary
// only when the bucket actually saw errors; profile tables only when the
// agent captured one.
func ShouldWriteKind(kind schema.Kind, agg *aggregate.Aggregate) bool {
	switch kind {
	case schema.KindErrorSummary:
		return agg.ErrorCount > 0
	case schema.KindMainThreadProfile:
		return agg.MainThreadProfile != nil
	case schema.KindAuxThreadProfile:
		return agg.AuxThreadProfile != nil
	default:
		return true
	}
}
