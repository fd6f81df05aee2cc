// Package rowcodec turns a decoded store.Row back into the
// aggregate.Aggregate/QueryRow/ServiceCallRow shapes the merge library
// understands. It is the read-side mirror of internal/writer's column
// builders (which go the other way, aggregate -> row), and is shared by
// internal/rollup and internal/reader so neither has to guess the other's
// column layout.
package rowcodec

import (
	"fmt"

	"github.com/jeffpierce/aggrollup/internal/aggregate"
	"github.com/jeffpierce/aggrollup/internal/codec"
	"github.com/jeffpierce/aggrollup/internal/schema"
	"github.com/jeffpierce/aggrollup/internal/store"
)

// DecodeAggregateRow turns one source row back into an *aggregate.Aggregate
// the reduction helpers in internal/aggregate can fold or a reader can
// merge. Row.Values lines up positionally with schema.Table.Columns
// exactly as store.Store's readRows filled it in, so decoding is a matter
// of walking that same declared order.
//
// query and service_call rows don't decode into an Aggregate at all — use
// DecodeQueryRow/DecodeServiceCallRow and a QueryCollector/
// ServiceCallCollector instead.
func DecodeAggregateRow(kind schema.Kind, row store.Row) (*aggregate.Aggregate, error) {
	agg := aggregate.New()
	v := row.Values

	switch kind {
	case schema.KindSummary:
		agg.TotalDurationNanos = v[0].(float64)
		agg.TransactionCount = v[1].(int64)

	case schema.KindErrorSummary:
		agg.ErrorCount = v[0].(int64)
		agg.TransactionCount = v[1].(int64)

	case schema.KindOverview:
		agg.TotalDurationNanos = v[0].(float64)
		agg.TransactionCount = v[1].(int64)
		agg.AsyncTransactions = v[2].(bool)

		main, err := codec.DecodeRootTimers(v[3].([]byte))
		if err != nil {
			return nil, fmt.Errorf("rowcodec: decode main thread root timers: %w", err)
		}
		aux, err := codec.DecodeRootTimers(v[4].([]byte))
		if err != nil {
			return nil, fmt.Errorf("rowcodec: decode aux thread root timers: %w", err)
		}
		async, err := codec.DecodeRootTimers(v[5].([]byte))
		if err != nil {
			return nil, fmt.Errorf("rowcodec: decode async root timers: %w", err)
		}
		agg.MainThreadRootTimers = main
		agg.AuxThreadRootTimers = aux
		agg.AsyncRootTimers = async

		agg.MainThreadStats = &aggregate.ThreadStats{
			CPUNanos:       v[6].(*float64),
			BlockedNanos:   v[7].(*float64),
			WaitedNanos:    v[8].(*float64),
			AllocatedBytes: v[9].(*float64),
		}
		agg.AuxThreadStats = &aggregate.ThreadStats{
			CPUNanos:       v[10].(*float64),
			BlockedNanos:   v[11].(*float64),
			WaitedNanos:    v[12].(*float64),
			AllocatedBytes: v[13].(*float64),
		}

	case schema.KindHistogram:
		agg.TotalDurationNanos = v[0].(float64)
		agg.TransactionCount = v[1].(int64)
		hist, err := codec.DecodeHistogram(v[2].([]byte))
		if err != nil {
			return nil, fmt.Errorf("rowcodec: decode histogram: %w", err)
		}
		agg.DurationNanosHistogram = hist

	case schema.KindThroughput:
		agg.TransactionCount = v[0].(int64)

	case schema.KindMainThreadProfile:
		profile, err := codec.DecodeProfile(v[0].([]byte))
		if err != nil {
			return nil, fmt.Errorf("rowcodec: decode main thread profile: %w", err)
		}
		agg.MainThreadProfile = profile

	case schema.KindAuxThreadProfile:
		profile, err := codec.DecodeProfile(v[0].([]byte))
		if err != nil {
			return nil, fmt.Errorf("rowcodec: decode aux thread profile: %w", err)
		}
		agg.AuxThreadProfile = profile

	default:
		return nil, fmt.Errorf("rowcodec: kind %s is not a single-row aggregate kind", kind)
	}

	return agg, nil
}

// DecodeQueryRow rebuilds an aggregate.QueryRow from a source row's
// cluster and value columns, in schema.KindQuery's declared order.
func DecodeQueryRow(row store.Row) aggregate.QueryRow {
	cv, v := row.ClusterValues, row.Values
	r := aggregate.QueryRow{
		Type:               cv[0].(string),
		TruncatedText:      cv[1].(string),
		FullTextSha1:       cv[2].(string),
		TotalDurationNanos: v[0].(float64),
		ExecutionCount:     v[1].(int64),
	}
	if totalRows, ok := v[2].(*int64); ok && totalRows != nil {
		r.HasTotalRows = true
		r.TotalRows = *totalRows
	}
	return r
}

// DecodeServiceCallRow rebuilds an aggregate.ServiceCallRow from a source
// row, in schema.KindServiceCall's declared order.
func DecodeServiceCallRow(row store.Row) aggregate.ServiceCallRow {
	cv, v := row.ClusterValues, row.Values
	return aggregate.ServiceCallRow{
		Type:               cv[0].(string),
		Text:               cv[1].(string),
		TotalDurationNanos: v[0].(float64),
		ExecutionCount:     v[1].(int64),
	}
}
