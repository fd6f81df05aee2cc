// Package reader implements C9: the read side of the engine, exposing one
// mergeXInto-shaped operation per aggregate kind as spec.md §4.4 describes.
// The engine (this package) issues one range read per kind and folds the
// rows into the same internal/aggregate merge functions the rollup engine
// uses — a UI-facing "totals for the last hour" query and a rollup pass
// are the same reduction, just with a different caller and a different
// destination. It is the generalization of the teacher's
// datastore.StatRetrieve/CacheRetrieve read path (datastore/retrieve.go)
// from "one metric series" to "one aggregate kind over an arbitrary
// agent-rollup/time range."
package reader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jeffpierce/aggrollup/internal/aggregate"
	"github.com/jeffpierce/aggrollup/internal/rowcodec"
	"github.com/jeffpierce/aggrollup/internal/schema"
	"github.com/jeffpierce/aggrollup/internal/store"
)

// Query identifies one range read: an agent-rollup, transaction type,
// optional transaction name (empty means the overall row), rollup level,
// and an inclusive-per-kind time range (row invariant 2 governs the lower
// bound; see schema.Table.FromInclusive).
type Query struct {
	AgentRollupID   string
	TransactionType string
	TransactionName string
	Level           int
	From            time.Time
	To              time.Time
}

// Reader is C9.
type Reader struct {
	store   *store.Store
	catalog *schema.Catalog
}

// New builds a Reader.
func New(st *store.Store, catalog *schema.Catalog) *Reader {
	return &Reader{store: st, catalog: catalog}
}

func (r *Reader) readRows(ctx context.Context, kind schema.Kind, q Query) ([]store.Row, error) {
	t := r.catalog.Table(kind)
	if q.TransactionName == "" {
		return r.store.ReadOverall(ctx, t, q.Level, q.AgentRollupID, q.TransactionType, q.From, q.To)
	}
	return r.store.ReadTransaction(ctx, t, q.Level, q.AgentRollupID, q.TransactionType, q.TransactionName, q.From, q.To)
}

// mergeAggregateInto is shared by every kind that folds into an
// *aggregate.Aggregate via aggregate.Merge (summary, error_summary,
// throughput, overview, histogram). Corrupt rows are skipped, matching
// the rollup engine's "never let one bad row wedge the read" discipline.
func (r *Reader) mergeAggregateInto(ctx context.Context, kind schema.Kind, q Query) (*aggregate.Aggregate, error) {
	rows, err := r.readRows(ctx, kind, q)
	if err != nil {
		return nil, err
	}
	agg := aggregate.New()
	for _, row := range rows {
		decoded, err := rowcodec.DecodeAggregateRow(kind, row)
		if err != nil {
			continue
		}
		agg = aggregate.Merge(agg, decoded)
	}
	return agg, nil
}

// MergeSummaryInto returns the summed (total_duration, count) over q's
// range.
func (r *Reader) MergeSummaryInto(ctx context.Context, q Query) (totalDurationNanos float64, transactionCount int64, err error) {
	agg, err := r.mergeAggregateInto(ctx, schema.KindSummary, q)
	if err != nil {
		return 0, 0, err
	}
	return agg.TotalDurationNanos, agg.TransactionCount, nil
}

// MergeErrorSummaryInto returns the summed (error_count, count) over q's
// range.
func (r *Reader) MergeErrorSummaryInto(ctx context.Context, q Query) (errorCount, transactionCount int64, err error) {
	agg, err := r.mergeAggregateInto(ctx, schema.KindErrorSummary, q)
	if err != nil {
		return 0, 0, err
	}
	return agg.ErrorCount, agg.TransactionCount, nil
}

// MergeThroughputInto returns the summed transaction count over q's range.
func (r *Reader) MergeThroughputInto(ctx context.Context, q Query) (transactionCount int64, err error) {
	agg, err := r.mergeAggregateInto(ctx, schema.KindThroughput, q)
	if err != nil {
		return 0, err
	}
	return agg.TransactionCount, nil
}

// MergeOverviewInto returns the merged overview aggregate (root-timer
// trees, async flag, nullable thread stats) over q's range.
func (r *Reader) MergeOverviewInto(ctx context.Context, q Query) (*aggregate.Aggregate, error) {
	return r.mergeAggregateInto(ctx, schema.KindOverview, q)
}

// MergeHistogramInto returns the merged duration histogram and its
// (total_duration, count) over q's range.
func (r *Reader) MergeHistogramInto(ctx context.Context, q Query) (*aggregate.Histogram, float64, int64, error) {
	agg, err := r.mergeAggregateInto(ctx, schema.KindHistogram, q)
	if err != nil {
		return nil, 0, 0, err
	}
	hist := agg.DurationNanosHistogram
	if hist == nil {
		hist = &aggregate.Histogram{}
	}
	return hist, agg.TotalDurationNanos, agg.TransactionCount, nil
}

// MergeQueryInto folds every query row in q's range into collector and
// returns the top-N-per-type result, per spec.md §4.3/§4.4.
func (r *Reader) MergeQueryInto(ctx context.Context, q Query, collector *aggregate.QueryCollector, topN int) ([]aggregate.QueryRow, error) {
	rows, err := r.readRows(ctx, schema.KindQuery, q)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		collector.Add([]aggregate.QueryRow{rowcodec.DecodeQueryRow(row)})
	}
	return collector.Cap(topN), nil
}

// MergeServiceCallInto is MergeQueryInto's service_call analogue.
func (r *Reader) MergeServiceCallInto(ctx context.Context, q Query, collector *aggregate.ServiceCallCollector, topN int) ([]aggregate.ServiceCallRow, error) {
	rows, err := r.readRows(ctx, schema.KindServiceCall, q)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		collector.Add([]aggregate.ServiceCallRow{rowcodec.DecodeServiceCallRow(row)})
	}
	return collector.Cap(topN), nil
}

// MergeMainThreadProfileInto returns the merged call tree over q's range,
// or nil if no profile data exists there.
func (r *Reader) MergeMainThreadProfileInto(ctx context.Context, q Query) (*aggregate.ProfileNode, error) {
	agg, err := r.mergeAggregateInto(ctx, schema.KindMainThreadProfile, q)
	if err != nil {
		return nil, err
	}
	return agg.MainThreadProfile, nil
}

// MergeAuxThreadProfileInto is MergeMainThreadProfileInto's aux analogue.
func (r *Reader) MergeAuxThreadProfileInto(ctx context.Context, q Query) (*aggregate.ProfileNode, error) {
	agg, err := r.mergeAggregateInto(ctx, schema.KindAuxThreadProfile, q)
	if err != nil {
		return nil, err
	}
	return agg.AuxThreadProfile, nil
}

// HasMainThreadProfile runs the LIMIT 1 existence probe spec.md §4.4 calls
// for instead of a full read, for the overall row at one level.
func (r *Reader) HasMainThreadProfile(ctx context.Context, agentRollupID, transactionType string, level int) (bool, error) {
	return r.store.ExistsOverall(ctx, r.catalog.Table(schema.KindMainThreadProfile), level, agentRollupID, transactionType)
}

// HasMainThreadProfileForTransaction is HasMainThreadProfile's
// per-transaction-name analogue.
func (r *Reader) HasMainThreadProfileForTransaction(ctx context.Context, agentRollupID, transactionType, transactionName string, level int) (bool, error) {
	return r.store.ExistsTransaction(ctx, r.catalog.Table(schema.KindMainThreadProfile), level, agentRollupID, transactionType, transactionName)
}

// HasAuxThreadProfile is HasMainThreadProfile's aux analogue.
func (r *Reader) HasAuxThreadProfile(ctx context.Context, agentRollupID, transactionType string, level int) (bool, error) {
	return r.store.ExistsOverall(ctx, r.catalog.Table(schema.KindAuxThreadProfile), level, agentRollupID, transactionType)
}

// HasAuxThreadProfileForTransaction is HasAuxThreadProfile's
// per-transaction-name analogue.
func (r *Reader) HasAuxThreadProfileForTransaction(ctx context.Context, agentRollupID, transactionType, transactionName string, level int) (bool, error) {
	return r.store.ExistsTransaction(ctx, r.catalog.Table(schema.KindAuxThreadProfile), level, agentRollupID, transactionType, transactionName)
}

// ShouldHaveQueries reports whether agentRollupID's retention policy still
// covers a capture time old enough that absent query rows are expected
// rather than surprising. Always false for now.
//
// TODO: this needs a retention-check design — comparing captureTime's age
// against the agent-rollup's configured query-table retention — before it
// can return anything but false; until then callers should not treat a
// false result as "this agent never collects queries".
func (r *Reader) ShouldHaveQueries(ctx context.Context, agentRollupID string, captureTime time.Time) (bool, error) {
	return false, nil
}

// ShouldHaveServiceCalls is ShouldHaveQueries' service_call analogue.
//
// TODO: same retention-check design as ShouldHaveQueries.
func (r *Reader) ShouldHaveServiceCalls(ctx context.Context, agentRollupID string, captureTime time.Time) (bool, error) {
	return false, nil
}

// ShouldHaveProfile is ShouldHaveQueries' profile analogue, covering both
// main- and aux-thread profile tables.
//
// TODO: same retention-check design as ShouldHaveQueries.
func (r *Reader) ShouldHaveProfile(ctx context.Context, agentRollupID string, captureTime time.Time) (bool, error) {
	return false, nil
}

// NamedTotal is one transaction name's summary totals, as returned by
// ListSummaryTotals/ListErrorSummaryTotals.
type NamedTotal struct {
	TransactionName    string
	TotalDurationNanos float64
	TransactionCount   int64
}

// ListSummaryTotals reads each of transactionNames' summary rows over the
// given range, sums them, and returns the top `limit` by total duration.
// The store has no way to enumerate distinct transaction names or to sort
// and limit across partitions itself (spec.md §4.4: "the store does not
// aggregate"), so the caller supplies the candidate name set and this
// method does the grouping, sorting, and limiting in Go.
func (r *Reader) ListSummaryTotals(ctx context.Context, agentRollupID, transactionType string, transactionNames []string, level int, from, to time.Time, limit int) ([]NamedTotal, error) {
	out := make([]NamedTotal, 0, len(transactionNames))
	for _, name := range transactionNames {
		q := Query{AgentRollupID: agentRollupID, TransactionType: transactionType, TransactionName: name, Level: level, From: from, To: to}
		totalDurationNanos, transactionCount, err := r.MergeSummaryInto(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("reader: list summary totals for %q: %w", name, err)
		}
		out = append(out, NamedTotal{TransactionName: name, TotalDurationNanos: totalDurationNanos, TransactionCount: transactionCount})
	}
	return sortAndLimitTotals(out, limit), nil
}

// ListErrorSummaryTotals is ListSummaryTotals' error_summary analogue:
// TotalDurationNanos carries error_count instead.
func (r *Reader) ListErrorSummaryTotals(ctx context.Context, agentRollupID, transactionType string, transactionNames []string, level int, from, to time.Time, limit int) ([]NamedTotal, error) {
	out := make([]NamedTotal, 0, len(transactionNames))
	for _, name := range transactionNames {
		q := Query{AgentRollupID: agentRollupID, TransactionType: transactionType, TransactionName: name, Level: level, From: from, To: to}
		errorCount, transactionCount, err := r.MergeErrorSummaryInto(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("reader: list error summary totals for %q: %w", name, err)
		}
		out = append(out, NamedTotal{TransactionName: name, TotalDurationNanos: float64(errorCount), TransactionCount: transactionCount})
	}
	return sortAndLimitTotals(out, limit), nil
}

func sortAndLimitTotals(totals []NamedTotal, limit int) []NamedTotal {
	sort.Slice(totals, func(i, j int) bool { return totals[i].TotalDurationNanos > totals[j].TotalDurationNanos })
	if limit > 0 && len(totals) > limit {
		return totals[:limit]
	}
	return totals
}
