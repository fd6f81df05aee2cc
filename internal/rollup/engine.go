// Package rollup implements C8, the rollup engine: draining the
// needs_rollup/needs_rollup_from_child work queues, reducing source rows
// through internal/aggregate's merge functions, and writing the result
// back at the next level. It is the generalization of the teacher's
// StoreManager flush loop (datastore/storemanager.go) from "batch writes
// to Cassandra on a timer" to "drain a durable work queue and fold rows
// through a commutative reducer," and its Scheduler (scheduler.go) follows
// the same Worker/Runner shape used across the pack for ticker-driven
// background loops.
package rollup

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeffpierce/aggrollup/internal/aggregate"
	"github.com/jeffpierce/aggrollup/internal/apmerr"
	"github.com/jeffpierce/aggrollup/internal/config"
	"github.com/jeffpierce/aggrollup/internal/logging"
	"github.com/jeffpierce/aggrollup/internal/rowcodec"
	"github.com/jeffpierce/aggrollup/internal/schema"
	"github.com/jeffpierce/aggrollup/internal/store"
	"github.com/jeffpierce/aggrollup/internal/telemetry"
	"github.com/jeffpierce/aggrollup/internal/workqueue"
	"github.com/jeffpierce/aggrollup/internal/writer"
)

// Engine is C8. It rolls up one agent-rollup node at a time; Scheduler
// decides which nodes and when.
type Engine struct {
	store   *store.Store
	catalog *schema.Catalog
	queue   *workqueue.Queue

	levels      []config.RollupLevel
	maxInterval time.Duration

	topNQueries      int
	topNServiceCalls int

	metrics *telemetry.Metrics
	log     *logging.Logger
}

// New builds an Engine.
func New(st *store.Store, catalog *schema.Catalog, queue *workqueue.Queue, rollup config.RollupConfig, metrics *telemetry.Metrics, log *logging.Logger) *Engine {
	return &Engine{
		store:            st,
		catalog:          catalog,
		queue:            queue,
		levels:           rollup.Levels,
		maxInterval:      rollup.MaxRollupInterval(),
		topNQueries:      rollup.TopNQueries,
		topNServiceCalls: rollup.TopNServiceCalls,
		metrics:          metrics,
		log:              log,
	}
}

// Rollup implements spec.md §4.2's rollup() operation for one agent-rollup
// node: the from-children phase (skipped for leaves), then the
// level-ascending phase across every configured level.
//
// Both overall and per-transaction-name rows are rolled up at every level:
// the writer encodes each per-transaction-name aggregate's work-queue entry
// as "type<sep>name" (workqueue.EncodeTransactionKey) alongside the bare
// "type" entry for the overall row, so the engine learns exactly which
// transaction-name partitions need rolling up from the queue itself,
// without the store ever having to list a partition's names.
func (e *Engine) Rollup(ctx context.Context, agentRollupID string, parentAgentRollupID *string, isLeaf bool) error {
	if len(e.levels) < 2 {
		return fmt.Errorf("rollup: ladder must define at least level 1")
	}

	if !isLeaf {
		if err := e.runPhase("from_children", func() error {
			return e.rollupFromChildren(ctx, agentRollupID, parentAgentRollupID)
		}); err != nil {
			return fmt.Errorf("rollup: from-children phase for %s: %w", agentRollupID, err)
		}
	}

	for level := 1; level < len(e.levels); level++ {
		level := level
		phase := "level_" + strconv.Itoa(level)
		if err := e.runPhase(phase, func() error {
			return e.rollupLevel(ctx, agentRollupID, level)
		}); err != nil {
			return fmt.Errorf("rollup: level %d phase for %s: %w", level, agentRollupID, err)
		}
	}
	return nil
}

// runPhase times one phase and records its outcome, mirroring the
// teacher's StatsD timing-and-counter pattern around each pipeline stage.
func (e *Engine) runPhase(phase string, fn func() error) error {
	start := time.Now()
	err := fn()
	if e.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		e.metrics.RollupRunsTotal.WithLabelValues(phase, outcome).Inc()
		e.metrics.RollupDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}
	return err
}

// rollupFromChildren drains needs_rollup_from_child and, for each
// (capture_time, child-set) group, reduces the children's level-0 rows
// into this node's own level-0 rows.
func (e *Engine) rollupFromChildren(ctx context.Context, agentRollupID string, parentAgentRollupID *string) error {
	level0 := e.levels[0]
	buckets, err := e.queue.DrainFromChild(ctx, agentRollupID, time.Now(), level0.Interval)
	if err != nil {
		return err
	}

	for _, b := range buckets {
		if err := e.reduceFromChildBucket(ctx, agentRollupID, b); err != nil {
			return err
		}

		ttl := store.WorkQueueTTL(store.DataTTL(level0.Retention, time.Since(b.CaptureTime)), e.maxInterval)
		if parentAgentRollupID != nil {
			if err := e.queue.EnqueueFromChild(ctx, *parentAgentRollupID, agentRollupID, b.CaptureTime, b.TransactionTypes, ttl); err != nil {
				return err
			}
		}
		level1Bucket := roundUp(b.CaptureTime, e.levels[1].Interval)
		level1TTL := store.WorkQueueTTL(store.DataTTL(e.levels[1].Retention, time.Since(level1Bucket)), e.maxInterval)
		if err := e.queue.EnqueueLevel(ctx, 1, agentRollupID, level1Bucket, b.TransactionTypes, level1TTL); err != nil {
			return err
		}

		if err := e.queue.DeleteFromChild(ctx, agentRollupID, b.CaptureTime); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) reduceFromChildBucket(ctx context.Context, agentRollupID string, b workqueue.FromChildBucket) error {
	ttl := store.DataTTL(e.levels[0].Retention, time.Since(b.CaptureTime))

	g, gctx := errgroup.WithContext(ctx)
	for _, item := range workqueue.DecodeKeys(b.TransactionTypes) {
		item := item
		for _, kind := range schema.AllKinds {
			kind := kind
			t := e.catalog.Table(kind)
			g.Go(func() error {
				var rows []store.Row
				for _, child := range b.ChildAgentRollups {
					var childRows []store.Row
					var err error
					if item.TransactionName == "" {
						childRows, err = e.store.ReadOverallForRollupFromChild(gctx, t, child, item.TransactionType, b.CaptureTime)
					} else {
						childRows, err = e.store.ReadTransactionForRollupFromChild(gctx, t, child, item.TransactionType, item.TransactionName, b.CaptureTime)
					}
					if err != nil {
						return err
					}
					rows = append(rows, childRows...)
				}
				agg := e.reduceRows(kind, rows)
				return e.writeKindRow(gctx, t, 0, agentRollupID, item.TransactionType, item.TransactionName, b.CaptureTime, ttl, agg)
			})
		}
	}
	return g.Wait()
}

// rollupLevel drains needs_rollup at one level and, for each
// (capture_time, transaction_types) group, reduces level-1 rows covering
// [capture_time-interval, capture_time] into this node's level row.
func (e *Engine) rollupLevel(ctx context.Context, agentRollupID string, level int) error {
	interval := e.levels[level].Interval
	buckets, err := e.queue.DrainLevel(ctx, level, agentRollupID, time.Now(), interval)
	if err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.WorkQueueDepth.WithLabelValues(strconv.Itoa(level)).Set(float64(len(buckets)))
	}

	for _, b := range buckets {
		if err := e.reduceLevelBucket(ctx, agentRollupID, level, b); err != nil {
			return err
		}

		if level+1 < len(e.levels) {
			nextBucket := roundUp(b.CaptureTime, e.levels[level+1].Interval)
			nextTTL := store.WorkQueueTTL(store.DataTTL(e.levels[level+1].Retention, time.Since(nextBucket)), e.maxInterval)
			if err := e.queue.EnqueueLevel(ctx, level+1, agentRollupID, nextBucket, b.TransactionTypes, nextTTL); err != nil {
				return err
			}
		}

		if err := e.queue.DeleteLevel(ctx, level, agentRollupID, b.CaptureTime); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) reduceLevelBucket(ctx context.Context, agentRollupID string, level int, b workqueue.Bucket) error {
	sourceLevel := level - 1
	from := b.CaptureTime.Add(-e.levels[level].Interval)
	to := b.CaptureTime
	ttl := store.DataTTL(e.levels[level].Retention, time.Since(b.CaptureTime))

	g, gctx := errgroup.WithContext(ctx)
	for _, item := range workqueue.DecodeKeys(b.TransactionTypes) {
		item := item
		for _, kind := range schema.AllKinds {
			kind := kind
			t := e.catalog.Table(kind)
			g.Go(func() error {
				var rows []store.Row
				var err error
				if item.TransactionName == "" {
					rows, err = e.store.ReadOverallForRollup(gctx, t, sourceLevel, agentRollupID, item.TransactionType, from, to)
				} else {
					rows, err = e.store.ReadTransactionForRollup(gctx, t, sourceLevel, agentRollupID, item.TransactionType, item.TransactionName, from, to)
				}
				if err != nil {
					return err
				}
				if kind == schema.KindSummary && len(rows) == 0 && e.log != nil {
					e.log.LogWarn("rollup: no level %d source rows for %s type %q name %q in [%s, %s]",
						sourceLevel, agentRollupID, item.TransactionType, item.TransactionName, from, to)
				}
				agg := e.reduceRows(kind, rows)
				return e.writeKindRow(gctx, t, level, agentRollupID, item.TransactionType, item.TransactionName, b.CaptureTime, ttl, agg)
			})
		}
	}
	return g.Wait()
}

// reduceRows folds every source row for one kind into a single aggregate,
// or — for query/service_call, which don't merge into Aggregate fields —
// into a top-N-capped row set carried on a fresh Aggregate's Queries /
// ServiceCalls slice. A row that fails to decode is logged and skipped
// rather than failing the whole bucket (spec.md §7: "never let one corrupt
// row wedge the pipeline").
func (e *Engine) reduceRows(kind schema.Kind, rows []store.Row) *aggregate.Aggregate {
	if e.metrics != nil && len(rows) > 0 {
		e.metrics.RollupRowsMerged.WithLabelValues(string(kind)).Add(float64(len(rows)))
	}
	switch kind {
	case schema.KindQuery:
		collector := aggregate.NewQueryCollector()
		for _, row := range rows {
			collector.Add([]aggregate.QueryRow{rowcodec.DecodeQueryRow(row)})
		}
		agg := aggregate.New()
		agg.Queries = collector.Cap(e.topNQueries)
		return agg

	case schema.KindServiceCall:
		collector := aggregate.NewServiceCallCollector()
		for _, row := range rows {
			collector.Add([]aggregate.ServiceCallRow{rowcodec.DecodeServiceCallRow(row)})
		}
		agg := aggregate.New()
		agg.ServiceCalls = collector.Cap(e.topNServiceCalls)
		return agg

	default:
		agg := aggregate.New()
		for _, row := range rows {
			decoded, err := rowcodec.DecodeAggregateRow(kind, row)
			if err != nil {
				e.skipDecodeError(kind, err)
				continue
			}
			agg = aggregate.Merge(agg, decoded)
		}
		return agg
	}
}

func (e *Engine) skipDecodeError(kind schema.Kind, err error) {
	decodeErr := &apmerr.DecodeError{Kind: string(kind), Err: err}
	if e.log != nil {
		e.log.LogWarn("rollup: skipping row: %v", decodeErr)
	}
	if e.metrics != nil {
		e.metrics.DecodeErrors.WithLabelValues(string(kind)).Inc()
	}
}

// writeKindRow writes one reduced aggregate at (level, agentRollupID,
// transactionType[, transactionName]) using the same column encoding the
// writer uses at level 0, so a row written by a rollup is byte-for-byte
// indistinguishable from one written directly by the writer.
func (e *Engine) writeKindRow(ctx context.Context, t schema.Table, level int, agentRollupID, transactionType, transactionName string, captureTime time.Time, ttl time.Duration, agg *aggregate.Aggregate) error {
	switch t.Kind {
	case schema.KindQuery:
		return e.writeQueryRows(ctx, t, level, agentRollupID, transactionType, transactionName, captureTime, ttl, agg.Queries)
	case schema.KindServiceCall:
		return e.writeServiceCallRows(ctx, t, level, agentRollupID, transactionType, transactionName, captureTime, ttl, agg.ServiceCalls)
	}

	if !writer.ShouldWriteKind(t.Kind, agg) {
		return nil
	}
	values, err := writer.SingleRowValues(t.Kind, agg)
	if err != nil {
		return err
	}
	if transactionName == "" {
		return e.store.InsertOverall(ctx, t, level, agentRollupID, transactionType, captureTime, ttl, values)
	}
	return e.store.InsertTransaction(ctx, t, level, agentRollupID, transactionType, transactionName, captureTime, ttl, values)
}

func (e *Engine) writeQueryRows(ctx context.Context, t schema.Table, level int, agentRollupID, transactionType, transactionName string, captureTime time.Time, ttl time.Duration, rows []aggregate.QueryRow) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range rows {
		r := r
		g.Go(func() error {
			clusterValues, columnValues := writer.QueryRowValues(r)
			values := append(append([]interface{}{}, clusterValues...), columnValues...)
			if transactionName == "" {
				return e.store.InsertOverall(gctx, t, level, agentRollupID, transactionType, captureTime, ttl, values)
			}
			return e.store.InsertTransaction(gctx, t, level, agentRollupID, transactionType, transactionName, captureTime, ttl, values)
		})
	}
	return g.Wait()
}

func (e *Engine) writeServiceCallRows(ctx context.Context, t schema.Table, level int, agentRollupID, transactionType, transactionName string, captureTime time.Time, ttl time.Duration, rows []aggregate.ServiceCallRow) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range rows {
		r := r
		g.Go(func() error {
			clusterValues, columnValues := writer.ServiceCallRowValues(r)
			values := append(append([]interface{}{}, clusterValues...), columnValues...)
			if transactionName == "" {
				return e.store.InsertOverall(gctx, t, level, agentRollupID, transactionType, captureTime, ttl, values)
			}
			return e.store.InsertTransaction(gctx, t, level, agentRollupID, transactionType, transactionName, captureTime, ttl, values)
		})
	}
	return g.Wait()
}

func roundUp(t time.Time, interval time.Duration) time.Time {
	rem := t.UnixNano() % interval.Nanoseconds()
	if rem == 0 {
		return t
	}
	return t.Add(time.Duration(interval.Nanoseconds() - rem))
}
