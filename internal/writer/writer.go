// Package writer implements C6: accepting one agent's per-minute
// aggregates and fanning them out to every applicable table at rollup
// level 0, then enqueuing the work-queue entries that drive C8. It is the
// Go-shaped generalization of the teacher's StoreManager.accumulate/flush
// pair, restructured around the nine aggregate kinds instead of a single
// carbon metric series.
package writer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeffpierce/aggrollup/internal/agentrollup"
	"github.com/jeffpierce/aggrollup/internal/aggregate"
	"github.com/jeffpierce/aggrollup/internal/config"
	"github.com/jeffpierce/aggrollup/internal/logging"
	"github.com/jeffpierce/aggrollup/internal/schema"
	"github.com/jeffpierce/aggrollup/internal/sharedquery"
	"github.com/jeffpierce/aggrollup/internal/store"
	"github.com/jeffpierce/aggrollup/internal/telemetry"
	"github.com/jeffpierce/aggrollup/internal/workqueue"
)

// NamedAggregate pairs a per-transaction-name aggregate with its name.
type NamedAggregate struct {
	TransactionName string
	Aggregate       *aggregate.Aggregate
}

// TypeAggregates is everything one transaction type contributed to one
// (agent, captureTime) bucket: the overall aggregate and zero or more
// per-transaction-name aggregates.
type TypeAggregates struct {
	TransactionType string
	Overall         *aggregate.Aggregate
	PerTransaction  []NamedAggregate
}

// Writer is C6.
type Writer struct {
	store    *store.Store
	catalog  *schema.Catalog
	queue    *workqueue.Queue
	shared   *sharedquery.Store
	chain    agentrollup.Resolver
	levels   []config.RollupLevel
	maxInterval time.Duration
	metrics  *telemetry.Metrics
	log      *logging.Logger
}

// New builds a Writer.
func New(st *store.Store, catalog *schema.Catalog, queue *workqueue.Queue, shared *sharedquery.Store, chain agentrollup.Resolver, rollup config.RollupConfig, metrics *telemetry.Metrics, log *logging.Logger) *Writer {
	return &Writer{
		store:       st,
		catalog:     catalog,
		queue:       queue,
		shared:      shared,
		chain:       chain,
		levels:      rollup.Levels,
		maxInterval: rollup.MaxRollupInterval(),
		metrics:     metrics,
		log:         log,
	}
}

// Store implements spec.md §4.1's store() operation.
func (w *Writer) Store(ctx context.Context, agentRollupID string, captureTime time.Time, types []TypeAggregates) error {
	start := time.Now()
	ancestors, err := w.chain.Chain(ctx, agentRollupID)
	if err != nil {
		w.observe("error")
		return fmt.Errorf("writer: resolve agent-rollup chain: %w", err)
	}

	level0 := w.levels[0]
	ttl := store.DataTTL(level0.Retention, time.Since(captureTime))
	w.shared.SetDataTTL(ttl)

	if err := w.resolveSharedQueries(ctx, types); err != nil {
		w.observe("error")
		return fmt.Errorf("writer: resolve shared query text: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ta := range types {
		ta := ta
		for _, kind := range schema.AllKinds {
			kind := kind
			t := w.catalog.Table(kind)
			if !ShouldWriteKind(kind, ta.Overall) {
				continue
			}
			g.Go(func() error { return w.writeRow(gctx, t, agentRollupID, ta.TransactionType, "", captureTime, ttl, ta.Overall) })
			for _, na := range ta.PerTransaction {
				na := na
				if !ShouldWriteKind(kind, na.Aggregate) {
					continue
				}
				g.Go(func() error {
					return w.writeRow(gctx, t, agentRollupID, ta.TransactionType, na.TransactionName, captureTime, ttl, na.Aggregate)
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		w.observe("error")
		return fmt.Errorf("writer: aggregate write: %w", err)
	}

	if err := w.enqueue(ctx, agentRollupID, ancestors, types, captureTime); err != nil {
		w.observe("error")
		return fmt.Errorf("writer: enqueue work-queue: %w", err)
	}

	w.observe("ok")
	if w.metrics != nil {
		w.metrics.StoreCallDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (w *Writer) observe(outcome string) {
	if w.metrics != nil {
		w.metrics.StoreCallsTotal.WithLabelValues(outcome).Inc()
	}
}

// resolveSharedQueries batches every query row's text resolution across
// the whole call, so all side-table writes land before any aggregate
// write is issued (spec.md §4.1 step 2's strict ordering requirement).
func (w *Writer) resolveSharedQueries(ctx context.Context, types []TypeAggregates) error {
	type ref struct {
		agg *aggregate.Aggregate
		idx int
	}
	var refs []ref
	var texts []sharedquery.Text

	collect := func(agg *aggregate.Aggregate) {
		for i, q := range agg.Queries {
			refs = append(refs, ref{agg: agg, idx: i})
			texts = append(texts, sharedquery.Text{
				Type:          q.Type,
				TruncatedText: q.TruncatedText,
				FullTextSha1:  q.FullTextSha1,
				FullText:      q.TruncatedText,
			})
		}
	}
	for _, ta := range types {
		if ta.Overall != nil {
			collect(ta.Overall)
		}
		for _, na := range ta.PerTransaction {
			if na.Aggregate != nil {
				collect(na.Aggregate)
			}
		}
	}
	if len(refs) == 0 {
		return nil
	}

	resolved, err := w.shared.Resolve(ctx, texts)
	if err != nil {
		return err
	}
	for i, r := range resolved {
		refs[i].agg.Queries[refs[i].idx].TruncatedText = r.TruncatedText
		refs[i].agg.Queries[refs[i].idx].FullTextSha1 = r.FullTextSha1
	}
	return nil
}

func (w *Writer) writeRow(ctx context.Context, t schema.Table, agentRollupID, transactionType, transactionName string, captureTime time.Time, ttl time.Duration, agg *aggregate.Aggregate) error {
	if t.Kind == schema.KindQuery {
		return w.writeQueryRows(ctx, t, 0, agentRollupID, transactionType, transactionName, captureTime, ttl, agg.Queries)
	}
	if t.Kind == schema.KindServiceCall {
		return w.writeServiceCallRows(ctx, t, 0, agentRollupID, transactionType, transactionName, captureTime, ttl, agg.ServiceCalls)
	}

	values, err := SingleRowValues(t.Kind, agg)
	if err != nil {
		return err
	}
	if transactionName == "" {
		return w.store.InsertOverall(ctx, t, 0, agentRollupID, transactionType, captureTime, ttl, values)
	}
	return w.store.InsertTransaction(ctx, t, 0, agentRollupID, transactionType, transactionName, captureTime, ttl, values)
}

func (w *Writer) writeQueryRows(ctx context.Context, t schema.Table, level int, agentRollupID, transactionType, transactionName string, captureTime time.Time, ttl time.Duration, rows []aggregate.QueryRow) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range rows {
		r := r
		g.Go(func() error {
			clusterValues, columnValues := QueryRowValues(r)
			values := append(append([]interface{}{}, clusterValues...), columnValues...)
			if transactionName == "" {
				return w.store.InsertOverall(gctx, t, level, agentRollupID, transactionType, captureTime, ttl, values)
			}
			return w.store.InsertTransaction(gctx, t, level, agentRollupID, transactionType, transactionName, captureTime, ttl, values)
		})
	}
	return g.Wait()
}

func (w *Writer) writeServiceCallRows(ctx context.Context, t schema.Table, level int, agentRollupID, transactionType, transactionName string, captureTime time.Time, ttl time.Duration, rows []aggregate.ServiceCallRow) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range rows {
		r := r
		g.Go(func() error {
			clusterValues, columnValues := ServiceCallRowValues(r)
			values := append(append([]interface{}{}, clusterValues...), columnValues...)
			if transactionName == "" {
				return w.store.InsertOverall(gctx, t, level, agentRollupID, transactionType, captureTime, ttl, values)
			}
			return w.store.InsertTransaction(gctx, t, level, agentRollupID, transactionType, transactionName, captureTime, ttl, values)
		})
	}
	return g.Wait()
}

// enqueue implements step 4: one level-1 needs_rollup row, rounded up to
// the level-1 interval, and — if the agent has ancestors — one
// needs_rollup_from_child row addressed to the immediate parent.
func (w *Writer) enqueue(ctx context.Context, agentRollupID string, ancestors []string, types []TypeAggregates, captureTime time.Time) error {
	if len(w.levels) < 2 {
		return fmt.Errorf("writer: rollup ladder must define at least level 1")
	}
	level1Interval := w.levels[1].Interval
	bucket := roundUp(captureTime, level1Interval)

	// One work key per overall row, plus one per per-transaction-name row,
	// so the rollup engine can roll up both dimensions without the store
	// having to list a partition's transaction names (see
	// workqueue.EncodeTransactionKey).
	workKeys := make([]string, 0, len(types))
	for _, ta := range types {
		workKeys = append(workKeys, workqueue.EncodeOverallKey(ta.TransactionType))
		for _, na := range ta.PerTransaction {
			workKeys = append(workKeys, workqueue.EncodeTransactionKey(ta.TransactionType, na.TransactionName))
		}
	}

	level1TTL := store.WorkQueueTTL(store.DataTTL(w.levels[1].Retention, time.Since(bucket)), w.maxInterval)
	if err := w.queue.EnqueueLevel(ctx, 1, agentRollupID, bucket, workKeys, level1TTL); err != nil {
		return err
	}

	if len(ancestors) == 0 {
		return nil
	}
	parent := ancestors[0]
	fromChildTTL := store.WorkQueueTTL(store.DataTTL(w.levels[0].Retention, time.Since(captureTime)), w.maxInterval)
	return w.queue.EnqueueFromChild(ctx, parent, agentRollupID, captureTime, workKeys, fromChildTTL)
}


func roundUp(t time.Time, interval time.Duration) time.Time {
	rem := t.UnixNano() % interval.Nanoseconds()
	if rem == 0 {
		return t
	}
	return t.Add(time.Duration(interval.Nanoseconds() - rem))
}
