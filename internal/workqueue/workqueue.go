// Package workqueue implements the needs_rollup/needs_rollup_from_child
// work-queue tables shared by the writer (which enqueues level-1 and
// from-child entries after a successful store() call) and the rollup
// engine (which drains, groups, and deletes them). Keeping this plumbing
// in its own package avoids a writer<->rollup import cycle, since both
// depend on it rather than on each other.
package workqueue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/jeffpierce/aggrollup/internal/apmerr"
	"github.com/jeffpierce/aggrollup/internal/schema"
)

// Queue binds the work-queue tables to a live session.
type Queue struct {
	session  *gocql.Session
	keyspace string
}

// New builds a Queue.
func New(session *gocql.Session, keyspace string) *Queue {
	return &Queue{session: session, keyspace: keyspace}
}

// Bucket is one grouped needs_rollup entry: every row sharing
// (agent_rollup, capture_time) folded into one transaction_types set, per
// spec.md §4.2 ("for each (capture_time, transaction_types) group").
// TransactionTypes holds encoded work keys (see EncodeOverallKey/
// EncodeTransactionKey/DecodeKeys), not bare transaction-type strings.
type Bucket struct {
	CaptureTime      time.Time
	TransactionTypes []string
}

// FromChildBucket is the from-child analogue, additionally grouped by the
// set of contributing child agent-rollups.
type FromChildBucket struct {
	CaptureTime      time.Time
	TransactionTypes []string
	ChildAgentRollups []string
}

// transactionKeySep separates a transaction type from a transaction name
// inside one entry of the needs_rollup tables' transaction_types set<text>
// column. spec.md §3/§6 fix that column's CQL type as set<text> without
// naming its entries' format; encoding "type<sep>name" here (instead of
// widening the schema with a new column) lets the engine carry exactly
// which transaction-name partitions need rolling up through the same
// column overall-row entries already use, with no DDL change.
const transactionKeySep = "\x1f"

// EncodeOverallKey is the work-queue entry for an overall (no
// transaction-name) aggregate.
func EncodeOverallKey(transactionType string) string {
	return transactionType
}

// EncodeTransactionKey is the work-queue entry for a per-transaction-name
// aggregate.
func EncodeTransactionKey(transactionType, transactionName string) string {
	return transactionType + transactionKeySep + transactionName
}

// WorkItem is one decoded needs_rollup entry. TransactionName is empty for
// an overall-row rollup.
type WorkItem struct {
	TransactionType string
	TransactionName string
}

// DecodeKey splits one work-queue entry back into its transaction type and
// (possibly empty) transaction name.
func DecodeKey(key string) WorkItem {
	if idx := strings.IndexByte(key, transactionKeySep[0]); idx >= 0 {
		return WorkItem{TransactionType: key[:idx], TransactionName: key[idx+1:]}
	}
	return WorkItem{TransactionType: key}
}

// DecodeKeys decodes every entry of a drained bucket's TransactionTypes.
func DecodeKeys(keys []string) []WorkItem {
	items := make([]WorkItem, 0, len(keys))
	for _, k := range keys {
		items = append(items, DecodeKey(k))
	}
	return items
}

// EnqueueLevel inserts a level-N needs_rollup row with a fresh time-ordered
// uniqueness key.
func (q *Queue) EnqueueLevel(ctx context.Context, level int, agentRollup string, captureTime time.Time, transactionTypes []string, ttl time.Duration) error {
	u, err := newUniqueness()
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(
		`INSERT INTO %s.%s (agent_rollup, capture_time, uniqueness, transaction_types) VALUES (?, ?, ?, ?) USING TTL ?`,
		q.keyspace, schema.NeedsRollupTableName(level))
	err = q.session.Query(stmt, agentRollup, captureTime, u, transactionTypes, int(ttl/time.Second)).WithContext(ctx).Exec()
	if err != nil {
		return apmerr.NewTransientStoreError("enqueue_needs_rollup", err)
	}
	return nil
}

// EnqueueFromChild inserts a needs_rollup_from_child row addressed to the
// immediate parent of the node that just wrote or rolled up data.
func (q *Queue) EnqueueFromChild(ctx context.Context, parentAgentRollup, childAgentRollup string, captureTime time.Time, transactionTypes []string, ttl time.Duration) error {
	u, err := newUniqueness()
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(
		`INSERT INTO %s.%s (agent_rollup, capture_time, uniqueness, child_agent_rollup, transaction_types) VALUES (?, ?, ?, ?, ?) USING TTL ?`,
		q.keyspace, schema.NeedsRollupFromChildTableName())
	err = q.session.Query(stmt, parentAgentRollup, captureTime, u, childAgentRollup, transactionTypes, int(ttl/time.Second)).
		WithContext(ctx).Exec()
	if err != nil {
		return apmerr.NewTransientStoreError("enqueue_needs_rollup_from_child", err)
	}
	return nil
}

// DrainLevel reads every needs_rollup row for one agent-rollup at one
// level, groups them by capture_time, and applies the "last bucket" rule:
// the most recent group is held back if its capture_time is still within
// one rollup interval of now, so data still being written is never rolled
// up prematurely.
func (q *Queue) DrainLevel(ctx context.Context, level int, agentRollup string, now time.Time, interval time.Duration) ([]Bucket, error) {
	stmt := fmt.Sprintf(`SELECT capture_time, transaction_types FROM %s.%s WHERE agent_rollup = ?`,
		q.keyspace, schema.NeedsRollupTableName(level))
	iter := q.session.Query(stmt, agentRollup).WithContext(ctx).Iter()

	var rows []Bucket
	for {
		var captureTime time.Time
		var types []string
		if !iter.Scan(&captureTime, &types) {
			break
		}
		rows = append(rows, Bucket{CaptureTime: captureTime, TransactionTypes: types})
	}
	if err := iter.Close(); err != nil {
		return nil, apmerr.NewTransientStoreError("drain_needs_rollup", err)
	}

	buckets := groupByCaptureTime(rows)
	return applyLastBucketRule(buckets, now, interval), nil
}

// DrainFromChild is DrainLevel's analogue for needs_rollup_from_child.
func (q *Queue) DrainFromChild(ctx context.Context, agentRollup string, now time.Time, interval time.Duration) ([]FromChildBucket, error) {
	stmt := fmt.Sprintf(`SELECT capture_time, child_agent_rollup, transaction_types FROM %s.%s WHERE agent_rollup = ?`,
		q.keyspace, schema.NeedsRollupFromChildTableName())
	iter := q.session.Query(stmt, agentRollup).WithContext(ctx).Iter()

	byCaptureTime := make(map[time.Time]*FromChildBucket)
	var order []time.Time
	for {
		var captureTime time.Time
		var child string
		var types []string
		if !iter.Scan(&captureTime, &child, &types) {
			break
		}
		b, ok := byCaptureTime[captureTime]
		if !ok {
			b = &FromChildBucket{CaptureTime: captureTime}
			byCaptureTime[captureTime] = b
			order = append(order, captureTime)
		}
		b.ChildAgentRollups = appendUnique(b.ChildAgentRollups, child)
		b.TransactionTypes = unionStrings(b.TransactionTypes, types)
	}
	if err := iter.Close(); err != nil {
		return nil, apmerr.NewTransientStoreError("drain_needs_rollup_from_child", err)
	}

	buckets := make([]FromChildBucket, 0, len(order))
	for _, ct := range order {
		buckets = append(buckets, *byCaptureTime[ct])
	}
	return applyLastBucketRuleFromChild(buckets, now, interval), nil
}

// DeleteLevel drops every row at one (agent_rollup, capture_time) from a
// level's needs_rollup table. CQL allows a clustering-prefix delete, so
// this removes every uniqueness under that bucket in one statement;
// spec.md's invariants only require the deleted rows' rollup writes be
// already acknowledged, never that the delete target an exact uniqueness.
func (q *Queue) DeleteLevel(ctx context.Context, level int, agentRollup string, captureTime time.Time) error {
	stmt := fmt.Sprintf(`DELETE FROM %s.%s WHERE agent_rollup = ? AND capture_time = ?`,
		q.keyspace, schema.NeedsRollupTableName(level))
	if err := q.session.Query(stmt, agentRollup, captureTime).WithContext(ctx).Exec(); err != nil {
		return apmerr.NewTransientStoreError("delete_needs_rollup", err)
	}
	return nil
}

// DeleteFromChild drops every row at one (agent_rollup, capture_time) from
// needs_rollup_from_child.
func (q *Queue) DeleteFromChild(ctx context.Context, agentRollup string, captureTime time.Time) error {
	stmt := fmt.Sprintf(`DELETE FROM %s.%s WHERE agent_rollup = ? AND capture_time = ?`,
		q.keyspace, schema.NeedsRollupFromChildTableName())
	if err := q.session.Query(stmt, agentRollup, captureTime).WithContext(ctx).Exec(); err != nil {
		return apmerr.NewTransientStoreError("delete_needs_rollup_from_child", err)
	}
	return nil
}

func newUniqueness() (gocql.UUID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return gocql.UUID{}, fmt.Errorf("workqueue: generate uniqueness: %w", err)
	}
	id, err := gocql.UUIDFromBytes(u[:])
	if err != nil {
		return gocql.UUID{}, fmt.Errorf("workqueue: wrap uniqueness: %w", err)
	}
	return id, nil
}

func groupByCaptureTime(rows []Bucket) []Bucket {
	byCaptureTime := make(map[time.Time]*Bucket)
	var order []time.Time
	for _, r := range rows {
		b, ok := byCaptureTime[r.CaptureTime]
		if !ok {
			b = &Bucket{CaptureTime: r.CaptureTime}
			byCaptureTime[r.CaptureTime] = b
			order = append(order, r.CaptureTime)
		}
		b.TransactionTypes = unionStrings(b.TransactionTypes, r.TransactionTypes)
	}
	out := make([]Bucket, 0, len(order))
	for _, ct := range order {
		out = append(out, *byCaptureTime[ct])
	}
	return out
}

// applyLastBucketRule drops the most recent bucket from the returned slice
// if it is still within one interval of now, per spec.md §4.2.
func applyLastBucketRule(buckets []Bucket, now time.Time, interval time.Duration) []Bucket {
	if len(buckets) == 0 {
		return buckets
	}
	last := buckets[len(buckets)-1]
	if now.Sub(last.CaptureTime) < interval {
		return buckets[:len(buckets)-1]
	}
	return buckets
}

func applyLastBucketRuleFromChild(buckets []FromChildBucket, now time.Time, interval time.Duration) []FromChildBucket {
	if len(buckets) == 0 {
		return buckets
	}
	last := buckets[len(buckets)-1]
	if now.Sub(last.CaptureTime) < interval {
		return buckets[:len(buckets)-1]
	}
	return buckets
}

func appendUnique(set []string, v string) []string {
	for _, s := range set {
		if s == v {
			return set
		}
	}
	return append(set, v)
}

func unionStrings(a, b []string) []string {
	for _, v := range b {
		a = appendUnique(a, v)
	}
	return a
}
