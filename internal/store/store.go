package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/jeffpierce/aggrollup/internal/apmerr"
	"github.com/jeffpierce/aggrollup/internal/logging"
	"github.com/jeffpierce/aggrollup/internal/schema"
	"github.com/jeffpierce/aggrollup/internal/telemetry"
)

// Store binds the statement cache to a live gocql session and exposes the
// generic per-table insert/read/exists primitives that internal/writer,
// internal/rollup, and internal/reader compose. It does not know about
// aggregate.Aggregate or internal/codec; callers hand it already-encoded
// column values in table declaration order (ClusterKeys then Columns).
type Store struct {
	session  *gocql.Session
	keyspace string
	cache    *Cache
	catalog  *schema.Catalog
	metrics  *telemetry.Metrics
	log      *logging.Logger
}

// New builds a Store with a freshly constructed statement cache covering
// levels [0, numLevels).
func New(session *gocql.Session, keyspace string, catalog *schema.Catalog, numLevels int, metrics *telemetry.Metrics, log *logging.Logger) *Store {
	return &Store{
		session:  session,
		keyspace: keyspace,
		cache:    NewCache(keyspace, catalog, numLevels),
		catalog:  catalog,
		metrics:  metrics,
		log:      log,
	}
}

// Row is one decoded data row: CaptureTime and TransactionName (summary
// kinds only) are always populated; ClusterValues/Values line up
// positionally with the table's declared ClusterKeys/Columns.
type Row struct {
	TransactionName string
	CaptureTime     time.Time
	ClusterValues   []interface{}
	Values          []interface{}
}

// InsertOverall writes the overall-variant row for a bucket. columnValues
// must be in (ClusterKeys..., Columns...) order.
func (s *Store) InsertOverall(ctx context.Context, t schema.Table, level int, agentRollup, transactionType string, captureTime time.Time, ttl time.Duration, columnValues []interface{}) error {
	args := []interface{}{agentRollup, transactionType}
	if t.IsSummary {
		args = append(args, "")
	}
	args = append(args, captureTime)
	args = append(args, columnValues...)
	args = append(args, ttlSecondsArg(ttl))
	return s.exec(ctx, "insert_overall", s.cache.Get(t.Kind, level, OpInsertOverall), args...)
}

// InsertTransaction writes the per-transaction-name row for a bucket.
func (s *Store) InsertTransaction(ctx context.Context, t schema.Table, level int, agentRollup, transactionType, transactionName string, captureTime time.Time, ttl time.Duration, columnValues []interface{}) error {
	args := []interface{}{agentRollup, transactionType, transactionName, captureTime}
	args = append(args, columnValues...)
	args = append(args, ttlSecondsArg(ttl))
	return s.exec(ctx, "insert_transaction", s.cache.Get(t.Kind, level, OpInsertTransaction), args...)
}

// ReadOverall reads the ad-hoc (UI-facing) range of overall rows, honoring
// row invariant 2's inclusive/exclusive lower bound per kind.
func (s *Store) ReadOverall(ctx context.Context, t schema.Table, level int, agentRollup, transactionType string, from, to time.Time) ([]Row, error) {
	return s.readOverall(ctx, t, level, OpReadOverall, agentRollup, transactionType, from, to)
}

// ReadOverallForRollup reads the level-ascending phase's source range
// (always inclusive at both ends, per spec.md §4.2).
func (s *Store) ReadOverallForRollup(ctx context.Context, t schema.Table, level int, agentRollup, transactionType string, from, to time.Time) ([]Row, error) {
	return s.readOverall(ctx, t, level, OpReadOverallForRollup, agentRollup, transactionType, from, to)
}

func (s *Store) readOverall(ctx context.Context, t schema.Table, level int, op Op, agentRollup, transactionType string, from, to time.Time) ([]Row, error) {
	args := []interface{}{agentRollup, transactionType}
	if t.IsSummary {
		args = append(args, "")
	}
	args = append(args, from, to)
	return s.readRows(ctx, s.cache.Get(t.Kind, level, op), args, t)
}

// ReadTransaction reads the ad-hoc range of a single transaction name.
func (s *Store) ReadTransaction(ctx context.Context, t schema.Table, level int, agentRollup, transactionType, transactionName string, from, to time.Time) ([]Row, error) {
	return s.readTransaction(ctx, t, level, OpReadTransaction, agentRollup, transactionType, transactionName, from, to)
}

// ReadTransactionForRollup reads the level-ascending phase's source range
// for a single transaction name.
func (s *Store) ReadTransactionForRollup(ctx context.Context, t schema.Table, level int, agentRollup, transactionType, transactionName string, from, to time.Time) ([]Row, error) {
	return s.readTransaction(ctx, t, level, OpReadTransactionForRollup, agentRollup, transactionType, transactionName, from, to)
}

func (s *Store) readTransaction(ctx context.Context, t schema.Table, level int, op Op, agentRollup, transactionType, transactionName string, from, to time.Time) ([]Row, error) {
	args := []interface{}{agentRollup, transactionType, transactionName, from, to}
	return s.readRows(ctx, s.cache.Get(t.Kind, level, op), args, t)
}

// ReadOverallForRollupFromChild reads a single level-0 bucket from one
// child agent-rollup's overall row, for the from-children rollup phase.
func (s *Store) ReadOverallForRollupFromChild(ctx context.Context, t schema.Table, childAgentRollup, transactionType string, captureTime time.Time) ([]Row, error) {
	args := []interface{}{childAgentRollup, transactionType}
	if t.IsSummary {
		args = append(args, "")
	}
	args = append(args, captureTime)
	return s.readRows(ctx, s.cache.Get(t.Kind, 0, OpReadOverallForRollupFromChild), args, t)
}

// ReadTransactionForRollupFromChild reads a single level-0 bucket from one
// child agent-rollup's per-transaction row.
func (s *Store) ReadTransactionForRollupFromChild(ctx context.Context, t schema.Table, childAgentRollup, transactionType, transactionName string, captureTime time.Time) ([]Row, error) {
	args := []interface{}{childAgentRollup, transactionType, transactionName, captureTime}
	return s.readRows(ctx, s.cache.Get(t.Kind, 0, OpReadTransactionForRollupFromChild), args, t)
}

// ExistsOverall runs the LIMIT 1 probe used for hasMainThreadProfile /
// hasAuxThreadProfile-style checks on the overall row.
func (s *Store) ExistsOverall(ctx context.Context, t schema.Table, level int, agentRollup, transactionType string) (bool, error) {
	return s.exists(ctx, s.cache.Get(t.Kind, level, OpExistsOverall), agentRollup, transactionType)
}

// ExistsTransaction is the per-transaction-name analogue of ExistsOverall.
func (s *Store) ExistsTransaction(ctx context.Context, t schema.Table, level int, agentRollup, transactionType, transactionName string) (bool, error) {
	return s.exists(ctx, s.cache.Get(t.Kind, level, OpExistsTransaction), agentRollup, transactionType, transactionName)
}

func (s *Store) exists(ctx context.Context, stmt string, args ...interface{}) (bool, error) {
	var captureTime time.Time
	err := s.session.Query(stmt, args...).WithContext(ctx).Scan(&captureTime)
	if err == nil {
		return true, nil
	}
	if err == gocql.ErrNotFound {
		return false, nil
	}
	return false, apmerr.NewTransientStoreError("exists", err)
}

func (s *Store) exec(ctx context.Context, op, stmt string, args ...interface{}) error {
	if err := s.session.Query(stmt, args...).WithContext(ctx).Exec(); err != nil {
		if s.metrics != nil {
			s.metrics.StoreWriteErrors.WithLabelValues(op).Inc()
		}
		return apmerr.NewTransientStoreError(op, err)
	}
	return nil
}

func (s *Store) readRows(ctx context.Context, stmt string, args []interface{}, t schema.Table) ([]Row, error) {
	iter := s.session.Query(stmt, args...).WithContext(ctx).Iter()

	var rows []Row
	for {
		var transactionNamePtr *string
		dest := make([]interface{}, 0, 1+len(t.ClusterKeys)+len(t.Columns))
		if t.IsSummary {
			transactionNamePtr = new(string)
			dest = append(dest, transactionNamePtr)
		}
		captureTime := new(time.Time)
		dest = append(dest, captureTime)

		clusterDest := make([]interface{}, len(t.ClusterKeys))
		for i, ck := range t.ClusterKeys {
			clusterDest[i] = destFor(ck)
			dest = append(dest, clusterDest[i])
		}
		colDest := make([]interface{}, len(t.Columns))
		for i, c := range t.Columns {
			colDest[i] = destFor(c)
			dest = append(dest, colDest[i])
		}

		if !iter.Scan(dest...) {
			break
		}

		row := Row{CaptureTime: *captureTime}
		if transactionNamePtr != nil {
			row.TransactionName = *transactionNamePtr
		}
		for _, d := range clusterDest {
			row.ClusterValues = append(row.ClusterValues, readValue(d))
		}
		for _, d := range colDest {
			row.Values = append(row.Values, readValue(d))
		}
		rows = append(rows, row)
	}
	if err := iter.Close(); err != nil {
		return nil, apmerr.NewTransientStoreError("read", err)
	}
	return rows, nil
}

func ttlSecondsArg(ttl time.Duration) int {
	return int(ttl / time.Second)
}

// destFor allocates a scan destination matching a column's declared CQL
// type. Nullable bigints and doubles scan into **int64 and **float64:
// gocql leaves the outer pointer nil on a NULL column, which is how an
// absent aggregate.ThreadStats value or an absent QueryRow.TotalRows
// (HasTotalRows false) is read back.
func destFor(c schema.Column) interface{} {
	switch c.CQLType {
	case "text":
		return new(string)
	case "bigint":
		if c.Nullable {
			return new(*int64)
		}
		return new(int64)
	case "double":
		if c.Nullable {
			return new(*float64)
		}
		return new(float64)
	case "boolean":
		return new(bool)
	case "blob":
		return new([]byte)
	default:
		panic(fmt.Sprintf("store: unhandled CQL type %q", c.CQLType))
	}
}

func readValue(dest interface{}) interface{} {
	switch d := dest.(type) {
	case *string:
		return *d
	case *int64:
		return *d
	case **int64:
		return *d
	case *float64:
		return *d
	case **float64:
		return *d
	case *bool:
		return *d
	case *[]byte:
		return *d
	default:
		panic(fmt.Sprintf("store: unhandled scan destination %T", dest))
	}
}
