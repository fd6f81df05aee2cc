// Package store implements C2 (the statement cache) and C4 (TTL policy),
// and the bound read/write helpers (store.go) that internal/writer,
// internal/rollup, and internal/reader share. Besides internal/cassandra,
// internal/schema, internal/sharedquery and internal/workqueue also import
// gocql directly.
package store

import (
	"fmt"
	"strings"

	"github.com/jeffpierce/aggrollup/internal/schema"
)

// Op identifies one of the eight per-level statement shapes spec.md §4.5
// names, plus the profile exists-probe.
type Op int

const (
	OpInsertOverall Op = iota
	OpInsertTransaction
	OpReadOverall
	OpReadOverallForRollup
	OpReadTransaction
	OpReadTransactionForRollup
	OpReadOverallForRollupFromChild
	OpReadTransactionForRollupFromChild
	OpExistsOverall
	OpExistsTransaction
)

type stmtKey struct {
	kind  schema.Kind
	level int
	op    Op
}

// Cache is the build-once, read-only-thereafter statement registry spec.md
// §5 requires ("the statement cache is build-once, read-only thereafter").
// It holds CQL text, not gocql prepared-statement handles: gocql prepares
// and caches by statement text internally on every *Session, so this cache
// exists to avoid re-building the same fmt.Sprintf'd text on every store
// call, matching the teacher's own habit of precomputing query strings
// once in populateSchema rather than per request.
type Cache struct {
	keyspace string
	catalog  *schema.Catalog
	stmts    map[stmtKey]string
}

// NewCache builds every statement for every declared kind across levels
// [0, numLevels).
func NewCache(keyspace string, catalog *schema.Catalog, numLevels int) *Cache {
	c := &Cache{keyspace: keyspace, catalog: catalog, stmts: make(map[stmtKey]string)}
	for _, t := range catalog.Tables() {
		for level := 0; level < numLevels; level++ {
			c.build(t, level)
		}
	}
	return c
}

func (c *Cache) build(t schema.Table, level int) {
	insertOverall, insertTransaction := insertStatements(c.keyspace, t, level)
	c.stmts[stmtKey{t.Kind, level, OpInsertOverall}] = insertOverall
	c.stmts[stmtKey{t.Kind, level, OpInsertTransaction}] = insertTransaction

	c.stmts[stmtKey{t.Kind, level, OpReadOverall}] = readStatement(c.keyspace, t, schema.VariantOverall, level, rangeInclusiveOf(t), false)
	c.stmts[stmtKey{t.Kind, level, OpReadTransaction}] = readStatement(c.keyspace, t, schema.VariantTransaction, level, rangeInclusiveOf(t), false)
	c.stmts[stmtKey{t.Kind, level, OpReadOverallForRollup}] = readStatement(c.keyspace, t, schema.VariantOverall, level, true, false)
	c.stmts[stmtKey{t.Kind, level, OpReadTransactionForRollup}] = readStatement(c.keyspace, t, schema.VariantTransaction, level, true, false)
	c.stmts[stmtKey{t.Kind, level, OpReadOverallForRollupFromChild}] = readStatement(c.keyspace, t, schema.VariantOverall, level, true, true)
	c.stmts[stmtKey{t.Kind, level, OpReadTransactionForRollupFromChild}] = readStatement(c.keyspace, t, schema.VariantTransaction, level, true, true)

	if t.HasExistsProbe {
		c.stmts[stmtKey{t.Kind, level, OpExistsOverall}] = existsStatement(c.keyspace, t, schema.VariantOverall, level)
		c.stmts[stmtKey{t.Kind, level, OpExistsTransaction}] = existsStatement(c.keyspace, t, schema.VariantTransaction, level)
	}
}

// rangeInclusiveOf implements row invariant 2: non-summary ad-hoc reads are
// lower-bound inclusive, summary ad-hoc reads are lower-bound exclusive.
func rangeInclusiveOf(t schema.Table) bool {
	return t.FromInclusive
}

// Get returns the cached statement text for (kind, level, op). Panics if
// the combination was never built (a programmer error: either the op
// doesn't exist for that kind, or level is out of range).
func (c *Cache) Get(kind schema.Kind, level int, op Op) string {
	stmt, ok := c.stmts[stmtKey{kind, level, op}]
	if !ok {
		panic(fmt.Sprintf("store: no cached statement for kind=%s level=%d op=%d", kind, level, op))
	}
	return stmt
}

func partitionColumns(t schema.Table, variant schema.Variant) []string {
	cols := []string{"agent_rollup", "transaction_type"}
	if !t.IsSummary && variant == schema.VariantTransaction {
		cols = append(cols, "transaction_name")
	}
	return cols
}

func valueColumns(t schema.Table) []string {
	var cols []string
	if t.IsSummary {
		cols = append(cols, "transaction_name")
	}
	cols = append(cols, "capture_time")
	for _, ck := range t.ClusterKeys {
		cols = append(cols, ck.Name)
	}
	for _, c := range t.Columns {
		cols = append(cols, c.Name)
	}
	return cols
}

func insertStatements(keyspace string, t schema.Table, level int) (overall, transaction string) {
	overall = insertStatement(keyspace, t, schema.VariantOverall, level)
	if t.IsSummary {
		transaction = overall
		return
	}
	transaction = insertStatement(keyspace, t, schema.VariantTransaction, level)
	return
}

func insertStatement(keyspace string, t schema.Table, variant schema.Variant, level int) string {
	name := schema.TableName(t, variant, level)
	cols := append(partitionColumns(t, variant), valueColumns(t)...)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s) USING TTL ?",
		keyspace, name, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}

func readStatement(keyspace string, t schema.Table, variant schema.Variant, level int, lowerInclusive bool, exactBucket bool) string {
	name := schema.TableName(t, variant, level)
	selectCols := append([]string{}, valueColumns(t)...)

	var where []string
	for _, c := range partitionColumns(t, variant) {
		where = append(where, c+" = ?")
	}
	if t.IsSummary {
		// transaction_name is a clustering key on summary tables, not a
		// partition key, so both overall (bound to "") and per-transaction
		// reads pin it explicitly.
		where = append(where, "transaction_name = ?")
	}

	if exactBucket {
		where = append(where, "capture_time = ?")
	} else if lowerInclusive {
		where = append(where, "capture_time >= ?", "capture_time <= ?")
	} else {
		where = append(where, "capture_time > ?", "capture_time <= ?")
	}

	return fmt.Sprintf("SELECT %s FROM %s.%s WHERE %s",
		strings.Join(selectCols, ", "), keyspace, name, strings.Join(where, " AND "))
}

func existsStatement(keyspace string, t schema.Table, variant schema.Variant, level int) string {
	name := schema.TableName(t, variant, level)
	var where []string
	for _, c := range partitionColumns(t, variant) {
		where = append(where, c+" = ?")
	}
	return fmt.Sprintf("SELECT capture_time FROM %s.%s WHERE %s LIMIT 1", keyspace, name, strings.Join(where, " AND "))
}
