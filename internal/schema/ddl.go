package schema

import (
	"fmt"
	"strings"
)

// TableName returns the physical table name for a kind/variant/level,
// following spec.md §6's DDL template. Summary kinds ignore variant: a
// single table per level carries both overall (transaction_name = "") and
// per-transaction rows, since transaction_name is a clustering key there
// rather than part of the partition key.
func TableName(t Table, variant Variant, level int) string {
	if t.IsSummary {
		return fmt.Sprintf("aggregate_%s_rollup_%d", t.PartialName, level)
	}
	prefix := "tt"
	if variant == VariantTransaction {
		prefix = "tn"
	}
	return fmt.Sprintf("aggregate_%s_%s_rollup_%d", prefix, t.PartialName, level)
}

// CreateTableDDL renders the `CREATE TABLE IF NOT EXISTS` statement for one
// kind/variant/level, per the template in spec.md §6.
func CreateTableDDL(keyspace string, t Table, variant Variant, level int, defaultTTLSeconds int) string {
	name := TableName(t, variant, level)

	var partitionCols, clusterCols, colDefs []string

	partitionCols = append(partitionCols, "agent_rollup text", "transaction_type text")
	if !t.IsSummary && variant == VariantTransaction {
		partitionCols = append(partitionCols, "transaction_name text")
	}

	if t.IsSummary {
		clusterCols = append(clusterCols, "transaction_name")
		colDefs = append(colDefs, "transaction_name text")
	}
	clusterCols = append(clusterCols, "capture_time")
	colDefs = append(colDefs, "capture_time timestamp")

	for _, ck := range t.ClusterKeys {
		clusterCols = append(clusterCols, ck.Name)
		colDefs = append(colDefs, fmt.Sprintf("%s %s", ck.Name, ck.CQLType))
	}
	for _, c := range t.Columns {
		colDefs = append(colDefs, fmt.Sprintf("%s %s", c.Name, c.CQLType))
	}

	partitionKeyList := make([]string, 0, len(partitionCols))
	for _, c := range partitionCols {
		partitionKeyList = append(partitionKeyList, strings.Fields(c)[0])
	}

	primaryKey := fmt.Sprintf("((%s), %s)", strings.Join(partitionKeyList, ", "), strings.Join(clusterCols, ", "))

	allCols := append(append([]string{}, partitionCols...), colDefs...)

	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s.%s
    (%s,
     PRIMARY KEY %s)
    WITH CLUSTERING ORDER BY (%s)
    AND compaction = {'class': 'TimeWindowCompactionStrategy', 'compaction_window_unit': 'DAYS', 'compaction_window_size': 1}
    AND default_time_to_live = %d
    AND gc_grace_seconds = 86400`,
		keyspace, name, strings.Join(allCols, ", "), primaryKey,
		clusteringOrder(clusterCols), defaultTTLSeconds)
}

func clusteringOrder(clusterCols []string) string {
	parts := make([]string, 0, len(clusterCols))
	for _, c := range clusterCols {
		parts = append(parts, c+" ASC")
	}
	return strings.Join(parts, ", ")
}

// NeedsRollupTableName returns the level-N work-queue table name.
func NeedsRollupTableName(level int) string {
	return fmt.Sprintf("aggregate_needs_rollup_%d", level)
}

// NeedsRollupFromChildTableName returns the from-child work-queue table
// name (there is exactly one, shared across all parent levels).
func NeedsRollupFromChildTableName() string {
	return "aggregate_needs_rollup_from_child"
}

// CreateNeedsRollupDDL renders the work-queue DDL from spec.md §6.
func CreateNeedsRollupDDL(keyspace string, level int, ttlSeconds int) string {
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s.%s
    (agent_rollup text, capture_time timestamp, uniqueness timeuuid,
     transaction_types set<text>,
     PRIMARY KEY (agent_rollup, capture_time, uniqueness))
    WITH CLUSTERING ORDER BY (capture_time ASC, uniqueness ASC)
    AND gc_grace_seconds = 10800
    AND default_time_to_live = %d
    AND compaction = {'class': 'LeveledCompactionStrategy'}`,
		keyspace, NeedsRollupTableName(level), ttlSeconds)
}

// CreateNeedsRollupFromChildDDL renders the from-child work-queue DDL.
func CreateNeedsRollupFromChildDDL(keyspace string, ttlSeconds int) string {
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s.%s
    (agent_rollup text, capture_time timestamp, uniqueness timeuuid,
     child_agent_rollup text, transaction_types set<text>,
     PRIMARY KEY (agent_rollup, capture_time, uniqueness))
    WITH CLUSTERING ORDER BY (capture_time ASC, uniqueness ASC)
    AND gc_grace_seconds = 10800
    AND default_time_to_live = %d
    AND compaction = {'class': 'LeveledCompactionStrategy'}`,
		keyspace, NeedsRollupFromChildTableName(), ttlSeconds)
}

// CreateFullTextDDL renders the DDL for the full-text side-table used by
// internal/sharedquery (C5). It is not part of AllKinds because it is not
// an aggregate table, but it lives in the same keyspace and is created by
// the same EnsureSchema pass.
func CreateFullTextDDL(keyspace string, defaultTTLSeconds int) string {
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s.full_query_text
    (full_query_text_sha1 text, full_query_text text,
     PRIMARY KEY (full_query_text_sha1))
    WITH default_time_to_live = %d
    AND gc_grace_seconds = 86400`,
		keyspace, defaultTTLSeconds)
}
