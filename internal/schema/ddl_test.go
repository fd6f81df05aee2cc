package schema

import (
	"strings"
	"testing"
)

func TestTableName_SummaryIgnoresVariant(t *testing.T) {
	t.Parallel()

	tbl := New().Table(KindSummary)
	overall := TableName(tbl, VariantOverall, 2)
	tn := TableName(tbl, VariantTransaction, 2)
	if overall != tn {
		t.Fatalf("summary table names differ by variant: %q vs %q", overall, tn)
	}
	if overall != "aggregate_summary_rollup_2" {
		t.Fatalf("TableName = %q, want aggregate_summary_rollup_2", overall)
	}
}

func TestTableName_NonSummaryUsesTTOrTNPrefix(t *testing.T) {
	t.Parallel()

	tbl := New().Table(KindOverview)
	overall := TableName(tbl, VariantOverall, 1)
	tn := TableName(tbl, VariantTransaction, 1)

	if overall != "aggregate_tt_overview_rollup_1" {
		t.Fatalf("overall TableName = %q, want aggregate_tt_overview_rollup_1", overall)
	}
	if tn != "aggregate_tn_overview_rollup_1" {
		t.Fatalf("transaction TableName = %q, want aggregate_tn_overview_rollup_1", tn)
	}
}

func TestCreateTableDDL_IncludesCompactionAndTTL(t *testing.T) {
	t.Parallel()

	tbl := New().Table(KindHistogram)
	ddl := CreateTableDDL("aggrollup", tbl, VariantOverall, 1, 3600)

	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS aggrollup.aggregate_tt_histogram_rollup_1",
		"TimeWindowCompactionStrategy",
		"default_time_to_live = 3600",
		"PRIMARY KEY",
	} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("DDL missing %q:\n%s", want, ddl)
		}
	}
}

func TestCreateTableDDL_SummaryAddsTransactionNameClusterKey(t *testing.T) {
	t.Parallel()

	tbl := New().Table(KindSummary)
	ddl := CreateTableDDL("aggrollup", tbl, VariantOverall, 1, 60)

	if !strings.Contains(ddl, "transaction_name") {
		t.Fatalf("summary DDL should cluster on transaction_name:\n%s", ddl)
	}
}

func TestCreateNeedsRollupDDL_UsesLeveledCompaction(t *testing.T) {
	t.Parallel()

	ddl := CreateNeedsRollupDDL("aggrollup", 2, 120)
	if !strings.Contains(ddl, "LeveledCompactionStrategy") {
		t.Fatalf("work queue DDL should use LeveledCompactionStrategy:\n%s", ddl)
	}
	if !strings.Contains(ddl, NeedsRollupTableName(2)) {
		t.Fatalf("DDL should reference table name %q:\n%s", NeedsRollupTableName(2), ddl)
	}
}

func TestCreateNeedsRollupFromChildDDL_HasChildAgentRollupColumn(t *testing.T) {
	t.Parallel()

	ddl := CreateNeedsRollupFromChildDDL("aggrollup", 120)
	if !strings.Contains(ddl, "child_agent_rollup") {
		t.Fatalf("from-child DDL missing child_agent_rollup column:\n%s", ddl)
	}
}

func TestCreateFullTextDDL_KeyedBySha1(t *testing.T) {
	t.Parallel()

	ddl := CreateFullTextDDL("aggrollup", 86400)
	if !strings.Contains(ddl, "PRIMARY KEY (full_query_text_sha1)") {
		t.Fatalf("full text DDL should key by full_query_text_sha1:\n%s", ddl)
	}
}
