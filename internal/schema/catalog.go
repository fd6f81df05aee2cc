// Package schema is the declarative catalog of every aggregate table
// family (C1 in the design). It knows column layouts, clustering keys,
// which kinds are "summary" tables, and whether a kind's lower time bound
// is read inclusively — nothing here talks to the store directly; that is
// internal/store's job.
package schema

// Kind identifies one of the nine aggregate table families.
type Kind string

const (
	KindSummary          Kind = "summary"
	KindErrorSummary     Kind = "error_summary"
	KindOverview         Kind = "overview"
	KindHistogram        Kind = "histogram"
	KindThroughput       Kind = "throughput"
	KindQuery            Kind = "query"
	KindServiceCall      Kind = "service_call"
	KindMainThreadProfile Kind = "main_thread_profile"
	KindAuxThreadProfile  Kind = "aux_thread_profile"
)

// AllKinds enumerates the closed sum type in declaration order; callers
// that need to "do something for every kind" range over this rather than
// re-listing the nine values.
var AllKinds = []Kind{
	KindSummary, KindErrorSummary, KindOverview, KindHistogram, KindThroughput,
	KindQuery, KindServiceCall, KindMainThreadProfile, KindAuxThreadProfile,
}

// Variant distinguishes the overall row (one per agent-rollup/transaction
// type/bucket) from a per-transaction-name row.
type Variant string

const (
	VariantOverall     Variant = "overall"
	VariantTransaction Variant = "transaction"
)

// Column describes one value column of a table (the common
// agent_rollup/transaction_type/transaction_name/capture_time columns are
// implicit and not listed here).
type Column struct {
	Name     string
	CQLType  string
	Nullable bool
}

// Table is the full declaration of one aggregate kind.
type Table struct {
	Kind Kind

	// PartialName is the table-name fragment used in the DDL template
	// from spec.md §6 ("aggregate_{tt|tn}_<partialName>_rollup_<i>").
	PartialName string

	// IsSummary tables get a single table per level (transaction_name is a
	// clustering key, not part of the partition key) instead of separate
	// tt/tn tables.
	IsSummary bool

	// FromInclusive controls whether range reads use capture_time >= from
	// (true, the default for non-summary kinds) or capture_time > from
	// (false, summary kinds) per spec.md §3 row invariant 2.
	FromInclusive bool

	// ClusterKeys are clustering columns beyond capture_time (e.g. for
	// query and service_call kinds).
	ClusterKeys []Column

	// Columns are the value columns.
	Columns []Column

	// HasExistsProbe marks kinds the reader checks with a LIMIT 1 probe
	// (hasMainThreadProfile / hasAuxThreadProfile in spec.md §4.4).
	HasExistsProbe bool
}

// Catalog is the full, immutable set of table declarations, built once at
// process start (see New) and never mutated afterward — the same
// "build-once, read-only thereafter" discipline spec.md §5 requires of the
// statement cache.
type Catalog struct {
	tables map[Kind]Table
}

// New builds the catalog described in spec.md §3.
func New() *Catalog {
	c := &Catalog{tables: make(map[Kind]Table, len(AllKinds))}
	for _, t := range defaultTables() {
		c.tables[t.Kind] = t
	}
	return c
}

// Table returns the declaration for a kind. Panics if kind is not one of
// AllKinds — this is a programmer error, not a runtime condition.
func (c *Catalog) Table(kind Kind) Table {
	t, ok := c.tables[kind]
	if !ok {
		panic("schema: unknown kind " + string(kind))
	}
	return t
}

// Tables returns every declared table, in AllKinds order.
func (c *Catalog) Tables() []Table {
	out := make([]Table, 0, len(AllKinds))
	for _, k := range AllKinds {
		out = append(out, c.tables[k])
	}
	return out
}

func defaultTables() []Table {
	f64 := "double"
	i64 := "bigint"
	blob := "blob"
	boolean := "boolean"
	text := "text"

	return []Table{
		{
			Kind:          KindSummary,
			PartialName:   "summary",
			IsSummary:     true,
			FromInclusive: false,
			Columns: []Column{
				{Name: "total_duration_nanos", CQLType: f64},
				{Name: "transaction_count", CQLType: i64},
			},
		},
		{
			Kind:          KindErrorSummary,
			PartialName:   "error_summary",
			IsSummary:     true,
			FromInclusive: false,
			Columns: []Column{
				{Name: "error_count", CQLType: i64},
				{Name: "transaction_count", CQLType: i64},
			},
		},
		{
			Kind:          KindOverview,
			PartialName:   "overview",
			FromInclusive: true,
			Columns: []Column{
				{Name: "total_duration_nanos", CQLType: f64},
				{Name: "transaction_count", CQLType: i64},
				{Name: "async_transactions", CQLType: boolean},
				{Name: "main_thread_root_timers", CQLType: blob},
				{Name: "aux_thread_root_timers", CQLType: blob},
				{Name: "async_root_timers", CQLType: blob},
				{Name: "main_thread_cpu_nanos", CQLType: f64, Nullable: true},
				{Name: "main_thread_blocked_nanos", CQLType: f64, Nullable: true},
				{Name: "main_thread_waited_nanos", CQLType: f64, Nullable: true},
				{Name: "main_thread_allocated_bytes", CQLType: f64, Nullable: true},
				{Name: "aux_thread_cpu_nanos", CQLType: f64, Nullable: true},
				{Name: "aux_thread_blocked_nanos", CQLType: f64, Nullable: true},
				{Name: "aux_thread_waited_nanos", CQLType: f64, Nullable: true},
				{Name: "aux_thread_allocated_bytes", CQLType: f64, Nullable: true},
			},
		},
		{
			Kind:          KindHistogram,
			PartialName:   "histogram",
			FromInclusive: true,
			Columns: []Column{
				{Name: "total_duration_nanos", CQLType: f64},
				{Name: "transaction_count", CQLType: i64},
				{Name: "duration_nanos_histogram", CQLType: blob},
			},
		},
		{
			Kind:          KindThroughput,
			PartialName:   "throughput",
			FromInclusive: true,
			Columns: []Column{
				{Name: "transaction_count", CQLType: i64},
			},
		},
		{
			Kind:          KindQuery,
			PartialName:   "query",
			FromInclusive: true,
			ClusterKeys: []Column{
				{Name: "query_type", CQLType: text},
				{Name: "truncated_query_text", CQLType: text},
				{Name: "full_query_text_sha1", CQLType: text},
			},
			Columns: []Column{
				{Name: "total_duration_nanos", CQLType: f64},
				{Name: "execution_count", CQLType: i64},
				{Name: "total_rows", CQLType: i64, Nullable: true},
			},
		},
		{
			Kind:          KindServiceCall,
			PartialName:   "service_call",
			FromInclusive: true,
			ClusterKeys: []Column{
				{Name: "service_call_type", CQLType: text},
				{Name: "service_call_text", CQLType: text},
			},
			Columns: []Column{
				{Name: "total_duration_nanos", CQLType: f64},
				{Name: "execution_count", CQLType: i64},
			},
		},
		{
			Kind:           KindMainThreadProfile,
			PartialName:    "main_thread_profile",
			FromInclusive:  true,
			HasExistsProbe: true,
			Columns: []Column{
				{Name: "profile", CQLType: blob},
			},
		},
		{
			Kind:           KindAuxThreadProfile,
			PartialName:    "aux_thread_profile",
			FromInclusive:  true,
			HasExistsProbe: true,
			Columns: []Column{
				{Name: "profile", CQLType: blob},
			},
		},
	}
}
