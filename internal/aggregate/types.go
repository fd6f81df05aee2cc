// Package aggregate defines the in-memory shapes of the nine aggregate
// kinds and the pure merge/reduce functions that combine N rows of a kind
// into one (C7 in the design). Nothing in this package talks to the store;
// internal/codec handles the wire representation and internal/writer,
// internal/rollup, internal/reader drive the store round trips.
package aggregate

// RootTimer is one node of a root-timer tree: timers are keyed by
// (Name, Extended) and form a tree via Children, matching spec.md §4.3's
// "timers form a tree keyed by (name, extended?)".
type RootTimer struct {
	Name       string
	Extended   bool
	TotalNanos int64
	Count      int64
	Children   []*RootTimer
}

// ThreadStats holds the nullable-double thread statistics that accompany
// an overview aggregate. A nil pointer field means "absent" for that
// metric, not zero.
type ThreadStats struct {
	CPUNanos       *float64
	BlockedNanos   *float64
	WaitedNanos    *float64
	AllocatedBytes *float64
}

// Histogram is a simplified streaming histogram: duration_nanos values are
// recorded into log-spaced buckets. It supports merge (summing bucket
// counts) and an approximate percentile query, which is all the reducer
// and the reader need — there is no requirement anywhere in spec.md for
// exact order-statistics, only mergeable approximations.
type Histogram struct {
	// Buckets[i] covers [2^i, 2^(i+1)) nanoseconds. 64 buckets covers
	// every representable int64 duration.
	Buckets [64]int64
}

// QueryRow is one (query_type, truncated_query_text, full_query_text_sha1)
// clustering group.
type QueryRow struct {
	Type                string
	TruncatedText       string
	FullTextSha1        string // never nil on the wire; "" means "no side-table entry"
	TotalDurationNanos  float64
	ExecutionCount      int64
	HasTotalRows        bool
	TotalRows           int64
}

// ServiceCallRow is one (service_call_type, service_call_text) clustering
// group.
type ServiceCallRow struct {
	Type               string
	Text               string
	TotalDurationNanos float64
	ExecutionCount     int64
}

// ProfileNode is one call-tree frame. SampleCount is the number of stack
// samples that passed through this exact frame at this exact tree
// position (i.e. it is not yet summed with children).
type ProfileNode struct {
	FrameName   string
	LeafState   string // "" unless this node is a leaf with a known thread state
	SampleCount int64
	Children    []*ProfileNode
}

// Aggregate is the full per-(agent, transaction type[, transaction name],
// capture time) record, as both submitted by an agent and reduced by the
// rollup engine. The individual table kinds (summary, error_summary,
// overview, histogram, throughput) are all views over the same Aggregate;
// the engine never asks a caller to submit them separately.
type Aggregate struct {
	TotalDurationNanos float64
	TransactionCount   int64
	ErrorCount         int64
	AsyncTransactions  bool

	MainThreadRootTimers []*RootTimer
	AuxThreadRootTimers  []*RootTimer
	AsyncRootTimers      []*RootTimer

	MainThreadStats *ThreadStats
	AuxThreadStats  *ThreadStats

	DurationNanosHistogram *Histogram

	Queries      []QueryRow
	ServiceCalls []ServiceCallRow

	MainThreadProfile *ProfileNode
	AuxThreadProfile  *ProfileNode
}

// New returns a zero-value Aggregate with its histogram initialized, ready
// to merge into.
func New() *Aggregate {
	return &Aggregate{DurationNanosHistogram: &Histogram{}}
}
