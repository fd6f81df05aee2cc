package aggregate

import "container/heap"

// QueryCollector accumulates query rows from every source row in a bucket,
// grouped by (query_type, truncated_query_text, full_query_text_sha1), and
// applies the top-N-per-type cap described in spec.md §4.3. Capping is
// approximate: it discards the smallest total_duration entries on overflow,
// so a query barely below the cap in one merge may drop out in the next —
// spec.md §9 asks only that callers assert result ⊆ union(inputs), never
// exact boundary membership.
type QueryCollector struct {
	byKey map[queryKey]*QueryRow
}

type queryKey struct {
	typ           string
	truncatedText string
	sha1          string
}

// NewQueryCollector creates an empty collector.
func NewQueryCollector() *QueryCollector {
	return &QueryCollector{byKey: make(map[queryKey]*QueryRow)}
}

// Add folds rows into the running per-key totals.
func (c *QueryCollector) Add(rows []QueryRow) {
	for _, r := range rows {
		key := queryKey{r.Type, r.TruncatedText, r.FullTextSha1}
		existing, ok := c.byKey[key]
		if !ok {
			clone := r
			c.byKey[key] = &clone
			continue
		}
		existing.TotalDurationNanos += r.TotalDurationNanos
		existing.ExecutionCount += r.ExecutionCount
		existing.HasTotalRows = existing.HasTotalRows && r.HasTotalRows
		if existing.HasTotalRows {
			existing.TotalRows += r.TotalRows
		} else {
			existing.TotalRows = 0
		}
	}
}

// Cap returns, per query_type, the topN rows by TotalDurationNanos. Ties
// are broken arbitrarily (map iteration order), which is acceptable given
// the capping is already documented as approximate.
func (c *QueryCollector) Cap(topN int) []QueryRow {
	byType := make(map[string][]*QueryRow)
	for k, v := range c.byKey {
		byType[k.typ] = append(byType[k.typ], v)
	}

	var out []QueryRow
	for _, rows := range byType {
		out = append(out, capQueryRows(rows, topN)...)
	}
	return out
}

func capQueryRows(rows []*QueryRow, topN int) []QueryRow {
	if topN <= 0 || len(rows) <= topN {
		result := make([]QueryRow, 0, len(rows))
		for _, r := range rows {
			result = append(result, *r)
		}
		return result
	}

	h := &queryMinHeap{}
	heap.Init(h)
	for _, r := range rows {
		heap.Push(h, r)
		if h.Len() > topN {
			heap.Pop(h)
		}
	}
	result := make([]QueryRow, 0, h.Len())
	for _, r := range *h {
		result = append(result, *r)
	}
	return result
}

type queryMinHeap []*QueryRow

func (h queryMinHeap) Len() int            { return len(h) }
func (h queryMinHeap) Less(i, j int) bool  { return h[i].TotalDurationNanos < h[j].TotalDurationNanos }
func (h queryMinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *queryMinHeap) Push(x interface{}) { *h = append(*h, x.(*QueryRow)) }
func (h *queryMinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ServiceCallCollector is the service_call analogue of QueryCollector.
type ServiceCallCollector struct {
	byKey map[serviceCallKey]*ServiceCallRow
}

type serviceCallKey struct {
	typ  string
	text string
}

// NewServiceCallCollector creates an empty collector.
func NewServiceCallCollector() *ServiceCallCollector {
	return &ServiceCallCollector{byKey: make(map[serviceCallKey]*ServiceCallRow)}
}

// Add folds rows into the running per-key totals.
func (c *ServiceCallCollector) Add(rows []ServiceCallRow) {
	for _, r := range rows {
		key := serviceCallKey{r.Type, r.Text}
		existing, ok := c.byKey[key]
		if !ok {
			clone := r
			c.byKey[key] = &clone
			continue
		}
		existing.TotalDurationNanos += r.TotalDurationNanos
		existing.ExecutionCount += r.ExecutionCount
	}
}

// Cap returns, per service_call_type, the topN rows by TotalDurationNanos.
func (c *ServiceCallCollector) Cap(topN int) []ServiceCallRow {
	byType := make(map[string][]*ServiceCallRow)
	for k, v := range c.byKey {
		byType[k.typ] = append(byType[k.typ], v)
	}

	var out []ServiceCallRow
	for _, rows := range byType {
		out = append(out, capServiceCallRows(rows, topN)...)
	}
	return out
}

func capServiceCallRows(rows []*ServiceCallRow, topN int) []ServiceCallRow {
	if topN <= 0 || len(rows) <= topN {
		result := make([]ServiceCallRow, 0, len(rows))
		for _, r := range rows {
			result = append(result, *r)
		}
		return result
	}

	h := &serviceCallMinHeap{}
	heap.Init(h)
	for _, r := range rows {
		heap.Push(h, r)
		if h.Len() > topN {
			heap.Pop(h)
		}
	}
	result := make([]ServiceCallRow, 0, h.Len())
	for _, r := range *h {
		result = append(result, *r)
	}
	return result
}

type serviceCallMinHeap []*ServiceCallRow

func (h serviceCallMinHeap) Len() int            { return len(h) }
func (h serviceCallMinHeap) Less(i, j int) bool  { return h[i].TotalDurationNanos < h[j].TotalDurationNanos }
func (h serviceCallMinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *serviceCallMinHeap) Push(x interface{}) { *h = append(*h, x.(*ServiceCallRow)) }
func (h *serviceCallMinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
