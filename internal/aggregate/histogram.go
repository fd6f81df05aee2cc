package aggregate

import (
	"math"
	"math/bits"
)

// Record adds one duration sample to the histogram's log2 bucket.
func (h *Histogram) Record(durationNanos int64) {
	if durationNanos < 0 {
		durationNanos = 0
	}
	idx := bucketIndex(durationNanos)
	h.Buckets[idx]++
}

func bucketIndex(v int64) int {
	if v <= 0 {
		return 0
	}
	idx := bits.Len64(uint64(v)) - 1
	if idx >= len(Histogram{}.Buckets) {
		idx = len(Histogram{}.Buckets) - 1
	}
	return idx
}

// Count returns the total number of recorded samples.
func (h *Histogram) Count() int64 {
	var total int64
	for _, c := range h.Buckets {
		total += c
	}
	return total
}

// ApproxPercentile returns the upper bound of the bucket containing the
// p-th percentile (0 < p <= 1), capped at math.MaxInt64 for the top
// buckets whose bound does not fit in an int64. This is an approximation
// adequate for UI display
// but not for exact order statistics — consistent with spec.md's
// description of the histogram as a merge-friendly streaming structure
// rather than an exact sketch.
func (h *Histogram) ApproxPercentile(p float64) int64 {
	total := h.Count()
	if total == 0 {
		return 0
	}
	target := int64(float64(total) * p)
	var cum int64
	for i, c := range h.Buckets {
		cum += c
		if cum >= target {
			if i+1 >= 63 {
				return math.MaxInt64
			}
			return int64(1) << uint(i+1)
		}
	}
	return math.MaxInt64
}
