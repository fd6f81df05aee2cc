package aggregate

// MergeThreadStats implements the recommended resolution to spec.md §9's
// open question on nullable thread-stat accumulation: null is treated as
// absent, not zero. Present values accumulate; the merged field is null
// only if every input for that field was null.
//
// The spec's source material copies mainThreadStats into the aux slot in
// one place; this implementation keeps Main and Aux strictly independent,
// as spec.md §9 directs ("an implementer should treat main and aux as
// independent and verify by counter-example tests" — see
// TestMergeThreadStats_MainAuxIndependent).
func MergeThreadStats(dst, src *ThreadStats) *ThreadStats {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = &ThreadStats{}
	}
	dst.CPUNanos = addNullable(dst.CPUNanos, src.CPUNanos)
	dst.BlockedNanos = addNullable(dst.BlockedNanos, src.BlockedNanos)
	dst.WaitedNanos = addNullable(dst.WaitedNanos, src.WaitedNanos)
	dst.AllocatedBytes = addNullable(dst.AllocatedBytes, src.AllocatedBytes)
	return dst
}

func addNullable(dst, src *float64) *float64 {
	if src == nil {
		return dst
	}
	if dst == nil {
		v := *src
		return &v
	}
	sum := *dst + *src
	return &sum
}
