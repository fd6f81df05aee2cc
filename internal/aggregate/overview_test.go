package aggregate

import "testing"

func ptr(v float64) *float64 { return &v }

func TestMergeThreadStats_AbsentAbsorbsNotZero(t *testing.T) {
	t.Parallel()

	dst := &ThreadStats{CPUNanos: ptr(10)}
	src := &ThreadStats{} // every field absent

	got := MergeThreadStats(dst, src)

	if got.CPUNanos == nil || *got.CPUNanos != 10 {
		t.Fatalf("CPUNanos = %v, want 10 unchanged by an absent input", got.CPUNanos)
	}
	if got.BlockedNanos != nil {
		t.Fatalf("BlockedNanos = %v, want nil (both inputs absent)", got.BlockedNanos)
	}
}

func TestMergeThreadStats_BothPresentSums(t *testing.T) {
	t.Parallel()

	dst := &ThreadStats{AllocatedBytes: ptr(100)}
	src := &ThreadStats{AllocatedBytes: ptr(50)}

	got := MergeThreadStats(dst, src)

	if got.AllocatedBytes == nil || *got.AllocatedBytes != 150 {
		t.Fatalf("AllocatedBytes = %v, want 150", got.AllocatedBytes)
	}
}

func TestMergeThreadStats_NilSrcIsNoop(t *testing.T) {
	t.Parallel()

	dst := &ThreadStats{CPUNanos: ptr(5)}
	got := MergeThreadStats(dst, nil)
	if got != dst {
		t.Fatalf("MergeThreadStats(dst, nil) should return dst unchanged")
	}
}

// TestMergeThreadStats_MainAuxIndependent verifies main and aux thread
// stats never cross-pollinate: merging an Aggregate whose main stats are
// set and whose aux stats are absent must never populate aux from main.
func TestMergeThreadStats_MainAuxIndependent(t *testing.T) {
	t.Parallel()

	dst := New()
	dst.MainThreadStats = &ThreadStats{CPUNanos: ptr(20)}
	dst.AuxThreadStats = nil

	src := New()
	src.MainThreadStats = &ThreadStats{CPUNanos: ptr(5)}
	src.AuxThreadStats = nil

	got := Merge(dst, src)

	if got.MainThreadStats == nil || *got.MainThreadStats.CPUNanos != 25 {
		t.Fatalf("MainThreadStats = %+v, want CPUNanos=25", got.MainThreadStats)
	}
	if got.AuxThreadStats != nil {
		t.Fatalf("AuxThreadStats = %+v, want nil: main must never leak into aux", got.AuxThreadStats)
	}
}
