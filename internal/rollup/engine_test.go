package rollup

import (
	"testing"
	"time"
)

func TestRoundUp_AlreadyAligned(t *testing.T) {
	t.Parallel()

	interval := 5 * time.Minute
	t0 := time.Unix(0, 0).Add(3 * interval)

	got := roundUp(t0, interval)
	if !got.Equal(t0) {
		t.Fatalf("roundUp(aligned) = %v, want unchanged %v", got, t0)
	}
}

func TestRoundUp_RoundsUpToNextBoundary(t *testing.T) {
	t.Parallel()

	interval := 5 * time.Minute
	base := time.Unix(0, 0).Add(3 * interval)
	t0 := base.Add(time.Minute)

	got := roundUp(t0, interval)
	want := base.Add(interval)
	if !got.Equal(want) {
		t.Fatalf("roundUp = %v, want %v", got, want)
	}
}
