package codec

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jeffpierce/aggrollup/internal/aggregate"
)

func TestHistogram_RoundTrips(t *testing.T) {
	t.Parallel()

	h := &aggregate.Histogram{}
	h.Record(1)
	h.Record(1024)
	h.Record(1 << 40)

	data := EncodeHistogram(h)
	got, err := DecodeHistogram(data)
	if err != nil {
		t.Fatalf("DecodeHistogram: %v", err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeHistogram_RejectsWrongLength(t *testing.T) {
	t.Parallel()

	if _, err := DecodeHistogram([]byte{1, 2, 3}); err == nil {
		t.Fatalf("DecodeHistogram with malformed blob should return an error")
	}
}

func TestRootTimers_RoundTripsForest(t *testing.T) {
	t.Parallel()

	timers := []*aggregate.RootTimer{
		{
			Name: "render", Extended: false, TotalNanos: 1000, Count: 2,
			Children: []*aggregate.RootTimer{
				{Name: "db query", Extended: true, TotalNanos: 400, Count: 1},
			},
		},
		{Name: "other", TotalNanos: 50, Count: 1},
	}

	data, err := EncodeRootTimers(timers)
	if err != nil {
		t.Fatalf("EncodeRootTimers: %v", err)
	}
	got, err := DecodeRootTimers(data)
	if err != nil {
		t.Fatalf("DecodeRootTimers: %v", err)
	}
	if diff := cmp.Diff(timers, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRootTimers_EmptyForestRoundTrips(t *testing.T) {
	t.Parallel()

	data, err := EncodeRootTimers(nil)
	if err != nil {
		t.Fatalf("EncodeRootTimers(nil): %v", err)
	}
	got, err := DecodeRootTimers(data)
	if err != nil {
		t.Fatalf("DecodeRootTimers: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d timers, want 0", len(got))
	}
}

func TestProfile_RoundTripsTree(t *testing.T) {
	t.Parallel()

	root := &aggregate.ProfileNode{
		FrameName: "root", SampleCount: 10,
		Children: []*aggregate.ProfileNode{
			{FrameName: "leaf", LeafState: "RUNNABLE", SampleCount: 4},
		},
	}

	data, err := EncodeProfile(root)
	if err != nil {
		t.Fatalf("EncodeProfile: %v", err)
	}
	got, err := DecodeProfile(data)
	if err != nil {
		t.Fatalf("DecodeProfile: %v", err)
	}
	if diff := cmp.Diff(root, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestProfile_NilRootEncodesEmptyAndDecodesNil(t *testing.T) {
	t.Parallel()

	data, err := EncodeProfile(nil)
	if err != nil {
		t.Fatalf("EncodeProfile(nil): %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("EncodeProfile(nil) = %d bytes, want 0", len(data))
	}
	got, err := DecodeProfile(data)
	if err != nil {
		t.Fatalf("DecodeProfile: %v", err)
	}
	if got != nil {
		t.Fatalf("DecodeProfile(empty) = %+v, want nil", got)
	}
}
