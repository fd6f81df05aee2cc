package workqueue

import (
	"testing"
	"time"
)

func TestGroupByCaptureTime_UnionsTransactionTypesAndPreservesOrder(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(0, 0)
	t1 := t0.Add(time.Minute)

	rows := []Bucket{
		{CaptureTime: t0, TransactionTypes: []string{"Web"}},
		{CaptureTime: t1, TransactionTypes: []string{"Background"}},
		{CaptureTime: t0, TransactionTypes: []string{"Web", "Synthetic"}},
	}

	grouped := groupByCaptureTime(rows)

	if len(grouped) != 2 {
		t.Fatalf("len(grouped) = %d, want 2 distinct capture times", len(grouped))
	}
	if grouped[0].CaptureTime != t0 {
		t.Fatalf("grouped[0].CaptureTime = %v, want insertion order preserved (t0 first)", grouped[0].CaptureTime)
	}
	if len(grouped[0].TransactionTypes) != 2 {
		t.Fatalf("grouped[0].TransactionTypes = %v, want union of {Web, Synthetic}", grouped[0].TransactionTypes)
	}
}

func TestApplyLastBucketRule_HoldsBackRecentBucket(t *testing.T) {
	t.Parallel()

	interval := time.Minute
	now := time.Unix(1000, 0)
	buckets := []Bucket{
		{CaptureTime: now.Add(-10 * time.Minute)},
		{CaptureTime: now.Add(-30 * time.Second)}, // within one interval of now
	}

	got := applyLastBucketRule(buckets, now, interval)

	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (most recent bucket held back)", len(got))
	}
	if got[0].CaptureTime != buckets[0].CaptureTime {
		t.Fatalf("got[0] = %+v, want the older bucket only", got[0])
	}
}

func TestApplyLastBucketRule_ReleasesOldEnoughBucket(t *testing.T) {
	t.Parallel()

	interval := time.Minute
	now := time.Unix(1000, 0)
	buckets := []Bucket{
		{CaptureTime: now.Add(-10 * time.Minute)},
		{CaptureTime: now.Add(-2 * time.Minute)},
	}

	got := applyLastBucketRule(buckets, now, interval)

	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2 (last bucket is old enough to release)", len(got))
	}
}

func TestApplyLastBucketRule_EmptyInputIsEmpty(t *testing.T) {
	t.Parallel()

	if got := applyLastBucketRule(nil, time.Now(), time.Minute); len(got) != 0 {
		t.Fatalf("got = %v, want empty", got)
	}
}

func TestApplyLastBucketRuleFromChild_HoldsBackRecentBucket(t *testing.T) {
	t.Parallel()

	interval := time.Minute
	now := time.Unix(1000, 0)
	buckets := []FromChildBucket{
		{CaptureTime: now.Add(-10 * time.Minute)},
		{CaptureTime: now.Add(-10 * time.Second)},
	}

	got := applyLastBucketRuleFromChild(buckets, now, interval)
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
}

func TestAppendUnique_DropsDuplicates(t *testing.T) {
	t.Parallel()

	set := appendUnique([]string{"a", "b"}, "a")
	if len(set) != 2 {
		t.Fatalf("len(set) = %d, want 2 (duplicate not appended)", len(set))
	}
	set = appendUnique(set, "c")
	if len(set) != 3 {
		t.Fatalf("len(set) = %d, want 3", len(set))
	}
}

func TestUnionStrings_Dedupes(t *testing.T) {
	t.Parallel()

	got := unionStrings([]string{"a", "b"}, []string{"b", "c"})
	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3 distinct values, got %v", len(got), got)
	}
}

func TestDecodeKey_OverallKeyHasNoTransactionName(t *testing.T) {
	t.Parallel()

	got := DecodeKey(EncodeOverallKey("Web"))
	want := WorkItem{TransactionType: "Web"}
	if got != want {
		t.Fatalf("DecodeKey(overall) = %+v, want %+v", got, want)
	}
}

func TestDecodeKey_TransactionKeyRoundTrips(t *testing.T) {
	t.Parallel()

	got := DecodeKey(EncodeTransactionKey("Web", "/checkout"))
	want := WorkItem{TransactionType: "Web", TransactionName: "/checkout"}
	if got != want {
		t.Fatalf("DecodeKey(transaction) = %+v, want %+v", got, want)
	}
}

func TestDecodeKeys_MixesOverallAndTransactionEntries(t *testing.T) {
	t.Parallel()

	keys := []string{
		EncodeOverallKey("Web"),
		EncodeTransactionKey("Web", "/checkout"),
		EncodeTransactionKey("Web", "/cart"),
	}
	got := DecodeKeys(keys)
	want := []WorkItem{
		{TransactionType: "Web"},
		{TransactionType: "Web", TransactionName: "/checkout"},
		{TransactionType: "Web", TransactionName: "/cart"},
	}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
