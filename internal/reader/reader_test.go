package reader

import (
	"context"
	"testing"
	"time"
)

func TestSortAndLimitTotals_OrdersByTotalDurationDescending(t *testing.T) {
	t.Parallel()

	in := []NamedTotal{
		{TransactionName: "a", TotalDurationNanos: 10},
		{TransactionName: "b", TotalDurationNanos: 30},
		{TransactionName: "c", TotalDurationNanos: 20},
	}
	out := sortAndLimitTotals(in, 0)
	if len(out) != 3 || out[0].TransactionName != "b" || out[1].TransactionName != "c" || out[2].TransactionName != "a" {
		t.Fatalf("sortAndLimitTotals order = %+v, want b,c,a", out)
	}
}

func TestSortAndLimitTotals_LimitZeroMeansUnbounded(t *testing.T) {
	t.Parallel()

	in := []NamedTotal{{TotalDurationNanos: 1}, {TotalDurationNanos: 2}}
	out := sortAndLimitTotals(in, 0)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 when limit <= 0", len(out))
	}
}

func TestSortAndLimitTotals_CapsAtLimit(t *testing.T) {
	t.Parallel()

	in := []NamedTotal{
		{TransactionName: "a", TotalDurationNanos: 10},
		{TransactionName: "b", TotalDurationNanos: 30},
		{TransactionName: "c", TotalDurationNanos: 20},
	}
	out := sortAndLimitTotals(in, 2)
	if len(out) != 2 || out[0].TransactionName != "b" || out[1].TransactionName != "c" {
		t.Fatalf("sortAndLimitTotals(limit=2) = %+v, want top 2 by duration", out)
	}
}

func TestSortAndLimitTotals_LimitLargerThanInputIsNoop(t *testing.T) {
	t.Parallel()

	in := []NamedTotal{{TotalDurationNanos: 1}}
	out := sortAndLimitTotals(in, 50)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 when limit exceeds input size", len(out))
	}
}

func TestShouldHaveQueriesServiceCallsProfile_StubbedFalse(t *testing.T) {
	t.Parallel()

	r := &Reader{}
	ctx := context.Background()
	now := time.Unix(0, 0)

	if got, err := r.ShouldHaveQueries(ctx, "agent", now); err != nil || got {
		t.Fatalf("ShouldHaveQueries = (%v, %v), want (false, nil)", got, err)
	}
	if got, err := r.ShouldHaveServiceCalls(ctx, "agent", now); err != nil || got {
		t.Fatalf("ShouldHaveServiceCalls = (%v, %v), want (false, nil)", got, err)
	}
	if got, err := r.ShouldHaveProfile(ctx, "agent", now); err != nil || got {
		t.Fatalf("ShouldHaveProfile = (%v, %v), want (false, nil)", got, err)
	}
}
