package sharedquery

import (
	"context"
	"testing"
	"time"

	"github.com/maypok86/otter/v2"
)

func TestRedisKey_Namespaced(t *testing.T) {
	t.Parallel()

	got := redisKey("abc123")
	if got != "aggrollup:sqt:abc123" {
		t.Fatalf("redisKey = %q, want aggrollup:sqt:abc123", got)
	}
}

func TestResolveOne_ShortTextPassesThroughWithoutSha1(t *testing.T) {
	t.Parallel()

	s := &Store{truncationThreshold: 120}
	r, err := s.resolveOne(context.Background(), Text{Type: "SELECT", FullText: "select 1"})
	if err != nil {
		t.Fatalf("resolveOne: %v", err)
	}
	if r.FullTextSha1 != "" {
		t.Fatalf("FullTextSha1 = %q, want empty for short text", r.FullTextSha1)
	}
	if r.TruncatedText != "select 1" {
		t.Fatalf("TruncatedText = %q, want the text unchanged", r.TruncatedText)
	}
}

func TestResolve_BatchOfShortTexts(t *testing.T) {
	t.Parallel()

	s := &Store{truncationThreshold: 120}
	texts := []Text{
		{Type: "SELECT", FullText: "select 1"},
		{Type: "SELECT", FullText: "select 2"},
	}
	out, err := s.Resolve(context.Background(), texts)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
}

func TestResolveOne_TextAtThresholdPassesThroughUntruncated(t *testing.T) {
	t.Parallel()

	text := "select * from t where x = 1"
	s := &Store{truncationThreshold: len(text)}
	r, err := s.resolveOne(context.Background(), Text{Type: "SELECT", FullText: text})
	if err != nil {
		t.Fatalf("resolveOne: %v", err)
	}
	if r.FullTextSha1 != "" || r.TruncatedText != text {
		t.Fatalf("text exactly at the threshold should pass through untouched, got %+v", r)
	}
}

func TestResolveOne_AlreadyResolvedShortCircuitsOnLocalCacheHit(t *testing.T) {
	t.Parallel()

	local, err := otter.New[string, time.Time](&otter.Options[string, time.Time]{MaximumSize: 16})
	if err != nil {
		t.Fatalf("otter.New: %v", err)
	}
	local.Set("deadbeef", time.Now())

	s := &Store{truncationThreshold: 120, local: local}
	r, err := s.resolveOne(context.Background(), Text{Type: "SELECT", TruncatedText: "select ...", FullTextSha1: "deadbeef"})
	if err != nil {
		t.Fatalf("resolveOne: %v", err)
	}
	if r.FullTextSha1 != "deadbeef" || r.TruncatedText != "select ..." {
		t.Fatalf("resolveOne should pass the already-resolved pair through unchanged, got %+v", r)
	}
}
