// Package sharedquery implements C5, the full query text de-duplication
// side-table: oversized query strings are stored once, keyed by content
// hash, with their TTL refreshed on reuse rather than rewritten. It is a
// direct descendant of the teacher's datastore.StatPathGopher (the
// secondary Redis-backed index in datastore/retrieve.go), repurposed from
// path lookups to text-hash dedup and modernized onto go-redis/v9, with an
// in-process otter tier in front of it so a hot query text doesn't pay a
// network round trip on every bucket.
package sharedquery

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/maypok86/otter/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jeffpierce/aggrollup/internal/apmerr"
	"github.com/jeffpierce/aggrollup/internal/logging"
	"github.com/jeffpierce/aggrollup/internal/telemetry"
)

// maxTTLRefreshAttempts bounds the inline retry spec.md §9.1 calls for: a
// failed TTL-refresh write inside one Store call is retried a small fixed
// number of times before surfacing a TransientStoreError, since it is
// idempotent and internal to the call (the caller never sees it directly).
const maxTTLRefreshAttempts = 2

// Text is one query text as submitted by an agent: either already
// truncated with a resolved sha1 (FullTextSha1 non-empty), or the raw
// full text pending resolution (FullTextSha1 empty).
type Text struct {
	Type          string
	TruncatedText string
	FullTextSha1  string
	FullText      string
}

// Resolved is the outcome of resolving one Text: the (truncated, sha1)
// pair to store in the aggregate's query row.
type Resolved struct {
	Type          string
	TruncatedText string
	FullTextSha1  string
}

// Store is the full-text side-table client.
type Store struct {
	session             *gocql.Session
	keyspace            string
	truncationThreshold int
	ttlRefreshWindow    time.Duration
	dataTTL             time.Duration

	local *otter.Cache[string, time.Time]
	redis *redis.Client

	metrics *telemetry.Metrics
	log     *logging.Logger
}

// New builds a Store. redisClient may be nil, in which case the
// cross-instance cache tier is skipped and every write goes straight to
// Cassandra (still correct, just without the cluster-wide TTL-refresh
// suppression).
func New(session *gocql.Session, keyspace string, truncationThreshold int, ttlRefreshWindow time.Duration, localCacheSize int, redisClient *redis.Client, metrics *telemetry.Metrics, log *logging.Logger) (*Store, error) {
	local, err := otter.New[string, time.Time](&otter.Options[string, time.Time]{
		MaximumSize:      localCacheSize,
		ExpiryCalculator: otter.ExpiryWriting[string, time.Time](ttlRefreshWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("sharedquery: create local cache: %w", err)
	}
	return &Store{
		session:             session,
		keyspace:            keyspace,
		truncationThreshold: truncationThreshold,
		ttlRefreshWindow:    ttlRefreshWindow,
		local:               local,
		redis:               redisClient,
		metrics:             metrics,
		log:                 log,
	}, nil
}

// SetDataTTL sets the TTL used for side-table writes, computed by the
// caller per-bucket from store.DataTTL (level 0's retention).
func (s *Store) SetDataTTL(ttl time.Duration) { s.dataTTL = ttl }

// Resolve implements step 2 of spec.md §4.1 for a batch of query texts
// belonging to one Store call: for each text, either compute its sha1,
// store the full text, and return a truncated reference, or (if already
// resolved) refresh the side-table TTL. All writes complete before
// Resolve returns, satisfying "all side-table writes must complete before
// aggregate writes begin."
func (s *Store) Resolve(ctx context.Context, texts []Text) ([]Resolved, error) {
	out := make([]Resolved, len(texts))
	for i, t := range texts {
		r, err := s.resolveOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (s *Store) resolveOne(ctx context.Context, t Text) (Resolved, error) {
	if t.FullTextSha1 != "" {
		if err := s.refreshTTL(ctx, t.FullTextSha1); err != nil {
			return Resolved{}, err
		}
		return Resolved{Type: t.Type, TruncatedText: t.TruncatedText, FullTextSha1: t.FullTextSha1}, nil
	}

	if len(t.FullText) <= s.truncationThreshold {
		return Resolved{Type: t.Type, TruncatedText: t.FullText, FullTextSha1: ""}, nil
	}

	sum := sha1.Sum([]byte(t.FullText))
	sha1hex := hex.EncodeToString(sum[:])
	if err := s.writeFullText(ctx, sha1hex, t.FullText); err != nil {
		return Resolved{}, err
	}
	truncated := t.FullText[:s.truncationThreshold]
	return Resolved{Type: t.Type, TruncatedText: truncated, FullTextSha1: sha1hex}, nil
}

// refreshTTL bumps the side-table row's TTL for an already-resolved sha1,
// skipping the write entirely if a local or cross-instance cache entry
// shows it was refreshed within the last window.
func (s *Store) refreshTTL(ctx context.Context, sha1hex string) error {
	if _, ok := s.local.GetIfPresent(sha1hex); ok {
		s.hit()
		return nil
	}
	if s.redis != nil {
		seen, err := s.redis.Exists(ctx, redisKey(sha1hex)).Result()
		if err == nil && seen > 0 {
			s.hit()
			s.local.Set(sha1hex, time.Now())
			return nil
		}
	}
	s.miss()

	var lastErr error
	for attempt := 0; attempt < maxTTLRefreshAttempts; attempt++ {
		stmt := fmt.Sprintf(`UPDATE %s.full_query_text USING TTL ? SET full_query_text = full_query_text WHERE full_query_text_sha1 = ?`, s.keyspace)
		lastErr = s.session.Query(stmt, int(s.dataTTL/time.Second), sha1hex).WithContext(ctx).Exec()
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return apmerr.NewTransientStoreError("shared_query_text_refresh", lastErr)
	}

	s.local.Set(sha1hex, time.Now())
	if s.redis != nil {
		s.redis.Set(ctx, redisKey(sha1hex), 1, s.ttlRefreshWindow)
	}
	return nil
}

func (s *Store) writeFullText(ctx context.Context, sha1hex, fullText string) error {
	stmt := fmt.Sprintf(`INSERT INTO %s.full_query_text (full_query_text_sha1, full_query_text) VALUES (?, ?) USING TTL ?`, s.keyspace)

	var lastErr error
	for attempt := 0; attempt < maxTTLRefreshAttempts; attempt++ {
		lastErr = s.session.Query(stmt, sha1hex, fullText, int(s.dataTTL/time.Second)).WithContext(ctx).Exec()
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return apmerr.NewTransientStoreError("shared_query_text_write", lastErr)
	}

	s.local.Set(sha1hex, time.Now())
	if s.redis != nil {
		s.redis.Set(ctx, redisKey(sha1hex), 1, s.ttlRefreshWindow)
	}
	return nil
}

func (s *Store) hit() {
	if s.metrics != nil {
		s.metrics.SharedTextCacheHits.Inc()
	}
}

func (s *Store) miss() {
	if s.metrics != nil {
		s.metrics.SharedTextCacheMisses.Inc()
	}
}

func redisKey(sha1hex string) string {
	return "aggrollup:sqt:" + sha1hex
}
