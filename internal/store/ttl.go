package store

import "time"

const minTTL = 60 * time.Second

// DataTTL computes the per-row TTL for a data write, per spec.md §4.2's TTL
// discipline: level_retention - age(captureTime), floored at 60 seconds.
func DataTTL(levelRetention time.Duration, age time.Duration) time.Duration {
	ttl := levelRetention - age
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}

// WorkQueueTTL computes the TTL for a needs_rollup-family row: the data TTL
// it shadows, shortened by maxRollupInterval + 1h, floored at 60 seconds.
// This guarantees a work-queue entry always expires before the source rows
// it points to, per spec.md §4.2's "data_TTL >= needs_rollup_TTL +
// max_rollup_interval + 3600" ordering invariant.
func WorkQueueTTL(dataTTL time.Duration, maxRollupInterval time.Duration) time.Duration {
	ttl := dataTTL - maxRollupInterval - time.Hour
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}
