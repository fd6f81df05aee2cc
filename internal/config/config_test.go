package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefault_PassesValidation(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsFewerThanTwoLevels(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Rollup.Levels = cfg.Rollup.Levels[:1]

	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonIncreasingIntervals(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Rollup.Levels = []RollupLevel{
		{Interval: time.Minute, Retention: time.Hour},
		{Interval: time.Minute, Retention: time.Hour}, // same interval as level 0
	}

	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsRetentionShorterThanInterval(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Rollup.Levels = []RollupLevel{
		{Interval: time.Minute, Retention: time.Hour},
		{Interval: time.Hour, Retention: time.Minute}, // retention < interval
	}

	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveTruncationThreshold(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.SharedText.TruncationThreshold = 0

	assert.Error(t, cfg.Validate())
}

func TestMaxRollupInterval_ReturnsLargest(t *testing.T) {
	t.Parallel()

	cfg := Default()
	got := cfg.Rollup.MaxRollupInterval()
	want := cfg.Rollup.Levels[len(cfg.Rollup.Levels)-1].Interval

	assert.Equal(t, want, got)
}

func TestParentMap_BuildsChildToParentMap(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.AgentRollups = []AgentRollupConfig{
		{ID: "host-1", Parent: "service-a"},
		{ID: "service-a", Parent: ""},
	}

	m := cfg.ParentMap()
	assert.Equal(t, "service-a", m["host-1"])
	assert.Equal(t, "", m["service-a"])
	assert.Len(t, m, 2)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/path/to/config.yaml")
	assert.Error(t, err)
}
