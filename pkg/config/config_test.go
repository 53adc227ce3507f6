package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 5, cfg.Seating.DefaultBufferSeats)
	assert.Equal(t, "sparse", cfg.Seating.DefaultDensity)
	assert.Equal(t, []string{"B1", "B2"}, cfg.Seating.PreferredBlocks)
	assert.Equal(t, "B1", cfg.Seating.NumericBlock)
	assert.Equal(t, 30*time.Minute, cfg.Seating.ProposalTTL)
	assert.Equal(t, int64(20*1024*1024), cfg.Seating.MaxUploadBytes)
	assert.Equal(t, 2, cfg.Exports.WorkerConcurrency)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SEATING_DEFAULT_DENSITY", " Dense ")
	v.Set("SEATING_PREFERRED_BLOCKS", "LH, B2 ,,B1")
	v.Set("SEATING_PROPOSAL_TTL", "not-a-duration")
	v.Set("SEATING_MAX_UPLOAD_BYTES", -1)

	cfg := fromViper(v)

	assert.Equal(t, "dense", cfg.Seating.DefaultDensity)
	assert.Equal(t, []string{"LH", "B2", "B1"}, cfg.Seating.PreferredBlocks)
	assert.Equal(t, 30*time.Minute, cfg.Seating.ProposalTTL)
	assert.Equal(t, int64(20*1024*1024), cfg.Seating.MaxUploadBytes)
}
