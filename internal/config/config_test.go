package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := load(viper.New())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.ERP.RequestTimeout)
	assert.Equal(t, 3, cfg.ERP.MaxAttempts)
	assert.Equal(t, 7000, cfg.Planning.SegmentationChunk)
	assert.Equal(t, int32(0), cfg.Warehouse.MinConns)
	assert.Equal(t, int32(10), cfg.Warehouse.MaxConns)
	assert.Equal(t, "America/Santiago", cfg.Warehouse.Timezone)
	assert.Equal(t, DefaultStores, cfg.Planning.Stores)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PLANNING_STORES", "PUCON, TEMUCO ,,OSORNO")
	t.Setenv("ERP_URL", "https://erp.example.com/")
	t.Setenv("ERP_MAX_ATTEMPTS", "5")

	cfg := load(viper.New())

	require.Equal(t, []string{"PUCON", "TEMUCO", "OSORNO"}, cfg.Planning.Stores)
	assert.Equal(t, "https://erp.example.com", cfg.ERP.BaseURL)
	assert.Equal(t, 5, cfg.ERP.MaxAttempts)
}
