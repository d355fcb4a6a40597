package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolDefaults(t *testing.T) {
	p := NewPool(Config{DSN: "postgres://localhost/warehouse"})

	assert.Equal(t, int32(10), p.cfg.MaxConns)
	assert.Equal(t, int32(0), p.cfg.MinConns)
	assert.Equal(t, "America/Santiago", p.cfg.Timezone)
	assert.False(t, p.IsOpen())
}

func TestClosedPoolRejectsQueries(t *testing.T) {
	p := NewPool(Config{DSN: "postgres://localhost/warehouse"})
	ctx := context.Background()

	_, err := p.Query(ctx, "SELECT 1")
	require.ErrorIs(t, err, ErrClosed)

	var n int
	require.ErrorIs(t, p.QueryRow(ctx, "SELECT 1").Scan(&n), ErrClosed)
	require.ErrorIs(t, p.Ping(ctx), ErrClosed)

	// closing twice is safe
	p.Close()
	p.Close()
}

func TestOpenRejectsInvalidDSN(t *testing.T) {
	p := NewPool(Config{DSN: "postgres://%zz"})

	err := p.Open(context.Background())
	require.Error(t, err)
	assert.False(t, p.IsOpen())
}
