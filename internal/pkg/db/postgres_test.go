package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakesim/internal/config"
)

func TestPoolConfigDefaults(t *testing.T) {
	pc, err := PoolConfig(&config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "p", Name: "stakesim",
		PoolSize: 20,
	})
	require.NoError(t, err)

	assert.EqualValues(t, 20, pc.MaxConns)
	assert.EqualValues(t, 5, pc.MinConns)
	assert.Equal(t, 10*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, "stakesim", pc.ConnConfig.Database)
}

func TestPoolConfigOverrides(t *testing.T) {
	pc, err := PoolConfig(&config.DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Name: "n",
		PoolSize:        2,
		ConnectTimeout:  3 * time.Second,
		MaxConnLifetime: time.Minute,
	})
	require.NoError(t, err)

	assert.EqualValues(t, 1, pc.MinConns)
	assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Minute, pc.MaxConnLifetime)
	assert.EqualValues(t, 5433, pc.ConnConfig.Port)
}
