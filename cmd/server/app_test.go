package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdispatch/fleetdispatch/internal/config"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
)

func TestNewLogger(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, newLogger("debug").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger("").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger("loud").GetLevel())
}

func TestOpenRepositories_Bolt(t *testing.T) {
	cfg := &config.Config{StoreDriver: config.StoreBolt, BoltPath: filepath.Join(t.TempDir(), "data", "fleet.db")}
	repos, err := openRepositories(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer repos.close()

	ctx := context.Background()
	c := campaign.New("survey", "site-1", nil)
	require.NoError(t, repos.campaigns.Save(ctx, c))
	got, err := repos.campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}
