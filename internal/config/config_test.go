package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsApplyOnMissingKeys(t *testing.T) {
	cfg, err := Load(strings.NewReader(`{"server":{"port":30000}}`))
	require.NoError(t, err)
	require.Equal(t, 30000, cfg.Server.Port)
	require.Equal(t, 20, cfg.Server.MaxPlayers) // untouched default
	require.Equal(t, "flat", cfg.World.Generator)
}

func TestLoadFileMissingYieldsDefaults(t *testing.T) {
	cfg, err := LoadFile("/nonexistent/path/craftd.json")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestViewDistanceClampableRange(t *testing.T) {
	cfg := Default()
	require.GreaterOrEqual(t, cfg.Server.ViewDistance, 2)
	require.LessOrEqual(t, cfg.Server.ViewDistance, 32)
}
