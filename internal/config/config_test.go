package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOverlaysFileOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	const body = `
NodeRPCURL = "http://localhost:8545"
GenesisHeight = 0

[TableStorage]
ServiceURL = "http://127.0.0.1:10002/devstoreaccount1"
UseEmulator = true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8545", cfg.NodeRPCURL)
	require.True(t, cfg.TableStorage.UseEmulator)
	// defaults not overridden by the file survive
	require.Equal(t, 30, cfg.Scheduler.ReadyWorkers)
	require.Equal(t, uint32(2000), cfg.Blocks.BatchSize)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml")
	require.Error(t, err)
}

func TestLoadOverlaysNamespaceAndRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	const body = `
NodeRPCURL = "http://localhost:8545"
GenesisHeight = 0
StorageNamespace = "mainnet"
CheckpointSetName = "prod"
ToHeight = 500
CheckpointInterval = 250
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "mainnet", cfg.StorageNamespace)
	require.Equal(t, "prod", cfg.CheckpointSetName)
	require.NotNil(t, cfg.ToHeight)
	require.Equal(t, uint32(500), *cfg.ToHeight)
	require.Equal(t, uint32(250), cfg.CheckpointInterval)
}

func TestDefaultLeavesToHeightUnbounded(t *testing.T) {
	require.Nil(t, Default().ToHeight)
	require.Equal(t, "default", Default().CheckpointSetName)
}
