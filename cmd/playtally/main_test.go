package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/playtally/internal/config"
	"github.com/mmcdole/playtally/internal/domain"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := `storage:
  driver: bolt
  path: ` + filepath.Join(dir, "data") + `
remote:
  driver: memory
sync:
  flush_on_play: true
  interval: 0s
logging:
  file: ` + filepath.Join(dir, "playtally.log") + `
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "playtally dev\n", out)
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range NewRootCommand().Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"init", "play", "flush", "status", "serve", "verify", "version"})
}

func TestPlayAndStatus(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "play", "episode-1", "movie-42")
	require.NoError(t, err)
	assert.Equal(t, "episode-1\t1\nmovie-42\t1\n", out)

	// second run is inside the cooldown window and reads the persisted ledger
	out, err = execute(t, "--config", cfg, "play", "episode-1")
	require.NoError(t, err)
	assert.Equal(t, "episode-1\t1\n", out)

	out, err = execute(t, "--config", cfg, "status", "--json")
	require.NoError(t, err)

	var entries map[string]domain.PlaybackEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries["episode-1"].Count)
	assert.True(t, entries["episode-1"].Synced)

	out, err = execute(t, "--config", cfg, "status", "--filter", "movie")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "movie-42\t1\t"))
	assert.True(t, strings.HasSuffix(lines[0], "\tclean"))
}

func TestPlay_RequiresItem(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t), "play")
	assert.Error(t, err)
}

func TestFlush_NothingDirty(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t), "flush")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "synced 0 of 0"))
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := execute(t, "--config", path, "init")
	require.NoError(t, err)
	assert.Equal(t, "wrote "+path+"\n", out)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Sync, cfg.Sync)
	assert.Equal(t, "playCount", cfg.Remote.Field)
	assert.False(t, cfg.IsRemoteConfigured())

	_, err = execute(t, "--config", path, "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "--config", path, "init", "--force")
	assert.NoError(t, err)
}

func TestVerifyCommand(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, "--config", cfg, "play", "episode-1")
	require.NoError(t, err)

	// the memory remote starts empty in every process
	out, err := execute(t, "--config", cfg, "verify")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "store: bolt("))
	assert.Equal(t, "remote: memory (local only)", lines[1])
	assert.Equal(t, "episode-1\t1\t-\tmissing", lines[2])
}
