package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	path := writeConfig(t, `
[semantic.tuning]
tag_threshold = 0.30
`)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()
	// Short debounce keeps the test fast.
	w.debouncePeriod = 50 * time.Millisecond

	reloaded := make(chan *Config, 1)
	w.OnReload(func(cfg *Config) error {
		select {
		case reloaded <- cfg:
		default:
		}
		return nil
	})
	w.Start()

	require.NoError(t, os.WriteFile(path, []byte(`
[semantic.tuning]
tag_threshold = 0.42
`), 0644))

	select {
	case cfg := <-reloaded:
		require.Equal(t, 0.42, cfg.Semantic.Tuning.TagThreshold)
	case <-time.After(5 * time.Second):
		t.Fatal("config reload callback never fired")
	}
}

func TestWatcherOwnWriteSuppressionIsOneShot(t *testing.T) {
	w := &Watcher{}
	require.False(t, w.checkOwnWrite())

	w.MarkOwnWrite()
	require.True(t, w.checkOwnWrite())
	require.False(t, w.checkOwnWrite())
}
