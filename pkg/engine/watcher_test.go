package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, mod time.Time) {
	require.NoError(t, os.WriteFile(path, []byte("src 10.0.0.0/8 *\n"), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestWatcherReloadsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whitelist.txt")
	start := time.Now().Add(-time.Hour)
	touch(t, path, start)

	logger, hook := test.NewNullLogger()
	w := NewWatcher(time.Second, nil, logger)

	calls := 0
	var reloadErr error
	w.Watch("whitelist", []string{path}, func() error {
		calls++
		return reloadErr
	})

	w.Check()
	assert.Equal(t, 0, calls)

	touch(t, path, start.Add(time.Minute))
	w.Check()
	assert.Equal(t, 1, calls)
	assert.Equal(t, log.InfoLevel, hook.LastEntry().Level)

	// unchanged since the last reload
	w.Check()
	assert.Equal(t, 1, calls)

	reloadErr = errors.New("line 3: bad prefix")
	touch(t, path, start.Add(2*time.Minute))
	w.Check()
	assert.Equal(t, 2, calls)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "whitelist", hook.LastEntry().Data["resource"])

	// a failed reload waits for the next change
	w.Check()
	assert.Equal(t, 2, calls)
}

func TestWatcherMissingFileAppears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "later.txt")

	logger, _ := test.NewNullLogger()
	w := NewWatcher(time.Second, nil, logger)
	calls := 0
	w.Watch("blacklist", []string{path}, func() error {
		calls++
		return nil
	})

	w.Check()
	assert.Equal(t, 0, calls)

	touch(t, path, time.Now())
	w.Check()
	assert.Equal(t, 1, calls)
}
