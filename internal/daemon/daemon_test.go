package daemon_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusrank/focusrank/internal/daemon"
)

func TestPIDFileLifecycle(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run", "focusrank.pid")
	d := daemon.New(path)

	pid, err := d.ReadPID()
	require.NoError(t, err)
	assert.Zero(t, pid, "missing PID file reads as zero")

	running, _, err := d.IsRunning()
	require.NoError(t, err)
	assert.False(t, running)

	require.NoError(t, d.WritePID())

	pid, err = d.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	running, pid, err = d.IsRunning()
	require.NoError(t, err)
	assert.True(t, running, "the test process itself is alive")
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, d.RemovePID())
	require.NoError(t, d.RemovePID(), "removing twice is fine")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestInvalidPIDFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "focusrank.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))

	_, err := daemon.New(path).ReadPID()
	require.ErrorContains(t, err, "invalid PID in file")
}

func TestStalePIDFileIsRemoved(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "focusrank.pid")
	// PIDs are bounded well below this on Linux.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(1<<30)), 0o644))

	d := daemon.New(path)
	running, _, err := d.IsRunning()
	require.NoError(t, err)
	assert.False(t, running)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "stale PID file should be removed")

	require.ErrorContains(t, d.Stop(), "not running")
}

func TestIsChild(t *testing.T) {
	t.Setenv(daemon.ChildEnv, "1")
	assert.True(t, daemon.IsChild())

	t.Setenv(daemon.ChildEnv, "")
	assert.False(t, daemon.IsChild())
}
