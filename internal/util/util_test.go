package util

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWritePidFile(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "wattpilot.pid")
	remove, err := WritePidFile(path)
	require.NoError(err)

	data, err := os.ReadFile(path)
	require.NoError(err)
	require.Equal(strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))

	require.NoError(remove())
	_, err = os.Stat(path)
	require.True(os.IsNotExist(err))
	require.NoError(remove())
}

func TestWritePidFileStale(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "wattpilot.pid")
	// pid far above any default pid_max
	require.NoError(os.WriteFile(path, []byte("999999999\n"), 0o644))

	remove, err := WritePidFile(path)
	require.NoError(err)
	defer remove()
}

func TestLoadTestConfigIsConsistent(t *testing.T) {
	require := require.New(t)

	cfg := LoadTestConfig()
	p := cfg.ControlParams()
	require.Equal(uint32(35), p.MaxChargeCurrent)
	require.Equal(uint(8), p.NextTripChargeAmps)
}
