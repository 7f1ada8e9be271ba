package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitConfigArgsOverride(t *testing.T) {
	require := require.New(t)

	t.Setenv("WATTPILOT2ESS_WATTPILOT_HOST", "10.0.0.1")
	t.Setenv("WATTPILOT2ESS_WATTPILOT_PASSWORD", "from-env")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")

	cfg, err := initConfig("", []string{"192.168.1.20", "secret"})
	require.NoError(err)
	require.Equal("192.168.1.20", cfg.Wattpilot.Host)
	require.Equal("secret", cfg.Wattpilot.Password)

	cfg, err = initConfig("", nil)
	require.NoError(err)
	require.Equal("10.0.0.1", cfg.Wattpilot.Host)
	require.Equal("from-env", cfg.Wattpilot.Password)
}

func TestInitConfigPortAlias(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "9090")
	t.Setenv("WATTPILOT2ESS_PORT", "")

	cfg, err := initConfig("", []string{"192.168.1.20", "secret"})
	require.NoError(t, err)
	require.Equal(t, uint(9090), cfg.Port)
}

func TestRootCmdRejectsExtraArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"a", "b", "c"})
	require.Error(t, cmd.Execute())
}

func TestRootCmdRequiresAddress(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WATTPILOT2ESS_WATTPILOT_HOST", "")
	t.Setenv("WATTPILOT2ESS_WATTPILOT_PASSWORD", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	require.ErrorContains(t, cmd.Execute(), "wallbox address is required")
}
