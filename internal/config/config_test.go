package config_test

import (
	"flag"
	"testing"
	"time"

	"github.com/plus3/scripthost/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.Parse(flag.NewFlagSet("scripthost", flag.ContinueOnError), nil)
		require.NoError(t, err)
		assert.Equal(t, 16*time.Millisecond, cfg.TickInterval)
		assert.Equal(t, 20*time.Millisecond, cfg.FixedStep)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, ".", cfg.ScriptDir)
		assert.False(t, cfg.Window)
	})

	t.Run("flags override environment", func(t *testing.T) {
		t.Setenv("SCRIPTHOST_TICK_INTERVAL", "5ms")
		t.Setenv("SCRIPTHOST_SCENE", "env.yaml")
		t.Setenv("SCRIPTHOST_WATCH", "true")

		cfg, err := config.Parse(flag.NewFlagSet("scripthost", flag.ContinueOnError),
			[]string{"-scene", "flag.yaml", "-log-format", "json"})
		require.NoError(t, err)
		assert.Equal(t, 5*time.Millisecond, cfg.TickInterval)
		assert.Equal(t, "flag.yaml", cfg.ScenePath)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.True(t, cfg.Watch)
	})

	t.Run("bad environment", func(t *testing.T) {
		t.Setenv("SCRIPTHOST_TICK_INTERVAL", "soon")
		_, err := config.Parse(flag.NewFlagSet("scripthost", flag.ContinueOnError), nil)
		assert.Error(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := config.Parse(flag.NewFlagSet("scripthost", flag.ContinueOnError), []string{"-tick", "0s"})
		assert.ErrorContains(t, err, "tick interval")

		_, err = config.Parse(flag.NewFlagSet("scripthost", flag.ContinueOnError), []string{"-log-format", "xml"})
		assert.ErrorContains(t, err, "log format")
	})
}
