package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/plus3/scripthost/internal/config"
	"github.com/plus3/scripthost/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{TickInterval: 16 * time.Millisecond, FixedStep: 20 * time.Millisecond}
}

func startHost(t *testing.T, cfg config.Config) (*Host, *script.ManualClock) {
	t.Helper()
	clock := script.NewManualClock(epoch)
	h, err := NewHost(cfg, slog.New(slog.DiscardHandler), clock)
	require.NoError(t, err)
	require.NoError(t, h.Spawn())
	return h, clock
}

func advance(h *Host, clock *script.ManualClock, d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += 100 * time.Millisecond {
		h.Controller().Tick(clock.Advance(100 * time.Millisecond))
	}
}

func instance(t *testing.T, h *Host, object, name string) *script.Instance {
	t.Helper()
	inst, ok := h.Controller().FindByName(object, name)
	require.True(t, ok, "%s/%s not attached", object, name)
	return inst
}

func TestDemoScene(t *testing.T) {
	t.Run("scripts attach by type and source", func(t *testing.T) {
		h, clock := startHost(t, testConfig())
		defer h.Close()
		advance(h, clock, 100*time.Millisecond)

		assert.Equal(t, script.Started, instance(t, h, "entity1", "test").State())
		assert.Equal(t, script.Started, instance(t, h, "entity1", "blink").State())
		assert.Equal(t, script.Started, instance(t, h, "entity2", "countdown").State())
		assert.Equal(t, script.Awake, instance(t, h, "dormant", "testing").State())
		assert.Equal(t, script.Awake, instance(t, h, "dormant", "blink").State())

		test := instance(t, h, "entity1", "test").Behaviour().(*Test)
		assert.Equal(t, 3, test.Count)
		assert.Equal(t, float32(1.5), test.Scale)
		assert.Equal(t, 'x', test.Glyph)
		peer, ok := script.ResolveAs[*Testing](test.Testing)
		require.True(t, ok)
		assert.True(t, peer.Hihi)
		assert.Equal(t, "entity1/test", test.Self.String())

		dormant := instance(t, h, "dormant", "testing").Behaviour().(*Testing)
		assert.False(t, dormant.Hihi)
	})

	t.Run("test behaviour counts to four and pins x", func(t *testing.T) {
		h, clock := startHost(t, testConfig())
		defer h.Close()
		advance(h, clock, 6*time.Second)

		test := instance(t, h, "entity1", "test").Behaviour().(*Test)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, test.Yielded)
		assert.True(t, test.Finished)

		obj, ok := h.Scene().Get(instance(t, h, "entity1", "test").Object())
		require.True(t, ok)
		assert.Equal(t, 3.0, obj.Position.X())
	})

	t.Run("countdown disables itself", func(t *testing.T) {
		h, clock := startHost(t, testConfig())
		defer h.Close()
		advance(h, clock, 3*time.Second)

		countdown := instance(t, h, "entity2", "countdown")
		assert.Equal(t, script.Disabled, countdown.State())
		lives, _ := countdown.Slots().Get("lives")
		assert.Equal(t, script.IntValue(0), lives)

		obj, _ := h.Scene().Get(countdown.Object())
		assert.Greater(t, obj.Position.Y(), 1.0)
	})

	t.Run("set active follows the scene flags", func(t *testing.T) {
		h, clock := startHost(t, testConfig())
		defer h.Close()

		require.NoError(t, h.SetActive("dormant", true))
		advance(h, clock, 100*time.Millisecond)
		assert.Equal(t, script.Started, instance(t, h, "dormant", "testing").State())
		assert.Equal(t, script.Awake, instance(t, h, "dormant", "blink").State())

		require.NoError(t, h.SetActive("entity1", false))
		assert.Equal(t, script.Disabled, instance(t, h, "entity1", "test").State())
		assert.Equal(t, 0, instance(t, h, "entity1", "test").Context().ActiveCoroutines())

		assert.Error(t, h.SetActive("nowhere", true))
	})
}

func TestSlotDB(t *testing.T) {
	cfg := testConfig()
	cfg.SlotDB = filepath.Join(t.TempDir(), "slots.db")

	h, clock := startHost(t, cfg)
	advance(h, clock, 3*time.Second)
	require.NoError(t, h.Close())

	h, _ = startHost(t, cfg)
	defer h.Close()
	lives, ok := instance(t, h, "entity2", "countdown").Slots().Get("lives")
	require.True(t, ok)
	assert.Equal(t, script.IntValue(0), lives)
}

const reloadScene = `
objects:
  - name: lamp
    scripts:
      - name: glow
        source: glow.tengo
      - name: idle
        source: glow.tengo
        disabled: true
`

func TestReload(t *testing.T) {
	dir := t.TempDir()
	scenePath := filepath.Join(dir, "scene.yaml")
	scriptPath := filepath.Join(dir, "glow.tengo")
	require.NoError(t, os.WriteFile(scenePath, []byte(reloadScene), 0o644))
	require.NoError(t, os.WriteFile(scriptPath, []byte(`fields := {level: 1}`), 0o644))

	cfg := testConfig()
	cfg.ScenePath = scenePath
	cfg.ScriptDir = dir
	h, clock := startHost(t, cfg)
	defer h.Close()
	advance(h, clock, 100*time.Millisecond)
	before := instance(t, h, "lamp", "glow")

	t.Run("broken source keeps running instances", func(t *testing.T) {
		require.NoError(t, os.WriteFile(scriptPath, []byte(`update := func(`), 0o644))
		h.Reload(scriptPath)
		assert.Same(t, before, instance(t, h, "lamp", "glow"))
	})

	t.Run("instances are replaced and keep their enabled state", func(t *testing.T) {
		require.NoError(t, os.WriteFile(scriptPath, []byte(`fields := {level: 7}`), 0o644))
		h.Reload(scriptPath)

		after := instance(t, h, "lamp", "glow")
		assert.NotEqual(t, before.ID(), after.ID())
		assert.Equal(t, script.Destroyed, before.State())
		assert.Equal(t, script.Enabled, after.State())
		level, _ := after.Slots().Get("level")
		assert.Equal(t, script.IntValue(7), level)

		assert.Equal(t, script.Awake, instance(t, h, "lamp", "idle").State())
	})

	t.Run("files outside the script dir are ignored", func(t *testing.T) {
		current := instance(t, h, "lamp", "glow")
		h.Reload(filepath.Join(t.TempDir(), "glow.tengo"))
		assert.Same(t, current, instance(t, h, "lamp", "glow"))
	})
}
