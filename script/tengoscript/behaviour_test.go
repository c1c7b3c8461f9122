package tengoscript_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/scripthost/scene"
	"github.com/plus3/scripthost/script"
	"github.com/plus3/scripthost/script/tengoscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterScript = `
fields := {lives: 3, speed: 2.5, glyph: 'x', armed: true, target: {object: "entity2", script: "testing"}}

awake := func(engine, state) {
	state.log = ["awake"]
	state.yielded = []
}

on_enable := func(engine, state) {
	state.log = append(state.log, "on_enable")
	state.handle = engine.start_coroutine("count", 1000)
}

start := func(engine, state) {
	state.log = append(state.log, "start")
}

update := func(engine, state) {
	engine.set_axis("x", state.speed)
	state.speed = state.speed + 1
}

on_disable := func(engine, state) {
	state.log = append(state.log, "on_disable")
	state.active_on_disable = engine.active_coroutines()
}

coroutines := {
	count: func(engine, state, local) {
		if is_undefined(local.n) {
			local.n = 0
		}
		if local.n >= state.lives {
			return {done: true, result: local.n}
		}
		local.n = local.n + 1
		return {value: local.n - 1}
	},
	boom: func(engine, state, local) {
		return {error: "boom"}
	}
}

on_yield := func(engine, state, name, value) {
	state.yielded = append(state.yielded, value)
}

on_complete := func(engine, state, name, result) {
	state.completed = result
}

on_error := func(engine, state, name, message) {
	state.failed = name + ": " + message
}
`

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newHost(t *testing.T) (*script.ManualClock, *scene.Scene, *script.Controller) {
	t.Helper()
	s := scene.New()
	_, err := s.Create("entity1", mgl64.Vec3{})
	require.NoError(t, err)

	clock := script.NewManualClock(epoch)
	return clock, s, script.NewController(
		script.WithClock(clock),
		script.WithLogger(slog.New(slog.DiscardHandler)),
		script.WithObjects(s),
		script.WithTransforms(s),
	)
}

func run(clock *script.ManualClock, c *script.Controller, ticks int, step time.Duration) {
	for range ticks {
		c.Tick(clock.Now())
		clock.Advance(step)
	}
}

func TestCompile(t *testing.T) {
	t.Run("discovers hooks and coroutines", func(t *testing.T) {
		p, err := tengoscript.Compile("counter.tengo", []byte(counterScript))
		require.NoError(t, err)
		assert.Equal(t, "counter.tengo", p.Name())
		assert.Equal(t, []string{"awake", "on_complete", "on_disable", "on_enable", "on_error", "on_yield", "start", "update"}, p.Hooks())
		assert.Equal(t, []string{"boom", "count"}, p.Coroutines())
	})

	t.Run("rejects bad scripts", func(t *testing.T) {
		cases := map[string]string{
			"syntax":         "update := func(engine, state) {",
			"hook not func":  "update := 5",
			"field type":     `fields := {name: "long string"}`,
			"half reference": `fields := {r: {object: "a"}}`,
			"coroutine map":  "coroutines := [1, 2]",
		}
		for name, src := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := tengoscript.Compile(name, []byte(src))
				assert.Error(t, err)
			})
		}
	})

	t.Run("empty script is a valid behaviour", func(t *testing.T) {
		p, err := tengoscript.Compile("empty.tengo", nil)
		require.NoError(t, err)
		assert.Empty(t, p.Hooks())

		clock, s, c := newHost(t)
		obj, _ := s.LookupObject("entity1")
		inst, err := c.Spawn(obj, "empty", p.New())
		require.NoError(t, err)
		run(clock, c, 3, 100*time.Millisecond)
		assert.Equal(t, script.Started, inst.State())
	})
}

func TestBehaviour(t *testing.T) {
	p, err := tengoscript.Compile("counter.tengo", []byte(counterScript))
	require.NoError(t, err)

	t.Run("lifecycle hooks and throttled coroutine", func(t *testing.T) {
		clock, s, c := newHost(t)
		obj, _ := s.LookupObject("entity1")
		b := p.New()
		inst, err := c.Spawn(obj, "counter", b)
		require.NoError(t, err)

		run(clock, c, 45, 100*time.Millisecond)

		state := b.State()
		assert.Equal(t, []any{"awake", "on_enable", "start"}, state["log"])
		assert.Equal(t, []any{0, 1, 2}, state["yielded"])
		assert.Equal(t, 3, state["completed"])
		assert.Empty(t, inst.Coroutines())

		require.NoError(t, c.Disable(inst))
		assert.Equal(t, "on_disable", b.State()["log"].([]any)[3])
	})

	t.Run("fields are slots", func(t *testing.T) {
		clock, s, c := newHost(t)
		obj, _ := s.LookupObject("entity1")
		b := p.New()
		inst, err := c.Register(obj, "counter", b)
		require.NoError(t, err)

		assert.Equal(t, []script.SlotDescriptor{
			{Name: "armed", Kind: script.SlotBool},
			{Name: "glyph", Kind: script.SlotChar},
			{Name: "lives", Kind: script.SlotInt},
			{Name: "speed", Kind: script.SlotFloat},
			{Name: "target", Kind: script.SlotRef},
		}, inst.Slots().Descriptors())
		require.NoError(t, inst.Slots().Set("lives", script.IntValue(1)))

		require.NoError(t, c.Attach(inst))
		require.NoError(t, c.Enable(inst))
		run(clock, c, 15, 100*time.Millisecond)

		assert.Equal(t, []any{0}, b.State()["yielded"])
		assert.Equal(t, 1, b.State()["completed"])
		assert.Equal(t, rune('x'), b.State()["glyph"])
		assert.Equal(t, map[string]any{"object": "entity2", "script": "testing"}, b.State()["target"])
	})

	t.Run("script writes flow back into slots and the transform", func(t *testing.T) {
		clock, s, c := newHost(t)
		obj, _ := s.LookupObject("entity1")
		inst, err := c.Spawn(obj, "counter", p.New())
		require.NoError(t, err)

		run(clock, c, 2, 100*time.Millisecond)

		speed, ok := inst.Slots().Get("speed")
		require.True(t, ok)
		assert.Equal(t, script.FloatValue(4.5), speed)

		got, _ := s.Get(obj)
		assert.Equal(t, 3.5, got.Position.X())
	})

	t.Run("slot source overrides defaults", func(t *testing.T) {
		s := scene.New()
		obj, err := s.Create("entity1", mgl64.Vec3{})
		require.NoError(t, err)

		clock := script.NewManualClock(epoch)
		c := script.NewController(
			script.WithClock(clock),
			script.WithLogger(slog.New(slog.DiscardHandler)),
			script.WithObjects(s),
			script.WithSlotSource(script.StaticSlots{obj: {"counter": {"lives": script.IntValue(0)}}}),
		)
		b := p.New()
		_, err = c.Spawn(obj, "counter", b)
		require.NoError(t, err)
		run(clock, c, 3, 100*time.Millisecond)

		assert.Empty(t, b.State()["yielded"])
		assert.Equal(t, 0, b.State()["completed"])
	})
}

func TestBehaviourFailures(t *testing.T) {
	t.Run("error from awake fails the attach", func(t *testing.T) {
		p, err := tengoscript.Compile("bad.tengo", []byte(`awake := func(engine, state) { return error("nope") }`))
		require.NoError(t, err)

		_, s, c := newHost(t)
		obj, _ := s.LookupObject("entity1")
		inst, err := c.Spawn(obj, "bad", p.New())
		require.ErrorIs(t, err, script.ErrCallbackFailure)
		assert.Contains(t, err.Error(), "nope")
		assert.Equal(t, script.Destroyed, inst.State())
	})

	t.Run("coroutine failure reaches on_error", func(t *testing.T) {
		p, err := tengoscript.Compile("counter.tengo", []byte(counterScript+`
start = func(engine, state) {
	engine.start_coroutine("boom")
}
`))
		require.NoError(t, err)

		clock, s, c := newHost(t)
		obj, _ := s.LookupObject("entity1")
		b := p.New()
		_, err = c.Spawn(obj, "counter", b)
		require.NoError(t, err)
		run(clock, c, 3, 100*time.Millisecond)

		assert.Regexp(t, `^boom: .*failed: boom$`, b.State()["failed"])
	})

	t.Run("unknown coroutine is a script error value", func(t *testing.T) {
		p, err := tengoscript.Compile("missing.tengo", []byte(`
awake := func(engine, state) {
	state.result = is_error(engine.start_coroutine("nowhere"))
}
`))
		require.NoError(t, err)

		_, s, c := newHost(t)
		obj, _ := s.LookupObject("entity1")
		b := p.New()
		_, err = c.Spawn(obj, "missing", b)
		require.NoError(t, err)
		assert.Equal(t, true, b.State()["result"])
	})

	t.Run("destroy from a hook is deferred", func(t *testing.T) {
		p, err := tengoscript.Compile("self.tengo", []byte(`
update := func(engine, state) {
	engine.destroy()
	state.after = engine.find("entity1", "self")
}
`))
		require.NoError(t, err)

		clock, s, c := newHost(t)
		obj, _ := s.LookupObject("entity1")
		b := p.New()
		inst, err := c.Spawn(obj, "self", b)
		require.NoError(t, err)
		run(clock, c, 1, 100*time.Millisecond)

		assert.Equal(t, "Updating", b.State()["after"])
		assert.Equal(t, script.Destroyed, inst.State())
	})
}
