package script_test

import (
	"errors"
	"testing"

	"github.com/plus3/scripthost/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type configured struct {
	Speed   float64
	Damping float32
	Lives   int
	Active  bool
	Glyph   rune
	Target  script.ScriptRef

	speedInAwake float64
}

func (c *configured) Slots(t *script.SlotTable) {
	t.Float("speed", &c.Speed)
	t.Float32("damping", &c.Damping)
	t.Int("lives", &c.Lives)
	t.Bool("active", &c.Active)
	t.Char("glyph", &c.Glyph)
	t.Ref("target", &c.Target)
}

func (c *configured) Awake(*script.Context) error {
	c.speedInAwake = c.Speed
	return nil
}

type memorySlots struct {
	script.StaticSlots
	saved map[string]map[string]script.SlotValue
}

func (m *memorySlots) SaveSlots(_ script.ObjectID, name string, values map[string]script.SlotValue) error {
	m.saved[name] = values
	return nil
}

func TestSlotTable(t *testing.T) {
	t.Run("set and get by kind", func(t *testing.T) {
		b := &configured{}
		table := script.NewSlotTable()
		b.Slots(table)

		require.NoError(t, table.Set("speed", script.FloatValue(2.5)))
		require.NoError(t, table.Set("lives", script.IntValue(3)))
		require.NoError(t, table.Set("active", script.BoolValue(true)))
		require.NoError(t, table.Set("glyph", script.CharValue('x')))

		assert.Equal(t, 2.5, b.Speed)
		assert.Equal(t, 3, b.Lives)
		assert.True(t, b.Active)
		assert.Equal(t, 'x', b.Glyph)

		v, ok := table.Get("lives")
		require.True(t, ok)
		assert.Equal(t, script.IntValue(3), v)

		_, ok = table.Get("missing")
		assert.False(t, ok)
	})

	t.Run("numeric coercion", func(t *testing.T) {
		b := &configured{}
		table := script.NewSlotTable()
		b.Slots(table)

		require.NoError(t, table.Set("speed", script.IntValue(4)))
		assert.Equal(t, 4.0, b.Speed)

		require.NoError(t, table.Set("damping", script.IntValue(1)))
		assert.Equal(t, float32(1), b.Damping)

		require.NoError(t, table.Set("lives", script.FloatValue(7)))
		assert.Equal(t, 7, b.Lives)

		err := table.Set("lives", script.FloatValue(7.5))
		assert.ErrorIs(t, err, script.ErrSlotKind)
	})

	t.Run("kind mismatches are rejected", func(t *testing.T) {
		b := &configured{}
		table := script.NewSlotTable()
		b.Slots(table)

		assert.ErrorIs(t, table.Set("active", script.IntValue(1)), script.ErrSlotKind)
		assert.ErrorIs(t, table.Set("glyph", script.IntValue(65)), script.ErrSlotKind)
		assert.ErrorIs(t, table.Set("target", script.BoolValue(true)), script.ErrSlotKind)
		assert.ErrorIs(t, table.Set("nope", script.BoolValue(true)), script.ErrUnknownSlot)
	})

	t.Run("descriptors keep declaration order", func(t *testing.T) {
		table := script.NewSlotTable()
		(&configured{}).Slots(table)

		assert.Equal(t, []script.SlotDescriptor{
			{Name: "speed", Kind: script.SlotFloat},
			{Name: "damping", Kind: script.SlotFloat},
			{Name: "lives", Kind: script.SlotInt},
			{Name: "active", Kind: script.SlotBool},
			{Name: "glyph", Kind: script.SlotChar},
			{Name: "target", Kind: script.SlotRef},
		}, table.Descriptors())
	})

	t.Run("apply joins every error", func(t *testing.T) {
		table := script.NewSlotTable()
		(&configured{}).Slots(table)

		err := table.Apply(map[string]script.SlotValue{
			"speed":  script.FloatValue(1),
			"active": script.CharValue('y'),
			"ghost":  script.IntValue(1),
		})
		assert.ErrorIs(t, err, script.ErrSlotKind)
		assert.ErrorIs(t, err, script.ErrUnknownSlot)
	})

	t.Run("value slots keep their declared kind", func(t *testing.T) {
		lives := script.IntValue(3)
		speed := script.FloatValue(1)
		target := script.RefTo("Lamp", "blink")

		table := script.NewSlotTable()
		table.Value("lives", &lives)
		table.Value("speed", &speed)
		table.Value("target", &target)

		require.NoError(t, table.Set("lives", script.FloatValue(4)))
		assert.Equal(t, script.IntValue(4), lives)
		assert.ErrorIs(t, table.Set("lives", script.FloatValue(4.5)), script.ErrSlotKind)

		require.NoError(t, table.Set("speed", script.IntValue(2)))
		assert.Equal(t, script.FloatValue(2), speed)
		assert.ErrorIs(t, table.Set("speed", script.BoolValue(true)), script.ErrSlotKind)

		require.NoError(t, table.Set("target", script.RefTo("Door", "open")))
		got, ok := table.Get("target")
		require.True(t, ok)
		assert.Equal(t, script.SlotRef, got.Kind)
		assert.Equal(t, "Door", got.Ref.Object)
	})
}

func TestControllerSlots(t *testing.T) {
	t.Run("values load before awake and refs resolve", func(t *testing.T) {
		source := script.StaticSlots{
			1: {"mover": {
				"speed":  script.FloatValue(9),
				"target": script.RefTo("enemy", "ai"),
			}},
		}
		_, c := newTestController(
			script.WithObjects(testObjects{"player": 1, "enemy": 2}),
			script.WithSlotSource(source),
		)
		_, err := c.Spawn(2, "ai", &idle{})
		require.NoError(t, err)

		b := &configured{}
		inst, err := c.Spawn(1, "mover", b)
		require.NoError(t, err)

		assert.Equal(t, 9.0, b.speedInAwake)
		target, ok := b.Target.Resolve()
		require.True(t, ok)
		assert.Equal(t, "ai", target.Name())

		v, ok := inst.Slots().Get("target")
		require.True(t, ok)
		assert.Equal(t, script.RefTo("enemy", "ai"), v)
	})

	t.Run("bad values are skipped", func(t *testing.T) {
		source := script.StaticSlots{1: {"mover": {
			"speed": script.BoolValue(true),
			"lives": script.IntValue(2),
		}}}
		_, c := newTestController(script.WithSlotSource(source))

		b := &configured{Speed: 1}
		_, err := c.Spawn(1, "mover", b)
		require.NoError(t, err)
		assert.Equal(t, 1.0, b.Speed)
		assert.Equal(t, 2, b.Lives)
	})

	t.Run("values are saved on destroy", func(t *testing.T) {
		store := &memorySlots{StaticSlots: script.StaticSlots{}, saved: map[string]map[string]script.SlotValue{}}
		_, c := newTestController(script.WithSlotSource(store))

		b := &configured{}
		inst, err := c.Spawn(1, "mover", b)
		require.NoError(t, err)
		b.Lives = 5

		require.NoError(t, c.Destroy(inst))
		require.Contains(t, store.saved, "mover")
		assert.Equal(t, script.IntValue(5), store.saved["mover"]["lives"])
	})
}

func TestRegistry(t *testing.T) {
	registry := script.NewRegistry()
	script.RegisterBehaviour[configured](registry, "configured")
	registry.Register("idle", func() script.Behaviour { return &idle{} })

	assert.Equal(t, []string{"configured", "idle"}, registry.Names())
	assert.True(t, registry.Has("idle"))

	b, err := registry.New("configured")
	require.NoError(t, err)
	assert.IsType(t, &configured{}, b)

	other, err := registry.New("configured")
	require.NoError(t, err)
	assert.NotSame(t, b, other)

	_, err = registry.New("missing")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, script.ErrSlotKind))
}
