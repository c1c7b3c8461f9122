package scene_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/scripthost/scene"
	"github.com/plus3/scripthost/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testScene = `
objects:
  - name: entity1
    position: [1, 2, 3]
    scripts:
      - name: test
        type: Test
        fields:
          my_bool: true
          my_int: 7
          my_float: 1.5
          my_char: c
          quoted_char: "7"
          other: {object: entity2, script: testing}
  - name: entity2
    inactive: true
    scripts:
      - name: testing
        source: scripts/testing.tengo
        disabled: true
`

func TestParse(t *testing.T) {
	t.Run("decodes field kinds from tags", func(t *testing.T) {
		doc, err := scene.Parse([]byte(testScene))
		require.NoError(t, err)
		require.Len(t, doc.Objects, 2)

		fields := doc.Objects[0].Scripts[0].Fields
		assert.Equal(t, script.BoolValue(true), fields["my_bool"].SlotValue)
		assert.Equal(t, script.IntValue(7), fields["my_int"].SlotValue)
		assert.Equal(t, script.FloatValue(1.5), fields["my_float"].SlotValue)
		assert.Equal(t, script.CharValue('c'), fields["my_char"].SlotValue)
		assert.Equal(t, script.CharValue('7'), fields["quoted_char"].SlotValue)
		assert.Equal(t, script.RefTo("entity2", "testing"), fields["other"].SlotValue)

		second := doc.Objects[1]
		assert.True(t, second.Inactive)
		assert.True(t, second.Scripts[0].Disabled)
		assert.Equal(t, "scripts/testing.tengo", second.Scripts[0].Source)
	})

	t.Run("rejects invalid documents", func(t *testing.T) {
		cases := map[string]string{
			"long string":      "objects: [{name: a, scripts: [{name: s, type: T, fields: {x: hello}}]}]",
			"half reference":   "objects: [{name: a, scripts: [{name: s, type: T, fields: {x: {object: b}}}]}]",
			"list field":       "objects: [{name: a, scripts: [{name: s, type: T, fields: {x: [1, 2]}}]}]",
			"duplicate object": "objects: [{name: a}, {name: a}]",
			"duplicate script": "objects: [{name: a, scripts: [{name: s, type: T}, {name: s, type: T}]}]",
			"type and source":  "objects: [{name: a, scripts: [{name: s, type: T, source: x.lua}]}]",
			"neither":          "objects: [{name: a, scripts: [{name: s}]}]",
			"short position":   "objects: [{name: a, position: [1, 2]}]",
			"unnamed":          "objects: [{position: [1, 2, 3]}]",
		}
		for name, doc := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := scene.Parse([]byte(doc))
				assert.Error(t, err)
			})
		}
	})

	t.Run("fields round trip", func(t *testing.T) {
		spec := scene.ScriptSpec{Name: "s", Type: "T", Fields: map[string]scene.FieldValue{
			"c": {SlotValue: script.CharValue('q')},
			"r": {SlotValue: script.RefTo("o", "s")},
			"f": {SlotValue: script.FloatValue(2.25)},
		}}
		out, err := yaml.Marshal(spec)
		require.NoError(t, err)

		var back scene.ScriptSpec
		require.NoError(t, yaml.Unmarshal(out, &back))
		assert.Equal(t, spec, back)
	})
}

func TestBuild(t *testing.T) {
	doc, err := scene.Parse([]byte(testScene))
	require.NoError(t, err)

	s := scene.New()
	slots, err := doc.Build(s)
	require.NoError(t, err)

	e1, ok := s.LookupObject("entity1")
	require.True(t, ok)
	e2, ok := s.LookupObject("entity2")
	require.True(t, ok)

	obj, _ := s.Get(e1)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, obj.Position)
	assert.False(t, s.Active(e2))

	values, err := slots.LoadSlots(e1, "test")
	require.NoError(t, err)
	assert.Equal(t, script.IntValue(7), values["my_int"])

	values, err = slots.LoadSlots(e2, "testing")
	require.NoError(t, err)
	assert.Empty(t, values)

	_, err = doc.Build(s)
	assert.ErrorIs(t, err, scene.ErrDuplicateObject)
}
