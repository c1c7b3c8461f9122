package scene

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/scripthost/script"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk description of a scene.
type Document struct {
	Objects []ObjectSpec `yaml:"objects"`
}

// ObjectSpec describes one object and the scripts attached to it.
type ObjectSpec struct {
	Name     string       `yaml:"name"`
	Position []float64    `yaml:"position,omitempty"`
	Inactive bool         `yaml:"inactive,omitempty"`
	Scripts  []ScriptSpec `yaml:"scripts,omitempty"`
}

// ScriptSpec attaches one behaviour to an object. Exactly one of Type (a
// registered Go behaviour) or Source (a script file) must be set.
type ScriptSpec struct {
	Name     string                `yaml:"name"`
	Type     string                `yaml:"type,omitempty"`
	Source   string                `yaml:"source,omitempty"`
	Disabled bool                  `yaml:"disabled,omitempty"`
	Fields   map[string]FieldValue `yaml:"fields,omitempty"`
}

// FieldValue is a slot value decoded from YAML. The kind follows the YAML
// tag: booleans, integers and floats map directly, a one-character string
// becomes a char and an {object, script} mapping becomes a reference.
type FieldValue struct {
	script.SlotValue
}

func (f *FieldValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return err
			}
			f.SlotValue = script.BoolValue(b)
		case "!!int":
			var i int64
			if err := node.Decode(&i); err != nil {
				return err
			}
			f.SlotValue = script.IntValue(i)
		case "!!float":
			var v float64
			if err := node.Decode(&v); err != nil {
				return err
			}
			f.SlotValue = script.FloatValue(v)
		case "!!str":
			if utf8.RuneCountInString(node.Value) != 1 {
				return fmt.Errorf("line %d: string field must be a single character, got %q", node.Line, node.Value)
			}
			r, _ := utf8.DecodeRuneInString(node.Value)
			f.SlotValue = script.CharValue(r)
		default:
			return fmt.Errorf("line %d: unsupported field type %s", node.Line, node.ShortTag())
		}
		return nil

	case yaml.MappingNode:
		var ref struct {
			Object string `yaml:"object"`
			Script string `yaml:"script"`
		}
		if err := node.Decode(&ref); err != nil {
			return err
		}
		if ref.Object == "" || ref.Script == "" {
			return fmt.Errorf("line %d: reference needs both object and script", node.Line)
		}
		f.SlotValue = script.RefTo(ref.Object, ref.Script)
		return nil

	default:
		return fmt.Errorf("line %d: field must be a scalar or a reference mapping", node.Line)
	}
}

func (f FieldValue) MarshalYAML() (any, error) {
	switch f.Kind {
	case script.SlotChar:
		return string(f.Char), nil
	case script.SlotRef:
		return map[string]string{"object": f.Ref.Object, "script": f.Ref.Script}, nil
	default:
		return f.Any(), nil
	}
}

// Parse decodes and validates a scene document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("scene: parse: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads and parses the scene document at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: read %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks names and script definitions.
func (d *Document) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(d.Objects))
	for i, obj := range d.Objects {
		if obj.Name == "" {
			errs = append(errs, fmt.Errorf("scene: object %d has no name", i))
			continue
		}
		if seen[obj.Name] {
			errs = append(errs, fmt.Errorf("scene: object %q: %w", obj.Name, ErrDuplicateObject))
		}
		seen[obj.Name] = true

		if n := len(obj.Position); n != 0 && n != 3 {
			errs = append(errs, fmt.Errorf("scene: object %q: position needs 3 components, got %d", obj.Name, n))
		}

		scripts := make(map[string]bool, len(obj.Scripts))
		for _, sc := range obj.Scripts {
			switch {
			case sc.Name == "":
				errs = append(errs, fmt.Errorf("scene: object %q: script without a name", obj.Name))
			case scripts[sc.Name]:
				errs = append(errs, fmt.Errorf("scene: object %q: script %q: %w", obj.Name, sc.Name, script.ErrDuplicateInstance))
			case (sc.Type == "") == (sc.Source == ""):
				errs = append(errs, fmt.Errorf("scene: object %q: script %q needs exactly one of type or source", obj.Name, sc.Name))
			}
			scripts[sc.Name] = true
		}
	}
	return errors.Join(errs...)
}

// Build creates every object of the document in s and returns the slot
// values keyed by the new object IDs.
func (d *Document) Build(s *Scene) (script.StaticSlots, error) {
	slots := make(script.StaticSlots)
	for _, obj := range d.Objects {
		var pos mgl64.Vec3
		copy(pos[:], obj.Position)

		id, err := s.Create(obj.Name, pos)
		if err != nil {
			return nil, err
		}
		if obj.Inactive {
			if err := s.SetActive(id, false); err != nil {
				return nil, err
			}
		}

		for _, sc := range obj.Scripts {
			if len(sc.Fields) == 0 {
				continue
			}
			if slots[id] == nil {
				slots[id] = make(map[string]map[string]script.SlotValue)
			}
			values := make(map[string]script.SlotValue, len(sc.Fields))
			for name, f := range sc.Fields {
				values[name] = f.SlotValue
			}
			slots[id][sc.Name] = values
		}
	}
	return slots, nil
}

// Object returns the ObjectSpec named name.
func (d *Document) Object(name string) (ObjectSpec, bool) {
	for _, obj := range d.Objects {
		if obj.Name == name {
			return obj, true
		}
	}
	return ObjectSpec{}, false
}
