package tengoscript

import (
	"log/slog"
	"strings"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/scripthost/script"
)

type engineFunc func(args ...tengo.Object) (tengo.Object, error)

// newEngine builds the engine map handed to every hook of b.
func newEngine(b *Behaviour) *tengo.ImmutableMap {
	ctx := b.ctx
	values := map[string]tengo.Object{}
	add := func(name string, fn engineFunc) {
		values[name] = &tengo.UserFunction{Name: name, Value: fn}
	}

	add("log", func(args ...tengo.Object) (tengo.Object, error) {
		ctx.Log(slog.LevelInfo, joinArgs(args))
		return tengo.UndefinedValue, nil
	})
	add("warn", func(args ...tengo.Object) (tengo.Object, error) {
		ctx.Log(slog.LevelWarn, joinArgs(args))
		return tengo.UndefinedValue, nil
	})
	add("name", func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.String{Value: ctx.Self().String()}, nil
	})

	add("position", func(args ...tengo.Object) (tengo.Object, error) {
		var p mgl64.Vec3
		if tr, ok := ctx.Transform(); ok {
			p = tr.Position()
		}
		return &tengo.Array{Value: []tengo.Object{
			&tengo.Float{Value: p.X()}, &tengo.Float{Value: p.Y()}, &tengo.Float{Value: p.Z()},
		}}, nil
	})
	add("set_position", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 3 {
			return nil, tengo.ErrWrongNumArguments
		}
		var p mgl64.Vec3
		for i, arg := range args {
			v, ok := tengo.ToFloat64(arg)
			if !ok {
				return nil, tengo.ErrInvalidArgumentType{Name: "coordinate", Expected: "float", Found: arg.TypeName()}
			}
			p[i] = v
		}
		tr, ok := ctx.Transform()
		if !ok {
			return tengo.FalseValue, nil
		}
		tr.SetPosition(p)
		return tengo.TrueValue, nil
	})
	add("set_axis", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 2 {
			return nil, tengo.ErrWrongNumArguments
		}
		axis, err := script.ParseAxis(objectAsString(args[0]))
		if err != nil {
			return nil, err
		}
		v, ok := tengo.ToFloat64(args[1])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "value", Expected: "float", Found: args[1].TypeName()}
		}
		tr, ok := ctx.Transform()
		if !ok {
			return tengo.FalseValue, nil
		}
		tr.SetPositionAxis(axis, v)
		return tengo.TrueValue, nil
	})

	add("start_coroutine", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, tengo.ErrWrongNumArguments
		}
		var interval time.Duration
		if len(args) == 2 {
			ms, ok := tengo.ToInt64(args[1])
			if !ok {
				return nil, tengo.ErrInvalidArgumentType{Name: "interval_ms", Expected: "int", Found: args[1].TypeName()}
			}
			interval = time.Duration(ms) * time.Millisecond
		}
		h, err := b.startCoroutine(objectAsString(args[0]), interval)
		if err != nil {
			return &tengo.Error{Value: &tengo.String{Value: err.Error()}}, nil
		}
		return &tengo.Int{Value: int64(h)}, nil
	})
	add("stop_coroutine", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		h, ok := tengo.ToInt64(args[0])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "handle", Expected: "int", Found: args[0].TypeName()}
		}
		b.forget(script.Handle(h))
		return boolObject(ctx.Controller().Scheduler().Cancel(script.Handle(h))), nil
	})
	add("stop_all_coroutines", func(args ...tengo.Object) (tengo.Object, error) {
		clear(b.handles)
		return &tengo.Int{Value: int64(ctx.StopAllCoroutines())}, nil
	})
	add("active_coroutines", func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.Int{Value: int64(ctx.ActiveCoroutines())}, nil
	})

	lifecycle := func(name string, op func() error) {
		add(name, func(args ...tengo.Object) (tengo.Object, error) {
			if err := op(); err != nil {
				return &tengo.Error{Value: &tengo.String{Value: err.Error()}}, nil
			}
			return tengo.TrueValue, nil
		})
	}
	lifecycle("enable", ctx.Enable)
	lifecycle("disable", ctx.Disable)
	lifecycle("toggle", ctx.Toggle)
	lifecycle("destroy", ctx.Destroy)

	add("find", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 2 {
			return nil, tengo.ErrWrongNumArguments
		}
		inst, ok := ctx.Find(objectAsString(args[0]), objectAsString(args[1])).Resolve()
		if !ok {
			return tengo.UndefinedValue, nil
		}
		return &tengo.String{Value: inst.State().String()}, nil
	})

	add("delta_time", func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.Float{Value: ctx.DeltaTime().Seconds()}, nil
	})
	add("now_ms", func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.Int{Value: ctx.Now().UnixMilli()}, nil
	})
	add("frame", func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.Int{Value: int64(ctx.Frame().Index)}, nil
	})

	return &tengo.ImmutableMap{Value: values}
}

func joinArgs(args []tengo.Object) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = objectAsString(arg)
	}
	return strings.Join(parts, " ")
}

func boolObject(v bool) tengo.Object {
	if v {
		return tengo.TrueValue
	}
	return tengo.FalseValue
}
