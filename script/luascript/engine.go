package luascript

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Shopify/go-lua"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/scripthost/script"
)

// engineFunctions returns the functions of the engine table handed to b's
// hooks.
func engineFunctions(b *Behaviour) []lua.RegistryFunction {
	ctx := b.ctx
	lifecycle := func(op func() error) lua.Function {
		return func(l *lua.State) int {
			if err := op(); err != nil {
				l.PushNil()
				l.PushString(err.Error())
				return 2
			}
			l.PushBoolean(true)
			return 1
		}
	}

	return []lua.RegistryFunction{
		{Name: "log", Function: func(l *lua.State) int {
			ctx.Log(slog.LevelInfo, joinArgs(l))
			return 0
		}},
		{Name: "warn", Function: func(l *lua.State) int {
			ctx.Log(slog.LevelWarn, joinArgs(l))
			return 0
		}},
		{Name: "name", Function: func(l *lua.State) int {
			l.PushString(ctx.Self().String())
			return 1
		}},

		{Name: "position", Function: func(l *lua.State) int {
			var p mgl64.Vec3
			if tr, ok := ctx.Transform(); ok {
				p = tr.Position()
			}
			l.PushNumber(p.X())
			l.PushNumber(p.Y())
			l.PushNumber(p.Z())
			return 3
		}},
		{Name: "set_position", Function: func(l *lua.State) int {
			p := mgl64.Vec3{lua.CheckNumber(l, 1), lua.CheckNumber(l, 2), lua.CheckNumber(l, 3)}
			tr, ok := ctx.Transform()
			if ok {
				tr.SetPosition(p)
			}
			l.PushBoolean(ok)
			return 1
		}},
		{Name: "set_axis", Function: func(l *lua.State) int {
			axis, err := script.ParseAxis(lua.CheckString(l, 1))
			if err != nil {
				lua.ArgumentError(l, 1, err.Error())
			}
			v := lua.CheckNumber(l, 2)
			tr, ok := ctx.Transform()
			if ok {
				tr.SetPositionAxis(axis, v)
			}
			l.PushBoolean(ok)
			return 1
		}},

		{Name: "start_coroutine", Function: func(l *lua.State) int {
			name := lua.CheckString(l, 1)
			ms := lua.OptInteger(l, 2, 0)
			h, err := b.startCoroutine(name, time.Duration(ms)*time.Millisecond)
			if err != nil {
				l.PushNil()
				l.PushString(err.Error())
				return 2
			}
			l.PushInteger(int(h))
			return 1
		}},
		{Name: "stop_coroutine", Function: func(l *lua.State) int {
			h := script.Handle(lua.CheckInteger(l, 1))
			b.forget(h)
			l.PushBoolean(ctx.Controller().Scheduler().Cancel(h))
			return 1
		}},
		{Name: "stop_all_coroutines", Function: func(l *lua.State) int {
			clear(b.handles)
			l.PushInteger(ctx.StopAllCoroutines())
			return 1
		}},
		{Name: "active_coroutines", Function: func(l *lua.State) int {
			l.PushInteger(ctx.ActiveCoroutines())
			return 1
		}},

		{Name: "enable", Function: lifecycle(ctx.Enable)},
		{Name: "disable", Function: lifecycle(ctx.Disable)},
		{Name: "toggle", Function: lifecycle(ctx.Toggle)},
		{Name: "destroy", Function: lifecycle(ctx.Destroy)},

		{Name: "find", Function: func(l *lua.State) int {
			inst, ok := ctx.Find(lua.CheckString(l, 1), lua.CheckString(l, 2)).Resolve()
			if !ok {
				l.PushNil()
				return 1
			}
			l.PushString(inst.State().String())
			return 1
		}},

		{Name: "delta_time", Function: func(l *lua.State) int {
			l.PushNumber(ctx.DeltaTime().Seconds())
			return 1
		}},
		{Name: "now_ms", Function: func(l *lua.State) int {
			l.PushNumber(float64(ctx.Now().UnixMilli()))
			return 1
		}},
		{Name: "frame", Function: func(l *lua.State) int {
			l.PushNumber(float64(ctx.Frame().Index))
			return 1
		}},
	}
}

func joinArgs(l *lua.State) string {
	parts := make([]string, l.Top())
	for i := range parts {
		parts[i] = fmt.Sprint(luaToGo(l, i+1))
	}
	return strings.Join(parts, " ")
}
