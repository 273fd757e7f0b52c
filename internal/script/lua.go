package script

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// LuaHost is a Host backed by a single gopher-lua VM. Lua states are not
// goroutine-safe, so the pipeline keeps one LuaHost per FileContext; the
// mutex here guards against a future caller that doesn't honor that
// invariant.
type LuaHost struct {
	mu   sync.Mutex
	L    *lua.LState
	kind Kind
}

// NewLuaHost loads scriptPath and returns a Host that dispatches to the
// global function named by kind ("transform", "grep", or "aggregate").
func NewLuaHost(scriptPath string, kind Kind) (*LuaHost, error) {
	L := lua.NewState()
	if err := L.DoFile(scriptPath); err != nil {
		L.Close()
		return nil, fmt.Errorf("script: load %s: %w", scriptPath, err)
	}
	fn := L.GetGlobal(string(kind))
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("script: %s defines no global function %q", scriptPath, kind)
	}
	return &LuaHost{L: L, kind: kind}, nil
}

func (h *LuaHost) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.L.Close()
}

func (h *LuaHost) EvaluateLine(kind Kind, fields []string) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fn := h.L.GetGlobal(string(kind))
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("script: no global function %q", kind)
	}

	arg := toLuaArg(h.L, kind, fields)
	if err := h.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, arg); err != nil {
		return nil, fmt.Errorf("script: %s callback error: %w", kind, err)
	}
	ret := h.L.Get(-1)
	h.L.Pop(1)

	if ret == lua.LNil {
		return nil, nil
	}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("script: %s callback returned non-table, non-nil value", kind)
	}
	out := make([]string, 0, tbl.Len())
	tbl.ForEach(func(_, v lua.LValue) {
		out = append(out, lua.LVAsString(v))
	})
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (h *LuaHost) EvaluateAggregate(fields []string) (AggregateResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fn := h.L.GetGlobal(string(KindAggregate))
	if fn.Type() != lua.LTFunction {
		return AggregateResult{}, fmt.Errorf("script: no global function %q", KindAggregate)
	}

	arg := toLuaArg(h.L, KindAggregate, fields)
	if err := h.L.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true}, arg); err != nil {
		return AggregateResult{}, fmt.Errorf("script: aggregate callback error: %w", err)
	}
	deltaVal := h.L.Get(-1)
	keyVal := h.L.Get(-2)
	h.L.Pop(2)

	primaryKey, ok := keyVal.(lua.LString)
	if !ok {
		return AggregateResult{}, fmt.Errorf("script: aggregate callback: primary key is not a string")
	}

	deltas := make(map[string]int64)
	if deltaTbl, ok := deltaVal.(*lua.LTable); ok {
		var rangeErr error
		deltaTbl.ForEach(func(k, v lua.LValue) {
			ks, ok := k.(lua.LString)
			if !ok {
				rangeErr = fmt.Errorf("script: aggregate delta key is not a string")
				return
			}
			n, ok := v.(lua.LNumber)
			if !ok {
				rangeErr = fmt.Errorf("script: aggregate delta for %q is not a number", ks)
				return
			}
			deltas[string(ks)] = int64(n)
		})
		if rangeErr != nil {
			return AggregateResult{}, rangeErr
		}
	}

	return AggregateResult{PrimaryKey: string(primaryKey), Deltas: deltas}, nil
}

func toLuaArg(L *lua.LState, kind Kind, fields []string) lua.LValue {
	if kind == KindTransform {
		if len(fields) == 0 {
			return lua.LString("")
		}
		return lua.LString(fields[0])
	}
	tbl := L.NewTable()
	for _, f := range fields {
		tbl.Append(lua.LString(f))
	}
	return tbl
}
