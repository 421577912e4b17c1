package eval

import (
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ExpressionError wraps a failure to parse or evaluate a condition
// expression, carrying the offending source text.
type ExpressionError struct {
	Expression string
	Err        error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("expression %q: %v", e.Expression, e.Err)
}

func (e *ExpressionError) Unwrap() error { return e.Err }

// EvalExpr evaluates a Lua expression against the context's three
// bindings (input, steps, state) and coerces the result by Lua
// truthiness: nil and false are false, everything else true.
//
// Each call runs in a fresh interpreter with no code loading, no I/O,
// and no nondeterministic functions. The steps binding resolves step
// outputs on demand.
func EvalExpr(expr string, ctx Context) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return false, &ExpressionError{Expression: expr, Err: errors.New("empty expression")}
	}

	L := newSandbox()
	defer L.Close()

	L.SetGlobal("input", toLua(L, ctx.Input))
	L.SetGlobal("steps", stepsTable(L, ctx.Steps))
	L.SetGlobal("state", toLua(L, ctx.State))

	if err := L.DoString("return " + expr); err != nil {
		return false, &ExpressionError{Expression: expr, Err: err}
	}

	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}

// newSandbox builds a Lua state with only the base, table, string, and
// math libraries, minus code loading and nondeterministic functions.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("print", lua.LNil)

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		L.SetField(tbl, "random", lua.LNil)
		L.SetField(tbl, "randomseed", lua.LNil)
	}

	return L
}

// stepsTable exposes the steps namespace as a lazy table: indexing by
// step id materializes {output = <result>} for that id only.
func stepsTable(L *lua.LState, src StepSource) lua.LValue {
	tbl := L.NewTable()
	if src == nil {
		return tbl
	}

	mt := L.NewTable()
	mt.RawSetString("__index", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(2)
		entry := L.NewTable()
		if out, ok := src.StepOutput(id); ok {
			entry.RawSetString("output", toLua(L, out))
		}
		L.Push(entry)
		return 1
	}))
	L.SetMetatable(tbl, mt)
	return tbl
}

func toLua(L *lua.LState, v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(t)
	case string:
		return lua.LString(t)
	}
	if f, ok := numeric(v); ok {
		return lua.LNumber(f)
	}
	if items, ok := asSlice(v); ok {
		tbl := L.NewTable()
		for i, item := range items {
			tbl.RawSetInt(i+1, toLua(L, item))
		}
		return tbl
	}
	if m, ok := asMap(v); ok {
		tbl := L.NewTable()
		for k, val := range m {
			tbl.RawSetString(k, toLua(L, val))
		}
		return tbl
	}
	// Unconvertible host values are invisible to expressions.
	return lua.LNil
}
