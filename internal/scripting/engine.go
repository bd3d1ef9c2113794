package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cassieroh/bulkcalc/internal/game/calc"
)

// adjustHook is the Lua global an override script defines to post-process
// damage rolls. Signature on the Lua side:
//
//	function adjust_rolls(attack) -> table of rolls | nil
//
// Returning nil keeps the builtin rolls.
const adjustHook = "adjust_rolls"

// Engine owns one sandboxed LState loaded from a script directory.
//
// The LState is single-threaded; the mutex serializes hook calls. One Engine
// may back many jobs since hook evaluation is pure with respect to its
// arguments. Each hook invocation runs under a fresh opcode budget; the
// instruction limit is per call, never cumulative across the state's lifetime.
type Engine struct {
	mu     sync.Mutex
	state  *lua.LState
	cancel func()
	limit  int
	logger *zap.Logger
}

// NewEngine creates a sandboxed VM, registers the engine.* module, then
// executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: scriptDir must be a readable directory; logger non-nil.
// Postcondition: Returns a ready Engine, or an error on Lua load failure.
func NewEngine(scriptDir string, instLimit int, logger *zap.Logger) (*Engine, error) {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	L, cancel := NewSandboxedState(instLimit)
	RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		cancel()
		L.Close()
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return nil, fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	logger.Debug("override scripts loaded",
		zap.String("dir", scriptDir),
		zap.Int("files", len(luaFiles)),
	)
	return &Engine{state: L, cancel: cancel, limit: instLimit, logger: logger}, nil
}

// Close releases the VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != nil {
		e.cancel()
		e.state.Close()
		e.state = nil
	}
}

// HasHook reports whether the loaded scripts define the roll-adjustment hook.
func (e *Engine) HasHook() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != nil && e.state.GetGlobal(adjustHook) != lua.LNil
}

// adjust invokes the Lua hook over the computed result. A nil return from
// Lua keeps the builtin rolls; a table replaces them. Lua runtime errors
// propagate: a script failure must fail the job rather than silently skew
// the aggregates.
func (e *Engine) adjust(req calc.Request, res *calc.Result) (*calc.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return res, nil
	}
	L := e.state
	fn := L.GetGlobal(adjustHook)
	if fn == lua.LNil {
		return res, nil
	}

	// Renew the opcode budget for this invocation. The counting context is
	// consumed as the VM runs; reusing one across calls would exhaust it after
	// enough invocations and cancel every call that follows.
	e.cancel()
	ctx, cancel := newCountingContext(e.limit)
	e.cancel = cancel
	L.SetContext(ctx)

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, attackTable(L, req, res)); err != nil {
		return nil, fmt.Errorf("scripting: %s: %w", adjustHook, err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	switch v := ret.(type) {
	case *lua.LNilType:
		return res, nil
	case *lua.LTable:
		rolls, err := rollsFromTable(v)
		if err != nil {
			return nil, err
		}
		out := *res
		out.Rolls = rolls
		return &out, nil
	default:
		return nil, fmt.Errorf("scripting: %s returned %s, want table or nil", adjustHook, ret.Type())
	}
}

// attackTable flattens the request and builtin result into the Lua argument.
func attackTable(L *lua.LState, req calc.Request, res *calc.Result) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("move", lua.LString(req.Move.Name))
	t.RawSetString("move_type", lua.LString(res.MoveType))
	t.RawSetString("category", lua.LString(string(res.Category)))
	t.RawSetString("crit", lua.LBool(req.Move.Crit))
	t.RawSetString("weather", lua.LString(req.Field.Weather))
	t.RawSetString("terrain", lua.LString(req.Field.Terrain))
	t.RawSetString("attacker", combatantTable(L, req, true))
	t.RawSetString("defender", combatantTable(L, req, false))

	rolls := L.NewTable()
	for _, r := range res.Rolls {
		rolls.Append(lua.LNumber(r))
	}
	t.RawSetString("rolls", rolls)
	return t
}

func combatantTable(L *lua.LState, req calc.Request, attacker bool) *lua.LTable {
	c := req.Defender
	if attacker {
		c = req.Attacker
	}
	t := L.NewTable()
	t.RawSetString("species", lua.LString(c.Species))
	t.RawSetString("level", lua.LNumber(c.Level))
	t.RawSetString("ability", lua.LString(c.Ability))
	t.RawSetString("item", lua.LString(c.Item))
	t.RawSetString("status", lua.LString(c.Status))
	t.RawSetString("tera_active", lua.LBool(c.TeraActive))
	t.RawSetString("tera_type", lua.LString(c.TeraType))
	return t
}

// rollsFromTable converts the hook's return value back into damage rolls.
func rollsFromTable(t *lua.LTable) ([]int, error) {
	n := t.Len()
	if n == 0 {
		return nil, fmt.Errorf("scripting: %s returned an empty roll table", adjustHook)
	}
	rolls := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		v := t.RawGetInt(i)
		num, ok := v.(lua.LNumber)
		if !ok {
			return nil, fmt.Errorf("scripting: roll %d is %s, want number", i, v.Type())
		}
		r := int(num)
		if r < 0 {
			return nil, fmt.Errorf("scripting: roll %d is negative: %d", i, r)
		}
		rolls = append(rolls, r)
	}
	sort.Ints(rolls)
	return rolls, nil
}

// Override wraps a Calculator, passing its output through the Lua hook.
// It satisfies calc.Calculator and stays pure as long as the hook is.
type Override struct {
	inner  calc.Calculator
	engine *Engine
}

// NewOverride wires the engine behind inner.
//
// Precondition: inner and engine must be non-nil.
func NewOverride(inner calc.Calculator, engine *Engine) *Override {
	return &Override{inner: inner, engine: engine}
}

// Compute runs the builtin computation, then the Lua adjustment.
func (o *Override) Compute(req calc.Request) (*calc.Result, error) {
	res, err := o.inner.Compute(req)
	if err != nil {
		return nil, err
	}
	return o.engine.adjust(req, res)
}
