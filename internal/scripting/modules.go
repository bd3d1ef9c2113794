package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cassieroh/bulkcalc/internal/game/calc"
	"github.com/cassieroh/bulkcalc/internal/game/stats"
)

// RegisterModules installs the engine.* helper module into L. Scripts use it
// for the game arithmetic they would otherwise have to reimplement:
//
//	engine.effectiveness(move_type, def_type1 [, def_type2]) -> number
//	engine.boost(stage) -> number
func RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"effectiveness": luaEffectiveness,
		"boost":         luaBoost,
	})
	L.SetGlobal("engine", mod)
}

func luaEffectiveness(L *lua.LState) int {
	moveType := L.CheckString(1)
	types := make([]string, 0, 2)
	for i := 2; i <= L.GetTop(); i++ {
		types = append(types, L.CheckString(i))
	}
	L.Push(lua.LNumber(calc.Effectiveness(moveType, types)))
	return 1
}

func luaBoost(L *lua.LState) int {
	stage := L.CheckInt(1)
	L.Push(lua.LNumber(stats.BoostMultiplier(stage)))
	return 1
}
