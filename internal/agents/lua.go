package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"puppet-arena/server/internal/world"
)

// LuaAgent runs a user supplied script in a sandboxed VM. The script must
// define decide(view) returning an action table such as
//
//	{type = "move", dx = 1, dy = 0}
//	{type = "attack", target = "p2"}
//	{type = "talk", message = "hello"}
//
// and may define observe(view), called on view updates. observe runs under
// its own deadline since UpdateView carries no context.
type LuaAgent struct {
	mu             sync.Mutex
	L              *lua.LState
	decide         *lua.LFunction
	observeTimeout time.Duration
}

// DefaultObserveTimeout bounds one observe(view) call.
const DefaultObserveTimeout = time.Second

var errNoDecide = errors.New("script does not define decide(view)")

func NewLuaAgent(script string) (*LuaAgent, error) {
	if strings.TrimSpace(script) == "" {
		return nil, errors.New("lua agent requires a script")
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)
	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("executing script: %w", err)
	}
	fn, ok := L.GetGlobal("decide").(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, errNoDecide
	}
	return &LuaAgent{L: L, decide: fn, observeTimeout: DefaultObserveTimeout}, nil
}

// openSafeLibs opens only the side-effect free subset of the standard library.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

func sandbox(L *lua.LState) {
	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage", "print",
	} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (a *LuaAgent) GetAction(ctx context.Context, view world.WorldView) (world.Action, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.L == nil {
		return world.Action{}, errors.New("lua agent closed")
	}

	a.L.SetContext(ctx)
	defer a.L.RemoveContext()

	if err := a.L.CallByParam(lua.P{Fn: a.decide, NRet: 1, Protect: true}, viewTable(a.L, view)); err != nil {
		return world.Action{}, fmt.Errorf("decide: %w", err)
	}
	ret := a.L.Get(-1)
	a.L.Pop(1)
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return world.Action{}, fmt.Errorf("decide returned %s, want table", ret.Type())
	}
	return actionFromTable(view.Self.ID, tbl), nil
}

func (a *LuaAgent) UpdateView(view world.WorldView) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.L == nil {
		return
	}
	fn, ok := a.L.GetGlobal("observe").(*lua.LFunction)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.observeTimeout)
	defer cancel()
	a.L.SetContext(ctx)
	defer a.L.RemoveContext()

	a.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, viewTable(a.L, view))
}

// Close releases the VM.
func (a *LuaAgent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.L != nil {
		a.L.Close()
		a.L = nil
	}
	return nil
}

func viewTable(L *lua.LState, view world.WorldView) *lua.LTable {
	self := L.NewTable()
	self.RawSetString("id", lua.LString(view.Self.ID))
	self.RawSetString("name", lua.LString(view.Self.Name))
	self.RawSetString("x", lua.LNumber(view.Self.Position.X))
	self.RawSetString("y", lua.LNumber(view.Self.Position.Y))
	self.RawSetString("target", lua.LString(view.Self.Target))

	nearby := L.NewTable()
	for _, p := range view.NearbyPuppets {
		entry := L.NewTable()
		entry.RawSetString("id", lua.LString(p.ID))
		entry.RawSetString("name", lua.LString(p.Name))
		entry.RawSetString("x", lua.LNumber(p.Position.X))
		entry.RawSetString("y", lua.LNumber(p.Position.Y))
		entry.RawSetString("distance", lua.LNumber(p.DistanceToSelf))
		entry.RawSetString("isTarget", lua.LBool(p.IsTarget))
		entry.RawSetString("lastMessage", lua.LString(p.LastMessage))
		nearby.Append(entry)
	}

	messages := L.NewTable()
	for _, m := range view.RecentMessages {
		entry := L.NewTable()
		entry.RawSetString("from", lua.LString(m.From))
		entry.RawSetString("content", lua.LString(m.Content))
		messages.Append(entry)
	}

	tbl := L.NewTable()
	tbl.RawSetString("self", self)
	tbl.RawSetString("nearby", nearby)
	tbl.RawSetString("messages", messages)
	tbl.RawSetString("turn", lua.LNumber(view.TurnNumber))
	tbl.RawSetString("width", lua.LNumber(view.Environment.Width))
	tbl.RawSetString("height", lua.LNumber(view.Environment.Height))
	return tbl
}

// actionFromTable converts a script result. Validation is left to the
// engine so a malformed table becomes an ordinary agent failure.
func actionFromTable(self string, tbl *lua.LTable) world.Action {
	action := world.Action{
		Type:    world.ActionType(lua.LVAsString(tbl.RawGetString("type"))),
		AgentID: self,
	}
	switch action.Type {
	case world.ActionMove:
		dx, okX := tbl.RawGetString("dx").(lua.LNumber)
		dy, okY := tbl.RawGetString("dy").(lua.LNumber)
		if okX || okY {
			action.Delta = &world.Vector{X: float64(dx), Y: float64(dy)}
		}
	case world.ActionAttack:
		action.TargetID = lua.LVAsString(tbl.RawGetString("target"))
		if action.TargetID == "" {
			action.TargetID = lua.LVAsString(tbl.RawGetString("targetId"))
		}
	case world.ActionTalk:
		action.Message = lua.LVAsString(tbl.RawGetString("message"))
	}
	return action
}
