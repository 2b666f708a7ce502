// Package script runs adapters written in Lua.
//
// A script defines a global function
//
//	function adapt(name, active, section)
//	  return active and not name:match("^MBEDTLS_NET_")
//	end
//
// which is called once per known symbol. section is nil for symbols that
// precede every section marker.
package script

import (
	"errors"
	"fmt"

	"github.com/doridoridoriand/hdrconf/internal/config"
	"github.com/spf13/afero"
	lua "github.com/yuin/gopher-lua"
)

// AdaptFunction is the global a script must define.
const AdaptFunction = "adapt"

// ErrNoAdaptFunction is returned when a script does not define adapt.
var ErrNoAdaptFunction = errors.New("script does not define function " + AdaptFunction)

// Script is a loaded Lua adapter. It is not safe for concurrent use.
type Script struct {
	L     *lua.LState
	name  string
	adapt *lua.LFunction
}

// Load reads and runs the script at path.
func Load(fs afero.Fs, path string) (*Script, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	return New(string(src), path)
}

// New runs source in a fresh sandboxed state. name is used in errors.
func New(source, name string) (*Script, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	if err := L.DoString(source); err != nil {
		L.Close()
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	fn, ok := L.GetGlobal(AdaptFunction).(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("%s: %w", name, ErrNoAdaptFunction)
	}
	return &Script{L: L, name: name, adapt: fn}, nil
}

// openSafeLibraries opens the libraries that cannot reach the filesystem or
// the process.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Evaluate calls adapt for one symbol. adapt must return a boolean.
func (s *Script) Evaluate(name string, active bool, section string) (bool, error) {
	var luaSection lua.LValue = lua.LNil
	if section != "" {
		luaSection = lua.LString(section)
	}
	err := s.L.CallByParam(lua.P{
		Fn:      s.adapt,
		NRet:    1,
		Protect: true,
	}, lua.LString(name), lua.LBool(active), luaSection)
	if err != nil {
		return false, fmt.Errorf("%s: %w", s.name, err)
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)

	result, ok := ret.(lua.LBool)
	if !ok {
		return false, fmt.Errorf("%s: %s must return a boolean, got %s", s.name, AdaptFunction, ret.Type())
	}
	return bool(result), nil
}

// Apply runs the script over every symbol of cfg. Nothing changes if the
// script fails for any symbol.
func (s *Script) Apply(cfg *config.Config) error {
	return cfg.TryAdapt(s.Evaluate)
}

// Close releases the Lua state.
func (s *Script) Close() {
	s.L.Close()
}
