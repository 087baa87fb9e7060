package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/combat"
)

// Lua globals that override a formula when defined.
const (
	fnMeleeMaxDamage = "melee_max_damage"
	fnSkillTries     = "skill_tries"
	fnExpForLevel    = "exp_for_level"
)

// Engine wraps a single gopher-lua VM and implements combat.Formulas. Any
// formula the scripts do not define, or whose call fails, falls back to
// combat.Standard.
// Single-goroutine access only (game loop).
type Engine struct {
	vm       *lua.LState
	fallback combat.Standard
	log      *zap.Logger

	// set once exp_for_level returned a non-increasing threshold; the
	// whole curve then comes from the fallback
	curveRejected bool
}

var _ combat.Formulas = (*Engine)(nil)

// NewEngine creates a Lua engine and loads all scripts from the given
// directory: top-level files first, then the combat and progression
// subdirectories.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	for _, dir := range []string{
		scriptsDir,
		filepath.Join(scriptsDir, "combat"),
		filepath.Join(scriptsDir, "progression"),
	} {
		if err := e.loadDir(dir); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

// NewEngineFromSource builds an engine from one inline chunk.
func NewEngineFromSource(src string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.vm.DoString(src); err != nil {
		e.Close()
		return nil, fmt.Errorf("load inline script: %w", err)
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return &Engine{vm: vm, log: log}
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

func (e *Engine) Close() {
	e.vm.Close()
}

// Overrides lists the formula functions the loaded scripts define.
func (e *Engine) Overrides() []string {
	var out []string
	for _, name := range []string{fnMeleeMaxDamage, fnSkillTries, fnExpForLevel} {
		if e.vm.GetGlobal(name).Type() == lua.LTFunction {
			out = append(out, name)
		}
	}
	return out
}

// call invokes a global numeric function. ok is false when the function is
// missing, fails or returns something other than a finite number.
func (e *Engine) call(name string, args ...lua.LValue) (float64, bool) {
	fn := e.vm.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return 0, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua formula error", zap.String("fn", name), zap.Error(err))
		return 0, false
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)

	n, ok := ret.(lua.LNumber)
	if !ok {
		e.log.Error("lua formula returned non-number", zap.String("fn", name), zap.String("type", ret.Type().String()))
		return 0, false
	}
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		e.log.Error("lua formula returned non-finite value", zap.String("fn", name))
		return 0, false
	}
	return v, true
}

func (e *Engine) MeleeMaxDamage(skill, weapon, level int32) float64 {
	if v, ok := e.call(fnMeleeMaxDamage, lua.LNumber(skill), lua.LNumber(weapon), lua.LNumber(level)); ok && v >= 0 {
		return v
	}
	return e.fallback.MeleeMaxDamage(skill, weapon, level)
}

func (e *Engine) SkillTries(level int32, multiplier float64) int64 {
	if v, ok := e.call(fnSkillTries, lua.LNumber(level), lua.LNumber(multiplier)); ok && v >= 1 {
		return int64(v)
	}
	return e.fallback.SkillTries(level, multiplier)
}

// ExperienceForLevel must be strictly increasing from level 2 on. A script
// threshold at or below the previous level's disables the script curve.
func (e *Engine) ExperienceForLevel(level int32) int64 {
	if e.curveRejected {
		return e.fallback.ExperienceForLevel(level)
	}
	v, ok := e.call(fnExpForLevel, lua.LNumber(level))
	if !ok || v < 0 {
		return e.fallback.ExperienceForLevel(level)
	}
	if level > 1 {
		if prev, ok := e.call(fnExpForLevel, lua.LNumber(level-1)); ok && int64(v) <= int64(prev) {
			e.curveRejected = true
			e.log.Warn("exp_for_level is not increasing, using built-in curve",
				zap.Int32("level", level),
				zap.Int64("threshold", int64(v)),
				zap.Int64("previous", int64(prev)),
			)
			return e.fallback.ExperienceForLevel(level)
		}
	}
	return int64(v)
}
