package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/component"
)

func TestOverrideReplacesFormula(t *testing.T) {
	e, err := NewEngineFromSource(`
function melee_max_damage(skill, weapon, level)
  return skill + weapon + level
end
`, zap.NewNop())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer e.Close()

	if got := e.MeleeMaxDamage(10, 20, 30); got != 60 {
		t.Fatalf("MeleeMaxDamage = %v, want 60", got)
	}
	std := combat.Standard{}
	if got, want := e.SkillTries(12, 1.1), std.SkillTries(12, 1.1); got != want {
		t.Fatalf("SkillTries fallback = %d, want %d", got, want)
	}
	if got := e.Overrides(); len(got) != 1 || got[0] != "melee_max_damage" {
		t.Fatalf("overrides = %v", got)
	}
}

func TestBrokenOverrideFallsBack(t *testing.T) {
	e, err := NewEngineFromSource(`
function exp_for_level(level) error("boom") end
function skill_tries(level, mult) return "many" end
function melee_max_damage(skill, weapon, level) return -5 end
`, zap.NewNop())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer e.Close()

	std := combat.Standard{}
	if got, want := e.ExperienceForLevel(5), std.ExperienceForLevel(5); got != want {
		t.Fatalf("exp = %d, want %d", got, want)
	}
	if got, want := e.SkillTries(10, 1.5), std.SkillTries(10, 1.5); got != want {
		t.Fatalf("tries = %d, want %d", got, want)
	}
	if got, want := e.MeleeMaxDamage(10, 10, 1), std.MeleeMaxDamage(10, 10, 1); got != want {
		t.Fatalf("damage = %v, want %v", got, want)
	}
}

func TestNewEngineLoadsDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "progression"), 0o755); err != nil {
		t.Fatal(err)
	}
	script := "function exp_for_level(level) return level * 1000 end\n"
	if err := os.WriteFile(filepath.Join(dir, "progression", "exp.lua"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer e.Close()
	if got := e.ExperienceForLevel(3); got != 3000 {
		t.Fatalf("exp = %d", got)
	}
}

func TestFlatExperienceCurveFallsBack(t *testing.T) {
	e, err := NewEngineFromSource("function exp_for_level(level) return 100 end\n", zap.NewNop())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer e.Close()

	std := combat.Standard{}
	if got, want := e.ExperienceForLevel(2), std.ExperienceForLevel(2); got != want {
		t.Fatalf("exp(2) = %d, want %d", got, want)
	}
	if got, want := e.ExperienceForLevel(5), std.ExperienceForLevel(5); got != want {
		t.Fatalf("exp(5) = %d, want %d", got, want)
	}

	st := component.Stats{Level: 1, MaxHP: 100}
	gained := combat.AddExperience(e, &st, 450, combat.Growth{HPPerLevel: 5})
	if gained != 3 || st.Level != 4 {
		t.Fatalf("gained %d, level %d", gained, st.Level)
	}
}

func TestNewEngineReportsSyntaxErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("function ("), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewEngine(dir, zap.NewNop()); err == nil {
		t.Fatal("syntax error should fail engine creation")
	}
}
