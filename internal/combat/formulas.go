// Package combat holds the damage, mitigation and progression formulas used
// by the combat and AI systems.
package combat

import (
	"math"

	"github.com/tilerealm/server/internal/component"
)

// Dice yields uniform fractions in [0, 1). *math/rand.Rand satisfies it.
type Dice interface {
	Float64() float64
}

// Formulas are the tunable curves. Standard implements them in Go; the Lua
// engine can override any of them.
type Formulas interface {
	MeleeMaxDamage(skill, weapon, level int32) float64
	SkillTries(level int32, multiplier float64) int64
	ExperienceForLevel(level int32) int64
}

const (
	// DistancePenaltyPerTile is the fraction of damage lost per tile of range.
	DistancePenaltyPerTile = 0.02
	// TriesBase is the number of tries needed to advance at level 10 with a
	// multiplier of 1.
	TriesBase = 50
)

// Standard is the built-in formula set.
type Standard struct{}

// MeleeMaxDamage is the theoretical max hit of a player.
func (Standard) MeleeMaxDamage(skill, weapon, level int32) float64 {
	return 0.085*float64(skill)*float64(weapon) + float64(level)/5
}

// SkillTries is the number of tries needed to go from level to level+1.
func (Standard) SkillTries(level int32, multiplier float64) int64 {
	if multiplier <= 0 {
		multiplier = 1
	}
	return int64(TriesBase * math.Pow(multiplier, float64(level-10)))
}

// ExperienceForLevel is the total experience at which level is reached.
func (Standard) ExperienceForLevel(level int32) int64 {
	if level <= 1 {
		return 0
	}
	l := int64(level)
	return 50 * (l*l*l - 6*l*l + 17*l - 12) / 3
}

func uniform(d Dice, lo, hi float64) float64 {
	return lo + d.Float64()*(hi-lo)
}

// Intn returns a uniform integer in [0, n).
func Intn(d Dice, n int) int {
	if n <= 0 {
		return 0
	}
	v := int(d.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// Mitigation is armor and shield each scaled by an independent roll in
// [0.5, 1).
func Mitigation(d Dice, armor int32, shield float64) float64 {
	return float64(armor)*uniform(d, 0.5, 1) + shield*uniform(d, 0.5, 1)
}

// PlayerShield blends a shield's defense value with the shielding skill.
func PlayerShield(shieldDefense, shieldingSkill int32) float64 {
	return float64(shieldDefense) * float64(shieldingSkill) / 40
}

// DistanceFactor is the multiplier for a ranged attack over tiles.
func DistanceFactor(tiles int32) float64 {
	f := 1 - DistancePenaltyPerTile*float64(tiles)
	if f < 0 {
		return 0
	}
	return f
}

// Settle subtracts mitigation from a raw roll and clamps at zero.
func Settle(raw, mitigation float64) int32 {
	dmg := math.Floor(raw - mitigation)
	if dmg < 0 {
		return 0
	}
	return int32(dmg)
}

// PlayerRoll rolls a player's raw damage against max.
func PlayerRoll(d Dice, max float64) float64 {
	return d.Float64() * max
}

// CreatureRoll rolls uniformly in [min, max].
func CreatureRoll(d Dice, min, max int32) float64 {
	if max <= min {
		return float64(min)
	}
	return float64(min + int32(Intn(d, int(max-min+1))))
}

// Train adds one try to a skill and advances levels as thresholds are met.
// It returns the number of levels gained.
func Train(f Formulas, set *component.SkillSet, cat component.SkillCategory) int {
	if cat >= component.NumSkills {
		return 0
	}
	sk := &set.Skills[cat]
	sk.Tries++
	set.Dirty = true
	gained := 0
	for {
		need := f.SkillTries(sk.Level, set.Multiplier[cat])
		if need <= 0 || sk.Tries < need {
			return gained
		}
		sk.Tries -= need
		sk.Level++
		gained++
	}
}

// Growth is the pool increase granted per level.
type Growth struct {
	HPPerLevel int32
	MPPerLevel int32
}

// MaxLevel caps levelling regardless of the experience curve.
const MaxLevel int32 = 1000

// AddExperience credits exp, raises the level while thresholds are met and
// grows the pools. It returns the number of levels gained. Levelling stops
// at a threshold that does not exceed the current level's.
func AddExperience(f Formulas, st *component.Stats, exp int64, g Growth) int {
	if exp <= 0 {
		return 0
	}
	st.Experience += exp
	st.Dirty = true
	gained := 0
	for st.Level < MaxLevel {
		next := f.ExperienceForLevel(st.Level + 1)
		if st.Experience < next || next <= f.ExperienceForLevel(st.Level) {
			break
		}
		st.Level++
		st.MaxHP += g.HPPerLevel
		st.MaxMP += g.MPPerLevel
		gained++
	}
	if gained > 0 {
		st.HP = st.MaxHP
		st.MP = st.MaxMP
	}
	return gained
}
