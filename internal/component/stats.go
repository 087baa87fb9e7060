package component

// SkillCategory indexes a SkillSet.
type SkillCategory uint8

const (
	SkillFist SkillCategory = iota
	SkillSword
	SkillClub
	SkillAxe
	SkillDistance
	SkillShielding
	NumSkills
)

func ParseSkillCategory(s string) (SkillCategory, bool) {
	switch s {
	case "fist":
		return SkillFist, true
	case "sword":
		return SkillSword, true
	case "club":
		return SkillClub, true
	case "axe":
		return SkillAxe, true
	case "distance":
		return SkillDistance, true
	case "shielding":
		return SkillShielding, true
	}
	return 0, false
}

// Skill is one trained skill.
type Skill struct {
	Level int32
	Tries int64
}

// SkillSet holds every skill with its archetype progression multiplier.
type SkillSet struct {
	Skills     [NumSkills]Skill
	Multiplier [NumSkills]float64
	Dirty      bool
}

// Stats is the player's level and resource pools.
type Stats struct {
	Level      int32
	Experience int64
	HP, MaxHP  int32
	MP, MaxMP  int32
	RegenTimer int
	Dirty      bool
}
