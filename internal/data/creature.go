package data

import (
	"fmt"
	"os"

	"github.com/tilerealm/server/internal/component"
	"gopkg.in/yaml.v3"
)

// CreatureTemplate holds the immutable stat block for one creature type.
type CreatureTemplate struct {
	ID         uint16  `yaml:"id"`
	Name       string  `yaml:"name"`
	HP         int32   `yaml:"hp"`
	MP         int32   `yaml:"mp"`
	AttackMin  int32   `yaml:"attack_min"`
	AttackMax  int32   `yaml:"attack_max"`
	Range      int32   `yaml:"range"` // 1 = melee
	Armor      int32   `yaml:"armor"`
	Defense    int32   `yaml:"defense"`
	Behavior   string  `yaml:"behavior"` // melee, ranged, fleeing, passive
	Aggressive bool    `yaml:"aggressive"`
	LookRange  int32   `yaml:"look_range"`
	ChaseRange int32   `yaml:"chase_range"`
	FleeHP     float64 `yaml:"flee_hp"` // HP ratio below which fleeing creatures run
	Experience int64   `yaml:"experience"`
	Speed      int     `yaml:"speed"`
	AttackRate int     `yaml:"attack_rate"` // ticks between attacks

	behavior component.Behavior
}

// BehaviorClass returns the parsed behavior.
func (t *CreatureTemplate) BehaviorClass() component.Behavior { return t.behavior }

type creatureListFile struct {
	Creatures []CreatureTemplate `yaml:"creatures"`
}

// CreatureTable holds all creature templates indexed by id and name.
type CreatureTable struct {
	byID   map[uint16]*CreatureTemplate
	byName map[string]*CreatureTemplate
}

// LoadCreatureTable loads creature templates from a YAML file.
func LoadCreatureTable(path string) (*CreatureTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read creatures: %w", err)
	}
	return ParseCreatureTable(raw)
}

func ParseCreatureTable(raw []byte) (*CreatureTable, error) {
	var f creatureListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse creatures: %w", err)
	}
	t := NewCreatureTable()
	for i := range f.Creatures {
		if err := t.Add(&f.Creatures[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func NewCreatureTable() *CreatureTable {
	return &CreatureTable{
		byID:   make(map[uint16]*CreatureTemplate),
		byName: make(map[string]*CreatureTemplate),
	}
}

// Add validates a template, fills defaults and indexes it.
func (t *CreatureTable) Add(c *CreatureTemplate) error {
	b, ok := component.ParseBehavior(c.Behavior)
	if !ok {
		return fmt.Errorf("creature %q: unknown behavior %q", c.Name, c.Behavior)
	}
	c.behavior = b
	if c.HP <= 0 {
		return fmt.Errorf("creature %q: hp must be positive", c.Name)
	}
	if c.AttackMax < c.AttackMin {
		return fmt.Errorf("creature %q: attack_max < attack_min", c.Name)
	}
	if _, dup := t.byID[c.ID]; dup {
		return fmt.Errorf("creature %q: duplicate id %d", c.Name, c.ID)
	}
	if c.Range < 1 {
		c.Range = 1
	}
	if c.Speed <= 0 {
		c.Speed = 200
	}
	if c.AttackRate <= 0 {
		c.AttackRate = 40
	}
	t.byID[c.ID] = c
	t.byName[c.Name] = c
	return nil
}

// Get returns a template by id, or nil if not found.
func (t *CreatureTable) Get(id uint16) *CreatureTemplate {
	return t.byID[id]
}

// ByName returns a template by name, or nil if not found.
func (t *CreatureTable) ByName(name string) *CreatureTemplate {
	return t.byName[name]
}

// Count returns the number of loaded templates.
func (t *CreatureTable) Count() int {
	return len(t.byID)
}
