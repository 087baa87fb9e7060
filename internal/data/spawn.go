package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SpawnEntry defines where and how many creatures to keep alive.
type SpawnEntry struct {
	Creature     string `yaml:"creature"`
	X            int32  `yaml:"x"`
	Y            int32  `yaml:"y"`
	Floor        int8   `yaml:"floor"`
	Count        int    `yaml:"count"`
	Radius       int32  `yaml:"radius"`
	RespawnDelay int    `yaml:"respawn_delay"` // seconds
}

type spawnListFile struct {
	Spawns []SpawnEntry `yaml:"spawns"`
}

// LoadSpawnList loads spawn entries from a YAML file.
func LoadSpawnList(path string) ([]SpawnEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawns: %w", err)
	}
	var f spawnListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spawns: %w", err)
	}
	return f.Spawns, nil
}
