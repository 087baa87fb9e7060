package data

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MapLoader produces the terrain grid from whatever container holds it.
type MapLoader interface {
	Load() (*Grid, error)
}

// GroundInfo maps a ground id to its terrain flags.
type GroundInfo struct {
	ID               uint16 `yaml:"id"`
	Name             string `yaml:"name"`
	Walkable         bool   `yaml:"walkable"`
	BlocksProjectile bool   `yaml:"blocks_projectile"`
	Transition       string `yaml:"transition"` // "", "stair_up", "stair_down", "rope"
}

func (g GroundInfo) flags() (TileFlags, error) {
	var f TileFlags
	if g.Walkable {
		f |= TileWalkable
	}
	if g.BlocksProjectile {
		f |= TileBlocksProjectile
	}
	switch g.Transition {
	case "":
	case "stair_up":
		f |= TileStairUp
	case "stair_down":
		f |= TileStairDown
	case "rope":
		f |= TileRope
	default:
		return 0, fmt.Errorf("ground %d: unknown transition %q", g.ID, g.Transition)
	}
	return f, nil
}

// FloorFile names the CSV holding one floor's ground ids.
type FloorFile struct {
	Floor int8   `yaml:"floor"`
	File  string `yaml:"file"`
}

type mapManifest struct {
	Width       int32        `yaml:"width"`
	Height      int32        `yaml:"height"`
	Floors      int8         `yaml:"floors"`
	GroundFloor int8         `yaml:"ground_floor"`
	Grounds     []GroundInfo `yaml:"grounds"`
	Layers      []FloorFile  `yaml:"layers"`
}

// ManifestLoader reads a YAML manifest plus one CSV file per floor. Each CSV
// line is a row of comma-separated ground ids; floors without a file stay
// unwalkable.
type ManifestLoader struct {
	Path string
}

func (l ManifestLoader) Load() (*Grid, error) {
	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read map manifest %s: %w", l.Path, err)
	}
	var m mapManifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse map manifest: %w", err)
	}
	if m.Width <= 0 || m.Height <= 0 || m.Floors <= 0 {
		return nil, fmt.Errorf("map manifest: invalid dimensions %dx%dx%d", m.Width, m.Height, m.Floors)
	}
	if m.GroundFloor < 0 || m.GroundFloor >= m.Floors {
		return nil, fmt.Errorf("map manifest: ground_floor %d out of range", m.GroundFloor)
	}

	grounds := make(map[uint16]TileFlags, len(m.Grounds))
	for _, g := range m.Grounds {
		f, err := g.flags()
		if err != nil {
			return nil, err
		}
		grounds[g.ID] = f
	}

	grid := NewGrid(m.Width, m.Height, m.Floors, m.GroundFloor)
	dir := filepath.Dir(l.Path)
	for _, layer := range m.Layers {
		if layer.Floor < 0 || layer.Floor >= m.Floors {
			return nil, fmt.Errorf("map manifest: layer floor %d out of range", layer.Floor)
		}
		if err := loadFloorFile(filepath.Join(dir, layer.File), grid, layer.Floor, grounds); err != nil {
			return nil, fmt.Errorf("load floor %d: %w", layer.Floor, err)
		}
	}
	return grid, nil
}

func loadFloorFile(path string, grid *Grid, floor int8, grounds map[uint16]TileFlags) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	y := int32(0)
	for scanner.Scan() && y < grid.Height {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		x := int32(0)
		for _, tok := range strings.Split(line, ",") {
			if x >= grid.Width {
				break
			}
			val, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 16)
			if err != nil {
				return fmt.Errorf("row %d col %d: %w", y, x, err)
			}
			id := uint16(val)
			grid.Set(x, y, floor, Tile{GroundID: id, Flags: grounds[id]})
			x++
		}
		y++
	}
	return scanner.Err()
}
