// mapconv converts ASCII floor plans into the map manifest and per-floor CSV
// files read by the server's map loader.
//
// Input: one text file per floor named floorN.txt (N = floor index). Each
// character is one tile:
//
//	.  grass        walkable
//	,  dirt         walkable
//	#  wall         blocks movement and projectiles
//	~  water        blocks movement only
//	>  stair up     walkable, leads to floor N+1
//	<  stair down   walkable, leads to floor N-1
//	H  rope         walkable, climbs to floor N+1
//	   (space)      void
//
// Produces:
//   - <out>/world.yaml    manifest (dimensions, ground table, layer files)
//   - <out>/floorN.csv    ground ids, one row per line
//
// Usage:
//
//	go run ./cmd/mapconv -in data/map/src -out data/map -ground 0
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tilerealm/server/internal/data"
)

// ---------------------------------------------------------------------------
// Legend
// ---------------------------------------------------------------------------

var legend = map[rune]data.GroundInfo{
	'.': {ID: 1, Name: "grass", Walkable: true},
	',': {ID: 2, Name: "dirt", Walkable: true},
	'#': {ID: 3, Name: "wall", BlocksProjectile: true},
	'~': {ID: 4, Name: "water"},
	'>': {ID: 5, Name: "stair_up", Walkable: true, Transition: "stair_up"},
	'<': {ID: 6, Name: "stair_down", Walkable: true, Transition: "stair_down"},
	'H': {ID: 7, Name: "rope", Walkable: true, Transition: "rope"},
}

// ---------------------------------------------------------------------------
// YAML structures
// ---------------------------------------------------------------------------

type Manifest struct {
	Width       int32             `yaml:"width"`
	Height      int32             `yaml:"height"`
	Floors      int8              `yaml:"floors"`
	GroundFloor int8              `yaml:"ground_floor"`
	Grounds     []data.GroundInfo `yaml:"grounds"`
	Layers      []data.FloorFile  `yaml:"layers"`
}

type floorPlan struct {
	floor int8
	rows  [][]uint16
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	in := flag.String("in", filepath.Join("data", "map", "src"), "directory of floorN.txt plans")
	out := flag.String("out", filepath.Join("data", "map"), "output directory")
	ground := flag.Int("ground", 0, "ground floor index")
	flag.Parse()

	plans, err := readPlans(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(plans) == 0 {
		fmt.Fprintf(os.Stderr, "no floorN.txt files in %s\n", *in)
		os.Exit(1)
	}

	var width, height int32
	floors := int8(0)
	for _, p := range plans {
		if int32(len(p.rows)) > height {
			height = int32(len(p.rows))
		}
		for _, row := range p.rows {
			if int32(len(row)) > width {
				width = int32(len(row))
			}
		}
		if p.floor+1 > floors {
			floors = p.floor + 1
		}
	}
	if *ground < 0 || *ground >= int(floors) {
		fmt.Fprintf(os.Stderr, "ground floor %d outside 0..%d\n", *ground, floors-1)
		os.Exit(1)
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output directory: %v\n", err)
		os.Exit(1)
	}

	m := Manifest{Width: width, Height: height, Floors: floors, GroundFloor: int8(*ground)}
	for _, p := range plans {
		name := fmt.Sprintf("floor%d.csv", p.floor)
		if err := writeCSV(filepath.Join(*out, name), p.rows, width, height); err != nil {
			fmt.Fprintf(os.Stderr, "error writing %s: %v\n", name, err)
			os.Exit(1)
		}
		m.Layers = append(m.Layers, data.FloorFile{Floor: p.floor, File: name})
		fmt.Printf("Wrote floor %d (%dx%d) to %s\n", p.floor, width, height, name)
	}
	for _, g := range legend {
		m.Grounds = append(m.Grounds, g)
	}
	sort.Slice(m.Grounds, func(i, j int) bool { return m.Grounds[i].ID < m.Grounds[j].ID })

	yamlData, err := yaml.Marshal(&m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshalling YAML: %v\n", err)
		os.Exit(1)
	}
	manifestPath := filepath.Join(*out, "world.yaml")
	header := "# Map manifest - generated by mapconv\n\n"
	if err := os.WriteFile(manifestPath, append([]byte(header), yamlData...), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", manifestPath, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote manifest with %d floors to %s\n", floors, manifestPath)
}

func readPlans(dir string) ([]floorPlan, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var plans []floorPlan
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "floor") || filepath.Ext(name) != ".txt" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "floor"), ".txt"))
		if err != nil || n < 0 || n > 127 {
			fmt.Fprintf(os.Stderr, "warning: skipping %s\n", name)
			continue
		}
		rows, err := readPlan(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		plans = append(plans, floorPlan{floor: int8(n), rows: rows})
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].floor < plans[j].floor })
	return plans, nil
}

func readPlan(path string) ([][]uint16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows [][]uint16
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		var row []uint16
		for col, r := range scanner.Text() {
			if r == ' ' {
				row = append(row, 0)
				continue
			}
			g, ok := legend[r]
			if !ok {
				return nil, fmt.Errorf("line %d col %d: unknown tile %q", line, col+1, r)
			}
			row = append(row, g.ID)
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}

func writeCSV(path string, rows [][]uint16, width, height int32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for y := int32(0); y < height; y++ {
		for x := int32(0); x < width; x++ {
			if x > 0 {
				w.WriteByte(',')
			}
			var id uint16
			if int(y) < len(rows) && int(x) < len(rows[y]) {
				id = rows[y][x]
			}
			w.WriteString(strconv.Itoa(int(id)))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
