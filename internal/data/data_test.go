package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tilerealm/server/internal/component"
)

func TestManifestLoaderBuildsGrid(t *testing.T) {
	dir := t.TempDir()
	manifest := `
width: 4
height: 3
floors: 2
ground_floor: 0
grounds:
  - {id: 1, name: grass, walkable: true}
  - {id: 2, name: wall, blocks_projectile: true}
  - {id: 3, name: stairs, walkable: true, transition: stair_up}
layers:
  - {floor: 0, file: f0.csv}
`
	floor0 := "# ground floor\n1,1,2,1\n1,3,1,1\n1,1,1,1\n"
	if err := os.WriteFile(filepath.Join(dir, "world.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "f0.csv"), []byte(floor0), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := ManifestLoader{Path: filepath.Join(dir, "world.yaml")}.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if g.Width != 4 || g.Height != 3 || g.Floors != 2 {
		t.Fatalf("dimensions %dx%dx%d", g.Width, g.Height, g.Floors)
	}
	if !g.Walkable(0, 0, 0) || g.Walkable(2, 0, 0) {
		t.Fatalf("walkability wrong")
	}
	if g.At(2, 0, 0).Flags&TileBlocksProjectile == 0 {
		t.Fatalf("wall should block projectiles")
	}
	if d := g.At(1, 1, 0).Flags.FloorTransition(); d != 1 {
		t.Fatalf("stair transition = %d", d)
	}
	if g.Walkable(0, 0, 1) {
		t.Fatalf("floor without a layer file must be unwalkable")
	}
	if g.Walkable(-1, 0, 0) || g.Walkable(0, 3, 0) {
		t.Fatalf("out of bounds tiles must be unwalkable")
	}
}

func TestParseCreatureTable(t *testing.T) {
	table, err := ParseCreatureTable([]byte(`
creatures:
  - {id: 1, name: rat, hp: 20, attack_min: 0, attack_max: 8, behavior: melee, aggressive: true, look_range: 4, experience: 5}
  - {id: 2, name: hunter, hp: 150, attack_min: 5, attack_max: 30, range: 4, behavior: ranged, experience: 150}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rat := table.ByName("rat")
	if rat == nil || rat.BehaviorClass() != component.BehaviorMelee || rat.Range != 1 || rat.Speed != 200 {
		t.Fatalf("rat = %+v", rat)
	}
	if h := table.Get(2); h == nil || h.BehaviorClass() != component.BehaviorRanged {
		t.Fatalf("hunter = %+v", h)
	}

	if _, err := ParseCreatureTable([]byte("creatures:\n  - {id: 1, name: x, hp: 5, behavior: dancing}\n")); err == nil {
		t.Fatalf("expected unknown behavior error")
	}
}
