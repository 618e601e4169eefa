// Package atlas loads a texture-atlas manifest that maps each block face to
// a tile, and serves those tiles as mesh materials.
package atlas

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/go-theft-craft/voxel/internal/block"
	"github.com/go-theft-craft/voxel/internal/mesh"
)

// ErrUnknownBlock is returned for manifest entries naming no block type.
var ErrUnknownBlock = errors.New("unknown block")

const defaultTileSize = 16

// Tile locates one face texture in the atlas grid.
type Tile struct {
	Block block.Type
	Face  mesh.Face
	Col   int
	Row   int
}

// Atlas implements mesh.MaterialProvider with Tile materials.
type Atlas struct {
	TileSize int
	tiles    [block.Count][6]Tile
}

type manifest struct {
	TileSize int                 `yaml:"tile_size"`
	Blocks   map[string]faceSpec `yaml:"blocks"`
}

type faceSpec struct {
	All    *[2]int `yaml:"all"`
	Top    *[2]int `yaml:"top"`
	Bottom *[2]int `yaml:"bottom"`
	Side   *[2]int `yaml:"side"`
	PX     *[2]int `yaml:"px"`
	NX     *[2]int `yaml:"nx"`
	PZ     *[2]int `yaml:"pz"`
	NZ     *[2]int `yaml:"nz"`
}

// pick returns the most specific tile coordinates for f.
func (s faceSpec) pick(f mesh.Face) *[2]int {
	var specific, group *[2]int
	switch f {
	case mesh.PosX:
		specific, group = s.PX, s.Side
	case mesh.NegX:
		specific, group = s.NX, s.Side
	case mesh.PosY:
		specific = s.Top
	case mesh.NegY:
		specific = s.Bottom
	case mesh.PosZ:
		specific, group = s.PZ, s.Side
	case mesh.NegZ:
		specific, group = s.NZ, s.Side
	}
	switch {
	case specific != nil:
		return specific
	case group != nil:
		return group
	default:
		return s.All
	}
}

// Load reads and parses a manifest file.
func Load(path string) (*Atlas, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read atlas: %w", err)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("atlas %s: %w", path, err)
	}
	return a, nil
}

// Parse builds an Atlas from manifest YAML. Blocks absent from the manifest
// use the tile at (0, 0).
func Parse(data []byte) (*Atlas, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	a := &Atlas{TileSize: m.TileSize}
	if a.TileSize == 0 {
		a.TileSize = defaultTileSize
	}
	if a.TileSize < 0 {
		return nil, fmt.Errorf("tile_size must be positive, got %d", a.TileSize)
	}
	for _, bt := range block.All() {
		for _, f := range mesh.Faces {
			a.tiles[bt][f] = Tile{Block: bt, Face: f}
		}
	}

	for name, spec := range m.Blocks {
		bt, ok := block.ByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownBlock, name)
		}
		for _, f := range mesh.Faces {
			p := spec.pick(f)
			if p == nil {
				continue
			}
			if p[0] < 0 || p[1] < 0 {
				return nil, fmt.Errorf("%s %v: negative tile (%d, %d)", name, f, p[0], p[1])
			}
			a.tiles[bt][f] = Tile{Block: bt, Face: f, Col: p[0], Row: p[1]}
		}
	}
	return a, nil
}

// Tile returns the tile for one face of a block type.
func (a *Atlas) Tile(t block.Type, f mesh.Face) Tile {
	if !t.Valid() || int(f) >= len(mesh.Faces) {
		return Tile{Block: t, Face: f}
	}
	return a.tiles[t][f]
}

// Materials returns the six face tiles of t as mesh materials.
func (a *Atlas) Materials(t block.Type) [6]mesh.Material {
	var out [6]mesh.Material
	for _, f := range mesh.Faces {
		out[f] = a.Tile(t, f)
	}
	return out
}

// Distinct returns the number of distinct tiles referenced by the atlas.
func (a *Atlas) Distinct() int {
	seen := make(map[[2]int]struct{})
	for _, faces := range a.tiles {
		for _, t := range faces {
			seen[[2]int{t.Col, t.Row}] = struct{}{}
		}
	}
	return len(seen)
}
