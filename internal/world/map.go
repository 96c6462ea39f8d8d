package world

import "fmt"

// Map is a contiguous voxel grid, one byte per cell, indexed
// x + z*X + y*X*Z (matching the on-wire Classic chunk layout).
type Map struct {
	X, Y, Z int16
	blocks  []byte
	dirty   bool
}

// NewMap allocates a zeroed map of the given dimensions.
func NewMap(x, y, z int16) *Map {
	return &Map{X: x, Y: y, Z: z, blocks: make([]byte, int(x)*int(y)*int(z))}
}

// NewFlatMap builds a map with a single bedrock layer at y=0 and air
// above, grounded on the "scrap" world MCHawk creates at startup.
func NewFlatMap(x, y, z int16) *Map {
	m := NewMap(x, y, z)
	groundY := int16(1)
	if groundY > y {
		groundY = y
	}
	const (
		blockBedrock = 7
		blockDirt    = 3
		blockGrass   = 2
	)
	for yy := int16(0); yy < groundY; yy++ {
		var t byte
		switch {
		case yy == 0:
			t = blockBedrock
		case yy == groundY-1:
			t = blockGrass
		default:
			t = blockDirt
		}
		for zz := int16(0); zz < z; zz++ {
			for xx := int16(0); xx < x; xx++ {
				m.blocks[m.index(xx, yy, zz)] = t
			}
		}
	}
	return m
}

func (m *Map) index(x, y, z int16) int {
	return int(x) + int(z)*int(m.X) + int(y)*int(m.X)*int(m.Z)
}

// InBounds reports whether x,y,z fall within the map's dimensions.
func (m *Map) InBounds(x, y, z int16) bool {
	return x >= 0 && x < m.X && y >= 0 && y < m.Y && z >= 0 && z < m.Z
}

// Get returns the block id at x,y,z. Caller must have checked InBounds.
func (m *Map) Get(x, y, z int16) byte {
	return m.blocks[m.index(x, y, z)]
}

// Set stores a block id at x,y,z and marks the map dirty.
func (m *Map) Set(x, y, z int16, id byte) {
	m.blocks[m.index(x, y, z)] = id
	m.dirty = true
}

// Dirty reports whether the map has unsaved changes.
func (m *Map) Dirty() bool { return m.dirty }

// ClearDirty resets the dirty flag, called after a successful save.
func (m *Map) ClearDirty() { m.dirty = false }

// Bytes exposes the raw block array, e.g. for compression during a level
// send or for persisting to a Store.
func (m *Map) Bytes() []byte { return m.blocks }

// LoadBytes replaces the map's contents in place; len(b) must equal
// X*Y*Z.
func (m *Map) LoadBytes(b []byte) error {
	if len(b) != len(m.blocks) {
		return fmt.Errorf("world: map load size mismatch: got %d, want %d", len(b), len(m.blocks))
	}
	copy(m.blocks, b)
	return nil
}
