package world

// Generator produces a freshly generated chunk for a coordinate not found
// on disk. Actual world generation algorithms are out of scope (spec.md
// §1); only the trivial flat generator is implemented.
type Generator interface {
	Generate(coord ChunkCoord) *Chunk
}

// FlatGenerator fills every column from MinY up to a configurable surface
// height with a fixed block sequence: bedrock, then stone, then dirt, then
// grass on top, matching the classic "superflat" layout.
type FlatGenerator struct {
	SurfaceY int32
}

// NewFlatGenerator builds a generator with a sane default surface height.
func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{SurfaceY: MinY + 4}
}

func (g *FlatGenerator) Generate(coord ChunkCoord) *Chunk {
	c := NewChunk(coord)
	for x := int32(0); x < ChunkWidth; x++ {
		for z := int32(0); z < ChunkWidth; z++ {
			for y := int32(MinY); y < g.SurfaceY; y++ {
				var id BlockID
				switch {
				case y == MinY:
					id = 7 // bedrock
				case y == g.SurfaceY-1:
					id = 2 // grass
				case y >= g.SurfaceY-3:
					id = 3 // dirt
				default:
					id = 1 // stone
				}
				_ = c.SetBlock(BlockPos{X: coord.X*ChunkWidth + x, Y: y, Z: coord.Z*ChunkWidth + z}, id)
			}
		}
	}
	c.ClearDirty() // freshly generated content isn't "unpersisted changes" yet
	return c
}
