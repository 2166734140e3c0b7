package region

import (
	"fmt"

	"github.com/tholin/craftd/internal/buf"
	"github.com/tholin/craftd/internal/world"
)

// encodeChunk serializes a chunk's sections per spec.md §4.6: section
// count, then per section a presence byte, block count, 4096 big-endian u16
// block ids, block-light nibbles, sky-light nibbles.
func encodeChunk(c *world.Chunk) []byte {
	var b buf.Buffer
	c.WithLock(func() {
		b.WriteU8(uint8(world.SectionsPerChunk))
		for i := 0; i < world.SectionsPerChunk; i++ {
			sec := c.SectionAt(i)
			if sec == nil {
				b.WriteU8(0)
				continue
			}
			b.WriteU8(1)
			b.WriteU16(uint16(sec.BlockCount()))
			for _, id := range sec.RawBlocks() {
				b.WriteU16(uint16(id))
			}
			b.WriteBytes(sec.RawBlockLight())
			b.WriteBytes(sec.RawSkyLight())
		}
	})
	return b.Bytes()
}

const blocksPerSection = world.ChunkWidth * world.SectionHeight * world.ChunkWidth

func decodeChunk(coord world.ChunkCoord, payload []byte) (*world.Chunk, error) {
	r := buf.NewBuffer(payload)
	sectionCount, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if int(sectionCount) > world.SectionsPerChunk {
		return nil, fmt.Errorf("region: section count %d exceeds %d", sectionCount, world.SectionsPerChunk)
	}

	c := world.NewChunk(coord)
	c.WithLock(func() {
		for i := 0; i < int(sectionCount); i++ {
			present, perr := r.ReadU8()
			if perr != nil {
				err = perr
				return
			}
			if present == 0 {
				continue
			}
			if _, perr = r.ReadU16(); perr != nil { // block count, recomputed on load
				err = perr
				return
			}
			blocks := make([]world.BlockID, blocksPerSection)
			for bi := range blocks {
				v, berr := r.ReadU16()
				if berr != nil {
					err = berr
					return
				}
				blocks[bi] = world.BlockID(v)
			}
			blockLight, lerr := r.ReadBytes(blocksPerSection / 2)
			if lerr != nil {
				err = lerr
				return
			}
			skyLight, serr := r.ReadBytes(blocksPerSection / 2)
			if serr != nil {
				err = serr
				return
			}
			c.SetSectionAt(i, world.NewSectionFromRaw(blocks, blockLight, skyLight))
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
