package server

import (
	"github.com/tholin/craftd/internal/buf"
	"github.com/tholin/craftd/internal/proto"
	"github.com/tholin/craftd/internal/world"
)

// encodeChunkPacket serializes a loaded chunk into a ChunkData payload: one
// presence byte per section, followed for a present section by its raw block
// ids, block light and sky light, in bottom-to-top order. This is a server-internal wire
// shape, independent of the on-disk region-file encoding in internal/region.
func encodeChunkPacket(c *world.Chunk) *proto.ChunkData {
	var body buf.Buffer
	c.WithLock(func() {
		for i := 0; i < world.SectionsPerChunk; i++ {
			sec := c.SectionAt(i)
			if sec == nil {
				body.WriteBool(false)
				continue
			}
			body.WriteBool(true)
			for _, id := range sec.RawBlocks() {
				body.WriteU16(uint16(id))
			}
			body.WriteBytes(sec.RawBlockLight())
			body.WriteBytes(sec.RawSkyLight())
		}
	})

	return &proto.ChunkData{
		ChunkX: c.Coord.X,
		ChunkZ: c.Coord.Z,
		Data:   body.Bytes(),
	}
}
