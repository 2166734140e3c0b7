package world

// ChunkCoord is a 2D chunk coordinate.
type ChunkCoord struct {
	X, Z int32
}

// BlockPos is an absolute block coordinate.
type BlockPos struct {
	X, Y, Z int32
}

// Chunk decomposes a block position into its owning chunk coordinate.
func (p BlockPos) Chunk() ChunkCoord {
	return ChunkCoord{X: p.X >> 4, Z: p.Z >> 4}
}

// Local returns the intra-chunk coordinates (0-15, full Y, 0-15).
func (p BlockPos) Local() (lx, ly, lz int32) {
	return p.X & 15, p.Y, p.Z & 15
}

// CoordToChunk converts an absolute block coordinate to a chunk coordinate.
func CoordToChunk(bx, bz int32) ChunkCoord {
	return ChunkCoord{X: bx >> 4, Z: bz >> 4}
}

// DistSquared returns the squared chunk-grid distance between two coords,
// used for the disc-shaped view-distance test (dx²+dz² ≤ r²).
func (c ChunkCoord) DistSquared(other ChunkCoord) int64 {
	dx := int64(c.X - other.X)
	dz := int64(c.Z - other.Z)
	return dx*dx + dz*dz
}

// RegionCoord is the 32x32-chunk region a chunk coordinate belongs to.
type RegionCoord struct {
	X, Z int32
}

// Region returns the region a chunk coordinate belongs to (floor division
// by 32, not truncation, so negative coordinates group correctly).
func (c ChunkCoord) Region() RegionCoord {
	return RegionCoord{X: floorDiv32(c.X), Z: floorDiv32(c.Z)}
}

func floorDiv32(v int32) int32 {
	if v < 0 {
		return (v - 31) / 32
	}
	return v / 32
}

// RegionTableIndex returns ((cz & 31) << 5) | (cx & 31), the 0-1023 index of
// a chunk's entry in its region file's location/timestamp tables.
func (c ChunkCoord) RegionTableIndex() int {
	return int((uint32(c.Z)&31)<<5 | (uint32(c.X) & 31))
}
