package world

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// World vertical bounds, per spec.md §3.
const (
	MinY           = -64
	MaxY           = 320
	SectionHeight  = 16
	SectionsPerChunk = (MaxY - MinY) / SectionHeight // 24
	ChunkWidth     = 16
)

// ChunkSection is a 16x16x16 cube of blocks plus block-light and sky-light
// nibble arrays (two 4-bit samples packed per byte).
type ChunkSection struct {
	blocks     [ChunkWidth * SectionHeight * ChunkWidth]BlockID
	blockLight [ChunkWidth * SectionHeight * ChunkWidth / 2]byte
	skyLight   [ChunkWidth * SectionHeight * ChunkWidth / 2]byte
	blockCount int32 // atomic; count of non-air blocks
}

func sectionIndex(lx, ly, lz int32) int {
	return int(ly)*ChunkWidth*ChunkWidth + int(lz)*ChunkWidth + int(lx)
}

// Block reads the block at local (lx, ly-local-to-section, lz).
func (s *ChunkSection) Block(lx, ly, lz int32) BlockID {
	return s.blocks[sectionIndex(lx, ly, lz)]
}

// SetBlock writes a block and atomically maintains blockCount. Caller must
// hold the owning chunk's lock.
func (s *ChunkSection) SetBlock(lx, ly, lz int32, id BlockID) {
	idx := sectionIndex(lx, ly, lz)
	old := s.blocks[idx]
	s.blocks[idx] = id
	switch {
	case old == Air && id != Air:
		atomic.AddInt32(&s.blockCount, 1)
	case old != Air && id == Air:
		atomic.AddInt32(&s.blockCount, -1)
	}
}

// BlockCount returns the number of non-air blocks in this section.
func (s *ChunkSection) BlockCount() int32 {
	return atomic.LoadInt32(&s.blockCount)
}

func nibbleIndex(lx, ly, lz int32) (index int, high bool) {
	linear := sectionIndex(lx, ly, lz)
	return linear / 2, linear%2 == 1
}

func getNibble(arr []byte, lx, ly, lz int32) uint8 {
	idx, high := nibbleIndex(lx, ly, lz)
	b := arr[idx]
	if high {
		return b >> 4
	}
	return b & 0x0F
}

func setNibble(arr []byte, lx, ly, lz int32, v uint8) {
	idx, high := nibbleIndex(lx, ly, lz)
	v &= 0x0F
	if high {
		arr[idx] = (arr[idx] & 0x0F) | (v << 4)
	} else {
		arr[idx] = (arr[idx] & 0xF0) | v
	}
}

func (s *ChunkSection) BlockLight(lx, ly, lz int32) uint8 {
	return getNibble(s.blockLight[:], lx, ly, lz)
}

func (s *ChunkSection) SetBlockLight(lx, ly, lz int32, v uint8) {
	setNibble(s.blockLight[:], lx, ly, lz, v)
}

func (s *ChunkSection) SkyLight(lx, ly, lz int32) uint8 {
	return getNibble(s.skyLight[:], lx, ly, lz)
}

func (s *ChunkSection) SetSkyLight(lx, ly, lz int32, v uint8) {
	setNibble(s.skyLight[:], lx, ly, lz, v)
}

// RawBlocks returns a copy of the section's 4096 block ids in
// y-major/z/x order, for persistence encoding.
func (s *ChunkSection) RawBlocks() []BlockID {
	out := make([]BlockID, len(s.blocks))
	copy(out, s.blocks[:])
	return out
}

// RawBlockLight returns a copy of the packed block-light nibble array.
func (s *ChunkSection) RawBlockLight() []byte {
	out := make([]byte, len(s.blockLight))
	copy(out, s.blockLight[:])
	return out
}

// RawSkyLight returns a copy of the packed sky-light nibble array.
func (s *ChunkSection) RawSkyLight() []byte {
	out := make([]byte, len(s.skyLight))
	copy(out, s.skyLight[:])
	return out
}

// NewSectionFromRaw rebuilds a section from decoded persistence data.
func NewSectionFromRaw(blocks []BlockID, blockLight, skyLight []byte) *ChunkSection {
	s := &ChunkSection{}
	copy(s.blocks[:], blocks)
	copy(s.blockLight[:], blockLight)
	copy(s.skyLight[:], skyLight)
	var count int32
	for _, b := range s.blocks {
		if b != Air {
			count++
		}
	}
	s.blockCount = count
	return s
}

// Chunk is a vertical stack of SectionsPerChunk sections. All reads/writes
// of its sections are serialized by mu.
type Chunk struct {
	Coord ChunkCoord

	mu       sync.Mutex
	sections [SectionsPerChunk]*ChunkSection
	loaded   bool
	dirty    bool

	lastAccess int64 // atomic, unix nanoseconds
}

// NewChunk allocates an empty (all-air) chunk at coord.
func NewChunk(coord ChunkCoord) *Chunk {
	c := &Chunk{Coord: coord, loaded: true}
	c.touch()
	return c
}

func (c *Chunk) touch() {
	atomic.StoreInt64(&c.lastAccess, time.Now().UnixNano())
}

// LastAccess returns the timestamp of the most recent read or write.
func (c *Chunk) LastAccess() time.Time {
	return time.Unix(0, atomic.LoadInt64(&c.lastAccess))
}

func sectionForY(y int32) (int, error) {
	if y < MinY || y >= MaxY {
		return 0, fmt.Errorf("world: y=%d out of bounds [%d,%d)", y, MinY, MaxY)
	}
	return int((y - MinY) / SectionHeight), nil
}

func (c *Chunk) sectionLocked(idx int) *ChunkSection {
	if c.sections[idx] == nil {
		c.sections[idx] = &ChunkSection{}
	}
	return c.sections[idx]
}

// Block reads a block at an absolute position within this chunk.
func (c *Chunk) Block(pos BlockPos) (BlockID, error) {
	secIdx, err := sectionForY(pos.Y)
	if err != nil {
		return Air, err
	}
	lx, ly, lz := pos.Local()
	localY := ly - (MinY + int32(secIdx)*SectionHeight)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	sec := c.sections[secIdx]
	if sec == nil {
		return Air, nil
	}
	return sec.Block(lx, localY, lz), nil
}

// SetBlock writes a block at an absolute position, marking the chunk dirty.
func (c *Chunk) SetBlock(pos BlockPos, id BlockID) error {
	secIdx, err := sectionForY(pos.Y)
	if err != nil {
		return err
	}
	lx, ly, lz := pos.Local()
	localY := ly - (MinY + int32(secIdx)*SectionHeight)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	sec := c.sectionLocked(secIdx)
	sec.SetBlock(lx, localY, lz, id)
	c.dirty = true
	return nil
}

// BlockCount sums non-air blocks across every allocated section.
func (c *Chunk) BlockCount() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int32
	for _, sec := range c.sections {
		if sec != nil {
			total += sec.BlockCount()
		}
	}
	return total
}

// Dirty reports whether a write has happened since the last successful
// persist.
func (c *Chunk) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// ClearDirty marks the chunk clean; callers must only do this right after a
// successful persist.
func (c *Chunk) ClearDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = false
}

// Loaded reports whether the chunk is currently attached to the store.
func (c *Chunk) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// WithLock runs f while holding the chunk's lock, so f can read or replace
// the raw section slots (SectionAt/SetSectionAt) for persistence encoding.
// Caller must hold no other lock on this chunk.
func (c *Chunk) WithLock(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f()
}

// SectionAt returns the section at idx (0..SectionsPerChunk-1), or nil if
// never written to. Must be called within WithLock.
func (c *Chunk) SectionAt(idx int) *ChunkSection {
	return c.sections[idx]
}

// SetSectionAt installs a decoded section during region-file load. Must be
// called within WithLock.
func (c *Chunk) SetSectionAt(idx int, sec *ChunkSection) {
	c.sections[idx] = sec
}
