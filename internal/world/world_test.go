package world

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBlockCountInvariant(t *testing.T) {
	c := NewChunk(ChunkCoord{0, 0})
	require.Equal(t, int32(0), c.BlockCount())

	require.NoError(t, c.SetBlock(BlockPos{X: 1, Y: 0, Z: 1}, 1))
	require.NoError(t, c.SetBlock(BlockPos{X: 2, Y: 0, Z: 1}, 2))
	require.Equal(t, int32(2), c.BlockCount())

	require.NoError(t, c.SetBlock(BlockPos{X: 1, Y: 0, Z: 1}, Air))
	require.Equal(t, int32(1), c.BlockCount())
}

func TestChunkDirtyInvariant(t *testing.T) {
	c := NewChunk(ChunkCoord{0, 0})
	require.False(t, c.Dirty())
	require.NoError(t, c.SetBlock(BlockPos{X: 0, Y: 0, Z: 0}, 1))
	require.True(t, c.Dirty())
	c.ClearDirty()
	require.False(t, c.Dirty())
}

func TestBlockPosChunkDecomposition(t *testing.T) {
	p := BlockPos{X: 20, Y: 64, Z: -5}
	coord := p.Chunk()
	require.Equal(t, ChunkCoord{X: 1, Z: -1}, coord)
	lx, ly, lz := p.Local()
	require.Equal(t, int32(4), lx)
	require.Equal(t, int32(64), ly)
	require.Equal(t, int32(11), lz)
}

func TestRegionGrouping(t *testing.T) {
	require.Equal(t, RegionCoord{0, 0}, ChunkCoord{0, 0}.Region())
	require.Equal(t, RegionCoord{0, 0}, ChunkCoord{31, 31}.Region())
	require.Equal(t, RegionCoord{1, 0}, ChunkCoord{32, 0}.Region())
	require.Equal(t, RegionCoord{-1, 0}, ChunkCoord{-1, 0}.Region())
}

func TestFlatGeneratorNonAir(t *testing.T) {
	gen := NewFlatGenerator()
	c := gen.Generate(ChunkCoord{0, 0})
	require.False(t, c.Dirty())
	require.Greater(t, c.BlockCount(), int32(0))
}

type fakeTaskRunner struct{}

func (fakeTaskRunner) Submit(f func()) { f() }

func TestStoreLoadGeneratesAndEvicts(t *testing.T) {
	gen := NewFlatGenerator()
	s := NewStore(gen, nil, fakeTaskRunner{}, 1, time.Millisecond)

	c, res := s.Load(ChunkCoord{0, 0})
	require.Equal(t, NotReady, res)
	require.Nil(t, c)

	time.Sleep(5 * time.Millisecond)
	c, ok := s.Get(ChunkCoord{0, 0})
	require.True(t, ok)
	require.NotNil(t, c)

	// let (0,0) age past the 1ms timeout before the second load pushes the
	// store over maxLoaded=1
	time.Sleep(5 * time.Millisecond)
	_, res2 := s.Load(ChunkCoord{1, 0})
	require.Equal(t, NotReady, res2)
	time.Sleep(5 * time.Millisecond)

	require.Equal(t, 1, s.Len())
	_, ok = s.Get(ChunkCoord{0, 0})
	require.False(t, ok)
	require.False(t, c.Loaded())
}

type fakePersistence struct {
	saved map[ChunkCoord]int
}

func (p *fakePersistence) Load(ChunkCoord) (*Chunk, bool, error) { return nil, false, nil }

func (p *fakePersistence) Save(c *Chunk) error {
	if p.saved == nil {
		p.saved = make(map[ChunkCoord]int)
	}
	p.saved[c.Coord]++
	return nil
}

func TestStoreSaveAllPersistsOnlyDirtyChunks(t *testing.T) {
	gen := NewFlatGenerator()
	persist := &fakePersistence{}
	s := NewStore(gen, persist, fakeTaskRunner{}, 0, time.Hour)

	_, res := s.Load(ChunkCoord{0, 0})
	require.Equal(t, NotReady, res)
	_, res = s.Load(ChunkCoord{1, 0})
	require.Equal(t, NotReady, res)

	require.NoError(t, s.BlockSet(BlockPos{X: 0, Y: 0, Z: 0}, 7))

	s.SaveAll()

	require.Equal(t, 1, persist.saved[ChunkCoord{0, 0}])
	require.Equal(t, 0, persist.saved[ChunkCoord{1, 0}])

	c, _ := s.Get(ChunkCoord{0, 0})
	require.False(t, c.Dirty())

	s.SaveAll()
	require.Equal(t, 1, persist.saved[ChunkCoord{0, 0}])
}

func TestBlockGetSetAutoLoad(t *testing.T) {
	gen := NewFlatGenerator()
	s := NewStore(gen, nil, fakeTaskRunner{}, 0, time.Hour)

	err := s.BlockSet(BlockPos{X: 0, Y: 0, Z: 0}, 5)
	require.NoError(t, err)

	got, ok := s.BlockGet(BlockPos{X: 0, Y: 0, Z: 0})
	require.True(t, ok)
	require.Equal(t, BlockID(5), got)
}
