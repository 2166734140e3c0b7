package world

import (
	"sync"
	"time"
)

// Persistence is implemented by internal/region; kept as an interface here
// so internal/world never imports the region-file codec package.
type Persistence interface {
	Load(coord ChunkCoord) (*Chunk, bool, error)
	Save(c *Chunk) error
}

// TaskRunner is implemented by internal/worker's Pool; kept as an interface
// so chunk generation/persistence can be offloaded without an import cycle.
type TaskRunner interface {
	Submit(func())
}

// LoadResult is what Load reports for a coordinate.
type LoadResult int

const (
	NotPresent LoadResult = iota
	NotReady              // generation or disk load is in flight
	Present
)

// Store is the concurrent, age-evicted chunk map from
// spec.md §4.5. Membership changes (insert/remove) are guarded by mu; each
// chunk has its own lock for block-level work, so two different chunks
// never contend.
type Store struct {
	mu      sync.Mutex
	chunks  map[ChunkCoord]*Chunk
	pending map[ChunkCoord]bool

	gen     Generator
	persist Persistence
	workers TaskRunner

	maxLoaded      int
	chunkTimeout   time.Duration
}

// NewStore builds a chunk store. maxLoaded and chunkTimeout come from
// performance config (§6); persist may be nil to disable persistence
// (useful in tests).
func NewStore(gen Generator, persist Persistence, workers TaskRunner, maxLoaded int, chunkTimeout time.Duration) *Store {
	return &Store{
		chunks:       make(map[ChunkCoord]*Chunk),
		pending:      make(map[ChunkCoord]bool),
		gen:          gen,
		persist:      persist,
		workers:      workers,
		maxLoaded:    maxLoaded,
		chunkTimeout: chunkTimeout,
	}
}

// Get returns the loaded chunk if present, touching its last-access time.
func (s *Store) Get(coord ChunkCoord) (*Chunk, bool) {
	s.mu.Lock()
	c, ok := s.chunks[coord]
	s.mu.Unlock()
	if ok {
		c.touch()
	}
	return c, ok
}

// Load returns the chunk if already resident, "not ready" if generation is
// in flight, or kicks off async generation/disk-load and returns "not
// ready" otherwise.
func (s *Store) Load(coord ChunkCoord) (*Chunk, LoadResult) {
	s.mu.Lock()
	if c, ok := s.chunks[coord]; ok {
		s.mu.Unlock()
		c.touch()
		return c, Present
	}
	if s.pending[coord] {
		s.mu.Unlock()
		return nil, NotReady
	}
	s.pending[coord] = true
	s.mu.Unlock()

	job := func() { s.generateOrLoad(coord) }
	if s.workers != nil {
		s.workers.Submit(job)
	} else {
		job()
	}
	return nil, NotReady
}

func (s *Store) generateOrLoad(coord ChunkCoord) {
	defer func() {
		s.mu.Lock()
		delete(s.pending, coord)
		s.mu.Unlock()
	}()

	var c *Chunk
	if s.persist != nil {
		if loaded, found, err := s.persist.Load(coord); err == nil && found {
			c = loaded
		}
	}
	if c == nil {
		c = s.gen.Generate(coord)
	}

	s.mu.Lock()
	s.chunks[coord] = c
	s.mu.Unlock()

	s.evictIfNeeded()
}

// Unload removes a chunk from the map, scheduling a final persist first if
// it is dirty.
func (s *Store) Unload(coord ChunkCoord) {
	s.mu.Lock()
	c, ok := s.chunks[coord]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.chunks, coord)
	s.mu.Unlock()

	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()

	if c.Dirty() && s.persist != nil {
		job := func() {
			if err := s.persist.Save(c); err == nil {
				c.ClearDirty()
			}
		}
		if s.workers != nil {
			s.workers.Submit(job)
		} else {
			job()
		}
	}
}

// BlockGet decomposes a block position and forwards to the owning chunk.
// It returns (Air, false) if the chunk isn't loaded.
func (s *Store) BlockGet(pos BlockPos) (BlockID, bool) {
	c, ok := s.Get(pos.Chunk())
	if !ok {
		return Air, false
	}
	id, err := c.Block(pos)
	if err != nil {
		return Air, false
	}
	return id, true
}

// BlockSet decomposes a block position and forwards to the owning chunk,
// auto-loading it (synchronously, via generateOrLoad) if absent.
func (s *Store) BlockSet(pos BlockPos, id BlockID) error {
	coord := pos.Chunk()
	c, ok := s.Get(coord)
	if !ok {
		s.generateOrLoad(coord)
		c, ok = s.Get(coord)
		if !ok {
			return nil
		}
	}
	return c.SetBlock(pos, id)
}

// Len returns the number of currently loaded chunks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// evictIfNeeded scans for chunks older than chunkTimeout when the loaded
// count exceeds maxLoaded, unloading at most 10 per pass (spec.md §4.5).
func (s *Store) evictIfNeeded() {
	if s.maxLoaded <= 0 {
		return
	}
	s.mu.Lock()
	if len(s.chunks) <= s.maxLoaded {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	var victims []ChunkCoord
	for coord, c := range s.chunks {
		if now.Sub(c.LastAccess()) > s.chunkTimeout {
			victims = append(victims, coord)
			if len(victims) == 10 {
				break
			}
		}
	}
	s.mu.Unlock()

	for _, coord := range victims {
		s.Unload(coord)
	}
}

// EvictStale runs one eviction pass (subject to the maxLoaded gate above);
// used by the tick scheduler's world-tick step.
func (s *Store) EvictStale() {
	s.evictIfNeeded()
}

// SaveAll persists every currently-loaded dirty chunk, without unloading it
// (spec.md §4.9: the auto-save thread invokes region-persistence save_all on
// a timer, independent of the age-based eviction in evictIfNeeded).
func (s *Store) SaveAll() {
	if s.persist == nil {
		return
	}

	s.mu.Lock()
	snapshot := make([]*Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		snapshot = append(snapshot, c)
	}
	s.mu.Unlock()

	for _, c := range snapshot {
		if !c.Dirty() {
			continue
		}
		c := c
		job := func() {
			if err := s.persist.Save(c); err == nil {
				c.ClearDirty()
			}
		}
		if s.workers != nil {
			s.workers.Submit(job)
		} else {
			job()
		}
	}
}
