// Package region implements the .mca-shaped region-file persistence format
// from spec.md §4.6: a 4 KiB location table, a 4 KiB timestamp table, and
// 4 KiB-aligned chunk payloads, grouped into 32x32-chunk regions.
package region

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tholin/craftd/internal/world"
)

const (
	sectorSize    = 4096
	headerSectors = 2 // location table + timestamp table
	tableEntries  = 1024
)

// Manager opens and caches region files under <worldDir>/region/.
type Manager struct {
	dir string

	mu    sync.Mutex
	files map[world.RegionCoord]*regionFile
}

// NewManager ensures the region directory exists and returns a Manager.
func NewManager(worldDir string) (*Manager, error) {
	dir := filepath.Join(worldDir, "region")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Manager{dir: dir, files: make(map[world.RegionCoord]*regionFile)}, nil
}

func (m *Manager) regionFile(rc world.RegionCoord) (*regionFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rf, ok := m.files[rc]; ok {
		return rf, nil
	}
	path := filepath.Join(m.dir, fmt.Sprintf("r.%d.%d.mca", rc.X, rc.Z))
	rf, err := openRegionFile(path)
	if err != nil {
		return nil, err
	}
	m.files[rc] = rf
	return rf, nil
}

// Load implements world.Persistence.
func (m *Manager) Load(coord world.ChunkCoord) (*world.Chunk, bool, error) {
	rf, err := m.regionFile(coord.Region())
	if err != nil {
		return nil, false, err
	}
	payload, found, err := rf.read(coord)
	if err != nil || !found {
		return nil, found, err
	}
	c, err := decodeChunk(coord, payload)
	if err != nil {
		return nil, false, err
	}
	c.ClearDirty()
	return c, true, nil
}

// Save implements world.Persistence.
func (m *Manager) Save(c *world.Chunk) error {
	rf, err := m.regionFile(c.Coord.Region())
	if err != nil {
		return err
	}
	payload := encodeChunk(c)
	return rf.write(c.Coord, payload, time.Now())
}

// Close releases every open region file handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, rf := range m.files {
		if err := rf.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// regionFile is one open .mca file: header + sector-aligned chunk bodies.
type regionFile struct {
	mu   sync.Mutex
	f    *os.File
	locs [tableEntries]uint32 // (sectorOffset:24 | sectorCount:8)
	ts   [tableEntries]uint32
}

func openRegionFile(path string) (*regionFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	rf := &regionFile{f: f}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() < headerSectors*sectorSize {
		if err := rf.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		return rf, nil
	}

	header := make([]byte, headerSectors*sectorSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		f.Close()
		return nil, err
	}
	for i := 0; i < tableEntries; i++ {
		rf.locs[i] = binary.BigEndian.Uint32(header[i*4 : i*4+4])
	}
	for i := 0; i < tableEntries; i++ {
		off := sectorSize + i*4
		rf.ts[i] = binary.BigEndian.Uint32(header[off : off+4])
	}
	return rf, nil
}

func (rf *regionFile) writeHeader() error {
	header := make([]byte, headerSectors*sectorSize)
	for i := 0; i < tableEntries; i++ {
		binary.BigEndian.PutUint32(header[i*4:i*4+4], rf.locs[i])
	}
	for i := 0; i < tableEntries; i++ {
		off := sectorSize + i*4
		binary.BigEndian.PutUint32(header[off:off+4], rf.ts[i])
	}
	_, err := rf.f.WriteAt(header, 0)
	return err
}

func (rf *regionFile) read(coord world.ChunkCoord) ([]byte, bool, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	idx := coord.RegionTableIndex()
	loc := rf.locs[idx]
	if loc == 0 {
		return nil, false, nil
	}
	sectorOffset := loc >> 8
	sectorCount := loc & 0xFF

	buf := make([]byte, int(sectorCount)*sectorSize)
	if _, err := rf.f.ReadAt(buf, int64(sectorOffset)*sectorSize); err != nil {
		return nil, false, err
	}

	if len(buf) < 4 {
		return nil, false, fmt.Errorf("region: truncated chunk payload")
	}
	payloadLen := binary.BigEndian.Uint32(buf[:4])
	if int(payloadLen) > len(buf)-4 {
		return nil, false, fmt.Errorf("region: payload length %d exceeds sectors", payloadLen)
	}
	return buf[4 : 4+payloadLen], true, nil
}

func (rf *regionFile) write(coord world.ChunkCoord, payload []byte, ts time.Time) error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	framed := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(framed[:4], uint32(len(payload)))
	copy(framed[4:], payload)

	sectorCount := (len(framed) + sectorSize - 1) / sectorSize
	if sectorCount == 0 {
		sectorCount = 1
	}
	padded := make([]byte, sectorCount*sectorSize)
	copy(padded, framed)

	info, err := rf.f.Stat()
	if err != nil {
		return err
	}
	appendOffset := info.Size()
	if appendOffset < headerSectors*sectorSize {
		appendOffset = headerSectors * sectorSize
	}
	// Always append a new copy; append-only avoids overlapping an old
	// chunk's sectors that a concurrent reader might still be using.
	if _, err := rf.f.WriteAt(padded, appendOffset); err != nil {
		return err
	}

	sectorOffset := appendOffset / sectorSize
	idx := coord.RegionTableIndex()
	rf.locs[idx] = uint32(sectorOffset)<<8 | uint32(sectorCount)
	rf.ts[idx] = uint32(ts.Unix())

	return rf.writeHeader()
}

func (rf *regionFile) close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.f.Close()
}
