// Package player implements the player session and registry from spec.md
// §4.5/§4.7: identity, location, gamemode, vitals, the per-player chunk view,
// and offline UUID derivation.
package player

import (
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tholin/craftd/internal/proto"
	"github.com/tholin/craftd/internal/world"
)

// offlineNamespace is a fixed namespace UUID so OfflineUUID's MD5-derived
// ids never collide with a client-supplied namespace by chance.
var offlineNamespace = uuid.MustParse("51389694-7354-421a-8459-9a2c8c5d07be")

// usernamePattern is spec.md §4.3's login-name policy: 3-16 characters,
// letters/digits/underscore only.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// ValidUsername reports whether name satisfies the login-name policy.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// Location mirrors entity.Location to avoid an internal/entity->internal/player
// import cycle; the two are kept in sync by the server wiring layer.
type Location struct {
	X, Y, Z    float64
	Yaw, Pitch float32
}

func (l Location) Chunk() world.ChunkCoord {
	return world.CoordToChunk(int32(l.X), int32(l.Z))
}

// Gamemode mirrors spec.md §3's four gamemodes.
type Gamemode uint8

const (
	Survival Gamemode = iota
	Creative
	Adventure
	Spectator
)

// ConnHandle is the minimal surface the player package needs from a network
// connection, kept here (not imported from internal/network) to avoid a
// player<->network import cycle; internal/network.Connection satisfies it.
type ConnHandle interface {
	Send(p proto.Packet) error
	RemoteAddr() string
	Close() error
}

// Player is one connected session's server-side state.
type Player struct {
	mu sync.Mutex

	Conn     ConnHandle
	UUID     [16]byte
	Username string
	EntityID int32

	Loc      Location
	SpawnLoc Location
	Gamemode Gamemode

	Health       float32
	Food         int32
	Saturation   float32

	ViewDistance int
	LoadedChunks map[world.ChunkCoord]struct{}

	LastTeleportID int32
	PendingTeleport bool

	Online       bool
	JoinedAt     time.Time
	LastSeen     time.Time
	LastKeepAlive int64
}

// NewPlayer constructs a session with the view distance clamped into
// [2,32] (spec.md §4.7) and full vitals.
func NewPlayer(conn ConnHandle, uuid [16]byte, username string, entityID int32, viewDistance int) *Player {
	return &Player{
		Conn:         conn,
		UUID:         uuid,
		Username:     username,
		EntityID:     entityID,
		Gamemode:     Survival,
		Health:       20,
		Food:         20,
		Saturation:   5,
		ViewDistance: clampView(viewDistance),
		LoadedChunks: make(map[world.ChunkCoord]struct{}),
		Online:       true,
		JoinedAt:     time.Now(),
		LastSeen:     time.Now(),
	}
}

func clampView(v int) int {
	if v < 2 {
		return 2
	}
	if v > 32 {
		return 32
	}
	return v
}

// Touch records activity for the offline-cleanup timer.
func (p *Player) Touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastSeen = time.Now()
}

// IdleFor returns how long it has been since the player was last seen.
func (p *Player) IdleFor() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.LastSeen)
}

// ViewDiff computes the disc-shaped chunk-view diff for a move from the
// player's current loaded set to being centered at newCenter (spec.md §4.7):
// chunks within ViewDistance of newCenter not already loaded should be sent,
// loaded chunks now outside the disc should be unloaded. toLoad is ordered by
// increasing squared distance from newCenter, per spec.md §4.7's streaming
// order (nearest chunks first).
func (p *Player) ViewDiff(newCenter world.ChunkCoord) (toLoad, toUnload []world.ChunkCoord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := int32(p.ViewDistance)
	rSquared := int64(r) * int64(r)
	want := make(map[world.ChunkCoord]struct{})
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			c := world.ChunkCoord{X: newCenter.X + dx, Z: newCenter.Z + dz}
			if c.DistSquared(newCenter) <= rSquared {
				want[c] = struct{}{}
			}
		}
	}

	for c := range want {
		if _, ok := p.LoadedChunks[c]; !ok {
			toLoad = append(toLoad, c)
		}
	}
	for c := range p.LoadedChunks {
		if _, ok := want[c]; !ok {
			toUnload = append(toUnload, c)
		}
	}

	sort.Slice(toLoad, func(i, j int) bool {
		return toLoad[i].DistSquared(newCenter) < toLoad[j].DistSquared(newCenter)
	})
	return toLoad, toUnload
}

// ApplyViewDiff commits a previously computed diff into LoadedChunks.
func (p *Player) ApplyViewDiff(toLoad, toUnload []world.ChunkCoord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range toLoad {
		p.LoadedChunks[c] = struct{}{}
	}
	for _, c := range toUnload {
		delete(p.LoadedChunks, c)
	}
}

// SetGamemode updates the player's gamemode.
func (p *Player) SetGamemode(g Gamemode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Gamemode = g
}

// MarkOffline flips Online false; the registry still holds the record until
// cleanup runs, so reconnect-within-timeout can rejoin the same session state
// in a richer implementation.
func (p *Player) MarkOffline() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Online = false
	p.LastSeen = time.Now()
}

// OfflineUUID derives a deterministic per-username id for servers running
// with online_mode=false (spec.md §4.3/§9): a version-3 (namespace+MD5)
// UUID over the username, via google/uuid's NewMD5. This is intentionally
// NOT the official Mojang "OfflinePlayer:<name>" algorithm (different
// namespace), documented in the spec as weak and non-cryptographic — good
// enough to keep a given username stable across restarts, not a security
// boundary.
func OfflineUUID(username string) [16]byte {
	return uuid.NewMD5(offlineNamespace, []byte(username))
}
