// Package proto implements the Minecraft Java Edition 1.20.1 (protocol 763)
// packet model: the four-phase state machine, the (phase, direction, id)
// packet registry, and the typed packet variants from the wire table.
package proto

import (
	"fmt"

	"github.com/tholin/craftd/internal/buf"
)

// ProtocolVersion is the protocol number this server speaks (1.20.1).
const ProtocolVersion = 763

// MinecraftVersionName is the client-facing version string for that
// protocol number, reported in StatusResponse's version.name (spec.md §4.2
// boundary scenario 3) — distinct from the server's configurable display
// name, which belongs in the description field instead.
const MinecraftVersionName = "1.20.1"

// Phase is one of the four connection phases. A connection only ever moves
// forward along HANDSHAKING -> (STATUS | LOGIN) -> PLAY.
type Phase int

const (
	Handshaking Phase = iota
	Status
	Login
	Play
)

func (p Phase) String() string {
	switch p {
	case Handshaking:
		return "HANDSHAKING"
	case Status:
		return "STATUS"
	case Login:
		return "LOGIN"
	case Play:
		return "PLAY"
	default:
		return "UNKNOWN"
	}
}

// Direction distinguishes client-to-server from server-to-client packets.
type Direction int

const (
	Serverbound Direction = iota
	Clientbound
)

// Packet is a decoded, typed wire packet. Encode must append exactly the
// packet's body (not including the id or the frame length) to w.
type Packet interface {
	// PacketID returns the numeric id this packet encodes under.
	PacketID() int32
	Encode(w *buf.Buffer)
}

// Decoder builds a typed Packet from a packet body.
type Decoder func(r *buf.Buffer) (Packet, error)

// ErrUnknownPacket is returned by Registry.Decode for an id with no
// registered decoder; per spec.md §4.2 this is not fatal, the caller drops
// the packet and keeps the connection open.
type ErrUnknownPacket struct {
	Phase     Phase
	Direction Direction
	ID        int32
}

func (e *ErrUnknownPacket) Error() string {
	return fmt.Sprintf("proto: unknown packet %s/%d id=0x%02X", e.Phase, e.Direction, e.ID)
}

// Registry is the three-level (phase, direction, id) -> decoder mapping.
// It is populated once by NewRegistry and is read-only thereafter, so
// lookups need no lock.
type Registry struct {
	table map[Phase]map[Direction]map[int32]Decoder
}

// NewRegistry builds and populates the fixed packet set from the wire table.
func NewRegistry() *Registry {
	r := &Registry{table: make(map[Phase]map[Direction]map[int32]Decoder)}
	r.register(Handshaking, Serverbound, IDHandshake, decodeHandshake)
	r.register(Status, Serverbound, IDStatusRequest, decodeStatusRequest)
	r.register(Status, Clientbound, IDStatusResponse, decodeStatusResponse)
	r.register(Status, Serverbound, IDPingRequest, decodePingRequest)
	r.register(Status, Clientbound, IDPingResponse, decodePingResponse)
	r.register(Login, Serverbound, IDLoginStart, decodeLoginStart)
	r.register(Login, Clientbound, IDLoginSuccess, decodeLoginSuccess)
	r.register(Play, Clientbound, IDKeepAliveCB, decodeKeepAliveCB)
	r.register(Play, Serverbound, IDKeepAliveSB, decodeKeepAliveSB)
	r.register(Play, Clientbound, IDJoinGame, decodeJoinGame)
	r.register(Play, Serverbound, IDPlayerPosition, decodePlayerPosition)
	r.register(Play, Clientbound, IDPlayerPosAndLook, decodePlayerPosAndLook)
	r.register(Play, Serverbound, IDTeleportConfirm, decodeTeleportConfirm)
	r.register(Play, Clientbound, IDChunkData, decodeChunkData)
	r.register(Play, Clientbound, IDUnloadChunk, decodeUnloadChunk)
	r.register(Play, Clientbound, IDUpdateViewPosition, decodeUpdateViewPosition)
	r.register(Play, Clientbound, IDBlockChange, decodeBlockChange)
	r.register(Play, Clientbound, IDMultiBlockChange, decodeMultiBlockChange)
	return r
}

func (r *Registry) register(phase Phase, dir Direction, id int32, d Decoder) {
	byDir, ok := r.table[phase]
	if !ok {
		byDir = make(map[Direction]map[int32]Decoder)
		r.table[phase] = byDir
	}
	byID, ok := byDir[dir]
	if !ok {
		byID = make(map[int32]Decoder)
		byDir[dir] = byID
	}
	if _, exists := byID[id]; exists {
		panic(fmt.Sprintf("proto: duplicate registration for %s/%s id=0x%02X", phase, dir, id))
	}
	byID[id] = d
}

// Decode looks up the decoder active for (phase, direction, id) and decodes
// the body. A nil error with a nil packet never happens; an unregistered id
// yields *ErrUnknownPacket.
func (r *Registry) Decode(phase Phase, dir Direction, id int32, body *buf.Buffer) (Packet, error) {
	byDir, ok := r.table[phase]
	if !ok {
		return nil, &ErrUnknownPacket{phase, dir, id}
	}
	byID, ok := byDir[dir]
	if !ok {
		return nil, &ErrUnknownPacket{phase, dir, id}
	}
	dec, ok := byID[id]
	if !ok {
		return nil, &ErrUnknownPacket{phase, dir, id}
	}
	return dec(body)
}

// EncodeFrame builds the on-wire frame VarInt(len(id)+len(body)) || VarInt(id) || body.
func EncodeFrame(p Packet) []byte {
	var body buf.Buffer
	p.Encode(&body)

	idLen := bufVarIntLen(p.PacketID())
	var frame buf.Buffer
	frame.WriteVarInt(int32(idLen + body.Len()))
	frame.WriteVarInt(p.PacketID())
	frame.WriteBytes(body.Bytes())
	return frame.Bytes()
}

func bufVarIntLen(v int32) int {
	return buf.VarIntLen(v)
}
