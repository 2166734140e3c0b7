package proto

import "github.com/tholin/craftd/internal/buf"

// Packet ids from spec.md §6 (the 1.20.1 / protocol 763 table), plus the
// supplemented TeleportConfirm (see SPEC_FULL.md "Supplemented Features").
const (
	IDHandshake = 0x00 // HS/SB

	IDStatusRequest  = 0x00 // ST/SB
	IDStatusResponse = 0x00 // ST/CB
	IDPingRequest    = 0x01 // ST/SB
	IDPingResponse   = 0x01 // ST/CB

	IDLoginStart   = 0x00 // LO/SB
	IDLoginSuccess = 0x02 // LO/CB

	IDTeleportConfirm   = 0x00 // PL/SB
	IDBlockChange        = 0x0C // PL/CB
	IDKeepAliveSB        = 0x12 // PL/SB
	IDPlayerPosition     = 0x14 // PL/SB
	IDMultiBlockChange   = 0x10 // PL/CB
	IDUnloadChunk        = 0x1D // PL/CB
	IDKeepAliveCB        = 0x21 // PL/CB
	IDChunkData          = 0x24 // PL/CB
	IDJoinGame           = 0x26 // PL/CB
	IDPlayerPosAndLook   = 0x3C // PL/CB
	IDUpdateViewPosition = 0x4E // PL/CB
)

// --- Handshaking ---

// Handshake is HS/SB 0x00.
type Handshake struct {
	ProtocolVersion int32
	Host            string
	Port            uint16
	NextState       int32
}

func (h *Handshake) PacketID() int32 { return IDHandshake }

func (h *Handshake) Encode(w *buf.Buffer) {
	w.WriteVarInt(h.ProtocolVersion)
	w.WriteString(h.Host)
	w.WriteU16(h.Port)
	w.WriteVarInt(h.NextState)
}

func decodeHandshake(r *buf.Buffer) (Packet, error) {
	h := &Handshake{}
	var err error
	if h.ProtocolVersion, err = r.ReadVarInt(); err != nil {
		return nil, err
	}
	if h.Host, err = r.ReadString(); err != nil {
		return nil, err
	}
	if h.Port, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.NextState, err = r.ReadVarInt(); err != nil {
		return nil, err
	}
	return h, nil
}

// --- Status ---

// StatusRequest is ST/SB 0x00, an empty body.
type StatusRequest struct{}

func (StatusRequest) PacketID() int32       { return IDStatusRequest }
func (StatusRequest) Encode(w *buf.Buffer)  {}

func decodeStatusRequest(r *buf.Buffer) (Packet, error) { return StatusRequest{}, nil }

// StatusResponse is ST/CB 0x00: a single JSON string.
type StatusResponse struct {
	JSON string
}

func (s *StatusResponse) PacketID() int32 { return IDStatusResponse }
func (s *StatusResponse) Encode(w *buf.Buffer) {
	w.WriteString(s.JSON)
}

func decodeStatusResponse(r *buf.Buffer) (Packet, error) {
	s := &StatusResponse{}
	var err error
	if s.JSON, err = r.ReadString(); err != nil {
		return nil, err
	}
	return s, nil
}

// PingRequest is ST/SB 0x01.
type PingRequest struct{ Payload int64 }

func (p *PingRequest) PacketID() int32      { return IDPingRequest }
func (p *PingRequest) Encode(w *buf.Buffer) { w.WriteI64(p.Payload) }

func decodePingRequest(r *buf.Buffer) (Packet, error) {
	p := &PingRequest{}
	var err error
	if p.Payload, err = r.ReadI64(); err != nil {
		return nil, err
	}
	return p, nil
}

// PingResponse is ST/CB 0x01.
type PingResponse struct{ Payload int64 }

func (p *PingResponse) PacketID() int32      { return IDPingResponse }
func (p *PingResponse) Encode(w *buf.Buffer) { w.WriteI64(p.Payload) }

func decodePingResponse(r *buf.Buffer) (Packet, error) {
	p := &PingResponse{}
	var err error
	if p.Payload, err = r.ReadI64(); err != nil {
		return nil, err
	}
	return p, nil
}

// --- Login ---

// LoginStart is LO/SB 0x00.
type LoginStart struct {
	Name string
	UUID [16]byte
}

func (l *LoginStart) PacketID() int32 { return IDLoginStart }
func (l *LoginStart) Encode(w *buf.Buffer) {
	w.WriteString(l.Name)
	w.WriteUUID(l.UUID)
}

func decodeLoginStart(r *buf.Buffer) (Packet, error) {
	l := &LoginStart{}
	var err error
	if l.Name, err = r.ReadString(); err != nil {
		return nil, err
	}
	if l.UUID, err = r.ReadUUID(); err != nil {
		return nil, err
	}
	return l, nil
}

// LoginSuccess is LO/CB 0x02.
type LoginSuccess struct {
	UUID     [16]byte
	Username string
}

func (l *LoginSuccess) PacketID() int32 { return IDLoginSuccess }
func (l *LoginSuccess) Encode(w *buf.Buffer) {
	w.WriteUUID(l.UUID)
	w.WriteString(l.Username)
	w.WriteVarInt(0) // number of properties, always zero here
}

func decodeLoginSuccess(r *buf.Buffer) (Packet, error) {
	l := &LoginSuccess{}
	var err error
	if l.UUID, err = r.ReadUUID(); err != nil {
		return nil, err
	}
	if l.Username, err = r.ReadString(); err != nil {
		return nil, err
	}
	if _, err = r.ReadVarInt(); err != nil {
		return nil, err
	}
	return l, nil
}

// --- Play ---

// KeepAliveCB is PL/CB 0x21.
type KeepAliveCB struct{ ID int64 }

func (k *KeepAliveCB) PacketID() int32      { return IDKeepAliveCB }
func (k *KeepAliveCB) Encode(w *buf.Buffer) { w.WriteI64(k.ID) }

func decodeKeepAliveCB(r *buf.Buffer) (Packet, error) {
	k := &KeepAliveCB{}
	var err error
	if k.ID, err = r.ReadI64(); err != nil {
		return nil, err
	}
	return k, nil
}

// KeepAliveSB is PL/SB 0x12.
type KeepAliveSB struct{ ID int64 }

func (k *KeepAliveSB) PacketID() int32      { return IDKeepAliveSB }
func (k *KeepAliveSB) Encode(w *buf.Buffer) { w.WriteI64(k.ID) }

func decodeKeepAliveSB(r *buf.Buffer) (Packet, error) {
	k := &KeepAliveSB{}
	var err error
	if k.ID, err = r.ReadI64(); err != nil {
		return nil, err
	}
	return k, nil
}

// JoinGame is PL/CB 0x26.
type JoinGame struct {
	EntityID            int32
	Hardcore             bool
	Gamemode             uint8
	PreviousGamemode      uint8
	Worlds                []string
	DimensionType        string
	DimensionName        string
	HashedSeed           int64
	MaxPlayers           int32
	ViewDistance         int32
	SimulationDistance   int32
	ReducedDebugInfo     bool
	EnableRespawnScreen  bool
	IsDebug              bool
	IsFlat               bool
}

func (j *JoinGame) PacketID() int32 { return IDJoinGame }
func (j *JoinGame) Encode(w *buf.Buffer) {
	w.WriteI32(j.EntityID)
	w.WriteBool(j.Hardcore)
	w.WriteU8(j.Gamemode)
	w.WriteU8(j.PreviousGamemode)
	w.WriteVarInt(int32(len(j.Worlds)))
	for _, world := range j.Worlds {
		w.WriteString(world)
	}
	w.WriteString(j.DimensionType)
	w.WriteString(j.DimensionName)
	w.WriteI64(j.HashedSeed)
	w.WriteVarInt(j.MaxPlayers)
	w.WriteVarInt(j.ViewDistance)
	w.WriteVarInt(j.SimulationDistance)
	w.WriteBool(j.ReducedDebugInfo)
	w.WriteBool(j.EnableRespawnScreen)
	w.WriteBool(j.IsDebug)
	w.WriteBool(j.IsFlat)
}

func decodeJoinGame(r *buf.Buffer) (Packet, error) {
	j := &JoinGame{}
	var err error
	if j.EntityID, err = r.ReadI32(); err != nil {
		return nil, err
	}
	if j.Hardcore, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if j.Gamemode, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if j.PreviousGamemode, err = r.ReadU8(); err != nil {
		return nil, err
	}
	n, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	j.Worlds = make([]string, n)
	for i := range j.Worlds {
		if j.Worlds[i], err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	if j.DimensionType, err = r.ReadString(); err != nil {
		return nil, err
	}
	if j.DimensionName, err = r.ReadString(); err != nil {
		return nil, err
	}
	if j.HashedSeed, err = r.ReadI64(); err != nil {
		return nil, err
	}
	if j.MaxPlayers, err = r.ReadVarInt(); err != nil {
		return nil, err
	}
	if j.ViewDistance, err = r.ReadVarInt(); err != nil {
		return nil, err
	}
	if j.SimulationDistance, err = r.ReadVarInt(); err != nil {
		return nil, err
	}
	if j.ReducedDebugInfo, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if j.EnableRespawnScreen, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if j.IsDebug, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if j.IsFlat, err = r.ReadBool(); err != nil {
		return nil, err
	}
	return j, nil
}

// PlayerPosition is PL/SB 0x14.
type PlayerPosition struct {
	X, Y, Z  float64
	OnGround bool
}

func (p *PlayerPosition) PacketID() int32 { return IDPlayerPosition }
func (p *PlayerPosition) Encode(w *buf.Buffer) {
	w.WriteF64(p.X)
	w.WriteF64(p.Y)
	w.WriteF64(p.Z)
	w.WriteBool(p.OnGround)
}

func decodePlayerPosition(r *buf.Buffer) (Packet, error) {
	p := &PlayerPosition{}
	var err error
	if p.X, err = r.ReadF64(); err != nil {
		return nil, err
	}
	if p.Y, err = r.ReadF64(); err != nil {
		return nil, err
	}
	if p.Z, err = r.ReadF64(); err != nil {
		return nil, err
	}
	if p.OnGround, err = r.ReadBool(); err != nil {
		return nil, err
	}
	return p, nil
}

// PlayerPositionAndLook is PL/CB 0x3C.
type PlayerPositionAndLook struct {
	X, Y, Z      float64
	Yaw, Pitch   float32
	Flags        uint8
	TeleportID   int32
	DismountVehicle bool
}

func (p *PlayerPositionAndLook) PacketID() int32 { return IDPlayerPosAndLook }
func (p *PlayerPositionAndLook) Encode(w *buf.Buffer) {
	w.WriteF64(p.X)
	w.WriteF64(p.Y)
	w.WriteF64(p.Z)
	w.WriteF32(p.Yaw)
	w.WriteF32(p.Pitch)
	w.WriteU8(p.Flags)
	w.WriteVarInt(p.TeleportID)
	w.WriteBool(p.DismountVehicle)
}

func decodePlayerPosAndLook(r *buf.Buffer) (Packet, error) {
	p := &PlayerPositionAndLook{}
	var err error
	if p.X, err = r.ReadF64(); err != nil {
		return nil, err
	}
	if p.Y, err = r.ReadF64(); err != nil {
		return nil, err
	}
	if p.Z, err = r.ReadF64(); err != nil {
		return nil, err
	}
	if p.Yaw, err = r.ReadF32(); err != nil {
		return nil, err
	}
	if p.Pitch, err = r.ReadF32(); err != nil {
		return nil, err
	}
	if p.Flags, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.TeleportID, err = r.ReadVarInt(); err != nil {
		return nil, err
	}
	if p.DismountVehicle, err = r.ReadBool(); err != nil {
		return nil, err
	}
	return p, nil
}

// TeleportConfirm is the supplemented PL/SB 0x00 (see SPEC_FULL.md).
type TeleportConfirm struct{ TeleportID int32 }

func (t *TeleportConfirm) PacketID() int32      { return IDTeleportConfirm }
func (t *TeleportConfirm) Encode(w *buf.Buffer) { w.WriteVarInt(t.TeleportID) }

func decodeTeleportConfirm(r *buf.Buffer) (Packet, error) {
	t := &TeleportConfirm{}
	var err error
	if t.TeleportID, err = r.ReadVarInt(); err != nil {
		return nil, err
	}
	return t, nil
}

// ChunkData is PL/CB 0x24.
type ChunkData struct {
	ChunkX, ChunkZ int32
	Data           []byte
	BlockEntities  []uint64
}

func (c *ChunkData) PacketID() int32 { return IDChunkData }
func (c *ChunkData) Encode(w *buf.Buffer) {
	w.WriteI32(c.ChunkX)
	w.WriteI32(c.ChunkZ)
	w.WriteVarInt(int32(len(c.Data)))
	w.WriteBytes(c.Data)
	w.WriteVarInt(int32(len(c.BlockEntities)))
	for _, be := range c.BlockEntities {
		w.WriteU64(be)
	}
}

func decodeChunkData(r *buf.Buffer) (Packet, error) {
	c := &ChunkData{}
	var err error
	if c.ChunkX, err = r.ReadI32(); err != nil {
		return nil, err
	}
	if c.ChunkZ, err = r.ReadI32(); err != nil {
		return nil, err
	}
	n, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if c.Data, err = r.ReadBytes(int(n)); err != nil {
		return nil, err
	}
	beCount, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	c.BlockEntities = make([]uint64, beCount)
	for i := range c.BlockEntities {
		if c.BlockEntities[i], err = r.ReadU64(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// UnloadChunk is PL/CB 0x1D.
type UnloadChunk struct{ ChunkX, ChunkZ int32 }

func (u *UnloadChunk) PacketID() int32 { return IDUnloadChunk }
func (u *UnloadChunk) Encode(w *buf.Buffer) {
	w.WriteI32(u.ChunkX)
	w.WriteI32(u.ChunkZ)
}

func decodeUnloadChunk(r *buf.Buffer) (Packet, error) {
	u := &UnloadChunk{}
	var err error
	if u.ChunkX, err = r.ReadI32(); err != nil {
		return nil, err
	}
	if u.ChunkZ, err = r.ReadI32(); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateViewPosition is PL/CB 0x4E.
type UpdateViewPosition struct{ ChunkX, ChunkZ int32 }

func (u *UpdateViewPosition) PacketID() int32 { return IDUpdateViewPosition }
func (u *UpdateViewPosition) Encode(w *buf.Buffer) {
	w.WriteVarInt(u.ChunkX)
	w.WriteVarInt(u.ChunkZ)
}

func decodeUpdateViewPosition(r *buf.Buffer) (Packet, error) {
	u := &UpdateViewPosition{}
	var err error
	if u.ChunkX, err = r.ReadVarInt(); err != nil {
		return nil, err
	}
	if u.ChunkZ, err = r.ReadVarInt(); err != nil {
		return nil, err
	}
	return u, nil
}

// BlockChange is PL/CB 0x0C.
type BlockChange struct {
	PackedPos  uint64
	BlockState int32
}

func (b *BlockChange) PacketID() int32 { return IDBlockChange }
func (b *BlockChange) Encode(w *buf.Buffer) {
	w.WriteU64(b.PackedPos)
	w.WriteVarInt(b.BlockState)
}

func decodeBlockChange(r *buf.Buffer) (Packet, error) {
	b := &BlockChange{}
	var err error
	if b.PackedPos, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if b.BlockState, err = r.ReadVarInt(); err != nil {
		return nil, err
	}
	return b, nil
}

// MultiBlockChange is PL/CB 0x10.
type MultiBlockChange struct {
	ChunkSection uint64
	Changes      []int32 // each is a packed local-pos+state VarInt
}

func (m *MultiBlockChange) PacketID() int32 { return IDMultiBlockChange }
func (m *MultiBlockChange) Encode(w *buf.Buffer) {
	w.WriteU64(m.ChunkSection)
	w.WriteVarInt(int32(len(m.Changes)))
	for _, c := range m.Changes {
		w.WriteVarInt(c)
	}
}

func decodeMultiBlockChange(r *buf.Buffer) (Packet, error) {
	m := &MultiBlockChange{}
	var err error
	if m.ChunkSection, err = r.ReadU64(); err != nil {
		return nil, err
	}
	n, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	m.Changes = make([]int32, n)
	for i := range m.Changes {
		if m.Changes[i], err = r.ReadVarInt(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// PackMultiBlockLocal packs a section-local (x,y,z) with a block state into
// MultiBlockChange's per-entry VarInt: block state in the bits above bit 12,
// then 4 bits x, 4 bits z, and y in the low 4 bits — matches the 1.20.1 wire
// layout.
func PackMultiBlockLocal(x, y, z uint8, state int32) int32 {
	return int32(uint32(state)<<12 | uint32(x&0xF)<<8 | uint32(z&0xF)<<4 | uint32(y&0xF))
}
