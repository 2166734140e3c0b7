package proto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tholin/craftd/internal/buf"
)

func roundTrip(t *testing.T, p Packet, phase Phase, dir Direction, reg *Registry) {
	t.Helper()
	var body buf.Buffer
	p.Encode(&body)

	decoded, err := reg.Decode(phase, dir, p.PacketID(), &body)
	require.NoError(t, err)
	require.Equal(t, p, decoded)
	require.Equal(t, 0, body.Len(), "decode must consume exactly the body")
}

func TestPacketRoundTrips(t *testing.T) {
	reg := NewRegistry()

	roundTrip(t, &Handshake{ProtocolVersion: 763, Host: "localhost", Port: 25565, NextState: 1}, Handshaking, Serverbound, reg)
	roundTrip(t, &PingRequest{Payload: 42}, Status, Serverbound, reg)
	roundTrip(t, &PingResponse{Payload: 42}, Status, Clientbound, reg)
	roundTrip(t, &LoginStart{Name: "Alex", UUID: [16]byte{1, 2, 3}}, Login, Serverbound, reg)
	roundTrip(t, &LoginSuccess{UUID: [16]byte{4, 5, 6}, Username: "Alex"}, Login, Clientbound, reg)
	roundTrip(t, &KeepAliveCB{ID: 99}, Play, Clientbound, reg)
	roundTrip(t, &KeepAliveSB{ID: 99}, Play, Serverbound, reg)
	roundTrip(t, &PlayerPosition{X: 1, Y: 2, Z: 3, OnGround: true}, Play, Serverbound, reg)
	roundTrip(t, &PlayerPositionAndLook{X: 1, Y: 2, Z: 3, Yaw: 90, Pitch: -10, Flags: 0, TeleportID: 7}, Play, Clientbound, reg)
	roundTrip(t, &TeleportConfirm{TeleportID: 7}, Play, Serverbound, reg)
	roundTrip(t, &ChunkData{ChunkX: 1, ChunkZ: -1, Data: []byte{1, 2, 3}, BlockEntities: []uint64{10}}, Play, Clientbound, reg)
	roundTrip(t, &UnloadChunk{ChunkX: 1, ChunkZ: -1}, Play, Clientbound, reg)
	roundTrip(t, &UpdateViewPosition{ChunkX: 1, ChunkZ: -1}, Play, Clientbound, reg)
	roundTrip(t, &BlockChange{PackedPos: buf.PackPosition(1, 2, 3), BlockState: 9}, Play, Clientbound, reg)
	roundTrip(t, &MultiBlockChange{ChunkSection: 123, Changes: []int32{1, 2, 3}}, Play, Clientbound, reg)
	roundTrip(t, &JoinGame{
		EntityID: 1, Hardcore: false, Gamemode: 0, PreviousGamemode: 255,
		Worlds: []string{"minecraft:overworld"}, DimensionType: "minecraft:overworld",
		DimensionName: "minecraft:overworld", HashedSeed: 42, MaxPlayers: 10,
		ViewDistance: 10, SimulationDistance: 10,
	}, Play, Clientbound, reg)
}

func TestVarIntBoundaryEncoding(t *testing.T) {
	var b buf.Buffer
	b.WriteVarInt(300)
	require.Equal(t, "ac02", hex.EncodeToString(b.Bytes()))
}

func TestHandshakeFrameBoundaryScenario(t *testing.T) {
	// spec.md §8 scenario 2: frame length 16, id 0x00, protocol=763,
	// host="localhost", port=25565, next=1.
	raw, err := hex.DecodeString("1000FB0509" + hex.EncodeToString([]byte("localhost")) + "63DD01")
	require.NoError(t, err)

	body := buf.NewBuffer(raw)
	length, err := body.ReadVarInt()
	require.NoError(t, err)
	require.Equal(t, int32(16), length)

	id, err := body.ReadVarInt()
	require.NoError(t, err)
	require.Equal(t, int32(0x00), id)

	reg := NewRegistry()
	pkt, err := reg.Decode(Handshaking, Serverbound, id, body)
	require.NoError(t, err)

	hs := pkt.(*Handshake)
	require.Equal(t, int32(763), hs.ProtocolVersion)
	require.Equal(t, "localhost", hs.Host)
	require.Equal(t, uint16(25565), hs.Port)
	require.Equal(t, int32(1), hs.NextState)
}

func TestStatusExchangeBoundaryScenario(t *testing.T) {
	doc, err := BuildStatusJSON("1.20.1", 10, 5, "a server")
	require.NoError(t, err)
	require.Contains(t, doc, `"version":{"name":"1.20.1","protocol":763}`)

	// spec.md §8 scenario 3: "09 01 00 00 00 00 00 00 00 2A" (PingRequest, payload=42).
	raw, err := hex.DecodeString("0901000000000000002A")
	require.NoError(t, err)
	frame := buf.NewBuffer(raw)
	length, err := frame.ReadVarInt()
	require.NoError(t, err)
	require.Equal(t, int32(9), length)

	id, err := frame.ReadVarInt()
	require.NoError(t, err)
	require.Equal(t, int32(IDPingRequest), id)

	reg := NewRegistry()
	pkt, err := reg.Decode(Status, Serverbound, id, frame)
	require.NoError(t, err)
	require.Equal(t, int64(42), pkt.(*PingRequest).Payload)

	resp := &PingResponse{Payload: pkt.(*PingRequest).Payload}
	require.Equal(t, raw, EncodeFrame(resp))
}

func TestUnknownPacketIsDropNotClose(t *testing.T) {
	reg := NewRegistry()
	var empty buf.Buffer
	_, err := reg.Decode(Play, Serverbound, 0x7F, &empty)
	require.Error(t, err)
	var unknown *ErrUnknownPacket
	require.ErrorAs(t, err, &unknown)
}

func TestMultiBlockLocalPack(t *testing.T) {
	packed := PackMultiBlockLocal(1, 2, 3, 99)
	require.Equal(t, int32(99<<12|1<<8|3<<4|2), packed)
}
