package network

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tholin/craftd/internal/buf"
	"github.com/tholin/craftd/internal/logging"
	"github.com/tholin/craftd/internal/proto"
)

func newTestConnPair(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	log := logging.New("error", nil)
	reg := proto.NewRegistry()
	c := New(server, reg, nil, log)
	return c, client
}

func TestConnectionSendThenPeerDecodesFrame(t *testing.T) {
	c, client := newTestConnPair(t)
	defer c.Close()

	done := make(chan []byte, 1)
	go func() {
		hdr := make([]byte, 64)
		n, err := client.Read(hdr)
		require.NoError(t, err)
		done <- hdr[:n]
	}()

	require.NoError(t, c.Send(&proto.PingResponse{Payload: 42}))

	raw := <-done
	b := buf.NewBuffer(raw)
	_, err := b.ReadVarInt() // frame length
	require.NoError(t, err)
	id, err := b.ReadVarInt()
	require.NoError(t, err)
	require.Equal(t, int32(proto.IDPingResponse), id)
	payload, err := b.ReadI64()
	require.NoError(t, err)
	require.Equal(t, int64(42), payload)
}

func TestConnectionReadPacketRoundTrip(t *testing.T) {
	c, client := newTestConnPair(t)
	defer c.Close()
	c.SetPhase(proto.Handshaking)

	frame := proto.EncodeFrame(&proto.Handshake{
		ProtocolVersion: 763,
		Host:            "localhost",
		Port:            25565,
		NextState:       2,
	})

	go func() {
		_, _ = client.Write(frame)
	}()

	pkt, err := c.ReadPacket()
	require.NoError(t, err)
	hs, ok := pkt.(*proto.Handshake)
	require.True(t, ok)
	require.Equal(t, int32(763), hs.ProtocolVersion)
	require.Equal(t, int32(2), hs.NextState)
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	c, _ := newTestConnPair(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	default:
		t.Fatal("expected Done channel closed")
	}
}

func TestConnectionSendAfterCloseFails(t *testing.T) {
	c, _ := newTestConnPair(t)
	require.NoError(t, c.Close())
	err := c.Send(&proto.PingResponse{Payload: 1})
	require.ErrorIs(t, err, ErrClosed)
}

func TestConnectionTickSendsKeepAliveInPlayPhase(t *testing.T) {
	c, client := newTestConnPair(t)
	defer c.Close()
	c.SetPhase(proto.Play)

	received := make(chan proto.Packet, 1)
	go func() {
		raw := make([]byte, 256)
		n, err := client.Read(raw)
		if err != nil {
			return
		}
		b := buf.NewBuffer(raw[:n])
		_, _ = b.ReadVarInt() // length
		id, _ := b.ReadVarInt()
		if id == proto.IDKeepAliveCB {
			ka := &proto.KeepAliveCB{}
			v, _ := b.ReadI64()
			ka.ID = v
			received <- ka
		}
	}()

	future := time.Now().Add(KeepAliveInterval + time.Second)
	c.Tick(future)

	select {
	case pkt := <-received:
		ka, ok := pkt.(*proto.KeepAliveCB)
		require.True(t, ok)
		require.NotZero(t, ka.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected keep-alive packet")
	}
}
