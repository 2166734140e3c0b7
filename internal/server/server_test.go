package server

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tholin/craftd/internal/buf"
	"github.com/tholin/craftd/internal/config"
	"github.com/tholin/craftd/internal/proto"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Logging.Console = false

	srv, err := New(cfg, t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// New has already bound the listener; this only guards against a nil
	// acceptor
	for i := 0; i < 100; i++ {
		if srv.acceptor != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	return srv
}

func TestServerStatusHandshake(t *testing.T) {
	srv := newTestServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	hsFrame := proto.EncodeFrame(&proto.Handshake{
		ProtocolVersion: proto.ProtocolVersion,
		Host:            "localhost",
		Port:            25565,
		NextState:       1,
	})
	_, err = conn.Write(hsFrame)
	require.NoError(t, err)

	reqFrame := proto.EncodeFrame(proto.StatusRequest{})
	_, err = conn.Write(reqFrame)
	require.NoError(t, err)

	resp := readFrame(t, conn)
	b := buf.NewBuffer(resp)
	id, err := b.ReadVarInt()
	require.NoError(t, err)
	require.Equal(t, int32(proto.IDStatusResponse), id)
	json, err := b.ReadString()
	require.NoError(t, err)
	require.Contains(t, json, "\"protocol\":763")

	pingFrame := proto.EncodeFrame(&proto.PingRequest{Payload: 99})
	_, err = conn.Write(pingFrame)
	require.NoError(t, err)

	pong := readFrame(t, conn)
	pb := buf.NewBuffer(pong)
	pid, err := pb.ReadVarInt()
	require.NoError(t, err)
	require.Equal(t, int32(proto.IDPingResponse), pid)
	payload, err := pb.ReadI64()
	require.NoError(t, err)
	require.Equal(t, int64(99), payload)
}

func TestServerStatusVersionNameIsMinecraftVersionNotServerName(t *testing.T) {
	srv := newTestServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(proto.EncodeFrame(&proto.Handshake{
		ProtocolVersion: proto.ProtocolVersion,
		Host:            "localhost",
		Port:            25565,
		NextState:       1,
	}))
	require.NoError(t, err)
	_, err = conn.Write(proto.EncodeFrame(proto.StatusRequest{}))
	require.NoError(t, err)

	resp := readFrame(t, conn)
	b := buf.NewBuffer(resp)
	_, err = b.ReadVarInt()
	require.NoError(t, err)
	json, err := b.ReadString()
	require.NoError(t, err)
	require.Contains(t, json, `"version":{"name":"1.20.1","protocol":763}`)
	require.NotContains(t, json, srv.cfg.Server.Name)
}

func TestServerClosesConnectionOnProtocolVersionMismatch(t *testing.T) {
	srv := newTestServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(proto.EncodeFrame(&proto.Handshake{
		ProtocolVersion: proto.ProtocolVersion + 1,
		Host:            "localhost",
		Port:            25565,
		NextState:       1,
	}))
	require.NoError(t, err)
	_, err = conn.Write(proto.EncodeFrame(proto.StatusRequest{}))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestServerSecondLoginWithSameUsernameIsClosed(t *testing.T) {
	srv := newTestServer(t)

	first, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer first.Close()
	_, err = first.Write(proto.EncodeFrame(&proto.Handshake{
		ProtocolVersion: proto.ProtocolVersion, Host: "localhost", Port: 25565, NextState: 2,
	}))
	require.NoError(t, err)
	_, err = first.Write(proto.EncodeFrame(&proto.LoginStart{Name: "steve"}))
	require.NoError(t, err)
	_ = readFrame(t, first) // LoginSuccess
	_ = readFrame(t, first) // JoinGame
	require.Eventually(t, func() bool { return srv.players.Len() == 1 }, time.Second, 5*time.Millisecond)

	second, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer second.Close()
	_, err = second.Write(proto.EncodeFrame(&proto.Handshake{
		ProtocolVersion: proto.ProtocolVersion, Host: "localhost", Port: 25565, NextState: 2,
	}))
	require.NoError(t, err)
	_, err = second.Write(proto.EncodeFrame(&proto.LoginStart{Name: "steve"}))
	require.NoError(t, err)

	_ = readFrame(t, second) // LoginSuccess is still sent before the duplicate check
	_ = second.SetReadDeadline(time.Now().Add(time.Second))
	discard := make([]byte, 1)
	_, err = second.Read(discard)
	require.ErrorIs(t, err, io.EOF) // but JoinGame never follows; connection closes

	require.Equal(t, 1, srv.players.Len())
}

func TestServerRejectsInvalidUsername(t *testing.T) {
	srv := newTestServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(proto.EncodeFrame(&proto.Handshake{
		ProtocolVersion: proto.ProtocolVersion, Host: "localhost", Port: 25565, NextState: 2,
	}))
	require.NoError(t, err)
	_, err = conn.Write(proto.EncodeFrame(&proto.LoginStart{Name: "a"}))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	discard := make([]byte, 1)
	_, err = conn.Read(discard)
	require.ErrorIs(t, err, io.EOF)
}

func TestServerLoginAndJoin(t *testing.T) {
	srv := newTestServer(t)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	hsFrame := proto.EncodeFrame(&proto.Handshake{
		ProtocolVersion: proto.ProtocolVersion,
		Host:            "localhost",
		Port:            25565,
		NextState:       2,
	})
	_, err = conn.Write(hsFrame)
	require.NoError(t, err)

	loginFrame := proto.EncodeFrame(&proto.LoginStart{Name: "steve"})
	_, err = conn.Write(loginFrame)
	require.NoError(t, err)

	success := readFrame(t, conn)
	sb := buf.NewBuffer(success)
	id, err := sb.ReadVarInt()
	require.NoError(t, err)
	require.Equal(t, int32(proto.IDLoginSuccess), id)

	joinFrame := readFrame(t, conn)
	jb := buf.NewBuffer(joinFrame)
	jid, err := jb.ReadVarInt()
	require.NoError(t, err)
	require.Equal(t, int32(proto.IDJoinGame), jid)

	require.Eventually(t, func() bool { return srv.players.Len() == 1 }, time.Second, 5*time.Millisecond)
}

// readFrame reads one length-prefixed frame's body (VarInt id + payload,
// i.e. everything after the length prefix) off conn.
func readFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	lenBuf := make([]byte, 0, 5)
	var length int32
	var shift uint
	for {
		b := make([]byte, 1)
		_, err := conn.Read(b)
		require.NoError(t, err)
		lenBuf = append(lenBuf, b[0])
		length |= int32(b[0]&0x7F) << shift
		shift += 7
		if b[0]&0x80 == 0 {
			break
		}
	}

	body := make([]byte, length)
	total := 0
	for total < len(body) {
		n, err := conn.Read(body[total:])
		require.NoError(t, err)
		total += n
	}
	return body
}
