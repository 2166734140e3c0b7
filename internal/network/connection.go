// Package network implements the per-connection frame loop and the listener
// from spec.md §4.3/§4.4: the four-phase state machine, a single-writer-in-
// flight send path, and the 20s/30s keep-alive cycle.
package network

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tholin/craftd/internal/buf"
	"github.com/tholin/craftd/internal/logging"
	"github.com/tholin/craftd/internal/perf"
	"github.com/tholin/craftd/internal/proto"
)

// KeepAliveInterval and KeepAliveTimeout are the PLAY-phase liveness
// parameters from spec.md §4.3.
const (
	KeepAliveInterval = 20 * time.Second
	KeepAliveTimeout  = 30 * time.Second

	maxFrameLen = 2 * 1024 * 1024 // generous upper bound against bad length prefixes
)

// ErrClosed is returned by Send once the connection has closed. ReadPacket
// on a closed connection returns the socket's own error instead.
var ErrClosed = errors.New("network: connection closed")

// Connection owns one client's socket across its full phase lifecycle.
type Connection struct {
	id       string
	conn     net.Conn
	reader   *bufio.Reader
	registry *proto.Registry
	perf     *perf.Monitor
	log      *logrus.Entry

	writeMu sync.Mutex

	phaseMu sync.Mutex
	phase   proto.Phase

	closeOnce sync.Once
	closed    chan struct{}

	lastKeepAliveSent int64 // unix nano, atomic
	lastKeepAliveSeen int64 // unix nano, atomic
	keepAliveNonce    int64 // atomic
	awaitingKeepAlive int32 // atomic bool
}

// New wraps an accepted socket. The connection starts in HANDSHAKING.
func New(conn net.Conn, registry *proto.Registry, mon *perf.Monitor, log *logging.Logger) *Connection {
	id := logging.NewConnectionID()
	now := time.Now().UnixNano()
	return &Connection{
		id:                id,
		conn:              conn,
		reader:            bufio.NewReaderSize(conn, 8192),
		registry:          registry,
		perf:              mon,
		log:               log.WithConn(id),
		phase:             proto.Handshaking,
		closed:            make(chan struct{}),
		lastKeepAliveSeen: now,
	}
}

// ID returns the connection's trace id.
func (c *Connection) ID() string { return c.id }

// RemoteAddr returns the peer's address as a string.
func (c *Connection) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Phase returns the connection's current protocol phase.
func (c *Connection) Phase() proto.Phase {
	c.phaseMu.Lock()
	defer c.phaseMu.Unlock()
	return c.phase
}

// SetPhase transitions the connection forward. Per spec.md §4.2 phases only
// ever move HANDSHAKING -> (STATUS|LOGIN) -> PLAY; callers are trusted to
// only request forward transitions (enforced by the handshake handler).
func (c *Connection) SetPhase(p proto.Phase) {
	c.phaseMu.Lock()
	c.phase = p
	c.phaseMu.Unlock()
}

// ReadPacket blocks for the next frame, decodes it against the current
// phase in the Serverbound direction, and returns it. An unknown packet id
// is reported via *proto.ErrUnknownPacket but the frame has already been
// fully consumed, so callers should log and continue reading rather than
// close the connection (spec.md §4.2).
func (c *Connection) ReadPacket() (proto.Packet, error) {
	length, err := c.readFrameLen()
	if err != nil {
		return nil, err
	}
	if length < 0 || length > maxFrameLen {
		return nil, fmt.Errorf("network: frame length %d out of range", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, err
	}

	b := buf.NewBuffer(body)
	id, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}

	if c.perf != nil {
		c.perf.RecordPacketIn(length)
	}

	pkt, err := c.registry.Decode(c.Phase(), proto.Serverbound, id, b)
	var unknown *proto.ErrUnknownPacket
	if errors.As(err, &unknown) {
		c.log.WithField("id", fmt.Sprintf("0x%02X", id)).Debug("dropping unknown packet")
		return nil, err
	}
	return pkt, err
}

func (c *Connection) readFrameLen() (int32, error) {
	var result uint32
	for i := 0; ; i++ {
		if i == 5 {
			return 0, buf.ErrOverlong
		}
		bb, err := c.reader.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(bb&0x7F) << uint(7*i)
		if bb&0x80 == 0 {
			break
		}
	}
	return int32(result), nil
}

// Send serializes and writes one packet. The write mutex enforces the
// single-writer-in-flight rule from spec.md §4.3: concurrent senders
// (the tick broadcaster, the keep-alive ticker, the read loop's replies)
// never interleave partial frames on the wire.
func (c *Connection) Send(p proto.Packet) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	frame := proto.EncodeFrame(p)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	_, err := c.conn.Write(frame)
	if err == nil && c.perf != nil {
		c.perf.RecordPacketOut(len(frame))
	}
	return err
}

// Tick runs the 20s/30s keep-alive cycle for PLAY-phase connections; call
// it once per server tick (spec.md §4.3/§4.9). A missed response past
// KeepAliveTimeout closes the connection.
func (c *Connection) Tick(now time.Time) {
	if c.Phase() != proto.Play {
		return
	}

	if atomic.LoadInt32(&c.awaitingKeepAlive) == 1 {
		lastSent := atomic.LoadInt64(&c.lastKeepAliveSent)
		if now.Sub(time.Unix(0, lastSent)) > KeepAliveTimeout {
			c.log.Warn("keep-alive timeout")
			c.Close()
		}
		return
	}

	lastSeen := atomic.LoadInt64(&c.lastKeepAliveSeen)
	if now.Sub(time.Unix(0, lastSeen)) < KeepAliveInterval {
		return
	}

	nonce := atomic.AddInt64(&c.keepAliveNonce, 1)
	atomic.StoreInt64(&c.lastKeepAliveSent, now.UnixNano())
	atomic.StoreInt32(&c.awaitingKeepAlive, 1)
	if err := c.Send(&proto.KeepAliveCB{ID: nonce}); err != nil {
		c.log.WithError(err).Warn("keep-alive send failed")
		c.Close()
	}
}

// ObserveKeepAlive records a client's KeepAliveSB reply.
func (c *Connection) ObserveKeepAlive(id int64) {
	if id != atomic.LoadInt64(&c.keepAliveNonce) {
		return
	}
	atomic.StoreInt32(&c.awaitingKeepAlive, 0)
	atomic.StoreInt64(&c.lastKeepAliveSeen, time.Now().UnixNano())
}

// Close is idempotent (spec.md §4.3): repeated calls after the first are
// no-ops.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// Done returns a channel closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} { return c.closed }
