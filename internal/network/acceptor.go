package network

import (
	"net"
	"sync"
	"time"

	"github.com/tholin/craftd/internal/logging"
	"github.com/tholin/craftd/internal/perf"
	"github.com/tholin/craftd/internal/proto"
)

// janitorInterval is how often the acceptor sweeps its connection set for
// dead sockets (spec.md §4.4).
const janitorInterval = 30 * time.Second

// Acceptor owns the listening socket and the set of live connections.
type Acceptor struct {
	ln       net.Listener
	registry *proto.Registry
	perf     *perf.Monitor
	log      *logging.Logger

	mu    sync.Mutex
	conns map[string]*Connection

	onAccept func(*Connection)

	closeOnce sync.Once
	done      chan struct{}
}

// Listen opens a TCP listener at addr with the socket options spec.md §4.4
// calls for (TCP_NODELAY, SO_KEEPALIVE, SO_REUSEADDR is implicit in Go's
// net package default binding behaviour on most platforms).
func Listen(addr string, registry *proto.Registry, mon *perf.Monitor, log *logging.Logger) (*Acceptor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Acceptor{
		ln:       ln,
		registry: registry,
		perf:     mon,
		log:      log,
		conns:    make(map[string]*Connection),
		done:     make(chan struct{}),
	}, nil
}

// OnAccept registers the callback invoked for each newly accepted
// connection, after socket options are applied and before its frame loop
// starts. Must be set before Serve.
func (a *Acceptor) OnAccept(fn func(*Connection)) { a.onAccept = fn }

// Addr returns the bound local address.
func (a *Acceptor) Addr() net.Addr { return a.ln.Addr() }

// Serve runs the accept loop and the janitor pass until Close is called.
func (a *Acceptor) Serve() error {
	go a.janitor()

	for {
		raw, err := a.ln.Accept()
		if err != nil {
			select {
			case <-a.done:
				return nil
			default:
				return err
			}
		}
		if tc, ok := raw.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
			_ = tc.SetKeepAlive(true)
			_ = tc.SetKeepAlivePeriod(30 * time.Second)
		}

		conn := New(raw, a.registry, a.perf, a.log)
		if a.perf != nil {
			a.perf.ConnectionAccepted()
		}

		a.mu.Lock()
		a.conns[conn.ID()] = conn
		a.mu.Unlock()

		if a.onAccept != nil {
			a.onAccept(conn)
		}
	}
}

// Remove drops a closed connection from the live set; callers invoke this
// once their per-connection handler goroutine exits.
func (a *Acceptor) Remove(conn *Connection) {
	a.mu.Lock()
	delete(a.conns, conn.ID())
	a.mu.Unlock()
	if a.perf != nil {
		a.perf.ConnectionClosed()
	}
}

// Conns returns a snapshot of the live connection set, for the tick
// scheduler's keep-alive sweep.
func (a *Acceptor) Conns() []*Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Connection, 0, len(a.conns))
	for _, c := range a.conns {
		out = append(out, c)
	}
	return out
}

// Len returns the number of live connections.
func (a *Acceptor) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

// janitor periodically prunes connections whose Done channel has already
// fired but whose handler hasn't called Remove yet (spec.md §4.4: belt and
// suspenders against a handler goroutine leak).
func (a *Acceptor) janitor() {
	t := time.NewTicker(janitorInterval)
	defer t.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-t.C:
			a.mu.Lock()
			for id, c := range a.conns {
				select {
				case <-c.Done():
					delete(a.conns, id)
				default:
				}
			}
			a.mu.Unlock()
		}
	}
}

// Close stops the accept loop and closes every live connection.
func (a *Acceptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.done)
		err = a.ln.Close()
		a.mu.Lock()
		for _, c := range a.conns {
			c.Close()
		}
		a.mu.Unlock()
	})
	return err
}
