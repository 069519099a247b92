package tunnel

import (
	"io"
	"log"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/vortun/vortun/internal/bridge"
	"github.com/vortun/vortun/internal/bufpool"
	"github.com/vortun/vortun/internal/codec"
	"github.com/vortun/vortun/internal/comp"
	"github.com/vortun/vortun/internal/kcp"
	"github.com/vortun/vortun/internal/mux"
)

// Server demultiplexes inbound UDP traffic by source endpoint into one
// KCP/SMUX pair per peer, and bridges every accepted SMUX stream onto a
// freshly dialed TCP connection to target.
type Server struct {
	target string
	kcpCfg KCPConfig
	muxCfg mux.Config
	codec  codec.Codec
	noComp bool
	pool   *bufpool.Pool // owns chunk memory for every stream across every tunnel this server demuxes

	mu       sync.Mutex
	sessions map[string]*serverTunnel
}

type serverTunnel struct {
	kcpSess *kcp.Session
	muxSess *mux.Session
}

// NewServer builds a demultiplexing server for the given TCP dial target.
func NewServer(target string, kcpCfg KCPConfig, muxCfg mux.Config, c codec.Codec, noComp bool) *Server {
	return &Server{
		target:   target,
		kcpCfg:   kcpCfg,
		muxCfg:   muxCfg,
		codec:    c,
		noComp:   noComp,
		pool:     bufpool.New(mux.ChunkSize),
		sessions: make(map[string]*serverTunnel),
	}
}

// Serve reads inbound UDP datagrams from conn forever, creating a new
// tunnel on the first datagram from an unseen source endpoint and
// feeding subsequent datagrams to the matching one.
func (srv *Server) Serve(conn *net.UDPConn) error {
	buf := make([]byte, 65536)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return errors.Wrap(err, "tunnel: read udp")
		}
		payload, err := srv.codec.Decode(buf[:n])
		if err != nil {
			continue // malformed frame: drop, per error-handling policy
		}

		key := raddr.String()
		srv.mu.Lock()
		t, ok := srv.sessions[key]
		if ok && t.muxSess.IsClosed() {
			delete(srv.sessions, key)
			ok = false
		}
		if !ok {
			if len(payload) < 4 {
				srv.mu.Unlock()
				continue // too short to carry a conv id, drop
			}
			conv := uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24
			t = srv.newTunnel(conn, raddr, conv)
			srv.sessions[key] = t
		}
		srv.mu.Unlock()

		cp := make([]byte, len(payload))
		copy(cp, payload)
		t.kcpSess.Input(cp)
	}
}

// newTunnel creates a KCP session bound to raddr (output writes go back
// through the shared UDP socket to that address), wraps it in optional
// compression, wires an SMUX server session over it, and spawns the
// accept loop that bridges every new stream to the TCP target.
func (srv *Server) newTunnel(conn *net.UDPConn, raddr *net.UDPAddr, conv uint32) *serverTunnel {
	kcpSess := kcp.NewSession(conv, func(plaintext []byte) {
		out := make([]byte, 0, len(plaintext)+srv.codec.Overhead())
		out = srv.codec.Encode(out, plaintext)
		conn.WriteToUDP(out, raddr)
	})
	kcpSess.Configure(srv.kcpCfg.NoDelay, srv.kcpCfg.Interval, srv.kcpCfg.Resend, srv.kcpCfg.NC, srv.kcpCfg.SndWnd, srv.kcpCfg.RcvWnd, srv.kcpCfg.MTU)

	var stream io.ReadWriteCloser = kcpSess
	if !srv.noComp {
		stream = comp.New(kcpSess)
	}
	muxSess := mux.Server(stream, srv.muxCfg, srv.pool)

	t := &serverTunnel{kcpSess: kcpSess, muxSess: muxSess}
	go srv.acceptLoop(t)
	return t
}

func (srv *Server) acceptLoop(t *serverTunnel) {
	for {
		st, err := t.muxSess.AcceptStream()
		if err != nil {
			return
		}
		go srv.handleStream(st)
	}
}

func (srv *Server) handleStream(st *mux.Stream) {
	defer st.Close()
	conn, err := net.Dial("tcp", srv.target)
	if err != nil {
		log.Println("tunnel: dial target:", err)
		return
	}
	defer conn.Close()
	bridge.Pipe(conn, st)
}
