// Package tunnel implements the tunnel composer: the client-side pool
// of long-lived KCP/SMUX tunnels, and the server-side per-source demux.
package tunnel

import (
	"io"
	"log"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/vortun/vortun/internal/bridge"
	"github.com/vortun/vortun/internal/bufpool"
	"github.com/vortun/vortun/internal/codec"
	"github.com/vortun/vortun/internal/comp"
	"github.com/vortun/vortun/internal/config"
	"github.com/vortun/vortun/internal/kcp"
	"github.com/vortun/vortun/internal/mux"
)

// KCPConfig carries the per-session KCP tunables, plus the raw UDP socket
// tunables applied once per dialed tunnel.
type KCPConfig struct {
	NoDelay, Interval, Resend, NC int
	SndWnd, RcvWnd, MTU           int
	SockBuf                       int // SO_RCVBUF/SO_SNDBUF size; 0 leaves the OS default
	DSCP                          int // best-effort DSCP class; 0 disables marking
}

// scavengePeriod matches the teacher's own 5-second sweep interval.
const scavengePeriod = 5 * time.Second

// slot holds one pooled tunnel: a KCP session paired with its SMUX
// session, plus the expiry date after which pick re-dials the slot when
// autoexpire is enabled.
type slot struct {
	mu      sync.Mutex
	kcpSess *kcp.Session
	muxSess *mux.Session
	expiry  time.Time
}

// Client is a pool of length Conn of (kcp.Session, mux.Session) pairs:
// the client-side tunnel pool.
type Client struct {
	remote    *config.MultiPort
	kcpCfg    KCPConfig
	muxCfg    mux.Config
	codec     codec.Codec
	noComp    bool
	pool      *bufpool.Pool // owns chunk memory for every stream this client ever opens

	autoExpire  time.Duration
	scavengeTTL time.Duration

	slots []*slot

	scavengeCh chan *slot
	once       sync.Once
}

type timedSlot struct {
	sess   *mux.Session // the tunnel the slot held when it was (re)populated
	expiry time.Time
}

// NewClient builds a client-side tunnel pool of numConn slots dialing
// remote. autoExpire of 0 disables forced tunnel rotation.
func NewClient(remote *config.MultiPort, numConn int, kcpCfg KCPConfig, muxCfg mux.Config, c codec.Codec, noComp bool, autoExpire, scavengeTTL time.Duration) *Client {
	if numConn < 1 {
		numConn = 1
	}
	cl := &Client{
		remote:      remote,
		kcpCfg:      kcpCfg,
		muxCfg:      muxCfg,
		codec:       c,
		noComp:      noComp,
		pool:        bufpool.New(mux.ChunkSize),
		autoExpire:  autoExpire,
		scavengeTTL: scavengeTTL,
		slots:       make([]*slot, numConn),
		scavengeCh:  make(chan *slot, 128),
	}
	for i := range cl.slots {
		cl.slots[i] = &slot{}
	}
	if autoExpire > 0 {
		go cl.scavenger()
	}
	return cl
}

// dialTunnel opens a fresh UDP socket to a random port in the remote
// range and wraps it in a KCP session, optional compression, and an SMUX
// client session.
func (cl *Client) dialTunnel() (*kcp.Session, *mux.Session, error) {
	port := cl.remote.MinPort
	if cl.remote.MaxPort > cl.remote.MinPort {
		port += uint64(rand.Int63n(int64(cl.remote.MaxPort - cl.remote.MinPort + 1)))
	}
	addr := net.JoinHostPort(cl.remote.Host, strconv.FormatUint(port, 10))

	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, nil, errors.Wrap(err, "tunnel: resolve remote")
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, nil, errors.Wrap(err, "tunnel: dial remote")
	}
	if cl.kcpCfg.SockBuf > 0 {
		if err := conn.SetReadBuffer(cl.kcpCfg.SockBuf); err != nil {
			log.Println("tunnel: SetReadBuffer:", err)
		}
		if err := conn.SetWriteBuffer(cl.kcpCfg.SockBuf); err != nil {
			log.Println("tunnel: SetWriteBuffer:", err)
		}
	}
	if err := config.SetDSCP(conn, cl.kcpCfg.DSCP); err != nil {
		log.Println("tunnel: SetDSCP:", err)
	}

	conv := rand.Uint32()
	kcpSess := kcp.NewSession(conv, func(plaintext []byte) {
		out := make([]byte, 0, len(plaintext)+cl.codec.Overhead())
		out = cl.codec.Encode(out, plaintext)
		conn.Write(out)
	})
	kcpSess.Configure(cl.kcpCfg.NoDelay, cl.kcpCfg.Interval, cl.kcpCfg.Resend, cl.kcpCfg.NC, cl.kcpCfg.SndWnd, cl.kcpCfg.RcvWnd, cl.kcpCfg.MTU)

	go func() {
		buf := make([]byte, 65536)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				kcpSess.Close()
				return
			}
			payload, err := cl.codec.Decode(buf[:n])
			if err != nil {
				continue // malformed frame: drop and keep reading
			}
			kcpSess.Input(payload)
		}
	}()

	var stream io.ReadWriteCloser = kcpSess
	if !cl.noComp {
		stream = comp.New(kcpSess)
	}
	muxSess := mux.Client(stream, cl.muxCfg, cl.pool)
	return kcpSess, muxSess, nil
}

// pick selects a slot uniformly at random and ensures it holds a live
// tunnel, creating one if the slot is empty or dead.
func (cl *Client) pick() (*slot, error) {
	s := cl.slots[rand.Intn(len(cl.slots))]

	s.mu.Lock()
	defer s.mu.Unlock()

	dead := s.muxSess == nil || s.muxSess.IsClosed() ||
		(cl.autoExpire > 0 && time.Now().After(s.expiry))
	if !dead {
		return s, nil
	}

	kcpSess, muxSess, err := cl.dialTunnel()
	if err != nil {
		return nil, err
	}
	if s.muxSess != nil {
		s.muxSess.Close()
	}
	s.kcpSess = kcpSess
	s.muxSess = muxSess
	s.expiry = time.Now().Add(cl.autoExpire)

	if cl.autoExpire > 0 {
		select {
		case cl.scavengeCh <- s:
		default:
		}
	}
	return s, nil
}

// OpenStream picks a pooled tunnel (recreating it if dead) and opens a
// new SMUX stream on it.
func (cl *Client) OpenStream() (*mux.Stream, error) {
	s, err := cl.pick()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	muxSess := s.muxSess
	s.mu.Unlock()
	return muxSess.OpenStream()
}

// Serve accepts local TCP connections on lis and bridges each onto a
// stream from the pool, one goroutine per connection.
func (cl *Client) Serve(lis net.Listener) error {
	for {
		conn, err := lis.Accept()
		if err != nil {
			return errors.Wrap(err, "tunnel: accept")
		}
		go cl.handleConn(conn)
	}
}

func (cl *Client) handleConn(conn net.Conn) {
	defer conn.Close()
	stream, err := cl.OpenStream()
	if err != nil {
		log.Println("tunnel: open stream:", err)
		return
	}
	defer stream.Close()
	bridge.Pipe(conn, stream)
}

// scavenger destroys each tunnel once its scavengeTTL, measured from when
// pick created it, has elapsed, matching the teacher's own scavenger
// goroutine.
func (cl *Client) scavenger() {
	ticker := time.NewTicker(scavengePeriod)
	defer ticker.Stop()
	var tracked []timedSlot
	for {
		select {
		case s := <-cl.scavengeCh:
			s.mu.Lock()
			sess := s.muxSess
			s.mu.Unlock()
			tracked = append(tracked, timedSlot{sess: sess, expiry: time.Now().Add(cl.scavengeTTL)})
		case <-ticker.C:
			var keep []timedSlot
			for _, t := range tracked {
				if t.sess == nil || t.sess.IsClosed() {
					continue
				}
				if time.Now().After(t.expiry) {
					t.sess.Close()
					continue
				}
				keep = append(keep, t)
			}
			tracked = keep
		}
	}
}
