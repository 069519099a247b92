// Package mux implements the SMUX stream-multiplexing protocol: many
// logical bidirectional byte-streams framed over a single reliable byte
// stream (a *kcp.Session in this module).
package mux

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/vortun/vortun/internal/bufpool"
	"github.com/vortun/vortun/internal/frame"
)

// ErrSessionClosed is returned by Session operations after Close.
var ErrSessionClosed = errors.New("mux: session closed")

// Config mirrors the per-session tunables: keepalive send and timeout
// periods.
type Config struct {
	KeepAliveInterval time.Duration // default send-NOP period (default 10s)
	KeepAliveTimeout  time.Duration // destroy if no ingress within this (default 3x interval)
}

// DefaultConfig returns the teacher's defaults, translated to this
// module's thresholds.
func DefaultConfig() Config {
	return Config{
		KeepAliveInterval: 10 * time.Second,
		KeepAliveTimeout:  30 * time.Second,
	}
}

// Session drives one underlying byte stream (a KCP session in stream
// mode) as a bidirectional framed pipe carrying many Streams.
type Session struct {
	conn   io.ReadWriteCloser
	client bool
	cfg    Config
	pool   *bufpool.Pool // owns every stream's linear-buffer chunk memory

	mu       sync.Mutex
	streams  map[uint32]*Stream
	nextID   uint32
	closed   bool

	acceptCh chan *Stream
	writeCh  chan []byte

	dataReady int32 // atomic bool: any ingress frame since the last keepalive check

	die     chan struct{}
	dieOnce sync.Once
}

// Client wraps conn as the initiating (odd stream id) side of a session.
// pool supplies chunk memory for every stream opened on this session; the
// caller (a *tunnel.Client) owns its lifetime.
func Client(conn io.ReadWriteCloser, cfg Config, pool *bufpool.Pool) *Session {
	return newSession(conn, true, cfg, pool)
}

// Server wraps conn as the accepting (even stream id) side of a session.
// pool supplies chunk memory for every stream opened on this session; the
// caller (a *tunnel.Server) owns its lifetime.
func Server(conn io.ReadWriteCloser, cfg Config, pool *bufpool.Pool) *Session {
	return newSession(conn, false, cfg, pool)
}

func newSession(conn io.ReadWriteCloser, client bool, cfg Config, pool *bufpool.Pool) *Session {
	sess := &Session{
		conn:     conn,
		client:   client,
		cfg:      cfg,
		pool:     pool,
		streams:  make(map[uint32]*Stream),
		acceptCh: make(chan *Stream, 64),
		writeCh:  make(chan []byte, 256),
		die:      make(chan struct{}),
	}
	if client {
		sess.nextID = 1
	} else {
		sess.nextID = 2
	}
	go sess.recvLoop()
	go sess.sendLoop()
	go sess.keepaliveLoop()
	return sess
}

func synFrame(id uint32) []byte {
	b := make([]byte, frame.HeaderSize)
	frame.Encode(b, frame.NewFrame(frame.CmdSYN, id, 0))
	return b
}

func finFrame(id uint32) []byte {
	b := make([]byte, frame.HeaderSize)
	frame.Encode(b, frame.NewFrame(frame.CmdFIN, id, 0))
	return b
}

func nopFrame() []byte {
	b := make([]byte, frame.HeaderSize)
	frame.Encode(b, frame.NewFrame(frame.CmdNOP, 0, 0))
	return b
}

// OpenStream allocates the next id (client odd seeded 1, server even
// seeded 2, both stepping by 2), sends SYN, registers the stream, and
// hands it back without waiting for any reply. The SYN is fire-and-forget.
func (sess *Session) OpenStream() (*Stream, error) {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	}
	id := sess.nextID
	sess.nextID += 2
	st := newStream(id, sess, sess.pool)
	sess.streams[id] = st
	sess.mu.Unlock()

	if err := sess.writeFrame(synFrame(id)); err != nil {
		sess.removeStream(id)
		return nil, err
	}
	return st, nil
}

// AcceptStream blocks until a peer SYN creates a new stream, or the
// session is closed.
func (sess *Session) AcceptStream() (*Stream, error) {
	select {
	case st := <-sess.acceptCh:
		return st, nil
	case <-sess.die:
		return nil, ErrSessionClosed
	}
}

func (sess *Session) isClosed() bool {
	return sess.IsClosed()
}

// IsClosed reports whether Close has been called on this session.
func (sess *Session) IsClosed() bool {
	select {
	case <-sess.die:
		return true
	default:
		return false
	}
}

func (sess *Session) removeStream(id uint32) {
	sess.mu.Lock()
	delete(sess.streams, id)
	sess.mu.Unlock()
}

// writeFrame is the single serializing write queue: it appends to the
// FIFO, and the send loop drains the head first.
func (sess *Session) writeFrame(buf []byte) error {
	select {
	case sess.writeCh <- buf:
		return nil
	case <-sess.die:
		return ErrSessionClosed
	}
}

func (sess *Session) sendLoop() {
	for {
		select {
		case buf := <-sess.writeCh:
			if _, err := sess.conn.Write(buf); err != nil {
				sess.Close()
				return
			}
		case <-sess.die:
			return
		}
	}
}

// recvLoop is the frame reader loop: read an 8-byte header, then exactly
// `length` payload bytes, then dispatch, never starting the next frame
// until the current one (including the consumer's ingress callback) has
// fully completed. This is what makes a slow stream consumer back-pressure
// the entire tunnel.
func (sess *Session) recvLoop() {
	hdr := make([]byte, frame.HeaderSize)
	for {
		if _, err := io.ReadFull(sess.conn, hdr); err != nil {
			sess.Close()
			return
		}
		h := frame.Decode(hdr)
		if h.Version != frame.Version {
			sess.Close()
			return
		}
		atomic.StoreInt32(&sess.dataReady, 1)

		var payload []byte
		if h.Length > 0 {
			payload = make([]byte, h.Length)
			if _, err := io.ReadFull(sess.conn, payload); err != nil {
				sess.Close()
				return
			}
		}

		switch h.Cmd {
		case frame.CmdSYN:
			sess.handleSYN(h.StreamID)
		case frame.CmdFIN:
			sess.handleFIN(h.StreamID)
		case frame.CmdPSH:
			sess.handlePSH(h.StreamID, payload)
		case frame.CmdNOP:
			// resume immediately
		default:
			sess.Close()
			return
		}
	}
}

func (sess *Session) handleSYN(id uint32) {
	sess.mu.Lock()
	if _, ok := sess.streams[id]; ok {
		sess.mu.Unlock()
		return
	}
	st := newStream(id, sess, sess.pool)
	sess.streams[id] = st
	sess.mu.Unlock()

	select {
	case sess.acceptCh <- st:
	case <-sess.die:
	}
}

func (sess *Session) handleFIN(id uint32) {
	sess.mu.Lock()
	st, ok := sess.streams[id]
	delete(sess.streams, id)
	sess.mu.Unlock()
	if ok {
		st.destroy()
	}
}

func (sess *Session) handlePSH(id uint32, payload []byte) {
	sess.mu.Lock()
	st, ok := sess.streams[id]
	sess.mu.Unlock()
	if !ok {
		return // unknown or already-pruned stream: drop silently
	}
	st.pushAndWait(payload) // blocks recvLoop: the tunnel-wide back-pressure signal
}

// keepaliveLoop runs the two keepalive timers: send a NOP every
// KeepAliveInterval, and every KeepAliveTimeout, destroy the session
// unless a frame has arrived since the last check.
func (sess *Session) keepaliveLoop() {
	sendTicker := time.NewTicker(sess.cfg.KeepAliveInterval)
	checkTicker := time.NewTicker(sess.cfg.KeepAliveTimeout)
	defer sendTicker.Stop()
	defer checkTicker.Stop()

	for {
		select {
		case <-sendTicker.C:
			sess.writeFrame(nopFrame())
		case <-checkTicker.C:
			if atomic.SwapInt32(&sess.dataReady, 0) == 0 {
				sess.Close()
				return
			}
		case <-sess.die:
			return
		}
	}
}

// Close destroys the session: idempotent, tears down every stream without
// emitting FIN for them (the peer will observe the underlying transport
// going away), and closes the underlying connection.
func (sess *Session) Close() error {
	sess.dieOnce.Do(func() {
		close(sess.die)
		sess.mu.Lock()
		sess.closed = true
		streams := sess.streams
		sess.streams = nil
		sess.mu.Unlock()
		for _, st := range streams {
			st.destroy()
		}
		sess.conn.Close()
	})
	return nil
}

// NumStreams reports the number of live streams, for tests and metrics.
func (sess *Session) NumStreams() int {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.streams)
}
