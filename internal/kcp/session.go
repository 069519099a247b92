package kcp

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrClosed is returned by Session operations issued after Close.
var ErrClosed = errors.New("kcp: session closed")

// ErrTimeout is the error value for an elapsed i/o deadline. Session has no
// deadlines of its own and does not return it.
var ErrTimeout = errors.New("kcp: i/o timeout")

const stashCapacity = 64 * 1024

// Session wraps an Engine with an asynchronous surface: a stream-mode
// read/write API over the pure ARQ state machine, a timer that drives
// Update on the engine's own schedule, and an output contract matching
// Flush's "valid only for the duration of the call" rule, so Session
// copies before handing bytes to the wire.
type Session struct {
	mu     sync.Mutex
	engine *Engine

	stash    []byte // drained stream-mode remainder, bounded to stashCapacity
	pendingW []pendingWrite

	output func([]byte)

	chReadEvent  chan struct{}
	chWriteEvent chan struct{}

	die     chan struct{}
	dieOnce sync.Once

	clock func() uint32 // monotonic ms clock, overridable for tests

	timerMu sync.Mutex
	timer   *time.Timer
}

type pendingWrite struct {
	data []byte
	done chan error
}

// NewSession creates a session around a fresh Engine for conv, writing
// outbound datagrams through output. Output must not block on the
// session's own mutex (it will be called while the engine's own lock is
// held via Flush).
func NewSession(conv uint32, output func([]byte)) *Session {
	s := &Session{
		output:       output,
		chReadEvent:  make(chan struct{}, 1),
		chWriteEvent: make(chan struct{}, 1),
		die:          make(chan struct{}),
		clock:        defaultClock,
	}
	s.engine = NewEngine(conv, func(buf []byte) {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		s.output(cp)
	})
	s.engine.SetStreamMode(true)
	go s.updateLoop()
	return s
}

// Configure applies the per-session KCP tunables.
func (s *Session) Configure(nodelay, interval, resend, nc int, sndWnd, rcvWnd, mtu int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.NoDelay(nodelay, interval, resend, nc)
	s.engine.WndSize(sndWnd, rcvWnd)
	s.engine.SetMtu(mtu)
}

func (s *Session) notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Input feeds one inbound datagram (already stripped of any codec
// envelope) into the engine, and sets up a read notification if data
// became available.
func (s *Session) Input(data []byte) {
	now := s.clock()
	s.mu.Lock()
	s.engine.Input(data, now, true, false)
	s.mu.Unlock()
	s.notify(s.chReadEvent)
	s.kick()
}

// Read drains the stream in order. It blocks until at least one byte is
// available or the session is closed; there is no read deadline.
func (s *Session) Read(buf []byte) (int, error) {
	for {
		s.mu.Lock()
		if len(s.stash) > 0 {
			n := copy(buf, s.stash)
			s.stash = s.stash[n:]
			s.mu.Unlock()
			return n, nil
		}
		if s.engine.PeekSize() > 0 {
			n := s.engine.Recv(buf)
			if n >= 0 {
				s.mu.Unlock()
				return n, nil
			}
			// buffer too small for the reassembled message: drain into
			// the stash and serve from there on subsequent reads.
			if n == -3 {
				full := make([]byte, s.engine.PeekSize())
				s.engine.Recv(full)
				if len(full) > stashCapacity {
					full = full[:stashCapacity]
				}
				s.stash = append(s.stash[:0], full...)
				n := copy(buf, s.stash)
				s.stash = s.stash[n:]
				s.mu.Unlock()
				return n, nil
			}
		}
		s.mu.Unlock()

		select {
		case <-s.chReadEvent:
		case <-s.die:
			return 0, ErrClosed
		}
	}
}

// Write queues payload for the engine to send, fragmenting/coalescing as
// the engine's Send does in stream mode. A caller is held (FIFO) while
// WaitSnd() exceeds 2*sndWnd to avoid unbounded buffering ahead of the
// congestion window.
func (s *Session) Write(payload []byte) (int, error) {
	s.mu.Lock()
	limit := 2 * int(s.engine.sndWnd)
	if s.engine.WaitSnd() > limit {
		done := make(chan error, 1)
		s.pendingW = append(s.pendingW, pendingWrite{data: payload, done: done})
		s.mu.Unlock()
		select {
		case err := <-done:
			if err != nil {
				return 0, err
			}
			return len(payload), nil
		case <-s.die:
			return 0, ErrClosed
		}
	}
	rc := s.engine.Send(payload)
	s.mu.Unlock()
	if rc != 0 {
		return 0, errors.Errorf("kcp: send failed, rc=%d", rc)
	}
	s.kick()
	return len(payload), nil
}

// drainPendingWrites is invoked after each Update to admit queued writes
// once the send window has room again.
func (s *Session) drainPendingWrites() {
	s.mu.Lock()
	limit := 2 * int(s.engine.sndWnd)
	for len(s.pendingW) > 0 && s.engine.WaitSnd() <= limit {
		pw := s.pendingW[0]
		s.pendingW = s.pendingW[1:]
		rc := s.engine.Send(pw.data)
		s.mu.Unlock()
		if rc != 0 {
			pw.done <- errors.Errorf("kcp: send failed, rc=%d", rc)
		} else {
			pw.done <- nil
		}
		s.mu.Lock()
	}
	s.mu.Unlock()
}

// kick wakes the update loop to run immediately instead of waiting for
// its next scheduled tick.
func (s *Session) kick() {
	s.timerMu.Lock()
	if s.timer != nil {
		s.timer.Reset(0)
	}
	s.timerMu.Unlock()
}

// updateLoop is the single monotonic timer driving the engine: it fires
// at the engine's own Check() cadence and, on fire, runs Update (which
// reschedules).
func (s *Session) updateLoop() {
	s.timerMu.Lock()
	s.timer = time.NewTimer(10 * time.Millisecond)
	s.timerMu.Unlock()
	defer func() {
		s.timerMu.Lock()
		s.timer.Stop()
		s.timerMu.Unlock()
	}()

	for {
		select {
		case <-s.timer.C:
		case <-s.die:
			return
		}

		now := s.clock()
		s.mu.Lock()
		s.engine.Update(now)
		dead := s.engine.Dead()
		next := s.engine.Check(now)
		s.mu.Unlock()

		s.drainPendingWrites()
		s.notify(s.chWriteEvent)
		s.mu.Lock()
		readable := s.engine.PeekSize() > 0
		s.mu.Unlock()
		if readable {
			s.notify(s.chReadEvent)
		}

		if dead {
			s.Close()
			return
		}

		wait := time.Duration(next-now) * time.Millisecond
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		s.timerMu.Lock()
		s.timer.Reset(wait)
		s.timerMu.Unlock()
	}
}

// Close destroys the session. Idempotent; wakes every pending task with
// ErrClosed.
func (s *Session) Close() error {
	s.dieOnce.Do(func() {
		close(s.die)
		s.mu.Lock()
		for _, pw := range s.pendingW {
			pw.done <- ErrClosed
		}
		s.pendingW = nil
		s.mu.Unlock()
	})
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	select {
	case <-s.die:
		return true
	default:
		return false
	}
}

// WaitSnd reports segments pending send/ack, for tuning and tests.
func (s *Session) WaitSnd() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.WaitSnd()
}

// Conv returns the underlying conversation id.
func (s *Session) Conv() uint32 { return s.engine.Conv() }

func defaultClock() uint32 {
	return uint32(time.Now().UnixMilli())
}
