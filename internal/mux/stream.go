package mux

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/vortun/vortun/internal/bufpool"
	"github.com/vortun/vortun/internal/frame"
)

// ErrStreamClosed is returned by Stream operations after Close or after
// the owning Session tears the stream down.
var ErrStreamClosed = errors.New("mux: stream closed")

// Back-pressure thresholds: a stream whose input buffer reaches
// highWaterMark withholds completion of the ingress handler until the
// buffer drains below lowWaterMark.
const (
	highWaterMark = 128 * 1024
	lowWaterMark  = 16 * 1024

	maxWriteSize = 65535
)

// Stream is one logical bidirectional byte-stream multiplexed over a
// Session. It has no ownership of its Session, only a plain back
// pointer, checked against the session's liveness before use.
type Stream struct {
	id   uint32
	sess *Session

	mu  sync.Mutex
	buf linearBuffer

	readReady   chan struct{} // single pending-reader wakeup
	inputResume chan struct{} // withheld-input release signal

	destroyed   bool
	destroyOnce sync.Once
	die         chan struct{}
}

func newStream(id uint32, sess *Session, pool *bufpool.Pool) *Stream {
	return &Stream{
		id:          id,
		sess:        sess,
		buf:         linearBuffer{pool: pool},
		readReady:   make(chan struct{}, 1),
		inputResume: make(chan struct{}, 1),
		die:         make(chan struct{}),
	}
}

// ID returns the stream's id.
func (st *Stream) ID() uint32 { return st.id }

func (st *Stream) notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// pushAndWait appends an ingress PSH payload to the stream's linear
// buffer. It is called synchronously from the session's single
// frame-reader goroutine, and is the back-pressure mechanism: once the
// buffer reaches the high-water mark, this call blocks, stalling the
// whole tunnel's frame reader, until a reader drains the buffer below the
// low-water mark.
func (st *Stream) pushAndWait(payload []byte) error {
	st.mu.Lock()
	if st.destroyed {
		st.mu.Unlock()
		return ErrStreamClosed
	}
	st.buf.Write(payload)
	size := st.buf.Len()
	st.mu.Unlock()
	st.notify(st.readReady)

	if size < highWaterMark {
		return nil
	}
	for {
		select {
		case <-st.inputResume:
		case <-st.die:
			return ErrStreamClosed
		}
		st.mu.Lock()
		cur := st.buf.Len()
		st.mu.Unlock()
		if cur < lowWaterMark {
			return nil
		}
	}
}

// Read blocks until at least one byte is available, the stream is
// destroyed, or the owning session is destroyed.
func (st *Stream) Read(p []byte) (int, error) {
	for {
		st.mu.Lock()
		if st.buf.Len() > 0 {
			n := st.buf.Read(p)
			size := st.buf.Len()
			st.mu.Unlock()
			if size < lowWaterMark {
				st.notify(st.inputResume)
			}
			return n, nil
		}
		destroyed := st.destroyed
		st.mu.Unlock()
		if destroyed {
			return 0, ErrStreamClosed
		}

		select {
		case <-st.readReady:
		case <-st.die:
			return 0, ErrStreamClosed
		}
	}
}

// Write prepends an 8-byte PSH frame header and issues one session-level
// write. Fragmentation above maxWriteSize is the caller's responsibility.
func (st *Stream) Write(p []byte) (int, error) {
	if len(p) > maxWriteSize {
		return 0, errors.Errorf("mux: write of %d bytes exceeds %d", len(p), maxWriteSize)
	}
	st.mu.Lock()
	destroyed := st.destroyed
	st.mu.Unlock()
	if destroyed {
		return 0, ErrStreamClosed
	}

	out := make([]byte, frame.HeaderSize+len(p))
	frame.Encode(out, frame.NewFrame(frame.CmdPSH, st.id, uint16(len(p))))
	copy(out[frame.HeaderSize:], p)

	if err := st.sess.writeFrame(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// destroy marks the stream torn down, idempotently, and wakes any pending
// reader or withheld writer with ErrStreamClosed. It does not emit FIN —
// that only happens from Close, or not at all when the teardown was
// itself caused by an incoming FIN.
func (st *Stream) destroy() {
	st.destroyOnce.Do(func() {
		st.mu.Lock()
		st.destroyed = true
		st.mu.Unlock()
		close(st.die)
	})
}

// Close tears the stream down locally and, if the owning session is still
// alive, removes it from the session's map and emits a FIN frame.
func (st *Stream) Close() error {
	st.destroy()
	if !st.sess.isClosed() {
		st.sess.removeStream(st.id)
		return st.sess.writeFrame(finFrame(st.id))
	}
	return nil
}
