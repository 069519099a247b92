// Package kcp implements the KCP ARQ protocol: a pure state machine that
// layers reliable, ordered, congestion-controlled delivery on top of an
// unreliable datagram channel.
package kcp

import "encoding/binary"

// Protocol constants.
const (
	cmdPush = 81 // data push
	cmdAck  = 82 // acknowledgement
	cmdWask = 83 // window probe: ask
	cmdWins = 84 // window probe: tell

	askSend = 1 // need to send cmdWask
	askTell = 2 // need to send cmdWins

	rtoNoDelay = 30
	rtoMin     = 100
	rtoDefault = 200
	rtoMax     = 60000

	wndSendDefault = 32
	wndRecvDefault = 32
	mtuDefault     = 1400

	overhead = 24 // segment header size

	deadLink = 20 // retransmission count past which a conv is considered dead

	threshInit = 2
	threshMin  = 2

	probeInit  = 7000   // first window probe after 7s
	probeLimit = 120000 // up to 120s between probes
)

// Output is called by flush to hand a ready-to-send datagram to the
// transport. The engine may call it zero or more times per update, and
// the buffer is only valid for the duration of the call.
type Output func(buf []byte)

func encode8u(p []byte, c byte) []byte {
	p[0] = c
	return p[1:]
}

func decode8u(p []byte, c *byte) []byte {
	*c = p[0]
	return p[1:]
}

func encode16u(p []byte, w uint16) []byte {
	binary.LittleEndian.PutUint16(p, w)
	return p[2:]
}

func decode16u(p []byte, w *uint16) []byte {
	*w = binary.LittleEndian.Uint16(p)
	return p[2:]
}

func encode32u(p []byte, l uint32) []byte {
	binary.LittleEndian.PutUint32(p, l)
	return p[4:]
}

func decode32u(p []byte, l *uint32) []byte {
	*l = binary.LittleEndian.Uint32(p)
	return p[4:]
}

func minU(a, b uint32) uint32 {
	if a <= b {
		return a
	}
	return b
}

func maxU(a, b uint32) uint32 {
	if a >= b {
		return a
	}
	return b
}

func bound(lower, middle, upper uint32) uint32 {
	return minU(maxU(lower, middle), upper)
}

// timeDiff returns later-earlier as a signed delta, robust to uint32 wrap.
func timeDiff(later, earlier uint32) int32 {
	return int32(later - earlier)
}

// segment is a single KCP protocol data unit, in memory or on the wire.
type segment struct {
	conv uint32
	cmd  uint32
	frg  uint32
	wnd  uint32
	ts   uint32
	sn   uint32
	una  uint32
	data []byte

	resendts uint32
	rto      uint32
	fastack  uint32
	xmit     uint32
}

func (s *segment) encode(ptr []byte) []byte {
	ptr = encode32u(ptr, s.conv)
	ptr = encode8u(ptr, uint8(s.cmd))
	ptr = encode8u(ptr, uint8(s.frg))
	ptr = encode16u(ptr, uint16(s.wnd))
	ptr = encode32u(ptr, s.ts)
	ptr = encode32u(ptr, s.sn)
	ptr = encode32u(ptr, s.una)
	ptr = encode32u(ptr, uint32(len(s.data)))
	return ptr
}

type ackItem struct {
	sn uint32
	ts uint32
}

// Stats accumulates retransmission counters. An Engine owns one; unlike the
// package-level counters some ARQ implementations keep, it has explicit
// per-engine lifetime.
type Stats struct {
	RetransSegs      uint64
	LostSegs         uint64
	FastRetransSegs  uint64
	EarlyRetransSegs uint64
	RepeatSegs       uint64
}

// Engine is a single KCP ARQ state machine. Clock is supplied by the
// caller (as milliseconds since an arbitrary epoch) rather than read from
// the system clock internally, so the engine has no hidden time source.
type Engine struct {
	conv, mtu, mss uint32
	state          uint32

	sndUna, sndNxt, rcvNxt uint32

	ssthresh uint32

	rxRttvar, rxSrtt int32
	rxRto, rxMinrto  uint32

	sndWnd, rcvWnd, rmtWnd, cwnd, probe uint32

	interval, tsFlush, xmit uint32

	nodelay, updated uint32

	tsProbe, probeWait uint32

	deadLink uint32
	incr     uint32

	fastresend    int32
	nocwnd        int32
	streamMode    bool

	sndQueue []segment
	rcvQueue []segment
	sndBuf   []segment
	rcvBuf   []segment

	acklist []ackItem

	buffer []byte
	output Output

	Stats Stats
}

// NewEngine creates an engine for conversation id conv. output is called by
// Flush/Update to emit wire-ready datagrams.
func NewEngine(conv uint32, output Output) *Engine {
	e := &Engine{
		conv:     conv,
		sndWnd:   wndSendDefault,
		rcvWnd:   wndRecvDefault,
		rmtWnd:   wndRecvDefault,
		mtu:      mtuDefault,
		rxRto:    rtoDefault,
		rxMinrto: rtoMin,
		interval: IKCP_INTERVAL,
		tsFlush:  IKCP_INTERVAL,
		ssthresh: threshInit,
		deadLink: deadLink,
		output:   output,
	}
	e.mss = e.mtu - overhead
	e.buffer = make([]byte, (e.mtu+overhead)*3)
	return e
}

// IKCP_INTERVAL is the engine's own bootstrap flush interval in ms before
// NoDelay is called. The session adapter's Configure passes its caller's
// interval to NoDelay; this 100ms value only applies before that.
const IKCP_INTERVAL = 100

func (e *Engine) newSegment(size int) *segment {
	return &segment{data: make([]byte, size)}
}

// SetStreamMode toggles stream (coalescing) vs message (fragmenting) send
// semantics.
func (e *Engine) SetStreamMode(on bool) { e.streamMode = on }

// PeekSize reports the size of the next fully-reassembled message in the
// receive queue, or -1 if none is ready.
func (e *Engine) PeekSize() int {
	if len(e.rcvQueue) == 0 {
		return -1
	}
	seg := &e.rcvQueue[0]
	if seg.frg == 0 {
		return len(seg.data)
	}
	if len(e.rcvQueue) < int(seg.frg+1) {
		return -1
	}
	length := 0
	for k := range e.rcvQueue {
		s := &e.rcvQueue[k]
		length += len(s.data)
		if s.frg == 0 {
			break
		}
	}
	return length
}

// Recv reassembles the next full message into buffer. Returns the byte
// count, or a negative value: -1 nothing queued, -2 incomplete, -3 buffer
// too small.
func (e *Engine) Recv(buffer []byte) int {
	if len(e.rcvQueue) == 0 {
		return -1
	}

	peekSize := e.PeekSize()
	if peekSize < 0 {
		return -2
	}
	if peekSize > len(buffer) {
		return -3
	}

	fastRecover := len(e.rcvQueue) >= int(e.rcvWnd)

	n := 0
	count := 0
	for k := range e.rcvQueue {
		seg := &e.rcvQueue[k]
		copy(buffer, seg.data)
		buffer = buffer[len(seg.data):]
		n += len(seg.data)
		count++
		if seg.frg == 0 {
			break
		}
	}
	e.rcvQueue = e.rcvQueue[count:]

	count = 0
	for k := range e.rcvBuf {
		seg := &e.rcvBuf[k]
		if seg.sn == e.rcvNxt && len(e.rcvQueue) < int(e.rcvWnd) {
			e.rcvNxt++
			count++
		} else {
			break
		}
	}
	e.rcvQueue = append(e.rcvQueue, e.rcvBuf[:count]...)
	e.rcvBuf = e.rcvBuf[count:]

	if len(e.rcvQueue) < int(e.rcvWnd) && fastRecover {
		e.probe |= askTell
	}
	return n
}

// Send fragments buffer into segments of at most MSS bytes. In stream mode
// it first coalesces into the tail of sndQueue. Returns -1 on empty input,
// -2 if the fragment count would exceed 255.
func (e *Engine) Send(buffer []byte) int {
	if len(buffer) == 0 {
		return -1
	}

	if e.streamMode {
		if n := len(e.sndQueue); n > 0 {
			old := &e.sndQueue[n-1]
			if len(old.data) < int(e.mss) {
				capacity := int(e.mss) - len(old.data)
				extend := capacity
				if len(buffer) < capacity {
					extend = len(buffer)
				}
				merged := make([]byte, len(old.data)+extend)
				copy(merged, old.data)
				copy(merged[len(old.data):], buffer[:extend])
				old.data = merged
				old.frg = 0
				buffer = buffer[extend:]
			}
		}
		if len(buffer) == 0 {
			return 0
		}
	}

	var count int
	if len(buffer) <= int(e.mss) {
		count = 1
	} else {
		count = (len(buffer) + int(e.mss) - 1) / int(e.mss)
	}
	if count > 255 {
		return -2
	}
	if count == 0 {
		count = 1
	}

	for i := 0; i < count; i++ {
		size := len(buffer)
		if size > int(e.mss) {
			size = int(e.mss)
		}
		seg := e.newSegment(size)
		copy(seg.data, buffer[:size])
		if e.streamMode {
			seg.frg = 0
		} else {
			seg.frg = uint32(count - i - 1)
		}
		e.sndQueue = append(e.sndQueue, *seg)
		buffer = buffer[size:]
	}
	return 0
}

// updateAck folds a fresh RTT sample into the smoothed RTT/RTO estimators
// per RFC 6298.
func (e *Engine) updateAck(rtt int32) {
	if e.rxSrtt == 0 {
		e.rxSrtt = rtt
		e.rxRttvar = rtt >> 1
	} else {
		delta := rtt - e.rxSrtt
		e.rxSrtt += delta >> 3
		if delta < 0 {
			delta = -delta
		}
		if rtt < e.rxSrtt-e.rxRttvar {
			e.rxRttvar += (delta - e.rxRttvar) >> 5
		} else {
			e.rxRttvar += (delta - e.rxRttvar) >> 2
		}
	}
	rto := uint32(e.rxSrtt) + maxU(e.interval, uint32(e.rxRttvar)<<2)
	e.rxRto = bound(e.rxMinrto, rto, rtoMax)
}

func (e *Engine) shrinkBuf() {
	if len(e.sndBuf) > 0 {
		e.sndUna = e.sndBuf[0].sn
	} else {
		e.sndUna = e.sndNxt
	}
}

func (e *Engine) parseAck(sn uint32) {
	if timeDiff(sn, e.sndUna) < 0 || timeDiff(sn, e.sndNxt) >= 0 {
		return
	}
	for k := range e.sndBuf {
		seg := &e.sndBuf[k]
		if sn == seg.sn {
			e.sndBuf = append(e.sndBuf[:k], e.sndBuf[k+1:]...)
			break
		}
		if timeDiff(sn, seg.sn) < 0 {
			break
		}
	}
}

func (e *Engine) parseFastack(sn uint32) {
	if timeDiff(sn, e.sndUna) < 0 || timeDiff(sn, e.sndNxt) >= 0 {
		return
	}
	for k := range e.sndBuf {
		seg := &e.sndBuf[k]
		if timeDiff(sn, seg.sn) < 0 {
			break
		} else if sn != seg.sn {
			seg.fastack++
		}
	}
}

func (e *Engine) parseUna(una uint32) {
	count := 0
	for k := range e.sndBuf {
		if timeDiff(una, e.sndBuf[k].sn) > 0 {
			count++
		} else {
			break
		}
	}
	e.sndBuf = e.sndBuf[count:]
}

func (e *Engine) ackPush(sn, ts uint32) {
	e.acklist = append(e.acklist, ackItem{sn, ts})
}

func (e *Engine) parseData(newseg *segment) {
	sn := newseg.sn
	if timeDiff(sn, e.rcvNxt+e.rcvWnd) >= 0 || timeDiff(sn, e.rcvNxt) < 0 {
		return
	}

	n := len(e.rcvBuf) - 1
	insertIdx := 0
	repeat := false
	for i := n; i >= 0; i-- {
		seg := &e.rcvBuf[i]
		if seg.sn == sn {
			repeat = true
			e.Stats.RepeatSegs++
			break
		}
		if timeDiff(sn, seg.sn) > 0 {
			insertIdx = i + 1
			break
		}
	}

	if !repeat {
		if insertIdx == n+1 {
			e.rcvBuf = append(e.rcvBuf, *newseg)
		} else {
			e.rcvBuf = append(e.rcvBuf, segment{})
			copy(e.rcvBuf[insertIdx+1:], e.rcvBuf[insertIdx:])
			e.rcvBuf[insertIdx] = *newseg
		}
	}

	count := 0
	for k := range e.rcvBuf {
		seg := &e.rcvBuf[k]
		if seg.sn == e.rcvNxt && len(e.rcvQueue) < int(e.rcvWnd) {
			e.rcvNxt++
			count++
		} else {
			break
		}
	}
	e.rcvQueue = append(e.rcvQueue, e.rcvBuf[:count]...)
	e.rcvBuf = e.rcvBuf[count:]
}

// Input parses one or more concatenated segments out of data, which must
// have come from a datagram addressed to this engine's conv. now is the
// caller's monotonic clock in ms. Returns -1 on wrong/short conv, -2 on a
// truncated segment, -3 on an unknown command; otherwise 0. Reordering and
// duplication are tolerated silently.
func (e *Engine) Input(data []byte, now uint32, regular, ackNoDelay bool) int {
	una := e.sndUna
	if len(data) < overhead {
		return -1
	}

	var maxack uint32
	var flag int

	for {
		var ts, sn, length, segUna, conv uint32
		var wnd uint16
		var cmd, frg uint8

		if len(data) < overhead {
			break
		}

		data = decode32u(data, &conv)
		if conv != e.conv {
			return -1
		}
		data = decode8u(data, &cmd)
		data = decode8u(data, &frg)
		data = decode16u(data, &wnd)
		data = decode32u(data, &ts)
		data = decode32u(data, &sn)
		data = decode32u(data, &segUna)
		data = decode32u(data, &length)
		if len(data) < int(length) {
			return -2
		}
		if cmd != cmdPush && cmd != cmdAck && cmd != cmdWask && cmd != cmdWins {
			return -3
		}

		if regular {
			e.rmtWnd = uint32(wnd)
		}
		e.parseUna(segUna)
		e.shrinkBuf()

		switch cmd {
		case cmdAck:
			if timeDiff(now, ts) >= 0 {
				e.updateAck(timeDiff(now, ts))
			}
			e.parseAck(sn)
			e.shrinkBuf()
			if flag == 0 {
				flag = 1
				maxack = sn
			} else if timeDiff(sn, maxack) > 0 {
				maxack = sn
			}
		case cmdPush:
			if timeDiff(sn, e.rcvNxt+e.rcvWnd) < 0 {
				e.ackPush(sn, ts)
				if timeDiff(sn, e.rcvNxt) >= 0 {
					seg := e.newSegment(int(length))
					seg.conv = conv
					seg.cmd = uint32(cmd)
					seg.frg = uint32(frg)
					seg.wnd = uint32(wnd)
					seg.ts = ts
					seg.sn = sn
					seg.una = segUna
					copy(seg.data, data[:length])
					e.parseData(seg)
				} else {
					e.Stats.RepeatSegs++
				}
			} else {
				e.Stats.RepeatSegs++
			}
		case cmdWask:
			e.probe |= askTell
		case cmdWins:
			// no-op: informational only
		}

		data = data[length:]
	}

	if flag != 0 && regular {
		e.parseFastack(maxack)
	}

	if timeDiff(e.sndUna, una) > 0 {
		if e.cwnd < e.rmtWnd {
			mss := e.mss
			if e.cwnd < e.ssthresh {
				e.cwnd++
				e.incr += mss
			} else {
				if e.incr < mss {
					e.incr = mss
				}
				e.incr += (mss*mss)/e.incr + mss/16
				if (e.cwnd+1)*mss <= e.incr {
					e.cwnd++
				}
			}
			if e.cwnd > e.rmtWnd {
				e.cwnd = e.rmtWnd
				e.incr = e.rmtWnd * mss
			}
		}
	}

	if ackNoDelay && len(e.acklist) > 0 {
		e.Flush(true, now)
	} else if e.rmtWnd == 0 && len(e.acklist) > 0 {
		e.Flush(true, now)
	}
	return 0
}

func (e *Engine) wndUnused() int32 {
	if len(e.rcvQueue) < int(e.rcvWnd) {
		return int32(int(e.rcvWnd) - len(e.rcvQueue))
	}
	return 0
}

// Flush emits any pending acks, window probes, and retransmissions. If
// ackOnly, only acks are flushed (used from Input's immediate-ack path).
func (e *Engine) Flush(ackOnly bool, now uint32) {
	buffer := e.buffer
	change := 0
	lost := false

	var seg segment
	seg.conv = e.conv
	seg.cmd = cmdAck
	seg.wnd = uint32(e.wndUnused())
	seg.una = e.rcvNxt

	var required []ackItem
	for i, ack := range e.acklist {
		if ack.sn >= e.rcvNxt || len(e.acklist)-1 == i {
			required = append(required, e.acklist[i])
		}
	}
	e.acklist = nil

	ptr := buffer
	maxBatch := e.mtu / overhead
	for len(required) > 0 {
		batch := bound(1, uint32(len(required)), maxBatch)
		for len(required) >= int(batch) {
			for i := 0; i < int(batch); i++ {
				ack := required[i]
				seg.sn, seg.ts = ack.sn, ack.ts
				ptr = seg.encode(ptr)
			}
			size := len(buffer) - len(ptr)
			e.output(buffer[:size])
			ptr = buffer
			required = required[batch:]
		}
	}

	if ackOnly {
		return
	}

	if e.rmtWnd == 0 {
		if e.probeWait == 0 {
			e.probeWait = probeInit
			e.tsProbe = now + e.probeWait
		} else if timeDiff(now, e.tsProbe) >= 0 {
			if e.probeWait < probeInit {
				e.probeWait = probeInit
			}
			e.probeWait += e.probeWait / 2
			if e.probeWait > probeLimit {
				e.probeWait = probeLimit
			}
			e.tsProbe = now + e.probeWait
			e.probe |= askSend
		}
	} else {
		e.tsProbe = 0
		e.probeWait = 0
	}

	if e.probe&askSend != 0 {
		seg.cmd = cmdWask
		size := len(buffer) - len(ptr)
		if size+overhead > int(e.mtu) {
			e.output(buffer[:size])
			ptr = buffer
		}
		ptr = seg.encode(ptr)
	}
	if e.probe&askTell != 0 {
		seg.cmd = cmdWins
		size := len(buffer) - len(ptr)
		if size+overhead > int(e.mtu) {
			e.output(buffer[:size])
			ptr = buffer
		}
		ptr = seg.encode(ptr)
	}
	e.probe = 0

	cwnd := minU(e.sndWnd, e.rmtWnd)
	if e.nocwnd == 0 {
		cwnd = minU(e.cwnd, cwnd)
	}

	newCount := 0
	for k := range e.sndQueue {
		if timeDiff(e.sndNxt, e.sndUna+cwnd) >= 0 {
			break
		}
		newseg := e.sndQueue[k]
		newseg.conv = e.conv
		newseg.cmd = cmdPush
		newseg.sn = e.sndNxt
		e.sndBuf = append(e.sndBuf, newseg)
		e.sndNxt++
		newCount++
	}
	e.sndQueue = e.sndQueue[newCount:]

	resent := uint32(e.fastresend)
	if e.fastresend <= 0 {
		resent = 0xffffffff
	}

	for k := len(e.sndBuf) - newCount; k < len(e.sndBuf); k++ {
		s := &e.sndBuf[k]
		s.xmit++
		s.rto = e.rxRto
		s.resendts = now + s.rto
		s.ts = now
		s.wnd = seg.wnd
		s.una = e.rcvNxt

		size := len(buffer) - len(ptr)
		need := overhead + len(s.data)
		if size+need > int(e.mtu) {
			e.output(buffer[:size])
			ptr = buffer
		}
		ptr = s.encode(ptr)
		copy(ptr, s.data)
		ptr = ptr[len(s.data):]
	}

	for k := 0; k < len(e.sndBuf)-newCount; k++ {
		s := &e.sndBuf[k]
		needSend := false
		if timeDiff(now, s.resendts) >= 0 {
			needSend = true
			s.xmit++
			e.xmit++
			if e.nodelay == 0 {
				s.rto += e.rxRto
			} else {
				s.rto += e.rxRto / 2
			}
			s.resendts = now + s.rto
			lost = true
			e.Stats.LostSegs++
		} else if s.fastack >= resent {
			needSend = true
			s.xmit++
			s.fastack = 0
			s.rto = e.rxRto
			s.resendts = now + s.rto
			change++
			e.Stats.FastRetransSegs++
		} else if s.fastack > 0 && newCount == 0 {
			needSend = true
			s.xmit++
			s.fastack = 0
			s.rto = e.rxRto
			s.resendts = now + s.rto
			change++
			e.Stats.EarlyRetransSegs++
		}

		if needSend {
			s.ts = now
			s.wnd = seg.wnd
			s.una = e.rcvNxt

			size := len(buffer) - len(ptr)
			need := overhead + len(s.data)
			if size+need > int(e.mtu) {
				e.output(buffer[:size])
				ptr = buffer
			}
			ptr = s.encode(ptr)
			copy(ptr, s.data)
			ptr = ptr[len(s.data):]

			if s.xmit >= e.deadLink {
				e.state = 0xFFFFFFFF
			}
		}
	}

	if size := len(buffer) - len(ptr); size > 0 {
		e.output(buffer[:size])
	}

	if change != 0 {
		inflight := e.sndNxt - e.sndUna
		e.ssthresh = inflight / 2
		if e.ssthresh < threshMin {
			e.ssthresh = threshMin
		}
		e.cwnd = e.ssthresh + resent
		e.incr = e.cwnd * e.mss
	}

	if lost {
		e.ssthresh = cwnd / 2
		if e.ssthresh < threshMin {
			e.ssthresh = threshMin
		}
		e.cwnd = 1
		e.incr = e.mss
	}

	if e.cwnd < 1 {
		e.cwnd = 1
		e.incr = e.mss
	}
}

// Update should be called repeatedly (every interval ms), or as directed
// by Check. now is the caller's monotonic clock in ms.
func (e *Engine) Update(now uint32) {
	if e.updated == 0 {
		e.updated = 1
		e.tsFlush = now
	}

	slap := timeDiff(now, e.tsFlush)
	if slap >= 10000 || slap < -10000 {
		e.tsFlush = now
		slap = 0
	}

	if slap >= 0 {
		e.tsFlush += e.interval
		if timeDiff(now, e.tsFlush) >= 0 {
			e.tsFlush = now + e.interval
		}
		e.Flush(false, now)
	}
}

// Check returns the ms timestamp at which Update should next be invoked,
// assuming no further Send/Input calls occur before then.
func (e *Engine) Check(now uint32) uint32 {
	tsFlush := e.tsFlush
	tmFlush := int32(0x7fffffff)
	tmPacket := int32(0x7fffffff)

	if e.updated == 0 {
		return now
	}
	if timeDiff(now, tsFlush) >= 10000 || timeDiff(now, tsFlush) < -10000 {
		tsFlush = now
	}
	if timeDiff(now, tsFlush) >= 0 {
		return now
	}
	tmFlush = timeDiff(tsFlush, now)

	for k := range e.sndBuf {
		diff := timeDiff(e.sndBuf[k].resendts, now)
		if diff <= 0 {
			return now
		}
		if diff < tmPacket {
			tmPacket = diff
		}
	}

	minimal := uint32(tmPacket)
	if tmPacket >= tmFlush {
		minimal = uint32(tmFlush)
	}
	if minimal >= e.interval {
		minimal = e.interval
	}
	return now + minimal
}

// Dead reports whether the engine has given up on the conversation due to
// retransmission exhaustion of a single segment.
func (e *Engine) Dead() bool { return e.state == 0xFFFFFFFF }

// SetMtu changes the MTU (and derived MSS), default 1400.
func (e *Engine) SetMtu(mtu int) int {
	if mtu < 50 || mtu < overhead {
		return -1
	}
	e.buffer = make([]byte, (mtu+overhead)*3)
	e.mtu = uint32(mtu)
	e.mss = e.mtu - overhead
	return 0
}

// NoDelay sets the low-latency tuning tuple. Pass a negative value for any
// field to leave it unchanged.
//
//	nodelay: 0 disable (default), 1 enable
//	interval: flush interval ms, clamped to [10, 5000]
//	resend: fast-resend ack-duplication threshold, 0 disables
//	nc: 1 disables congestion-window-based flow control
func (e *Engine) NoDelay(nodelay, interval, resend, nc int) {
	if nodelay >= 0 {
		e.nodelay = uint32(nodelay)
		if nodelay != 0 {
			e.rxMinrto = rtoNoDelay
		} else {
			e.rxMinrto = rtoMin
		}
	}
	if interval >= 0 {
		if interval > 5000 {
			interval = 5000
		} else if interval < 10 {
			interval = 10
		}
		e.interval = uint32(interval)
	}
	if resend >= 0 {
		e.fastresend = int32(resend)
	}
	if nc >= 0 {
		e.nocwnd = int32(nc)
	}
}

// WndSize sets the send/receive window sizes (defaults 32/32).
func (e *Engine) WndSize(sndwnd, rcvwnd int) {
	if sndwnd > 0 {
		e.sndWnd = uint32(sndwnd)
	}
	if rcvwnd > 0 {
		e.rcvWnd = uint32(rcvwnd)
	}
}

// WaitSnd reports the number of segments pending send or acknowledgement.
func (e *Engine) WaitSnd() int { return len(e.sndBuf) + len(e.sndQueue) }

// Cwnd returns the current effective congestion window.
func (e *Engine) Cwnd() uint32 {
	cwnd := minU(e.sndWnd, e.rmtWnd)
	if e.nocwnd == 0 {
		cwnd = minU(e.cwnd, cwnd)
	}
	return cwnd
}

// Conv returns the conversation id.
func (e *Engine) Conv() uint32 { return e.conv }

// Mtu returns the configured MTU.
func (e *Engine) Mtu() int { return int(e.mtu) }
