package kcp

import (
	"bytes"
	"math/rand"
	"testing"
)

// link simulates a lossy UDP path between two engines: it drops packets
// at random but delivers the rest in order.
type link struct {
	lossPercent int
	rnd         *rand.Rand
	a, b        *Engine
}

func (l *link) outputFor(dst **Engine) Output {
	return func(buf []byte) {
		if l.lossPercent > 0 && l.rnd.Intn(100) < l.lossPercent {
			return
		}
		cp := make([]byte, len(buf))
		copy(cp, buf)
		(*dst).Input(cp, uint32(0), true, false)
	}
}

func TestSendRecvInOrder(t *testing.T) {
	var eb *Engine
	ea := NewEngine(1, func(buf []byte) {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		eb.Input(cp, 0, true, false)
	})
	eb = NewEngine(1, func(buf []byte) {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		ea.Input(cp, 0, true, false)
	})
	ea.SetStreamMode(true)
	eb.SetStreamMode(true)
	ea.NoDelay(1, 10, 2, 1)
	eb.NoDelay(1, 10, 2, 1)

	payload := bytes.Repeat([]byte("hello-world-"), 2000) // > one segment
	if rc := ea.Send(payload); rc != 0 {
		t.Fatalf("Send failed: %d", rc)
	}

	var now uint32
	var got []byte
	buf := make([]byte, 4096)
	for i := 0; i < 2000 && len(got) < len(payload); i++ {
		now += 10
		ea.Update(now)
		eb.Update(now)
		for {
			n := eb.Recv(buf)
			if n < 0 {
				break
			}
			got = append(got, buf[:n]...)
		}
	}

	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(payload))
	}
}

func TestLossResilience(t *testing.T) {
	l := &link{lossPercent: 10, rnd: rand.New(rand.NewSource(1))}
	ea := NewEngine(7, nil)
	eb := NewEngine(7, nil)
	ea.output = l.outputFor(&eb)
	eb.output = l.outputFor(&ea)
	l.a, l.b = ea, eb
	ea.SetStreamMode(true)
	eb.SetStreamMode(true)
	ea.NoDelay(1, 10, 2, 1)
	eb.NoDelay(1, 10, 2, 1)

	payload := make([]byte, 256*1024)
	for i := range payload {
		payload[i] = byte(i)
	}

	for off := 0; off < len(payload); off += 1024 {
		end := off + 1024
		if end > len(payload) {
			end = len(payload)
		}
		ea.Send(payload[off:end])
	}

	var now uint32
	var got []byte
	buf := make([]byte, 8192)
	for i := 0; i < 20000 && len(got) < len(payload); i++ {
		now += 10
		ea.Update(now)
		eb.Update(now)
		for {
			n := eb.Recv(buf)
			if n < 0 {
				break
			}
			got = append(got, buf[:n]...)
		}
	}

	if !bytes.Equal(got, payload) {
		t.Fatalf("loss-resilient transfer mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestDeadLinkDetection(t *testing.T) {
	ea := NewEngine(1, func(buf []byte) {})
	ea.NoDelay(1, 10, 2, 1)
	ea.Send([]byte("never delivered"))

	var now uint32
	for i := 0; i < 5000 && !ea.Dead(); i++ {
		now += 10
		ea.Update(now)
	}
	if !ea.Dead() {
		t.Fatal("expected engine to detect dead link after repeated retransmission failures")
	}
}
