package kcp

import (
	"bytes"
	"testing"
	"time"
)

func TestSessionReadWriteRoundTrip(t *testing.T) {
	var sa, sb *Session
	sa = NewSession(42, func(buf []byte) { go sb.Input(buf) })
	sb = NewSession(42, func(buf []byte) { go sa.Input(buf) })
	defer sa.Close()
	defer sb.Close()

	sa.Configure(1, 10, 2, 1, 128, 512, 1350)
	sb.Configure(1, 10, 2, 1, 128, 512, 1350)

	msg := []byte("hello over kcp session adapter\n")
	if _, err := sa.Write(msg); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	buf := make([]byte, 4096)
	done := make(chan struct{})
	var n int
	go func() {
		n, _ = sb.Read(buf)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for read")
	}

	if !bytes.Equal(buf[:n], msg) {
		t.Fatalf("got %q, want %q", buf[:n], msg)
	}
}

func TestSessionCloseWakesReaders(t *testing.T) {
	s := NewSession(1, func(buf []byte) {})
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Read(make([]byte, 16))
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-errCh:
		if err != ErrClosed {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not wake up after Close")
	}
}
