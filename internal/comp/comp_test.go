package comp

import (
	"bytes"
	"io"
	"net"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	sa := New(a)
	sb := New(b)

	msg := bytes.Repeat([]byte("compress me please "), 500)
	errc := make(chan error, 1)
	go func() {
		_, err := sa.Write(msg)
		errc <- err
	}()

	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(sb, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Equal(buf, msg) {
		t.Fatalf("round trip mismatch")
	}
}
