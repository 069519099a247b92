// Package bridge shuffles bytes between a TCP socket and a mux.Stream: two
// symmetric half-duplex pumps, one per direction, joined by a single
// teardown that closes both ends the moment either direction errors.
package bridge

import (
	"io"
	"sync"
)

const bufSize = 4096

// copyBuf is a memory-bounded io.Copy using a fixed-size buffer. dst and
// src are wrapped so io.CopyBuffer cannot take a WriterTo/ReaderFrom fast
// path (a *net.TCPConn implements ReaderFrom); every copy goes through buf.
func copyBuf(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, bufSize)
	return io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, buf)
}

// Pipe runs two half-duplex pumps between alice and bob until either
// direction errors, then closes both ends and returns each direction's
// terminal error. No explicit flow control beyond whatever back-pressure
// the underlying streams already apply.
func Pipe(alice, bob io.ReadWriteCloser) (errAlice, errBob error) {
	var closeOnce sync.Once
	var wg sync.WaitGroup
	wg.Add(2)

	pump := func(dst io.Writer, src io.ReadCloser, out *error) {
		defer wg.Done()
		_, *out = copyBuf(dst, src)
		closeOnce.Do(func() {
			alice.Close()
			bob.Close()
		})
	}

	go pump(alice, bob, &errAlice)
	go pump(bob, alice, &errBob)
	wg.Wait()
	return
}
