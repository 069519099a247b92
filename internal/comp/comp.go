// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package comp wraps a byte stream with snappy compression, sitting
// between the KCP stream and the SMUX session when compression is
// enabled.
package comp

import (
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Stream wraps an io.ReadWriteCloser (normally a *kcp.Session) with
// snappy framing on both directions.
type Stream struct {
	conn io.ReadWriteCloser
	w    *snappy.Writer
	r    *snappy.Reader
}

// New wraps conn with snappy compression.
func New(conn io.ReadWriteCloser) *Stream {
	return &Stream{
		conn: conn,
		w:    snappy.NewBufferedWriter(conn),
		r:    snappy.NewReader(conn),
	}
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *Stream) Write(p []byte) (int, error) {
	if _, err := s.w.Write(p); err != nil {
		return 0, errors.WithStack(err)
	}
	if err := s.w.Flush(); err != nil {
		return 0, errors.WithStack(err)
	}
	return len(p), nil
}

func (s *Stream) Close() error {
	return s.conn.Close()
}
