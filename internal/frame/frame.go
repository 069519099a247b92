// Package frame encodes and decodes the SMUX frame header carried over a
// KCP byte stream.
package frame

import "encoding/binary"

// Version is the only SMUX frame version this module speaks.
const Version = 1

// Frame commands.
const (
	CmdSYN = 0
	CmdFIN = 1
	CmdPSH = 2
	CmdNOP = 3
)

// HeaderSize is the fixed size of a frame header on the wire.
const HeaderSize = 8

// Header is the decoded form of an 8-byte frame header:
// version(1) | cmd(1) | length(2, LE) | stream_id(4, LE).
type Header struct {
	Version  byte
	Cmd      byte
	Length   uint16
	StreamID uint32
}

// Encode writes h's 8-byte wire form into dst, which must be at least
// HeaderSize bytes long.
func Encode(dst []byte, h Header) {
	_ = dst[:HeaderSize]
	dst[0] = h.Version
	dst[1] = h.Cmd
	binary.LittleEndian.PutUint16(dst[2:4], h.Length)
	binary.LittleEndian.PutUint32(dst[4:8], h.StreamID)
}

// Decode parses an 8-byte wire header from src.
func Decode(src []byte) Header {
	_ = src[:HeaderSize]
	return Header{
		Version:  src[0],
		Cmd:      src[1],
		Length:   binary.LittleEndian.Uint16(src[2:4]),
		StreamID: binary.LittleEndian.Uint32(src[4:8]),
	}
}

// NewFrame builds a Header for the given command/stream/payload length.
func NewFrame(cmd byte, streamID uint32, length uint16) Header {
	return Header{Version: Version, Cmd: cmd, Length: length, StreamID: streamID}
}
