package frame

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Header{
		{Version: Version, Cmd: CmdSYN, Length: 0, StreamID: 1},
		{Version: Version, Cmd: CmdPSH, Length: 65535, StreamID: 0xffffffff},
		{Version: Version, Cmd: CmdFIN, Length: 1234, StreamID: 42},
		{Version: Version, Cmd: CmdNOP, Length: 0, StreamID: 0},
	}
	for _, h := range cases {
		buf := make([]byte, HeaderSize)
		Encode(buf, h)
		got := Decode(buf)
		if got != h {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
		}
	}
}
