package tunnel

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/vortun/vortun/internal/codec"
	"github.com/vortun/vortun/internal/config"
	"github.com/vortun/vortun/internal/mux"
)

func fastKCPConfig() KCPConfig {
	return KCPConfig{NoDelay: 1, Interval: 10, Resend: 2, NC: 1, SndWnd: 128, RcvWnd: 512, MTU: 1350}
}

// TestClientServerRoundTrip wires a real Client against a real Server over
// loopback UDP, with a TCP echo listener behind the server, and checks
// that a byte stream written by a client-side connection is echoed back
// unchanged.
func TestClientServerRoundTrip(t *testing.T) {
	echoLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen echo: %v", err)
	}
	defer echoLis.Close()
	go func() {
		for {
			c, err := echoLis.Accept()
			if err != nil {
				return
			}
			go io.Copy(c, c)
		}
	}()

	serverUDP, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer serverUDP.Close()
	serverPort := serverUDP.LocalAddr().(*net.UDPAddr).Port

	srv := NewServer(echoLis.Addr().String(), fastKCPConfig(), mux.DefaultConfig(), codec.Identity{}, true)
	go srv.Serve(serverUDP)

	remote := &config.MultiPort{Host: "127.0.0.1", MinPort: uint64(serverPort), MaxPort: uint64(serverPort)}
	cl := NewClient(remote, 1, fastKCPConfig(), mux.DefaultConfig(), codec.Identity{}, true, 0, 0)

	tcpLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen tcp: %v", err)
	}
	defer tcpLis.Close()
	go cl.Serve(tcpLis)

	conn, err := net.Dial("tcp", tcpLis.Addr().String())
	if err != nil {
		t.Fatalf("dial client listener: %v", err)
	}
	defer conn.Close()

	msg := bytes.Repeat([]byte("roundtrip "), 200)
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := make([]byte, len(msg))
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("echoed bytes mismatch")
	}
}
