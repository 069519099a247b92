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

package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/urfave/cli"

	"github.com/vortun/vortun/internal/codec"
	"github.com/vortun/vortun/internal/config"
	"github.com/vortun/vortun/internal/mux"
	"github.com/vortun/vortun/internal/tunnel"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "vortun"
	app.Usage = "server (TCP over KCP/SMUX tunnel)"
	app.Version = VERSION
	app.Flags = config.ServerFlags()
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.FromServerContext(c)
	if err != nil {
		return err
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		defer f.Close()
		log.SetOutput(f)
	}

	c2, err := codec.Select(cfg.Crypt, cfg.Key, cfg.CRC)
	if err != nil {
		return err
	}

	kcpCfg := tunnel.KCPConfig{
		NoDelay: cfg.NoDelay, Interval: cfg.Interval, Resend: cfg.Resend, NC: cfg.NC,
		SndWnd: cfg.SndWnd, RcvWnd: cfg.RcvWnd, MTU: cfg.MTU,
	}
	muxCfg := mux.Config{
		KeepAliveInterval: time.Duration(cfg.KeepAlive) * time.Second,
		KeepAliveTimeout:  3 * time.Duration(cfg.KeepAlive) * time.Second,
	}

	mp, err := config.ParseMultiPort(cfg.LocalAddr)
	if err != nil {
		return err
	}

	log.Println("version:", VERSION)
	log.Println("target address:", cfg.TargetAddr)
	log.Println("encryption:", cfg.Crypt, "crc:", cfg.CRC)
	log.Println("compression:", !cfg.NoComp)
	log.Println("nodelay parameters:", cfg.NoDelay, cfg.Interval, cfg.Resend, cfg.NC)
	log.Println("sndwnd:", cfg.SndWnd, "rcvwnd:", cfg.RcvWnd, "mtu:", cfg.MTU)

	var wg sync.WaitGroup
	for port := mp.MinPort; port <= mp.MaxPort; port++ {
		addr := fmt.Sprintf("%s:%d", mp.Host, port)
		udpAddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return err
		}
		conn, err := net.ListenUDP("udp", udpAddr)
		if err != nil {
			return err
		}
		if err := config.SetDSCP(conn, cfg.DSCP); err != nil {
			log.Println("SetDSCP:", err)
		}
		if err := conn.SetReadBuffer(cfg.SockBuf); err != nil {
			log.Println("SetReadBuffer:", err)
		}
		if err := conn.SetWriteBuffer(cfg.SockBuf); err != nil {
			log.Println("SetWriteBuffer:", err)
		}

		log.Println("listening on:", addr, "/udp")
		srv := tunnel.NewServer(cfg.TargetAddr, kcpCfg, muxCfg, c2, cfg.NoComp)
		wg.Add(1)
		go func(conn *net.UDPConn) {
			defer wg.Done()
			if err := srv.Serve(conn); err != nil {
				log.Println("tunnel server:", err)
			}
		}(conn)
	}
	wg.Wait()
	return nil
}
