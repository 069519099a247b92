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
	"log"
	"net"
	"os"
	"time"

	"github.com/fatih/color"
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
	app.Usage = "client (TCP over KCP/SMUX tunnel)"
	app.Version = VERSION
	app.Flags = config.ClientFlags()
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.FromClientContext(c)
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

	if cfg.AutoExpire != 0 && cfg.ScavengeTTL > cfg.AutoExpire {
		color.Red("WARNING: scavengettl is bigger than autoexpire, tunnels may race to recreate.")
	}

	remote, err := config.ParseMultiPort(cfg.RemoteAddr)
	if err != nil {
		return err
	}

	c2, err := codec.Select(cfg.Crypt, cfg.Key, cfg.CRC)
	if err != nil {
		return err
	}

	kcpCfg := tunnel.KCPConfig{
		NoDelay: cfg.NoDelay, Interval: cfg.Interval, Resend: cfg.Resend, NC: cfg.NC,
		SndWnd: cfg.SndWnd, RcvWnd: cfg.RcvWnd, MTU: cfg.MTU,
		SockBuf: cfg.SockBuf, DSCP: cfg.DSCP,
	}
	muxCfg := mux.Config{
		KeepAliveInterval: time.Duration(cfg.KeepAlive) * time.Second,
		KeepAliveTimeout:  3 * time.Duration(cfg.KeepAlive) * time.Second,
	}

	cl := tunnel.NewClient(remote, cfg.Conn, kcpCfg, muxCfg, c2, cfg.NoComp,
		time.Duration(cfg.AutoExpire)*time.Second, time.Duration(cfg.ScavengeTTL)*time.Second)

	lis, err := net.Listen("tcp", cfg.LocalAddr)
	if err != nil {
		return err
	}

	log.Println("version:", VERSION)
	log.Println("listening on:", lis.Addr())
	log.Println("remote address:", cfg.RemoteAddr)
	log.Println("encryption:", cfg.Crypt, "crc:", cfg.CRC)
	log.Println("compression:", !cfg.NoComp)
	log.Println("conn:", cfg.Conn, "autoexpire:", cfg.AutoExpire, "scavengettl:", cfg.ScavengeTTL)
	log.Println("nodelay parameters:", cfg.NoDelay, cfg.Interval, cfg.Resend, cfg.NC)
	log.Println("sndwnd:", cfg.SndWnd, "rcvwnd:", cfg.RcvWnd, "mtu:", cfg.MTU)

	return cl.Serve(lis)
}
