// Package config defines the shared tunable set for the client and server
// binaries, and the three ways a value reaches it: CLI flags, an optional
// JSON file (-c), and the SIP003 plugin environment-variable convention.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Config holds every tunable shared by cmd/client and cmd/server. Fields
// unused by one side are simply left at their zero value there.
type Config struct {
	LocalAddr  string `json:"localaddr"`
	RemoteAddr string `json:"remoteaddr"`
	TargetAddr string `json:"targetaddr"`

	Key    string `json:"key"`
	Crypt  string `json:"crypt"`
	CRC    bool   `json:"crc"`
	NoComp bool   `json:"nocomp"`

	Conn        int `json:"conn"`
	AutoExpire  int `json:"autoexpire"`
	ScavengeTTL int `json:"scavengettl"`

	MTU      int `json:"mtu"`
	SndWnd   int `json:"sndwnd"`
	RcvWnd   int `json:"rcvwnd"`
	NoDelay  int `json:"nodelay"`
	Resend   int `json:"resend"`
	NC       int `json:"nc"`
	Interval int `json:"interval"`
	SockBuf  int `json:"sockbuf"`
	KeepAlive int `json:"keepalive"`
	DSCP     int `json:"dscp"`

	LogFile string `json:"logfile"`
}

// Default returns the tunable defaults named in the external interface.
func Default() Config {
	return Config{
		LocalAddr:   ":12948",
		RemoteAddr:  "vps:29900",
		TargetAddr:  "127.0.0.1:12948",
		Crypt:       "none",
		Conn:        1,
		AutoExpire:  0,
		ScavengeTTL: 600,
		MTU:         1350,
		SndWnd:      128,
		RcvWnd:      512,
		NoDelay:     1,
		Resend:      2,
		NC:          1,
		Interval:    10,
		SockBuf:     4194304,
		KeepAlive:   10,
		DSCP:        0,
	}
}

// sharedFlags returns the tunables common to both binaries; the address
// flags are defined separately by ClientFlags and ServerFlags.
func sharedFlags() []cli.Flag {
	d := Default()
	return []cli.Flag{
		cli.StringFlag{Name: "key", Value: "it's a secret", Usage: "pre-shared secret between client and server", EnvVar: "VORTUN_KEY"},
		cli.StringFlag{Name: "crypt", Value: d.Crypt, Usage: "none, aes, aes-gcm, salsa20, blowfish"},
		cli.BoolFlag{Name: "crc", Usage: "wrap the wire codec with a CRC32C integrity envelope"},
		cli.BoolFlag{Name: "nocomp", Usage: "disable snappy compression"},
		cli.IntFlag{Name: "mtu", Value: d.MTU, Usage: "maximum transmission unit for UDP packets"},
		cli.IntFlag{Name: "sndwnd", Value: d.SndWnd, Usage: "send window size (number of packets)"},
		cli.IntFlag{Name: "rcvwnd", Value: d.RcvWnd, Usage: "receive window size (number of packets)"},
		cli.IntFlag{Name: "nodelay", Value: d.NoDelay, Usage: "kcp nodelay mode"},
		cli.IntFlag{Name: "resend", Value: d.Resend, Usage: "kcp fast-resend threshold"},
		cli.IntFlag{Name: "nc", Value: d.NC, Usage: "disable kcp congestion control"},
		cli.IntFlag{Name: "interval", Value: d.Interval, Usage: "kcp update interval, in milliseconds"},
		cli.IntFlag{Name: "sockbuf", Value: d.SockBuf, Usage: "per-socket buffer in bytes"},
		cli.IntFlag{Name: "keepalive", Value: d.KeepAlive, Usage: "seconds between smux keepalive pings"},
		cli.IntFlag{Name: "dscp", Value: d.DSCP, Usage: "set DSCP (6 bit)"},
		cli.StringFlag{Name: "logfile", Value: "", Usage: "write log output to this file instead of stderr"},
		cli.StringFlag{Name: "c", Value: "", Usage: "load config from a json file, overriding flags (SIP003 environment variables still override it)"},
	}
}

// ClientFlags returns the urfave/cli flag set for cmd/client.
func ClientFlags() []cli.Flag {
	d := Default()
	flags := []cli.Flag{
		cli.StringFlag{Name: "localaddr, l", Value: d.LocalAddr, Usage: "local TCP listen address"},
		cli.StringFlag{Name: "remoteaddr, r", Value: d.RemoteAddr, Usage: `tunnel server address, "host:port" or "host:minport-maxport"`},
		cli.IntFlag{Name: "conn", Value: d.Conn, Usage: "number of UDP tunnels to the server"},
		cli.IntFlag{Name: "autoexpire", Value: d.AutoExpire, Usage: "seconds before a tunnel is forced to re-create, 0 disables"},
		cli.IntFlag{Name: "scavengettl", Value: d.ScavengeTTL, Usage: "seconds after creation before a tunnel is destroyed, when autoexpire is enabled"},
	}
	return append(flags, sharedFlags()...)
}

// ServerFlags returns the urfave/cli flag set for cmd/server.
func ServerFlags() []cli.Flag {
	d := Default()
	flags := []cli.Flag{
		cli.StringFlag{Name: "localaddr, l", Value: ":29900", Usage: `UDP listen address, "host:port" or "host:minport-maxport"`},
		cli.StringFlag{Name: "targetaddr, t", Value: d.TargetAddr, Usage: "TCP address to forward accepted streams to"},
	}
	return append(flags, sharedFlags()...)
}

// FromClientContext builds a Config from a cli.Context populated by
// ClientFlags, then layers the json file and SIP003 environment overrides.
func FromClientContext(c *cli.Context) (Config, error) {
	cfg := Default()
	cfg.LocalAddr = c.String("localaddr")
	cfg.RemoteAddr = c.String("remoteaddr")
	cfg.Conn = c.Int("conn")
	cfg.AutoExpire = c.Int("autoexpire")
	cfg.ScavengeTTL = c.Int("scavengettl")
	applyShared(&cfg, c)

	if path := c.String("c"); path != "" {
		if err := mergeJSONFile(&cfg, path); err != nil {
			return cfg, errors.Wrap(err, "load json config")
		}
	}
	applySIP003(&cfg, true)
	return cfg, nil
}

// FromServerContext builds a Config from a cli.Context populated by
// ServerFlags, then layers the json file and SIP003 environment overrides.
func FromServerContext(c *cli.Context) (Config, error) {
	cfg := Default()
	cfg.LocalAddr = c.String("localaddr")
	cfg.TargetAddr = c.String("targetaddr")
	applyShared(&cfg, c)

	if path := c.String("c"); path != "" {
		if err := mergeJSONFile(&cfg, path); err != nil {
			return cfg, errors.Wrap(err, "load json config")
		}
	}
	applySIP003(&cfg, false)
	return cfg, nil
}

func applyShared(cfg *Config, c *cli.Context) {
	cfg.Key = c.String("key")
	cfg.Crypt = c.String("crypt")
	cfg.CRC = c.Bool("crc")
	cfg.NoComp = c.Bool("nocomp")
	cfg.MTU = c.Int("mtu")
	cfg.SndWnd = c.Int("sndwnd")
	cfg.RcvWnd = c.Int("rcvwnd")
	cfg.NoDelay = c.Int("nodelay")
	cfg.Resend = c.Int("resend")
	cfg.NC = c.Int("nc")
	cfg.Interval = c.Int("interval")
	cfg.SockBuf = c.Int("sockbuf")
	cfg.KeepAlive = c.Int("keepalive")
	cfg.DSCP = c.Int("dscp")
	cfg.LogFile = c.String("logfile")
}

func mergeJSONFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(cfg)
}

// applySIP003 overrides addresses and tunables from the shadowsocks
// plugin convention, when the host invokes this binary as an SS plugin.
// isClient selects the mapping: the client takes SS_LOCAL_* as LocalAddr
// and SS_REMOTE_* as RemoteAddr; the server takes SS_REMOTE_* as its
// listen LocalAddr and SS_LOCAL_* as TargetAddr.
func applySIP003(cfg *Config, isClient bool) {
	remoteHost := os.Getenv("SS_REMOTE_HOST")
	remotePort := os.Getenv("SS_REMOTE_PORT")
	localHost := os.Getenv("SS_LOCAL_HOST")
	localPort := os.Getenv("SS_LOCAL_PORT")

	if remoteHost == "" || remotePort == "" || localHost == "" || localPort == "" {
		return
	}

	if isClient {
		cfg.LocalAddr = joinHostPort(localHost, localPort)
		cfg.RemoteAddr = joinHostPort(remoteHost, remotePort)
	} else {
		cfg.LocalAddr = joinHostPort(remoteHost, remotePort)
		cfg.TargetAddr = joinHostPort(localHost, localPort)
	}

	for _, kv := range strings.Split(os.Getenv("SS_PLUGIN_OPTIONS"), ";") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		key := parts[0]
		val := ""
		if len(parts) == 2 {
			val = parts[1]
		}
		applyOption(cfg, key, val)
	}
}

func applyOption(cfg *Config, key, val string) {
	asInt := func() (int, bool) {
		n, err := strconv.Atoi(val)
		return n, err == nil
	}
	asBool := func() bool {
		b, _ := strconv.ParseBool(val)
		return b
	}
	switch key {
	case "key":
		cfg.Key = val
	case "crypt":
		cfg.Crypt = val
	case "crc":
		cfg.CRC = asBool()
	case "nocomp":
		cfg.NoComp = asBool()
	case "conn":
		if n, ok := asInt(); ok {
			cfg.Conn = n
		}
	case "autoexpire":
		if n, ok := asInt(); ok {
			cfg.AutoExpire = n
		}
	case "scavengettl":
		if n, ok := asInt(); ok {
			cfg.ScavengeTTL = n
		}
	case "mtu":
		if n, ok := asInt(); ok {
			cfg.MTU = n
		}
	case "sndwnd":
		if n, ok := asInt(); ok {
			cfg.SndWnd = n
		}
	case "rcvwnd":
		if n, ok := asInt(); ok {
			cfg.RcvWnd = n
		}
	case "nodelay":
		if n, ok := asInt(); ok {
			cfg.NoDelay = n
		}
	case "resend":
		if n, ok := asInt(); ok {
			cfg.Resend = n
		}
	case "nc":
		if n, ok := asInt(); ok {
			cfg.NC = n
		}
	case "interval":
		if n, ok := asInt(); ok {
			cfg.Interval = n
		}
	case "sockbuf":
		if n, ok := asInt(); ok {
			cfg.SockBuf = n
		}
	case "keepalive":
		if n, ok := asInt(); ok {
			cfg.KeepAlive = n
		}
	case "dscp":
		if n, ok := asInt(); ok {
			cfg.DSCP = n
		}
	}
}

func joinHostPort(host, port string) string {
	return host + ":" + port
}
