package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMergeJSONFileOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `{"localaddr":"127.0.0.1:12948","remoteaddr":"2.2.2.2:4000","key":"secret","conn":4,"crc":true}`)

	cfg := Default()
	if err := mergeJSONFile(&cfg, path); err != nil {
		t.Fatalf("mergeJSONFile returned error: %v", err)
	}

	if cfg.LocalAddr != "127.0.0.1:12948" || cfg.RemoteAddr != "2.2.2.2:4000" {
		t.Fatalf("unexpected addresses: %+v", cfg)
	}
	if cfg.Key != "secret" || cfg.Conn != 4 || !cfg.CRC {
		t.Fatalf("unexpected field values: %+v", cfg)
	}
	// fields absent from the file retain their defaults
	if cfg.MTU != Default().MTU {
		t.Fatalf("expected untouched field to retain default, got %d", cfg.MTU)
	}
}

func TestMergeJSONFileMissing(t *testing.T) {
	cfg := Default()
	missing := filepath.Join(t.TempDir(), "missing.json")
	if err := mergeJSONFile(&cfg, missing); err == nil {
		t.Fatalf("mergeJSONFile expected error for missing file")
	}
}

func TestApplySIP003ClientOverridesAddresses(t *testing.T) {
	withSIP003Env(t, map[string]string{
		"SS_REMOTE_HOST":   "vps.example.com",
		"SS_REMOTE_PORT":   "29900",
		"SS_LOCAL_HOST":    "127.0.0.1",
		"SS_LOCAL_PORT":    "12948",
		"SS_PLUGIN_OPTIONS": "crypt=salsa20;conn=3;crc=true",
	})

	cfg := Default()
	applySIP003(&cfg, true)

	if cfg.LocalAddr != "127.0.0.1:12948" {
		t.Fatalf("expected local addr from SS_LOCAL_*, got %q", cfg.LocalAddr)
	}
	if cfg.RemoteAddr != "vps.example.com:29900" {
		t.Fatalf("expected remote addr from SS_REMOTE_*, got %q", cfg.RemoteAddr)
	}
	if cfg.Crypt != "salsa20" || cfg.Conn != 3 || !cfg.CRC {
		t.Fatalf("unexpected plugin-option overrides: %+v", cfg)
	}
}

func TestApplySIP003ServerMapsTargetFromLocal(t *testing.T) {
	withSIP003Env(t, map[string]string{
		"SS_REMOTE_HOST": "0.0.0.0",
		"SS_REMOTE_PORT": "29900",
		"SS_LOCAL_HOST":  "127.0.0.1",
		"SS_LOCAL_PORT":  "12948",
	})

	cfg := Default()
	applySIP003(&cfg, false)

	if cfg.LocalAddr != "0.0.0.0:29900" {
		t.Fatalf("expected server listen addr from SS_REMOTE_*, got %q", cfg.LocalAddr)
	}
	if cfg.TargetAddr != "127.0.0.1:12948" {
		t.Fatalf("expected target addr from SS_LOCAL_*, got %q", cfg.TargetAddr)
	}
}

func TestApplySIP003NoopWhenEnvIncomplete(t *testing.T) {
	withSIP003Env(t, map[string]string{
		"SS_REMOTE_HOST": "vps.example.com",
		// SS_REMOTE_PORT deliberately missing
	})

	cfg := Default()
	want := cfg
	applySIP003(&cfg, true)

	if cfg != want {
		t.Fatalf("expected config unchanged when SIP003 env is incomplete, got %+v", cfg)
	}
}

func withSIP003Env(t *testing.T, vars map[string]string) {
	t.Helper()
	keys := []string{"SS_REMOTE_HOST", "SS_REMOTE_PORT", "SS_LOCAL_HOST", "SS_LOCAL_PORT", "SS_PLUGIN_OPTIONS"}
	for _, k := range keys {
		prev, had := os.LookupEnv(k)
		k, prev, had := k, prev, had
		t.Cleanup(func() {
			if had {
				os.Setenv(k, prev)
			} else {
				os.Unsetenv(k)
			}
		})
		os.Unsetenv(k)
	}
	for k, v := range vars {
		os.Setenv(k, v)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
