package config

import (
	"testing"
	"time"
)

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[network]
transport = "websocket"
bind_address = "127.0.0.1:9000"
idle_timeout = "10s"

[rate_limit]
packets_per_window = 5
abuse_threshold = 3

[world]
cell_size = 16
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Network.Transport != "websocket" || cfg.Network.BindAddress != "127.0.0.1:9000" {
		t.Fatalf("network = %+v", cfg.Network)
	}
	if cfg.Network.IdleTimeout != 10*time.Second {
		t.Fatalf("idle timeout = %v", cfg.Network.IdleTimeout)
	}
	if cfg.RateLimit.PacketsPerWindow != 5 || cfg.RateLimit.Window != time.Second {
		t.Fatalf("rate limit = %+v", cfg.RateLimit)
	}
	if cfg.World.CellSize != 16 || cfg.World.ViewRangeX != 9 {
		t.Fatalf("world = %+v", cfg.World)
	}
	if cfg.AI.PathTTLTicks != 10 {
		t.Fatalf("untouched section lost its defaults: %+v", cfg.AI)
	}
}

func TestParseRejectsUnknownTransport(t *testing.T) {
	if _, err := Parse([]byte("[network]\ntransport = \"carrier-pigeon\"\n")); err == nil {
		t.Fatalf("expected validation error")
	}
}
