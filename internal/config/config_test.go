package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wsusbcan/bridge/internal/wire"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SocketCANInterface != "vcan0" || cfg.CANBaudRate != wire.CANBaud1M {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"socketcan_interface":"can0","can_mode":"loopback-silent","filter_id":16}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SocketCANInterface != "can0" {
		t.Fatalf("expected overlay interface, got %q", cfg.SocketCANInterface)
	}
	if cfg.CANMode != wire.CANModeLoopbackSilent {
		t.Fatalf("expected dash/underscore-equivalent mode parse, got %v", cfg.CANMode)
	}
	if cfg.FilterID != 16 {
		t.Fatalf("expected filter_id 16, got %d", cfg.FilterID)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"socketcan_interface":"can0"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BRIDGE_SOCKETCAN_INTERFACE", "can9")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SocketCANInterface != "can9" {
		t.Fatalf("expected env override, got %q", cfg.SocketCANInterface)
	}
}

func TestValidateRejectsOutOfRangeTimeout(t *testing.T) {
	cfg := Default()
	cfg.USBReadTimeoutMs = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero timeout")
	}
}

func TestParseCANBaudCoversAllTwelveRates(t *testing.T) {
	cases := map[string]wire.CANBaud{
		"1m":    wire.CANBaud1M,
		"800k":  wire.CANBaud800K,
		"500k":  wire.CANBaud500K,
		"400k":  wire.CANBaud400K,
		"250k":  wire.CANBaud250K,
		"200k":  wire.CANBaud200K,
		"125k":  wire.CANBaud125K,
		"100k":  wire.CANBaud100K,
		"50k":   wire.CANBaud50K,
		"20k":   wire.CANBaud20K,
		"10k":   wire.CANBaud10K,
		"5k":    wire.CANBaud5K,
	}
	for s, want := range cases {
		got, err := parseCANBaud(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %v, want %v", s, got, want)
		}
	}
}

func TestParseCANModeCaseAndSeparatorInsensitive(t *testing.T) {
	for _, s := range []string{"LOOPBACK_SILENT", "loopback-silent", "Loopback_Silent"} {
		mode, err := ParseCANMode(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if mode != wire.CANModeLoopbackSilent {
			t.Fatalf("parse %q: got %v", s, mode)
		}
	}
}
