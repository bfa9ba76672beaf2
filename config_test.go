package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearChatdEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"CHATD_ADDR", "CHATD_API_ADDR", "CHATD_LOG_LEVEL", "CHATD_LOG_FORMAT",
		"CHATD_BUFFER_SIZE", "CHATD_MAX_NAME_LENGTH", "CHATD_MAX_MUTE_LIST",
		"CHATD_HISTORY_CAPACITY", "CHATD_ROOM_BUCKETS", "CHATD_INACTIVITY_THRESHOLD",
		"CHATD_PING_TIMEOUT", "CHATD_SWEEP_INTERVAL", "CHATD_CONFIG_FILE",
	}
	for _, v := range vars {
		old, had := os.LookupEnv(v)
		os.Unsetenv(v)
		t.Cleanup(func() {
			if had {
				os.Setenv(v, old)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearChatdEnv(t)
	cfg, err := loadConfig(nil, nil)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Addr != ":12000" {
		t.Errorf("Addr = %q, want :12000", cfg.Addr)
	}
	if cfg.MaxMuteList != 16 {
		t.Errorf("MaxMuteList = %d, want 16", cfg.MaxMuteList)
	}
	if cfg.SweepInterval != 500*time.Millisecond {
		t.Errorf("SweepInterval = %v, want 500ms", cfg.SweepInterval)
	}
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	clearChatdEnv(t)
	os.Setenv("CHATD_ADDR", ":9999")
	t.Cleanup(func() { os.Unsetenv("CHATD_ADDR") })

	cfg, err := loadConfig([]string{"--addr", ":7777"}, nil)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Addr != ":7777" {
		t.Errorf("Addr = %q, want flag value :7777", cfg.Addr)
	}
}

func TestLoadConfigEnvOverridesDefault(t *testing.T) {
	clearChatdEnv(t)
	os.Setenv("CHATD_MAX_MUTE_LIST", "4")
	t.Cleanup(func() { os.Unsetenv("CHATD_MAX_MUTE_LIST") })

	cfg, err := loadConfig(nil, nil)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.MaxMuteList != 4 {
		t.Errorf("MaxMuteList = %d, want 4 from env", cfg.MaxMuteList)
	}
}

func TestLoadConfigYAMLFileOverlayAndFlagPrecedence(t *testing.T) {
	clearChatdEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "chatd.yaml")
	contents := "addr: \":5555\"\nmax_mute_list: 9\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := loadConfig([]string{"--config-file", path}, nil)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Addr != ":5555" {
		t.Errorf("Addr = %q, want :5555 from file", cfg.Addr)
	}
	if cfg.MaxMuteList != 9 {
		t.Errorf("MaxMuteList = %d, want 9 from file", cfg.MaxMuteList)
	}
	// untouched fields keep their envDefault values.
	if cfg.RoomBuckets != 32 {
		t.Errorf("RoomBuckets = %d, want default 32", cfg.RoomBuckets)
	}

	cfg2, err := loadConfig([]string{"--config-file", path, "--addr", ":6666"}, nil)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg2.Addr != ":6666" {
		t.Errorf("Addr = %q, want flag to win over the config file", cfg2.Addr)
	}
}

func TestLoadConfigRejectsInvalidLogLevel(t *testing.T) {
	clearChatdEnv(t)
	if _, err := loadConfig([]string{"--log-level", "verbose"}, nil); err == nil {
		t.Error("loadConfig() with an invalid log level should error")
	}
}

func TestLoadConfigRejectsTooSmallBuffer(t *testing.T) {
	clearChatdEnv(t)
	if _, err := loadConfig([]string{"--buffer-size", "8"}, nil); err == nil {
		t.Error("loadConfig() with an undersized buffer should error")
	}
}
