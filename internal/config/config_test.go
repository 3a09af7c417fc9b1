package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123"

func TestDefaultNeedsSecret(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("err = %v, want jwt_secret error", err)
	}
	cfg.Auth.JWTSecret = testSecret
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default with secret: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"ping >= pong":    func(c *Config) { c.Server.PingSec = c.Server.PongWaitSec },
		"bad addr":        func(c *Config) { c.Server.HTTPAddr = "nope" },
		"bad driver":      func(c *Config) { c.Storage.Driver = "mysql" },
		"ring too short":  func(c *Config) { c.Calls.RingTimeoutSec = 1 },
		"kafka no broker": func(c *Config) { c.Events.Sink = "kafka" },
		"bad level":       func(c *Config) { c.Log.Level = "loud" },
		"global < user":   func(c *Config) { c.Limits.EventsPerMinuteGlobal = 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = testSecret
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEnsureCreatesThenLoads(t *testing.T) {
	t.Setenv(EnvJWTSecret, testSecret)
	path := filepath.Join(t.TempDir(), FileName)

	cfg, created, err := Ensure(path)
	if err != nil || !created {
		t.Fatalf("ensure = %v, %v", created, err)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Fatal("env secret not applied")
	}

	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), testSecret) {
		t.Fatal("env secret leaked into the file")
	}

	_, created, err = Ensure(path)
	if err != nil || created {
		t.Fatalf("second ensure = %v, %v", created, err)
	}
}

func TestLoadStripsBOMAndKeepsDefaults(t *testing.T) {
	t.Setenv(EnvJWTSecret, testSecret)
	path := filepath.Join(t.TempDir(), FileName)
	body := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"calls":{"ring_timeout_seconds":30}}`)...)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Calls.RingTimeoutSec != 30 {
		t.Fatalf("ring timeout = %d", cfg.Calls.RingTimeoutSec)
	}
	if cfg.Server.PingSec != Default().Server.PingSec {
		t.Fatal("defaults lost")
	}
}

func TestApplyEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("RTCORE_KAFKA_BROKERS=k1:9092, k2:9092\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvKafkaBrokers, "")
	os.Unsetenv(EnvKafkaBrokers)
	LoadDotEnv(envFile, filepath.Join(dir, "missing.env"))

	t.Setenv(EnvDBDriver, "memory")
	cfg := Default()
	ApplyEnv(&cfg)
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("driver = %s", cfg.Storage.Driver)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.Events.KafkaBrokers)
	}
}

func TestWatchReloads(t *testing.T) {
	t.Setenv(EnvJWTSecret, testSecret)
	path := filepath.Join(t.TempDir(), FileName)
	if _, _, err := Ensure(path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Reloadable, 4)
	go Watch(ctx, path, func(r Reloadable) { got <- r })
	time.Sleep(100 * time.Millisecond)

	cfg, _ := LoadPartial(path)
	cfg.Calls.RingTimeoutSec = 20
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-got:
		if r.RingTimeout != 20*time.Second {
			t.Fatalf("ring timeout = %s", r.RingTimeout)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
	}
}

func TestApplyLogLevels(t *testing.T) {
	if err := ApplyLogLevels(Log{Level: "debug", Subsystems: map[string]string{"call": "warn"}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := ApplyLogLevels(Log{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
