package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INSTANCE_CONNECTION_NAME", "")
	t.Setenv("MAX_ATTEMPTS", "")
	t.Setenv("SESSION_BACKEND", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("EXT_LOGIN", "")
	t.Setenv("SESSION_SWEEP_INTERVAL", "")
	t.Setenv("SESSION_LOCK_WAIT", "")
	t.Setenv("SESSION_LOCK_TTL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", cfg.MaxAttempts)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.SessionBackend != SessionBackendMemory {
		t.Errorf("SessionBackend = %q", cfg.SessionBackend)
	}
	if cfg.SessionSweepInterval != 5*time.Minute || cfg.SessionLockWait != 3*time.Second || cfg.SessionLockTTL != 10*time.Second {
		t.Errorf("session timings = %v %v %v", cfg.SessionSweepInterval, cfg.SessionLockWait, cfg.SessionLockTTL)
	}
	if cfg.Extensions.Login != "1663" || cfg.Extensions.CustomerMenu != "1668" {
		t.Errorf("Extensions = %+v", cfg.Extensions)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_ATTEMPTS", "6")
	t.Setenv("SESSION_TTL", "10m")
	t.Setenv("SESSION_BACKEND", "Redis")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxAttempts != 6 || cfg.SessionTTL != 10*time.Minute || cfg.SessionBackend != SessionBackendRedis {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("invalid REDIS_DB should fall back to 0, got %d", cfg.RedisDB)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("MAX_ATTEMPTS", "0")
	if _, err := Load(); err == nil {
		t.Error("MAX_ATTEMPTS=0 accepted")
	}

	t.Setenv("MAX_ATTEMPTS", "4")
	t.Setenv("SESSION_BACKEND", "etcd")
	if _, err := Load(); err == nil {
		t.Error("unknown backend accepted")
	}

	t.Setenv("SESSION_BACKEND", "memory")
	for _, key := range []string{"SESSION_SWEEP_INTERVAL", "SESSION_LOCK_WAIT", "SESSION_LOCK_TTL"} {
		for _, value := range []string{"0s", "-1m"} {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%s accepted", key, value)
			}
		}
		t.Setenv(key, "")
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPass: "p", DBName: "n", DBHost: "h", DBPort: "5432"}
	if got := cfg.DSN(); got != "host=h user=u password=p dbname=n port=5432 sslmode=disable" {
		t.Errorf("DSN = %q", got)
	}

	cfg.InstanceConnectionName = "proj:region:inst"
	if got := cfg.DSN(); got != "host=/cloudsql/proj:region:inst user=u password=p dbname=n sslmode=disable" {
		t.Errorf("DSN = %q", got)
	}
}
