package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "minimal config gets defaults",
			yaml: `
api:
  jwt_secret: ` + testSecret + `
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Dispatch.OfferTimeout != 10*time.Second {
					t.Errorf("offer_timeout = %s, want 10s", cfg.Dispatch.OfferTimeout)
				}
				if cfg.Dispatch.SnapshotTTL != 10*time.Minute {
					t.Errorf("snapshot_ttl = %s, want 10m", cfg.Dispatch.SnapshotTTL)
				}
				if !cfg.Dispatch.RecoverOnStart {
					t.Error("recover_on_start should default to true")
				}
				if cfg.Records.Driver != DriverSQLite || cfg.State.Driver != DriverSQLite {
					t.Errorf("drivers = %s/%s, want sqlite/sqlite", cfg.Records.Driver, cfg.State.Driver)
				}
				if cfg.State.KeyPrefix != "mecfinder:dispatch:" {
					t.Errorf("key_prefix = %q", cfg.State.KeyPrefix)
				}
				if cfg.API.Listen != "127.0.0.1:8080" {
					t.Errorf("listen = %q", cfg.API.Listen)
				}
				if cfg.Locked {
					t.Error("config without sidecar reported as locked")
				}
			},
		},
		{
			name: "explicit false overrides a true default",
			yaml: `
dispatch:
  recover_on_start: false
metrics:
  enabled: false
api:
  jwt_secret: ` + testSecret + `
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Dispatch.RecoverOnStart {
					t.Error("recover_on_start should be false")
				}
				if cfg.Metrics.Enabled {
					t.Error("metrics.enabled should be false")
				}
			},
		},
		{
			name: "env var interpolation",
			yaml: `
dispatch:
  offer_timeout: 15s
state:
  driver: redis
  redis_addr: ${TEST_REDIS_ADDR}
api:
  jwt_secret: ${TEST_JWT_SECRET}
`,
			env: map[string]string{
				"TEST_REDIS_ADDR": "redis.internal:6379",
				"TEST_JWT_SECRET": testSecret,
			},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.State.RedisAddr != "redis.internal:6379" {
					t.Errorf("redis_addr = %q", cfg.State.RedisAddr)
				}
				if cfg.API.JWTSecret != testSecret {
					t.Error("jwt_secret not interpolated")
				}
				if cfg.Dispatch.OfferTimeout != 15*time.Second {
					t.Errorf("offer_timeout = %s", cfg.Dispatch.OfferTimeout)
				}
			},
		},
		{
			name: "unset secret is reported",
			yaml: `
api:
  jwt_secret: ${TEST_UNSET_SECRET_VAR}
`,
			wantErr: "api.jwt_secret is not set",
		},
		{
			name: "unknown field rejected",
			yaml: `
dispatch:
  offer_timeot: 5s
`,
			wantErr: "failed to parse YAML",
		},
		{
			name: "several problems are joined",
			yaml: `
service:
  log_format: xml
dispatch:
  offer_timeout: 500ms
records:
  driver: postgres
api:
  jwt_secret: short
`,
			wantErr: "records.driver must be sqlite or mongo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load(writeConfig(t, tt.yaml))
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Load() succeeded, want error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Service.LogFormat = "xml"
	cfg.Dispatch.OfferTimeout = 0
	cfg.API.JWTSecret = "short"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() succeeded on a bad config")
	}
	for _, want := range []string{"service.log_format", "dispatch.offer_timeout", "api.jwt_secret must be at least"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidateMongoNeedsURI(t *testing.T) {
	cfg := Default()
	cfg.API.JWTSecret = testSecret
	cfg.Records.Driver = DriverMongo
	cfg.State.Driver = DriverRedis

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "records.mongo_uri") {
		t.Fatalf("Validate() = %v, want mongo_uri error", err)
	}

	cfg.Records.MongoURI = "mongodb://localhost:27017"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if cfg.UsesSQLite() {
		t.Fatal("mongo + redis should not use sqlite")
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api:\n  jwt_secret: "+testSecret+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(dir) failed: %v", err)
	}
	if cfg.SourcePath != filepath.Join(dir, "config.yaml") {
		t.Fatalf("SourcePath = %q", cfg.SourcePath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("Load() = %v, want not found", err)
	}
}

func TestLockRoundTrip(t *testing.T) {
	path := writeConfig(t, "api:\n  jwt_secret: "+testSecret+"\n")

	hash, err := Lock(path)
	if err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}
	if len(hash) != 64 {
		t.Fatalf("hash length = %d, want 64", len(hash))
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after lock failed: %v", err)
	}
	if !cfg.Locked {
		t.Fatal("config should be reported as locked")
	}

	// Tamper with the pinned file.
	if err := os.WriteFile(path, []byte("api:\n  jwt_secret: "+testSecret+"\n  listen: 0.0.0.0:80\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err = Load(path)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("Load() = %v, want ErrIntegrity", err)
	}

	cfg, err = LoadUnverified(path)
	if err != nil {
		t.Fatalf("LoadUnverified() = %v", err)
	}
	if cfg.Locked || cfg.API.Listen != "0.0.0.0:80" {
		t.Fatalf("LoadUnverified() = locked %v, listen %q", cfg.Locked, cfg.API.Listen)
	}
}

func TestVerifyLockWithoutSidecar(t *testing.T) {
	path := writeConfig(t, "service: {}\n")
	locked, err := VerifyLock(path)
	if err != nil || locked {
		t.Fatalf("VerifyLock() = %v, %v; want false, nil", locked, err)
	}
}

func TestDiscoverHonoursEnv(t *testing.T) {
	path := writeConfig(t, "service: {}\n")
	t.Setenv("MECFINDER_CONFIG", path)
	got, err := Discover()
	if err != nil || got != path {
		t.Fatalf("Discover() = %q, %v", got, err)
	}

	t.Setenv("MECFINDER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Discover(); err == nil {
		t.Fatal("Discover() should fail for a missing $MECFINDER_CONFIG")
	}
}

func TestValidateWebhook(t *testing.T) {
	cfg := Default()
	cfg.API.JWTSecret = testSecret
	cfg.Webhook.Enabled = true
	cfg.Webhook.Listen = cfg.API.Listen
	cfg.Webhook.Path = "hooks"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() accepted an enabled webhook without a secret")
	}
	for _, want := range []string{"webhook.secret", "webhook.path", "webhook.listen"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	cfg.Webhook.Secret = "intake-secret-0123456789"
	cfg.Webhook.Listen = "127.0.0.1:8081"
	cfg.Webhook.Path = "/hooks/bookings"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestReadSkipsValidation(t *testing.T) {
	path := writeConfig(t, "dispatch:\n  offer_timeout: 10ms\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should reject a 10ms offer timeout")
	}
	cfg, err := Read(path)
	if err != nil {
		t.Fatalf("Read() = %v", err)
	}
	if cfg.Dispatch.OfferTimeout != 10*time.Millisecond || cfg.SourcePath != path {
		t.Fatalf("Read() = %+v", cfg)
	}
}
