package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const minJWTSecret = 16

// Validate checks the whole config and returns every problem joined.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch strings.ToLower(cfg.Service.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("service.log_level must be debug, info, warn or error, got %q", cfg.Service.LogLevel)
	}
	switch cfg.Service.LogFormat {
	case "json", "text":
	default:
		add("service.log_format must be json or text, got %q", cfg.Service.LogFormat)
	}

	d := cfg.Dispatch
	if d.OfferTimeout < time.Second {
		add("dispatch.offer_timeout must be at least 1s, got %s", d.OfferTimeout)
	}
	if d.SnapshotTTL <= d.OfferTimeout {
		add("dispatch.snapshot_ttl (%s) must exceed dispatch.offer_timeout (%s)", d.SnapshotTTL, d.OfferTimeout)
	}
	if d.StoreTimeout <= 0 {
		add("dispatch.store_timeout must be positive")
	}
	if d.RecoveryConcurrency < 1 {
		add("dispatch.recovery_concurrency must be at least 1")
	}

	if cfg.UsesSQLite() && strings.TrimSpace(cfg.Records.SQLitePath) == "" {
		add("records.sqlite_path is required when either store uses sqlite")
	}

	switch cfg.Records.Driver {
	case DriverSQLite:
	case DriverMongo:
		if unresolved(cfg.Records.MongoURI) {
			add("records.mongo_uri is required for the mongo driver")
		}
		if cfg.Records.MongoDatabase == "" {
			add("records.mongo_database is required for the mongo driver")
		}
	default:
		add("records.driver must be sqlite or mongo, got %q", cfg.Records.Driver)
	}

	switch cfg.State.Driver {
	case DriverSQLite:
		if cfg.State.PruneInterval <= 0 {
			add("state.prune_interval must be positive")
		}
	case DriverRedis:
		if unresolved(cfg.State.RedisAddr) {
			add("state.redis_addr is required for the redis driver")
		}
	default:
		add("state.driver must be sqlite or redis, got %q", cfg.State.Driver)
	}

	if unresolved(cfg.API.JWTSecret) {
		add("api.jwt_secret is not set (did you export MECFINDER_JWT_SECRET?)")
	} else if len(cfg.API.JWTSecret) < minJWTSecret {
		add("api.jwt_secret must be at least %d bytes", minJWTSecret)
	}
	if cfg.API.Listen == "" {
		add("api.listen is required")
	}
	if cfg.API.EventsBuffer < 1 {
		add("api.events_buffer must be positive")
	}

	if w := cfg.Webhook; w.Enabled {
		if unresolved(w.Secret) {
			add("webhook.secret is required when the webhook is enabled")
		} else if len(w.Secret) < minJWTSecret {
			add("webhook.secret must be at least %d bytes", minJWTSecret)
		}
		if !strings.HasPrefix(w.Path, "/") {
			add("webhook.path must start with /, got %q", w.Path)
		}
		if w.Listen == "" || w.Listen == cfg.API.Listen {
			add("webhook.listen must be set and differ from api.listen")
		}
		if w.SignatureHeader == "" {
			add("webhook.signature_header is required")
		}
	}

	return errors.Join(errs...)
}

// unresolved reports an empty value or a leftover ${VAR} placeholder.
func unresolved(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || envVarPattern.MatchString(v)
}
