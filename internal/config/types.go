package config

import "time"

// Config represents the complete mecfinder dispatch configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Records  RecordsConfig  `yaml:"records"`
	State    StateConfig    `yaml:"state"`
	API      APIConfig      `yaml:"api"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
	// Locked is set when a .b3 sidecar was present and matched.
	Locked bool `yaml:"-"`
}

// UsesSQLite reports whether either store lives in the SQLite file at
// records.sqlite_path.
func (c *Config) UsesSQLite() bool {
	return c.Records.Driver == DriverSQLite || c.State.Driver == DriverSQLite
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name" default:"mecfinder-dispatch"`
	LogLevel  string `yaml:"log_level" default:"info"`
	LogFormat string `yaml:"log_format" default:"json"`
	PIDFile   string `yaml:"pid_file"`
}

// DispatchConfig tunes the dispatch engine.
type DispatchConfig struct {
	OfferTimeout        time.Duration `yaml:"offer_timeout" default:"10s"`
	SnapshotTTL         time.Duration `yaml:"snapshot_ttl" default:"10m"`
	StoreTimeout        time.Duration `yaml:"store_timeout" default:"5s"`
	RecoveryConcurrency int           `yaml:"recovery_concurrency" default:"4"`
	RecoverOnStart      bool          `yaml:"recover_on_start" default:"true"`
}

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverRedis  = "redis"
)

// RecordsConfig selects the booking record store.
type RecordsConfig struct {
	Driver         string        `yaml:"driver" default:"sqlite"`
	SQLitePath     string        `yaml:"sqlite_path" default:"./data/mecfinder.db"`
	MongoURI       string        `yaml:"mongo_uri"`
	MongoDatabase  string        `yaml:"mongo_database" default:"mecfinder"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"15s"`
}

// StateConfig selects the dispatch state store.
type StateConfig struct {
	Driver        string        `yaml:"driver" default:"sqlite"`
	RedisAddr     string        `yaml:"redis_addr" default:"localhost:6379"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	KeyPrefix     string        `yaml:"key_prefix" default:"mecfinder:dispatch:"`
	PruneInterval time.Duration `yaml:"prune_interval" default:"1m"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen       string `yaml:"listen" default:"127.0.0.1:8080"`
	JWTSecret    string `yaml:"jwt_secret"`
	JWTIssuer    string `yaml:"jwt_issuer" default:"mecfinder"`
	EventsBuffer int    `yaml:"events_buffer" default:"256"`
}

// WebhookConfig enables the HMAC-signed booking intake endpoint used by the
// booking service to hand over new bookings with their ranked candidates.
type WebhookConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Listen          string `yaml:"listen" default:"127.0.0.1:8081"`
	Path            string `yaml:"path" default:"/hooks/bookings"`
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header" default:"X-Mecfinder-Signature"`
	MaxBodySize     string `yaml:"max_body_size" default:"1MB"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}
