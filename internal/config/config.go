package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendDynamo   = "dynamo" // criteria only
)

type Config struct {
	Backend         string   // ELIGIBILITY_BACKEND (default "postgres" when a database URL is set, else "memory")
	CriteriaBackend string   // ELIGIBILITY_CRITERIA_BACKEND (default: same as Backend; "dynamo" allowed)
	DatabaseURL     string   // ELIGIBILITY_DATABASE_URL (required for postgres)
	DynamoTable     string   // ELIGIBILITY_DYNAMO_TABLE (default "criteria")
	DynamoRegion    string   // ELIGIBILITY_DYNAMO_REGION (default "us-east-1")
	DynamoEndpoint  string   // ELIGIBILITY_DYNAMO_ENDPOINT (custom endpoint for DynamoDB Local)
	NATSURL         string   // ELIGIBILITY_NATS_URL (optional, empty = no events)
	LogLevel        string   // ELIGIBILITY_LOG_LEVEL (default "info")
	Apps            []string // ELIGIBILITY_APPS (comma-separated apps to export)

	// Criteria read cache
	CacheSize int           // ELIGIBILITY_CACHE_SIZE (default 0 = no cache)
	CacheTTL  time.Duration // ELIGIBILITY_CACHE_TTL (default 1m)

	// Sync settings
	SyncInterval   time.Duration // ELIGIBILITY_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // ELIGIBILITY_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // ELIGIBILITY_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // ELIGIBILITY_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // ELIGIBILITY_SYNC_S3_KEY (default "eligibility/backup.jsonl")
	SyncFile       string        // ELIGIBILITY_SYNC_FILE (enables a local file destination when set)
}

// File is the on-disk configuration: named profiles and the active one.
type File struct {
	Active   string             `toml:"active"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile holds file-level defaults. Environment variables override them.
type Profile struct {
	Backend         string   `toml:"backend,omitempty"`
	CriteriaBackend string   `toml:"criteria_backend,omitempty"`
	DatabaseURL     string   `toml:"database_url,omitempty"`
	DynamoTable     string   `toml:"dynamo_table,omitempty"`
	DynamoRegion    string   `toml:"dynamo_region,omitempty"`
	DynamoEndpoint  string   `toml:"dynamo_endpoint,omitempty"`
	NATSURL         string   `toml:"nats_url,omitempty"`
	LogLevel        string   `toml:"log_level,omitempty"`
	Apps            []string `toml:"apps,omitempty"`
	CacheSize       int      `toml:"cache_size,omitempty"`
	CacheTTL        string   `toml:"cache_ttl,omitempty"`
	SyncInterval    string   `toml:"sync_interval,omitempty"`
	SyncS3Bucket    string   `toml:"sync_s3_bucket,omitempty"`
	SyncS3Endpoint  string   `toml:"sync_s3_endpoint,omitempty"`
	SyncS3Region    string   `toml:"sync_s3_region,omitempty"`
	SyncS3Key       string   `toml:"sync_s3_key,omitempty"`
	SyncFile        string   `toml:"sync_file,omitempty"`
}

// DefaultPath returns the config file location: ELIGIBILITY_CONFIG, or
// config.toml under the user config directory.
func DefaultPath() (string, error) {
	if p := os.Getenv("ELIGIBILITY_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "eligibility", "config.toml"), nil
}

// LoadFile reads a config file. A missing file yields an empty File.
func LoadFile(path string) (File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{Profiles: map[string]Profile{}}, nil
		}
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]Profile{}
	}
	return f, nil
}

// Profile returns the named profile, falling back to the active one.
// ELIGIBILITY_PROFILE overrides the active profile.
func (f File) Profile(name string) (Profile, error) {
	if name == "" {
		name = envOrDefault("ELIGIBILITY_PROFILE", f.Active)
	}
	if name == "" {
		return Profile{}, nil
	}
	p, ok := f.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found", name)
	}
	return p, nil
}

// Load reads the default config file, if present, and applies the
// environment on top of its active profile.
func Load() (*Config, error) {
	return LoadProfile("")
}

// LoadProfile is Load with an explicit profile name. An empty name selects
// the active profile.
func LoadProfile(name string) (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := f.Profile(name)
	if err != nil {
		return nil, err
	}
	return FromProfile(p)
}

// FromProfile resolves a Config from the environment, then p, then the
// built-in defaults, and validates it.
func FromProfile(p Profile) (*Config, error) {
	c := &Config{
		DatabaseURL:    envOrDefault("ELIGIBILITY_DATABASE_URL", p.DatabaseURL),
		DynamoTable:    envOrDefault("ELIGIBILITY_DYNAMO_TABLE", orDefault(p.DynamoTable, "criteria")),
		DynamoRegion:   envOrDefault("ELIGIBILITY_DYNAMO_REGION", orDefault(p.DynamoRegion, "us-east-1")),
		DynamoEndpoint: envOrDefault("ELIGIBILITY_DYNAMO_ENDPOINT", p.DynamoEndpoint),
		NATSURL:        envOrDefault("ELIGIBILITY_NATS_URL", p.NATSURL),
		LogLevel:       envOrDefault("ELIGIBILITY_LOG_LEVEL", orDefault(p.LogLevel, "info")),
		Apps:           p.Apps,
		SyncS3Bucket:   envOrDefault("ELIGIBILITY_SYNC_S3_BUCKET", p.SyncS3Bucket),
		SyncS3Endpoint: envOrDefault("ELIGIBILITY_SYNC_S3_ENDPOINT", p.SyncS3Endpoint),
		SyncS3Region:   envOrDefault("ELIGIBILITY_SYNC_S3_REGION", orDefault(p.SyncS3Region, "us-east-1")),
		SyncS3Key:      envOrDefault("ELIGIBILITY_SYNC_S3_KEY", orDefault(p.SyncS3Key, "eligibility/backup.jsonl")),
		SyncFile:       envOrDefault("ELIGIBILITY_SYNC_FILE", p.SyncFile),
	}
	if apps := os.Getenv("ELIGIBILITY_APPS"); apps != "" {
		c.Apps = splitList(apps)
	}

	defaultBackend := BackendMemory
	if c.DatabaseURL != "" {
		defaultBackend = BackendPostgres
	}
	c.Backend = envOrDefault("ELIGIBILITY_BACKEND", orDefault(p.Backend, defaultBackend))
	c.CriteriaBackend = envOrDefault("ELIGIBILITY_CRITERIA_BACKEND", orDefault(p.CriteriaBackend, c.Backend))

	switch c.Backend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("ELIGIBILITY_DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("ELIGIBILITY_BACKEND: unknown backend %q", c.Backend)
	}
	switch c.CriteriaBackend {
	case BackendPostgres:
		if c.Backend != BackendPostgres {
			return nil, fmt.Errorf("ELIGIBILITY_CRITERIA_BACKEND: postgres criteria require the postgres backend")
		}
	case BackendMemory, BackendDynamo:
	default:
		return nil, fmt.Errorf("ELIGIBILITY_CRITERIA_BACKEND: unknown backend %q", c.CriteriaBackend)
	}

	intervalStr := envOrDefault("ELIGIBILITY_SYNC_INTERVAL", orDefault(p.SyncInterval, "3m"))
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("ELIGIBILITY_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}

	c.CacheSize = p.CacheSize
	if v := os.Getenv("ELIGIBILITY_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ELIGIBILITY_CACHE_SIZE: %w", err)
		}
		c.CacheSize = n
	}
	if c.CacheSize < 0 {
		return nil, fmt.Errorf("ELIGIBILITY_CACHE_SIZE: must not be negative")
	}
	ttl, err := time.ParseDuration(envOrDefault("ELIGIBILITY_CACHE_TTL", orDefault(p.CacheTTL, "1m")))
	if err != nil {
		return nil, fmt.Errorf("ELIGIBILITY_CACHE_TTL: %w", err)
	}
	c.CacheTTL = ttl

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
