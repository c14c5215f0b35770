// Package config loads the YAML configuration of the semview command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration file.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Query    QueryConfig    `yaml:"query"`
	Log      LogConfig      `yaml:"log"`
	Backup   BackupConfig   `yaml:"backup"`
}

// DatabaseConfig selects the host database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // duckdb or postgres
	DSN    string `yaml:"dsn"`
	// StorePath overrides the database file used for the sidecar and for
	// choosing the durability mode.
	StorePath string `yaml:"store_path"`
}

// CatalogConfig controls where and how definitions are stored.
type CatalogConfig struct {
	Durability      string `yaml:"durability"` // auto, writer, sidecar, none
	WriterQueueSize int    `yaml:"writer_queue_size"`
	Codec           string `yaml:"codec"` // json or go-json
	// DynamoDBTable stores definitions in DynamoDB instead of the host.
	DynamoDBTable string `yaml:"dynamodb_table,omitempty"`
	AWSRegion     string `yaml:"aws_region,omitempty"`
}

// QueryConfig bounds query admission.
type QueryConfig struct {
	MaxConcurrent int64   `yaml:"max_concurrent"`
	PerSecond     float64 `yaml:"per_second"`
	Burst         int     `yaml:"burst"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// BackupConfig lists the backup targets. Every configured target receives
// each backup; restore reads from the first one.
type BackupConfig struct {
	Compression string `yaml:"compression"` // none, zstd, lz4
	IOLimit     int64  `yaml:"io_limit_bytes_per_sec"`
	// CacheBytes bounds the read cache in front of remote targets.
	CacheBytes int64        `yaml:"cache_bytes"`
	LocalDir   string       `yaml:"local_dir,omitempty"`
	S3         *S3Config    `yaml:"s3,omitempty"`
	MinIO      *MinIOConfig `yaml:"minio,omitempty"`
}

// S3Config is an S3 backup target. Credentials come from the default AWS
// credential chain.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// MinIOConfig is a MinIO backup target.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// Default returns the configuration used when no file is given: an
// in-memory DuckDB database.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "duckdb"},
		Catalog: CatalogConfig{
			Durability:      "auto",
			WriterQueueSize: 64,
			Codec:           "go-json",
		},
		Log:    LogConfig{Level: "info", Format: "text"},
		Backup: BackupConfig{Compression: "zstd"},
	}
}

// Load reads path on top of Default and validates the result. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks enumerated fields and required target settings.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Database.Driver) {
	case "duckdb", "postgres", "postgresql":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	switch strings.ToLower(c.Catalog.Durability) {
	case "", "auto", "writer", "sidecar", "none", "memory":
	default:
		errs = append(errs, fmt.Errorf("catalog.durability: unknown mode %q", c.Catalog.Durability))
	}
	if c.Catalog.WriterQueueSize < 0 {
		errs = append(errs, errors.New("catalog.writer_queue_size: must not be negative"))
	}
	switch c.Catalog.Codec {
	case "", "json", "go-json":
	default:
		errs = append(errs, fmt.Errorf("catalog.codec: unknown codec %q", c.Catalog.Codec))
	}
	switch strings.ToLower(c.Backup.Compression) {
	case "", "none", "zstd", "lz4":
	default:
		errs = append(errs, fmt.Errorf("backup.compression: unknown algorithm %q", c.Backup.Compression))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if s3 := c.Backup.S3; s3 != nil && s3.Bucket == "" {
		errs = append(errs, errors.New("backup.s3.bucket: required"))
	}
	if m := c.Backup.MinIO; m != nil && (m.Endpoint == "" || m.Bucket == "") {
		errs = append(errs, errors.New("backup.minio: endpoint and bucket are required"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}
