// Package config loads server settings from defaults, an optional YAML
// file, SHORTBLOB_* environment variables and command-line flags, in that
// order of precedence (later wins).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/meigma/shortblob"
	"github.com/meigma/shortblob/core"
	"github.com/meigma/shortblob/core/backend"
	"github.com/meigma/shortblob/internal/telemetry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHORTBLOB_"

// Defaults compatible with earlier deployments.
const (
	DefaultPort            = 8080
	DefaultStateDir        = shortblob.DefaultStateDir
	DefaultShutdownTimeout = 10 * time.Second
)

// Config is the complete server configuration: the service settings plus
// process-level concerns.
type Config struct {
	shortblob.Config `yaml:",inline"`

	Listen          string           `yaml:"listen"`
	DebugListen     string           `yaml:"debug_listen"` // pprof; empty disables
	ShutdownTimeout time.Duration    `yaml:"shutdown_timeout"`
	Log             LogConfig        `yaml:"log"`
	Telemetry       telemetry.Config `yaml:"telemetry"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Config:          shortblob.DefaultConfig(),
		Listen:          fmt.Sprintf(":%d", DefaultPort),
		ShutdownTimeout: DefaultShutdownTimeout,
		Log:             LogConfig{Level: "info", Format: "text"},
		Telemetry:       telemetry.Config{ServiceName: "shortblob"},
	}
}

// flagValues holds raw flag values until they are overlaid.
type flagValues struct {
	configPath  string
	listen      string
	debugListen string
	port        int
	algorithm   string
	length      int
	stateDir    string
	backendType string
	compression string
	logLevel    string
	logFormat   string
	otlp        string
}

func newFlagSet(name string) (*pflag.FlagSet, *flagValues) {
	v := &flagValues{}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&v.configPath, "config", "", "path to a YAML configuration file")
	fs.StringVar(&v.listen, "listen", "", "address to listen on (default \":8080\")")
	fs.StringVar(&v.debugListen, "debug-listen", "", "address for the pprof debug server (disabled when empty)")
	fs.IntVar(&v.port, "port", DefaultPort, "port to listen on on all interfaces")
	fs.StringVar(&v.algorithm, "hash-algorithm", core.DefaultAlgorithm,
		"hash algorithm ("+strings.Join(core.Algorithms(), ", ")+")")
	fs.IntVar(&v.length, "hash-length", core.DefaultLength, "identifier length in hex characters")
	fs.StringVar(&v.stateDir, "state-dir", DefaultStateDir, "root directory of the disk backend")
	fs.StringVar(&v.backendType, "backend", string(backend.TypeDisk), "persistent tier (disk, memory, s3, gcs, redis, sql)")
	fs.StringVar(&v.compression, "compression", "none", "disk file compression (none, zstd)")
	fs.StringVar(&v.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&v.logFormat, "log-format", "text", "log format (text, json)")
	fs.StringVar(&v.otlp, "otlp-endpoint", "", "OTLP gRPC endpoint for traces and metrics")
	return fs, v
}

// Load parses args and returns the merged, validated configuration.
// lookupEnv is normally os.LookupEnv. pflag.ErrHelp is returned unchanged
// when --help is given.
func Load(args []string, lookupEnv func(string) (string, bool)) (Config, error) {
	fs, v := newFlagSet("shortblob")
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, &core.ConfigError{Field: "args", Reason: "unexpected argument " + strconv.Quote(fs.Arg(0))}
	}

	cfg := Default()
	if v.configPath != "" {
		data, err := os.ReadFile(v.configPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", v.configPath, err)
		}
		if err := cfg.decodeYAML(data); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", v.configPath, err)
		}
	}
	if lookupEnv != nil {
		if err := cfg.applyEnv(lookupEnv); err != nil {
			return Config{}, err
		}
	}
	cfg.applyFlags(fs, v)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Usage writes the flag summary to w.
func Usage(w io.Writer) {
	fs, _ := newFlagSet("shortblob")
	_, _ = fmt.Fprintf(w, "Usage: shortblob [flags]\n\nFlags:\n%s", fs.FlagUsages())
}

// Parse decodes a YAML document over the defaults and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.decodeYAML(data); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if val, ok := lookup(EnvPrefix + name); ok {
			*dst = val
		}
	}
	str("LISTEN", &c.Listen)
	str("DEBUG_LISTEN", &c.DebugListen)
	str("HASH_ALGORITHM", &c.Hash.Algorithm)
	str("STATE_DIR", &c.Backend.Disk.Root)
	str("COMPRESSION", &c.Backend.Disk.Compression)
	str("S3_BUCKET", &c.Backend.S3.Bucket)
	str("S3_REGION", &c.Backend.S3.Region)
	str("S3_ENDPOINT", &c.Backend.S3.Endpoint)
	str("S3_PREFIX", &c.Backend.S3.Prefix)
	str("S3_ACCESS_KEY_ID", &c.Backend.S3.AccessKeyID)
	str("S3_SECRET_ACCESS_KEY", &c.Backend.S3.SecretAccessKey)
	str("GCS_BUCKET", &c.Backend.GCS.Bucket)
	str("GCS_PREFIX", &c.Backend.GCS.Prefix)
	str("REDIS_ADDR", &c.Backend.Redis.Addr)
	str("REDIS_PASSWORD", &c.Backend.Redis.Password)
	str("REDIS_PREFIX", &c.Backend.Redis.Prefix)
	str("SQL_DRIVER", &c.Backend.SQL.Driver)
	str("SQL_DSN", &c.Backend.SQL.DSN)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("OTLP_ENDPOINT", &c.Telemetry.Endpoint)

	if val, ok := lookup(EnvPrefix + "BACKEND"); ok {
		c.Backend.Type = backend.Type(val)
	}
	if val, ok := lookup(EnvPrefix + "HASH_LENGTH"); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			return &core.ConfigError{Field: EnvPrefix + "HASH_LENGTH", Reason: "not an integer"}
		}
		c.Hash.Length = n
	}
	return nil
}

func (c *Config) applyFlags(fs *pflag.FlagSet, v *flagValues) {
	if fs.Changed("port") {
		c.Listen = fmt.Sprintf(":%d", v.port)
	}
	if fs.Changed("listen") {
		c.Listen = v.listen
	}
	if fs.Changed("debug-listen") {
		c.DebugListen = v.debugListen
	}
	if fs.Changed("hash-algorithm") {
		c.Hash.Algorithm = v.algorithm
	}
	if fs.Changed("hash-length") {
		c.Hash.Length = v.length
	}
	if fs.Changed("state-dir") {
		c.Backend.Disk.Root = v.stateDir
	}
	if fs.Changed("backend") {
		c.Backend.Type = backend.Type(v.backendType)
	}
	if fs.Changed("compression") {
		c.Backend.Disk.Compression = v.compression
	}
	if fs.Changed("log-level") {
		c.Log.Level = v.logLevel
	}
	if fs.Changed("log-format") {
		c.Log.Format = v.logFormat
	}
	if fs.Changed("otlp-endpoint") {
		c.Telemetry.Endpoint = v.otlp
	}
}

// Validate reports the first invalid setting as a *core.ConfigError.
func (c Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.Listen == "" {
		return &core.ConfigError{Field: "listen", Reason: "required"}
	}
	if c.ShutdownTimeout < 0 {
		return &core.ConfigError{Field: "shutdown_timeout", Reason: "must not be negative"}
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return &core.ConfigError{Field: "log.format", Reason: fmt.Sprintf("must be text or json, got %q", c.Log.Format)}
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, &core.ConfigError{Field: "log.level", Reason: fmt.Sprintf("unknown level %q", l.Level)}
	}
	return level, nil
}

// NewLogger builds the process logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
