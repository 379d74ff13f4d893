package shortblob

import (
	"fmt"

	"github.com/meigma/shortblob/core"
	"github.com/meigma/shortblob/core/backend"
	shorthttp "github.com/meigma/shortblob/http"
)

// DefaultStateDir is the disk backend root used by DefaultConfig.
const DefaultStateDir = "goto_state"

// Config configures a Service.
type Config struct {
	Hash    HashConfig     `yaml:"hash"`
	Backend backend.Config `yaml:"backend"`
	HTTP    HTTPConfig     `yaml:"http"`
}

// HashConfig selects the identifier scheme. Changing either field changes
// every identifier and the on-disk layout.
type HashConfig struct {
	Algorithm string `yaml:"algorithm"`
	Length    int    `yaml:"length"`
}

// HTTPConfig tunes the request handler.
type HTTPConfig struct {
	Scheme       string          `yaml:"scheme"`
	MaxBodyBytes int64           `yaml:"max_body_bytes"` // 0 = unlimited
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig enables per-client-IP limiting when RPS is positive.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// DefaultConfig returns sha256 identifiers of length 5 persisted under
// DefaultStateDir.
func DefaultConfig() Config {
	return Config{
		Hash: HashConfig{
			Algorithm: core.DefaultAlgorithm,
			Length:    core.DefaultLength,
		},
		Backend: backend.Config{
			Type: backend.TypeDisk,
			Disk: backend.DiskConfig{Root: DefaultStateDir, Compression: "none"},
		},
		HTTP: HTTPConfig{
			Scheme:       shorthttp.DefaultScheme,
			MaxBodyBytes: shorthttp.DefaultMaxBodyBytes,
			RateLimit:    RateLimitConfig{Burst: 20},
		},
	}
}

// Validate reports the first invalid setting as a *ConfigError.
func (c Config) Validate() error {
	if _, err := core.NewHasher(c.Hash.Algorithm, c.Hash.Length); err != nil {
		return err
	}
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	switch c.HTTP.Scheme {
	case "http", "https":
	default:
		return &core.ConfigError{Field: "http.scheme", Reason: fmt.Sprintf("must be http or https, got %q", c.HTTP.Scheme)}
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return &core.ConfigError{Field: "http.max_body_bytes", Reason: "must not be negative"}
	}
	if c.HTTP.RateLimit.RPS < 0 {
		return &core.ConfigError{Field: "http.rate_limit.rps", Reason: "must not be negative"}
	}
	return nil
}
