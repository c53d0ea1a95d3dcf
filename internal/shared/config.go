package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel    string            `toml:"log_level"`
	Credentials CredentialsConfig `toml:"credentials"`
	Transport   TransportConfig   `toml:"transport"`
	Download    DownloadConfig    `toml:"download"`
	Library     LibraryConfig     `toml:"library"`
	Covers      CoversConfig      `toml:"covers"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Osu OsuConfig `toml:"osu"`
}

// OsuConfig contains osu! OAuth application credentials.
type OsuConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// TransportConfig selects the HTTP backend and its timeouts.
type TransportConfig struct {
	Backend        string   `toml:"backend"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	ReadTimeout    Duration `toml:"read_timeout"`
}

// DownloadConfig tunes the binary download retry loop.
type DownloadConfig struct {
	MaxRetries        int      `toml:"max_retries"`
	Timeout           Duration `toml:"timeout"`
	BaseDelay         Duration `toml:"base_delay"`
	RetryClientErrors bool     `toml:"retry_client_errors"`
	SniffBinaryText   bool     `toml:"sniff_binary_text"`
}

// LibraryConfig locates the on-disk music library.
type LibraryConfig struct {
	Root      string `toml:"root"`
	MusicDir  string `toml:"music_dir"`
	CoversDir string `toml:"covers_dir"`
}

// CoversConfig controls batch cover image fetching.
type CoversConfig struct {
	Concurrency int     `toml:"concurrency"`
	RateLimit   float64 `toml:"rate_limit"`
	Size        string  `toml:"size"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Duration wraps [time.Duration] so it can be written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate rejects values the download pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Transport.Backend {
	case "auto", "native", "web":
	default:
		return fmt.Errorf("%w: transport.backend must be auto, native or web, got %q", ErrInvalidConfig, c.Transport.Backend)
	}
	if c.Download.MaxRetries < 0 {
		return fmt.Errorf("%w: download.max_retries must be >= 0", ErrInvalidConfig)
	}
	if c.Download.Timeout.Duration <= 0 {
		return fmt.Errorf("%w: download.timeout must be positive", ErrInvalidConfig)
	}
	if c.Covers.Concurrency <= 0 {
		return fmt.Errorf("%w: covers.concurrency must be positive", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
