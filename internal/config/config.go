package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/dyluth/corkboard/internal/logging"
	"github.com/dyluth/corkboard/pkg/board"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultListen is the TCP address the board server listens on when none is configured
	DefaultListen = ":7000"

	// DefaultInstance names the feed channel when no instance is configured
	DefaultInstance = "default"

	// MaxInstanceNameLength is the maximum length for an instance name (DNS-compatible)
	MaxInstanceNameLength = 63

	// EnvRedisURL overrides feed.redis_url
	EnvRedisURL = "REDIS_URL"

	// EnvInstanceName overrides feed.instance
	EnvInstanceName = "CORKBOARD_INSTANCE_NAME"
)

// InstanceNamePattern matches valid instance names.
// Must be DNS-compatible: lowercase alphanumeric, hyphens allowed (but not at start/end)
var InstanceNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ServerConfig represents the top-level corkboard.yml configuration
type ServerConfig struct {
	Version string       `yaml:"version"`
	Listen  string       `yaml:"listen"`
	Board   BoardConfig  `yaml:"board"`
	Health  HealthConfig `yaml:"health"`
	Feed    FeedConfig   `yaml:"feed"`
	Log     LogConfig    `yaml:"log"`
}

// BoardConfig specifies the board geometry and palette
type BoardConfig struct {
	Width      int      `yaml:"width"`
	Height     int      `yaml:"height"`
	NoteWidth  int      `yaml:"note_width"`
	NoteHeight int      `yaml:"note_height"`
	Colours    []string `yaml:"colours"`
}

// HealthConfig specifies the HTTP health and metrics listener
type HealthConfig struct {
	Addr string `yaml:"addr,omitempty"` // Empty disables the HTTP server
}

// FeedConfig specifies the Redis event feed
type FeedConfig struct {
	RedisURL string `yaml:"redis_url,omitempty"` // Empty disables publishing
	Instance string `yaml:"instance,omitempty"`
}

// LogConfig specifies logging output
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns a configuration with every default applied and no board.
// The board section must still be filled in before Validate succeeds.
func Default() *ServerConfig {
	return &ServerConfig{
		Version: "1.0",
		Listen:  DefaultListen,
		Feed:    FeedConfig{Instance: DefaultInstance},
		Log:     LogConfig{Level: "info", Format: logging.FormatText},
	}
}

// Validate applies defaults and performs strict validation on the configuration
func (c *ServerConfig) Validate() error {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Listen == "" {
		c.Listen = DefaultListen
	}

	if err := c.Board.Validate(); err != nil {
		return err
	}

	if c.Feed.Instance == "" {
		c.Feed.Instance = DefaultInstance
	}
	if err := ValidateInstanceName(c.Feed.Instance); err != nil {
		return fmt.Errorf("feed: %w", err)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: invalid level: %s", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = logging.FormatText
	}
	if c.Log.Format != logging.FormatText && c.Log.Format != logging.FormatJSON {
		return fmt.Errorf("log: invalid format: %s (must be '%s' or '%s')", c.Log.Format, logging.FormatText, logging.FormatJSON)
	}

	return nil
}

// Validate checks the board geometry and colour list
func (b *BoardConfig) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("board: width and height must be positive, got %dx%d", b.Width, b.Height)
	}

	if b.NoteWidth <= 0 || b.NoteHeight <= 0 {
		return fmt.Errorf("board: note_width and note_height must be positive, got %dx%d", b.NoteWidth, b.NoteHeight)
	}

	if b.NoteWidth > b.Width || b.NoteHeight > b.Height {
		return fmt.Errorf("board: a %dx%d note does not fit on a %dx%d board", b.NoteWidth, b.NoteHeight, b.Width, b.Height)
	}

	if len(b.Colours) == 0 {
		return fmt.Errorf("board: at least one colour is required")
	}

	for _, colour := range b.Colours {
		if strings.TrimSpace(colour) == "" || strings.ContainsAny(colour, " \t") {
			return fmt.Errorf("board: invalid colour %q (must be a single non-empty word)", colour)
		}
	}

	return nil
}

// ToBoard converts the section into the board package's configuration
func (b *BoardConfig) ToBoard() board.Config {
	return board.Config{
		Width:      b.Width,
		Height:     b.Height,
		NoteWidth:  b.NoteWidth,
		NoteHeight: b.NoteHeight,
		Colours:    append([]string(nil), b.Colours...),
	}
}

// ApplyEnv overrides feed settings from REDIS_URL and CORKBOARD_INSTANCE_NAME when they are set
func (c *ServerConfig) ApplyEnv() {
	if url := os.Getenv(EnvRedisURL); url != "" {
		c.Feed.RedisURL = url
	}
	if name := os.Getenv(EnvInstanceName); name != "" {
		c.Feed.Instance = name
	}
}

// ValidateInstanceName checks if an instance name is valid according to DNS naming rules.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if len(name) > MaxInstanceNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxInstanceNameLength)
	}

	if !InstanceNamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}

// Load reads corkboard.yml from the specified path and applies environment overrides.
// The result is not validated; callers apply flags and then call Validate.
func Load(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv()
	return config, nil
}

// LoadAndValidate reads, overrides and validates corkboard.yml in one step
func LoadAndValidate(path string) (*ServerConfig, error) {
	config, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
