// Package config handles configuration file loading and parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "250ms", "5s", "20m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Bare integers are milliseconds.
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '250ms', '5s', '20m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ConfigError describes a rejected configuration value.
type ConfigError struct {
	Section string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config [%s]: %s", e.Section, e.Reason)
}

// Config is the statlined configuration.
// Loaded from ~/.config/statline/statlined.toml.
type Config struct {
	Daemon DaemonConfig `toml:"daemon"`
	Format FormatConfig `toml:"format"`

	// Blocks lists the enabled modules in display order.
	Blocks []string `toml:"blocks"`

	Date       DateConfig       `toml:"date"`
	Battery    BatteryConfig    `toml:"battery"`
	Brightness BrightnessConfig `toml:"brightness"`
	Volume     VolumeConfig     `toml:"volume"`
	Network    NetworkConfig    `toml:"network"`
	Weather    WeatherConfig    `toml:"weather"`
}

// DaemonConfig contains daemon runtime settings.
type DaemonConfig struct {
	Socket        string   `toml:"socket"`         // Unix socket path
	MaxWorkers    int      `toml:"max_workers"`    // Concurrent module polls
	Debounce      Duration `toml:"debounce"`       // Trigger coalescing window
	MaxBackoff    Duration `toml:"max_backoff"`    // Failure backoff ceiling
	ShutdownGrace Duration `toml:"shutdown_grace"` // Wait for in-flight polls on stop
}

// FormatConfig contains the render palette and fonts.
type FormatConfig struct {
	PrimaryColor   string `toml:"primary_color"`   // hex rrggbb or rrggbbaa
	SecondaryColor string `toml:"secondary_color"` // hex rrggbb or rrggbbaa
	WarningColor   string `toml:"warning_color"`   // hex rrggbb or rrggbbaa
	AlarmColor     string `toml:"alarm_color"`     // hex rrggbb or rrggbbaa
	TextFont       string `toml:"text_font"`       // Pango font description
	IconFont       string `toml:"icon_font"`       // Pango font description
}

// DateConfig contains date module settings.
type DateConfig struct {
	TimeLayout string `toml:"time_layout"` // Go time layout for the primary text
	DateLayout string `toml:"date_layout"` // Go time layout for the secondary text
}

// BatteryConfig contains battery module settings.
type BatteryConfig struct {
	BatteryID      string `toml:"battery_id"`      // e.g. BAT0
	WarningPercent int    `toml:"warning_percent"` // Warn at or below
	AlarmPercent   int    `toml:"alarm_percent"`   // Alarm at or below
}

// BrightnessConfig contains brightness module settings.
type BrightnessConfig struct {
	Card string `toml:"card"` // e.g. amdgpu_bl0, intel_backlight
}

// VolumeConfig contains volume module settings.
type VolumeConfig struct {
	Sink string `toml:"sink"` // pamixer sink id; empty = default sink
}

// NetworkConfig contains network module settings.
type NetworkConfig struct {
	Interface string `toml:"interface"` // e.g. wlan0
}

// WeatherConfig contains weather module settings.
type WeatherConfig struct {
	OpenWeatherMapKey string   `toml:"openweathermap_key"`
	IPStackKey        string   `toml:"ipstack_key"`
	Units             string   `toml:"units"` // metric or imperial
	UpdateInterval    Duration `toml:"update_interval"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			Socket:        DefaultSocketPath(),
			MaxWorkers:    4,
			Debounce:      Duration(250 * time.Millisecond),
			MaxBackoff:    Duration(5 * time.Minute),
			ShutdownGrace: Duration(2 * time.Second),
		},
		Format: FormatConfig{
			PrimaryColor:   "ffffff",
			SecondaryColor: "ffffffc0",
			WarningColor:   "ffaa00",
			AlarmColor:     "ff0000",
			TextFont:       "Roboto 10",
			IconFont:       "Material Design Icons 12",
		},
		Blocks: []string{"date", "battery", "network", "volume"},
		Date: DateConfig{
			TimeLayout: "3:04 pm",
			DateLayout: "Mon, Jan 2",
		},
		Battery: BatteryConfig{
			BatteryID:      "BAT0",
			WarningPercent: 30,
			AlarmPercent:   15,
		},
		Brightness: BrightnessConfig{
			Card: "intel_backlight",
		},
		Volume: VolumeConfig{
			Sink: "",
		},
		Network: NetworkConfig{
			Interface: "wlan0",
		},
		Weather: WeatherConfig{
			Units:          "metric",
			UpdateInterval: Duration(20 * time.Minute),
		},
	}
}

// ConfigPath returns the path to the daemon config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "statline", "statlined.toml")
}

// DefaultSocketPath returns the default unix socket path.
// Uses XDG_RUNTIME_DIR if set, otherwise a per-user path under /tmp.
func DefaultSocketPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "statline.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("statline-%d.sock", os.Getuid()))
}

// knownBlocks are the module names the registry can instantiate.
var knownBlocks = map[string]bool{
	"date":       true,
	"battery":    true,
	"brightness": true,
	"volume":     true,
	"network":    true,
	"mpris":      true,
	"weather":    true,
}

// KnownBlock reports whether name is an implemented module.
func KnownBlock(name string) bool {
	return knownBlocks[name]
}

// Load loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Blocks) == 0 {
		return &ConfigError{Section: "blocks", Reason: "at least one block must be enabled"}
	}

	seen := make(map[string]bool, len(c.Blocks))
	for _, name := range c.Blocks {
		if !KnownBlock(name) {
			return &ConfigError{Section: "blocks", Reason: fmt.Sprintf("unknown block %q", name)}
		}
		if seen[name] {
			return &ConfigError{Section: "blocks", Reason: fmt.Sprintf("duplicate block %q", name)}
		}
		seen[name] = true
	}

	if c.Daemon.MaxWorkers < 1 {
		return &ConfigError{Section: "daemon", Reason: fmt.Sprintf("max_workers must be at least 1, got %d", c.Daemon.MaxWorkers)}
	}
	if c.Daemon.Debounce.Duration() < 0 {
		return &ConfigError{Section: "daemon", Reason: "debounce must not be negative"}
	}
	if c.Daemon.MaxBackoff.Duration() < time.Second {
		return &ConfigError{Section: "daemon", Reason: "max_backoff must be at least 1s"}
	}

	for _, field := range []struct{ name, value string }{
		{"primary_color", c.Format.PrimaryColor},
		{"secondary_color", c.Format.SecondaryColor},
		{"warning_color", c.Format.WarningColor},
		{"alarm_color", c.Format.AlarmColor},
	} {
		if !validHexColor(field.value) {
			return &ConfigError{Section: "format", Reason: fmt.Sprintf("%s: invalid hex color %q", field.name, field.value)}
		}
	}

	if seen["battery"] && c.Battery.BatteryID == "" {
		return &ConfigError{Section: "battery", Reason: "battery_id must not be empty"}
	}
	if seen["battery"] && c.Battery.AlarmPercent > c.Battery.WarningPercent {
		return &ConfigError{Section: "battery", Reason: "alarm_percent must not exceed warning_percent"}
	}
	if seen["brightness"] && c.Brightness.Card == "" {
		return &ConfigError{Section: "brightness", Reason: "card must not be empty"}
	}
	if seen["network"] && c.Network.Interface == "" {
		return &ConfigError{Section: "network", Reason: "interface must not be empty"}
	}
	if seen["weather"] {
		if c.Weather.OpenWeatherMapKey == "" {
			return &ConfigError{Section: "weather", Reason: "openweathermap_key must not be empty"}
		}
		if c.Weather.Units != "metric" && c.Weather.Units != "imperial" {
			return &ConfigError{Section: "weather", Reason: fmt.Sprintf("units must be metric or imperial, got %q", c.Weather.Units)}
		}
	}

	return nil
}

func validHexColor(s string) bool {
	if len(s) != 6 && len(s) != 8 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
