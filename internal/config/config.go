// ABOUTME: Configuration for chime binaries
// ABOUTME: Merges defaults, .env / environment variables and command-line flags
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by FromEnv
const (
	EnvDevice    = "CHIME_DEVICE"
	EnvExclusive = "CHIME_EXCLUSIVE"
	EnvDebug     = "CHIME_DEBUG"
	EnvLogFile   = "CHIME_LOG_FILE"
	EnvPort      = "CHIME_PORT"
	EnvName      = "CHIME_NAME"
	EnvCacheDir  = "CHIME_CACHE_DIR"
	EnvVolume    = "CHIME_VOLUME"
)

// DefaultPort is the daemon's WebSocket port
const DefaultPort = 8928

// Config holds settings shared by the chime binaries
type Config struct {
	Device    string // output backend: oto, portaudio or null
	Volume    int    // 0-100
	Exclusive bool   // queue sounds instead of overlapping them
	Debug     bool
	LogFile   string
	Port      int
	Name      string
	CacheDir  string // on-disk cache for http(s) resources; empty disables
}

// Defaults returns the built-in configuration
func Defaults() Config {
	name := "chime"
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		name = hostname + "-chime"
	}

	return Config{
		Device:  "oto",
		Volume:  100,
		LogFile: "chime.log",
		Port:    DefaultPort,
		Name:    name,
	}
}

// LoadEnv loads .env style files into the process environment.
// Missing files are ignored; variables already set are not overridden.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// FromEnv overrides base with any variables lookup reports as set
func FromEnv(base Config, lookup func(string) (string, bool)) (Config, error) {
	c := base

	if v, ok := lookup(EnvDevice); ok {
		c.Device = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.LogFile = v
	}
	if v, ok := lookup(EnvName); ok {
		c.Name = v
	}
	if v, ok := lookup(EnvCacheDir); ok {
		c.CacheDir = v
	}

	var err error
	if v, ok := lookup(EnvExclusive); ok {
		if c.Exclusive, err = strconv.ParseBool(v); err != nil {
			return base, fmt.Errorf("invalid %s: %w", EnvExclusive, err)
		}
	}
	if v, ok := lookup(EnvDebug); ok {
		if c.Debug, err = strconv.ParseBool(v); err != nil {
			return base, fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
	}
	if v, ok := lookup(EnvPort); ok {
		if c.Port, err = strconv.Atoi(v); err != nil {
			return base, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
	}
	if v, ok := lookup(EnvVolume); ok {
		if c.Volume, err = strconv.Atoi(v); err != nil {
			return base, fmt.Errorf("invalid %s: %w", EnvVolume, err)
		}
	}

	return c, c.Validate()
}

// RegisterFlags binds the configuration to flags using the current values as defaults
func (c *Config) RegisterFlags(flags *flag.FlagSet) {
	flags.StringVar(&c.Device, "device", c.Device, "Audio output: oto, portaudio or null")
	flags.IntVar(&c.Volume, "volume", c.Volume, "Output volume (0-100)")
	flags.BoolVar(&c.Exclusive, "exclusive", c.Exclusive, "Queue sounds instead of letting them overlap")
	flags.BoolVar(&c.Debug, "debug", c.Debug, "Log format diagnostics for every sound")
	flags.StringVar(&c.LogFile, "log-file", c.LogFile, "Log file path")
	flags.IntVar(&c.Port, "port", c.Port, "Daemon WebSocket port")
	flags.StringVar(&c.Name, "name", c.Name, "Daemon friendly name")
	flags.StringVar(&c.CacheDir, "cache-dir", c.CacheDir, "Cache directory for downloaded sounds")
}

// Validate checks ranges
func (c Config) Validate() error {
	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("volume %d out of range 0-100", c.Volume)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// Load builds the configuration: defaults, then .env and the environment,
// then command-line flags registered on flags. Binaries register their own
// extra flags before calling Load.
func Load(flags *flag.FlagSet, args []string, defaults Config) (Config, error) {
	if err := LoadEnv(); err != nil {
		return defaults, err
	}

	c, err := FromEnv(defaults, os.LookupEnv)
	if err != nil {
		return defaults, err
	}

	c.RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		return c, err
	}

	return c, c.Validate()
}
