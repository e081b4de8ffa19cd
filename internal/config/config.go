package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultTarget is the bundle identifier of the iOS Simulator.
const DefaultTarget = "com.apple.iphonesimulator"

// ScratchTemp selects $TMPDIR/simrec as the scratch directory.
const ScratchTemp = "tmp"

// Config holds all runtime configuration for the recorder.
type Config struct {
	Target     string        `mapstructure:"target"`
	FPS        int           `mapstructure:"fps"`
	Output     string        `mapstructure:"output"`
	Quality    float64       `mapstructure:"quality"`
	Loop       int           `mapstructure:"loop"`
	Duration   time.Duration `mapstructure:"duration"`
	ScratchDir string        `mapstructure:"scratch_dir"`
	Preview    bool          `mapstructure:"preview"`
	LogLevel   string        `mapstructure:"log_level"`
	Share      ShareConfig   `mapstructure:"share"`
}

// ShareConfig configures live sharing of captured frames to a remote viewer.
type ShareConfig struct {
	SignalingURL string `mapstructure:"signaling"`
	HostID       string `mapstructure:"id"`
	JPEGQuality  int    `mapstructure:"jpeg_quality"`
}

// Enabled reports whether a signaling server was configured.
func (s ShareConfig) Enabled() bool { return s.SignalingURL != "" }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Target:   DefaultTarget,
		FPS:      5,
		Output:   "animation.gif",
		Quality:  1.0,
		Loop:     0,
		LogLevel: "info",
		Share: ShareConfig{
			JPEGQuality: 70,
		},
	}
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("target", d.Target)
	v.SetDefault("fps", d.FPS)
	v.SetDefault("output", d.Output)
	v.SetDefault("quality", d.Quality)
	v.SetDefault("loop", d.Loop)
	v.SetDefault("duration", d.Duration)
	v.SetDefault("scratch_dir", d.ScratchDir)
	v.SetDefault("preview", d.Preview)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("share.signaling", d.Share.SignalingURL)
	v.SetDefault("share.id", d.Share.HostID)
	v.SetDefault("share.jpeg_quality", d.Share.JPEGQuality)
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"target":      "target",
	"fps":         "fps",
	"output":      "output",
	"quality":     "quality",
	"loop":        "loop",
	"duration":    "duration",
	"scratch-dir": "scratch_dir",
	"preview":     "preview",
	"log-level":   "log_level",
	"share":       "share.signaling",
	"share-id":    "share.id",
}

// RegisterFlags adds the recorder flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP("target", "t", d.Target, "bundle identifier of the app to record, or display:N")
	fs.IntP("fps", "r", d.FPS, "frames per second")
	fs.StringP("output", "o", d.Output, "output GIF path")
	fs.Float64P("quality", "q", d.Quality, "output quality (0.0-1.0)")
	fs.IntP("loop", "l", d.Loop, "loop count (0 = infinite)")
	fs.DurationP("duration", "d", d.Duration, "stop automatically after this long (0 = until interrupted)")
	fs.String("scratch-dir", d.ScratchDir, "also write each frame as PNG into this directory (\"tmp\" = $TMPDIR/simrec)")
	fs.Bool("preview", d.Preview, "show a live preview window")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("share", d.Share.SignalingURL, "signaling server WebSocket URL for live sharing")
	fs.String("share-id", d.Share.HostID, "live share host ID (auto-generated if empty)")
}

// BindFlags binds the flags registered by RegisterFlags to their keys in v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "simrec")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "simrec")
}

// Init prepares v: defaults, environment (SIMREC_*) and the config file.
// A missing config file is not an error.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix("SIMREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("simrec")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(ConfigDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load decodes v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Share.Enabled() && cfg.Share.HostID == "" {
		cfg.Share.HostID = "simrec-" + uuid.NewString()[:8]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Target == "" {
		errs = append(errs, errors.New("target must not be empty"))
	}
	if c.FPS <= 0 || c.FPS > 60 {
		errs = append(errs, fmt.Errorf("fps must be 1-60, got %d", c.FPS))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output must not be empty"))
	}
	if c.Quality < 0 || c.Quality > 1 || math.IsNaN(c.Quality) {
		errs = append(errs, fmt.Errorf("quality must be within 0.0-1.0, got %v", c.Quality))
	}
	if c.Loop < 0 || c.Loop > math.MaxUint16 {
		errs = append(errs, fmt.Errorf("loop must be 0-%d, got %d", math.MaxUint16, c.Loop))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %v", c.Duration))
	}
	if c.Share.JPEGQuality < 1 || c.Share.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("share jpeg quality must be 1-100, got %d", c.Share.JPEGQuality))
	}
	return errors.Join(errs...)
}

// FrameInterval is the capture cadence, and also the per-frame display delay.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FPS)
}

// ResolvedScratchDir returns the scratch directory, or "" when disabled.
func (c *Config) ResolvedScratchDir() string {
	if c.ScratchDir == ScratchTemp {
		return filepath.Join(os.TempDir(), "simrec")
	}
	return c.ScratchDir
}

// ViewerConfig holds configuration for the viewer binary.
type ViewerConfig struct {
	SignalingURL string
	ViewerID     string
	HostID       string
}

// RegisterViewerFlags adds the viewer flags to fs, storing into cfg.
func RegisterViewerFlags(fs *pflag.FlagSet, cfg *ViewerConfig) {
	fs.StringVar(&cfg.SignalingURL, "signaling", "ws://localhost:8080", "signaling server WebSocket URL")
	fs.StringVar(&cfg.ViewerID, "id", "", "viewer ID (auto-generated if empty)")
	fs.StringVar(&cfg.HostID, "host", "", "host ID to watch (required)")
}

// Finish fills generated fields and validates cfg.
func (cfg *ViewerConfig) Finish() error {
	if cfg.HostID == "" {
		return errors.New("host ID is required")
	}
	if cfg.SignalingURL == "" {
		return errors.New("signaling URL is required")
	}
	if cfg.ViewerID == "" {
		cfg.ViewerID = "viewer-" + uuid.NewString()[:8]
	}
	return nil
}
