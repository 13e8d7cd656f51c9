package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/glazeui/glaze/pkg/a11y"
)

// Default configuration values.
const (
	// DefaultDuration is the default animation duration.
	DefaultDuration = 300 * time.Millisecond

	// DefaultTiming is the default animation timing curve.
	DefaultTiming = "ease-in-out"

	// DefaultFrameRate is the frame clock rate in frames per second.
	DefaultFrameRate = 60

	// DefaultFrameBatchSize is the maximum property writes per frame.
	DefaultFrameBatchSize = 10

	// DefaultParticipatingTag marks nodes that animate during a transition.
	DefaultParticipatingTag = "transition-participating"

	// DefaultComponentTag marks nodes that receive resolved variables.
	DefaultComponentTag = "transition-component"

	// DefaultGeometryEpsilon is the tolerance below which a geometry
	// delta is treated as a no-op.
	DefaultGeometryEpsilon = 0.5
)

// Config holds the tunable parameters of the transition engine.
type Config struct {
	// Duration is the animation duration. Zero disables animation.
	Duration time.Duration `yaml:"duration" validate:"min=0"`

	// Timing is the animation timing curve passed to the render tree.
	Timing string `yaml:"timing" validate:"required,oneof=linear ease ease-in ease-out ease-in-out"`

	// ParticipatingTag selects the nodes animated with FLIP.
	ParticipatingTag string `yaml:"participating_tag" validate:"required"`

	// ComponentTag selects the nodes that receive variable writes.
	ComponentTag string `yaml:"component_tag" validate:"required"`

	// EnableFLIP toggles geometry capture and animation.
	EnableFLIP bool `yaml:"enable_flip"`

	// RespectReducedMotion disables animation when the user prefers
	// reduced motion.
	RespectReducedMotion bool `yaml:"respect_reduced_motion"`

	// CacheCapacity is the variable cache entry limit.
	CacheCapacity int `yaml:"cache_capacity" validate:"min=1"`

	// FrameRate is the frame clock rate in frames per second.
	FrameRate int `yaml:"frame_rate" validate:"min=1,max=240"`

	// FrameBatchSize is the maximum property writes committed per frame.
	FrameBatchSize int `yaml:"frame_batch_size" validate:"min=1"`

	// ContrastInterval is the sampling interval for contrast monitoring.
	ContrastInterval time.Duration `yaml:"contrast_interval" validate:"min=0"`

	// Verbosity controls screen reader announcement detail.
	Verbosity a11y.Verbosity `yaml:"verbosity"`

	// RestoreDelay is the pause before restoring focus after a
	// transition. Negative disables the delay.
	RestoreDelay time.Duration `yaml:"restore_delay"`

	// SlowBudget is the duration above which a transition is flagged
	// slow in performance reports.
	SlowBudget time.Duration `yaml:"slow_budget" validate:"min=0"`

	// GeometryEpsilon is the no-op tolerance for geometry deltas.
	GeometryEpsilon float64 `yaml:"geometry_epsilon" validate:"min=0"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Duration:             DefaultDuration,
		Timing:               DefaultTiming,
		ParticipatingTag:     DefaultParticipatingTag,
		ComponentTag:         DefaultComponentTag,
		EnableFLIP:           true,
		RespectReducedMotion: true,
		CacheCapacity:        50,
		FrameRate:            DefaultFrameRate,
		FrameBatchSize:       DefaultFrameBatchSize,
		ContrastInterval:     a11y.DefaultContrastInterval,
		Verbosity:            a11y.VerbosityStandard,
		RestoreDelay:         a11y.DefaultRestoreDelay,
		SlowBudget:           500 * time.Millisecond,
		GeometryEpsilon:      DefaultGeometryEpsilon,
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return NewValidationError("invalid engine configuration", err)
	}
	if c.Verbosity != "" {
		if err := c.Verbosity.Validate(); err != nil {
			return NewValidationError("invalid engine configuration", err)
		}
	}
	return nil
}

// withDefaults fills unset strings and zero sizes from DefaultConfig.
// Duration and the boolean toggles pass through unchanged: false and zero
// are valid settings there, so callers who want the defaults start from
// DefaultConfig instead.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timing == "" {
		c.Timing = def.Timing
	}
	if c.ParticipatingTag == "" {
		c.ParticipatingTag = def.ParticipatingTag
	}
	if c.ComponentTag == "" {
		c.ComponentTag = def.ComponentTag
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = def.CacheCapacity
	}
	if c.FrameRate == 0 {
		c.FrameRate = def.FrameRate
	}
	if c.FrameBatchSize == 0 {
		c.FrameBatchSize = def.FrameBatchSize
	}
	if c.ContrastInterval == 0 {
		c.ContrastInterval = def.ContrastInterval
	}
	if c.Verbosity == "" {
		c.Verbosity = def.Verbosity
	}
	if c.SlowBudget == 0 {
		c.SlowBudget = def.SlowBudget
	}
	if c.GeometryEpsilon == 0 {
		c.GeometryEpsilon = def.GeometryEpsilon
	}
	return c
}

// fileConfig mirrors Config with string durations for YAML parsing.
type fileConfig struct {
	Duration             string  `yaml:"duration"`
	Timing               string  `yaml:"timing"`
	ParticipatingTag     string  `yaml:"participating_tag"`
	ComponentTag         string  `yaml:"component_tag"`
	EnableFLIP           *bool   `yaml:"enable_flip"`
	RespectReducedMotion *bool   `yaml:"respect_reduced_motion"`
	CacheCapacity        int     `yaml:"cache_capacity"`
	FrameRate            int     `yaml:"frame_rate"`
	FrameBatchSize       int     `yaml:"frame_batch_size"`
	ContrastInterval     string  `yaml:"contrast_interval"`
	Verbosity            string  `yaml:"verbosity"`
	RestoreDelay         string  `yaml:"restore_delay"`
	SlowBudget           string  `yaml:"slow_budget"`
	GeometryEpsilon      float64 `yaml:"geometry_epsilon"`
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	return d, nil
}

// LoadConfig reads a YAML configuration file, applying defaults for
// unset fields and validating the result. Durations are written as Go
// duration strings, for example "300ms".
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if cfg.Duration, err = parseDuration("duration", raw.Duration, cfg.Duration); err != nil {
		return Config{}, err
	}
	if cfg.ContrastInterval, err = parseDuration("contrast_interval", raw.ContrastInterval, cfg.ContrastInterval); err != nil {
		return Config{}, err
	}
	if cfg.RestoreDelay, err = parseDuration("restore_delay", raw.RestoreDelay, cfg.RestoreDelay); err != nil {
		return Config{}, err
	}
	if cfg.SlowBudget, err = parseDuration("slow_budget", raw.SlowBudget, cfg.SlowBudget); err != nil {
		return Config{}, err
	}
	if raw.Timing != "" {
		cfg.Timing = raw.Timing
	}
	if raw.ParticipatingTag != "" {
		cfg.ParticipatingTag = raw.ParticipatingTag
	}
	if raw.ComponentTag != "" {
		cfg.ComponentTag = raw.ComponentTag
	}
	if raw.EnableFLIP != nil {
		cfg.EnableFLIP = *raw.EnableFLIP
	}
	if raw.RespectReducedMotion != nil {
		cfg.RespectReducedMotion = *raw.RespectReducedMotion
	}
	if raw.CacheCapacity != 0 {
		cfg.CacheCapacity = raw.CacheCapacity
	}
	if raw.FrameRate != 0 {
		cfg.FrameRate = raw.FrameRate
	}
	if raw.FrameBatchSize != 0 {
		cfg.FrameBatchSize = raw.FrameBatchSize
	}
	if raw.Verbosity != "" {
		cfg.Verbosity = a11y.Verbosity(raw.Verbosity)
	}
	if raw.GeometryEpsilon != 0 {
		cfg.GeometryEpsilon = raw.GeometryEpsilon
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
