package epidemic

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"contagion/models"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigKind is the only envelope kind FromYaml accepts.
const ConfigKind = "epidemic"

var (
	// ErrInvalidConfig wraps every configuration bound violation.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnknownKind is returned when a config envelope is not an epidemic definition.
	ErrUnknownKind = errors.New("unknown config kind")
)

// OuterConfig is the file envelope: a kind selector and the definition it describes.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// Config holds the parameters of a single run. It is built and validated once at the
// boundary (file, flags) and passed by value into the engine; nothing else holds run settings.
type Config struct {
	Agents                 int     `yaml:"agents"`
	InitialInfected        int     `yaml:"initial_infected"`
	TickSpeed              float64 `yaml:"tick_speed"`
	InfectionProbability   float64 `yaml:"infection_probability"`
	InfectionRadius        float64 `yaml:"infection_radius"`
	ReinfectionProbability float64 `yaml:"reinfection_probability"`
	PixelSize              int     `yaml:"pixel_size"`
	// RecoveryTicks is the authoritative recovery duration range, in ticks.
	RecoveryTicks models.RecoveryRange `yaml:"recovery_ticks"`
	// Seed for the run's random source; zero means seed from the clock.
	Seed uint64 `yaml:"seed"`
	// MaxTicks stops the driver after that many ticks; zero means run until cancelled.
	MaxTicks int `yaml:"max_ticks"`
	// HistoryWindow is how many trailing history entries a report carries for display.
	HistoryWindow int `yaml:"history_window"`
	// RunDeadline optionally bounds the wall-clock length of a run, e.g. {duration: 10m}.
	RunDeadline map[string]string `yaml:"run_deadline"`
}

// DefaultConfig returns the settings a run uses when a file omits them.
func DefaultConfig() Config {
	return Config{
		Agents:                 25000,
		InitialInfected:        1,
		TickSpeed:              64,
		InfectionProbability:   0.8,
		InfectionRadius:        5.0,
		ReinfectionProbability: 0.02,
		PixelSize:              4,
		RecoveryTicks:          models.RecoveryRange{Min: 30, Max: 100},
		HistoryWindow:          800,
	}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}

// Validate checks every bound of the run settings, in the order a user would fill them in,
// and returns the first violation.
func (cfg Config) Validate() error {
	switch {
	case cfg.Agents <= 0:
		return invalid("number of agents must be greater than 0")
	case cfg.InitialInfected <= 0 || cfg.InitialInfected >= cfg.Agents:
		return invalid("initial infected must be > 0 and < number of agents")
	case !(cfg.TickSpeed > 0 && cfg.TickSpeed < 144):
		return invalid("tick speed must be > 0 and < 144")
	case !(cfg.InfectionProbability > 0 && cfg.InfectionProbability <= 1):
		return invalid("infection probability must be > 0 and <= 1")
	case !(cfg.InfectionRadius > 0 && cfg.InfectionRadius < 100):
		return invalid("infection radius must be > 0 and < 100")
	case !(cfg.ReinfectionProbability >= 0 && cfg.ReinfectionProbability <= 1):
		return invalid("reinfection probability must be >= 0 and <= 1")
	case cfg.PixelSize <= 0 || cfg.PixelSize > 10:
		return invalid("pixel size must be > 0 and <= 10")
	case cfg.RecoveryTicks.Min < 1 || cfg.RecoveryTicks.Max < cfg.RecoveryTicks.Min:
		return invalid("recovery ticks must satisfy 1 <= min <= max")
	case cfg.MaxTicks < 0:
		return invalid("max ticks must be >= 0")
	case cfg.HistoryWindow <= 0:
		return invalid("history window must be > 0")
	}
	if _, _, err := cfg.runDuration(); err != nil {
		return invalid(err.Error())
	}
	return nil
}

// TickInterval is the minimum wall time between ticks for the pacing driver.
func (cfg Config) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / cfg.TickSpeed)
}

func (cfg Config) runDuration() (time.Duration, bool, error) {
	val, ok := cfg.RunDeadline["duration"]
	if !ok {
		return 0, false, nil
	}
	duration, err := time.ParseDuration(val)
	if err != nil {
		return 0, false, fmt.Errorf("run deadline: %w", err)
	}
	return duration, true, nil
}

// WithRunDeadline returns a context extended by the run deadline, if one is specified.
func (cfg Config) WithRunDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	duration, ok, err := cfg.runDuration()
	if err != nil {
		return nil, nil, err
	}
	if ok {
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// FromYaml reads a run definition from a yaml file of the form:
//
//	kind: epidemic
//	def:
//	  agents: 25000
//	  ...
//
// Viper handles locating and reading the file; the definition is then round-tripped through
// yaml onto DefaultConfig(), so omitted keys keep their defaults. The result is validated.
// Keys are snake_case since viper lower-cases everything it reads.
func FromYaml(path string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}
	if outerConfig.Kind != ConfigKind {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, outerConfig.Kind)
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err = yaml.Unmarshal(spec, &cfg); err != nil {
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
