package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/fmusim/internal/kernel"
)

const (
	DefaultModel    = "bouncingball"
	DefaultStop     = 3.0
	DefaultStepSize = 0.01
	DefaultDataDir  = "data"
)

// Config describes one simulation run.
type Config struct {
	Name          string             `yaml:"name,omitempty"`
	Model         string             `yaml:"model" validate:"required"`
	StartTime     float64            `yaml:"start_time"`
	StopTime      float64            `yaml:"stop_time" validate:"gtfield=StartTime"`
	StepSize      float64            `yaml:"step_size" validate:"gt=0"`
	LoggingOn     bool               `yaml:"logging_on"`
	LogCategories []string           `yaml:"log_categories,omitempty" validate:"dive,oneof=logEvents logStatusWarning logStatusError logAll"`
	Outputs       []string           `yaml:"outputs,omitempty" validate:"dive,required"`
	Params        map[string]float64 `yaml:"params,omitempty"`
	DataDir       string             `yaml:"data_dir"`
}

// Batch is a set of runs executed together.
type Batch struct {
	Parallelism int      `yaml:"parallelism" validate:"gte=0"`
	Runs        []Config `yaml:"runs" validate:"required,min=1,dive"`
}

var validate = validator.New()

func DefaultConfig() *Config {
	return &Config{
		Model:     DefaultModel,
		StartTime: 0,
		StopTime:  DefaultStop,
		StepSize:  DefaultStepSize,
		DataDir:   DefaultDataDir,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadBatch reads a batch file. Each run starts from DefaultConfig, so a
// run only needs to name what differs.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Parallelism int         `yaml:"parallelism"`
		Runs        []yaml.Node `yaml:"runs"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	b := &Batch{Parallelism: raw.Parallelism}
	for i := range raw.Runs {
		cfg := DefaultConfig()
		if err := raw.Runs[i].Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: run %d: %w", path, i, err)
		}
		b.Runs = append(b.Runs, *cfg)
	}
	return b, nil
}

// Validate checks the fields the kernel cannot run without.
func (c *Config) Validate() error {
	return describe(validate.Struct(c))
}

func (b *Batch) Validate() error {
	return describe(validate.Struct(b))
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		case "gtfield":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", fe.Namespace(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func (c *Config) Experiment() kernel.Experiment {
	return kernel.Experiment{
		StartTime: c.StartTime,
		StopTime:  c.StopTime,
		StepSize:  c.StepSize,
	}
}

// Label names the run in listings and batch output.
func (c *Config) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Model
}

// StorageDir picks where runs are stored: override when non-empty, else the
// configured data directory, else DefaultDataDir.
func (c *Config) StorageDir(override string) string {
	switch {
	case override != "":
		return override
	case c.DataDir != "":
		return c.DataDir
	}
	return DefaultDataDir
}
