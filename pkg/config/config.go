package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/burrow/pkg/types"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Config is the flat options object shared by every component
type Config struct {
	MaxMemoryMB        float64 `yaml:"maxMemoryMB"`
	MaxConcurrentTasks int     `yaml:"maxConcurrentTasks"`
	TokenBudgetPerHour float64 `yaml:"tokenBudgetPerHour"`
	TokenBudgetPerDay  float64 `yaml:"tokenBudgetPerDay"`

	PriorityWeights map[types.TaskType]float64 `yaml:"priorityWeights"`

	MinSamplesForML        int     `yaml:"minSamplesForML"`
	ConservativeMultiplier float64 `yaml:"conservativeMultiplier"`
	ModelUpdateInterval    int     `yaml:"modelUpdateInterval"`
	MaxTrainingRecords     int     `yaml:"maxTrainingRecords"`

	MaxQueueDepth           int           `yaml:"maxQueueDepth"`
	RejectOnOverload        bool          `yaml:"rejectOnOverload"`
	RebalanceInterval       time.Duration `yaml:"rebalanceInterval"`
	ReservationTTL          time.Duration `yaml:"reservationTTL"`
	AverageTaskDuration     time.Duration `yaml:"averageTaskDuration"`
	HealthRetryInterval     time.Duration `yaml:"healthRetryInterval"`
	StarvationRatePerMinute float64       `yaml:"starvationRatePerMinute"`

	// Zero selects the platform default
	MemoryHealthThreshold float64 `yaml:"memoryHealthThreshold"`
	CPUHealthThreshold    float64 `yaml:"cpuHealthThreshold"`

	Timezone string `yaml:"timezone"`

	Storage StorageConfig `yaml:"storage"`
	API     APIConfig     `yaml:"api"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"dataDir"`
}

// APIConfig configures the HTTP and gRPC listeners
type APIConfig struct {
	HTTPAddr  string  `yaml:"httpAddr"`
	GRPCAddr  string  `yaml:"grpcAddr"`
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

// LogConfig configures the global logger
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultPriorityWeights returns the per-type base weights
func DefaultPriorityWeights() map[types.TaskType]float64 {
	return map[types.TaskType]float64{
		types.TaskTypeImplementation: 1.0,
		types.TaskTypeSecurity:       1.5,
		types.TaskTypeFix:            1.3,
		types.TaskTypeReview:         0.9,
		types.TaskTypeTest:           0.8,
		types.TaskTypeDocumentation:  0.6,
		types.TaskTypeScan:           1.1,
		types.TaskTypePRCreation:     0.9,
		types.TaskTypeUnknown:        0.7,
	}
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		MaxMemoryMB:             4096,
		MaxConcurrentTasks:      4,
		TokenBudgetPerHour:      500000,
		TokenBudgetPerDay:       5000000,
		PriorityWeights:         DefaultPriorityWeights(),
		MinSamplesForML:         50,
		ConservativeMultiplier:  1.2,
		ModelUpdateInterval:     100,
		MaxTrainingRecords:      10000,
		MaxQueueDepth:           100,
		RejectOnOverload:        true,
		RebalanceInterval:       30 * time.Second,
		ReservationTTL:          2 * time.Hour,
		AverageTaskDuration:     5 * time.Minute,
		HealthRetryInterval:     60 * time.Second,
		StarvationRatePerMinute: 0.2,
		CPUHealthThreshold:      0.95,
		Timezone:                "UTC",
		Storage: StorageConfig{
			Backend: "memory",
			DataDir: "./burrow-data",
		},
		API: APIConfig{
			HTTPAddr:  "127.0.0.1:8080",
			GRPCAddr:  "127.0.0.1:9090",
			RateLimit: 50,
			RateBurst: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of the defaults. Keys absent from the file
// keep their default value.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	// Missing weight entries fall back to the defaults one by one
	if cfg.PriorityWeights == nil {
		cfg.PriorityWeights = make(map[types.TaskType]float64)
	}
	for tt, w := range DefaultPriorityWeights() {
		if _, ok := cfg.PriorityWeights[tt]; !ok {
			cfg.PriorityWeights[tt] = w
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the scheduler cannot honour
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.MaxMemoryMB > 0, "maxMemoryMB must be positive")
	check(c.MaxConcurrentTasks > 0, "maxConcurrentTasks must be positive")
	check(c.TokenBudgetPerHour > 0, "tokenBudgetPerHour must be positive")
	check(c.TokenBudgetPerDay > 0, "tokenBudgetPerDay must be positive")
	check(c.MinSamplesForML >= 0, "minSamplesForML must not be negative")
	check(c.ConservativeMultiplier >= 1, "conservativeMultiplier must be at least 1")
	check(c.ModelUpdateInterval > 0, "modelUpdateInterval must be positive")
	check(c.MaxTrainingRecords > 0, "maxTrainingRecords must be positive")
	check(c.MaxQueueDepth > 0, "maxQueueDepth must be positive")
	check(c.RebalanceInterval > 0, "rebalanceInterval must be positive")
	check(c.ReservationTTL >= 0, "reservationTTL must not be negative")
	check(c.AverageTaskDuration > 0, "averageTaskDuration must be positive")
	check(c.HealthRetryInterval > 0, "healthRetryInterval must be positive")
	check(c.StarvationRatePerMinute >= 0, "starvationRatePerMinute must not be negative")
	check(c.MemoryHealthThreshold >= 0 && c.MemoryHealthThreshold <= 1, "memoryHealthThreshold must be within [0,1]")
	check(c.CPUHealthThreshold > 0 && c.CPUHealthThreshold <= 1, "cpuHealthThreshold must be within (0,1]")

	for tt, w := range c.PriorityWeights {
		check(tt.Valid(), "priorityWeights: unknown task type %q", tt)
		check(w > 0, "priorityWeights: weight for %s must be positive", tt)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %v", err))
	}

	switch c.Storage.Backend {
	case "", "memory":
	case "file", "bolt":
		check(c.Storage.DataDir != "", "storage.dataDir is required for the %s backend", c.Storage.Backend)
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}

	check(c.API.RateLimit >= 0, "api.rateLimit must not be negative")
	check(c.API.RateBurst >= 0, "api.rateBurst must not be negative")

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Location resolves the configured timezone used for token buckets
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MaxPriorityWeight returns the largest configured type weight
func (c *Config) MaxPriorityWeight() float64 {
	highest := 0.0
	for _, w := range c.PriorityWeights {
		highest = max(highest, w)
	}
	return highest
}
