package scheduler

import (
	"fmt"
	"time"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/feasibility"
	"github.com/cuemby/burrow/pkg/health"
	"github.com/cuemby/burrow/pkg/predictor"
	"github.com/cuemby/burrow/pkg/priority"
	"github.com/cuemby/burrow/pkg/storage"
)

// Deps are the collaborators Open wires into a scheduler
type Deps struct {
	Store storage.Store

	// Health checks the host; nil uses the host checker with the
	// configured thresholds
	Health health.Checker

	// Broker receives lifecycle events; may be nil
	Broker *events.Broker

	// Now overrides the clock of every component
	Now func() time.Time
}

// Open builds the predictor, feasibility checker and priority engine from
// cfg and returns a scheduler over them. The background loop is not
// started.
func Open(cfg *config.Config, deps Deps) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		deps.Store = storage.NewMemoryStore()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Health == nil {
		deps.Health = health.NewHostChecker(cfg.MemoryHealthThreshold, cfg.CPUHealthThreshold)
	}

	pcfg := predictor.DefaultConfig()
	pcfg.MinSamplesForML = cfg.MinSamplesForML
	pcfg.ConservativeMultiplier = cfg.ConservativeMultiplier
	pcfg.ModelUpdateInterval = cfg.ModelUpdateInterval
	pcfg.MaxTrainingRecords = cfg.MaxTrainingRecords
	pcfg.Now = deps.Now
	pred, err := predictor.New(pcfg, deps.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create predictor: %w", err)
	}

	fcfg := feasibility.Config{
		MaxMemoryMB:         cfg.MaxMemoryMB,
		MaxConcurrentTasks:  cfg.MaxConcurrentTasks,
		TokenBudgetPerHour:  cfg.TokenBudgetPerHour,
		TokenBudgetPerDay:   cfg.TokenBudgetPerDay,
		RejectOnOverload:    cfg.RejectOnOverload,
		AverageTaskDuration: cfg.AverageTaskDuration,
		HealthRetryInterval: cfg.HealthRetryInterval,
		Location:            cfg.Location(),
		Now:                 deps.Now,
	}
	monitor := health.NewMonitor(deps.Health, health.DefaultConfig())
	checker, err := feasibility.New(fcfg, monitor, pred.Persister())
	if err != nil {
		pred.Close()
		return nil, fmt.Errorf("failed to create feasibility checker: %w", err)
	}

	pr := priority.DefaultConfig()
	pr.TypeWeights = cfg.PriorityWeights
	pr.StarvationRatePerMinute = cfg.StarvationRatePerMinute
	pr.Now = deps.Now
	engine := priority.NewEngine(pr)

	return New(Config{
		MaxQueueDepth:     cfg.MaxQueueDepth,
		RebalanceInterval: cfg.RebalanceInterval,
		ReservationTTL:    cfg.ReservationTTL,
		Now:               deps.Now,
	}, pred, checker, engine, deps.Broker), nil
}
