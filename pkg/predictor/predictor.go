package predictor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/ml"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/training"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// ErrCorruptModel is returned at startup when a persisted model cannot be
// decoded or does not match the current feature layout.
var ErrCorruptModel = errors.New("corrupt model")

const (
	accuracyWindow = 100
	batchSeed      = 42
)

// Config holds the predictor options
type Config struct {
	MinSamplesForML        int
	ConservativeMultiplier float64
	ModelUpdateInterval    int
	MaxTrainingRecords     int
	Regressor              ml.RegressorConfig
	Tree                   ml.TreeConfig

	// Now is the clock used for timestamps; defaults to time.Now
	Now func() time.Time
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		MinSamplesForML:        50,
		ConservativeMultiplier: 1.2,
		ModelUpdateInterval:    100,
		MaxTrainingRecords:     training.DefaultMaxRecords,
		Regressor:              ml.DefaultRegressorConfig(),
		Tree:                   ml.DefaultTreeConfig(),
		Now:                    time.Now,
	}
}

// Accuracy is the per-resource accuracy of one reported outcome
type Accuracy struct {
	PerResource map[types.ResourceKind]float64 `json:"perResource"`
	Overall     float64                        `json:"overall"`
}

// AccuracyMetrics summarizes prediction quality since startup
type AccuracyMetrics struct {
	RollingAccuracy map[types.ResourceKind]float64 `json:"rollingAccuracy"`
	WindowSamples   map[types.ResourceKind]int     `json:"windowSamples"`
	ModelSamples    map[types.ResourceKind]int     `json:"modelSamples"`
	MethodCounts    map[types.PredictionMethod]int `json:"methodCounts"`
	TotalOutcomes   int                            `json:"totalOutcomes"`
	TrainingRecords int                            `json:"trainingRecords"`
	MLActive        bool                           `json:"mlActive"`
}

// ResourceTrainReport compares the retrained regressor against a decision tree
type ResourceTrainReport struct {
	Samples      int     `json:"samples"`
	RegressorMAE float64 `json:"regressorMAE"`
	TreeMAE      float64 `json:"treeMAE"`
	TreeDepth    int     `json:"treeDepth"`
	Better       string  `json:"better"`
}

// TrainReport is the result of a batch retraining run
type TrainReport struct {
	Epochs    int                                        `json:"epochs"`
	Resources map[types.ResourceKind]ResourceTrainReport `json:"resources"`
	Duration  time.Duration                              `json:"duration"`
	TrainedAt time.Time                                  `json:"trainedAt"`
}

// Predictor estimates task resources from a per-resource online regressor,
// falling back to a heuristic table until enough outcomes have been seen.
// It is safe for concurrent use.
type Predictor struct {
	mu       sync.Mutex
	cfg      Config
	models   map[types.ResourceKind]*ml.OnlineRegressor
	accuracy map[types.ResourceKind]*ml.MovingAverage
	methods  map[types.PredictionMethod]int
	outcomes int
	pending  int // updates since the last snapshot

	training  *training.Store
	store     storage.Store
	persister *Persister
	logger    zerolog.Logger
}

// New restores models and the outcome log from store. A corrupt model is a
// configuration fault and aborts startup with ErrCorruptModel.
func New(cfg Config, store storage.Store) (*Predictor, error) {
	def := DefaultConfig()
	if cfg.ConservativeMultiplier < 1 {
		cfg.ConservativeMultiplier = def.ConservativeMultiplier
	}
	if cfg.ModelUpdateInterval <= 0 {
		cfg.ModelUpdateInterval = def.ModelUpdateInterval
	}
	if cfg.Regressor.LearningRate <= 0 {
		cfg.Regressor = def.Regressor
	}
	if cfg.Tree.MaxDepth <= 0 {
		cfg.Tree = def.Tree
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	p := &Predictor{
		cfg:      cfg,
		models:   make(map[types.ResourceKind]*ml.OnlineRegressor),
		accuracy: make(map[types.ResourceKind]*ml.MovingAverage),
		methods:  make(map[types.PredictionMethod]int),
		store:    store,
		logger:   log.WithComponent("predictor"),
	}

	for _, kind := range types.ResourceKinds {
		model, err := p.loadModel(kind)
		if err != nil {
			return nil, err
		}
		p.models[kind] = model
		p.accuracy[kind] = ml.NewMovingAverage(accuracyWindow)
	}

	records, err := store.LoadOutcomes()
	if err != nil {
		return nil, fmt.Errorf("failed to load outcome log: %w", err)
	}

	p.persister = NewPersister(store)
	p.persister.Start()
	p.training = training.NewStore(cfg.MaxTrainingRecords, p.persister)
	p.training.Load(records)

	p.logger.Info().
		Int("training_records", p.training.Count()).
		Bool("ml_active", p.training.Count() >= cfg.MinSamplesForML).
		Msg("Predictor initialized")

	return p, nil
}

func (p *Predictor) loadModel(kind types.ResourceKind) (*ml.OnlineRegressor, error) {
	state, err := p.store.LoadModel(kind)
	if errors.Is(err, storage.ErrNotFound) {
		return ml.NewOnlineRegressor(kind, training.FeatureDim, p.cfg.Regressor), nil
	}
	if errors.Is(err, storage.ErrCorrupt) {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptModel, kind, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s model: %w", kind, err)
	}

	model, err := ml.RegressorFromState(state, training.FeatureDim)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, err)
	}
	p.logger.Debug().
		Str("resource", string(kind)).
		Int("samples", model.Samples()).
		Msg("Loaded model")
	return model, nil
}

// Training exposes the outcome log
func (p *Predictor) Training() *training.Store {
	return p.training
}

// MLActive reports whether enough outcomes exist to use the models
func (p *Predictor) MLActive() bool {
	return p.training.Count() >= p.cfg.MinSamplesForML
}

// Predict estimates the resources task will consume. Every dimension is
// inflated by the conservative multiplier and clamped to sane bounds.
func (p *Predictor) Predict(task *types.Task) types.ResourcePrediction {
	features := training.ExtractFeatures(task)
	useML := p.MLActive()

	pred := types.ResourcePrediction{
		Confidence:  make(map[types.ResourceKind]types.Confidence, len(types.ResourceKinds)),
		Methods:     make(map[types.ResourceKind]types.PredictionMethod, len(types.ResourceKinds)),
		PredictedAt: p.cfg.Now(),
	}

	fellBack := false
	p.mu.Lock()
	for _, kind := range types.ResourceKinds {
		hist := p.training.TypeStats(task.Type, kind)
		heur := heuristic(task.Type, kind, features.Complexity, hist)

		value, method := heur, types.MethodHeuristic
		if useML {
			model := p.models[kind]
			out := model.Predict(training.Vector(features, hist, kind))
			if out > 0 && !math.IsInf(out, 0) && !math.IsNaN(out) {
				value, method = out, types.MethodML
			} else {
				method = types.MethodHeuristicFallback
				fellBack = true
				p.logger.Debug().
					Str("task_id", task.ID).
					Str("resource", string(kind)).
					Float64("model_output", out).
					Msg("Model output unusable, using heuristic")
			}
		}

		pred.Resources.Set(kind, clampResource(kind, value*p.cfg.ConservativeMultiplier))
		pred.Methods[kind] = method
		pred.Confidence[kind] = p.confidence(method, kind, hist)
	}
	p.mu.Unlock()

	switch {
	case !useML:
		pred.Method = types.MethodHeuristic
	case fellBack:
		pred.Method = types.MethodHeuristicFallback
	default:
		pred.Method = types.MethodML
	}
	metrics.PredictionsTotal.WithLabelValues(string(pred.Method)).Inc()

	return pred
}

func (p *Predictor) confidence(method types.PredictionMethod, kind types.ResourceKind, hist training.TypeStat) types.Confidence {
	if method == types.MethodML {
		if p.models[kind].Samples() >= 2*p.cfg.MinSamplesForML {
			return types.ConfidenceHigh
		}
		return types.ConfidenceMedium
	}
	if hist.Count >= minHistoryForBlend {
		return types.ConfidenceMedium
	}
	return types.ConfidenceLow
}

// ReportOutcome feeds the actual usage of a finished task back into every
// model and the training log. predicted may be nil when the task was never
// predicted (e.g. replayed outcomes); accuracy is then left empty.
func (p *Predictor) ReportOutcome(task *types.Task, actual types.ResourceUsage, predicted *types.ResourcePrediction) Accuracy {
	features := training.ExtractFeatures(task)
	acc := Accuracy{PerResource: make(map[types.ResourceKind]float64)}

	p.mu.Lock()
	for _, kind := range types.ResourceKinds {
		y := actual.Get(kind)
		if math.IsNaN(y) || math.IsInf(y, 0) || y < 0 {
			continue
		}
		hist := p.training.TypeStats(task.Type, kind)
		p.models[kind].Update(training.Vector(features, hist, kind), y)

		if predicted != nil {
			a := accuracyOf(predicted.Resources.Get(kind), y)
			acc.PerResource[kind] = a
			p.accuracy[kind].Add(a)
			metrics.PredictionAccuracy.WithLabelValues(string(kind)).Set(p.accuracy[kind].Value())
		}
	}
	if predicted != nil && predicted.Method != "" {
		p.methods[predicted.Method]++
	}
	p.outcomes++
	p.pending++
	snapshot := p.pending >= p.cfg.ModelUpdateInterval
	if snapshot {
		p.pending = 0
		p.snapshotLocked()
	}
	p.mu.Unlock()

	metrics.ModelUpdates.Inc()
	p.training.Append(training.NewRecord(task, features, actual, p.cfg.Now()))

	if len(acc.PerResource) > 0 {
		sum := 0.0
		for _, a := range acc.PerResource {
			sum += a
		}
		acc.Overall = sum / float64(len(acc.PerResource))
	}
	return acc
}

// accuracyOf is 1 - relative error, clamped to [0,1]
func accuracyOf(predicted, actual float64) float64 {
	a := 1 - math.Abs(predicted-actual)/math.Max(actual, 1)
	return math.Max(0, math.Min(1, a))
}

func (p *Predictor) snapshotLocked() {
	for _, kind := range types.ResourceKinds {
		p.persister.SaveModel(p.models[kind].State())
	}
	p.logger.Debug().Int("outcomes", p.outcomes).Msg("Queued model snapshot")
}

// BatchTrain rebuilds every regressor from the outcome log, compares it with
// a decision tree fitted on the same data and persists the new models
// synchronously.
func (p *Predictor) BatchTrain(epochs int) (TrainReport, error) {
	if epochs < 1 {
		epochs = 1
	}
	start := time.Now()
	report := TrainReport{
		Epochs:    epochs,
		Resources: make(map[types.ResourceKind]ResourceTrainReport),
	}

	trained := make(map[types.ResourceKind]*ml.OnlineRegressor)
	for _, kind := range types.ResourceKinds {
		X, y := p.training.Vectors(kind)
		rr := ResourceTrainReport{Samples: len(y)}
		if len(y) == 0 {
			report.Resources[kind] = rr
			continue
		}

		model := ml.NewOnlineRegressor(kind, training.FeatureDim, p.cfg.Regressor)
		if err := model.Fit(X, y, epochs, batchSeed); err != nil {
			return report, fmt.Errorf("failed to fit %s model: %w", kind, err)
		}
		rr.RegressorMAE = meanAbsError(model.Predict, X, y)

		tree := ml.NewDecisionTree(p.cfg.Tree)
		if err := tree.Fit(X, y); err != nil {
			return report, fmt.Errorf("failed to fit %s tree: %w", kind, err)
		}
		rr.TreeMAE = meanAbsError(tree.Predict, X, y)
		rr.TreeDepth = tree.Depth()
		rr.Better = "regressor"
		if rr.TreeMAE < rr.RegressorMAE {
			rr.Better = "tree"
		}

		trained[kind] = model
		report.Resources[kind] = rr
	}

	p.mu.Lock()
	for kind, model := range trained {
		p.models[kind] = model
	}
	p.pending = 0
	states := make([]types.ModelState, 0, len(trained))
	for _, kind := range types.ResourceKinds {
		if model, ok := trained[kind]; ok {
			states = append(states, model.State())
		}
	}
	p.mu.Unlock()

	// Queued snapshots of the old models must land before the new ones
	p.persister.Flush()
	for i := range states {
		if err := p.store.SaveModel(&states[i]); err != nil {
			return report, fmt.Errorf("failed to save %s model: %w", states[i].Resource, err)
		}
	}

	report.Duration = time.Since(start)
	report.TrainedAt = p.cfg.Now()

	p.logger.Info().
		Int("epochs", epochs).
		Int("records", p.training.Count()).
		Dur("duration", report.Duration).
		Msg("Models retrained")

	return report, nil
}

func meanAbsError(predict func([]float64) float64, X [][]float64, y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	sum := 0.0
	n := 0
	for i := range X {
		out := predict(X[i])
		if math.IsNaN(out) {
			continue
		}
		sum += math.Abs(out - y[i])
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// AccuracyMetrics returns rolling accuracy and method counts
func (p *Predictor) AccuracyMetrics() AccuracyMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := AccuracyMetrics{
		RollingAccuracy: make(map[types.ResourceKind]float64),
		WindowSamples:   make(map[types.ResourceKind]int),
		ModelSamples:    make(map[types.ResourceKind]int),
		MethodCounts:    make(map[types.PredictionMethod]int),
		TotalOutcomes:   p.outcomes,
		TrainingRecords: p.training.Count(),
		MLActive:        p.training.Count() >= p.cfg.MinSamplesForML,
	}
	for _, kind := range types.ResourceKinds {
		m.RollingAccuracy[kind] = p.accuracy[kind].Value()
		m.WindowSamples[kind] = p.accuracy[kind].Count()
		m.ModelSamples[kind] = p.models[kind].Samples()
	}
	for method, n := range p.methods {
		m.MethodCounts[method] = n
	}
	return m
}

// Persister returns the background writer shared with the token ledger
func (p *Predictor) Persister() *Persister {
	return p.persister
}

// Flush waits for queued persistence work
func (p *Predictor) Flush() {
	p.persister.Flush()
}

// Close snapshots the models and stops the persister
func (p *Predictor) Close() {
	p.mu.Lock()
	p.snapshotLocked()
	p.mu.Unlock()
	p.persister.Close()
}
