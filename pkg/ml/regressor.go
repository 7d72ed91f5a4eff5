package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cuemby/burrow/pkg/types"
)

// ErrInvalidState is returned when a persisted model cannot be restored
var ErrInvalidState = errors.New("invalid model state")

// maxStepError bounds the standardized error of a single SGD step so an
// outlier cannot blow the weights up.
const maxStepError = 5.0

// RegressorConfig controls the SGD schedule and regularization
type RegressorConfig struct {
	LearningRate float64 // initial learning rate
	Decay        float64 // lr = LearningRate / (1 + Decay*samples)
	L2           float64 // L2 regularization strength
}

// DefaultRegressorConfig returns the production defaults
func DefaultRegressorConfig() RegressorConfig {
	return RegressorConfig{
		LearningRate: 0.01,
		Decay:        0.001,
		L2:           0.001,
	}
}

// OnlineRegressor is a linear model trained by stochastic gradient descent.
// Features are z-score normalized with running statistics and the target is
// standardized the same way, so callers can feed raw values of any scale.
//
// OnlineRegressor is not safe for concurrent use.
type OnlineRegressor struct {
	resource types.ResourceKind
	weights  []float64
	bias     float64
	features []RunningStats
	target   RunningStats
	samples  int
	lr       float64
	cfg      RegressorConfig
}

// NewOnlineRegressor creates an untrained regressor over dim features
func NewOnlineRegressor(resource types.ResourceKind, dim int, cfg RegressorConfig) *OnlineRegressor {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultRegressorConfig().LearningRate
	}
	return &OnlineRegressor{
		resource: resource,
		weights:  make([]float64, dim),
		features: make([]RunningStats, dim),
		lr:       cfg.LearningRate,
		cfg:      cfg,
	}
}

// Dim returns the number of input features
func (r *OnlineRegressor) Dim() int {
	return len(r.weights)
}

// Samples returns how many observations the model has learned from
func (r *OnlineRegressor) Samples() int {
	return r.samples
}

// LearningRate returns the current step size
func (r *OnlineRegressor) LearningRate() float64 {
	return r.lr
}

// Predict returns the model output for x in target units. The result is
// NaN when the model has not seen any sample or x has the wrong shape.
func (r *OnlineRegressor) Predict(x []float64) float64 {
	if r.samples == 0 || len(x) != len(r.weights) {
		return math.NaN()
	}
	z := r.raw(r.normalize(x))
	return z*r.target.scale() + r.target.Mean
}

// Update performs one SGD step on (x, y) and returns the prediction made
// before the step. Non-finite inputs are ignored.
func (r *OnlineRegressor) Update(x []float64, y float64) float64 {
	if len(x) != len(r.weights) || !isFinite(y) {
		return math.NaN()
	}
	for _, v := range x {
		if !isFinite(v) {
			return math.NaN()
		}
	}

	for i, v := range x {
		r.features[i].Add(v)
	}
	r.target.Add(y)

	before := r.step(x, y)
	r.samples++
	r.lr = r.cfg.LearningRate / (1 + r.cfg.Decay*float64(r.samples))
	return before
}

// Fit retrains the model from scratch over the full dataset for the given
// number of shuffled epochs. The seed makes training reproducible.
func (r *OnlineRegressor) Fit(X [][]float64, y []float64, epochs int, seed int64) error {
	if len(X) != len(y) {
		return fmt.Errorf("feature/target length mismatch: %d != %d", len(X), len(y))
	}
	if epochs < 1 {
		epochs = 1
	}

	dim := len(r.weights)
	r.weights = make([]float64, dim)
	r.bias = 0
	r.features = make([]RunningStats, dim)
	r.target = RunningStats{}
	r.samples = 0
	r.lr = r.cfg.LearningRate

	idx := make([]int, 0, len(X))
	for i := range X {
		if len(X[i]) != dim || !isFinite(y[i]) {
			continue
		}
		for j, v := range X[i] {
			r.features[j].Add(v)
		}
		r.target.Add(y[i])
		idx = append(idx, i)
	}
	if len(idx) == 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(seed))
	steps := 0
	for e := 0; e < epochs; e++ {
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for _, i := range idx {
			r.step(X[i], y[i])
			steps++
			r.lr = r.cfg.LearningRate / (1 + r.cfg.Decay*float64(steps))
		}
	}

	r.samples = len(idx)
	r.lr = r.cfg.LearningRate / (1 + r.cfg.Decay*float64(r.samples))
	return nil
}

// step applies one gradient update using the current normalization and
// returns the de-standardized prediction made before the update.
func (r *OnlineRegressor) step(x []float64, y float64) float64 {
	xn := r.normalize(x)
	tscale := r.target.scale()
	yz := (y - r.target.Mean) / tscale

	pred := r.raw(xn)
	err := pred - yz
	if err > maxStepError {
		err = maxStepError
	} else if err < -maxStepError {
		err = -maxStepError
	}

	for i := range r.weights {
		r.weights[i] -= r.lr * (err*xn[i] + r.cfg.L2*r.weights[i])
	}
	r.bias -= r.lr * err

	return pred*tscale + r.target.Mean
}

func (r *OnlineRegressor) raw(xn []float64) float64 {
	sum := r.bias
	for i, w := range r.weights {
		sum += w * xn[i]
	}
	return sum
}

func (r *OnlineRegressor) normalize(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - r.features[i].Mean) / r.features[i].scale()
	}
	return out
}

// State snapshots the model for persistence
func (r *OnlineRegressor) State() types.ModelState {
	means := make([]float64, len(r.features))
	m2 := make([]float64, len(r.features))
	for i, f := range r.features {
		means[i] = f.Mean
		m2[i] = f.M2
	}
	return types.ModelState{
		Resource:     r.resource,
		Weights:      append([]float64(nil), r.weights...),
		Bias:         r.bias,
		FeatureMeans: means,
		FeatureM2:    m2,
		TargetMean:   r.target.Mean,
		TargetM2:     r.target.M2,
		Samples:      r.samples,
		LearningRate: r.lr,
		InitialRate:  r.cfg.LearningRate,
		Decay:        r.cfg.Decay,
		L2:           r.cfg.L2,
		UpdatedAt:    time.Now(),
	}
}

// RegressorFromState restores a model. The state must match dim features
// and contain only finite numbers.
func RegressorFromState(state *types.ModelState, dim int) (*OnlineRegressor, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", ErrInvalidState)
	}
	if len(state.Weights) != dim || len(state.FeatureMeans) != dim || len(state.FeatureM2) != dim {
		return nil, fmt.Errorf("%w: %s model has %d weights, want %d", ErrInvalidState, state.Resource, len(state.Weights), dim)
	}
	if state.Samples < 0 {
		return nil, fmt.Errorf("%w: negative sample count", ErrInvalidState)
	}
	values := []float64{state.Bias, state.TargetMean, state.TargetM2, state.LearningRate, state.InitialRate, state.Decay, state.L2}
	values = append(values, state.Weights...)
	values = append(values, state.FeatureMeans...)
	values = append(values, state.FeatureM2...)
	for _, v := range values {
		if !isFinite(v) {
			return nil, fmt.Errorf("%w: %s model contains non-finite values", ErrInvalidState, state.Resource)
		}
	}

	cfg := RegressorConfig{LearningRate: state.InitialRate, Decay: state.Decay, L2: state.L2}
	r := NewOnlineRegressor(state.Resource, dim, cfg)
	copy(r.weights, state.Weights)
	r.bias = state.Bias
	for i := range r.features {
		r.features[i] = RunningStats{N: state.Samples, Mean: state.FeatureMeans[i], M2: state.FeatureM2[i]}
	}
	r.target = RunningStats{N: state.Samples, Mean: state.TargetMean, M2: state.TargetM2}
	r.samples = state.Samples
	if state.LearningRate > 0 {
		r.lr = state.LearningRate
	}
	return r, nil
}
