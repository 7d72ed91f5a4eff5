package health

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"
)

var errSamplingUnsupported = errors.New("host sampling not supported on " + runtime.GOOS)

// HostSample is one reading of host utilisation, both values in [0,1]
type HostSample struct {
	MemoryUtilization float64
	CPULoad           float64
}

// Sampler reads host utilisation
type Sampler interface {
	Sample() (HostSample, error)
}

// SamplerFunc adapts a function to the Sampler interface
type SamplerFunc func() (HostSample, error)

func (f SamplerFunc) Sample() (HostSample, error) {
	return f()
}

// DefaultMemoryThreshold returns the memory utilisation above which the host
// is considered overloaded. macOS keeps memory nearly full by design, so it
// gets a higher ceiling.
func DefaultMemoryThreshold() float64 {
	if runtime.GOOS == "darwin" {
		return 0.95
	}
	return 0.90
}

// DefaultCPUThreshold is the load-per-core ceiling
const DefaultCPUThreshold = 0.95

// HostChecker compares a host sample against utilisation thresholds
type HostChecker struct {
	Sampler         Sampler
	MemoryThreshold float64
	CPUThreshold    float64
}

// NewHostChecker creates a checker over the platform sampler. Zero thresholds
// select the defaults.
func NewHostChecker(memoryThreshold, cpuThreshold float64) *HostChecker {
	if memoryThreshold <= 0 {
		memoryThreshold = DefaultMemoryThreshold()
	}
	if cpuThreshold <= 0 {
		cpuThreshold = DefaultCPUThreshold
	}
	return &HostChecker{
		Sampler:         SamplerFunc(sampleHost),
		MemoryThreshold: memoryThreshold,
		CPUThreshold:    cpuThreshold,
	}
}

// Check samples the host. A failed sample reports healthy: the gate must not
// block admission because a platform cannot be measured.
func (h *HostChecker) Check(ctx context.Context) Result {
	start := time.Now()

	sample, err := h.Sampler.Sample()
	if err != nil {
		return Result{
			Healthy:   true,
			Message:   fmt.Sprintf("host sample unavailable: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	result := Result{Healthy: true, CheckedAt: start}
	switch {
	case sample.MemoryUtilization > h.MemoryThreshold:
		result.Healthy = false
		result.Message = fmt.Sprintf("memory utilization %.0f%% above %.0f%%", sample.MemoryUtilization*100, h.MemoryThreshold*100)
	case sample.CPULoad > h.CPUThreshold:
		result.Healthy = false
		result.Message = fmt.Sprintf("cpu load %.0f%% above %.0f%%", sample.CPULoad*100, h.CPUThreshold*100)
	default:
		result.Message = fmt.Sprintf("memory %.0f%%, cpu %.0f%%", sample.MemoryUtilization*100, sample.CPULoad*100)
	}
	result.Duration = time.Since(start)
	return result
}

func (h *HostChecker) Type() CheckType {
	return CheckTypeHost
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
