package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSampler(mem, cpu float64) Sampler {
	return SamplerFunc(func() (HostSample, error) {
		return HostSample{MemoryUtilization: mem, CPULoad: cpu}, nil
	})
}

func TestHostChecker(t *testing.T) {
	tests := []struct {
		name    string
		mem     float64
		cpu     float64
		healthy bool
		message string
	}{
		{"idle", 0.30, 0.10, true, "memory 30%"},
		{"memory at threshold", 0.90, 0.10, true, ""},
		{"memory above threshold", 0.93, 0.10, false, "memory utilization"},
		{"cpu above threshold", 0.50, 0.99, false, "cpu load"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &HostChecker{Sampler: fixedSampler(tt.mem, tt.cpu), MemoryThreshold: 0.90, CPUThreshold: 0.95}
			result := checker.Check(context.Background())
			assert.Equal(t, tt.healthy, result.Healthy)
			assert.Contains(t, result.Message, tt.message)
		})
	}
}

func TestHostChecker_SampleErrorIsHealthy(t *testing.T) {
	checker := &HostChecker{
		Sampler: SamplerFunc(func() (HostSample, error) {
			return HostSample{}, errors.New("no procfs")
		}),
		MemoryThreshold: 0.9,
		CPUThreshold:    0.95,
	}
	result := checker.Check(context.Background())
	assert.True(t, result.Healthy)
	assert.Contains(t, result.Message, "unavailable")
}

func TestNewHostCheckerDefaults(t *testing.T) {
	checker := NewHostChecker(0, 0)
	assert.Equal(t, DefaultMemoryThreshold(), checker.MemoryThreshold)
	assert.Equal(t, DefaultCPUThreshold, checker.CPUThreshold)
	assert.Equal(t, CheckTypeHost, checker.Type())

	// The platform sampler either works or degrades to healthy
	result := checker.Check(context.Background())
	assert.NotEmpty(t, result.Message)
}

func TestStatusUpdate(t *testing.T) {
	cfg := Config{Retries: 3}
	status := NewStatus()
	require.True(t, status.Healthy)

	status.Update(Result{Healthy: false}, cfg)
	status.Update(Result{Healthy: false}, cfg)
	assert.True(t, status.Healthy, "still within retries")
	assert.Equal(t, 2, status.ConsecutiveFailures)

	status.Update(Result{Healthy: false}, cfg)
	assert.False(t, status.Healthy)

	status.Update(Result{Healthy: true}, cfg)
	assert.True(t, status.Healthy)
	assert.Equal(t, 0, status.ConsecutiveFailures)
	assert.Equal(t, 1, status.ConsecutiveSuccesses)
}

func TestMonitor(t *testing.T) {
	static := NewStatic(true, "ok")
	monitor := NewMonitor(static, DefaultConfig())

	assert.True(t, monitor.Observe(context.Background()).Healthy)

	static.Set(false, "overloaded")
	status := monitor.Observe(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "overloaded", status.LastResult.Message)
	assert.False(t, monitor.Status().Healthy)
}
