package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerCritical(t *testing.T) {
	t.Helper()
	RegisterComponent("scheduler", true, "")
	RegisterComponent("storage", true, "")
	RegisterComponent("api", true, "")
}

func TestRegisterComponent(t *testing.T) {
	Reset()
	RegisterComponent("test-component", true, "running")

	require.Len(t, healthChecker.components, 1)
	comp := healthChecker.components["test-component"]
	assert.True(t, comp.Healthy)
	assert.Equal(t, "running", comp.Message)

	UnregisterComponent("test-component")
	assert.Empty(t, healthChecker.components)
}

func TestGetHealth(t *testing.T) {
	Reset()
	SetVersion("1.0.0")
	RegisterComponent("api", true, "")
	RegisterComponent("storage", true, "")

	health := GetHealth()
	assert.Equal(t, "healthy", health.Status)
	assert.Len(t, health.Components, 2)
	assert.Equal(t, "1.0.0", health.Version)

	RegisterComponent("storage", false, "disk full")
	health = GetHealth()
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unhealthy: disk full", health.Components["storage"])
}

func TestGetReadiness(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
		want  string
	}{
		{
			name:  "all critical components ready",
			setup: func() { registerCritical(t) },
			want:  "ready",
		},
		{
			name:  "scheduler missing",
			setup: func() { RegisterComponent("api", true, ""); RegisterComponent("storage", true, "") },
			want:  "not_ready",
		},
		{
			name: "storage unhealthy",
			setup: func() {
				registerCritical(t)
				UpdateComponent("storage", false, "corrupt model")
			},
			want: "not_ready",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Reset()
			tt.setup()
			readiness := GetReadiness()
			assert.Equal(t, tt.want, readiness.Status)
			if tt.want != "ready" {
				assert.NotEmpty(t, readiness.Message)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	Reset()
	RegisterComponent("scheduler", true, "")

	w := httptest.NewRecorder()
	HealthHandler()(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)

	UpdateComponent("scheduler", false, "stopped")
	w = httptest.NewRecorder()
	HealthHandler()(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyHandler(t *testing.T) {
	Reset()
	RegisterComponent("api", true, "")

	w := httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	registerCritical(t)
	w = httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var readiness HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "ready", readiness.Status)
}

func TestLivenessHandler(t *testing.T) {
	Reset()

	w := httptest.NewRecorder()
	LivenessHandler()(w, httptest.NewRequest("GET", "/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "alive", response["status"])
	assert.NotEmpty(t, response["uptime"])
}

func TestCriticalComponents(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	SetCriticalComponents("scheduler", "grpc")
	RegisterComponent("scheduler", true, "")
	assert.False(t, IsReady())

	readiness := GetReadiness()
	assert.Equal(t, "waiting for grpc", readiness.Message)
	assert.Equal(t, "not registered", readiness.Components["grpc"])
	assert.NotContains(t, readiness.Components, "storage")

	RegisterComponent("grpc", true, "")
	assert.True(t, IsReady())
}
