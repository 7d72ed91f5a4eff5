package metrics

import (
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	capacity types.SystemCapacity
	depth    int
}

func (f *fakeSource) GetSystemCapacity() types.SystemCapacity { return f.capacity }
func (f *fakeSource) QueueDepth() int                         { return f.depth }

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestCollectorCollect(t *testing.T) {
	source := &fakeSource{
		capacity: types.SystemCapacity{
			CurrentTasks:     3,
			ReservedMemoryMB: 1536,
			HourlyTokensUsed: 12000,
			DailyTokensUsed:  90000,
		},
		depth: 7,
	}

	c := NewCollector(source, time.Minute)
	c.Collect()

	assert.Equal(t, 7.0, gaugeValue(t, QueueDepth))
	assert.Equal(t, 3.0, gaugeValue(t, RunningTasks))
	assert.Equal(t, 1536.0, gaugeValue(t, MemoryReservedMB))
	assert.Equal(t, 12000.0, gaugeValue(t, TokensUsed.WithLabelValues("hour")))
	assert.Equal(t, 90000.0, gaugeValue(t, TokensUsed.WithLabelValues("day")))
}

func TestCollectorStartStop(t *testing.T) {
	source := &fakeSource{depth: 2}
	c := NewCollector(source, 10*time.Millisecond)
	c.Start()

	assert.Eventually(t, func() bool {
		var m dto.Metric
		_ = QueueDepth.Write(&m)
		return m.GetGauge().GetValue() == 2
	}, time.Second, 5*time.Millisecond)

	c.Stop()
	c.Stop() // idempotent
}
