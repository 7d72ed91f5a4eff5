package metrics

import (
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/types"
)

// Source exposes the live scheduler state sampled by the Collector
type Source interface {
	GetSystemCapacity() types.SystemCapacity
	QueueDepth() int
}

// Collector periodically copies scheduler gauges into Prometheus
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Collect samples the source once
func (c *Collector) Collect() {
	capacity := c.source.GetSystemCapacity()

	QueueDepth.Set(float64(c.source.QueueDepth()))
	RunningTasks.Set(float64(capacity.CurrentTasks))
	MemoryReservedMB.Set(capacity.ReservedMemoryMB)
	TokensUsed.WithLabelValues("hour").Set(capacity.HourlyTokensUsed)
	TokensUsed.WithLabelValues("day").Set(capacity.DailyTokensUsed)
}
