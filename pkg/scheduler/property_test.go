package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/health"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type opKind int

const (
	opSchedule opKind = iota
	opStart
	opReport
	opRemove
	opReap
)

type op struct {
	kind   opKind
	target int
	typ    int
	prio   int
}

func (o op) String() string {
	return fmt.Sprintf("%d(t%d,%s,P%d)", o.kind, o.target, types.TaskTypes[o.typ], o.prio)
}

func genOp() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(int(opSchedule), int(opReap)),
		gen.IntRange(0, 7),
		gen.IntRange(0, len(types.TaskTypes)-1),
		gen.IntRange(0, 3),
	).Map(func(v []interface{}) op {
		return op{kind: opKind(v[0].(int)), target: v[1].(int), typ: v[2].(int), prio: v[3].(int)}
	})
}

func propertyScheduler(cfg *config.Config) (*Scheduler, *clock, error) {
	clk := &clock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	s, err := Open(cfg, Deps{Health: health.NewStatic(true, ""), Now: clk.Now})
	return s, clk, err
}

// ledgerConsistent checks that reservations never exceed the ceilings and
// that exactly the live tasks hold one.
func ledgerConsistent(s *Scheduler, cfg *config.Config) bool {
	allocs := s.checker.Allocations()
	if len(allocs) > cfg.MaxConcurrentTasks {
		return false
	}
	memory := 0.0
	held := make(map[string]bool, len(allocs))
	for _, a := range allocs {
		memory += a.MemoryMB
		held[a.TaskID] = true
	}
	if memory > cfg.MaxMemoryMB {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(held) != len(s.tasks) {
		return false
	}
	for id, t := range s.tasks {
		if !held[id] || !live(t.state) {
			return false
		}
	}
	return true
}

func TestLedgerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	cfg := config.Default()
	cfg.MaxMemoryMB = 2000
	cfg.MaxConcurrentTasks = 3
	cfg.MaxQueueDepth = 4

	properties.Property("reservations stay within capacity and match live tasks", prop.ForAll(
		func(ops []op) bool {
			s, clk, err := propertyScheduler(cfg)
			if err != nil {
				return false
			}
			defer s.Close()
			ctx := context.Background()

			for _, o := range ops {
				id := fmt.Sprintf("t%d", o.target)
				switch o.kind {
				case opSchedule:
					s.ScheduleTask(ctx, &types.Task{
						ID:        id,
						Type:      types.TaskTypes[o.typ],
						Priority:  types.Priority(o.prio),
						CreatedAt: clk.Now(),
					})
				case opStart:
					s.StartTask(id)
				case opReport:
					s.ReportOutcome(id, types.ResourceUsage{MemoryMB: 300, CPUSeconds: 10, Tokens: 1000, DurationMs: 10000})
				case opRemove:
					s.RemoveTask(id)
				case opReap:
					clk.Advance(45 * time.Minute)
					s.ReapExpired()
				}
				if !ledgerConsistent(s, cfg) {
					t.Logf("inconsistent after %v", o)
					return false
				}
			}

			stats := s.GetStats()
			released := stats.Completed + stats.Removed + stats.Expired
			return stats.Admitted == released+len(s.checker.Allocations())
		},
		gen.SliceOf(genOp()),
	))

	properties.Property("admission check is repeatable", prop.ForAll(
		func(ops []op, typ, prio int) bool {
			s, clk, err := propertyScheduler(cfg)
			if err != nil {
				return false
			}
			defer s.Close()
			ctx := context.Background()

			for _, o := range ops {
				s.ScheduleTask(ctx, &types.Task{ID: fmt.Sprintf("t%d", o.target), Type: types.TaskTypes[o.typ], CreatedAt: clk.Now()})
			}
			candidate := &types.Task{ID: "candidate", Type: types.TaskTypes[typ], Priority: types.Priority(prio), CreatedAt: clk.Now()}
			before := s.GetSystemCapacity()
			first := s.CanAcceptTask(ctx, candidate)
			second := s.CanAcceptTask(ctx, candidate)
			return first == second && before == s.GetSystemCapacity() && s.QueueDepth() == len(s.GetSchedule().Queued)
		},
		gen.SliceOf(genOp()),
		gen.IntRange(0, len(types.TaskTypes)-1),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}

func TestHeuristicToMLSwitchover(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	report := func(i int) {
		id := fmt.Sprintf("t-%d", i)
		require.True(t, h.ScheduleTask(ctx, fixTask(id, h.clock.Now())).Scheduled)
		require.True(t, h.StartTask(id).Started)
		require.True(t, h.ReportOutcome(id, done).Recorded)
		h.clock.Advance(5 * time.Minute)
	}

	for i := 0; i < 49; i++ {
		report(i)
	}
	assert.Equal(t, types.MethodHeuristic, h.CanAcceptTask(ctx, fixTask("candidate", h.clock.Now())).PredictionMethod)

	report(49)
	method := h.CanAcceptTask(ctx, fixTask("candidate", h.clock.Now())).PredictionMethod
	assert.NotEqual(t, types.MethodHeuristic, method)
	assert.Equal(t, types.MethodML, method)
	assert.True(t, h.GetAccuracyMetrics().MLActive)
}
