package sim

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestConfigInterval(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected time.Duration
	}{
		{"real time", Config{SimDT: 0.5, Speed: 1.0}, 500 * time.Millisecond},
		{"double speed", Config{SimDT: 0.5, Speed: 2.0}, 250 * time.Millisecond},
		{"floored at minimum", Config{SimDT: 0.5, Speed: 100.0}, minInterval},
		{"zero speed treated as real time", Config{SimDT: 0.5, Speed: 0}, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.Interval())
		})
	}
}

type countingEntity struct {
	started int32
	stopped int32
	steps   int32
	lastDT  float64
}

func (e *countingEntity) Start() { atomic.AddInt32(&e.started, 1) }
func (e *countingEntity) Stop()  { atomic.AddInt32(&e.stopped, 1) }
func (e *countingEntity) Step(dt float64) {
	e.lastDT = dt
	atomic.AddInt32(&e.steps, 1)
}

func TestSimulationRun(t *testing.T) {
	s := New(Config{SimDT: 0.5, Speed: 1000.0}, zap.NewNop())
	e1 := &countingEntity{}
	e2 := &countingEntity{}
	s.Add(e1)
	s.Add(e2)

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.Equal(t, int32(1), atomic.LoadInt32(&e1.started))
	assert.Equal(t, int32(1), atomic.LoadInt32(&e1.stopped))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&e1.steps), int32(1))
	assert.Equal(t, atomic.LoadInt32(&e1.steps), atomic.LoadInt32(&e2.steps))
	assert.Equal(t, 0.5, e1.lastDT)
}

type panickyEntity struct{ countingEntity }

func (e *panickyEntity) Stop() { panic("stop exploded") }

func TestSimulationStopSurvivesPanic(t *testing.T) {
	s := New(Config{SimDT: 0.5, Speed: 1000.0}, zap.NewNop())
	bad := &panickyEntity{}
	good := &countingEntity{}
	s.Add(bad)
	s.Add(good)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	// The panicking entity must not keep the other from stopping.
	assert.Equal(t, int32(1), atomic.LoadInt32(&good.stopped))
}
