// Package sim runs the fixed-tick simulation loop over a set of
// independently stepped entities.
package sim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entity is anything the scheduler advances: controllers and the physical
// process model.
type Entity interface {
	Start()
	Stop()
	Step(dt float64)
}

// minInterval bounds CPU use when the speed multiplier is large.
const minInterval = 50 * time.Millisecond

// Config holds the simulation timing parameters.
type Config struct {
	// SimDT is the simulated time, in seconds, that elapses per step.
	SimDT float64
	// Speed is the multiplier of simulated time over wall-clock time
	// (1.0 = real time).
	Speed float64
}

// Interval returns the wall-clock period between steps, floored at 50ms.
func (c Config) Interval() time.Duration {
	speed := c.Speed
	if speed <= 0 {
		speed = 1.0
	}
	d := time.Duration(c.SimDT / speed * float64(time.Second))
	if d < minInterval {
		d = minInterval
	}
	return d
}

// Simulation owns the entity list and the tick loop. All entities step on
// the simulation goroutine, in registration order.
type Simulation struct {
	cfg      Config
	logger   *zap.Logger
	mu       sync.Mutex
	entities []Entity
}

func New(cfg Config, logger *zap.Logger) *Simulation {
	return &Simulation{cfg: cfg, logger: logger}
}

// Add registers an entity. Entities added after Run has started are not
// picked up.
func (s *Simulation) Add(e Entity) {
	s.mu.Lock()
	s.entities = append(s.entities, e)
	s.mu.Unlock()
}

// Run starts every entity, steps them all each tick until the context is
// cancelled, then stops them all. Stop failures in one entity do not keep
// the others from stopping.
func (s *Simulation) Run(ctx context.Context) {
	s.mu.Lock()
	entities := make([]Entity, len(s.entities))
	copy(entities, s.entities)
	s.mu.Unlock()

	interval := s.cfg.Interval()
	s.logger.Info("Simulation starting",
		zap.Float64("sim_dt", s.cfg.SimDT),
		zap.Float64("speed", s.cfg.Speed),
		zap.Duration("interval", interval),
		zap.Int("entities", len(entities)))

	for _, e := range entities {
		e.Start()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			for _, e := range entities {
				e.Step(s.cfg.SimDT)
			}
		}
	}

	s.logger.Info("Simulation stopping")
	for _, e := range entities {
		s.stopEntity(e)
	}
}

func (s *Simulation) stopEntity(e Entity) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Entity panicked during stop", zap.Any("panic", r))
		}
	}()
	e.Stop()
}
