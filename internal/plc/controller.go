package plc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/plcforge/plcsim/internal/tag"
)

// State of a controller's lifecycle.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

const moduleTimeout = 5 * time.Second

// Status is a snapshot of a controller for diagnostic surfaces.
type Status struct {
	Name       string    `json:"name"`
	State      State     `json:"state"`
	ScanCycles uint64    `json:"scan_cycles"`
	LastScan   time.Time `json:"last_scan,omitempty"`
	Modules    int       `json:"modules"`
	Tags       int       `json:"tags"`
}

// Controller owns one state and an ordered list of IO modules and runs
// the scan cycle over them. It is a simulation entity: the scheduler calls
// Start once, Step every tick and Stop at shutdown. All scan work happens
// on the scheduler's goroutine.
type Controller struct {
	name    string
	logger  *zap.Logger
	state   *tag.State
	program Program
	modules []IOModule

	mu         sync.Mutex
	runState   State
	scanCycles uint64
	lastScan   time.Time
}

func NewController(name string, state *tag.State, program Program, modules []IOModule, logger *zap.Logger) *Controller {
	return &Controller{
		name:     name,
		logger:   logger.Named(name),
		state:    state,
		program:  program,
		modules:  modules,
		runState: StateStopped,
	}
}

func (c *Controller) Name() string { return c.name }

// Tags exposes the controller's state for bridge construction.
func (c *Controller) Tags() *tag.State { return c.state }

// Start brings every module up in list order. A module that fails to
// start is logged and left behind; the remaining modules still start,
// because bridges are independent protocol endpoints.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.runState == StateRunning {
		c.mu.Unlock()
		return
	}
	c.runState = StateRunning
	c.mu.Unlock()

	for _, m := range c.modules {
		ctx, cancel := context.WithTimeout(context.Background(), moduleTimeout)
		if err := m.Start(ctx, c.state); err != nil {
			c.logger.Error("IO module failed to start",
				zap.String("module", m.Name()),
				zap.Error(err))
		} else {
			c.logger.Info("IO module started", zap.String("module", m.Name()))
		}
		cancel()
	}
}

// Stop shuts every module down in list order, best-effort.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.runState == StateStopped {
		c.mu.Unlock()
		return
	}
	c.runState = StateStopped
	c.mu.Unlock()

	for _, m := range c.modules {
		ctx, cancel := context.WithTimeout(context.Background(), moduleTimeout)
		if err := m.Stop(ctx, c.state); err != nil {
			c.logger.Error("IO module failed to stop",
				zap.String("module", m.Name()),
				zap.Error(err))
		}
		cancel()
	}
	c.logger.Info("Controller stopped", zap.Uint64("scan_cycles", c.scanCycleCount()))
}

// Step runs one scan cycle: input scan, control logic, output update.
// Module errors are logged and never abort the cycle.
func (c *Controller) Step(dt float64) {
	for _, m := range c.modules {
		if err := m.ReadInputs(c.state); err != nil {
			c.logger.Error("Input scan failed",
				zap.String("module", m.Name()),
				zap.Error(err))
		}
	}

	if err := c.program.Execute(c.state, dt); err != nil {
		c.logger.Error("Control logic failed", zap.Error(err))
	}

	for _, m := range c.modules {
		if err := m.WriteOutputs(c.state); err != nil {
			c.logger.Error("Output update failed",
				zap.String("module", m.Name()),
				zap.Error(err))
		}
	}

	c.mu.Lock()
	c.scanCycles++
	c.lastScan = time.Now()
	c.mu.Unlock()
}

func (c *Controller) scanCycleCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanCycles
}

// Status returns a snapshot for the diagnostic API.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Name:       c.name,
		State:      c.runState,
		ScanCycles: c.scanCycles,
		LastScan:   c.lastScan,
		Modules:    len(c.modules),
		Tags:       c.state.Len(),
	}
}
