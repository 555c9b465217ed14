// Package plc implements the scan-cycle controller framework: the
// IOModule capability, the controller that drives input scan, control
// logic and output update each tick, and the PID control primitive.
package plc

import (
	"context"

	"github.com/plcforge/plcsim/internal/tag"
)

// IOModule is a protocol or process front-end attached to a controller.
// Start and Stop bracket the controller's lifetime; ReadInputs and
// WriteOutputs are invoked on the scan thread every cycle, ReadInputs
// strictly before control logic and WriteOutputs strictly after.
//
// A module may run its own background work (network servers, client
// loops), but any interaction between that work and the shared state must
// be staged and applied inside ReadInputs/WriteOutputs.
type IOModule interface {
	// Name identifies the module in logs and status reports.
	Name() string

	// Start brings the module up against the given state. The context
	// bounds startup time.
	Start(ctx context.Context, state *tag.State) error

	// Stop shuts the module down. Stop is idempotent and bounded by the
	// context.
	Stop(ctx context.Context, state *tag.State) error

	// ReadInputs applies pending external writes to the state.
	ReadInputs(state *tag.State) error

	// WriteOutputs publishes the state through the module.
	WriteOutputs(state *tag.State) error
}

// Program is the control logic executed between the input scan and the
// output update. dt is the elapsed simulated time in seconds.
type Program interface {
	Execute(state *tag.State, dt float64) error
}

// ProgramFunc adapts a plain function to the Program interface.
type ProgramFunc func(state *tag.State, dt float64) error

func (f ProgramFunc) Execute(state *tag.State, dt float64) error {
	return f(state, dt)
}
