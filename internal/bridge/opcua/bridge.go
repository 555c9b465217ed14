package opcua

import (
	"context"

	"go.uber.org/zap"

	"github.com/plcforge/plcsim/internal/bridge"
	"github.com/plcforge/plcsim/internal/plc"
	"github.com/plcforge/plcsim/internal/tag"
)

// TreeBuilder populates a space from the controller's state: the
// controller-specific structure of objects and tag-bound variables.
type TreeBuilder func(space *Space, state *tag.State) error

// Endpoint is the network surface serving the space (the diagnostic
// HTTP/websocket server). The bridge starts it after the tree is built
// and shuts it down on stop.
type Endpoint interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// UpdateFunc observes variable-value changes pushed during the output
// phase, for live streaming to clients.
type UpdateFunc func(nodeID string, vt VariantType, value tag.Value)

// Bridge mirrors tags into an address space. ReadInputs pulls
// externally-set values of writable variables back into tags;
// WriteOutputs pushes every bound tag into its node. The bridge never
// blocks waiting for a client.
type Bridge struct {
	name     string
	logger   *zap.Logger
	space    *Space
	build    TreeBuilder
	endpoint Endpoint
	onUpdate UpdateFunc
	started  bool
}

var _ plc.IOModule = (*Bridge)(nil)

// New creates a bridge with an empty space in namespace 2 (namespace 0/1
// being reserved in OPC-UA addressing).
func New(name string, build TreeBuilder, logger *zap.Logger) *Bridge {
	return &Bridge{
		name:   name,
		logger: logger.Named("opcua"),
		space:  NewSpace(2),
		build:  build,
	}
}

func (b *Bridge) Name() string { return "opcua" }

// Space returns the address space. The pointer is stable from
// construction so endpoints can be wired before the tree is built.
func (b *Bridge) Space() *Space { return b.space }

// AttachEndpoint sets the network surface started with the bridge.
func (b *Bridge) AttachEndpoint(e Endpoint) { b.endpoint = e }

// OnUpdate registers the value-change observer.
func (b *Bridge) OnUpdate(fn UpdateFunc) { b.onUpdate = fn }

// Start builds the node tree and brings the endpoint up.
func (b *Bridge) Start(ctx context.Context, state *tag.State) error {
	if b.started {
		return nil
	}

	if err := b.build(b.space, state); err != nil {
		return &bridge.StartupError{Bridge: "opcua", Err: err}
	}

	if b.endpoint != nil {
		if err := b.endpoint.Start(); err != nil {
			return &bridge.StartupError{Bridge: "opcua", Err: err}
		}
	}

	b.started = true
	b.logger.Info("Address space ready",
		zap.String("controller", b.name),
		zap.Int("variables", len(b.space.Variables())))
	return nil
}

// Stop shuts the endpoint down. Idempotent.
func (b *Bridge) Stop(ctx context.Context, state *tag.State) error {
	if !b.started {
		return nil
	}
	b.started = false

	if b.endpoint != nil {
		if err := b.endpoint.Shutdown(ctx); err != nil {
			return &bridge.ShutdownError{Bridge: "opcua", Err: err}
		}
	}
	return nil
}

// ReadInputs pulls each writable variable's node value into its tag.
// Read-only variables are left alone.
func (b *Bridge) ReadInputs(state *tag.State) error {
	for _, v := range b.space.Variables() {
		if !v.Writable() {
			continue
		}
		if err := v.pullIntoTag(); err != nil {
			b.logger.Error("Node value rejected by tag",
				zap.String("node", v.NodeID()), zap.Error(err))
		}
	}
	return nil
}

// WriteOutputs pushes every bound tag's value into its node, regardless
// of writability, and notifies the observer of changes.
func (b *Bridge) WriteOutputs(state *tag.State) error {
	for _, v := range b.space.Variables() {
		value, changed := v.push()
		if changed && b.onUpdate != nil {
			b.onUpdate(v.NodeID(), v.VariantType(), value)
		}
	}
	return nil
}
