package interfaces

import (
	"github.com/plcforge/plcsim/internal/plc"
)

// StatusProvider exposes a controller snapshot to diagnostic surfaces.
// *plc.Controller implements it; the REST layer depends on this interface
// so it never reaches into controller internals.
type StatusProvider interface {
	Status() plc.Status
}
