// Package phys simulates the physical process the controllers act on: a
// room with a heater, four motor-driven doors and an oxygen supply valve.
package phys

import (
	"go.uber.org/zap"
)

// Motor commands as written by the door controller.
const (
	MotorStopped = 0
	MotorClosing = 1
	MotorOpening = 2
)

const (
	// Door travel in percent of full stroke per simulated second.
	doorTravelRate = 20.0

	// First-order thermal coupling between the room and the exterior.
	heatLossCoeff   = 0.1
	heaterGainCoeff = 0.05

	// Oxygen leaks toward the ambient level and is replenished through
	// the supply valve. At valve=20 the balance settles at 21 percent.
	o2AmbientLevel = 17.0
	o2LeakCoeff    = 0.02
	o2SupplyCoeff  = 0.004
)

// Environment holds the simulated process state. It is stepped by the
// simulation loop and read/written by the environment IO modules, all on
// the simulation goroutine, so no locking is needed.
type Environment struct {
	logger *zap.Logger

	// Heater power command, 0 (off) to 100 (full power).
	HeaterPower float64
	// Room and exterior temperature in degrees Celsius.
	RoomTemperature     float64
	ExteriorTemperature float64

	// Door positions, 0 (fully closed) to 100 (fully open), and the
	// motor command currently applied to each door.
	DoorOpen   [4]float64
	DoorMotors [4]int

	// Oxygen concentration in percent and the supply valve command,
	// 0 (shut) to 100 (fully open).
	O2Concentration float64
	O2SupplyValve   float64
}

func NewEnvironment(logger *zap.Logger) *Environment {
	return &Environment{
		logger:              logger.Named("phys"),
		RoomTemperature:     15.0,
		ExteriorTemperature: 5.0,
		DoorOpen:            [4]float64{100.0, 100.0, 100.0, 100.0},
		O2Concentration:     20.9,
	}
}

func (e *Environment) Start() {
	e.logger.Info("Physical environment initialized",
		zap.Float64("room_temperature", e.RoomTemperature),
		zap.Float64("o2_concentration", e.O2Concentration))
}

func (e *Environment) Stop() {}

// Step advances the process model by dt simulated seconds.
func (e *Environment) Step(dt float64) {
	// Without the heater the room temperature drifts toward the
	// exterior temperature.
	e.RoomTemperature -= heatLossCoeff * (e.RoomTemperature - e.ExteriorTemperature) * dt
	e.RoomTemperature += heaterGainCoeff * e.HeaterPower * dt

	for i := range e.DoorOpen {
		switch e.DoorMotors[i] {
		case MotorOpening:
			e.DoorOpen[i] = clamp(e.DoorOpen[i]+doorTravelRate*dt, 0.0, 100.0)
		case MotorClosing:
			e.DoorOpen[i] = clamp(e.DoorOpen[i]-doorTravelRate*dt, 0.0, 100.0)
		}
	}

	e.O2Concentration -= o2LeakCoeff * (e.O2Concentration - o2AmbientLevel) * dt
	e.O2Concentration += o2SupplyCoeff * e.O2SupplyValve * dt
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
