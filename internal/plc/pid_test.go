package plc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPIDProportional(t *testing.T) {
	// Pure P controller: output is kp * error, clamped.
	u, err, i := PID(21.0, 19.0, 2.0, 0, 0, 0, 0, 0.5, 0, 100)
	assert.InDelta(t, 4.0, u, 1e-9)
	assert.InDelta(t, 2.0, err, 1e-9)
	assert.InDelta(t, 1.0, i, 1e-9) // err*dt accumulated
}

func TestPIDClampsOutput(t *testing.T) {
	u, _, _ := PID(100.0, 0.0, 10.0, 0, 0, 0, 0, 0.5, 0, 100)
	assert.Equal(t, 100.0, u)

	u, _, _ = PID(0.0, 100.0, 10.0, 0, 0, 0, 0, 0.5, 0, 100)
	assert.Equal(t, 0.0, u)
}

func TestPIDAntiWindup(t *testing.T) {
	// Saturated high with a positive error: the integral must not grow.
	_, _, i := PID(100.0, 0.0, 10.0, 1.0, 0, 0, 50.0, 0.5, 0, 100)
	assert.Equal(t, 50.0, i)

	// Saturated low with a negative error: the integral must not shrink.
	_, _, i = PID(0.0, 100.0, 10.0, 1.0, 0, 0, -50.0, 0.5, 0, 100)
	assert.Equal(t, -50.0, i)

	// Saturated high but the error pulls back down: integration resumes.
	_, err, i := PID(0.0, 5.0, 0.1, 1.0, 0, 0, 2000.0, 0.5, 0, 100)
	assert.InDelta(t, -5.0, err, 1e-9)
	assert.InDelta(t, 2000.0+(-5.0)*0.5, i, 1e-9)
}

func TestPIDDerivative(t *testing.T) {
	// Error falls from 4 to 2 over dt=0.5: derivative term is kd * -4.
	u, _, _ := PID(21.0, 19.0, 0, 0, 1.0, 4.0, 0, 0.5, -100, 100)
	assert.InDelta(t, -4.0, u, 1e-9)
}

func TestPIDConvergesOnFirstOrderPlant(t *testing.T) {
	// Heater gains against the simulated room model must settle near the
	// setpoint without oscillating out of band.
	const dt = 0.5
	temp, exterior := 15.0, 5.0
	setpoint := 21.0
	prevErr, integral := 0.0, 0.0

	for cycle := 0; cycle < 2000; cycle++ {
		var u float64
		u, prevErr, integral = PID(setpoint, temp, 4.0, 0.4, 0.0, prevErr, integral, dt, 0, 100)
		temp -= 0.1 * (temp - exterior) * dt
		temp += 0.05 * u * dt
	}

	assert.InDelta(t, setpoint, temp, 0.5)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-3.0, 0, 100))
	assert.Equal(t, 100.0, Clamp(250.0, 0, 100))
	assert.Equal(t, 42.0, Clamp(42.0, 0, 100))
}
