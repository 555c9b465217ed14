package plc

// PID computes one step of a PID regulator.
//
// It is a pure function: the caller persists prevErr and the returned
// integral between calls, typically as tags. The integral accumulates
// err*dt unless the raw output has already saturated in the direction the
// error would push it further (anti-windup); the final output is clamped
// to [umin, umax].
func PID(setpoint, actual, kp, ki, kd, prevErr, integral, dt, umin, umax float64) (u, err, i float64) {
	err = setpoint - actual
	dErr := (err - prevErr) / dt
	u = kp*err + ki*integral + kd*dErr

	i = integral
	if !(u >= umax && err > 0) && !(u <= umin && err < 0) {
		i += err * dt
	}

	u = Clamp(u, umin, umax)
	return u, err, i
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
