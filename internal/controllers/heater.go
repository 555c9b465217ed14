package controllers

import (
	"context"
	"math/rand/v2"

	"github.com/plcforge/plcsim/internal/phys"
	"github.com/plcforge/plcsim/internal/plc"
	"github.com/plcforge/plcsim/internal/tag"
)

const tempSensorNoiseSigma = 0.2

// HeaterState is the tag set of the room heating controller.
type HeaterState struct {
	State *tag.State

	PV    *tag.Tag
	SP    *tag.Tag
	Power *tag.Tag

	Kp      *tag.Tag
	Ki      *tag.Tag
	Kd      *tag.Tag
	PrevErr *tag.Tag
	Integr  *tag.Tag
}

func NewHeaterState() (*HeaterState, error) {
	s := &HeaterState{
		PV:      tag.New("PV", tag.Float64(0.0), false),
		SP:      tag.New("SP", tag.Float64(21.0), true),
		Power:   tag.New("Power", tag.Int32(0), true),
		Kp:      tag.New("Kp", tag.Float64(4.0), true),
		Ki:      tag.New("Ki", tag.Float64(0.4), true),
		Kd:      tag.New("Kd", tag.Float64(0.0), true),
		PrevErr: tag.New("PrevErr", tag.Float64(0.0), true),
		Integr:  tag.New("Integral", tag.Float64(0.0), true),
	}

	state, err := tag.NewState(
		s.PV, s.SP, s.Power,
		s.Kp, s.Ki, s.Kd, s.PrevErr, s.Integr,
	)
	if err != nil {
		return nil, err
	}
	s.State = state
	return s, nil
}

// HeaterProgram holds the room temperature at the setpoint with a PID
// loop driving the heater power between 0 and 100.
type HeaterProgram struct {
	s *HeaterState
}

func NewHeaterProgram(s *HeaterState) *HeaterProgram {
	return &HeaterProgram{s: s}
}

func (p *HeaterProgram) Execute(_ *tag.State, dt float64) error {
	s := p.s

	u, err, i := plc.PID(
		s.SP.Get().Float64(),
		s.PV.Get().Float64(),
		s.Kp.Get().Float64(),
		s.Ki.Get().Float64(),
		s.Kd.Get().Float64(),
		s.PrevErr.Get().Float64(),
		s.Integr.Get().Float64(),
		dt, 0, 100,
	)
	if serr := s.Power.Set(tag.Int32(int32(plc.Clamp(u, 0, 100)))); serr != nil {
		return serr
	}
	if serr := s.PrevErr.Set(tag.Float64(err)); serr != nil {
		return serr
	}
	return s.Integr.Set(tag.Float64(i))
}

// HeaterEnvModule couples the heater controller to the simulated room:
// the temperature sensor with gaussian noise on input, the heater power
// command on output.
type HeaterEnvModule struct {
	env *phys.Environment
	s   *HeaterState
}

func NewHeaterEnvModule(env *phys.Environment, s *HeaterState) *HeaterEnvModule {
	return &HeaterEnvModule{env: env, s: s}
}

func (m *HeaterEnvModule) Name() string { return "heater-env" }

func (m *HeaterEnvModule) Start(_ context.Context, _ *tag.State) error { return nil }
func (m *HeaterEnvModule) Stop(_ context.Context, _ *tag.State) error  { return nil }

func (m *HeaterEnvModule) ReadInputs(_ *tag.State) error {
	noise := rand.NormFloat64() * tempSensorNoiseSigma
	return m.s.PV.Set(tag.Float64(m.env.RoomTemperature + noise))
}

func (m *HeaterEnvModule) WriteOutputs(_ *tag.State) error {
	m.env.HeaterPower = float64(m.s.Power.Get().Int32())
	return nil
}
