// Package controllers holds the concrete simulated PLCs: their tag
// states, control programs and the IO modules that couple them to the
// physical environment.
package controllers

import (
	"context"
	"math/rand/v2"

	"github.com/plcforge/plcsim/internal/phys"
	"github.com/plcforge/plcsim/internal/plc"
	"github.com/plcforge/plcsim/internal/tag"
)

const (
	o2SensorNoiseSigma = 0.02
	o2HighAlarmLevel   = 23.5
	o2LowAlarmLevel    = 19.5
)

// OxygenState is the tag set of the oxygen controller. The struct keeps
// direct references next to the State so the program and environment
// module never pay a name lookup on the scan path.
type OxygenState struct {
	State *tag.State

	// Sensor input.
	O2PV *tag.Tag

	// Controller outputs.
	Output    *tag.Tag
	HighAlarm *tag.Tag
	LowAlarm  *tag.Tag

	// Externally settable variables.
	O2SP           *tag.Tag
	ManualOverride *tag.Tag
	OutputManual   *tag.Tag

	// PID configuration and persisted regulator state.
	Kp      *tag.Tag
	Ki      *tag.Tag
	Kd      *tag.Tag
	Integr  *tag.Tag
	PrevErr *tag.Tag
}

func NewOxygenState() (*OxygenState, error) {
	s := &OxygenState{
		O2PV:           tag.New("O2_PV", tag.Float64(0.0), false),
		Output:         tag.New("Output", tag.Int32(0), true),
		HighAlarm:      tag.New("High_Alarm", tag.Bool(false), true),
		LowAlarm:       tag.New("Low_Alarm", tag.Bool(false), true),
		O2SP:           tag.New("O2_SP", tag.Float64(21.0), true),
		ManualOverride: tag.New("ManualOverride", tag.Bool(false), true),
		OutputManual:   tag.New("Output_Manual", tag.Int32(10), true),
		Kp:             tag.New("Kp", tag.Float64(2.8), true),
		Ki:             tag.New("Ki", tag.Float64(0.23), true),
		Kd:             tag.New("Kd", tag.Float64(2.0), true),
		Integr:         tag.New("i", tag.Float64(0.0), true),
		PrevErr:        tag.New("prev_err", tag.Float64(0.0), true),
	}

	state, err := tag.NewState(
		s.O2PV, s.Output, s.HighAlarm, s.LowAlarm,
		s.O2SP, s.ManualOverride, s.OutputManual,
		s.Kp, s.Ki, s.Kd, s.Integr, s.PrevErr,
	)
	if err != nil {
		return nil, err
	}
	s.State = state
	return s, nil
}

// OxygenProgram regulates the oxygen concentration by driving a supply
// valve, with a PID loop in automatic mode and a clamped pass-through of
// Output_Manual when the manual override is active.
type OxygenProgram struct {
	s *OxygenState
}

func NewOxygenProgram(s *OxygenState) *OxygenProgram {
	return &OxygenProgram{s: s}
}

func (p *OxygenProgram) Execute(_ *tag.State, dt float64) error {
	s := p.s

	if !s.ManualOverride.Get().Bool() {
		u, err, i := plc.PID(
			s.O2SP.Get().Float64(),
			s.O2PV.Get().Float64(),
			s.Kp.Get().Float64(),
			s.Ki.Get().Float64(),
			s.Kd.Get().Float64(),
			s.PrevErr.Get().Float64(),
			s.Integr.Get().Float64(),
			dt, 0, 100,
		)
		if serr := s.Output.Set(tag.Int32(int32(u))); serr != nil {
			return serr
		}
		if serr := s.Integr.Set(tag.Float64(i)); serr != nil {
			return serr
		}
		if serr := s.PrevErr.Set(tag.Float64(err)); serr != nil {
			return serr
		}
	} else {
		manual := plc.Clamp(float64(s.OutputManual.Get().Int32()), 0, 100)
		if serr := s.Output.Set(tag.Int32(int32(manual))); serr != nil {
			return serr
		}
	}

	pv := s.O2PV.Get().Float64()
	if err := s.HighAlarm.Set(tag.Bool(pv > o2HighAlarmLevel)); err != nil {
		return err
	}
	return s.LowAlarm.Set(tag.Bool(pv < o2LowAlarmLevel))
}

// OxygenEnvModule couples the oxygen controller to the simulated
// environment: the concentration sensor (with gaussian noise) on the
// input scan, the supply valve on the output update.
type OxygenEnvModule struct {
	env *phys.Environment
	s   *OxygenState
}

func NewOxygenEnvModule(env *phys.Environment, s *OxygenState) *OxygenEnvModule {
	return &OxygenEnvModule{env: env, s: s}
}

func (m *OxygenEnvModule) Name() string { return "oxygen-env" }

func (m *OxygenEnvModule) Start(_ context.Context, _ *tag.State) error { return nil }
func (m *OxygenEnvModule) Stop(_ context.Context, _ *tag.State) error  { return nil }

func (m *OxygenEnvModule) ReadInputs(_ *tag.State) error {
	noise := rand.NormFloat64() * o2SensorNoiseSigma
	return m.s.O2PV.Set(tag.Float64(m.env.O2Concentration + noise))
}

func (m *OxygenEnvModule) WriteOutputs(_ *tag.State) error {
	m.env.O2SupplyValve = float64(m.s.Output.Get().Int32())
	return nil
}
