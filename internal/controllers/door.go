package controllers

import (
	"context"
	"fmt"

	"github.com/plcforge/plcsim/internal/phys"
	"github.com/plcforge/plcsim/internal/tag"
)

// DoorCount is the number of doors managed by the door controller.
const DoorCount = 4

// Door groups the tags of a single door: limit-switch sensors, the
// desired position and the motor command (0 stopped, 1 closing,
// 2 opening).
type Door struct {
	Opened *tag.Tag
	Closed *tag.Tag
	Target *tag.Tag
	Motor  *tag.Tag
}

// DoorState is the tag set of the door controller.
type DoorState struct {
	State *tag.State
	Doors [DoorCount]Door
}

func NewDoorState() (*DoorState, error) {
	s := &DoorState{}
	tags := make([]*tag.Tag, 0, DoorCount*4)
	for i := range s.Doors {
		n := i + 1
		s.Doors[i] = Door{
			Opened: tag.New(fmt.Sprintf("Door_%d_Opened", n), tag.Bool(true), false),
			Closed: tag.New(fmt.Sprintf("Door_%d_Closed", n), tag.Bool(false), false),
			Target: tag.New(fmt.Sprintf("Door_%d_Target", n), tag.Bool(true), true),
			Motor:  tag.New(fmt.Sprintf("Door_%d_Motor", n), tag.Int32(0), true),
		}
		tags = append(tags, s.Doors[i].Opened, s.Doors[i].Closed, s.Doors[i].Target, s.Doors[i].Motor)
	}

	state, err := tag.NewState(tags...)
	if err != nil {
		return nil, err
	}
	s.State = state
	return s, nil
}

// DoorProgram drives each door motor toward its target position based on
// the limit-switch sensors.
type DoorProgram struct {
	s *DoorState
}

func NewDoorProgram(s *DoorState) *DoorProgram {
	return &DoorProgram{s: s}
}

func (p *DoorProgram) Execute(_ *tag.State, _ float64) error {
	for i := range p.s.Doors {
		d := &p.s.Doors[i]
		if err := setMotor(d); err != nil {
			return err
		}
	}
	return nil
}

func setMotor(d *Door) error {
	opened := d.Opened.Get().Bool()
	closed := d.Closed.Get().Bool()
	wantOpen := d.Target.Get().Bool()

	var cmd int32
	switch {
	case opened && closed:
		// Contradictory sensors, stop the motor.
		cmd = phys.MotorStopped
	case wantOpen && !opened:
		cmd = phys.MotorOpening
	case !wantOpen && !closed:
		cmd = phys.MotorClosing
	default:
		cmd = phys.MotorStopped
	}
	return d.Motor.Set(tag.Int32(cmd))
}

// DoorEnvModule couples the door controller to the simulated doors: the
// limit switches trip at the ends of the 0..100 stroke, and the motor
// commands are applied to the environment on the output update.
type DoorEnvModule struct {
	env *phys.Environment
	s   *DoorState
}

func NewDoorEnvModule(env *phys.Environment, s *DoorState) *DoorEnvModule {
	return &DoorEnvModule{env: env, s: s}
}

func (m *DoorEnvModule) Name() string { return "door-env" }

func (m *DoorEnvModule) Start(_ context.Context, _ *tag.State) error { return nil }
func (m *DoorEnvModule) Stop(_ context.Context, _ *tag.State) error  { return nil }

func (m *DoorEnvModule) ReadInputs(_ *tag.State) error {
	for i := range m.s.Doors {
		d := &m.s.Doors[i]
		if err := d.Opened.Set(tag.Bool(m.env.DoorOpen[i] >= 100.0)); err != nil {
			return err
		}
		if err := d.Closed.Set(tag.Bool(m.env.DoorOpen[i] <= 0.0)); err != nil {
			return err
		}
	}
	return nil
}

func (m *DoorEnvModule) WriteOutputs(_ *tag.State) error {
	for i := range m.s.Doors {
		m.env.DoorMotors[i] = int(m.s.Doors[i].Motor.Get().Int32())
	}
	return nil
}
