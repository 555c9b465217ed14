// Package system assembles the simulator from configuration: the
// physical environment, the controllers with their programs, and the
// protocol bridges and diagnostic servers attached to each controller.
package system

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/plcforge/plcsim/internal/api/rest"
	"github.com/plcforge/plcsim/internal/api/websocket"
	"github.com/plcforge/plcsim/internal/bridge/modbus"
	"github.com/plcforge/plcsim/internal/bridge/mqtt"
	"github.com/plcforge/plcsim/internal/bridge/opcua"
	"github.com/plcforge/plcsim/internal/config"
	"github.com/plcforge/plcsim/internal/controllers"
	"github.com/plcforge/plcsim/internal/phys"
	"github.com/plcforge/plcsim/internal/plc"
	"github.com/plcforge/plcsim/internal/profile"
	"github.com/plcforge/plcsim/internal/sim"
	"github.com/plcforge/plcsim/internal/tag"
)

// Runtime owns the assembled simulation.
type Runtime struct {
	cfg        *config.Config
	logger     *zap.Logger
	simulation *sim.Simulation
	env        *phys.Environment
}

// controllerParts is what every concrete controller contributes to the
// shared assembly path: its state, its program and its environment
// coupling.
type controllerParts struct {
	state   *tag.State
	program plc.Program
	envMod  plc.IOModule
}

func New(cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	r := &Runtime{
		cfg:    cfg,
		logger: logger,
		simulation: sim.New(sim.Config{
			SimDT: cfg.Simulation.DT,
			Speed: cfg.Simulation.Speed,
		}, logger.Named("sim")),
		env: phys.NewEnvironment(logger),
	}

	loader, err := profile.NewLoader(cfg.Profiles.SearchPaths)
	if err != nil {
		return nil, fmt.Errorf("profile loader: %w", err)
	}

	// The environment steps before the controllers so every scan cycle
	// sees process state advanced by one tick.
	r.simulation.Add(r.env)

	type build struct {
		name  string
		cfg   config.ControllerConfig
		parts func() (controllerParts, error)
	}

	builds := []build{
		{"heater", cfg.Controllers.Heater, r.heaterParts},
		{"door", cfg.Controllers.Door, r.doorParts},
		{"oxygen", cfg.Controllers.Oxygen, r.oxygenParts},
	}

	for _, b := range builds {
		ctrl, err := r.assembleController(b.name, b.cfg, loader, b.parts)
		if err != nil {
			return nil, fmt.Errorf("controller %s: %w", b.name, err)
		}
		r.simulation.Add(ctrl)
	}

	return r, nil
}

func (r *Runtime) heaterParts() (controllerParts, error) {
	s, err := controllers.NewHeaterState()
	if err != nil {
		return controllerParts{}, err
	}
	return controllerParts{
		state:   s.State,
		program: controllers.NewHeaterProgram(s),
		envMod:  controllers.NewHeaterEnvModule(r.env, s),
	}, nil
}

func (r *Runtime) doorParts() (controllerParts, error) {
	s, err := controllers.NewDoorState()
	if err != nil {
		return controllerParts{}, err
	}
	return controllerParts{
		state:   s.State,
		program: controllers.NewDoorProgram(s),
		envMod:  controllers.NewDoorEnvModule(r.env, s),
	}, nil
}

func (r *Runtime) oxygenParts() (controllerParts, error) {
	s, err := controllers.NewOxygenState()
	if err != nil {
		return controllerParts{}, err
	}
	return controllerParts{
		state:   s.State,
		program: controllers.NewOxygenProgram(s),
		envMod:  controllers.NewOxygenEnvModule(r.env, s),
	}, nil
}

// assembleController wires one controller: protocol bridges first in the
// module list so external writes drain before the environment sensors are
// sampled, the environment module last.
func (r *Runtime) assembleController(name string, ctrlCfg config.ControllerConfig, loader *profile.Loader, parts func() (controllerParts, error)) (*plc.Controller, error) {
	p, err := parts()
	if err != nil {
		return nil, err
	}

	logger := r.logger.Named(name)
	var modules []plc.IOModule
	var servers []*rest.Server

	if ctrlCfg.ModbusAddr != "" {
		modules = append(modules, modbus.New(ctrlCfg.ModbusAddr, logger))
	}

	if ctrlCfg.Profile != "" {
		def, err := loader.Load(ctrlCfg.Profile)
		if err != nil {
			return nil, fmt.Errorf("exposure profile %q: %w", ctrlCfg.Profile, err)
		}

		if def.MQTT != nil && len(def.MQTT.Mappings) > 0 && r.cfg.MQTT.BrokerURL != "" {
			modules = append(modules, mqtt.New(mqtt.Options{
				BrokerURL:       r.cfg.MQTT.BrokerURL,
				ClientID:        "plcsim-" + name,
				TopicPrefix:     def.MQTT.TopicPrefix,
				PublishInterval: r.cfg.MQTT.PublishInterval,
				OnlySendChanged: r.cfg.MQTT.OnlySendChanged,
			}, def.MQTTMappings(), logger))
		}

		if def.OPCUA != nil && len(def.OPCUA.Nodes) > 0 {
			bridge := opcua.New(name, def.TreeBuilder(), logger)

			if ctrlCfg.HTTPAddr != "" {
				hub := websocket.NewHub(logger.Named("ws"))
				go hub.Run()

				srv := rest.NewServer(ctrlCfg.HTTPAddr, bridge.Space(), hub, logger.Named("api"))
				bridge.AttachEndpoint(srv)
				bridge.OnUpdate(func(nodeID string, vt opcua.VariantType, value tag.Value) {
					hub.Broadcast(websocket.NewNodeValueMessage(nodeID, string(vt), value.Native()))
				})
				servers = append(servers, srv)
			}

			modules = append(modules, bridge)
		}
	}

	modules = append(modules, p.envMod)

	ctrl := plc.NewController(name, p.state, p.program, modules, r.logger)
	for _, srv := range servers {
		srv.SetStatusProvider(ctrl)
	}
	return ctrl, nil
}

// Run blocks until the context is cancelled.
func (r *Runtime) Run(ctx context.Context) {
	r.simulation.Run(ctx)
}
