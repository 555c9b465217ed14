// Package profile loads exposure profiles: per-controller documents
// declaring which tags are published where (MQTT topic mappings and the
// OPC-UA-style tree layout). Profiles are JSON or YAML, validated against
// an embedded schema.
package profile

import (
	"fmt"

	"github.com/plcforge/plcsim/internal/bridge/mqtt"
	"github.com/plcforge/plcsim/internal/bridge/opcua"
	"github.com/plcforge/plcsim/internal/tag"
)

// Definition is one controller's exposure profile.
type Definition struct {
	Name  string        `json:"name" yaml:"name"`
	MQTT  *MQTTSection  `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
	OPCUA *OPCUASection `json:"opcua,omitempty" yaml:"opcua,omitempty"`
}

// MQTTSection declares the topic mappings relative to the prefix.
type MQTTSection struct {
	TopicPrefix string        `json:"topic_prefix" yaml:"topic_prefix"`
	Mappings    []MQTTMapping `json:"mappings" yaml:"mappings"`
}

type MQTTMapping struct {
	Topic    string `json:"topic" yaml:"topic"`
	Tag      string `json:"tag" yaml:"tag"`
	Writable bool   `json:"writable,omitempty" yaml:"writable,omitempty"`
}

// OPCUASection declares the node tree under one root object.
type OPCUASection struct {
	Root  string    `json:"root" yaml:"root"`
	Nodes []NodeDef `json:"nodes" yaml:"nodes"`
}

// NodeDef is either an object (Tag empty, Children present) or a
// variable bound to a tag.
type NodeDef struct {
	Name     string    `json:"name" yaml:"name"`
	Tag      string    `json:"tag,omitempty" yaml:"tag,omitempty"`
	Writable bool      `json:"writable,omitempty" yaml:"writable,omitempty"`
	Children []NodeDef `json:"children,omitempty" yaml:"children,omitempty"`
}

// MQTTMappings converts the section into bridge mappings.
func (d *Definition) MQTTMappings() []mqtt.Mapping {
	if d.MQTT == nil {
		return nil
	}
	out := make([]mqtt.Mapping, 0, len(d.MQTT.Mappings))
	for _, m := range d.MQTT.Mappings {
		out = append(out, mqtt.Mapping{Topic: m.Topic, Tag: m.Tag, Writable: m.Writable})
	}
	return out
}

// TreeBuilder returns the builder populating a space from the profile's
// OPC-UA section.
func (d *Definition) TreeBuilder() opcua.TreeBuilder {
	return func(space *opcua.Space, state *tag.State) error {
		if d.OPCUA == nil {
			return nil
		}
		root, err := space.AddObject(space.Root(), d.OPCUA.Root)
		if err != nil {
			return err
		}
		return addNodes(space, root, state, d.OPCUA.Nodes)
	}
}

func addNodes(space *opcua.Space, parent *opcua.Node, state *tag.State, defs []NodeDef) error {
	for _, def := range defs {
		if def.Tag == "" {
			obj, err := space.AddObject(parent, def.Name)
			if err != nil {
				return err
			}
			if err := addNodes(space, obj, state, def.Children); err != nil {
				return err
			}
			continue
		}

		if len(def.Children) > 0 {
			return fmt.Errorf("node %q: a variable cannot have children", def.Name)
		}
		t, err := state.Tag(def.Tag)
		if err != nil {
			return fmt.Errorf("node %q: %w", def.Name, err)
		}
		if _, err := space.AddVariable(parent, def.Name, t, def.Writable); err != nil {
			return err
		}
	}
	return nil
}
