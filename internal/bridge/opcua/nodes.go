// Package opcua exposes a controller's tags as an OPC-UA-style address
// space: a namespaced tree of object nodes with tag-bound variable nodes.
// The tree itself carries no wire protocol; external clients reach it
// through the diagnostic HTTP/websocket surface.
package opcua

import (
	"fmt"
	"strings"
	"sync"

	"github.com/plcforge/plcsim/internal/tag"
)

// VariantType is the node-level type of a variable, derived from the
// bound tag's datatype.
type VariantType string

const (
	VariantNull    VariantType = "Null"
	VariantBoolean VariantType = "Boolean"
	VariantInt32   VariantType = "Int32"
	VariantDouble  VariantType = "Double"
	VariantString  VariantType = "String"
)

// VariantTypeOf maps a tag datatype onto its variant type.
func VariantTypeOf(dt tag.DataType) VariantType {
	switch dt {
	case tag.TypeBool:
		return VariantBoolean
	case tag.TypeInt32:
		return VariantInt32
	case tag.TypeFloat64:
		return VariantDouble
	case tag.TypeString:
		return VariantString
	case tag.TypeNull:
		return VariantNull
	}
	return VariantNull
}

// NodeClass distinguishes folder objects from value-carrying variables.
type NodeClass string

const (
	ClassObject   NodeClass = "Object"
	ClassVariable NodeClass = "Variable"
)

// Node is one entry in the address space. Object nodes group children;
// variable nodes carry a tag binding.
type Node struct {
	id         string
	browseName string
	class      NodeClass
	children   []*Node
	variable   *Variable
}

func (n *Node) ID() string          { return n.id }
func (n *Node) BrowseName() string  { return n.browseName }
func (n *Node) Class() NodeClass    { return n.class }
func (n *Node) Children() []*Node   { return n.children }
func (n *Node) Variable() *Variable { return n.variable }

// Variable is a tag-bound value node. The node value is the serialization
// point between external clients and the scan thread: clients write under
// the lock between cycles, ReadInputs pulls the value into the tag at the
// next input scan, WriteOutputs pushes the tag back out every cycle.
type Variable struct {
	node     *Node
	tag      *tag.Tag
	vt       VariantType
	writable bool

	mu    sync.RWMutex
	value tag.Value
}

func (v *Variable) NodeID() string           { return v.node.id }
func (v *Variable) VariantType() VariantType { return v.vt }
func (v *Variable) Writable() bool           { return v.writable }
func (v *Variable) DataType() tag.DataType   { return v.tag.Type() }

// Value returns the node's current value.
func (v *Variable) Value() tag.Value {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// SetExternal is the client-facing write path. Non-writable variables and
// mistyped values are rejected; the tag sees the value at the next input
// scan, never mid-cycle.
func (v *Variable) SetExternal(val tag.Value) error {
	if !v.writable {
		return fmt.Errorf("node %s is not writable", v.node.id)
	}
	if val.Type() != v.tag.Type() {
		return &tag.TypeMismatchError{Tag: v.tag.Name(), Want: v.tag.Type(), Got: val.Type()}
	}
	v.mu.Lock()
	v.value = val
	v.mu.Unlock()
	return nil
}

// pullIntoTag copies the node value into the bound tag. Called on the
// scan thread for writable variables only.
func (v *Variable) pullIntoTag() error {
	v.mu.RLock()
	val := v.value
	v.mu.RUnlock()
	return v.tag.Set(val)
}

// push copies the bound tag's value into the node and reports whether the
// node value changed.
func (v *Variable) push() (tag.Value, bool) {
	val := v.tag.Get()
	v.mu.Lock()
	changed := !val.Equal(v.value)
	v.value = val
	v.mu.Unlock()
	return val, changed
}

// Space is one controller's address space. The tree shape is fixed after
// the bridge builds it; only variable values change afterwards.
type Space struct {
	namespace uint16
	root      *Node
	byID      map[string]*Node
	variables []*Variable
}

// NewSpace creates an empty space with an Objects root in the given
// namespace.
func NewSpace(namespace uint16) *Space {
	s := &Space{
		namespace: namespace,
		byID:      make(map[string]*Node),
	}
	s.root = &Node{
		id:         s.nodeID("Objects"),
		browseName: "Objects",
		class:      ClassObject,
	}
	s.byID[s.root.id] = s.root
	return s
}

func (s *Space) nodeID(path string) string {
	return fmt.Sprintf("ns=%d;s=%s", s.namespace, path)
}

func (s *Space) Root() *Node { return s.root }

// AddObject creates a child object node. Paths build dot-separated from
// the parent's browse path.
func (s *Space) AddObject(parent *Node, name string) (*Node, error) {
	return s.addChild(parent, name, ClassObject)
}

func (s *Space) addChild(parent *Node, name string, class NodeClass) (*Node, error) {
	path := name
	if parent != s.root {
		path = browsePath(parent) + "." + name
	}
	id := s.nodeID(path)
	if _, exists := s.byID[id]; exists {
		return nil, fmt.Errorf("duplicate node id %s", id)
	}
	n := &Node{id: id, browseName: name, class: class}
	parent.children = append(parent.children, n)
	s.byID[id] = n
	return n, nil
}

func browsePath(n *Node) string {
	// id is "ns=N;s=<path>".
	if i := strings.Index(n.id, ";s="); i >= 0 {
		return n.id[i+3:]
	}
	return n.browseName
}

// AddVariable creates a variable node bound to a tag, typed per the tag's
// datatype. The variable is externally writable only when both the
// binding and the tag allow it. The initial node value is the tag's
// current value.
func (s *Space) AddVariable(parent *Node, name string, t *tag.Tag, writable bool) (*Variable, error) {
	n, err := s.addChild(parent, name, ClassVariable)
	if err != nil {
		return nil, err
	}
	v := &Variable{
		node:     n,
		tag:      t,
		vt:       VariantTypeOf(t.Type()),
		writable: writable && t.Writable(),
		value:    t.Get(),
	}
	n.variable = v
	s.variables = append(s.variables, v)
	return v, nil
}

// Node looks a node up by its id string.
func (s *Space) Node(id string) (*Node, bool) {
	n, ok := s.byID[id]
	return n, ok
}

// Variables returns every variable in registration order.
func (s *Space) Variables() []*Variable { return s.variables }
