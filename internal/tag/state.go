package tag

// State is the fixed-shape collection of tags owned by one controller.
// Tags are registered once at construction and never added or removed
// afterwards. Enumeration preserves declaration order; Modbus address
// assignment depends on that order being stable for the controller's
// lifetime.
type State struct {
	tags  []*Tag
	index map[string]*Tag
}

// NewState builds a state from the given tags. Duplicate names are a
// SchemaError and abort construction.
func NewState(tags ...*Tag) (*State, error) {
	s := &State{
		tags:  make([]*Tag, 0, len(tags)),
		index: make(map[string]*Tag, len(tags)),
	}
	for _, t := range tags {
		if _, exists := s.index[t.name]; exists {
			return nil, &SchemaError{Tag: t.name, Reason: "duplicate tag name"}
		}
		s.tags = append(s.tags, t)
		s.index[t.name] = t
	}
	return s, nil
}

// Tag looks a tag up by name. Unknown names are a SchemaError.
func (s *State) Tag(name string) (*Tag, error) {
	t, ok := s.index[name]
	if !ok {
		return nil, &SchemaError{Tag: name, Reason: "no such tag"}
	}
	return t, nil
}

// Tags returns all tags in declaration order. The returned slice must not
// be modified.
func (s *State) Tags() []*Tag { return s.tags }

// Len returns the number of tags.
func (s *State) Len() int { return len(s.tags) }
