package graph

import "fmt"

// Schema is the ordered set of channels a graph's state is built from. It
// is immutable once a Builder compiles it into a Graph.
type Schema struct {
	channels []Channel
	byName   map[string]int
}

// NewSchema builds a Schema from channels, rejecting duplicate names.
func NewSchema(channels ...Channel) (*Schema, error) {
	s := &Schema{byName: make(map[string]int, len(channels))}
	for _, c := range channels {
		if _, dup := s.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate channel name %q", c.Name)
		}
		s.byName[c.Name] = len(s.channels)
		s.channels = append(s.channels, c)
	}
	return s, nil
}

// Channel looks up a channel by name.
func (s *Schema) Channel(name string) (Channel, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return Channel{}, false
	}
	return s.channels[idx], true
}

// Names returns every channel name in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.channels))
	for i, c := range s.channels {
		names[i] = c.Name
	}
	return names
}

// ZeroState builds a fresh State with every channel at its zero value and
// all versions at 0.
func (s *Schema) ZeroState() State {
	values := make(map[string]any, len(s.channels))
	versions := make(map[string]uint64, len(s.channels))
	for _, c := range s.channels {
		if c.Zero != nil {
			values[c.Name] = c.Zero()
		}
		versions[c.Name] = 0
	}
	return State{Values: values, Versions: versions}
}
