// Package world defines the domain entities for locations and objects.
// This package is PURE and must NOT import any infrastructure packages.
package world

import "slices"

// Location represents a place agents can stand in and objects can rest in.
type Location struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Description   string   `json:"description" yaml:"description"`
	ConnectedTo   []string `json:"connected_to" yaml:"connected_to"`
	Objects       []string `json:"objects" yaml:"-"`        // object ids, ordered
	AgentsPresent []string `json:"agents_present" yaml:"-"` // agent names
}

// NewLocation creates a location with empty membership lists.
func NewLocation(id, name, description string) *Location {
	return &Location{
		ID:            id,
		Name:          name,
		Description:   description,
		ConnectedTo:   []string{},
		Objects:       []string{},
		AgentsPresent: []string{},
	}
}

// AddAgent records an agent as present. Returns false if already present.
func (l *Location) AddAgent(name string) bool {
	if slices.Contains(l.AgentsPresent, name) {
		return false
	}
	l.AgentsPresent = append(l.AgentsPresent, name)
	return true
}

// RemoveAgent drops an agent from the presence set.
func (l *Location) RemoveAgent(name string) {
	l.AgentsPresent = slices.DeleteFunc(l.AgentsPresent, func(n string) bool { return n == name })
}

// HasAgent reports whether the agent is here.
func (l *Location) HasAgent(name string) bool {
	return slices.Contains(l.AgentsPresent, name)
}

// AddObject appends an object id. Returns false if already listed.
func (l *Location) AddObject(id string) bool {
	if slices.Contains(l.Objects, id) {
		return false
	}
	l.Objects = append(l.Objects, id)
	return true
}

// RemoveObject drops an object id, keeping the order of the rest.
func (l *Location) RemoveObject(id string) {
	l.Objects = slices.DeleteFunc(l.Objects, func(o string) bool { return o == id })
}

// Clone returns a deep copy safe to hand out of a locked store.
func (l *Location) Clone() *Location {
	c := *l
	c.ConnectedTo = slices.Clone(l.ConnectedTo)
	c.Objects = slices.Clone(l.Objects)
	c.AgentsPresent = slices.Clone(l.AgentsPresent)
	return &c
}
