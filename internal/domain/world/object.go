package world

import "maps"

// DefaultState is the visible state of an object nobody has touched.
const DefaultState = "normal"

// Object is a thing in the world.
//
// LocationID is overloaded: it names a location, the agent holding the
// object, or a container object. Mechanics and InternalState are hidden
// from agents and only read by the interaction resolver.
type Object struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	LocationID    string         `json:"location_id" yaml:"location_id"`
	Description   string         `json:"description" yaml:"description"`
	State         string         `json:"state" yaml:"state"`
	Mechanics     string         `json:"mechanics" yaml:"mechanics"`
	InternalState map[string]any `json:"internal_state" yaml:"internal_state"`
}

// VisibleObject is the agent-facing projection of an Object.
type VisibleObject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	State       string `json:"state"`
	Description string `json:"description"`
}

// Visible strips the hidden fields.
func (o *Object) Visible() VisibleObject {
	return VisibleObject{
		ID:          o.ID,
		Name:        o.Name,
		State:       o.State,
		Description: o.Description,
	}
}

// MergeInternalState applies patch key by key. Existing keys not in patch survive.
func (o *Object) MergeInternalState(patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	if o.InternalState == nil {
		o.InternalState = make(map[string]any, len(patch))
	}
	maps.Copy(o.InternalState, patch)
}

// Clone returns a copy whose internal state map is not shared.
// Nested values inside InternalState are shared.
func (o *Object) Clone() *Object {
	c := *o
	if o.InternalState != nil {
		c.InternalState = maps.Clone(o.InternalState)
	}
	return &c
}
