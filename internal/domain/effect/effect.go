// Package effect defines staged world mutations.
//
// An Effect is a serializable instruction, never a reference to a live
// object, so it can sit in an agent lock for any number of ticks and still
// be replayed against whatever the world looks like at expiry.
// This package is PURE and must NOT import any infrastructure packages.
package effect

import (
	"encoding/json"
	"fmt"
)

// Kind tags an effect variant.
type Kind string

const (
	KindCreateObject   Kind = "CreateObject"
	KindDestroyObject  Kind = "DestroyObject"
	KindTransferObject Kind = "TransferObject"
	KindUpdateObject   Kind = "UpdateObject"
)

// Effect is one of CreateObject, DestroyObject, TransferObject, UpdateObject.
type Effect interface {
	Kind() Kind
	// Target is the object id the effect operates on.
	Target() string
	isEffect()
}

// CreateObject adds a new object. LocationID may name a location, an agent or a container.
type CreateObject struct {
	ObjectID      string         `json:"object_id"`
	Name          string         `json:"name"`
	LocationID    string         `json:"location_id"`
	State         string         `json:"state,omitempty"`
	Description   string         `json:"description,omitempty"`
	Mechanics     string         `json:"mechanics,omitempty"`
	InternalState map[string]any `json:"internal_state,omitempty"`
}

// DestroyObject removes an object permanently.
type DestroyObject struct {
	ObjectID string `json:"object_id"`
}

// TransferObject re-points an object's owner.
type TransferObject struct {
	ObjectID string `json:"object_id"`
	FromID   string `json:"from_id"`
	ToID     string `json:"to_id"`
}

// UpdateObject changes only the provided fields. InternalState is a patch, merged key by key.
type UpdateObject struct {
	ObjectID      string         `json:"object_id"`
	State         *string        `json:"state,omitempty"`
	Description   *string        `json:"description,omitempty"`
	InternalState map[string]any `json:"internal_state,omitempty"`
}

func (CreateObject) Kind() Kind   { return KindCreateObject }
func (DestroyObject) Kind() Kind  { return KindDestroyObject }
func (TransferObject) Kind() Kind { return KindTransferObject }
func (UpdateObject) Kind() Kind   { return KindUpdateObject }

func (e CreateObject) Target() string   { return e.ObjectID }
func (e DestroyObject) Target() string  { return e.ObjectID }
func (e TransferObject) Target() string { return e.ObjectID }
func (e UpdateObject) Target() string   { return e.ObjectID }

func (CreateObject) isEffect()   {}
func (DestroyObject) isEffect()  {}
func (TransferObject) isEffect() {}
func (UpdateObject) isEffect()   {}

// Envelope is the wire form: {"type": "...", "args": {...}}.
type Envelope struct {
	Type Kind            `json:"type"`
	Args json.RawMessage `json:"args"`
}

// Encode wraps an effect in its envelope.
func Encode(e Effect) (Envelope, error) {
	args, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: e.Kind(), Args: args}, nil
}

// Decode rebuilds an effect from its envelope.
func Decode(env Envelope) (Effect, error) {
	switch env.Type {
	case KindCreateObject:
		var e CreateObject
		err := json.Unmarshal(env.Args, &e)
		return e, err
	case KindDestroyObject:
		var e DestroyObject
		err := json.Unmarshal(env.Args, &e)
		return e, err
	case KindTransferObject:
		var e TransferObject
		err := json.Unmarshal(env.Args, &e)
		return e, err
	case KindUpdateObject:
		var e UpdateObject
		err := json.Unmarshal(env.Args, &e)
		return e, err
	default:
		return nil, fmt.Errorf("unknown effect type %q", env.Type)
	}
}

// EncodeAll encodes a batch, preserving order.
func EncodeAll(effects []Effect) ([]Envelope, error) {
	out := make([]Envelope, 0, len(effects))
	for _, e := range effects {
		env, err := Encode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// Describe is a one-line human summary used in logs and journals.
func Describe(e Effect) string {
	switch v := e.(type) {
	case CreateObject:
		return fmt.Sprintf("create %s (%s) at %s", v.ObjectID, v.Name, v.LocationID)
	case DestroyObject:
		return fmt.Sprintf("destroy %s", v.ObjectID)
	case TransferObject:
		return fmt.Sprintf("transfer %s %s -> %s", v.ObjectID, v.FromID, v.ToID)
	case UpdateObject:
		s := "update " + v.ObjectID
		if v.State != nil {
			s += fmt.Sprintf(" state=%q", *v.State)
		}
		if v.Description != nil {
			s += " description"
		}
		if len(v.InternalState) > 0 {
			s += fmt.Sprintf(" internal_state(%d keys)", len(v.InternalState))
		}
		return s
	default:
		return fmt.Sprintf("unknown effect %T", e)
	}
}
