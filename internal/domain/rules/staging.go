// Package rules contains the pure checks applied to effects before they are staged.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"fmt"

	"github.com/MRamiBalles/agentia/internal/domain/effect"
)

// View is the read-only slice of world state the checks need.
type View interface {
	HasObject(id string) bool
	HasLocation(id string) bool
	HasAgent(name string) bool
}

// Violation is an expected rejection. Its message is returned to the reasoning service verbatim.
type Violation struct {
	Msg string
}

func (v *Violation) Error() string { return v.Msg }

func violation(format string, args ...any) *Violation {
	return &Violation{Msg: fmt.Sprintf(format, args...)}
}

// IsEntity reports whether id names a location, an agent or an object.
func IsEntity(v View, id string) bool {
	return v.HasLocation(id) || v.HasAgent(id) || v.HasObject(id)
}

// CheckEffect validates e against the current world. A nil return means e may be staged.
//
// Checks run against live state only: two staged effects in the same
// resolution are not checked against each other.
func CheckEffect(v View, e effect.Effect) *Violation {
	switch x := e.(type) {
	case effect.UpdateObject:
		if !v.HasObject(x.ObjectID) {
			return violation("Cannot update: object '%s' does not exist", x.ObjectID)
		}
	case effect.CreateObject:
		if v.HasObject(x.ObjectID) {
			return violation("Cannot create: object '%s' already exists", x.ObjectID)
		}
		if x.LocationID != "" && !IsEntity(v, x.LocationID) {
			return violation("Cannot create: location '%s' does not exist", x.LocationID)
		}
	case effect.DestroyObject:
		if !v.HasObject(x.ObjectID) {
			return violation("Cannot destroy: object '%s' does not exist", x.ObjectID)
		}
	case effect.TransferObject:
		if !v.HasObject(x.ObjectID) {
			return violation("Cannot transfer: object '%s' does not exist", x.ObjectID)
		}
		if !IsEntity(v, x.ToID) {
			return violation("Cannot transfer: destination '%s' does not exist", x.ToID)
		}
		if x.ToID == x.ObjectID {
			return violation("Cannot transfer: object '%s' cannot contain itself", x.ObjectID)
		}
	default:
		return violation("Unknown effect %T", e)
	}
	return nil
}
