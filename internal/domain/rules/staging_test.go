package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MRamiBalles/agentia/internal/domain/effect"
)

type fakeView struct {
	objects, locations, agents map[string]bool
}

func (f fakeView) HasObject(id string) bool   { return f.objects[id] }
func (f fakeView) HasLocation(id string) bool { return f.locations[id] }
func (f fakeView) HasAgent(name string) bool  { return f.agents[name] }

func TestCheckEffect(t *testing.T) {
	view := fakeView{
		objects:   map[string]bool{"lamp": true, "box": true},
		locations: map[string]bool{"room_a": true},
		agents:    map[string]bool{"Ann": true},
	}
	on := "on"

	tests := []struct {
		name    string
		eff     effect.Effect
		wantMsg string
	}{
		{"update existing", effect.UpdateObject{ObjectID: "lamp", State: &on}, ""},
		{"update missing", effect.UpdateObject{ObjectID: "ghost"}, "Cannot update: object 'ghost' does not exist"},
		{"create duplicate", effect.CreateObject{ObjectID: "lamp", Name: "Lamp"}, "Cannot create: object 'lamp' already exists"},
		{"create in unknown place", effect.CreateObject{ObjectID: "cup", Name: "Cup", LocationID: "attic"}, "Cannot create: location 'attic' does not exist"},
		{"create in inventory", effect.CreateObject{ObjectID: "cup", Name: "Cup", LocationID: "Ann"}, ""},
		{"create inside container", effect.CreateObject{ObjectID: "cup", Name: "Cup", LocationID: "box"}, ""},
		{"create nowhere", effect.CreateObject{ObjectID: "cup", Name: "Cup"}, ""},
		{"destroy missing", effect.DestroyObject{ObjectID: "ghost"}, "Cannot destroy: object 'ghost' does not exist"},
		{"destroy existing", effect.DestroyObject{ObjectID: "box"}, ""},
		{"transfer missing object", effect.TransferObject{ObjectID: "ghost", FromID: "room_a", ToID: "Ann"}, "Cannot transfer: object 'ghost' does not exist"},
		{"transfer to unknown", effect.TransferObject{ObjectID: "lamp", FromID: "room_a", ToID: "moon"}, "Cannot transfer: destination 'moon' does not exist"},
		{"transfer to agent", effect.TransferObject{ObjectID: "lamp", FromID: "room_a", ToID: "Ann"}, ""},
		{"transfer into self", effect.TransferObject{ObjectID: "box", FromID: "room_a", ToID: "box"}, "Cannot transfer: object 'box' cannot contain itself"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CheckEffect(view, tt.eff)
			if tt.wantMsg == "" {
				assert.Nil(t, v)
				return
			}
			if assert.NotNil(t, v) {
				assert.Equal(t, tt.wantMsg, v.Error())
			}
		})
	}
}
