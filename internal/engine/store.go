package engine

import (
	"slices"
	"sync"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/platform/logger"
)

// ObjectPatch lists the fields UpdateObject may change. Nil fields are left alone.
type ObjectPatch struct {
	State         *string
	Description   *string
	InternalState map[string]any
}

// Store owns locations, objects and agent positions.
//
// Every read returns a copy, so callers never hold a pointer into guarded
// state. Expected failures (duplicate id, missing object, no edge) are
// reported as false, never as panics.
type Store struct {
	mu sync.RWMutex

	graph          *Graph
	locations      map[string]*world.Location
	locationOrder  []string
	objects        map[string]*world.Object
	objectOrder    []string
	agentLocations map[string]string
	agentOrder     []string

	logger *logger.Logger
}

// NewStore creates an empty store.
func NewStore(log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{
		graph:          NewGraph(),
		locations:      make(map[string]*world.Location),
		objects:        make(map[string]*world.Object),
		agentLocations: make(map[string]string),
		logger:         log,
	}
}

// AddLocation registers a location. Edges listed in ConnectedTo are ignored
// here; call Connect once every endpoint exists.
func (s *Store) AddLocation(loc world.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.locations[loc.ID]; exists {
		return oops.Errorf("location %q already exists", loc.ID)
	}
	l := world.NewLocation(loc.ID, loc.Name, loc.Description)
	s.locations[loc.ID] = l
	s.locationOrder = append(s.locationOrder, loc.ID)
	s.graph.AddNode(loc.ID)
	return nil
}

// Connect adds a symmetric edge between two known locations.
func (s *Store) Connect(a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	la, okA := s.locations[a]
	lb, okB := s.locations[b]
	if !okA || !okB {
		return oops.Errorf("connect %q <-> %q: unknown location", a, b)
	}
	if a == b {
		return nil
	}
	s.graph.Connect(a, b)
	if !slices.Contains(la.ConnectedTo, b) {
		la.ConnectedTo = append(la.ConnectedTo, b)
	}
	if !slices.Contains(lb.ConnectedTo, a) {
		lb.ConnectedTo = append(lb.ConnectedTo, a)
	}
	return nil
}

// Location returns a copy of a location.
func (s *Store) Location(id string) (*world.Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.locations[id]
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

// Locations returns copies of every location in registration order.
func (s *Store) Locations() []*world.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*world.Location, 0, len(s.locationOrder))
	for _, id := range s.locationOrder {
		out = append(out, s.locations[id].Clone())
	}
	return out
}

// Object returns a copy of an object, hidden fields included.
func (s *Store) Object(id string) (*world.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// Objects returns copies of every object in creation order.
func (s *Store) Objects() []*world.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*world.Object, 0, len(s.objectOrder))
	for _, id := range s.objectOrder {
		out = append(out, s.objects[id].Clone())
	}
	return out
}

// HasObject reports whether an object id exists.
func (s *Store) HasObject(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[id]
	return ok
}

// HasLocation reports whether a location id exists.
func (s *Store) HasLocation(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.locations[id]
	return ok
}

// HasAgent reports whether an agent has been placed.
func (s *Store) HasAgent(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.agentLocations[name]
	return ok
}

// Connected reports whether a and b share an edge.
func (s *Store) Connected(a, b string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Connected(a, b)
}

// CreateObject adds obj. Returns false if the id is already taken.
// When obj.LocationID names a location the object joins its list;
// otherwise it is held by an agent or a container.
func (s *Store) CreateObject(obj world.Object) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[obj.ID]; exists {
		s.logger.Warn("create rejected: object already exists", zap.String("object", obj.ID))
		return false
	}
	if obj.State == "" {
		obj.State = world.DefaultState
	}
	if obj.InternalState == nil {
		obj.InternalState = make(map[string]any)
	}
	o := obj.Clone()
	s.objects[o.ID] = o
	s.objectOrder = append(s.objectOrder, o.ID)

	if loc, ok := s.locations[o.LocationID]; ok {
		loc.AddObject(o.ID)
	} else if o.LocationID != "" && !s.isHolder(o.LocationID) {
		s.logger.Warn("object created at unknown holder",
			zap.String("object", o.ID), zap.String("holder", o.LocationID))
	}

	s.logger.Debug("object created",
		zap.String("object", o.ID), zap.String("name", o.Name), zap.String("at", o.LocationID))
	return true
}

// DestroyObject removes an object. Returns false if it does not exist.
func (s *Store) DestroyObject(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[id]
	if !ok {
		s.logger.Warn("destroy rejected: object not found", zap.String("object", id))
		return false
	}
	if loc, ok := s.locations[o.LocationID]; ok {
		loc.RemoveObject(id)
	}
	delete(s.objects, id)
	s.objectOrder = slices.DeleteFunc(s.objectOrder, func(x string) bool { return x == id })

	s.logger.Debug("object destroyed", zap.String("object", id), zap.String("name", o.Name))
	return true
}

// TransferObject re-points an object's owner to toID.
//
// The destination kind is decided by which index holds toID. An id that is
// neither a location, an agent nor an object is still accepted, and logged.
// fromID is informational: the object leaves wherever it actually is.
func (s *Store) TransferObject(objectID, fromID, toID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[objectID]
	if !ok {
		s.logger.Warn("transfer rejected: object not found", zap.String("object", objectID))
		return false
	}
	if fromID != "" && fromID != o.LocationID {
		s.logger.Warn("transfer source does not match current holder",
			zap.String("object", objectID),
			zap.String("from", fromID),
			zap.String("actual", o.LocationID))
	}

	if loc, ok := s.locations[o.LocationID]; ok {
		loc.RemoveObject(objectID)
	}
	o.LocationID = toID
	if loc, ok := s.locations[toID]; ok {
		loc.AddObject(objectID)
	} else if !s.isHolder(toID) {
		s.logger.Warn("object transferred to unrecognized destination",
			zap.String("object", objectID), zap.String("to", toID))
	}

	s.logger.Debug("object transferred", zap.String("object", objectID), zap.String("to", toID))
	return true
}

// UpdateObject applies patch. InternalState is merged key by key.
// Returns false if the object does not exist.
func (s *Store) UpdateObject(id string, patch ObjectPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[id]
	if !ok {
		s.logger.Warn("update rejected: object not found", zap.String("object", id))
		return false
	}
	if patch.State != nil {
		o.State = *patch.State
	}
	if patch.Description != nil {
		o.Description = *patch.Description
	}
	o.MergeInternalState(patch.InternalState)
	return true
}

// PlaceAgent puts an agent at a location, ignoring adjacency.
// Used at start-up. Returns false for an unknown location.
func (s *Store) PlaceAgent(name, locationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locations[locationID]
	if !ok {
		return false
	}
	if prev, placed := s.agentLocations[name]; placed {
		if prevLoc, ok := s.locations[prev]; ok {
			prevLoc.RemoveAgent(name)
		}
	} else {
		s.agentOrder = append(s.agentOrder, name)
	}
	s.agentLocations[name] = locationID
	loc.AddAgent(name)
	return true
}

// MoveAgent moves an agent along one edge.
// Fails, changing nothing, if the agent is unplaced or no edge joins the locations.
func (s *Store) MoveAgent(name, to string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.agentLocations[name]
	if !ok {
		return false
	}
	if !s.graph.Connected(from, to) {
		return false
	}
	dest, ok := s.locations[to]
	if !ok {
		return false
	}
	if src, ok := s.locations[from]; ok {
		src.RemoveAgent(name)
	}
	dest.AddAgent(name)
	s.agentLocations[name] = to
	return true
}

// AgentLocation returns where an agent is.
func (s *Store) AgentLocation(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.agentLocations[name]
	return loc, ok
}

// Agents returns placed agents in placement order.
func (s *Store) Agents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.agentOrder)
}

// AgentInventory returns the objects held directly by an agent, in creation order.
func (s *Store) AgentInventory(name string) []world.VisibleObject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var inv []world.VisibleObject
	for _, id := range s.objectOrder {
		if o := s.objects[id]; o.LocationID == name {
			inv = append(inv, o.Visible())
		}
	}
	return inv
}

// Witnesses returns the agents present at a location.
func (s *Store) Witnesses(locationID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.locations[locationID]
	if !ok {
		return nil
	}
	return slices.Clone(loc.AgentsPresent)
}

// isHolder reports whether id is an agent or object. Caller holds s.mu.
func (s *Store) isHolder(id string) bool {
	if _, ok := s.agentLocations[id]; ok {
		return true
	}
	_, ok := s.objects[id]
	return ok
}
