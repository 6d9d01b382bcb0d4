package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/domain/world"
)

// Scenario is the initial world: locations with their edges, and objects.
type Scenario struct {
	Locations []world.Location `json:"locations"`
	Objects   []world.Object   `json:"objects"`
}

type agentsFile struct {
	Agents []agent.Persona `json:"agents"`
}

// LoadScenario reads a JSON or YAML scenario (chosen by extension) and validates it.
// Missing required fields and connections to unknown locations are errors.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := readDocument(path, "scenario")
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, oops.Wrapf(err, "decode scenario %s", path)
	}
	if err := sc.Validate(); err != nil {
		return nil, oops.Wrapf(err, "scenario %s", path)
	}
	return &sc, nil
}

// Validate checks ids are unique and every connection names a known location.
func (sc *Scenario) Validate() error {
	ids := make(map[string]bool, len(sc.Locations))
	for _, l := range sc.Locations {
		if l.ID == "" || l.Name == "" {
			return oops.Errorf("location %q: id and name are required", l.ID)
		}
		if ids[l.ID] {
			return oops.Errorf("duplicate location id %q", l.ID)
		}
		ids[l.ID] = true
	}
	for _, l := range sc.Locations {
		for _, to := range l.ConnectedTo {
			if !ids[to] {
				return oops.Errorf("location %q connects to unknown location %q", l.ID, to)
			}
		}
	}
	objects := make(map[string]bool, len(sc.Objects))
	for _, o := range sc.Objects {
		if o.ID == "" || o.Name == "" || o.LocationID == "" {
			return oops.Errorf("object %q: id, name and location_id are required", o.ID)
		}
		if objects[o.ID] {
			return oops.Errorf("duplicate object id %q", o.ID)
		}
		objects[o.ID] = true
	}
	return nil
}

// LoadPersonas reads the agents file. name and initial_location are required.
func LoadPersonas(path string) ([]agent.Persona, error) {
	raw, err := readDocument(path, "agents")
	if err != nil {
		return nil, err
	}
	var f agentsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, oops.Wrapf(err, "decode agents %s", path)
	}
	seen := make(map[string]bool, len(f.Agents))
	for _, p := range f.Agents {
		if p.Name == "" || p.InitialLocation == "" {
			return nil, oops.Errorf("agents %s: name and initial_location are required", path)
		}
		if seen[p.Name] {
			return nil, oops.Errorf("agents %s: duplicate agent %q", path, p.Name)
		}
		seen[p.Name] = true
	}
	return f.Agents, nil
}

// readDocument loads path as JSON, validates it against the named schema
// and returns it re-encoded as JSON. YAML input is normalized first.
func readDocument(path, schemaName string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Wrapf(err, "read %s", path)
	}

	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, oops.Wrapf(err, "parse yaml %s", path)
		}
		// Round-trip through JSON so numbers and maps have JSON types.
		if data, err = json.Marshal(doc); err != nil {
			return nil, oops.Wrapf(err, "normalize yaml %s", path)
		}
		doc = nil
		fallthrough
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, oops.Wrapf(err, "parse json %s", path)
		}
	}

	if err := validateDocument(schemaName, doc); err != nil {
		return nil, oops.Wrapf(err, "%s %s does not match schema", schemaName, path)
	}
	return data, nil
}
