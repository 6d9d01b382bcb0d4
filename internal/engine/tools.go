package engine

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/MRamiBalles/agentia/internal/domain/effect"
	"github.com/MRamiBalles/agentia/internal/domain/rules"
	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/infra/ai"
)

// Tool names offered to the reasoning service while resolving an interaction.
const (
	ToolQueryEntity       = "query_entity"
	ToolUpdateObject      = "update_object"
	ToolCreateObject      = "create_object"
	ToolDestroyObject     = "destroy_object"
	ToolTransferObject    = "transfer_object"
	ToolInteractionResult = "interaction_result"
)

// Tool reply statuses.
const (
	StatusStaged   = "effect_staged"
	StatusReceived = "received"
)

// toolOrder is the order tools are advertised in.
var toolOrder = []string{
	ToolQueryEntity,
	ToolInteractionResult,
	ToolUpdateObject,
	ToolCreateObject,
	ToolDestroyObject,
	ToolTransferObject,
}

//go:embed schemas/*.json
var schemaFS embed.FS

type schemaSet struct {
	compiled map[string]*jsonschema.Schema
	raw      map[string]json.RawMessage
}

// loadSchemas compiles every embedded schema once per process.
var loadSchemas = sync.OnceValues(func() (*schemaSet, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	set := &schemaSet{
		compiled: make(map[string]*jsonschema.Schema),
		raw:      make(map[string]json.RawMessage),
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	for _, e := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		url := "mem://schemas/" + e.Name()
		if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		set.raw[name] = json.RawMessage(data)
	}
	for name := range set.raw {
		s, err := c.Compile("mem://schemas/" + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		set.compiled[name] = s
	}
	return set, nil
})

// ToolResult is the JSON body returned to the reasoning service for one tool call.
type ToolResult struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed reports an error reply.
func (r ToolResult) Failed() bool { return r.Error != "" }

// JSON encodes the reply.
func (r ToolResult) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, "Tool execution failed: "+err.Error())
	}
	return string(b)
}

func toolError(format string, args ...any) ToolResult {
	return ToolResult{Error: fmt.Sprintf(format, args...)}
}

// InteractionOutcome is the argument of interaction_result.
type InteractionOutcome struct {
	Message         string `json:"message"`
	Duration        int    `json:"duration,omitempty"`
	TaskDescription string `json:"task_description,omitempty"`
}

// UnmarshalJSON accepts any JSON number for duration and truncates it
// toward zero, so 10.0 and -5 both decode.
func (o *InteractionOutcome) UnmarshalJSON(data []byte) error {
	var raw struct {
		Message         string       `json:"message"`
		Duration        *json.Number `json:"duration"`
		TaskDescription string       `json:"task_description"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Message = raw.Message
	o.TaskDescription = raw.TaskDescription
	o.Duration = 0
	if raw.Duration != nil {
		f, err := raw.Duration.Float64()
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		o.Duration = int(math.Trunc(f))
	}
	return nil
}

// AgentEntity is the data query_entity returns for an agent.
type AgentEntity struct {
	Name       string                `json:"name"`
	LocationID string                `json:"location_id"`
	Inventory  []world.VisibleObject `json:"inventory"`
}

// Toolbox validates and dispatches tool calls against a Store.
// Accepted mutations are staged, never applied.
type Toolbox struct {
	store   *Store
	schemas *schemaSet
	defs    []ai.ToolDefinition
}

var toolDescriptions = map[string]string{
	ToolQueryEntity: "Query any entity in the world by its ID. This works for objects (full state: id, name, state, " +
		"description, mechanics, internal_state) and agents (current location and inventory). " +
		"Use this to investigate objects, check agent inventories, or inspect any entity before making decisions.",
	ToolInteractionResult: "Finalize the interaction. Call this to return the narrative outcome and duration. This ends your turn.",
	ToolUpdateObject:      "Update an object's state, description, or internal state.",
	ToolCreateObject:      "Create a new object in the world.",
	ToolDestroyObject:     "Permanently remove an object from the world.",
	ToolTransferObject:    "Move an object between containers, locations, or agents.",
}

// NewToolbox builds the tool vocabulary over store.
func NewToolbox(store *Store) (*Toolbox, error) {
	if store == nil {
		panic("engine: NewToolbox requires a store")
	}
	set, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	tb := &Toolbox{store: store, schemas: set}
	for _, name := range toolOrder {
		raw, ok := set.raw[name]
		if !ok {
			return nil, fmt.Errorf("missing schema for tool %s", name)
		}
		tb.defs = append(tb.defs, ai.ToolDefinition{
			Name:        name,
			Description: toolDescriptions[name],
			Parameters:  raw,
		})
	}
	return tb, nil
}

// Definitions returns the tool definitions sent with every resolver turn.
func (tb *Toolbox) Definitions() []ai.ToolDefinition {
	return tb.defs
}

// Dispatch runs one tool call. A staged effect is appended to *staged.
// A non-nil outcome means interaction_result was received.
func (tb *Toolbox) Dispatch(call ai.ToolCall, staged *[]effect.Effect) (ToolResult, *InteractionOutcome) {
	args := strings.TrimSpace(call.Arguments)
	if args == "" {
		args = "{}"
	}
	var generic any
	if err := json.Unmarshal([]byte(args), &generic); err != nil {
		return toolError("Tool execution failed: %v", err), nil
	}

	schema, known := tb.schemas.compiled[call.Name]
	if !known || call.Name == "scenario" || call.Name == "agents" {
		return toolError("Unknown tool: %s", call.Name), nil
	}
	if err := schema.Validate(generic); err != nil {
		return toolError("Tool execution failed: invalid arguments for %s: %v", call.Name, err), nil
	}

	switch call.Name {
	case ToolQueryEntity:
		var p struct {
			EntityID string `json:"entity_id"`
		}
		if err := json.Unmarshal([]byte(args), &p); err != nil {
			return toolError("Tool execution failed: %v", err), nil
		}
		return tb.queryEntity(p.EntityID), nil

	case ToolInteractionResult:
		var out InteractionOutcome
		if err := json.Unmarshal([]byte(args), &out); err != nil {
			return toolError("Tool execution failed: %v", err), nil
		}
		return ToolResult{Status: StatusReceived, Message: "Interaction finalized."}, &out
	}

	e, err := decodeToolEffect(call.Name, []byte(args))
	if err != nil {
		return toolError("Tool execution failed: %v", err), nil
	}
	if v := rules.CheckEffect(tb.store, e); v != nil {
		return ToolResult{Error: v.Msg}, nil
	}
	*staged = append(*staged, e)
	return ToolResult{Status: StatusStaged, Message: call.Name + " staged."}, nil
}

func decodeToolEffect(name string, args []byte) (effect.Effect, error) {
	switch name {
	case ToolUpdateObject:
		var e effect.UpdateObject
		err := json.Unmarshal(args, &e)
		return e, err
	case ToolCreateObject:
		var e effect.CreateObject
		err := json.Unmarshal(args, &e)
		return e, err
	case ToolDestroyObject:
		var e effect.DestroyObject
		err := json.Unmarshal(args, &e)
		return e, err
	case ToolTransferObject:
		var e effect.TransferObject
		err := json.Unmarshal(args, &e)
		return e, err
	default:
		return nil, fmt.Errorf("no effect for tool %s", name)
	}
}

// queryEntity looks the id up as an object first, then as an agent.
func (tb *Toolbox) queryEntity(id string) ToolResult {
	if obj, ok := tb.store.Object(id); ok {
		return ToolResult{Type: "object", Data: obj}
	}
	if loc, ok := tb.store.AgentLocation(id); ok {
		inv := tb.store.AgentInventory(id)
		if inv == nil {
			inv = []world.VisibleObject{}
		}
		return ToolResult{Type: "agent", Data: AgentEntity{Name: id, LocationID: loc, Inventory: inv}}
	}
	return toolError("Entity '%s' not found", id)
}

// validateDocument checks a decoded scenario or agents document against its schema.
func validateDocument(schemaName string, doc any) error {
	set, err := loadSchemas()
	if err != nil {
		return err
	}
	s, ok := set.compiled[schemaName]
	if !ok {
		return fmt.Errorf("unknown schema %s", schemaName)
	}
	return s.Validate(doc)
}
