// Package ai - prompts.go
// Prompt templates for the Game Master (world engine) and the simulated agents.
package ai

import (
	"fmt"
	"strings"
)

// WorldEngineSystemPrompt instructs the Game Master that resolves interactions.
const WorldEngineSystemPrompt = `You are the World Engine (Game Master) of Agentia.
You resolve what happens when a person interacts with an object, using physics and common sense.

You work in two phases:
1. Investigate: call query_entity to inspect objects and people before deciding.
2. Decide: stage world changes with update_object, create_object, destroy_object and transfer_object,
   then call interaction_result exactly once to finish.

Guidelines:
- Check the actor's inventory for required items (keys, tools) before allowing an action.
- Be realistic: untrained people cannot fix complex machinery.
- Object states should be descriptive: 'working', 'broken', 'empty', 'hot'.
- Use update_object when an object's condition changes (e.g. 'broken' -> 'fixed').
- Use create_object when an action produces a new tangible item. Set location_id to the actor's name to put it in their inventory.
- Use destroy_object when an item is consumed or irreversibly destroyed.
- Use transfer_object to move an existing object. You cannot transfer an object that does not exist.
- Consider time: set duration (minutes) on interaction_result for long actions. Staged changes then happen when the task completes.
- The message of interaction_result is what the actor experiences. Write it in second person.
`

// ReminderPrompt is sent when the Game Master answers with prose and no tool call.
const ReminderPrompt = "Please call 'interaction_result' to finalize the outcome."

// InteractionPrompt is the data the Game Master sees before its first turn.
type InteractionPrompt struct {
	AgentName           string
	Inventory           []string
	ObjectID            string
	ObjectName          string
	ObjectState         string
	ObjectDescription   string
	ObjectMechanics     string
	ObjectInternalState map[string]any
	LocationID          string
	LocationName        string
	LocationDescription string
	Witnesses           []string
	ActionDescription   string
}

// BuildInteractionPrompt renders the resolver's context message.
func BuildInteractionPrompt(p InteractionPrompt) string {
	var sb strings.Builder

	inventory := "[]"
	if len(p.Inventory) > 0 {
		inventory = "[" + strings.Join(p.Inventory, ", ") + "]"
	}
	mechanics := p.ObjectMechanics
	if mechanics == "" {
		mechanics = "None"
	}
	internal := "{}"
	if len(p.ObjectInternalState) > 0 {
		internal = fmt.Sprintf("%v", p.ObjectInternalState)
	}
	locName, locID := p.LocationName, p.LocationID
	if locName == "" {
		locName = "Unknown"
	}
	if locID == "" {
		locID = "unknown"
	}
	witnesses := "None"
	var others []string
	for _, w := range p.Witnesses {
		if w != p.AgentName {
			others = append(others, w)
		}
	}
	if len(others) > 0 {
		witnesses = strings.Join(others, ", ")
	}
	action := p.ActionDescription
	if action == "" {
		action = "interact with the object"
	}

	sb.WriteString("[Context - Actor]\n")
	fmt.Fprintf(&sb, "Name: %s\n", p.AgentName)
	fmt.Fprintf(&sb, "Inventory: %s\n\n", inventory)

	sb.WriteString("[Context - Target Object]\n")
	fmt.Fprintf(&sb, "Object: %s (ID: %s)\n", p.ObjectName, p.ObjectID)
	fmt.Fprintf(&sb, "Current State: %q\n", p.ObjectState)
	fmt.Fprintf(&sb, "Description: %s\n", p.ObjectDescription)
	fmt.Fprintf(&sb, "Mechanics: %s\n", mechanics)
	fmt.Fprintf(&sb, "Internal State: %s\n\n", internal)

	sb.WriteString("[Context - Environment]\n")
	fmt.Fprintf(&sb, "Location: %s (ID: %s)\n", locName, locID)
	fmt.Fprintf(&sb, "Description: %s\n", p.LocationDescription)
	fmt.Fprintf(&sb, "Witnesses: %s\n\n", witnesses)

	sb.WriteString("[Action Intent]\n")
	fmt.Fprintf(&sb, "%q\n\n", action)
	sb.WriteString("Investigate as needed, stage any world changes, then call interaction_result.")

	return sb.String()
}

// AgentDecisionFormat documents the JSON an agent must answer with.
const AgentDecisionFormat = `{
  "reasoning": "your step-by-step thought process",
  "action_type": "move" | "talk" | "interact" | "wait",
  "action": one of
    {"location_id": "<connected location id>"}                 (move)
    {"message": "<what you say>", "target_agent": "<optional>"} (talk)
    {"object_id": "<object id>", "action": "<what you do>"}     (interact)
    {"reason": "<why you wait>"}                                (wait)
}`

// AgentPersona is the part of an agent the system prompt describes.
type AgentPersona struct {
	Name        string
	Age         int
	Occupation  string
	Personality string
	Background  string
	Goal        string
}

// BuildAgentSystemPrompt renders the persona prompt for one agent.
func BuildAgentSystemPrompt(p AgentPersona, tickMinutes int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a %d-year-old %s.\n", p.Name, p.Age, p.Occupation)
	fmt.Fprintf(&sb, "Personality: %s\n", p.Personality)
	fmt.Fprintf(&sb, "Background: %s\n", p.Background)
	fmt.Fprintf(&sb, "Goal: %s\n\n", p.Goal)
	sb.WriteString("You MUST output your response in strict JSON format.\n\n")
	sb.WriteString("Output Format:\n")
	sb.WriteString(AgentDecisionFormat)
	sb.WriteString("\n\nCore Directives:\n")
	sb.WriteString("1. Stay in Character: React to the world based on your personality and goal.\n")
	fmt.Fprintf(&sb, "2. Temporal Awareness: Each action represents %d minutes.\n", tickMinutes)
	sb.WriteString("3. Social Rules: You cannot talk to people who are not in the same location.\n")
	sb.WriteString("4. One Action: Output exactly ONE action per turn.\n")
	sb.WriteString("5. Planning: You may call update_plan to rewrite your plan before deciding.\n")
	return sb.String()
}
