package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ActionKind names what an agent chose to do this tick.
type ActionKind string

const (
	ActionMove     ActionKind = "move"
	ActionTalk     ActionKind = "talk"
	ActionInteract ActionKind = "interact"
	ActionWait     ActionKind = "wait"
)

// Action is one of Move, Talk, Interact, Wait.
type Action interface {
	Kind() ActionKind
	isAction()
}

// Move goes to a location connected to the current one.
type Move struct {
	LocationID string `json:"location_id"`
}

// Talk says something to everyone at the current location.
type Talk struct {
	Message     string `json:"message"`
	TargetAgent string `json:"target_agent,omitempty"`
}

// Interact does something free-form with an object.
type Interact struct {
	ObjectID string `json:"object_id"`
	Action   string `json:"action"`
}

// Wait passes the tick.
type Wait struct {
	Reason string `json:"reason"`
}

func (Move) Kind() ActionKind     { return ActionMove }
func (Talk) Kind() ActionKind     { return ActionTalk }
func (Interact) Kind() ActionKind { return ActionInteract }
func (Wait) Kind() ActionKind     { return ActionWait }

func (Move) isAction()     {}
func (Talk) isAction()     {}
func (Interact) isAction() {}
func (Wait) isAction()     {}

// Decision is an agent's output for one tick.
type Decision struct {
	Reasoning string
	Action    Action
}

// Kind returns the action kind, or wait for an empty decision.
func (d Decision) Kind() ActionKind {
	if d.Action == nil {
		return ActionWait
	}
	return d.Action.Kind()
}

// FallbackReason marks the Wait produced by Fallback.
const FallbackReason = "fallback"

// Fallback is the decision used when the reasoning service fails.
func Fallback(reasoning string) Decision {
	return Decision{
		Reasoning: reasoning,
		Action:    Wait{Reason: FallbackReason},
	}
}

// IsFallback reports whether d was produced by Fallback.
func (d Decision) IsFallback() bool {
	w, ok := d.Action.(Wait)
	return ok && w.Reason == FallbackReason
}

type decisionWire struct {
	Reasoning  string          `json:"reasoning"`
	ActionType ActionKind      `json:"action_type"`
	Action     json.RawMessage `json:"action"`
}

// MarshalJSON writes {"reasoning", "action_type", "action"}.
func (d Decision) MarshalJSON() ([]byte, error) {
	action := d.Action
	if action == nil {
		action = Wait{}
	}
	raw, err := json.Marshal(action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(decisionWire{
		Reasoning:  d.Reasoning,
		ActionType: action.Kind(),
		Action:     raw,
	})
}

// UnmarshalJSON reads the wire form and validates the action parameters.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var w decisionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	action, err := decodeAction(w.ActionType, w.Action)
	if err != nil {
		return err
	}
	d.Reasoning = w.Reasoning
	d.Action = action
	return nil
}

func decodeAction(kind ActionKind, raw json.RawMessage) (Action, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	switch kind {
	case ActionMove:
		var a Move
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		if a.LocationID == "" {
			return nil, errors.New("move requires location_id")
		}
		return a, nil
	case ActionTalk:
		var a Talk
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		if a.Message == "" {
			return nil, errors.New("talk requires message")
		}
		return a, nil
	case ActionInteract:
		var a Interact
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		if a.ObjectID == "" {
			return nil, errors.New("interact requires object_id")
		}
		return a, nil
	case ActionWait:
		a := Wait{Reason: "observing"}
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown action_type %q", kind)
	}
}

// ParseDecision parses model output, tolerating a surrounding markdown fence.
func ParseDecision(content string) (Decision, error) {
	content = StripCodeFence(content)
	var d Decision
	if err := json.Unmarshal([]byte(content), &d); err != nil {
		return Decision{}, err
	}
	return d, nil
}

// StripCodeFence removes a leading ```lang line and any closing fence.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for _, l := range lines[1:] {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// String is a compact log form, e.g. "move{location_id:kitchen}".
func (d Decision) String() string {
	switch a := d.Action.(type) {
	case Move:
		return "move -> " + a.LocationID
	case Talk:
		if a.TargetAgent != "" {
			return fmt.Sprintf("talk to %s: %q", a.TargetAgent, a.Message)
		}
		return fmt.Sprintf("talk: %q", a.Message)
	case Interact:
		return fmt.Sprintf("interact %s: %q", a.ObjectID, a.Action)
	case Wait:
		return "wait (" + a.Reason + ")"
	default:
		return "wait"
	}
}
