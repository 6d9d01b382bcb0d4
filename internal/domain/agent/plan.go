package agent

import (
	"fmt"
	"strings"
)

// TaskStatus is the progress of one plan entry.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Task is one entry in an agent's daily plan.
type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
}

// Plan is the argument of the update_plan tool.
type Plan struct {
	Tasks []Task `json:"tasks"`
}

// Normalize fills missing statuses with pending.
func (p *Plan) Normalize() {
	for i := range p.Tasks {
		if p.Tasks[i].Status == "" {
			p.Tasks[i].Status = TaskPending
		}
	}
}

// String renders the plan the way agents see it.
func (p Plan) String() string {
	if len(p.Tasks) == 0 {
		return "No plan yet. (Use `update_plan` to create one)"
	}
	lines := make([]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s", t.Status, t.ID, t.Description))
	}
	return strings.Join(lines, "\n")
}
