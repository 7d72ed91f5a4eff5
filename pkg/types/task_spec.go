package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// TaskSpec is the loosely typed task descriptor accepted at the API boundary.
// It tolerates the field aliases callers send (taskId, taskType) and is
// coerced into the canonical Task by Normalize.
type TaskSpec struct {
	ID             string     `json:"id,omitempty" yaml:"id,omitempty"`
	TaskID         string     `json:"taskId,omitempty" yaml:"taskId,omitempty"`
	Type           string     `json:"type,omitempty" yaml:"type,omitempty"`
	TaskType       string     `json:"taskType,omitempty" yaml:"taskType,omitempty"`
	Description    string     `json:"description,omitempty" yaml:"description,omitempty"`
	Priority       *Priority  `json:"priority,omitempty" yaml:"priority,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	Dependencies   []string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	EstimatedFiles int        `json:"estimatedFiles,omitempty" yaml:"estimatedFiles,omitempty"`
}

// Normalize converts the spec into a canonical Task. Missing ids are
// generated and a missing creation time defaults to now.
func (s *TaskSpec) Normalize(now time.Time) *Task {
	id := strings.TrimSpace(s.ID)
	if id == "" {
		id = strings.TrimSpace(s.TaskID)
	}
	if id == "" {
		id = uuid.New().String()
	}

	rawType := s.Type
	if strings.TrimSpace(rawType) == "" {
		rawType = s.TaskType
	}

	task := &Task{
		ID:             id,
		Type:           NormalizeTaskType(rawType),
		Description:    s.Description,
		Priority:       PriorityP2,
		CreatedAt:      now,
		EstimatedFiles: s.EstimatedFiles,
	}
	if s.Priority != nil {
		task.Priority = s.Priority.Clamp()
	}
	if s.CreatedAt != nil && !s.CreatedAt.IsZero() {
		task.CreatedAt = *s.CreatedAt
	}
	if s.Deadline != nil {
		task.Deadline = *s.Deadline
	}
	for _, dep := range s.Dependencies {
		if dep = strings.TrimSpace(dep); dep != "" && dep != id {
			task.Dependencies = append(task.Dependencies, dep)
		}
	}
	return task
}

// typeKeywords maps substrings of free-text types onto the vocabulary.
// Order matters: the first match wins.
var typeKeywords = []struct {
	keyword string
	kind    TaskType
}{
	{"pr-creation", TaskTypePRCreation},
	{"pull", TaskTypePRCreation},
	{"security", TaskTypeSecurity},
	{"vuln", TaskTypeSecurity},
	{"audit", TaskTypeSecurity},
	{"sec", TaskTypeSecurity},
	{"doc", TaskTypeDocumentation},
	{"review", TaskTypeReview},
	{"test", TaskTypeTest},
	{"qa", TaskTypeTest},
	{"fix", TaskTypeFix},
	{"bug", TaskTypeFix},
	{"patch", TaskTypeFix},
	{"hotfix", TaskTypeFix},
	{"scan", TaskTypeScan},
	{"impl", TaskTypeImplementation},
	{"feature", TaskTypeImplementation},
	{"build", TaskTypeImplementation},
	{"develop", TaskTypeImplementation},
}

// NormalizeTaskType maps a free-text type onto the fixed vocabulary
func NormalizeTaskType(raw string) TaskType {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return TaskTypeUnknown
	}
	s = strings.ReplaceAll(s, "_", "-")
	if t := TaskType(s); t.Valid() {
		return t
	}
	if s == "pr" || strings.HasPrefix(s, "pr-") {
		return TaskTypePRCreation
	}
	for _, kw := range typeKeywords {
		if strings.Contains(s, kw.keyword) {
			return kw.kind
		}
	}
	return TaskTypeUnknown
}

// ParsePriority accepts P0-P3, named equivalents and bare integers
func ParsePriority(raw string) (Priority, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "p0", "critical", "urgent", "blocker":
		return PriorityP0, nil
	case "p1", "high":
		return PriorityP1, nil
	case "", "p2", "medium", "normal":
		return PriorityP2, nil
	case "p3", "low", "minor":
		return PriorityP3, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return PriorityP2, fmt.Errorf("invalid priority %q", raw)
	}
	return Priority(n).Clamp(), nil
}

// MarshalJSON renders the priority in P-notation
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either a string or a number
func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := ParsePriority(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid priority %s", string(data))
	}
	*p = Priority(n).Clamp()
	return nil
}

// MarshalYAML renders the priority in P-notation
func (p Priority) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// UnmarshalYAML accepts either a string or a number
func (p *Priority) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParsePriority(value.Value)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
