package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidChange = errors.New("invalid change")
	ErrUnknownField  = errors.New("unknown field")
)

// Change is one typed edit to a single field of a record. Every entity
// has its own closed set of changes; there is no way to write an
// arbitrary field by name.
type Change interface {
	// Field is the wire name of the field.
	Field() string
	// Value is the wire value. Nil means "clear".
	Value() any
	Validate() error
	// Fields returns the document fields written by the change. A nil
	// value removes the field from the document.
	Fields(now time.Time) map[string]any
	// Describe renders the change for audit details.
	Describe() string
}

func describe(field string, v any) string {
	if v == nil {
		return field + " cleared"
	}
	return fmt.Sprintf("%s=%v", field, v)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidChange, fmt.Sprintf(format, args...))
}

func optional(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func decodeValue[T any](field string, raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, invalid("%s: missing value", field)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, invalid("%s: %v", field, err)
	}
	return v, nil
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// Task changes

type TaskChange interface {
	Change
	ApplyTask(t *Task, now time.Time)
	taskChange()
}

type SetTaskStatus struct{ Status TaskStatus }

func (c SetTaskStatus) Field() string { return "status" }
func (c SetTaskStatus) Value() any    { return c.Status }
func (c SetTaskStatus) Validate() error {
	if !c.Status.Valid() {
		return invalid("unknown task status %q", c.Status)
	}
	return nil
}

// Fields also maintains completedAt, which burndown reads.
func (c SetTaskStatus) Fields(now time.Time) map[string]any {
	f := map[string]any{"status": c.Status, "completedAt": nil}
	if c.Status == TaskDone {
		f["completedAt"] = now
	}
	return f
}
func (c SetTaskStatus) Describe() string { return describe("status", c.Status) }
func (c SetTaskStatus) ApplyTask(t *Task, now time.Time) {
	t.Status = c.Status
	t.CompletedAt = nil
	if c.Status == TaskDone {
		done := now
		t.CompletedAt = &done
	}
	t.UpdatedAt = now
}
func (SetTaskStatus) taskChange() {}

type SetTaskPriority struct{ Priority TaskPriority }

func (c SetTaskPriority) Field() string { return "priority" }
func (c SetTaskPriority) Value() any    { return c.Priority }
func (c SetTaskPriority) Validate() error {
	if !c.Priority.Valid() {
		return invalid("unknown task priority %q", c.Priority)
	}
	return nil
}
func (c SetTaskPriority) Fields(time.Time) map[string]any {
	return map[string]any{"priority": c.Priority}
}
func (c SetTaskPriority) Describe() string { return describe("priority", c.Priority) }
func (c SetTaskPriority) ApplyTask(t *Task, now time.Time) {
	t.Priority = c.Priority
	t.UpdatedAt = now
}
func (SetTaskPriority) taskChange() {}

// SetTaskAssignee assigns the task; a nil AssigneeID unassigns it.
type SetTaskAssignee struct{ AssigneeID *string }

func (c SetTaskAssignee) Field() string   { return "assigneeId" }
func (c SetTaskAssignee) Value() any      { return optional(c.AssigneeID) }
func (c SetTaskAssignee) Validate() error { return nil }
func (c SetTaskAssignee) Fields(time.Time) map[string]any {
	return map[string]any{"assigneeId": c.Value()}
}
func (c SetTaskAssignee) Describe() string { return describe("assigneeId", c.Value()) }
func (c SetTaskAssignee) ApplyTask(t *Task, now time.Time) {
	t.AssigneeID = emptyToNil(c.AssigneeID)
	t.UpdatedAt = now
}
func (SetTaskAssignee) taskChange() {}

// SetTaskSprint moves the task into a sprint; nil moves it back to the backlog.
type SetTaskSprint struct{ SprintID *string }

func (c SetTaskSprint) Field() string   { return "sprintId" }
func (c SetTaskSprint) Value() any      { return optional(c.SprintID) }
func (c SetTaskSprint) Validate() error { return nil }
func (c SetTaskSprint) Fields(time.Time) map[string]any {
	return map[string]any{"sprintId": c.Value()}
}
func (c SetTaskSprint) Describe() string { return describe("sprintId", c.Value()) }
func (c SetTaskSprint) ApplyTask(t *Task, now time.Time) {
	t.SprintID = emptyToNil(c.SprintID)
	t.UpdatedAt = now
}
func (SetTaskSprint) taskChange() {}

type SetTaskTitle struct{ Title string }

func (c SetTaskTitle) Field() string { return "title" }
func (c SetTaskTitle) Value() any    { return c.Title }
func (c SetTaskTitle) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return invalid("title required")
	}
	return nil
}
func (c SetTaskTitle) Fields(time.Time) map[string]any {
	return map[string]any{"title": strings.TrimSpace(c.Title)}
}
func (c SetTaskTitle) Describe() string { return describe("title", strings.TrimSpace(c.Title)) }
func (c SetTaskTitle) ApplyTask(t *Task, now time.Time) {
	t.Title = strings.TrimSpace(c.Title)
	t.UpdatedAt = now
}
func (SetTaskTitle) taskChange() {}

type SetTaskDescription struct{ Description string }

func (c SetTaskDescription) Field() string   { return "description" }
func (c SetTaskDescription) Value() any      { return c.Description }
func (c SetTaskDescription) Validate() error { return nil }
func (c SetTaskDescription) Fields(time.Time) map[string]any {
	return map[string]any{"description": c.Description}
}
func (c SetTaskDescription) Describe() string { return "description edited" }
func (c SetTaskDescription) ApplyTask(t *Task, now time.Time) {
	t.Description = c.Description
	t.UpdatedAt = now
}
func (SetTaskDescription) taskChange() {}

type SetTaskAttachment struct{ URL string }

func (c SetTaskAttachment) Field() string   { return "attachmentUrl" }
func (c SetTaskAttachment) Value() any      { return c.URL }
func (c SetTaskAttachment) Validate() error { return nil }
func (c SetTaskAttachment) Fields(time.Time) map[string]any {
	if c.URL == "" {
		return map[string]any{"attachmentUrl": nil}
	}
	return map[string]any{"attachmentUrl": c.URL}
}
func (c SetTaskAttachment) Describe() string { return describe("attachmentUrl", c.URL) }
func (c SetTaskAttachment) ApplyTask(t *Task, now time.Time) {
	t.AttachmentURL = c.URL
	t.UpdatedAt = now
}
func (SetTaskAttachment) taskChange() {}

// ParseTaskChange builds a typed change from its wire form.
func ParseTaskChange(field string, raw json.RawMessage) (TaskChange, error) {
	var c TaskChange
	switch field {
	case "status":
		v, err := decodeValue[TaskStatus](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetTaskStatus{Status: v}
	case "priority":
		v, err := decodeValue[TaskPriority](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetTaskPriority{Priority: v}
	case "assigneeId":
		v, err := decodeValue[*string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetTaskAssignee{AssigneeID: v}
	case "sprintId":
		v, err := decodeValue[*string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetTaskSprint{SprintID: v}
	case "title":
		v, err := decodeValue[string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetTaskTitle{Title: v}
	case "description":
		v, err := decodeValue[string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetTaskDescription{Description: v}
	case "attachmentUrl":
		v, err := decodeValue[string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetTaskAttachment{URL: v}
	default:
		return nil, fmt.Errorf("%w: task.%s", ErrUnknownField, field)
	}
	return c, c.Validate()
}
