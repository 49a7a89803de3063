package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Bug changes

type BugChange interface {
	Change
	ApplyBug(b *Bug, now time.Time)
	bugChange()
}

type SetBugStatus struct{ Status BugStatus }

func (c SetBugStatus) Field() string { return "status" }
func (c SetBugStatus) Value() any    { return c.Status }
func (c SetBugStatus) Validate() error {
	if !c.Status.Valid() {
		return invalid("unknown bug status %q", c.Status)
	}
	return nil
}
func (c SetBugStatus) Fields(time.Time) map[string]any { return map[string]any{"status": c.Status} }
func (c SetBugStatus) Describe() string                { return describe("status", c.Status) }
func (c SetBugStatus) ApplyBug(b *Bug, now time.Time)  { b.Status = c.Status; b.UpdatedAt = now }
func (SetBugStatus) bugChange()                        {}

type SetBugPriority struct{ Priority BugPriority }

func (c SetBugPriority) Field() string { return "priority" }
func (c SetBugPriority) Value() any    { return c.Priority }
func (c SetBugPriority) Validate() error {
	if !c.Priority.Valid() {
		return invalid("unknown bug priority %q", c.Priority)
	}
	return nil
}
func (c SetBugPriority) Fields(time.Time) map[string]any {
	return map[string]any{"priority": c.Priority}
}
func (c SetBugPriority) Describe() string               { return describe("priority", c.Priority) }
func (c SetBugPriority) ApplyBug(b *Bug, now time.Time) { b.Priority = c.Priority; b.UpdatedAt = now }
func (SetBugPriority) bugChange()                       {}

type SetBugSeverity struct{ Severity BugSeverity }

func (c SetBugSeverity) Field() string { return "severity" }
func (c SetBugSeverity) Value() any    { return c.Severity }
func (c SetBugSeverity) Validate() error {
	if !c.Severity.Valid() {
		return invalid("unknown bug severity %q", c.Severity)
	}
	return nil
}
func (c SetBugSeverity) Fields(time.Time) map[string]any {
	return map[string]any{"severity": c.Severity}
}
func (c SetBugSeverity) Describe() string               { return describe("severity", c.Severity) }
func (c SetBugSeverity) ApplyBug(b *Bug, now time.Time) { b.Severity = c.Severity; b.UpdatedAt = now }
func (SetBugSeverity) bugChange()                       {}

type SetBugAssignee struct{ AssigneeID *string }

func (c SetBugAssignee) Field() string   { return "assigneeId" }
func (c SetBugAssignee) Value() any      { return optional(c.AssigneeID) }
func (c SetBugAssignee) Validate() error { return nil }
func (c SetBugAssignee) Fields(time.Time) map[string]any {
	return map[string]any{"assigneeId": c.Value()}
}
func (c SetBugAssignee) Describe() string { return describe("assigneeId", c.Value()) }
func (c SetBugAssignee) ApplyBug(b *Bug, now time.Time) {
	b.AssigneeID = emptyToNil(c.AssigneeID)
	b.UpdatedAt = now
}
func (SetBugAssignee) bugChange() {}

type SetBugTitle struct{ Title string }

func (c SetBugTitle) Field() string { return "title" }
func (c SetBugTitle) Value() any    { return c.Title }
func (c SetBugTitle) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return invalid("title required")
	}
	return nil
}
func (c SetBugTitle) Fields(time.Time) map[string]any {
	return map[string]any{"title": strings.TrimSpace(c.Title)}
}
func (c SetBugTitle) Describe() string { return describe("title", strings.TrimSpace(c.Title)) }
func (c SetBugTitle) ApplyBug(b *Bug, now time.Time) {
	b.Title = strings.TrimSpace(c.Title)
	b.UpdatedAt = now
}
func (SetBugTitle) bugChange() {}

type SetBugDescription struct{ Description string }

func (c SetBugDescription) Field() string   { return "description" }
func (c SetBugDescription) Value() any      { return c.Description }
func (c SetBugDescription) Validate() error { return nil }
func (c SetBugDescription) Fields(time.Time) map[string]any {
	return map[string]any{"description": c.Description}
}
func (c SetBugDescription) Describe() string { return "description edited" }
func (c SetBugDescription) ApplyBug(b *Bug, now time.Time) {
	b.Description = c.Description
	b.UpdatedAt = now
}
func (SetBugDescription) bugChange() {}

type SetBugReproductionSteps struct{ Steps string }

func (c SetBugReproductionSteps) Field() string   { return "reproductionSteps" }
func (c SetBugReproductionSteps) Value() any      { return c.Steps }
func (c SetBugReproductionSteps) Validate() error { return nil }
func (c SetBugReproductionSteps) Fields(time.Time) map[string]any {
	return map[string]any{"reproductionSteps": c.Steps}
}
func (c SetBugReproductionSteps) Describe() string { return "reproduction steps edited" }
func (c SetBugReproductionSteps) ApplyBug(b *Bug, now time.Time) {
	b.ReproductionSteps = c.Steps
	b.UpdatedAt = now
}
func (SetBugReproductionSteps) bugChange() {}

type SetBugEvidence struct{ URL string }

func (c SetBugEvidence) Field() string   { return "evidenceUrl" }
func (c SetBugEvidence) Value() any      { return c.URL }
func (c SetBugEvidence) Validate() error { return nil }
func (c SetBugEvidence) Fields(time.Time) map[string]any {
	if c.URL == "" {
		return map[string]any{"evidenceUrl": nil}
	}
	return map[string]any{"evidenceUrl": c.URL}
}
func (c SetBugEvidence) Describe() string               { return describe("evidenceUrl", c.URL) }
func (c SetBugEvidence) ApplyBug(b *Bug, now time.Time) { b.EvidenceURL = c.URL; b.UpdatedAt = now }
func (SetBugEvidence) bugChange()                       {}

func ParseBugChange(field string, raw json.RawMessage) (BugChange, error) {
	var c BugChange
	switch field {
	case "status":
		v, err := decodeValue[BugStatus](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetBugStatus{Status: v}
	case "priority":
		v, err := decodeValue[BugPriority](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetBugPriority{Priority: v}
	case "severity":
		v, err := decodeValue[BugSeverity](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetBugSeverity{Severity: v}
	case "assigneeId":
		v, err := decodeValue[*string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetBugAssignee{AssigneeID: v}
	case "title":
		v, err := decodeValue[string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetBugTitle{Title: v}
	case "description":
		v, err := decodeValue[string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetBugDescription{Description: v}
	case "reproductionSteps":
		v, err := decodeValue[string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetBugReproductionSteps{Steps: v}
	case "evidenceUrl":
		v, err := decodeValue[string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetBugEvidence{URL: v}
	default:
		return nil, fmt.Errorf("%w: bug.%s", ErrUnknownField, field)
	}
	return c, c.Validate()
}

// Sprint changes

type SprintChange interface {
	Change
	ApplySprint(s *Sprint, now time.Time)
	sprintChange()
}

type SetSprintStatus struct{ Status SprintStatus }

func (c SetSprintStatus) Field() string { return "status" }
func (c SetSprintStatus) Value() any    { return c.Status }
func (c SetSprintStatus) Validate() error {
	if !c.Status.Valid() {
		return invalid("unknown sprint status %q", c.Status)
	}
	return nil
}
func (c SetSprintStatus) Fields(time.Time) map[string]any {
	return map[string]any{"status": c.Status}
}
func (c SetSprintStatus) Describe() string { return describe("status", c.Status) }
func (c SetSprintStatus) ApplySprint(s *Sprint, now time.Time) {
	s.Status = c.Status
	s.UpdatedAt = now
}
func (SetSprintStatus) sprintChange() {}

type SetSprintName struct{ Name string }

func (c SetSprintName) Field() string { return "name" }
func (c SetSprintName) Value() any    { return c.Name }
func (c SetSprintName) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name required")
	}
	return nil
}
func (c SetSprintName) Fields(time.Time) map[string]any {
	return map[string]any{"name": strings.TrimSpace(c.Name)}
}
func (c SetSprintName) Describe() string { return describe("name", strings.TrimSpace(c.Name)) }
func (c SetSprintName) ApplySprint(s *Sprint, now time.Time) {
	s.Name = strings.TrimSpace(c.Name)
	s.UpdatedAt = now
}
func (SetSprintName) sprintChange() {}

type SetSprintGoal struct{ Goal string }

func (c SetSprintGoal) Field() string   { return "goal" }
func (c SetSprintGoal) Value() any      { return c.Goal }
func (c SetSprintGoal) Validate() error { return nil }
func (c SetSprintGoal) Fields(time.Time) map[string]any {
	return map[string]any{"goal": c.Goal}
}
func (c SetSprintGoal) Describe() string                     { return "goal edited" }
func (c SetSprintGoal) ApplySprint(s *Sprint, now time.Time) { s.Goal = c.Goal; s.UpdatedAt = now }
func (SetSprintGoal) sprintChange()                          {}

// SetSprintDates replaces both dates at once so the range is always
// validated as a whole.
type SetSprintDates struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

func (c SetSprintDates) Field() string { return "dates" }
func (c SetSprintDates) Value() any    { return c }
func (c SetSprintDates) Validate() error {
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return invalid("start and end dates required")
	}
	if c.EndDate.Before(c.StartDate) {
		return invalid("end date %s precedes start date %s", c.EndDate.Format(time.DateOnly), c.StartDate.Format(time.DateOnly))
	}
	return nil
}
func (c SetSprintDates) Fields(time.Time) map[string]any {
	return map[string]any{"startDate": c.StartDate, "endDate": c.EndDate}
}
func (c SetSprintDates) Describe() string {
	return fmt.Sprintf("dates=%s..%s", c.StartDate.Format(time.DateOnly), c.EndDate.Format(time.DateOnly))
}
func (c SetSprintDates) ApplySprint(s *Sprint, now time.Time) {
	s.StartDate = c.StartDate
	s.EndDate = c.EndDate
	s.UpdatedAt = now
}
func (SetSprintDates) sprintChange() {}

func ParseSprintChange(field string, raw json.RawMessage) (SprintChange, error) {
	var c SprintChange
	switch field {
	case "status":
		v, err := decodeValue[SprintStatus](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetSprintStatus{Status: v}
	case "name":
		v, err := decodeValue[string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetSprintName{Name: v}
	case "goal":
		v, err := decodeValue[string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetSprintGoal{Goal: v}
	case "dates":
		v, err := decodeValue[SetSprintDates](field, raw)
		if err != nil {
			return nil, err
		}
		c = v
	default:
		return nil, fmt.Errorf("%w: sprint.%s", ErrUnknownField, field)
	}
	return c, c.Validate()
}

// Project changes. Renaming keeps the slug so existing links stay valid.

type ProjectChange interface {
	Change
	ApplyProject(p *Project, now time.Time)
	projectChange()
}

type SetProjectName struct{ Name string }

func (c SetProjectName) Field() string { return "name" }
func (c SetProjectName) Value() any    { return c.Name }
func (c SetProjectName) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name required")
	}
	return nil
}
func (c SetProjectName) Fields(time.Time) map[string]any {
	return map[string]any{"name": strings.TrimSpace(c.Name)}
}
func (c SetProjectName) Describe() string { return describe("name", strings.TrimSpace(c.Name)) }
func (c SetProjectName) ApplyProject(p *Project, now time.Time) {
	p.Name = strings.TrimSpace(c.Name)
	p.UpdatedAt = now
}
func (SetProjectName) projectChange() {}

type SetProjectDescription struct{ Description string }

func (c SetProjectDescription) Field() string   { return "description" }
func (c SetProjectDescription) Value() any      { return c.Description }
func (c SetProjectDescription) Validate() error { return nil }
func (c SetProjectDescription) Fields(time.Time) map[string]any {
	return map[string]any{"description": c.Description}
}
func (c SetProjectDescription) Describe() string { return "description edited" }
func (c SetProjectDescription) ApplyProject(p *Project, now time.Time) {
	p.Description = c.Description
	p.UpdatedAt = now
}
func (SetProjectDescription) projectChange() {}

type SetProjectStatus struct{ Status ProjectStatus }

func (c SetProjectStatus) Field() string { return "status" }
func (c SetProjectStatus) Value() any    { return c.Status }
func (c SetProjectStatus) Validate() error {
	if !c.Status.Valid() {
		return invalid("unknown project status %q", c.Status)
	}
	return nil
}
func (c SetProjectStatus) Fields(time.Time) map[string]any {
	return map[string]any{"status": c.Status}
}
func (c SetProjectStatus) Describe() string { return describe("status", c.Status) }
func (c SetProjectStatus) ApplyProject(p *Project, now time.Time) {
	p.Status = c.Status
	p.UpdatedAt = now
}
func (SetProjectStatus) projectChange() {}

func ParseProjectChange(field string, raw json.RawMessage) (ProjectChange, error) {
	var c ProjectChange
	switch field {
	case "name":
		v, err := decodeValue[string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetProjectName{Name: v}
	case "description":
		v, err := decodeValue[string](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetProjectDescription{Description: v}
	case "status":
		v, err := decodeValue[ProjectStatus](field, raw)
		if err != nil {
			return nil, err
		}
		c = SetProjectStatus{Status: v}
	default:
		return nil, fmt.Errorf("%w: project.%s", ErrUnknownField, field)
	}
	return c, c.Validate()
}
