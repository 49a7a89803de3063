package domain

type TaskStatus string

const (
	TaskBacklog    TaskStatus = "backlog"
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskTesting    TaskStatus = "testing"
	TaskInReview   TaskStatus = "in_review"
	TaskDone       TaskStatus = "done"
)

// TaskStatuses is the Kanban column order.
var TaskStatuses = []TaskStatus{TaskBacklog, TaskTodo, TaskInProgress, TaskTesting, TaskInReview, TaskDone}

func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s TaskStatus) Label() string {
	labels := map[TaskStatus]string{
		TaskBacklog:    "Backlog",
		TaskTodo:       "To Do",
		TaskInProgress: "In Progress",
		TaskTesting:    "Testing",
		TaskInReview:   "In Review",
		TaskDone:       "Done",
	}
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type TaskType string

const (
	TypeTask    TaskType = "task"
	TypeSubtask TaskType = "subtask"
)

type BugPriority string

const (
	BugPriorityLow      BugPriority = "low"
	BugPriorityMedium   BugPriority = "medium"
	BugPriorityHigh     BugPriority = "high"
	BugPriorityCritical BugPriority = "critical"
)

func (p BugPriority) Valid() bool {
	switch p {
	case BugPriorityLow, BugPriorityMedium, BugPriorityHigh, BugPriorityCritical:
		return true
	}
	return false
}

type BugSeverity string

const (
	SeverityLow         BugSeverity = "low"
	SeverityMedium      BugSeverity = "medium"
	SeverityHigh        BugSeverity = "high"
	SeverityCritical    BugSeverity = "critical"
	SeverityEnhancement BugSeverity = "enhancement"
)

func (s BugSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical, SeverityEnhancement:
		return true
	}
	return false
}

type BugStatus string

const (
	BugNew        BugStatus = "new"
	BugInProgress BugStatus = "in_progress"
	BugResolved   BugStatus = "resolved"
	BugClosed     BugStatus = "closed"
)

func (s BugStatus) Valid() bool {
	switch s {
	case BugNew, BugInProgress, BugResolved, BugClosed:
		return true
	}
	return false
}

type SprintStatus string

const (
	SprintPlanning  SprintStatus = "planning"
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
)

func (s SprintStatus) Valid() bool {
	return s == SprintPlanning || s == SprintActive || s == SprintCompleted
}

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool {
	return s == ProjectActive || s == ProjectOnHold || s == ProjectCompleted
}

// ProjectRole is a user's role inside one project.
type ProjectRole string

const (
	ProjectRoleOwner  ProjectRole = "owner"
	ProjectRoleMember ProjectRole = "member"
)

func (r ProjectRole) Valid() bool { return r == ProjectRoleOwner || r == ProjectRoleMember }

// SystemRole is a user's role across the whole installation. It is also
// mirrored into the identity account's "role" claim.
type SystemRole string

const (
	RoleAdmin  SystemRole = "admin"
	RoleMember SystemRole = "member"
)

func (r SystemRole) Valid() bool { return r == RoleAdmin || r == RoleMember }
