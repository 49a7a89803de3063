package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Collection names in the document store.
const (
	ColProjects     = "projects"
	ColProjectSlugs = "projectSlugs"
	ColTasks        = "tasks"
	ColBugs         = "bugs"
	ColSprints      = "sprints"
	ColTimeLogs     = "timeLogs"
	ColUserProfiles = "userProfiles"
	ColAuditLogs    = "auditLogs"
	ColWikiPages    = "wikiPages"
	ColWikiSlugs    = "wikiSlugs"
	ColAttachments  = "attachments"

	SubMembers  = "members"
	SubComments = "comments"
	SubVersions = "versions"
)

type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	OwnerID     string        `json:"ownerId"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type Task struct {
	ID            string       `json:"id"`
	ProjectID     string       `json:"projectId"`
	ParentID      *string      `json:"parentId,omitempty"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Status        TaskStatus   `json:"status"`
	Priority      TaskPriority `json:"priority"`
	Type          TaskType     `json:"type"`
	AssigneeID    *string      `json:"assigneeId,omitempty"`
	SprintID      *string      `json:"sprintId,omitempty"`
	AttachmentURL string       `json:"attachmentUrl,omitempty"`
	CreatedBy     string       `json:"createdBy"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
}

type Bug struct {
	ID                string      `json:"id"`
	ProjectID         string      `json:"projectId"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	ReproductionSteps string      `json:"reproductionSteps"`
	EvidenceURL       string      `json:"evidenceUrl,omitempty"`
	Priority          BugPriority `json:"priority"`
	Severity          BugSeverity `json:"severity"`
	Status            BugStatus   `json:"status"`
	AssigneeID        *string     `json:"assigneeId,omitempty"`
	ReportedBy        string      `json:"reportedBy"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

type Sprint struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"projectId"`
	Name      string       `json:"name"`
	Goal      string       `json:"goal,omitempty"`
	StartDate time.Time    `json:"startDate"`
	EndDate   time.Time    `json:"endDate"`
	Status    SprintStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// ProjectMember lives in projects/<projectId>/members, keyed by user id.
type ProjectMember struct {
	ProjectID   string      `json:"projectId"`
	UserID      string      `json:"userId"`
	Role        ProjectRole `json:"role"`
	DisplayName string      `json:"displayName"`
	Email       string      `json:"email"`
	AddedAt     time.Time   `json:"addedAt"`
}

// Comment lives in tasks/<taskId>/comments.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type TimeLog struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	ProjectID   string          `json:"projectId"`
	TaskID      string          `json:"taskId"`
	Hours       decimal.Decimal `json:"hours"`
	Date        string          `json:"date"` // YYYY-MM-DD
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type UserProfile struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	Role        SystemRole `json:"role"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type AuditLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entityId"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

type WikiPage struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	LastEditedBy string    `json:"lastEditedBy"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// WikiPageVersion is the title and content a page had before an edit.
type WikiPageVersion struct {
	ID        string    `json:"id"`
	PageID    string    `json:"pageId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	EditedBy  string    `json:"editedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attachment is an uploaded file kept under the upload directory. The
// task or bug it belongs to links to it by URL.
type Attachment struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	Entity     string    `json:"entity"`
	EntityID   string    `json:"entityId"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	UploadedBy string    `json:"uploadedBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// URL is where the file is served.
func (a Attachment) URL() string { return "/api/attachments/" + a.ID }

// SubtaskProgress is the completion roll-up of a task's subtasks.
type SubtaskProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}
