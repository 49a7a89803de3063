// Package access decides who may do what. The system role (admin or
// member) governs user management and the audit log; the project role
// (owner or member) governs everything inside a project. The two are
// never mixed: being a project owner grants nothing system-wide.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

// Subject is the caller being checked.
type Subject struct {
	UserID      string
	DisplayName string
	Role        domain.SystemRole
}

func (s Subject) Authenticated() bool { return s.UserID != "" }

func (s Subject) Admin() bool { return s.Role == domain.RoleAdmin }

// Actor converts s for store writes.
func (s Subject) Actor() docstore.Actor {
	return docstore.Actor{UserID: s.UserID, Admin: s.Admin()}
}

type Action string

// System actions.
const (
	ManageUsers  Action = "manage_users"
	ViewAuditLog Action = "view_audit_log"
	UpdateUser   Action = "update_user"
)

// Project actions.
const (
	ViewProject         Action = "view_project"
	EditProject         Action = "edit_project"
	DeleteProject       Action = "delete_project"
	ManageMembers       Action = "manage_members"
	RemoveMember        Action = "remove_member"
	ContributeToProject Action = "contribute"
)

func (a Action) system() bool {
	return a == ManageUsers || a == ViewAuditLog || a == UpdateUser
}

// Target is what a project action applies to. MemberID is only read by
// RemoveMember.
type Target struct {
	ProjectID string
	MemberID  string
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Gate evaluates actions against stored memberships.
type Gate struct {
	r docstore.Reader
}

func NewGate(r docstore.Reader) *Gate {
	return &Gate{r: r}
}

// Check never fails: lookup errors become denials carrying the reason.
func (g *Gate) Check(ctx context.Context, s Subject, a Action, t Target) Decision {
	if !s.Authenticated() {
		return deny("not signed in")
	}
	if a.system() {
		if s.Admin() {
			return allow()
		}
		return deny("%s requires the admin role", a)
	}
	if t.ProjectID == "" {
		return deny("%s needs a project", a)
	}

	role, err := MemberRole(ctx, g.r, t.ProjectID, s.UserID)
	if err != nil {
		return deny("membership lookup failed: %v", err)
	}

	switch a {
	case ViewProject, EditProject, ContributeToProject:
		if s.Admin() || role != "" {
			return allow()
		}
		return deny("not a member of project %s", t.ProjectID)
	case DeleteProject, ManageMembers:
		if s.Admin() || role == domain.ProjectRoleOwner {
			return allow()
		}
		return deny("%s requires project owner or admin", a)
	case RemoveMember:
		if !s.Admin() && role != domain.ProjectRoleOwner {
			return deny("%s requires project owner or admin", a)
		}
		target, err := MemberRole(ctx, g.r, t.ProjectID, t.MemberID)
		if err != nil {
			return deny("membership lookup failed: %v", err)
		}
		if target == "" {
			return deny("user %s is not a member", t.MemberID)
		}
		if target == domain.ProjectRoleOwner {
			return deny("project owners cannot be removed")
		}
		return allow()
	}
	return deny("unknown action %q", a)
}

// MemberRole returns the user's role in the project, or "" when the
// user is not a member.
func MemberRole(ctx context.Context, r docstore.Reader, projectID, userID string) (domain.ProjectRole, error) {
	if userID == "" {
		return "", nil
	}
	d, err := r.Get(ctx, docstore.Path(domain.ColProjects, projectID, domain.SubMembers), userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	role, _ := d["role"].(string)
	return domain.ProjectRole(role), nil
}
