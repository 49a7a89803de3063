package access

import (
	"context"
	"errors"
	"strings"

	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

// Collections owned by the identity service. Only system writes reach them.
var identityCollections = map[string]bool{
	"accounts":      true,
	"accountEmails": true,
	"sessions":      true,
}

// Collections whose documents carry the projectId they belong to.
var projectCollections = map[string]bool{
	domain.ColTasks:       true,
	domain.ColBugs:        true,
	domain.ColSprints:     true,
	domain.ColTimeLogs:    true,
	domain.ColAttachments: true,
}

// Rules is the write check the store runs before every non-system
// write.
type Rules struct{}

var _ docstore.Rules = Rules{}

func (Rules) Authorize(ctx context.Context, r docstore.Reader, actor docstore.Actor, w docstore.Write) error {
	if actor.UserID == "" {
		return docstore.Deny("authentication required")
	}
	if identityCollections[w.Collection] {
		return docstore.Deny("%s is managed by the identity service", w.Collection)
	}

	parts := strings.Split(w.Collection, "/")
	if len(parts) == 3 {
		return authorizeSub(ctx, r, actor, w, parts[0], parts[1], parts[2])
	}

	switch w.Collection {
	case domain.ColProjects:
		return authorizeProject(ctx, r, actor, w)
	case domain.ColAuditLogs:
		if w.Op != docstore.OpCreate {
			return docstore.Deny("audit logs are append-only")
		}
	case domain.ColUserProfiles:
		if actor.Admin {
			return nil
		}
		if w.ID != actor.UserID {
			return docstore.Deny("profiles can only be written by their owner")
		}
		if w.Op == docstore.OpDelete {
			return docstore.Deny("profiles cannot be deleted")
		}
		if _, ok := w.Fields["role"]; ok && w.Op == docstore.OpUpdate {
			return docstore.Deny("role changes require admin")
		}
		if role, ok := w.Fields["role"]; ok && role != string(domain.RoleMember) {
			return docstore.Deny("role changes require admin")
		}
	default:
		if projectCollections[w.Collection] {
			return authorizeProjectScoped(ctx, r, actor, w)
		}
	}
	return nil
}

func authorizeProject(ctx context.Context, r docstore.Reader, actor docstore.Actor, w docstore.Write) error {
	if actor.Admin {
		return nil
	}
	if w.Op == docstore.OpCreate {
		if owner, _ := w.Fields["ownerId"].(string); owner != actor.UserID {
			return docstore.Deny("projects are created with the creator as owner")
		}
		return nil
	}
	p, err := r.Get(ctx, domain.ColProjects, w.ID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	role, err := MemberRole(ctx, r, w.ID, actor.UserID)
	if err != nil {
		return err
	}
	if _, ok := w.Fields["ownerId"]; ok && role != domain.ProjectRoleOwner {
		return docstore.Deny("only the project owner can transfer it")
	}
	if w.Op != docstore.OpDelete {
		if role == "" {
			return docstore.Deny("not a member of project %s", w.ID)
		}
		return nil
	}
	// Memberships are removed before the project itself, so the
	// recorded owner still counts once their membership is gone.
	if owner, _ := p["ownerId"].(string); role == domain.ProjectRoleOwner || owner == actor.UserID {
		return nil
	}
	return docstore.Deny("deleting a project requires project owner or admin")
}

// authorizeProjectScoped requires membership of the project a document
// belongs to, both before and after the write.
func authorizeProjectScoped(ctx context.Context, r docstore.Reader, actor docstore.Actor, w docstore.Write) error {
	if actor.Admin {
		return nil
	}
	var projects []string
	if w.Op != docstore.OpCreate {
		cur, err := r.Get(ctx, w.Collection, w.ID)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		if pid, _ := cur["projectId"].(string); pid != "" {
			projects = append(projects, pid)
		}
	}
	if pid, ok := w.Fields["projectId"].(string); ok {
		projects = append(projects, pid)
	} else if w.Op != docstore.OpUpdate && w.Op != docstore.OpDelete {
		return docstore.Deny("%s documents need a projectId", w.Collection)
	}
	for _, pid := range projects {
		if err := requireMember(ctx, r, actor, pid); err != nil {
			return err
		}
	}
	return nil
}

func requireMember(ctx context.Context, r docstore.Reader, actor docstore.Actor, projectID string) error {
	if projectID == "" {
		return docstore.Deny("document has no project")
	}
	role, err := MemberRole(ctx, r, projectID, actor.UserID)
	if err != nil {
		return err
	}
	if role == "" {
		return docstore.Deny("not a member of project %s", projectID)
	}
	return nil
}

func authorizeSub(ctx context.Context, r docstore.Reader, actor docstore.Actor, w docstore.Write, parent, parentID, sub string) error {
	switch {
	case parent == domain.ColWikiPages && sub == domain.SubVersions:
		if w.Op != docstore.OpCreate {
			return docstore.Deny("wiki versions are append-only")
		}
	case parent == domain.ColTasks && sub == domain.SubComments:
		if actor.Admin {
			return nil
		}
		if w.Op != docstore.OpCreate {
			return docstore.Deny("comments are append-only")
		}
		t, err := r.Get(ctx, domain.ColTasks, parentID)
		if err != nil {
			return err
		}
		pid, _ := t["projectId"].(string)
		return requireMember(ctx, r, actor, pid)
	case parent == domain.ColProjects && sub == domain.SubMembers:
		if actor.Admin {
			return nil
		}
		role, err := MemberRole(ctx, r, parentID, actor.UserID)
		if err != nil {
			return err
		}
		if role == domain.ProjectRoleOwner {
			return nil
		}
		// The creator of a project writes the first owner membership.
		if w.Op == docstore.OpCreate && w.ID == actor.UserID {
			p, err := r.Get(ctx, domain.ColProjects, parentID)
			if err != nil {
				return err
			}
			if owner, _ := p["ownerId"].(string); owner == actor.UserID {
				return nil
			}
		}
		return docstore.Deny("managing members requires project owner or admin")
	}
	return nil
}
