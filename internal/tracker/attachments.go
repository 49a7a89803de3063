package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/mutation"
)

const (
	AttachTask = "task"
	AttachBug  = "bug"
)

type UploadInput struct {
	Entity   string
	EntityID string
	Name     string
	MimeType string
	Body     io.Reader
}

// Upload stores a file for a task or bug and links it: the task's
// attachmentUrl or the bug's evidenceUrl is set to the file's URL.
func (s *Service) Upload(ctx context.Context, sub access.Subject, in UploadInput) (domain.Attachment, error) {
	var projectID string
	switch in.Entity {
	case AttachTask:
		t, err := load[domain.Task](ctx, s.store, domain.ColTasks, in.EntityID, "task")
		if err != nil {
			return domain.Attachment{}, err
		}
		projectID = t.ProjectID
	case AttachBug:
		b, err := load[domain.Bug](ctx, s.store, domain.ColBugs, in.EntityID, "bug")
		if err != nil {
			return domain.Attachment{}, err
		}
		projectID = b.ProjectID
	default:
		return domain.Attachment{}, invalid("attachments belong to a task or a bug")
	}
	if err := s.check(ctx, sub, access.ContributeToProject, access.Target{ProjectID: projectID}); err != nil {
		return domain.Attachment{}, err
	}
	name := filepath.Base(strings.TrimSpace(in.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return domain.Attachment{}, invalid("file name required")
	}

	a := domain.Attachment{
		ID:         docstore.NewID(),
		ProjectID:  projectID,
		Entity:     in.Entity,
		EntityID:   in.EntityID,
		Name:       name,
		MimeType:   in.MimeType,
		UploadedBy: sub.UserID,
		CreatedAt:  s.clock.Now(),
	}
	if a.MimeType == "" {
		a.MimeType = "application/octet-stream"
	}

	dir := filepath.Join(s.uploadDir, projectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return domain.Attachment{}, fmt.Errorf("create upload dir: %w", err)
	}
	path := s.attachmentPath(a)
	dst, err := os.Create(path)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("save file: %w", err)
	}
	size, err := io.Copy(dst, in.Body)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return domain.Attachment{}, fmt.Errorf("save file: %w", err)
	}
	a.Size = size

	wctx := as(ctx, sub)
	if _, err := create(wctx, s.store, domain.ColAttachments, a.ID, a); err != nil {
		os.Remove(path)
		return domain.Attachment{}, fmt.Errorf("record attachment: %w", err)
	}

	switch in.Entity {
	case AttachTask:
		_, err = s.exec.UpdateTask(wctx, actorOf(sub), in.EntityID, domain.SetTaskAttachment{URL: a.URL()})
	case AttachBug:
		_, err = s.exec.UpdateBug(wctx, actorOf(sub), in.EntityID, domain.SetBugEvidence{URL: a.URL()})
	}
	var aerr *mutation.AuditError
	if err == nil || errors.As(err, &aerr) {
		return a, err
	}
	// The link was never written, so nothing points at the file.
	if derr := s.store.Delete(wctx, domain.ColAttachments, a.ID); derr != nil {
		s.logger.Warn().Err(derr).Str("attachment", a.ID).Msg("remove unlinked attachment")
	}
	os.Remove(path)
	return domain.Attachment{}, fmt.Errorf("link attachment: %w", err)
}

func (s *Service) attachmentPath(a domain.Attachment) string {
	return filepath.Join(s.uploadDir, a.ProjectID, a.ID+"_"+a.Name)
}

// OpenAttachment returns the attachment and the path of its file on
// disk.
func (s *Service) OpenAttachment(ctx context.Context, sub access.Subject, id string) (domain.Attachment, string, error) {
	a, err := load[domain.Attachment](ctx, s.store, domain.ColAttachments, id, "attachment")
	if err != nil {
		return domain.Attachment{}, "", err
	}
	if err := s.check(ctx, sub, access.ViewProject, access.Target{ProjectID: a.ProjectID}); err != nil {
		return domain.Attachment{}, "", err
	}
	return a, s.attachmentPath(a), nil
}
