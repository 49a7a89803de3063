package tracker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

type TimeLogInput struct {
	TaskID      string          `json:"taskId"`
	Hours       decimal.Decimal `json:"hours"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
}

type TimeLogFilter struct {
	ProjectID string
	UserID    string
}

// TimesheetRow is one user's total for a project.
type TimesheetRow struct {
	UserID string          `json:"userId"`
	Hours  decimal.Decimal `json:"hours"`
	Logs   int             `json:"logs"`
}

// LogTime records hours worked on a task by the caller. Date defaults
// to today.
func (s *Service) LogTime(ctx context.Context, sub access.Subject, in TimeLogInput) (domain.TimeLog, error) {
	t, err := load[domain.Task](ctx, s.store, domain.ColTasks, in.TaskID, "task")
	if err != nil {
		return domain.TimeLog{}, err
	}
	if err := s.check(ctx, sub, access.ContributeToProject, access.Target{ProjectID: t.ProjectID}); err != nil {
		return domain.TimeLog{}, err
	}
	if !in.Hours.IsPositive() {
		return domain.TimeLog{}, invalid("hours must be greater than zero")
	}
	now := s.clock.Now()
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = now.Format(time.DateOnly)
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return domain.TimeLog{}, invalid("date must be YYYY-MM-DD")
	}

	tl := domain.TimeLog{
		UserID:      sub.UserID,
		ProjectID:   t.ProjectID,
		TaskID:      t.ID,
		Hours:       in.Hours,
		Date:        date,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
	}
	id, err := create(as(ctx, sub), s.store, domain.ColTimeLogs, "", tl)
	if err != nil {
		return domain.TimeLog{}, fmt.Errorf("log time: %w", err)
	}
	tl.ID = id
	return tl, nil
}

// ListTimeLogs lists logs for a project (members) or for a user (that
// user or an admin).
func (s *Service) ListTimeLogs(ctx context.Context, sub access.Subject, f TimeLogFilter) ([]domain.TimeLog, error) {
	var q docstore.Query
	switch {
	case f.ProjectID != "":
		if err := s.check(ctx, sub, access.ViewProject, access.Target{ProjectID: f.ProjectID}); err != nil {
			return nil, err
		}
		q.Where = append(q.Where, docstore.Where("projectId", f.ProjectID))
	case f.UserID != "":
		if !sub.Authenticated() || (sub.UserID != f.UserID && !sub.Admin()) {
			return nil, fmt.Errorf("%w: only the user or an admin can list their time", ErrForbidden)
		}
	default:
		return nil, invalid("project or user required")
	}
	if f.UserID != "" {
		q.Where = append(q.Where, docstore.Where("userId", f.UserID))
	}
	q.OrderBy = "date"
	return query[domain.TimeLog](ctx, s.store, domain.ColTimeLogs, q)
}

// Timesheet totals a project's hours per user, largest first.
func (s *Service) Timesheet(ctx context.Context, sub access.Subject, projectID string) ([]TimesheetRow, error) {
	logs, err := s.ListTimeLogs(ctx, sub, TimeLogFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	totals := make(map[string]*TimesheetRow)
	for _, l := range logs {
		row, ok := totals[l.UserID]
		if !ok {
			row = &TimesheetRow{UserID: l.UserID, Hours: decimal.Zero}
			totals[l.UserID] = row
		}
		row.Hours = row.Hours.Add(l.Hours)
		row.Logs++
	}
	out := make([]TimesheetRow, 0, len(totals))
	for _, r := range totals {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Hours.Cmp(out[j].Hours); c != 0 {
			return c > 0
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}
