package tracker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/audit"
	"github.com/kidandcat/sprintboard/internal/clock"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/identity"
	"github.com/kidandcat/sprintboard/internal/mutation"
	"github.com/kidandcat/sprintboard/internal/notify"
)

type fixture struct {
	svc   *Service
	store *docstore.Store
	clock *clock.Fake
	ids   *identity.Service
	mail  *outbox
	note  *notify.Notifier
}

type outbox struct {
	mu   sync.Mutex
	sent []string
}

func (o *outbox) Send(_ context.Context, to, subject, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, to+": "+subject)
	return nil
}

// delivered waits for pending notifications and returns what was sent.
func (f *fixture) delivered() []string {
	f.note.Wait()
	f.mail.mu.Lock()
	defer f.mail.mu.Unlock()
	return append([]string(nil), f.mail.sent...)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b, err := docstore.OpenSQLite(t.TempDir())
	require.NoError(t, err)
	store := docstore.New(b, docstore.WithRules(access.Rules{}))
	t.Cleanup(func() { store.Close() })

	clk := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	aw := audit.NewWriter(store, clk, zerolog.Nop())
	ids := identity.New(store, clk, 0, zerolog.Nop())
	mail := &outbox{}
	note := notify.New(mail, "http://localhost:8080", zerolog.Nop())
	svc := New(Deps{
		Store:     store,
		Exec:      mutation.NewExecutor(store, aw, clk, zerolog.Nop()),
		Audit:     aw,
		Identity:  ids,
		Clock:     clk,
		UploadDir: t.TempDir(),
		Logger:    zerolog.Nop(),
		Notifier:  note,
	})
	return &fixture{svc: svc, store: store, clock: clk, ids: ids, mail: mail, note: note}
}

func (f *fixture) user(t *testing.T, name string) access.Subject {
	t.Helper()
	email := strings.ToLower(name) + "@example.com"
	_, err := f.svc.SignUp(context.Background(), email, "password123", name)
	require.NoError(t, err)
	acct, err := f.ids.GetAccountByEmail(context.Background(), email)
	require.NoError(t, err)
	return Subject(acct)
}

func (f *fixture) admin(t *testing.T, name string) access.Subject {
	t.Helper()
	sub := f.user(t, name)
	_, err := f.svc.PromoteAdmin(context.Background(), strings.ToLower(name)+"@example.com")
	require.NoError(t, err)
	sub.Role = domain.RoleAdmin
	return sub
}

func TestCreateProjectMakesCreatorOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.user(t, "Ana")

	p, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Mobile App", Description: "iOS and Android"})
	require.NoError(t, err)
	assert.Equal(t, "mobile-app", p.Slug)
	assert.Equal(t, domain.ProjectActive, p.Status)

	members, err := f.svc.ListMembers(ctx, ana, p.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, domain.ProjectRoleOwner, members[0].Role)
	assert.Equal(t, "ana@example.com", members[0].Email)

	p2, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Mobile  app!"})
	require.NoError(t, err)
	assert.Equal(t, "mobile-app-2", p2.Slug)

	got, err := f.svc.GetProject(ctx, ana, "mobile-app-2")
	require.NoError(t, err)
	assert.Equal(t, p2.ID, got.ID)

	_, err = f.svc.CreateProject(ctx, ana, ProjectInput{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestListProjectsScopedToMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana, ben := f.user(t, "Ana"), f.user(t, "Ben")
	root := f.admin(t, "Root")

	_, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Apollo"})
	require.NoError(t, err)
	_, err = f.svc.CreateProject(ctx, ben, ProjectInput{Name: "Borealis"})
	require.NoError(t, err)

	mine, err := f.svc.ListProjects(ctx, ana)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Apollo", mine[0].Name)

	all, err := f.svc.ListProjects(ctx, root)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNonOwnerCannotManageMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana, ben, cid := f.user(t, "Ana"), f.user(t, "Ben"), f.user(t, "Cid")

	p, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Apollo"})
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, ana, p.ID, "ben@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ben@example.com: You were added to Apollo"}, f.delivered())

	_, err = f.svc.AddMember(ctx, ben, p.ID, "cid@example.com", "")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, ben, p.ID, ana.UserID), ErrForbidden)
	assert.ErrorIs(t, f.svc.DeleteProject(ctx, ben, p.ID), ErrForbidden)
	_, err = f.svc.UpdateProject(ctx, cid, p.ID, domain.SetProjectName{Name: "Hijacked"})
	assert.ErrorIs(t, err, ErrForbidden)

	members, err := f.svc.ListMembers(ctx, ana, p.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
	got, err := f.svc.GetProject(ctx, ana, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", got.Name)

	_, err = f.svc.AddMember(ctx, ana, p.ID, "ben@example.com", "")
	assert.ErrorIs(t, err, docstore.ErrAlreadyExists)
	_, err = f.svc.AddMember(ctx, ana, p.ID, "nobody@example.com", "")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRemovingMemberLeavesDanglingAssignees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana, ben := f.user(t, "Ana"), f.user(t, "Ben")

	p, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Apollo"})
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, ana, p.ID, "ben@example.com", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateTask(ctx, ana, p.ID, TaskInput{Title: "Task", AssigneeID: &ben.UserID})
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.RemoveMember(ctx, ana, p.ID, ben.UserID))
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, ana, p.ID, ana.UserID), ErrForbidden, "owners cannot be removed")

	tasks, err := f.svc.ListTasks(ctx, ana, p.ID, TaskFilter{AssigneeID: ben.UserID})
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	// Ben lost access along with the membership.
	_, err = f.svc.ListTasks(ctx, ben, p.ID, TaskFilter{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestTasksAndSubtasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana, eve := f.user(t, "Ana"), f.user(t, "Eve")
	p, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Apollo"})
	require.NoError(t, err)
	other, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Other"})
	require.NoError(t, err)

	_, err = f.svc.CreateTask(ctx, eve, p.ID, TaskInput{Title: "Sneaky"})
	assert.ErrorIs(t, err, ErrForbidden)

	parent, err := f.svc.CreateTask(ctx, ana, p.ID, TaskInput{Title: "Checkout flow"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskBacklog, parent.Status)
	assert.Equal(t, domain.PriorityMedium, parent.Priority)
	assert.Equal(t, domain.TypeTask, parent.Type)

	_, err = f.svc.CreateTask(ctx, ana, other.ID, TaskInput{Title: "Wrong project", ParentID: &parent.ID})
	assert.ErrorIs(t, err, ErrInvalid)
	missing := "missing"
	_, err = f.svc.CreateTask(ctx, ana, p.ID, TaskInput{Title: "Orphan", ParentID: &missing})
	assert.ErrorIs(t, err, ErrInvalid)

	var subIDs []string
	for _, title := range []string{"Cart", "Payment", "Receipt"} {
		st, err := f.svc.CreateTask(ctx, ana, p.ID, TaskInput{Title: title, ParentID: &parent.ID})
		require.NoError(t, err)
		assert.Equal(t, domain.TypeSubtask, st.Type)
		subIDs = append(subIDs, st.ID)
	}
	_, err = f.svc.UpdateTask(ctx, ana, subIDs[0], domain.SetTaskStatus{Status: domain.TaskDone})
	require.NoError(t, err)

	progress, err := f.svc.SubtaskProgress(ctx, ana, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubtaskProgress{Done: 1, Total: 3}, progress)

	require.NoError(t, f.svc.DeleteTask(ctx, ana, parent.ID))
	for _, id := range subIDs {
		_, err := f.svc.GetTask(ctx, ana, id)
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	}
}

func TestTaskSprintMustBelongToProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.user(t, "Ana")
	p, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Apollo"})
	require.NoError(t, err)
	other, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Other"})
	require.NoError(t, err)
	start := f.clock.Now()
	foreign, err := f.svc.CreateSprint(ctx, ana, other.ID, SprintInput{Name: "S1", StartDate: start, EndDate: start.AddDate(0, 0, 14)})
	require.NoError(t, err)

	task, err := f.svc.CreateTask(ctx, ana, p.ID, TaskInput{Title: "T"})
	require.NoError(t, err)
	_, err = f.svc.UpdateTask(ctx, ana, task.ID, domain.SetTaskSprint{SprintID: &foreign.ID})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSprintBurndown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.user(t, "Ana")
	p, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Apollo"})
	require.NoError(t, err)

	start := f.clock.Now()
	_, err = f.svc.CreateSprint(ctx, ana, p.ID, SprintInput{Name: "Bad", StartDate: start, EndDate: start.AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, ErrInvalid)

	sp, err := f.svc.CreateSprint(ctx, ana, p.ID, SprintInput{Name: "Sprint 1", StartDate: start, EndDate: start.AddDate(0, 0, 10)})
	require.NoError(t, err)
	assert.Equal(t, domain.SprintPlanning, sp.Status)

	var ids []string
	for i := 0; i < 4; i++ {
		task, err := f.svc.CreateTask(ctx, ana, p.ID, TaskInput{Title: "T", SprintID: &sp.ID})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}
	f.clock.Advance(26 * time.Hour)
	_, err = f.svc.UpdateTask(ctx, ana, ids[0], domain.SetTaskStatus{Status: domain.TaskDone})
	require.NoError(t, err)

	chart, err := f.svc.Burndown(ctx, ana, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, chart.Total)
	assert.Equal(t, 10, chart.Days)
	require.NotNil(t, chart.Points[1].Actual)
	assert.Equal(t, 3, *chart.Points[1].Actual)
	assert.Equal(t, 4, *chart.Points[0].Actual)
}

func TestBugs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.user(t, "Ana")
	p, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Apollo"})
	require.NoError(t, err)

	bug, err := f.svc.CreateBug(ctx, ana, p.ID, BugInput{Title: "Crash on login", Severity: domain.SeverityCritical})
	require.NoError(t, err)
	assert.Equal(t, domain.BugNew, bug.Status)
	assert.Equal(t, ana.UserID, bug.ReportedBy)

	_, err = f.svc.CreateBug(ctx, ana, p.ID, BugInput{Title: "x", Priority: "urgent"})
	assert.ErrorIs(t, err, ErrInvalid)

	bug, err = f.svc.UpdateBug(ctx, ana, bug.ID, domain.SetBugStatus{Status: domain.BugResolved})
	require.NoError(t, err)
	assert.Equal(t, domain.BugResolved, bug.Status)

	open, err := f.svc.ListBugs(ctx, ana, p.ID, BugFilter{Status: domain.BugNew})
	require.NoError(t, err)
	assert.Empty(t, open)

	require.NoError(t, f.svc.DeleteBug(ctx, ana, bug.ID))
	_, err = f.svc.GetBug(ctx, ana, bug.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestCommentsAndSubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.user(t, "Ana")
	p, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Apollo"})
	require.NoError(t, err)
	task, err := f.svc.CreateTask(ctx, ana, p.ID, TaskInput{Title: "T"})
	require.NoError(t, err)

	sub, err := f.svc.SubscribeComments(ctx, ana, task.ID)
	require.NoError(t, err)
	defer sub.Close()

	_, err = f.svc.AddComment(ctx, ana, task.ID, "first")
	require.NoError(t, err)
	_, err = f.svc.AddComment(ctx, ana, task.ID, "second")
	require.NoError(t, err)
	_, err = f.svc.AddComment(ctx, ana, task.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalid)

	comments, err := f.svc.ListComments(ctx, ana, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, "Ana", comments[0].UserName)

	select {
	case ev := <-sub.C:
		assert.Equal(t, "first", ev.Doc["text"])
	case <-time.After(time.Second):
		t.Fatal("no comment event")
	}
}

func TestTimeLogsAndTimesheet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana, ben := f.user(t, "Ana"), f.user(t, "Ben")
	p, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Apollo"})
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, ana, p.ID, "ben@example.com", "")
	require.NoError(t, err)
	task, err := f.svc.CreateTask(ctx, ana, p.ID, TaskInput{Title: "T"})
	require.NoError(t, err)

	_, err = f.svc.LogTime(ctx, ana, TimeLogInput{TaskID: task.ID, Hours: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = f.svc.LogTime(ctx, ana, TimeLogInput{TaskID: task.ID, Hours: decimal.NewFromFloat(1.5), Date: "03/02/2026"})
	assert.ErrorIs(t, err, ErrInvalid)

	tl, err := f.svc.LogTime(ctx, ana, TimeLogInput{TaskID: task.ID, Hours: decimal.NewFromFloat(1.5)})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", tl.Date)
	_, err = f.svc.LogTime(ctx, ana, TimeLogInput{TaskID: task.ID, Hours: decimal.NewFromFloat(2.25), Date: "2026-03-03"})
	require.NoError(t, err)
	_, err = f.svc.LogTime(ctx, ben, TimeLogInput{TaskID: task.ID, Hours: decimal.NewFromInt(1)})
	require.NoError(t, err)

	sheet, err := f.svc.Timesheet(ctx, ana, p.ID)
	require.NoError(t, err)
	require.Len(t, sheet, 2)
	assert.Equal(t, ana.UserID, sheet[0].UserID)
	assert.True(t, decimal.NewFromFloat(3.75).Equal(sheet[0].Hours))
	assert.Equal(t, 2, sheet[0].Logs)

	_, err = f.svc.ListTimeLogs(ctx, ben, TimeLogFilter{UserID: ana.UserID})
	assert.ErrorIs(t, err, ErrForbidden)
	mine, err := f.svc.ListTimeLogs(ctx, ben, TimeLogFilter{UserID: ben.UserID})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestWiki(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana, ben := f.user(t, "Ana"), f.user(t, "Ben")

	page, err := f.svc.CreateWikiPage(ctx, ana, "Release Process", "v0")
	require.NoError(t, err)
	assert.Equal(t, "release-process", page.Slug)

	_, err = f.svc.CreateWikiPage(ctx, ben, "release process", "dup")
	assert.ErrorIs(t, err, docstore.ErrAlreadyExists)

	_, err = f.svc.EditWikiPage(ctx, ben, "release-process", "Release Process", "v1")
	require.NoError(t, err)
	history, err := f.svc.WikiHistory(ctx, ana, "release-process")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "v0", history[0].Content)

	got, err := f.svc.GetWikiPage(ctx, ana, "release-process")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content)
	assert.Equal(t, "Ben", got.LastEditedBy)
}

func TestAuditLogIsAdminOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.user(t, "Ana")
	root := f.admin(t, "Root")
	p, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Apollo"})
	require.NoError(t, err)
	_, err = f.svc.UpdateProject(ctx, ana, p.ID, domain.SetProjectStatus{Status: domain.ProjectOnHold})
	require.NoError(t, err)

	_, err = f.svc.AuditLog(ctx, ana, audit.Filter{})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.ListProfiles(ctx, ana)
	assert.ErrorIs(t, err, ErrForbidden)

	entries, err := f.svc.AuditLog(ctx, root, audit.Filter{EntityID: p.ID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Updated project", entries[0].Action)
	assert.Equal(t, "Created project", entries[1].Action)

	profiles, err := f.svc.ListProfiles(ctx, root)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestUploadAttachment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana, eve := f.user(t, "Ana"), f.user(t, "Eve")
	p, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Apollo"})
	require.NoError(t, err)
	task, err := f.svc.CreateTask(ctx, ana, p.ID, TaskInput{Title: "T"})
	require.NoError(t, err)

	_, err = f.svc.Upload(ctx, eve, UploadInput{Entity: AttachTask, EntityID: task.ID, Name: "x.txt", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrForbidden)

	a, err := f.svc.Upload(ctx, ana, UploadInput{Entity: AttachTask, EntityID: task.ID, Name: "../../design.pdf", MimeType: "application/pdf", Body: strings.NewReader("%PDF-1.7")})
	require.NoError(t, err)
	assert.Equal(t, "design.pdf", a.Name)
	assert.EqualValues(t, 8, a.Size)

	updated, err := f.svc.GetTask(ctx, ana, task.ID)
	require.NoError(t, err)
	assert.Equal(t, a.URL(), updated.AttachmentURL)

	_, path, err := f.svc.OpenAttachment(ctx, ana, a.ID)
	require.NoError(t, err)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(body))

	_, _, err = f.svc.OpenAttachment(ctx, eve, a.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUploadCleansUpWhenLinkFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.user(t, "Ana")
	p, err := f.svc.CreateProject(ctx, ana, ProjectInput{Name: "Apollo"})
	require.NoError(t, err)
	task, err := f.svc.CreateTask(ctx, ana, p.ID, TaskInput{Title: "T"})
	require.NoError(t, err)

	// An executor over an empty store cannot find the task to link.
	b, err := docstore.OpenSQLite(t.TempDir())
	require.NoError(t, err)
	empty := docstore.New(b)
	t.Cleanup(func() { empty.Close() })
	broken := *f.svc
	broken.exec = mutation.NewExecutor(empty, audit.NewWriter(empty, f.clock, zerolog.Nop()), f.clock, zerolog.Nop())

	_, err = broken.Upload(ctx, ana, UploadInput{Entity: AttachTask, EntityID: task.ID, Name: "x.txt", Body: strings.NewReader("x")})
	require.ErrorIs(t, err, docstore.ErrNotFound)

	docs, err := f.store.Query(ctx, domain.ColAttachments, docstore.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)
	files, err := os.ReadDir(filepath.Join(f.svc.uploadDir, p.ID))
	require.NoError(t, err)
	assert.Empty(t, files)
}
