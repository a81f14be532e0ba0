package engine_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteline/internal/config"
	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/engine"
	"siteline/internal/evidence"
	"siteline/internal/metrics"
	"siteline/internal/migrate"
	"siteline/internal/notify"
	"siteline/internal/scheduler"
)

var (
	admin     = domain.Actor{ID: "admin", Role: domain.RoleSuperAdmin}
	estimator = domain.Actor{ID: "est", Role: domain.RoleEstimator}
	worker    = domain.Actor{ID: "w1", Role: domain.RoleWorker}
	outsider  = domain.Actor{ID: "w2", Role: domain.RoleWorker}
	foreman   = domain.Actor{ID: "fm", Role: domain.RoleForeman}
	manager   = domain.Actor{ID: "pm", Role: domain.RolePM}
)

type testEnv struct {
	Engine   engine.Engine
	Ctx      context.Context
	Notes    *notify.Recorder
	Metrics  *metrics.Metrics
	Project  domain.Project
	Object   domain.ConstructionObject
	Sub      domain.SubObject
	Template domain.ChecklistTemplate
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	rec := &notify.Recorder{}
	eng.Notify = rec
	eng.Evidence = evidence.NewMemory()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	eng.Metrics = m

	ctx := context.Background()
	for _, a := range []domain.Actor{admin, estimator, worker, outsider, foreman, manager} {
		a.CreatedAt = "2024-01-01T00:00:00Z"
		require.NoError(t, eng.Repo.InsertActor(ctx, a))
	}
	env := &testEnv{Engine: eng, Ctx: ctx, Notes: rec, Metrics: m}

	env.Project, err = eng.CreateProject(ctx, estimator, engine.ProjectInput{Name: "Block A"})
	require.NoError(t, err)
	env.Object, err = eng.CreateObject(ctx, estimator, engine.ObjectInput{ProjectID: env.Project.ID, Name: "Building 1", Address: "1 Main St"})
	require.NoError(t, err)
	env.Sub, err = eng.CreateSubObject(ctx, estimator, engine.SubObjectInput{ObjectID: env.Object.ID, Name: "Bathroom", Workers: []string{worker.ID}})
	require.NoError(t, err)
	env.Template, err = eng.CreateChecklistTemplate(ctx, estimator, engine.ChecklistTemplateInput{
		Name: "Tiling",
		Items: []domain.ChecklistTemplateItem{
			{Description: "Surface primed", OrderIndex: 0},
			{Description: "Tiles laid", OrderIndex: 1, Methodology: strPtr("Check level every row")},
		},
	})
	require.NoError(t, err)
	_, err = eng.PublishProject(ctx, manager, env.Project.ID)
	require.NoError(t, err)
	return env
}

func strPtr(s string) *string { return &s }

func (env *testEnv) task(t *testing.T, title, taskType string, p scheduler.Placement) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, estimator, engine.TaskCreateOptions{
		SubObjectID:         env.Sub.ID,
		Title:               title,
		Type:                taskType,
		Placement:           p,
		ChecklistTemplateID: env.Template.ID,
	})
	require.NoError(t, err)
	return task
}

func (env *testEnv) status(t *testing.T, id string) string {
	t.Helper()
	task, err := env.Engine.Repo.GetTask(env.Ctx, id)
	require.NoError(t, err)
	return task.Status
}

// submit answers every item of the task as completed.
func (env *testEnv) submit(t *testing.T, id string) domain.TaskDetail {
	t.Helper()
	cl, err := env.Engine.GetChecklist(env.Ctx, worker, id)
	require.NoError(t, err)
	answers := make([]domain.ChecklistAnswer, 0, len(cl.Items))
	for _, it := range cl.Items {
		answers = append(answers, domain.ChecklistAnswer{ChecklistItemID: it.ID, Completed: true})
	}
	d, err := env.Engine.Submit(env.Ctx, worker, engine.SubmitInput{TaskID: id, Comment: "done", Answers: answers})
	require.NoError(t, err)
	return d
}

func (env *testEnv) complete(t *testing.T, id string) {
	t.Helper()
	env.submit(t, id)
	_, err := env.Engine.Decide(env.Ctx, foreman, id, true, "")
	require.NoError(t, err)
	_, err = env.Engine.Decide(env.Ctx, manager, id, true, "")
	require.NoError(t, err)
}

func (env *testEnv) assertInvariant(t *testing.T) {
	t.Helper()
	siblings, err := env.Engine.Repo.Siblings(env.Ctx, env.Sub.ID)
	require.NoError(t, err)
	assert.Empty(t, scheduler.Violations(siblings))
}

func TestSequentialTasksUnlockAfterFullApproval(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.task(t, "Prime", domain.TaskSequential, scheduler.Placement{})
	t2 := env.task(t, "Tile", domain.TaskSequential, scheduler.Placement{})
	assert.Equal(t, domain.StatusActive, t1.Status)
	assert.Equal(t, domain.StatusLocked, t2.Status)
	assert.Equal(t, 0, t1.Index)
	assert.Equal(t, 1, t2.Index)

	d := env.submit(t, t1.ID)
	assert.Equal(t, domain.StatusUnderReviewForeman, d.Task.Status)
	assert.Equal(t, domain.StatusLocked, env.status(t, t2.ID))

	task, err := env.Engine.Decide(env.Ctx, foreman, t1.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReviewPM, task.Status)
	assert.Equal(t, domain.StatusLocked, env.status(t, t2.ID))

	task, err = env.Engine.Decide(env.Ctx, manager, t1.ID, true, "looks good")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, domain.StatusActive, env.status(t, t2.ID))
	env.assertInvariant(t)

	assert.Equal(t, []string{notify.ReviewRequested, notify.ReviewRequested, notify.TaskCompleted}, env.Notes.Kinds(t1.ID))
	assert.Equal(t, []string{notify.TaskUnlocked}, env.Notes.Kinds(t2.ID))
}

func TestParallelGroupIsABarrier(t *testing.T) {
	env := newTestEnv(t)
	first := env.task(t, "Strip", domain.TaskSequential, scheduler.Placement{Mode: scheduler.PlaceIndex, Index: 1})
	env.complete(t, first.ID)

	t3 := env.task(t, "Plumbing", domain.TaskParallel, scheduler.Placement{Mode: scheduler.PlaceIndex, Index: 2})
	t4 := env.task(t, "Wiring", domain.TaskParallel, scheduler.Placement{Mode: scheduler.PlaceIndex, Index: 2})
	next := env.task(t, "Close walls", domain.TaskSequential, scheduler.Placement{Mode: scheduler.PlaceIndex, Index: 3})
	assert.Equal(t, domain.StatusActive, t3.Status)
	assert.Equal(t, domain.StatusActive, t4.Status)
	assert.Equal(t, domain.StatusLocked, next.Status)

	env.complete(t, t3.ID)
	assert.Equal(t, domain.StatusLocked, env.status(t, next.ID))
	assert.Equal(t, domain.StatusActive, env.status(t, t4.ID))
	env.assertInvariant(t)

	env.complete(t, t4.ID)
	assert.Equal(t, domain.StatusActive, env.status(t, next.ID))
	env.assertInvariant(t)
}

func TestSubmitMissingPhotoFails(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Waterproof", domain.TaskSequential, scheduler.Placement{})
	cl, err := env.Engine.GetChecklist(env.Ctx, worker, task.ID)
	require.NoError(t, err)
	_, err = env.Engine.SetItemPhotoRequired(env.Ctx, estimator, task.ID, cl.Items[1].ID, true)
	require.NoError(t, err)

	answers := []domain.ChecklistAnswer{
		{ChecklistItemID: cl.Items[0].ID, Completed: true},
		{ChecklistItemID: cl.Items[1].ID, Completed: true},
	}
	_, err = env.Engine.Submit(env.Ctx, worker, engine.SubmitInput{TaskID: task.ID, Answers: answers})
	require.ErrorIs(t, err, domain.ErrValidationFailed)
	assert.Contains(t, err.Error(), "requires a photo")
	assert.Equal(t, domain.StatusActive, env.status(t, task.ID))
	d, err := env.Engine.TaskDetail(env.Ctx, worker, task.ID)
	require.NoError(t, err)
	assert.Nil(t, d.Report)
	for _, it := range d.Checklist.Items {
		assert.False(t, it.IsCompleted)
	}

	ref, err := env.Engine.UploadEvidence(env.Ctx, worker, task.ID, "membrane.jpg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	d, err = env.Engine.Submit(env.Ctx, worker, engine.SubmitInput{
		TaskID:  task.ID,
		Answers: answers,
		Photos:  []domain.PhotoRef{{ChecklistItemID: cl.Items[1].ID, Ref: ref}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReviewForeman, d.Task.Status)
	require.NotNil(t, d.Report)
	assert.Equal(t, ref, d.Report.Photos[0].Ref)
}

func TestSubmitCollectsEveryIssue(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Grout", domain.TaskSequential, scheduler.Placement{})
	_, err := env.Engine.Submit(env.Ctx, worker, engine.SubmitInput{
		TaskID:  task.ID,
		Answers: []domain.ChecklistAnswer{{ChecklistItemID: "nope", Completed: true}},
		Photos:  []domain.PhotoRef{{ChecklistItemID: "nope", Ref: "tasks/x/y.jpg"}},
	})
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Issues, 4)
}

func TestForemanRejectThenResubmit(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Grout", domain.TaskSequential, scheduler.Placement{})
	env.submit(t, task.ID)

	_, err := env.Engine.Decide(env.Ctx, foreman, task.ID, false, "   ")
	require.ErrorIs(t, err, domain.ErrValidationFailed)
	assert.Equal(t, domain.StatusUnderReviewForeman, env.status(t, task.ID))

	rejected, err := env.Engine.Decide(env.Ctx, foreman, task.ID, false, "redo grouting")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReworkForeman, rejected.Status)

	d := env.submit(t, task.ID)
	assert.Equal(t, domain.StatusUnderReviewForeman, d.Task.Status)
	require.Len(t, d.Reviews, 1)
	assert.Equal(t, "redo grouting", d.Reviews[0].Comment)
	assert.Equal(t, domain.StatusReworkForeman, d.Reviews[0].ToStatus)
	assert.Equal(t, []string{notify.ReviewRequested, notify.ReworkAssigned, notify.ReviewRequested}, env.Notes.Kinds(task.ID))
}

func TestPMRejectGoesToPMRework(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Grout", domain.TaskSequential, scheduler.Placement{})
	env.submit(t, task.ID)
	_, err := env.Engine.Decide(env.Ctx, foreman, task.ID, true, "")
	require.NoError(t, err)
	rework, err := env.Engine.Decide(env.Ctx, manager, task.ID, false, "wrong colour")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReworkPM, rework.Status)
	d := env.submit(t, task.ID)
	assert.Equal(t, domain.StatusUnderReviewForeman, d.Task.Status)
}

func TestManagerBypassesForemanTier(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.task(t, "Prime", domain.TaskSequential, scheduler.Placement{})
	t2 := env.task(t, "Tile", domain.TaskSequential, scheduler.Placement{})
	env.submit(t, t1.ID)

	done, err := env.Engine.Decide(env.Ctx, manager, t1.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Equal(t, domain.StatusActive, env.status(t, t2.ID))

	d, err := env.Engine.TaskDetail(env.Ctx, manager, t1.ID)
	require.NoError(t, err)
	require.Len(t, d.Reviews, 1)
	assert.Equal(t, domain.StatusUnderReviewForeman, d.Reviews[0].FromStatus)
	assert.Equal(t, domain.StatusCompleted, d.Reviews[0].ToStatus)
	env.assertInvariant(t)
}

func TestRoleGates(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Prime", domain.TaskSequential, scheduler.Placement{})

	_, err := env.Engine.Decide(env.Ctx, foreman, task.ID, true, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.Engine.Submit(env.Ctx, outsider, engine.SubmitInput{TaskID: task.ID})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = env.Engine.Submit(env.Ctx, foreman, engine.SubmitInput{TaskID: task.ID})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	env.submit(t, task.ID)
	_, err = env.Engine.Decide(env.Ctx, worker, task.ID, true, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = env.Engine.Decide(env.Ctx, manager, task.ID, false, "not foreman tier")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.StatusUnderReviewForeman, env.status(t, task.ID))

	_, err = env.Engine.CreateTask(env.Ctx, worker, engine.TaskCreateOptions{SubObjectID: env.Sub.ID, Title: "x"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = env.Engine.ReviewQueue(env.Ctx, estimator, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSubmitOutsideWorkableStatesIsRejected(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.task(t, "Prime", domain.TaskSequential, scheduler.Placement{})
	t2 := env.task(t, "Tile", domain.TaskSequential, scheduler.Placement{})

	_, err := env.Engine.Submit(env.Ctx, worker, engine.SubmitInput{TaskID: t2.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	env.submit(t, t1.ID)
	before, err := env.Engine.TaskDetail(env.Ctx, worker, t1.ID)
	require.NoError(t, err)
	_, err = env.Engine.Submit(env.Ctx, worker, engine.SubmitInput{TaskID: t1.ID, Comment: "again"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	after, err := env.Engine.TaskDetail(env.Ctx, worker, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Task.Status, after.Task.Status)
	assert.Equal(t, before.Report, after.Report)
}

func TestDraftProjectsAreHidden(t *testing.T) {
	env := newTestEnv(t)
	draft, err := env.Engine.CreateProject(env.Ctx, estimator, engine.ProjectInput{Name: "Tower B"})
	require.NoError(t, err)
	obj, err := env.Engine.CreateObject(env.Ctx, estimator, engine.ObjectInput{ProjectID: draft.ID, Name: "Core"})
	require.NoError(t, err)
	sub, err := env.Engine.CreateSubObject(env.Ctx, estimator, engine.SubObjectInput{ObjectID: obj.ID, Name: "Lobby", Workers: []string{worker.ID}})
	require.NoError(t, err)
	task, err := env.Engine.CreateTask(env.Ctx, estimator, engine.TaskCreateOptions{SubObjectID: sub.ID, Title: "Screed"})
	require.NoError(t, err)

	for _, a := range []domain.Actor{worker, foreman} {
		_, err = env.Engine.GetProject(env.Ctx, a, draft.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = env.Engine.GetTask(env.Ctx, a, task.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		projects, err := env.Engine.ListProjects(env.Ctx, a)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, env.Project.ID, projects[0].ID)
	}
	mine, err := env.Engine.MyTasks(env.Ctx, worker)
	require.NoError(t, err)
	assert.Empty(t, mine)

	_, err = env.Engine.GetTask(env.Ctx, estimator, task.ID)
	assert.NoError(t, err)

	_, err = env.Engine.PublishProject(env.Ctx, manager, env.Project.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPlacementRules(t *testing.T) {
	env := newTestEnv(t)
	first := env.task(t, "Prime", domain.TaskSequential, scheduler.Placement{})

	_, err := env.Engine.CreateTask(env.Ctx, estimator, engine.TaskCreateOptions{
		SubObjectID: env.Sub.ID, Title: "Dup", Placement: scheduler.Placement{Mode: scheduler.PlaceIndex, Index: 0},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPlacement)
	_, err = env.Engine.CreateTask(env.Ctx, estimator, engine.TaskCreateOptions{
		SubObjectID: env.Sub.ID, Title: "Par", Type: domain.TaskParallel, Placement: scheduler.Placement{Mode: scheduler.PlaceIndex, Index: 0},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPlacement)

	front := env.task(t, "Survey", domain.TaskSequential, scheduler.Placement{Mode: scheduler.PlaceStart})
	assert.Equal(t, 0, front.Index)
	assert.Equal(t, domain.StatusActive, front.Status)
	relocked, err := env.Engine.Repo.GetTask(env.Ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, relocked.Index)
	assert.Equal(t, domain.StatusLocked, relocked.Status)

	mid := env.task(t, "Mark out", domain.TaskSequential, scheduler.Placement{Mode: scheduler.PlaceAfter, AfterTaskID: front.ID})
	assert.Equal(t, 1, mid.Index)
	shifted, err := env.Engine.Repo.GetTask(env.Ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, shifted.Index)

	env.submit(t, front.ID)
	_, err = env.Engine.CreateTask(env.Ctx, estimator, engine.TaskCreateOptions{
		SubObjectID: env.Sub.ID, Title: "Late", Placement: scheduler.Placement{Mode: scheduler.PlaceStart},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPlacement)
	env.assertInvariant(t)
}

func TestMoveDeleteAndTypeChangeReconcile(t *testing.T) {
	env := newTestEnv(t)
	a := env.task(t, "A", domain.TaskSequential, scheduler.Placement{})
	b := env.task(t, "B", domain.TaskSequential, scheduler.Placement{})

	moved, err := env.Engine.MoveTask(env.Ctx, estimator, b.ID, scheduler.Placement{Mode: scheduler.PlaceStart})
	require.NoError(t, err)
	assert.Equal(t, 0, moved.Index)
	assert.Equal(t, domain.StatusActive, moved.Status)
	assert.Equal(t, domain.StatusLocked, env.status(t, a.ID))
	env.assertInvariant(t)

	_, err = env.Engine.ChangeTaskType(env.Ctx, estimator, a.ID, domain.TaskParallel)
	require.NoError(t, err)
	_, err = env.Engine.MoveTask(env.Ctx, estimator, a.ID, scheduler.Placement{Mode: scheduler.PlaceIndex, Index: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidPlacement)

	require.NoError(t, env.Engine.DeleteTask(env.Ctx, estimator, b.ID))
	assert.Equal(t, domain.StatusActive, env.status(t, a.ID))
	env.assertInvariant(t)

	changed, err := env.Engine.ReconcileSubObject(env.Ctx, estimator, env.Sub.ID)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestMaterializeRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Tile", domain.TaskSequential, scheduler.Placement{})
	cl, err := env.Engine.GetChecklist(env.Ctx, estimator, task.ID)
	require.NoError(t, err)
	require.Len(t, cl.Items, len(env.Template.Items))
	for i, it := range cl.Items {
		src := env.Template.Items[i]
		assert.Equal(t, src.Description, it.Description)
		assert.Equal(t, src.IsPhotoRequired, it.IsPhotoRequired)
		assert.Equal(t, src.Methodology, it.Methodology)
		assert.False(t, it.IsCompleted)
		assert.Equal(t, i, it.OrderIndex)
	}
	require.NotNil(t, task.SourceTemplateID)
	assert.Equal(t, env.Template.ID, *task.SourceTemplateID)

	_, err = env.Engine.Materialize(env.Ctx, "missing", task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChecklistEditing(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Tile", domain.TaskSequential, scheduler.Placement{})

	added, err := env.Engine.AddChecklistItem(env.Ctx, estimator, task.ID, engine.ChecklistItemInput{Description: "Clean joints"})
	require.NoError(t, err)
	assert.Equal(t, 2, added.OrderIndex)

	cl, err := env.Engine.MoveChecklistItem(env.Ctx, estimator, task.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, "Clean joints", cl.Items[0].Description)
	for i, it := range cl.Items {
		assert.Equal(t, i, it.OrderIndex)
	}

	cl, err = env.Engine.DeleteChecklistItem(env.Ctx, estimator, task.ID, cl.Items[1].ID)
	require.NoError(t, err)
	require.Len(t, cl.Items, 2)
	stored, err := env.Engine.GetChecklist(env.Ctx, estimator, task.ID)
	require.NoError(t, err)
	for i, it := range stored.Items {
		assert.Equal(t, i, it.OrderIndex)
	}

	_, err = env.Engine.MoveChecklistItem(env.Ctx, estimator, task.ID, 0, 5)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	it, err := env.Engine.SetItemMethodology(env.Ctx, estimator, task.ID, stored.Items[0].ID, strPtr("Use a sponge"))
	require.NoError(t, err)
	assert.Equal(t, "Use a sponge", *it.Methodology)
	it, err = env.Engine.SetItemDescription(env.Ctx, estimator, task.ID, stored.Items[0].ID, "Wipe joints")
	require.NoError(t, err)
	assert.Equal(t, "Wipe joints", it.Description)

	_, err = env.Engine.ToggleChecklistItem(env.Ctx, outsider, task.ID, it.ID, true)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	toggled, err := env.Engine.ToggleChecklistItem(env.Ctx, worker, task.ID, it.ID, true)
	require.NoError(t, err)
	assert.True(t, toggled.IsCompleted)

	env.submit(t, task.ID)
	_, err = env.Engine.AddChecklistItem(env.Ctx, estimator, task.ID, engine.ChecklistItemInput{Description: "Late"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = env.Engine.ToggleChecklistItem(env.Ctx, worker, task.ID, it.ID, false)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApplyChecklistTemplateReplacesItems(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, estimator, engine.TaskCreateOptions{SubObjectID: env.Sub.ID, Title: "Paint"})
	require.NoError(t, err)
	_, err = env.Engine.AddChecklistItem(env.Ctx, estimator, task.ID, engine.ChecklistItemInput{Description: "Ad hoc"})
	require.NoError(t, err)

	cl, err := env.Engine.ApplyChecklistTemplate(env.Ctx, estimator, task.ID, env.Template.ID)
	require.NoError(t, err)
	require.Len(t, cl.Items, 2)
	assert.Equal(t, "Surface primed", cl.Items[0].Description)
	got, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SourceTemplateID)
	assert.Equal(t, env.Template.ID, *got.SourceTemplateID)
}

func TestApplySubObjectTemplate(t *testing.T) {
	env := newTestEnv(t)
	existing := env.task(t, "Demolish", domain.TaskSequential, scheduler.Placement{})
	tpl, err := env.Engine.CreateSubObjectTemplate(env.Ctx, estimator, engine.SubObjectTemplateInput{
		Name: "Standard bathroom",
		Tasks: []domain.TaskTemplate{
			{Name: "Plumbing", ChecklistTemplateID: env.Template.ID, OrderIndex: 0},
			{Name: "Wiring", ChecklistTemplateID: env.Template.ID, OrderIndex: 0},
			{Name: "Tiling", ChecklistTemplateID: env.Template.ID, OrderIndex: 1},
		},
	})
	require.NoError(t, err)

	created, err := env.Engine.ApplySubObjectTemplate(env.Ctx, estimator, env.Sub.ID, tpl.ID)
	require.NoError(t, err)
	require.Len(t, created, 3)
	for _, task := range created[:2] {
		assert.Equal(t, domain.TaskParallel, task.Type)
		assert.Equal(t, existing.Index+1, task.Index)
		assert.Equal(t, domain.StatusLocked, task.Status)
		assert.Equal(t, []string{worker.ID}, task.Assignees)
	}
	assert.Equal(t, domain.TaskSequential, created[2].Type)
	assert.Equal(t, existing.Index+2, created[2].Index)

	env.complete(t, existing.ID)
	assert.Equal(t, domain.StatusActive, env.status(t, created[0].ID))
	assert.Equal(t, domain.StatusActive, env.status(t, created[1].ID))
	assert.Equal(t, domain.StatusLocked, env.status(t, created[2].ID))
	env.assertInvariant(t)

	cl, err := env.Engine.GetChecklist(env.Ctx, worker, created[0].ID)
	require.NoError(t, err)
	assert.Len(t, cl.Items, 2)

	_, err = env.Engine.CreateSubObjectTemplate(env.Ctx, estimator, engine.SubObjectTemplateInput{
		Name:  "Broken",
		Tasks: []domain.TaskTemplate{{Name: "X", ChecklistTemplateID: "missing"}},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteReferencedTemplateConflicts(t *testing.T) {
	env := newTestEnv(t)
	tpl, err := env.Engine.CreateSubObjectTemplate(env.Ctx, estimator, engine.SubObjectTemplateInput{
		Name:  "Room",
		Tasks: []domain.TaskTemplate{{Name: "Tiling", ChecklistTemplateID: env.Template.ID}},
	})
	require.NoError(t, err)

	err = env.Engine.DeleteChecklistTemplate(env.Ctx, estimator, env.Template.ID)
	require.ErrorIs(t, err, domain.ErrConflict)
	var conflict domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 1, conflict.References)

	usage, err := env.Engine.ChecklistTemplateUsage(env.Ctx, env.Template.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{tpl.ID}, usage.SubObjectTemplateIDs)
}

func TestReplaceChecklistTemplateRelinks(t *testing.T) {
	env := newTestEnv(t)
	tpl, err := env.Engine.CreateSubObjectTemplate(env.Ctx, estimator, engine.SubObjectTemplateInput{
		Name:  "Room",
		Tasks: []domain.TaskTemplate{{Name: "Tiling", ChecklistTemplateID: env.Template.ID}},
	})
	require.NoError(t, err)
	task := env.task(t, "Tile", domain.TaskSequential, scheduler.Placement{})

	res, err := env.Engine.ReplaceChecklistTemplate(env.Ctx, estimator, env.Template.ID, engine.ChecklistTemplateInput{
		Name:  "Tiling v2",
		Items: []domain.ChecklistTemplateItem{{Description: "Level checked"}},
	})
	require.NoError(t, err)
	assert.True(t, res.OldDeleted)
	assert.Empty(t, res.RelinkError)
	assert.EqualValues(t, 1, res.Relinked)
	assert.EqualValues(t, 1, res.TasksRelinked)

	_, err = env.Engine.GetChecklistTemplate(env.Ctx, env.Template.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	got, err := env.Engine.GetSubObjectTemplate(env.Ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, res.New.ID, got.Tasks[0].ChecklistTemplateID)
	relinked, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, res.New.ID, *relinked.SourceTemplateID)
}

func TestReplaceChecklistTemplateKeepsBothWhenRelinkFails(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateSubObjectTemplate(env.Ctx, estimator, engine.SubObjectTemplateInput{
		Name:  "Room",
		Tasks: []domain.TaskTemplate{{Name: "Tiling", ChecklistTemplateID: env.Template.ID}},
	})
	require.NoError(t, err)
	_, err = env.Engine.DB.Exec(`CREATE TRIGGER block_relink BEFORE UPDATE ON sub_object_template_tasks BEGIN SELECT RAISE(ABORT, 'relink blocked'); END`)
	require.NoError(t, err)

	res, err := env.Engine.ReplaceChecklistTemplate(env.Ctx, estimator, env.Template.ID, engine.ChecklistTemplateInput{Name: "Tiling v2"})
	require.NoError(t, err)
	assert.False(t, res.OldDeleted)
	assert.Contains(t, res.RelinkError, "relink blocked")

	_, err = env.Engine.GetChecklistTemplate(env.Ctx, env.Template.ID)
	assert.NoError(t, err)
	_, err = env.Engine.GetChecklistTemplate(env.Ctx, res.New.ID)
	assert.NoError(t, err)
}

func TestConcurrentParallelCompletion(t *testing.T) {
	env := newTestEnv(t)
	a := env.task(t, "Plumbing", domain.TaskParallel, scheduler.Placement{})
	b := env.task(t, "Wiring", domain.TaskParallel, scheduler.Placement{Mode: scheduler.PlaceIndex, Index: a.Index})
	next := env.task(t, "Close walls", domain.TaskSequential, scheduler.Placement{})
	for _, id := range []string{a.ID, b.ID} {
		env.submit(t, id)
		_, err := env.Engine.Decide(env.Ctx, foreman, id, true, "")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.Engine.Decide(env.Ctx, manager, id, true, "")
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, domain.StatusActive, env.status(t, next.ID))
	assert.Equal(t, []string{notify.TaskUnlocked}, env.Notes.Kinds(next.ID))
	env.assertInvariant(t)
}

func TestEventsAreAppendedWithChanges(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Prime", domain.TaskSequential, scheduler.Placement{})
	env.submit(t, task.ID)

	evts, err := env.Engine.Repo.EventsAfter(env.Ctx, 100, 0, repoFilter(task.ID))
	require.NoError(t, err)
	var types []string
	for _, e := range evts {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{"task.created", "report.submitted", "task.status.changed"}, types)
}

func TestActorsAndAPIKeys(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateActor(env.Ctx, estimator, engine.ActorInput{ID: "w3", Role: "WORKER"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = env.Engine.CreateActor(env.Ctx, admin, engine.ActorInput{ID: "w3", Role: "PLUMBER"})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
	a, err := env.Engine.CreateActor(env.Ctx, admin, engine.ActorInput{ID: "w3", Name: "Sam", Role: "worker"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleWorker, a.Role)

	raw, key, err := env.Engine.CreateAPIKey(env.Ctx, a, "", "phone")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "sl_"))
	assert.NotEqual(t, raw, key.KeyHash)
	resolved, err := env.Engine.ResolveAPIKey(env.Ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "w3", resolved.ID)

	_, _, err = env.Engine.CreateAPIKey(env.Ctx, a, "w1", "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	boot, err := env.Engine.Bootstrap(env.Ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, boot.Role)
}

func TestMetricsFollowCommittedTransitions(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.task(t, "Prime", domain.TaskSequential, scheduler.Placement{})
	env.task(t, "Tile", domain.TaskSequential, scheduler.Placement{})
	_, err := env.Engine.Submit(env.Ctx, worker, engine.SubmitInput{TaskID: t1.ID})
	require.Error(t, err)
	env.complete(t, t1.ID)

	assert.Equal(t, 1.0, counterValue(t, env.Metrics.SubmissionsRejected.WithLabelValues("validation_failed")))
	assert.Equal(t, 1.0, counterValue(t, env.Metrics.Unlocked))
	assert.Equal(t, 2.0, counterValue(t, env.Metrics.Reviews.WithLabelValues("approve")))
}

func TestReviewQueueAndMyTasks(t *testing.T) {
	env := newTestEnv(t)
	a := env.task(t, "A", domain.TaskParallel, scheduler.Placement{})
	b := env.task(t, "B", domain.TaskParallel, scheduler.Placement{Mode: scheduler.PlaceIndex, Index: a.Index})
	env.submit(t, a.ID)
	env.submit(t, b.ID)
	_, err := env.Engine.Decide(env.Ctx, foreman, b.ID, true, "")
	require.NoError(t, err)

	fq, err := env.Engine.ReviewQueue(env.Ctx, foreman, "")
	require.NoError(t, err)
	require.Len(t, fq, 1)
	assert.Equal(t, a.ID, fq[0].ID)
	pq, err := env.Engine.ReviewQueue(env.Ctx, manager, env.Project.ID)
	require.NoError(t, err)
	assert.Len(t, pq, 2)

	mine, err := env.Engine.MyTasks(env.Ctx, worker)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	none, err := env.Engine.MyTasks(env.Ctx, outsider)
	require.NoError(t, err)
	assert.Empty(t, none)
}
