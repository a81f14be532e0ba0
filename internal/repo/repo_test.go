package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/events"
	"siteline/internal/migrate"
	"siteline/internal/repo"
)

const ts = "2024-01-01T00:00:00Z"

func newRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}, context.Background()
}

// seed creates a project with one object and one sub-object worked by w1.
func seed(t *testing.T, r repo.Repo, ctx context.Context, status string) domain.SubObject {
	t.Helper()
	require.NoError(t, r.InsertActor(ctx, domain.Actor{ID: "w1", Role: domain.RoleWorker, CreatedAt: ts}))
	require.NoError(t, r.InsertProject(ctx, domain.Project{ID: "p1", Name: "Block A", Status: status, CreatedAt: ts, UpdatedAt: ts}))
	require.NoError(t, r.InsertObject(ctx, domain.ConstructionObject{ID: "o1", ProjectID: "p1", Name: "Building", CreatedAt: ts}))
	sub := domain.SubObject{ID: "s1", ObjectID: "o1", ProjectID: "p1", Name: "Bathroom", Workers: []string{"w1"}, CreatedAt: ts}
	require.NoError(t, r.InsertSubObject(ctx, sub))
	return sub
}

func task(id string, index int, status string) domain.Task {
	return domain.Task{
		ID: id, SubObjectID: "s1", ProjectID: "p1", Title: id, Type: domain.TaskSequential,
		Index: index, Status: status, Assignees: []string{"w1"}, CreatedAt: ts, UpdatedAt: ts,
	}
}

func TestTaskRoundTrip(t *testing.T) {
	r, ctx := newRepo(t)
	seed(t, r, ctx, domain.ProjectDraft)

	prio := 2
	deadline := "2024-03-01"
	in := task("t1", 0, domain.StatusActive)
	in.Priority = &prio
	in.Deadline = &deadline
	require.NoError(t, r.InsertTask(ctx, in))

	got, err := r.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, in, got)

	done := ts
	require.NoError(t, r.UpdateTaskStatus(ctx, "t1", domain.StatusCompleted, ts, &done))
	got, err = r.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	_, err = r.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, r.UpdateTaskIndex(ctx, "missing", 1, ts), domain.ErrNotFound)
}

func TestListTasksFilters(t *testing.T) {
	r, ctx := newRepo(t)
	seed(t, r, ctx, domain.ProjectDraft)
	require.NoError(t, r.InsertTask(ctx, task("a", 0, domain.StatusActive)))
	b := task("b", 1, domain.StatusLocked)
	b.Assignees = nil
	require.NoError(t, r.InsertTask(ctx, b))

	all, err := r.Siblings(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, []string{}, all[1].Assignees)

	mine, err := r.ListTasks(ctx, repo.TaskFilters{AssigneeID: "w1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	locked, err := r.ListTasks(ctx, repo.TaskFilters{Statuses: []string{domain.StatusLocked}})
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, "b", locked[0].ID)

	published, err := r.ListTasks(ctx, repo.TaskFilters{PublishedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, published)

	counts, err := r.CountTasksByStatus(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{domain.StatusActive: 1, domain.StatusLocked: 1}, counts)
}

func TestDeletingSubObjectCascades(t *testing.T) {
	r, ctx := newRepo(t)
	seed(t, r, ctx, domain.ProjectPublished)
	require.NoError(t, r.InsertTask(ctx, task("a", 0, domain.StatusActive)))
	require.NoError(t, r.InsertChecklistItem(ctx, domain.ChecklistItem{ID: "i1", TaskID: "a", Description: "x"}))

	require.NoError(t, r.DeleteSubObject(ctx, "s1"))
	_, err := r.GetTask(ctx, "a")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	items, err := r.ListChecklistItems(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReplaceReport(t *testing.T) {
	r, ctx := newRepo(t)
	seed(t, r, ctx, domain.ProjectPublished)
	require.NoError(t, r.InsertTask(ctx, task("a", 0, domain.StatusActive)))
	require.NoError(t, r.InsertChecklistItem(ctx, domain.ChecklistItem{ID: "i1", TaskID: "a", Description: "x"}))

	_, err := r.GetReport(ctx, "a")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	first := domain.Report{TaskID: "a", ActorID: "w1", Comment: "first", SubmittedAt: ts,
		Answers: []domain.ChecklistAnswer{{ChecklistItemID: "i1", Completed: true}},
		Photos:  []domain.PhotoRef{{ChecklistItemID: "i1", Ref: "tasks/a/1.jpg"}}}
	require.NoError(t, r.ReplaceReport(ctx, first))
	second := domain.Report{TaskID: "a", ActorID: "w1", SubmittedAt: ts,
		Answers: []domain.ChecklistAnswer{{ChecklistItemID: "i1", Completed: true}}}
	require.NoError(t, r.ReplaceReport(ctx, second))

	got, err := r.GetReport(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got.Comment)
	assert.Len(t, got.Answers, 1)
	assert.Empty(t, got.Photos)
}

func TestTemplateUsageAndRelink(t *testing.T) {
	r, ctx := newRepo(t)
	meth := "Use a level"
	for _, id := range []string{"c1", "c2"} {
		require.NoError(t, r.InsertChecklistTemplate(ctx, domain.ChecklistTemplate{ID: id, Name: id, CreatedAt: ts, UpdatedAt: ts,
			Items: []domain.ChecklistTemplateItem{{Description: "Check", Methodology: &meth}}}))
	}
	require.NoError(t, r.InsertSubObjectTemplate(ctx, domain.SubObjectTemplate{ID: "st1", Name: "Room", CreatedAt: ts, UpdatedAt: ts,
		Tasks: []domain.TaskTemplate{{Name: "A", ChecklistTemplateID: "c1"}, {Name: "B", ChecklistTemplateID: "c1", OrderIndex: 1}}}))

	ids, refs, err := r.ChecklistTemplateUsage(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"st1"}, ids)
	assert.Equal(t, 2, refs)

	n, err := r.RelinkChecklistTemplate(ctx, "c1", "c2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, r.DeleteChecklistTemplate(ctx, "c1"))

	st, err := r.GetSubObjectTemplate(ctx, "st1")
	require.NoError(t, err)
	for _, tt := range st.Tasks {
		assert.Equal(t, "c2", tt.ChecklistTemplateID)
	}
	c2, err := r.GetChecklistTemplate(ctx, "c2")
	require.NoError(t, err)
	require.Len(t, c2.Items, 1)
	assert.Equal(t, meth, *c2.Items[0].Methodology)
}

func TestReferencedChecklistTemplateCannotBeDeleted(t *testing.T) {
	r, ctx := newRepo(t)
	require.NoError(t, r.InsertChecklistTemplate(ctx, domain.ChecklistTemplate{ID: "c1", Name: "c1", CreatedAt: ts, UpdatedAt: ts}))
	require.NoError(t, r.InsertSubObjectTemplate(ctx, domain.SubObjectTemplate{ID: "st1", Name: "Room", CreatedAt: ts, UpdatedAt: ts,
		Tasks: []domain.TaskTemplate{{Name: "A", ChecklistTemplateID: "c1"}}}))
	assert.Error(t, r.DeleteChecklistTemplate(ctx, "c1"))
}

func TestAPIKeys(t *testing.T) {
	r, ctx := newRepo(t)
	require.NoError(t, r.InsertActor(ctx, domain.Actor{ID: "w1", Role: domain.RoleWorker, CreatedAt: ts}))
	hash := repo.HashAPIKey("sl_secret")
	require.NoError(t, r.InsertAPIKey(ctx, domain.APIKey{ID: "k1", ActorID: "w1", KeyHash: hash}))

	key, err := r.GetAPIKeyByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "w1", key.ActorID)
	assert.NotEmpty(t, key.CreatedAt)

	_, err = r.GetAPIKeyByHash(ctx, repo.HashAPIKey("other"))
	assert.ErrorIs(t, err, repo.ErrNotFound)

	keys, err := r.ListAPIKeys(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	require.NoError(t, r.DeleteAPIKey(ctx, "k1"))
	assert.ErrorIs(t, r.DeleteAPIKey(ctx, "k1"), repo.ErrNotFound)
}

func TestEventCursors(t *testing.T) {
	r, ctx := newRepo(t)
	w := events.Writer{}
	for _, typ := range []string{events.TaskCreated, events.TaskStatusChanged, events.ReviewDecided} {
		require.NoError(t, w.Append(ctx, r.DB, typ, "p1", "task", "t1", "w1", nil))
	}
	require.NoError(t, w.Append(ctx, r.DB, events.ActorCreated, "", "actor", "w2", "admin", nil))

	after, err := r.EventsAfter(ctx, 10, 1, repo.EventFilters{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, events.TaskStatusChanged, after[0].Type)
	assert.Equal(t, "{}", after[0].Payload)

	latest, err := r.LatestEvents(ctx, 2, 0, repo.EventFilters{})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, events.ActorCreated, latest[0].Type)
	assert.Empty(t, latest[0].ProjectID)

	id, err := r.LatestEventID(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, id)
}
