package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"siteline/internal/domain"
)

const taskColumns = `id,sub_object_id,project_id,title,type,idx,status,deadline,priority,source_template_id,created_at,updated_at,completed_at`

func scanTask(row interface{ Scan(...any) error }) (domain.Task, error) {
	var t domain.Task
	var deadline, source, completed sql.NullString
	var priority sql.NullInt64
	err := row.Scan(&t.ID, &t.SubObjectID, &t.ProjectID, &t.Title, &t.Type, &t.Index, &t.Status,
		&deadline, &priority, &source, &t.CreatedAt, &t.UpdatedAt, &completed)
	if err != nil {
		return t, err
	}
	t.Deadline = stringPtr(deadline)
	t.Priority = intPtr(priority)
	t.SourceTemplateID = stringPtr(source)
	t.CompletedAt = stringPtr(completed)
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.SubObjectID, t.ProjectID, t.Title, t.Type, t.Index, t.Status,
		nullableStringPtr(t.Deadline), nullableIntPtr(t.Priority), nullableStringPtr(t.SourceTemplateID),
		t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return r.SetTaskAssignees(ctx, t.ID, t.Assignees)
}

// UpdateTask writes every mutable column. Assignees are written separately.
func (r Repo) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET title=?, type=?, idx=?, status=?, deadline=?, priority=?, source_template_id=?, updated_at=?, completed_at=? WHERE id=?`,
		t.Title, t.Type, t.Index, t.Status, nullableStringPtr(t.Deadline), nullableIntPtr(t.Priority),
		nullableStringPtr(t.SourceTemplateID), t.UpdatedAt, nullableStringPtr(t.CompletedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return mustAffect(res, "task", t.ID)
}

func (r Repo) UpdateTaskStatus(ctx context.Context, id, status, updatedAt string, completedAt *string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET status=?, updated_at=?, completed_at=? WHERE id=?`,
		status, updatedAt, nullableStringPtr(completedAt), id)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return mustAffect(res, "task", id)
}

func (r Repo) UpdateTaskIndex(ctx context.Context, id string, index int, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET idx=?, updated_at=? WHERE id=?`, index, updatedAt, id)
	if err != nil {
		return fmt.Errorf("update task index: %w", err)
	}
	return mustAffect(res, "task", id)
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res, "task", id)
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, notFound("task", id)
	}
	if err != nil {
		return t, err
	}
	t.Assignees, err = r.ListTaskAssignees(ctx, id)
	return t, err
}

func (r Repo) SetTaskAssignees(ctx context.Context, taskID string, assignees []string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id=?`, taskID); err != nil {
		return err
	}
	for _, a := range assignees {
		if _, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO task_assignees(task_id, actor_id) VALUES (?,?)`, taskID, a); err != nil {
			return fmt.Errorf("insert assignee: %w", err)
		}
	}
	return nil
}

func (r Repo) ListTaskAssignees(ctx context.Context, taskID string) ([]string, error) {
	return r.listIDs(ctx, `SELECT actor_id FROM task_assignees WHERE task_id=? ORDER BY actor_id`, taskID)
}

// TaskFilters narrows ListTasks. Zero values are ignored.
type TaskFilters struct {
	SubObjectID   string
	ProjectID     string
	Statuses      []string
	AssigneeID    string
	PublishedOnly bool
	Limit         int
}

// ListTasks returns tasks ordered by sub-object, index and creation.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.SubObjectID != "" {
		clauses = append(clauses, "t.sub_object_id=?")
		args = append(args, f.SubObjectID)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "t.project_id=?")
		args = append(args, f.ProjectID)
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "t.status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM task_assignees a WHERE a.task_id=t.id AND a.actor_id=?)")
		args = append(args, f.AssigneeID)
	}
	if f.PublishedOnly {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM projects p WHERE p.id=t.project_id AND p.status='PUBLISHED')")
	}
	cols := "t." + strings.ReplaceAll(taskColumns, ",", ",t.")
	query := `SELECT ` + cols + ` FROM tasks t WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY t.sub_object_id, t.idx, t.created_at, t.id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.fillAssignees(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Siblings returns every task of a sub-object, the scheduler's input.
func (r Repo) Siblings(ctx context.Context, subObjectID string) ([]domain.Task, error) {
	return r.ListTasks(ctx, TaskFilters{SubObjectID: subObjectID})
}

func (r Repo) fillAssignees(ctx context.Context, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]any, len(tasks))
	pos := make(map[string]int, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		pos[t.ID] = i
		tasks[i].Assignees = []string{}
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT task_id, actor_id FROM task_assignees WHERE task_id IN (`+placeholders(len(ids))+`) ORDER BY task_id, actor_id`, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var taskID, actorID string
		if err := rows.Scan(&taskID, &actorID); err != nil {
			return err
		}
		i := pos[taskID]
		tasks[i].Assignees = append(tasks[i].Assignees, actorID)
	}
	return rows.Err()
}

// CountTasksByStatus groups the tasks of a project by status.
func (r Repo) CountTasksByStatus(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks WHERE project_id=? GROUP BY status`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		res[status] = n
	}
	return res, rows.Err()
}

// RelinkTaskSources points every task cloned from oldID at newID.
func (r Repo) RelinkTaskSources(ctx context.Context, oldID, newID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET source_template_id=? WHERE source_template_id=?`, newID, oldID)
	if err != nil {
		return 0, fmt.Errorf("relink task sources: %w", err)
	}
	return res.RowsAffected()
}
