package engine

import (
	"context"
	"database/sql"
	"strings"

	"siteline/internal/checklist"
	"siteline/internal/domain"
	"siteline/internal/engine/auth"
	"siteline/internal/events"
	"siteline/internal/repo"
	"siteline/internal/scheduler"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	SubObjectID         string
	Title               string
	Type                string
	Placement           scheduler.Placement
	Assignees           []string
	Deadline            *string
	Priority            *int
	ChecklistTemplateID string
}

// CreateTask places a new task among its siblings. Its initial status is
// ACTIVE when every earlier group is COMPLETED and LOCKED otherwise.
func (e Engine) CreateTask(ctx context.Context, actor domain.Actor, opts TaskCreateOptions) (domain.Task, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.Task{}, err
	}
	if err := required("title", opts.Title); err != nil {
		return domain.Task{}, err
	}
	if opts.Type == "" {
		opts.Type = domain.TaskSequential
	}
	opts.Type = strings.ToUpper(opts.Type)
	if err := validDeadline(opts.Deadline); err != nil {
		return domain.Task{}, err
	}
	var created domain.Task
	err := e.mutate(ctx, opts.SubObjectID, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		sub, err := r.GetSubObject(ctx, opts.SubObjectID)
		if err != nil {
			return err
		}
		siblings, err := r.Siblings(ctx, sub.ID)
		if err != nil {
			return err
		}
		index, shifted, err := scheduler.Place(siblings, opts.Type, opts.Placement)
		if err != nil {
			return err
		}
		assignees := opts.Assignees
		if assignees == nil {
			assignees = sub.Workers
		}
		assignees = dedupe(assignees)
		if err := ensureActors(ctx, r, assignees); err != nil {
			return err
		}
		now := e.ts()
		t := domain.Task{
			ID:          e.newID(),
			SubObjectID: sub.ID,
			ProjectID:   sub.ProjectID,
			Title:       strings.TrimSpace(opts.Title),
			Type:        opts.Type,
			Index:       index,
			Status:      scheduler.InitialStatus(shifted, index),
			Assignees:   assignees,
			Deadline:    opts.Deadline,
			Priority:    opts.Priority,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		var items []domain.ChecklistItem
		if opts.ChecklistTemplateID != "" {
			tpl, err := r.GetChecklistTemplate(ctx, opts.ChecklistTemplateID)
			if err != nil {
				return err
			}
			items = checklist.Materialize(tpl, t.ID, e.newID)
			t.SourceTemplateID = &tpl.ID
		}
		all := append(shifted, t)
		if err := scheduler.CheckStructure(all); err != nil {
			return err
		}
		if err := persistIndices(ctx, r, siblings, shifted, now); err != nil {
			return err
		}
		if err := r.InsertTask(ctx, t); err != nil {
			return err
		}
		for _, it := range items {
			if err := r.InsertChecklistItem(ctx, it); err != nil {
				return err
			}
		}
		if err := e.events().Append(ctx, tx, events.TaskCreated, t.ProjectID, "task", t.ID, actor.ID, events.EventPayload{
			"title":     t.Title,
			"type":      t.Type,
			"index":     t.Index,
			"status":    t.Status,
			"placement": opts.Placement.String(),
		}); err != nil {
			return err
		}
		after, err := e.reconcile(ctx, tx, r, all, actor.ID, fx)
		if err != nil {
			return err
		}
		created = after[len(after)-1]
		return nil
	})
	return created, err
}

// TaskUpdate carries optional changes; nil fields are left alone. An
// empty Deadline clears it.
type TaskUpdate struct {
	Title     *string
	Deadline  *string
	Priority  *int
	Assignees []string
	// ClearPriority drops the priority when Priority is nil.
	ClearPriority bool
}

func (e Engine) UpdateTask(ctx context.Context, actor domain.Actor, id string, up TaskUpdate) (domain.Task, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.Task{}, err
	}
	if up.Title != nil {
		if err := required("title", *up.Title); err != nil {
			return domain.Task{}, err
		}
	}
	if err := validDeadline(up.Deadline); err != nil {
		return domain.Task{}, err
	}
	current, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	var t domain.Task
	err = e.mutate(ctx, current.SubObjectID, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		var err error
		if t, err = r.GetTask(ctx, id); err != nil {
			return err
		}
		changed := []string{}
		if up.Title != nil {
			t.Title = strings.TrimSpace(*up.Title)
			changed = append(changed, "title")
		}
		if up.Deadline != nil {
			if *up.Deadline == "" {
				t.Deadline = nil
			} else {
				t.Deadline = up.Deadline
			}
			changed = append(changed, "deadline")
		}
		if up.Priority != nil || up.ClearPriority {
			t.Priority = up.Priority
			changed = append(changed, "priority")
		}
		t.UpdatedAt = e.ts()
		if err := r.UpdateTask(ctx, t); err != nil {
			return err
		}
		if up.Assignees != nil {
			assignees := dedupe(up.Assignees)
			if err := ensureActors(ctx, r, assignees); err != nil {
				return err
			}
			if err := r.SetTaskAssignees(ctx, t.ID, assignees); err != nil {
				return err
			}
			t.Assignees = assignees
			changed = append(changed, "assignees")
		}
		return e.events().Append(ctx, tx, events.TaskUpdated, t.ProjectID, "task", t.ID, actor.ID, events.EventPayload{"fields": changed})
	})
	return t, err
}

// MoveTask re-places a task among its siblings and reconciles the
// sub-object. Moves that would leave a reviewed, reworked or completed
// task behind an incomplete group fail with InvalidPlacement.
func (e Engine) MoveTask(ctx context.Context, actor domain.Actor, id string, p scheduler.Placement) (domain.Task, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.Task{}, err
	}
	current, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	var moved domain.Task
	err = e.mutate(ctx, current.SubObjectID, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		siblings, err := r.Siblings(ctx, current.SubObjectID)
		if err != nil {
			return err
		}
		var t domain.Task
		others := make([]domain.Task, 0, len(siblings))
		for _, s := range siblings {
			if s.ID == id {
				t = s
				continue
			}
			others = append(others, s)
		}
		if t.ID == "" {
			return repo.ErrNotFound
		}
		index, shifted, err := scheduler.Place(others, t.Type, p)
		if err != nil {
			return err
		}
		from := t.Index
		t.Index = index
		all := append(shifted, t)
		if err := scheduler.CheckStructure(all); err != nil {
			return err
		}
		if err := persistIndices(ctx, r, siblings, all, e.ts()); err != nil {
			return err
		}
		if err := e.events().Append(ctx, tx, events.TaskMoved, t.ProjectID, "task", t.ID, actor.ID, events.EventPayload{
			"from_index": from,
			"to_index":   index,
			"placement":  p.String(),
		}); err != nil {
			return err
		}
		after, err := e.reconcile(ctx, tx, r, all, actor.ID, fx)
		if err != nil {
			return err
		}
		moved = after[len(after)-1]
		return nil
	})
	return moved, err
}

// ChangeTaskType switches a task between SEQUENTIAL and PARALLEL. A
// SEQUENTIAL task may not share its index.
func (e Engine) ChangeTaskType(ctx context.Context, actor domain.Actor, id, taskType string) (domain.Task, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.Task{}, err
	}
	taskType = strings.ToUpper(taskType)
	if taskType != domain.TaskSequential && taskType != domain.TaskParallel {
		return domain.Task{}, domain.Placement("unknown task type %q", taskType)
	}
	current, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	var t domain.Task
	err = e.mutate(ctx, current.SubObjectID, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		siblings, err := r.Siblings(ctx, current.SubObjectID)
		if err != nil {
			return err
		}
		pos := -1
		for i := range siblings {
			if siblings[i].ID == id {
				pos = i
			}
		}
		if pos < 0 {
			return repo.ErrNotFound
		}
		from := siblings[pos].Type
		siblings[pos].Type = taskType
		siblings[pos].UpdatedAt = e.ts()
		if err := scheduler.CheckStructure(siblings); err != nil {
			return err
		}
		if err := r.UpdateTask(ctx, siblings[pos]); err != nil {
			return err
		}
		if err := e.events().Append(ctx, tx, events.TaskUpdated, siblings[pos].ProjectID, "task", id, actor.ID, events.EventPayload{
			"fields": []string{"type"},
			"from":   from,
			"to":     taskType,
		}); err != nil {
			return err
		}
		after, err := e.reconcile(ctx, tx, r, siblings, actor.ID, fx)
		if err != nil {
			return err
		}
		t = after[pos]
		return nil
	})
	return t, err
}

// DeleteTask removes a task with its checklist and report. Successors
// that were only waiting for it unlock in the same transaction.
func (e Engine) DeleteTask(ctx context.Context, actor domain.Actor, id string) error {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return err
	}
	current, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	return e.mutate(ctx, current.SubObjectID, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		t, err := r.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if err := r.DeleteTask(ctx, id); err != nil {
			return err
		}
		if err := e.events().Append(ctx, tx, events.TaskDeleted, t.ProjectID, "task", t.ID, actor.ID, events.EventPayload{"title": t.Title, "index": t.Index}); err != nil {
			return err
		}
		siblings, err := r.Siblings(ctx, t.SubObjectID)
		if err != nil {
			return err
		}
		_, err = e.reconcile(ctx, tx, r, siblings, actor.ID, fx)
		return err
	})
}

func (e Engine) GetTask(ctx context.Context, actor domain.Actor, id string) (domain.Task, error) {
	return visibleTask(ctx, e.Repo, actor, id)
}

// ListTasks returns a sub-object's tasks in scheduling order.
func (e Engine) ListTasks(ctx context.Context, actor domain.Actor, subObjectID string) ([]domain.Task, error) {
	if _, err := visibleSubObject(ctx, e.Repo, actor, subObjectID); err != nil {
		return nil, err
	}
	return e.Repo.Siblings(ctx, subObjectID)
}
