package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"siteline/internal/checklist"
	"siteline/internal/domain"
	"siteline/internal/engine/auth"
	"siteline/internal/events"
	"siteline/internal/repo"
)

// ChecklistItemInput describes a new checklist item. A nil or negative
// OrderIndex appends the item.
type ChecklistItemInput struct {
	Description     string
	OrderIndex      *int
	IsPhotoRequired bool
	Methodology     *string
}

// editableTask loads a task whose checklist structure may still change.
func editableTask(ctx context.Context, r repo.Repo, id string) (domain.Task, error) {
	t, err := r.GetTask(ctx, id)
	if err != nil {
		return t, err
	}
	if t.Status == domain.StatusCompleted || domain.InReview(t.Status) {
		return t, domain.TransitionError{From: t.Status, Event: "checklist.edit"}
	}
	return t, nil
}

// checklistMutation locks the task's sub-object and runs fn with the task
// and its ordered items. Every change is recorded as one checklist event.
func (e Engine) checklistMutation(ctx context.Context, actor domain.Actor, taskID, op string, load func(context.Context, repo.Repo, string) (domain.Task, error), fn func(r repo.Repo, t domain.Task, items []domain.ChecklistItem) (events.EventPayload, error)) error {
	current, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	return e.mutate(ctx, current.SubObjectID, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		t, err := load(ctx, r, taskID)
		if err != nil {
			return err
		}
		items, err := r.ListChecklistItems(ctx, taskID)
		if err != nil {
			return err
		}
		payload, err := fn(r, t, items)
		if err != nil {
			return err
		}
		if payload == nil {
			payload = events.EventPayload{}
		}
		payload["op"] = op
		return e.events().Append(ctx, tx, events.ChecklistChanged, t.ProjectID, "task", t.ID, actor.ID, payload)
	})
}

func (e Engine) AddChecklistItem(ctx context.Context, actor domain.Actor, taskID string, in ChecklistItemInput) (domain.ChecklistItem, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.ChecklistItem{}, err
	}
	if err := required("description", in.Description); err != nil {
		return domain.ChecklistItem{}, err
	}
	var it domain.ChecklistItem
	err := e.checklistMutation(ctx, actor, taskID, "add", editableTask, func(r repo.Repo, t domain.Task, items []domain.ChecklistItem) (events.EventPayload, error) {
		idx := checklist.AppendIndex(items)
		if in.OrderIndex != nil && *in.OrderIndex >= 0 {
			idx = *in.OrderIndex
		}
		it = domain.ChecklistItem{
			ID:              e.newID(),
			TaskID:          t.ID,
			Description:     strings.TrimSpace(in.Description),
			IsPhotoRequired: in.IsPhotoRequired,
			Methodology:     in.Methodology,
			OrderIndex:      idx,
		}
		if err := r.InsertChecklistItem(ctx, it); err != nil {
			return nil, err
		}
		return events.EventPayload{"item_id": it.ID, "order_index": idx}, nil
	})
	return it, err
}

// MoveChecklistItem moves the item at position from to position to and
// renumbers the checklist densely.
func (e Engine) MoveChecklistItem(ctx context.Context, actor domain.Actor, taskID string, from, to int) (domain.Checklist, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.Checklist{}, err
	}
	var out []domain.ChecklistItem
	err := e.checklistMutation(ctx, actor, taskID, "move", editableTask, func(r repo.Repo, t domain.Task, items []domain.ChecklistItem) (events.EventPayload, error) {
		var err error
		if out, err = checklist.Move(items, from, to); err != nil {
			return nil, err
		}
		if err := writeOrder(ctx, r, items, out); err != nil {
			return nil, err
		}
		return events.EventPayload{"from": from, "to": to}, nil
	})
	return domain.Checklist{TaskID: taskID, Items: out}, err
}

func (e Engine) DeleteChecklistItem(ctx context.Context, actor domain.Actor, taskID, itemID string) (domain.Checklist, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.Checklist{}, err
	}
	var out []domain.ChecklistItem
	err := e.checklistMutation(ctx, actor, taskID, "delete", editableTask, func(r repo.Repo, t domain.Task, items []domain.ChecklistItem) (events.EventPayload, error) {
		var ok bool
		if out, ok = checklist.Remove(items, itemID); !ok {
			return nil, fmt.Errorf("checklist item %s: %w", itemID, domain.ErrNotFound)
		}
		if err := r.DeleteChecklistItem(ctx, taskID, itemID); err != nil {
			return nil, err
		}
		if err := writeOrder(ctx, r, items, out); err != nil {
			return nil, err
		}
		return events.EventPayload{"item_id": itemID}, nil
	})
	return domain.Checklist{TaskID: taskID, Items: out}, err
}

// writeOrder persists items of next whose order index differs from prev.
func writeOrder(ctx context.Context, r repo.Repo, prev, next []domain.ChecklistItem) error {
	old := make(map[string]int, len(prev))
	for _, it := range prev {
		old[it.ID] = it.OrderIndex
	}
	for _, it := range next {
		if idx, ok := old[it.ID]; ok && idx == it.OrderIndex {
			continue
		}
		if err := r.UpdateChecklistItem(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

func (e Engine) editItem(ctx context.Context, actor domain.Actor, taskID, itemID, op string, apply func(*domain.ChecklistItem)) (domain.ChecklistItem, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.ChecklistItem{}, err
	}
	var it domain.ChecklistItem
	err := e.checklistMutation(ctx, actor, taskID, op, editableTask, func(r repo.Repo, t domain.Task, items []domain.ChecklistItem) (events.EventPayload, error) {
		var err error
		if it, err = r.GetChecklistItem(ctx, taskID, itemID); err != nil {
			return nil, err
		}
		apply(&it)
		if err := r.UpdateChecklistItem(ctx, it); err != nil {
			return nil, err
		}
		return events.EventPayload{"item_id": itemID}, nil
	})
	return it, err
}

func (e Engine) SetItemPhotoRequired(ctx context.Context, actor domain.Actor, taskID, itemID string, required bool) (domain.ChecklistItem, error) {
	return e.editItem(ctx, actor, taskID, itemID, "set_photo_required", func(it *domain.ChecklistItem) {
		it.IsPhotoRequired = required
	})
}

// SetItemMethodology replaces the methodology text; nil or empty clears it.
func (e Engine) SetItemMethodology(ctx context.Context, actor domain.Actor, taskID, itemID string, methodology *string) (domain.ChecklistItem, error) {
	return e.editItem(ctx, actor, taskID, itemID, "set_methodology", func(it *domain.ChecklistItem) {
		if methodology == nil || *methodology == "" {
			it.Methodology = nil
			return
		}
		it.Methodology = methodology
	})
}

func (e Engine) SetItemDescription(ctx context.Context, actor domain.Actor, taskID, itemID, description string) (domain.ChecklistItem, error) {
	if err := required("description", description); err != nil {
		return domain.ChecklistItem{}, err
	}
	return e.editItem(ctx, actor, taskID, itemID, "set_description", func(it *domain.ChecklistItem) {
		it.Description = strings.TrimSpace(description)
	})
}

// ToggleChecklistItem marks an item done or not done. It is allowed while
// the task is ACTIVE or in rework; a WORKER must be assigned to the task.
func (e Engine) ToggleChecklistItem(ctx context.Context, actor domain.Actor, taskID, itemID string, completed bool) (domain.ChecklistItem, error) {
	if err := e.require(ctx, actor, auth.PermChecklistToggle); err != nil {
		return domain.ChecklistItem{}, err
	}
	if _, err := visibleTask(ctx, e.Repo, actor, taskID); err != nil {
		return domain.ChecklistItem{}, err
	}
	load := func(ctx context.Context, r repo.Repo, id string) (domain.Task, error) {
		t, err := r.GetTask(ctx, id)
		if err != nil {
			return t, err
		}
		if !domain.Workable(t.Status) {
			return t, domain.TransitionError{From: t.Status, Event: "checklist.toggle"}
		}
		if actor.Role == domain.RoleWorker && !t.HasAssignee(actor.ID) {
			return t, auth.ForbiddenError{Permission: auth.PermChecklistToggle, Role: actor.Role}
		}
		return t, nil
	}
	var it domain.ChecklistItem
	err := e.checklistMutation(ctx, actor, taskID, "toggle", load, func(r repo.Repo, t domain.Task, items []domain.ChecklistItem) (events.EventPayload, error) {
		var err error
		if it, err = r.GetChecklistItem(ctx, taskID, itemID); err != nil {
			return nil, err
		}
		it.IsCompleted = completed
		if err := r.UpdateChecklistItem(ctx, it); err != nil {
			return nil, err
		}
		return events.EventPayload{"item_id": itemID, "completed": completed}, nil
	})
	return it, err
}

// ApplyChecklistTemplate replaces the task's checklist with a fresh copy of
// the template.
func (e Engine) ApplyChecklistTemplate(ctx context.Context, actor domain.Actor, taskID, templateID string) (domain.Checklist, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.Checklist{}, err
	}
	var out []domain.ChecklistItem
	err := e.checklistMutation(ctx, actor, taskID, "apply_template", editableTask, func(r repo.Repo, t domain.Task, items []domain.ChecklistItem) (events.EventPayload, error) {
		tpl, err := r.GetChecklistTemplate(ctx, templateID)
		if err != nil {
			return nil, err
		}
		if err := r.DeleteChecklist(ctx, taskID); err != nil {
			return nil, err
		}
		out = checklist.Materialize(tpl, taskID, e.newID)
		for _, it := range out {
			if err := r.InsertChecklistItem(ctx, it); err != nil {
				return nil, err
			}
		}
		t.SourceTemplateID = &tpl.ID
		t.UpdatedAt = e.ts()
		if err := r.UpdateTask(ctx, t); err != nil {
			return nil, err
		}
		return events.EventPayload{"template_id": templateID, "items": len(out)}, nil
	})
	return domain.Checklist{TaskID: taskID, Items: out}, err
}

func (e Engine) GetChecklist(ctx context.Context, actor domain.Actor, taskID string) (domain.Checklist, error) {
	if _, err := visibleTask(ctx, e.Repo, actor, taskID); err != nil {
		return domain.Checklist{}, err
	}
	return e.Repo.GetChecklist(ctx, taskID)
}

// Materialize returns an unsaved checklist cloned from a template.
func (e Engine) Materialize(ctx context.Context, templateID, taskID string) (domain.Checklist, error) {
	tpl, err := e.Repo.GetChecklistTemplate(ctx, templateID)
	if err != nil {
		return domain.Checklist{}, err
	}
	return domain.Checklist{TaskID: taskID, Items: checklist.Materialize(tpl, taskID, e.newID)}, nil
}
