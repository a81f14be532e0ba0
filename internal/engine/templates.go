package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"siteline/internal/checklist"
	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/engine/auth"
	"siteline/internal/events"
	"siteline/internal/repo"
)

type ChecklistTemplateInput struct {
	ID    string
	Name  string
	Items []domain.ChecklistTemplateItem
}

func validateChecklistTemplate(in ChecklistTemplateInput) error {
	var issues []string
	if strings.TrimSpace(in.Name) == "" {
		issues = append(issues, "name is required")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.Description) == "" {
			issues = append(issues, fmt.Sprintf("item %d needs a description", i))
		}
	}
	if len(issues) > 0 {
		return domain.ValidationError{Issues: issues}
	}
	return nil
}

func (e Engine) CreateChecklistTemplate(ctx context.Context, actor domain.Actor, in ChecklistTemplateInput) (domain.ChecklistTemplate, error) {
	if err := e.require(ctx, actor, auth.PermTemplateWrite); err != nil {
		return domain.ChecklistTemplate{}, err
	}
	var tpl domain.ChecklistTemplate
	err := e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		var err error
		tpl, err = e.insertChecklistTemplate(ctx, tx, r, actor, in)
		return err
	})
	return tpl, err
}

func (e Engine) insertChecklistTemplate(ctx context.Context, tx *sql.Tx, r repo.Repo, actor domain.Actor, in ChecklistTemplateInput) (domain.ChecklistTemplate, error) {
	if err := validateChecklistTemplate(in); err != nil {
		return domain.ChecklistTemplate{}, err
	}
	now := e.ts()
	tpl := domain.ChecklistTemplate{
		ID:        strings.TrimSpace(in.ID),
		Name:      strings.TrimSpace(in.Name),
		Items:     checklist.Normalize(in.Items),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if tpl.ID == "" {
		tpl.ID = e.newID()
	}
	if err := r.InsertChecklistTemplate(ctx, tpl); err != nil {
		return tpl, err
	}
	return tpl, e.events().Append(ctx, tx, events.TemplateCreated, "", "checklist_template", tpl.ID, actor.ID, events.EventPayload{"name": tpl.Name, "items": len(tpl.Items)})
}

// UpdateChecklistTemplate rewrites a template. Checklists already cloned
// from it are independent and keep their items.
func (e Engine) UpdateChecklistTemplate(ctx context.Context, actor domain.Actor, id string, in ChecklistTemplateInput) (domain.ChecklistTemplate, error) {
	if err := e.require(ctx, actor, auth.PermTemplateWrite); err != nil {
		return domain.ChecklistTemplate{}, err
	}
	if err := validateChecklistTemplate(in); err != nil {
		return domain.ChecklistTemplate{}, err
	}
	var tpl domain.ChecklistTemplate
	err := e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		var err error
		if tpl, err = r.GetChecklistTemplate(ctx, id); err != nil {
			return err
		}
		tpl.Name = strings.TrimSpace(in.Name)
		tpl.Items = checklist.Normalize(in.Items)
		tpl.UpdatedAt = e.ts()
		if err := r.UpdateChecklistTemplate(ctx, tpl); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.TemplateUpdated, "", "checklist_template", id, actor.ID, events.EventPayload{"name": tpl.Name, "items": len(tpl.Items)})
	})
	return tpl, err
}

func (e Engine) GetChecklistTemplate(ctx context.Context, id string) (domain.ChecklistTemplate, error) {
	return e.Repo.GetChecklistTemplate(ctx, id)
}

func (e Engine) ListChecklistTemplates(ctx context.Context) ([]domain.ChecklistTemplate, error) {
	return e.Repo.ListChecklistTemplates(ctx)
}

// TemplateUsage lists the sub-object templates referencing a checklist
// template.
type TemplateUsage struct {
	TemplateID           string   `json:"template_id"`
	SubObjectTemplateIDs []string `json:"sub_object_template_ids"`
	References           int      `json:"references"`
}

func (e Engine) ChecklistTemplateUsage(ctx context.Context, id string) (TemplateUsage, error) {
	if _, err := e.Repo.GetChecklistTemplate(ctx, id); err != nil {
		return TemplateUsage{}, err
	}
	ids, refs, err := e.Repo.ChecklistTemplateUsage(ctx, id)
	return TemplateUsage{TemplateID: id, SubObjectTemplateIDs: ids, References: refs}, err
}

// DeleteChecklistTemplate fails with ConflictError while any sub-object
// template task entry references the template.
func (e Engine) DeleteChecklistTemplate(ctx context.Context, actor domain.Actor, id string) error {
	if err := e.require(ctx, actor, auth.PermTemplateWrite); err != nil {
		return err
	}
	return e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		if _, err := r.GetChecklistTemplate(ctx, id); err != nil {
			return err
		}
		_, refs, err := r.ChecklistTemplateUsage(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return domain.ConflictError{TemplateID: id, References: refs}
		}
		if err := r.DeleteChecklistTemplate(ctx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.TemplateDeleted, "", "checklist_template", id, actor.ID, nil)
	})
}

// ReplaceResult reports a replace-and-relink run. When OldDeleted is false
// the new template still exists next to the old one and RelinkError says
// why relinking failed.
type ReplaceResult struct {
	New           domain.ChecklistTemplate `json:"new"`
	OldID         string                   `json:"old_id"`
	OldDeleted    bool                     `json:"old_deleted"`
	Relinked      int64                    `json:"relinked"`
	TasksRelinked int64                    `json:"tasks_relinked"`
	RelinkError   string                   `json:"relink_error,omitempty"`
}

// ReplaceChecklistTemplate creates draft as a new template, then relinks
// every consumer of oldID to it and deletes oldID. The two steps commit
// separately: if relinking fails the new template is kept and the old one
// is left untouched.
func (e Engine) ReplaceChecklistTemplate(ctx context.Context, actor domain.Actor, oldID string, draft ChecklistTemplateInput) (ReplaceResult, error) {
	if err := e.require(ctx, actor, auth.PermTemplateWrite); err != nil {
		return ReplaceResult{}, err
	}
	if _, err := e.Repo.GetChecklistTemplate(ctx, oldID); err != nil {
		return ReplaceResult{}, err
	}
	res := ReplaceResult{OldID: oldID}
	if err := e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		var err error
		res.New, err = e.insertChecklistTemplate(ctx, tx, r, actor, draft)
		return err
	}); err != nil {
		return ReplaceResult{}, err
	}
	err := db.WithinTx(ctx, e.DB, func(tx *sql.Tx) error {
		r := e.Repo.WithTx(tx)
		n, err := r.RelinkChecklistTemplate(ctx, oldID, res.New.ID)
		if err != nil {
			return err
		}
		tasks, err := r.RelinkTaskSources(ctx, oldID, res.New.ID)
		if err != nil {
			return err
		}
		if err := r.DeleteChecklistTemplate(ctx, oldID); err != nil {
			return err
		}
		res.Relinked, res.TasksRelinked = n, tasks
		return e.events().Append(ctx, tx, events.TemplateReplaced, "", "checklist_template", oldID, actor.ID, events.EventPayload{
			"new_id":         res.New.ID,
			"relinked":       n,
			"tasks_relinked": tasks,
		})
	})
	if err != nil {
		e.logger().WarnContext(ctx, "relink checklist template", "old_id", oldID, "new_id", res.New.ID, "error", err)
		res.Relinked, res.TasksRelinked = 0, 0
		res.RelinkError = err.Error()
		return res, nil
	}
	res.OldDeleted = true
	return res, nil
}

type SubObjectTemplateInput struct {
	ID    string
	Name  string
	Tasks []domain.TaskTemplate
}

func validateSubObjectTemplate(ctx context.Context, r repo.Repo, in SubObjectTemplateInput) error {
	var issues []string
	if strings.TrimSpace(in.Name) == "" {
		issues = append(issues, "name is required")
	}
	for i, tt := range in.Tasks {
		if strings.TrimSpace(tt.Name) == "" {
			issues = append(issues, fmt.Sprintf("task %d needs a name", i))
		}
		if tt.OrderIndex < 0 {
			issues = append(issues, fmt.Sprintf("task %d has a negative order index", i))
		}
	}
	if len(issues) > 0 {
		return domain.ValidationError{Issues: issues}
	}
	for _, tt := range in.Tasks {
		if _, err := r.GetChecklistTemplate(ctx, tt.ChecklistTemplateID); err != nil {
			return err
		}
	}
	return nil
}

func (e Engine) CreateSubObjectTemplate(ctx context.Context, actor domain.Actor, in SubObjectTemplateInput) (domain.SubObjectTemplate, error) {
	if err := e.require(ctx, actor, auth.PermTemplateWrite); err != nil {
		return domain.SubObjectTemplate{}, err
	}
	now := e.ts()
	tpl := domain.SubObjectTemplate{ID: strings.TrimSpace(in.ID), Name: strings.TrimSpace(in.Name), Tasks: in.Tasks, CreatedAt: now, UpdatedAt: now}
	if tpl.ID == "" {
		tpl.ID = e.newID()
	}
	if tpl.Tasks == nil {
		tpl.Tasks = []domain.TaskTemplate{}
	}
	err := e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		if err := validateSubObjectTemplate(ctx, r, in); err != nil {
			return err
		}
		if err := r.InsertSubObjectTemplate(ctx, tpl); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.TemplateCreated, "", "subobject_template", tpl.ID, actor.ID, events.EventPayload{"name": tpl.Name, "tasks": len(tpl.Tasks)})
	})
	return tpl, err
}

func (e Engine) UpdateSubObjectTemplate(ctx context.Context, actor domain.Actor, id string, in SubObjectTemplateInput) (domain.SubObjectTemplate, error) {
	if err := e.require(ctx, actor, auth.PermTemplateWrite); err != nil {
		return domain.SubObjectTemplate{}, err
	}
	var tpl domain.SubObjectTemplate
	err := e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		var err error
		if tpl, err = r.GetSubObjectTemplate(ctx, id); err != nil {
			return err
		}
		if err := validateSubObjectTemplate(ctx, r, in); err != nil {
			return err
		}
		tpl.Name = strings.TrimSpace(in.Name)
		tpl.Tasks = in.Tasks
		if tpl.Tasks == nil {
			tpl.Tasks = []domain.TaskTemplate{}
		}
		tpl.UpdatedAt = e.ts()
		if err := r.UpdateSubObjectTemplate(ctx, tpl); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.TemplateUpdated, "", "subobject_template", id, actor.ID, events.EventPayload{"name": tpl.Name, "tasks": len(tpl.Tasks)})
	})
	return tpl, err
}

func (e Engine) GetSubObjectTemplate(ctx context.Context, id string) (domain.SubObjectTemplate, error) {
	return e.Repo.GetSubObjectTemplate(ctx, id)
}

func (e Engine) ListSubObjectTemplates(ctx context.Context) ([]domain.SubObjectTemplate, error) {
	return e.Repo.ListSubObjectTemplates(ctx)
}

func (e Engine) DeleteSubObjectTemplate(ctx context.Context, actor domain.Actor, id string) error {
	if err := e.require(ctx, actor, auth.PermTemplateWrite); err != nil {
		return err
	}
	return e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		if err := r.DeleteSubObjectTemplate(ctx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.TemplateDeleted, "", "subobject_template", id, actor.ID, nil)
	})
}
