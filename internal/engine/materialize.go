package engine

import (
	"context"
	"database/sql"
	"sort"

	"siteline/internal/checklist"
	"siteline/internal/domain"
	"siteline/internal/engine/auth"
	"siteline/internal/events"
	"siteline/internal/repo"
	"siteline/internal/scheduler"
)

// ApplySubObjectTemplate appends the template's task entries after the
// sub-object's existing tasks in one transaction. Entries sharing an order
// index become a PARALLEL group; a lone entry becomes a SEQUENTIAL task.
// Every task gets its own copy of the referenced checklist template.
func (e Engine) ApplySubObjectTemplate(ctx context.Context, actor domain.Actor, subObjectID, templateID string) ([]domain.Task, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return nil, err
	}
	var created []domain.Task
	err := e.mutate(ctx, subObjectID, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		sub, err := r.GetSubObject(ctx, subObjectID)
		if err != nil {
			return err
		}
		tpl, err := r.GetSubObjectTemplate(ctx, templateID)
		if err != nil {
			return err
		}
		siblings, err := r.Siblings(ctx, sub.ID)
		if err != nil {
			return err
		}
		base := 0
		for _, t := range siblings {
			if t.Index >= base {
				base = t.Index + 1
			}
		}
		groups := groupEntries(tpl.Tasks)
		all := append([]domain.Task(nil), siblings...)
		now := e.ts()
		for k, g := range groups {
			index := base + k
			taskType := domain.TaskSequential
			if len(g) > 1 {
				taskType = domain.TaskParallel
			}
			status := scheduler.InitialStatus(all, index)
			for _, entry := range g {
				ctpl, err := r.GetChecklistTemplate(ctx, entry.ChecklistTemplateID)
				if err != nil {
					return err
				}
				t := domain.Task{
					ID:               e.newID(),
					SubObjectID:      sub.ID,
					ProjectID:        sub.ProjectID,
					Title:            entry.Name,
					Type:             taskType,
					Index:            index,
					Status:           status,
					Assignees:        append([]string{}, sub.Workers...),
					SourceTemplateID: &ctpl.ID,
					CreatedAt:        now,
					UpdatedAt:        now,
				}
				if err := r.InsertTask(ctx, t); err != nil {
					return err
				}
				for _, it := range checklist.Materialize(ctpl, t.ID, e.newID) {
					if err := r.InsertChecklistItem(ctx, it); err != nil {
						return err
					}
				}
				if err := e.events().Append(ctx, tx, events.TaskCreated, t.ProjectID, "task", t.ID, actor.ID, events.EventPayload{
					"title":       t.Title,
					"type":        t.Type,
					"index":       t.Index,
					"status":      t.Status,
					"template_id": tpl.ID,
				}); err != nil {
					return err
				}
				created = append(created, t)
			}
			all = append(all, created[len(created)-len(g):]...)
		}
		if err := scheduler.CheckStructure(all); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.TemplateApplied, sub.ProjectID, "subobject", sub.ID, actor.ID, events.EventPayload{
			"template_id": tpl.ID,
			"tasks":       len(created),
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// groupEntries buckets template entries by order index, ascending. Entries
// keep their template order inside a bucket.
func groupEntries(entries []domain.TaskTemplate) [][]domain.TaskTemplate {
	byIndex := map[int][]domain.TaskTemplate{}
	var keys []int
	for _, en := range entries {
		if _, ok := byIndex[en.OrderIndex]; !ok {
			keys = append(keys, en.OrderIndex)
		}
		byIndex[en.OrderIndex] = append(byIndex[en.OrderIndex], en)
	}
	sort.Ints(keys)
	out := make([][]domain.TaskTemplate, 0, len(keys))
	for _, k := range keys {
		out = append(out, byIndex[k])
	}
	return out
}
