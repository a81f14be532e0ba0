package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"siteline/internal/domain"
)

// Checklist templates

func (r Repo) InsertChecklistTemplate(ctx context.Context, t domain.ChecklistTemplate) error {
	if _, err := r.DB.ExecContext(ctx, `INSERT INTO checklist_templates(id,name,created_at,updated_at) VALUES (?,?,?,?)`,
		t.ID, t.Name, t.CreatedAt, t.UpdatedAt); err != nil {
		return fmt.Errorf("insert checklist template: %w", err)
	}
	return r.insertChecklistTemplateItems(ctx, t)
}

// UpdateChecklistTemplate rewrites name and items.
func (r Repo) UpdateChecklistTemplate(ctx context.Context, t domain.ChecklistTemplate) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE checklist_templates SET name=?, updated_at=? WHERE id=?`, t.Name, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update checklist template: %w", err)
	}
	if err := mustAffect(res, "checklist template", t.ID); err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM checklist_template_items WHERE template_id=?`, t.ID); err != nil {
		return err
	}
	return r.insertChecklistTemplateItems(ctx, t)
}

func (r Repo) insertChecklistTemplateItems(ctx context.Context, t domain.ChecklistTemplate) error {
	for _, it := range t.Items {
		if _, err := r.DB.ExecContext(ctx, `INSERT INTO checklist_template_items(template_id,order_index,description,is_photo_required,methodology) VALUES (?,?,?,?,?)`,
			t.ID, it.OrderIndex, it.Description, boolInt(it.IsPhotoRequired), nullableStringPtr(it.Methodology)); err != nil {
			return fmt.Errorf("insert checklist template item: %w", err)
		}
	}
	return nil
}

func (r Repo) GetChecklistTemplate(ctx context.Context, id string) (domain.ChecklistTemplate, error) {
	var t domain.ChecklistTemplate
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at,updated_at FROM checklist_templates WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, notFound("checklist template", id)
	}
	if err != nil {
		return t, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT order_index,description,is_photo_required,methodology FROM checklist_template_items WHERE template_id=? ORDER BY order_index`, id)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	t.Items = []domain.ChecklistTemplateItem{}
	for rows.Next() {
		var it domain.ChecklistTemplateItem
		var photo int
		var methodology sql.NullString
		if err := rows.Scan(&it.OrderIndex, &it.Description, &photo, &methodology); err != nil {
			return t, err
		}
		it.IsPhotoRequired = photo == 1
		it.Methodology = stringPtr(methodology)
		t.Items = append(t.Items, it)
	}
	return t, rows.Err()
}

// ListChecklistTemplates returns templates without items, by name.
func (r Repo) ListChecklistTemplates(ctx context.Context) ([]domain.ChecklistTemplate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,created_at,updated_at FROM checklist_templates ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ChecklistTemplate
	for rows.Next() {
		var t domain.ChecklistTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) DeleteChecklistTemplate(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM checklist_templates WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete checklist template: %w", err)
	}
	return mustAffect(res, "checklist template", id)
}

// ChecklistTemplateUsage returns the ids of sub-object templates whose
// task entries reference the checklist template.
func (r Repo) ChecklistTemplateUsage(ctx context.Context, id string) ([]string, int, error) {
	var refs int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM sub_object_template_tasks WHERE checklist_template_id=?`, id).Scan(&refs); err != nil {
		return nil, 0, err
	}
	ids, err := r.listIDs(ctx, `SELECT DISTINCT template_id FROM sub_object_template_tasks WHERE checklist_template_id=? ORDER BY template_id`, id)
	return ids, refs, err
}

// RelinkChecklistTemplate points every sub-object template task entry at newID.
func (r Repo) RelinkChecklistTemplate(ctx context.Context, oldID, newID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE sub_object_template_tasks SET checklist_template_id=? WHERE checklist_template_id=?`, newID, oldID)
	if err != nil {
		return 0, fmt.Errorf("relink sub-object template tasks: %w", err)
	}
	return res.RowsAffected()
}

// Sub-object templates

func (r Repo) InsertSubObjectTemplate(ctx context.Context, t domain.SubObjectTemplate) error {
	if _, err := r.DB.ExecContext(ctx, `INSERT INTO sub_object_templates(id,name,created_at,updated_at) VALUES (?,?,?,?)`,
		t.ID, t.Name, t.CreatedAt, t.UpdatedAt); err != nil {
		return fmt.Errorf("insert sub-object template: %w", err)
	}
	return r.insertSubObjectTemplateTasks(ctx, t)
}

func (r Repo) UpdateSubObjectTemplate(ctx context.Context, t domain.SubObjectTemplate) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE sub_object_templates SET name=?, updated_at=? WHERE id=?`, t.Name, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update sub-object template: %w", err)
	}
	if err := mustAffect(res, "sub-object template", t.ID); err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM sub_object_template_tasks WHERE template_id=?`, t.ID); err != nil {
		return err
	}
	return r.insertSubObjectTemplateTasks(ctx, t)
}

func (r Repo) insertSubObjectTemplateTasks(ctx context.Context, t domain.SubObjectTemplate) error {
	for pos, tt := range t.Tasks {
		if _, err := r.DB.ExecContext(ctx, `INSERT INTO sub_object_template_tasks(template_id,position,name,checklist_template_id,order_index) VALUES (?,?,?,?,?)`,
			t.ID, pos, tt.Name, tt.ChecklistTemplateID, tt.OrderIndex); err != nil {
			return fmt.Errorf("insert sub-object template task: %w", err)
		}
	}
	return nil
}

func (r Repo) GetSubObjectTemplate(ctx context.Context, id string) (domain.SubObjectTemplate, error) {
	var t domain.SubObjectTemplate
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at,updated_at FROM sub_object_templates WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, notFound("sub-object template", id)
	}
	if err != nil {
		return t, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT name,checklist_template_id,order_index FROM sub_object_template_tasks WHERE template_id=? ORDER BY order_index, position`, id)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	t.Tasks = []domain.TaskTemplate{}
	for rows.Next() {
		var tt domain.TaskTemplate
		if err := rows.Scan(&tt.Name, &tt.ChecklistTemplateID, &tt.OrderIndex); err != nil {
			return t, err
		}
		t.Tasks = append(t.Tasks, tt)
	}
	return t, rows.Err()
}

func (r Repo) ListSubObjectTemplates(ctx context.Context) ([]domain.SubObjectTemplate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,created_at,updated_at FROM sub_object_templates ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SubObjectTemplate
	for rows.Next() {
		var t domain.SubObjectTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) DeleteSubObjectTemplate(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sub_object_templates WHERE id=?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res, "sub-object template", id)
}
