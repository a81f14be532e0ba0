package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"siteline/internal/domain"
)

const itemColumns = `id,task_id,description,is_photo_required,methodology,is_completed,order_index`

func scanItem(row interface{ Scan(...any) error }) (domain.ChecklistItem, error) {
	var it domain.ChecklistItem
	var photo, done int
	var methodology sql.NullString
	if err := row.Scan(&it.ID, &it.TaskID, &it.Description, &photo, &methodology, &done, &it.OrderIndex); err != nil {
		return it, err
	}
	it.IsPhotoRequired = photo == 1
	it.IsCompleted = done == 1
	it.Methodology = stringPtr(methodology)
	return it, nil
}

func (r Repo) InsertChecklistItem(ctx context.Context, it domain.ChecklistItem) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO checklist_items(`+itemColumns+`) VALUES (?,?,?,?,?,?,?)`,
		it.ID, it.TaskID, it.Description, boolInt(it.IsPhotoRequired), nullableStringPtr(it.Methodology), boolInt(it.IsCompleted), it.OrderIndex)
	if err != nil {
		return fmt.Errorf("insert checklist item: %w", err)
	}
	return nil
}

func (r Repo) UpdateChecklistItem(ctx context.Context, it domain.ChecklistItem) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE checklist_items SET description=?, is_photo_required=?, methodology=?, is_completed=?, order_index=? WHERE id=? AND task_id=?`,
		it.Description, boolInt(it.IsPhotoRequired), nullableStringPtr(it.Methodology), boolInt(it.IsCompleted), it.OrderIndex, it.ID, it.TaskID)
	if err != nil {
		return fmt.Errorf("update checklist item: %w", err)
	}
	return mustAffect(res, "checklist item", it.ID)
}

func (r Repo) DeleteChecklistItem(ctx context.Context, taskID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM checklist_items WHERE id=? AND task_id=?`, id, taskID)
	if err != nil {
		return err
	}
	return mustAffect(res, "checklist item", id)
}

func (r Repo) DeleteChecklist(ctx context.Context, taskID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM checklist_items WHERE task_id=?`, taskID)
	return err
}

func (r Repo) GetChecklistItem(ctx context.Context, taskID, id string) (domain.ChecklistItem, error) {
	it, err := scanItem(r.DB.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM checklist_items WHERE id=? AND task_id=?`, id, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return it, notFound("checklist item", id)
	}
	return it, err
}

// ListChecklistItems returns a task's items in order. Items sharing an
// order index keep insertion order.
func (r Repo) ListChecklistItems(ctx context.Context, taskID string) ([]domain.ChecklistItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+itemColumns+` FROM checklist_items WHERE task_id=? ORDER BY order_index, rowid`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []domain.ChecklistItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r Repo) GetChecklist(ctx context.Context, taskID string) (domain.Checklist, error) {
	items, err := r.ListChecklistItems(ctx, taskID)
	return domain.Checklist{TaskID: taskID, Items: items}, err
}
