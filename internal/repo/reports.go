package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"siteline/internal/domain"
)

// ReplaceReport deletes any prior report of the task and stores rep.
func (r Repo) ReplaceReport(ctx context.Context, rep domain.Report) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM reports WHERE task_id=?`, rep.TaskID); err != nil {
		return fmt.Errorf("delete prior report: %w", err)
	}
	if _, err := r.DB.ExecContext(ctx, `INSERT INTO reports(task_id,actor_id,comment,submitted_at) VALUES (?,?,?,?)`,
		rep.TaskID, rep.ActorID, nullable(rep.Comment), rep.SubmittedAt); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	for _, a := range rep.Answers {
		if _, err := r.DB.ExecContext(ctx, `INSERT OR REPLACE INTO report_answers(task_id,checklist_item_id,completed) VALUES (?,?,?)`,
			rep.TaskID, a.ChecklistItemID, boolInt(a.Completed)); err != nil {
			return fmt.Errorf("insert report answer: %w", err)
		}
	}
	for i, p := range rep.Photos {
		if _, err := r.DB.ExecContext(ctx, `INSERT INTO report_photos(task_id,position,checklist_item_id,ref) VALUES (?,?,?,?)`,
			rep.TaskID, i, p.ChecklistItemID, p.Ref); err != nil {
			return fmt.Errorf("insert report photo: %w", err)
		}
	}
	return nil
}

func (r Repo) GetReport(ctx context.Context, taskID string) (domain.Report, error) {
	var rep domain.Report
	var comment sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT task_id,actor_id,comment,submitted_at FROM reports WHERE task_id=?`, taskID).
		Scan(&rep.TaskID, &rep.ActorID, &comment, &rep.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rep, notFound("report for task", taskID)
	}
	if err != nil {
		return rep, err
	}
	rep.Comment = comment.String

	rows, err := r.DB.QueryContext(ctx, `SELECT checklist_item_id, completed FROM report_answers WHERE task_id=? ORDER BY rowid`, taskID)
	if err != nil {
		return rep, err
	}
	rep.Answers = []domain.ChecklistAnswer{}
	for rows.Next() {
		var a domain.ChecklistAnswer
		var done int
		if err := rows.Scan(&a.ChecklistItemID, &done); err != nil {
			rows.Close()
			return rep, err
		}
		a.Completed = done == 1
		rep.Answers = append(rep.Answers, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rep, err
	}

	rows, err = r.DB.QueryContext(ctx, `SELECT checklist_item_id, ref FROM report_photos WHERE task_id=? ORDER BY position`, taskID)
	if err != nil {
		return rep, err
	}
	defer rows.Close()
	rep.Photos = []domain.PhotoRef{}
	for rows.Next() {
		var p domain.PhotoRef
		if err := rows.Scan(&p.ChecklistItemID, &p.Ref); err != nil {
			return rep, err
		}
		rep.Photos = append(rep.Photos, p)
	}
	return rep, rows.Err()
}

func (r Repo) InsertReview(ctx context.Context, rv domain.Review) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO reviews(id,task_id,actor_id,role,approve,comment,from_status,to_status,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		rv.ID, rv.TaskID, rv.ActorID, rv.Role, boolInt(rv.Approve), nullable(rv.Comment), rv.FromStatus, rv.ToStatus, rv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// ListReviews returns the decision history of a task, oldest first.
func (r Repo) ListReviews(ctx context.Context, taskID string) ([]domain.Review, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,actor_id,role,approve,COALESCE(comment,''),from_status,to_status,created_at FROM reviews WHERE task_id=? ORDER BY created_at, rowid`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		var approve int
		if err := rows.Scan(&rv.ID, &rv.TaskID, &rv.ActorID, &rv.Role, &approve, &rv.Comment, &rv.FromStatus, &rv.ToStatus, &rv.CreatedAt); err != nil {
			return nil, err
		}
		rv.Approve = approve == 1
		res = append(res, rv)
	}
	return res, rows.Err()
}
