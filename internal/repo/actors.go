package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"siteline/internal/domain"
)

func (r Repo) InsertActor(ctx context.Context, a domain.Actor) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO actors(id, name, role, created_at) VALUES (?,?,?,?)`, a.ID, nullable(a.Name), a.Role, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

// EnsureActor inserts the actor unless one with the same id exists.
func (r Repo) EnsureActor(ctx context.Context, a domain.Actor) error {
	_, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO actors(id, name, role, created_at) VALUES (?,?,?,?)`, a.ID, nullable(a.Name), a.Role, a.CreatedAt)
	return err
}

func (r Repo) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	var a domain.Actor
	err := r.DB.QueryRowContext(ctx, `SELECT id, COALESCE(name,''), role, created_at FROM actors WHERE id=?`, id).
		Scan(&a.ID, &a.Name, &a.Role, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, notFound("actor", id)
	}
	return a, err
}

// ListActors returns actors by id. An empty role lists all.
func (r Repo) ListActors(ctx context.Context, role string) ([]domain.Actor, error) {
	query := `SELECT id, COALESCE(name,''), role, created_at FROM actors`
	var args []any
	if role != "" {
		query += ` WHERE role=?`
		args = append(args, role)
	}
	query += ` ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Actor
	for rows.Next() {
		var a domain.Actor
		if err := rows.Scan(&a.ID, &a.Name, &a.Role, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateActorRole(ctx context.Context, id, role string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE actors SET role=? WHERE id=?`, role, id)
	if err != nil {
		return err
	}
	return mustAffect(res, "actor", id)
}
