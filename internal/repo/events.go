package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"siteline/internal/domain"
)

// EventFilters narrows event queries. Zero values are ignored.
type EventFilters struct {
	ProjectID  string
	Type       string
	EntityKind string
	EntityID   string
}

func (f EventFilters) where(args []any) (string, []any) {
	clauses := []string{"1=1"}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	return strings.Join(clauses, " AND "), args
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var projectID, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &projectID, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		e.ProjectID = projectID.String
		e.EntityID = entityID.String
		e.Payload = payload.String
		res = append(res, e)
	}
	return res, rows.Err()
}

const eventColumns = `id,ts,type,project_id,entity_kind,entity_id,actor_id,payload_json`

// LatestEvents returns events newest first. A positive before cursor
// returns only events with a smaller id.
func (r Repo) LatestEvents(ctx context.Context, limit int, before int64, f EventFilters) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	where, args := f.where(nil)
	if before > 0 {
		where += " AND id<?"
		args = append(args, before)
	}
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY id DESC LIMIT ?`, eventColumns, where), args...)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// EventsAfter returns events with id greater than cursor, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, f EventFilters) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	where, args := f.where(nil)
	if cursor > 0 {
		where += " AND id>?"
		args = append(args, cursor)
	}
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY id ASC LIMIT ?`, eventColumns, where), args...)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (r Repo) LatestEventID(ctx context.Context, projectID string) (int64, error) {
	var id sql.NullInt64
	query := `SELECT MAX(id) FROM events`
	var args []any
	if projectID != "" {
		query += ` WHERE project_id=?`
		args = append(args, projectID)
	}
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}
