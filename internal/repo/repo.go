package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"siteline/internal/db"
	"siteline/internal/domain"
)

// Repo runs hand-written SQL against a *sql.DB or a *sql.Tx.
type Repo struct {
	DB db.DBTX
}

var ErrNotFound = domain.ErrNotFound

// WithTx returns a Repo bound to tx.
func (r Repo) WithTx(tx *sql.Tx) Repo {
	return Repo{DB: tx}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

func mustAffect(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Projects

func scanProject(row interface{ Scan(...any) error }) (domain.Project, error) {
	var p domain.Project
	var deadline sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Status, &deadline, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.Deadline = stringPtr(deadline)
	return p, nil
}

const projectColumns = `id,name,status,deadline,created_at,updated_at`

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Name, p.Status, nullableStringPtr(p.Deadline), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, notFound("project", id)
	}
	return p, err
}

// ListProjects returns projects newest first. An empty status lists all.
func (r Repo) ListProjects(ctx context.Context, status string) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE projects SET name=?, status=?, deadline=?, updated_at=? WHERE id=?`,
		p.Name, p.Status, nullableStringPtr(p.Deadline), p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return mustAffect(res, "project", p.ID)
}

func (r Repo) DeleteProject(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res, "project", id)
}

// Construction objects

const objectColumns = `id,project_id,name,COALESCE(address,''),created_at`

func scanObject(row interface{ Scan(...any) error }) (domain.ConstructionObject, error) {
	var o domain.ConstructionObject
	err := row.Scan(&o.ID, &o.ProjectID, &o.Name, &o.Address, &o.CreatedAt)
	return o, err
}

func (r Repo) InsertObject(ctx context.Context, o domain.ConstructionObject) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO construction_objects(id,project_id,name,address,created_at) VALUES (?,?,?,?,?)`,
		o.ID, o.ProjectID, o.Name, nullable(o.Address), o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert object: %w", err)
	}
	return nil
}

func (r Repo) GetObject(ctx context.Context, id string) (domain.ConstructionObject, error) {
	o, err := scanObject(r.DB.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM construction_objects WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return o, notFound("object", id)
	}
	return o, err
}

func (r Repo) ListObjects(ctx context.Context, projectID string) ([]domain.ConstructionObject, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+objectColumns+` FROM construction_objects WHERE project_id=? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ConstructionObject
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) UpdateObject(ctx context.Context, o domain.ConstructionObject) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE construction_objects SET name=?, address=? WHERE id=?`, o.Name, nullable(o.Address), o.ID)
	if err != nil {
		return fmt.Errorf("update object: %w", err)
	}
	return mustAffect(res, "object", o.ID)
}

func (r Repo) DeleteObject(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM construction_objects WHERE id=?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res, "object", id)
}

// Sub-objects

const subObjectColumns = `id,object_id,project_id,name,created_at`

func (r Repo) InsertSubObject(ctx context.Context, s domain.SubObject) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO sub_objects(`+subObjectColumns+`) VALUES (?,?,?,?,?)`,
		s.ID, s.ObjectID, s.ProjectID, s.Name, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sub-object: %w", err)
	}
	return r.SetSubObjectWorkers(ctx, s.ID, s.Workers)
}

func (r Repo) GetSubObject(ctx context.Context, id string) (domain.SubObject, error) {
	var s domain.SubObject
	err := r.DB.QueryRowContext(ctx, `SELECT `+subObjectColumns+` FROM sub_objects WHERE id=?`, id).
		Scan(&s.ID, &s.ObjectID, &s.ProjectID, &s.Name, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, notFound("sub-object", id)
	}
	if err != nil {
		return s, err
	}
	s.Workers, err = r.listIDs(ctx, `SELECT actor_id FROM sub_object_workers WHERE sub_object_id=? ORDER BY actor_id`, id)
	return s, err
}

func (r Repo) ListSubObjects(ctx context.Context, objectID string) ([]domain.SubObject, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+subObjectColumns+` FROM sub_objects WHERE object_id=? ORDER BY created_at, id`, objectID)
	if err != nil {
		return nil, err
	}
	var res []domain.SubObject
	for rows.Next() {
		var s domain.SubObject
		if err := rows.Scan(&s.ID, &s.ObjectID, &s.ProjectID, &s.Name, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Workers, err = r.listIDs(ctx, `SELECT actor_id FROM sub_object_workers WHERE sub_object_id=? ORDER BY actor_id`, res[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) UpdateSubObjectName(ctx context.Context, id, name string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE sub_objects SET name=? WHERE id=?`, name, id)
	if err != nil {
		return fmt.Errorf("update sub-object: %w", err)
	}
	return mustAffect(res, "sub-object", id)
}

// SetSubObjectWorkers replaces the worker set of a sub-object.
func (r Repo) SetSubObjectWorkers(ctx context.Context, id string, workers []string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM sub_object_workers WHERE sub_object_id=?`, id); err != nil {
		return err
	}
	for _, w := range workers {
		if _, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO sub_object_workers(sub_object_id, actor_id) VALUES (?,?)`, id, w); err != nil {
			return fmt.Errorf("insert sub-object worker: %w", err)
		}
	}
	return nil
}

func (r Repo) DeleteSubObject(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sub_objects WHERE id=?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res, "sub-object", id)
}

// listIDs must not be called while another rows cursor is open on the same
// connection.
func (r Repo) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
