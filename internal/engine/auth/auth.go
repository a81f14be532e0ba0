package auth

import (
	"context"
	"database/sql"
	"fmt"

	"siteline/internal/db"
	"siteline/internal/domain"
)

// Permissions seeded in role_permissions.
const (
	PermTemplateWrite   = "template.write"
	PermStructureWrite  = "structure.write"
	PermProjectPublish  = "project.publish"
	PermChecklistToggle = "checklist.toggle"
	PermEvidenceUpload  = "evidence.upload"
	PermReviewQueue     = "review.queue.read"
	PermActorManage     = "actor.manage"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
	Role       string
}

func (e ForbiddenError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("permission %s required", e.Permission)
	}
	return fmt.Sprintf("role %s lacks permission %s", e.Role, e.Permission)
}

func (e ForbiddenError) Is(target error) bool { return target == domain.ErrForbidden }

// Service answers role/permission questions from the role_permissions table.
type Service struct {
	DB db.DBTX
}

func (s Service) RoleHasPermission(ctx context.Context, role, perm string) (bool, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT 1 FROM role_permissions WHERE role_id=? AND permission_id=? LIMIT 1`, role, perm)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// Require fails with ForbiddenError unless actor's role grants perm.
func (s Service) Require(ctx context.Context, actor domain.Actor, perm string) error {
	ok, err := s.RoleHasPermission(ctx, actor.Role, perm)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{Permission: perm, Role: actor.Role}
	}
	return nil
}

func (s Service) RolePermissions(ctx context.Context, role string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT permission_id FROM role_permissions WHERE role_id=? ORDER BY permission_id`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CanSeeDrafts reports whether role may see DRAFT projects and their contents.
func CanSeeDrafts(role string) bool {
	return role != domain.RoleWorker && role != domain.RoleForeman
}
