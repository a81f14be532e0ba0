package engine

import (
	"context"
	"database/sql"
	"strings"

	"siteline/internal/domain"
	"siteline/internal/engine/auth"
	"siteline/internal/events"
	"siteline/internal/repo"
)

type ProjectInput struct {
	ID       string
	Name     string
	Deadline *string
}

func (e Engine) CreateProject(ctx context.Context, actor domain.Actor, in ProjectInput) (domain.Project, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.Project{}, err
	}
	if err := required("name", in.Name); err != nil {
		return domain.Project{}, err
	}
	if err := validDeadline(in.Deadline); err != nil {
		return domain.Project{}, err
	}
	now := e.ts()
	p := domain.Project{
		ID:        strings.TrimSpace(in.ID),
		Name:      strings.TrimSpace(in.Name),
		Status:    domain.ProjectDraft,
		Deadline:  in.Deadline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.ID == "" {
		p.ID = e.newID()
	}
	err := e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		if err := r.InsertProject(ctx, p); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.ProjectCreated, p.ID, "project", p.ID, actor.ID, events.EventPayload{"name": p.Name, "status": p.Status})
	})
	return p, err
}

// ProjectUpdate carries optional changes; nil fields are left alone. An
// empty Deadline clears it.
type ProjectUpdate struct {
	Name     *string
	Deadline *string
}

func (e Engine) UpdateProject(ctx context.Context, actor domain.Actor, id string, up ProjectUpdate) (domain.Project, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.Project{}, err
	}
	if up.Name != nil {
		if err := required("name", *up.Name); err != nil {
			return domain.Project{}, err
		}
	}
	if err := validDeadline(up.Deadline); err != nil {
		return domain.Project{}, err
	}
	var p domain.Project
	err := e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		var err error
		p, err = r.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if up.Name != nil {
			p.Name = strings.TrimSpace(*up.Name)
		}
		if up.Deadline != nil {
			if *up.Deadline == "" {
				p.Deadline = nil
			} else {
				p.Deadline = up.Deadline
			}
		}
		p.UpdatedAt = e.ts()
		if err := r.UpdateProject(ctx, p); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.ProjectUpdated, p.ID, "project", p.ID, actor.ID, events.EventPayload{"name": p.Name})
	})
	return p, err
}

// PublishProject makes a DRAFT project visible to workers and foremen.
// Publishing is one-way.
func (e Engine) PublishProject(ctx context.Context, actor domain.Actor, id string) (domain.Project, error) {
	if err := e.require(ctx, actor, auth.PermProjectPublish); err != nil {
		return domain.Project{}, err
	}
	var p domain.Project
	err := e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		var err error
		p, err = r.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != domain.ProjectDraft {
			return domain.TransitionError{From: p.Status, Event: "publish"}
		}
		p.Status = domain.ProjectPublished
		p.UpdatedAt = e.ts()
		if err := r.UpdateProject(ctx, p); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.ProjectPublished, p.ID, "project", p.ID, actor.ID, events.EventPayload{"status": p.Status})
	})
	return p, err
}

func (e Engine) GetProject(ctx context.Context, actor domain.Actor, id string) (domain.Project, error) {
	return visibleProject(ctx, e.Repo, actor, id)
}

// ListProjects lists what the actor may see: roles without draft access
// only get PUBLISHED projects.
func (e Engine) ListProjects(ctx context.Context, actor domain.Actor) ([]domain.Project, error) {
	status := ""
	if !auth.CanSeeDrafts(actor.Role) {
		status = domain.ProjectPublished
	}
	return e.Repo.ListProjects(ctx, status)
}

func (e Engine) DeleteProject(ctx context.Context, actor domain.Actor, id string) error {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return err
	}
	return e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		if err := r.DeleteProject(ctx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.ProjectDeleted, id, "project", id, actor.ID, nil)
	})
}

// ProjectProgress counts the project's tasks by status.
func (e Engine) ProjectProgress(ctx context.Context, actor domain.Actor, id string) (map[string]int, error) {
	if _, err := visibleProject(ctx, e.Repo, actor, id); err != nil {
		return nil, err
	}
	return e.Repo.CountTasksByStatus(ctx, id)
}
