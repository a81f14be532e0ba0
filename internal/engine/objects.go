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

type ObjectInput struct {
	ProjectID string
	Name      string
	Address   string
}

func (e Engine) CreateObject(ctx context.Context, actor domain.Actor, in ObjectInput) (domain.ConstructionObject, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.ConstructionObject{}, err
	}
	if err := required("name", in.Name); err != nil {
		return domain.ConstructionObject{}, err
	}
	o := domain.ConstructionObject{
		ID:        e.newID(),
		ProjectID: in.ProjectID,
		Name:      strings.TrimSpace(in.Name),
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: e.ts(),
	}
	err := e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		if _, err := r.GetProject(ctx, in.ProjectID); err != nil {
			return err
		}
		if err := r.InsertObject(ctx, o); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.ObjectCreated, o.ProjectID, "object", o.ID, actor.ID, events.EventPayload{"name": o.Name})
	})
	return o, err
}

type ObjectUpdate struct {
	Name    *string
	Address *string
}

func (e Engine) UpdateObject(ctx context.Context, actor domain.Actor, id string, up ObjectUpdate) (domain.ConstructionObject, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.ConstructionObject{}, err
	}
	if up.Name != nil {
		if err := required("name", *up.Name); err != nil {
			return domain.ConstructionObject{}, err
		}
	}
	var o domain.ConstructionObject
	err := e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		var err error
		if o, err = r.GetObject(ctx, id); err != nil {
			return err
		}
		if up.Name != nil {
			o.Name = strings.TrimSpace(*up.Name)
		}
		if up.Address != nil {
			o.Address = strings.TrimSpace(*up.Address)
		}
		if err := r.UpdateObject(ctx, o); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.ObjectUpdated, o.ProjectID, "object", o.ID, actor.ID, events.EventPayload{"name": o.Name})
	})
	return o, err
}

func (e Engine) GetObject(ctx context.Context, actor domain.Actor, id string) (domain.ConstructionObject, error) {
	o, err := e.Repo.GetObject(ctx, id)
	if err != nil {
		return o, err
	}
	if _, err := visibleProject(ctx, e.Repo, actor, o.ProjectID); err != nil {
		return domain.ConstructionObject{}, err
	}
	return o, nil
}

func (e Engine) ListObjects(ctx context.Context, actor domain.Actor, projectID string) ([]domain.ConstructionObject, error) {
	if _, err := visibleProject(ctx, e.Repo, actor, projectID); err != nil {
		return nil, err
	}
	return e.Repo.ListObjects(ctx, projectID)
}

func (e Engine) DeleteObject(ctx context.Context, actor domain.Actor, id string) error {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return err
	}
	return e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		o, err := r.GetObject(ctx, id)
		if err != nil {
			return err
		}
		if err := r.DeleteObject(ctx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.ObjectDeleted, o.ProjectID, "object", id, actor.ID, nil)
	})
}

type SubObjectInput struct {
	ObjectID string
	Name     string
	Workers  []string
}

func (e Engine) CreateSubObject(ctx context.Context, actor domain.Actor, in SubObjectInput) (domain.SubObject, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.SubObject{}, err
	}
	if err := required("name", in.Name); err != nil {
		return domain.SubObject{}, err
	}
	s := domain.SubObject{
		ID:        e.newID(),
		ObjectID:  in.ObjectID,
		Name:      strings.TrimSpace(in.Name),
		Workers:   dedupe(in.Workers),
		CreatedAt: e.ts(),
	}
	err := e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		o, err := r.GetObject(ctx, in.ObjectID)
		if err != nil {
			return err
		}
		s.ProjectID = o.ProjectID
		if err := ensureActors(ctx, r, s.Workers); err != nil {
			return err
		}
		if err := r.InsertSubObject(ctx, s); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.SubObjectCreated, s.ProjectID, "subobject", s.ID, actor.ID, events.EventPayload{"name": s.Name, "workers": s.Workers})
	})
	return s, err
}

func (e Engine) RenameSubObject(ctx context.Context, actor domain.Actor, id, name string) (domain.SubObject, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.SubObject{}, err
	}
	if err := required("name", name); err != nil {
		return domain.SubObject{}, err
	}
	var s domain.SubObject
	err := e.mutate(ctx, id, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		if err := r.UpdateSubObjectName(ctx, id, strings.TrimSpace(name)); err != nil {
			return err
		}
		var err error
		if s, err = r.GetSubObject(ctx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.SubObjectUpdated, s.ProjectID, "subobject", s.ID, actor.ID, events.EventPayload{"name": s.Name})
	})
	return s, err
}

// AssignWorkers adds and removes workers of a sub-object. Existing task
// assignees are not changed; the worker set only seeds new tasks.
func (e Engine) AssignWorkers(ctx context.Context, actor domain.Actor, id string, add, remove []string) (domain.SubObject, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return domain.SubObject{}, err
	}
	var s domain.SubObject
	err := e.mutate(ctx, id, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		var err error
		if s, err = r.GetSubObject(ctx, id); err != nil {
			return err
		}
		add = dedupe(add)
		if err := ensureActors(ctx, r, add); err != nil {
			return err
		}
		drop := map[string]bool{}
		for _, w := range remove {
			drop[w] = true
		}
		var workers []string
		for _, w := range append(s.Workers, add...) {
			if !drop[w] {
				workers = append(workers, w)
			}
		}
		s.Workers = dedupe(workers)
		if err := r.SetSubObjectWorkers(ctx, id, s.Workers); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.SubObjectUpdated, s.ProjectID, "subobject", s.ID, actor.ID, events.EventPayload{"workers": s.Workers})
	})
	return s, err
}

func (e Engine) GetSubObject(ctx context.Context, actor domain.Actor, id string) (domain.SubObject, error) {
	return visibleSubObject(ctx, e.Repo, actor, id)
}

func (e Engine) ListSubObjects(ctx context.Context, actor domain.Actor, objectID string) ([]domain.SubObject, error) {
	if _, err := e.GetObject(ctx, actor, objectID); err != nil {
		return nil, err
	}
	return e.Repo.ListSubObjects(ctx, objectID)
}

func (e Engine) DeleteSubObject(ctx context.Context, actor domain.Actor, id string) error {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return err
	}
	return e.mutate(ctx, id, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		s, err := r.GetSubObject(ctx, id)
		if err != nil {
			return err
		}
		if err := r.DeleteSubObject(ctx, id); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.SubObjectDeleted, s.ProjectID, "subobject", id, actor.ID, nil)
	})
}
