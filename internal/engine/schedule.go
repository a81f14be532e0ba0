package engine

import (
	"context"
	"database/sql"

	"siteline/internal/domain"
	"siteline/internal/engine/auth"
	"siteline/internal/events"
	"siteline/internal/lifecycle"
	"siteline/internal/notify"
	"siteline/internal/repo"
	"siteline/internal/scheduler"
)

// transition moves t along rule and records the event, metrics and
// notification for it. It returns the updated task.
func (e Engine) transition(ctx context.Context, tx *sql.Tx, r repo.Repo, t domain.Task, rule lifecycle.Rule, actor domain.Actor, comment string, fx *effects) (domain.Task, error) {
	from := t.Status
	now := e.ts()
	var completedAt *string
	if rule.To == domain.StatusCompleted {
		completedAt = &now
	}
	if err := r.UpdateTaskStatus(ctx, t.ID, rule.To, now, completedAt); err != nil {
		return t, err
	}
	t.Status = rule.To
	t.UpdatedAt = now
	t.CompletedAt = completedAt
	if err := e.events().Append(ctx, tx, events.TaskStatusChanged, t.ProjectID, "task", t.ID, actor.ID, events.EventPayload{
		"from":  from,
		"to":    rule.To,
		"event": string(rule.Event),
		"role":  actor.Role,
	}); err != nil {
		return t, err
	}
	fx.moves = append(fx.moves, statusMove{TaskID: t.ID, From: from, To: rule.To, Event: string(rule.Event)})
	if kind := notificationKind(from, rule.To); kind != "" {
		fx.notes = append(fx.notes, notify.Notification{
			Kind:        kind,
			ProjectID:   t.ProjectID,
			SubObjectID: t.SubObjectID,
			TaskID:      t.ID,
			Title:       t.Title,
			From:        from,
			To:          rule.To,
			ActorID:     actor.ID,
			Assignees:   t.Assignees,
			Comment:     comment,
			TS:          now,
		})
	}
	return t, nil
}

func notificationKind(from, to string) string {
	switch {
	case domain.InReview(to):
		return notify.ReviewRequested
	case domain.InRework(to):
		return notify.ReworkAssigned
	case to == domain.StatusCompleted:
		return notify.TaskCompleted
	case from == domain.StatusLocked && to == domain.StatusActive:
		return notify.TaskUnlocked
	}
	return ""
}

var systemActor = domain.Actor{ID: "system", Role: domain.RoleSystem}

// applySchedule writes scheduler changes through the state table so an
// unlock or relock is subject to the same rules as any other transition.
func (e Engine) applySchedule(ctx context.Context, tx *sql.Tx, r repo.Repo, siblings []domain.Task, changes []scheduler.Change, triggeredBy string, fx *effects) ([]domain.Task, error) {
	byID := make(map[string]int, len(siblings))
	for i, t := range siblings {
		byID[t.ID] = i
	}
	sys := systemActor
	if triggeredBy != "" {
		sys.ID = triggeredBy
	}
	for _, c := range changes {
		i, ok := byID[c.TaskID]
		if !ok {
			continue
		}
		ev := lifecycle.Unlock
		if c.To == domain.StatusLocked {
			ev = lifecycle.Lock
		}
		rule, err := lifecycle.Next(c.From, ev, domain.RoleSystem)
		if err != nil {
			return nil, err
		}
		updated, err := e.transition(ctx, tx, r, siblings[i], rule, sys, "", fx)
		if err != nil {
			return nil, err
		}
		siblings[i] = updated
	}
	return siblings, nil
}

// cascade unlocks every LOCKED task of the sub-object whose predecessors
// are now all COMPLETED. It must run under the sub-object's lock.
func (e Engine) cascade(ctx context.Context, tx *sql.Tx, r repo.Repo, subObjectID, triggeredBy string, fx *effects) error {
	siblings, err := r.Siblings(ctx, subObjectID)
	if err != nil {
		return err
	}
	_, err = e.applySchedule(ctx, tx, r, siblings, scheduler.Cascade(siblings), triggeredBy, fx)
	return err
}

// reconcile validates the sibling list after a structural edit and then
// unlocks or relocks tasks until their status matches eligibility.
func (e Engine) reconcile(ctx context.Context, tx *sql.Tx, r repo.Repo, siblings []domain.Task, triggeredBy string, fx *effects) ([]domain.Task, error) {
	if err := scheduler.CheckStructure(siblings); err != nil {
		return nil, err
	}
	return e.applySchedule(ctx, tx, r, siblings, scheduler.Reconcile(siblings), triggeredBy, fx)
}

// persistIndices writes the index of every task in next whose index
// differs from prev.
func persistIndices(ctx context.Context, r repo.Repo, prev, next []domain.Task, now string) error {
	old := make(map[string]int, len(prev))
	for _, t := range prev {
		old[t.ID] = t.Index
	}
	for _, t := range next {
		if idx, ok := old[t.ID]; ok && idx != t.Index {
			if err := r.UpdateTaskIndex(ctx, t.ID, t.Index, now); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReconcileSubObject re-evaluates every task of a sub-object and returns
// the tasks whose status changed.
func (e Engine) ReconcileSubObject(ctx context.Context, actor domain.Actor, subObjectID string) ([]domain.Task, error) {
	if err := e.require(ctx, actor, auth.PermStructureWrite); err != nil {
		return nil, err
	}
	var changed []domain.Task
	err := e.mutate(ctx, subObjectID, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		if _, err := r.GetSubObject(ctx, subObjectID); err != nil {
			return err
		}
		siblings, err := r.Siblings(ctx, subObjectID)
		if err != nil {
			return err
		}
		before := map[string]string{}
		for _, t := range siblings {
			before[t.ID] = t.Status
		}
		after, err := e.reconcile(ctx, tx, r, siblings, actor.ID, fx)
		if err != nil {
			return err
		}
		for _, t := range after {
			if before[t.ID] != t.Status {
				changed = append(changed, t)
			}
		}
		return nil
	})
	return changed, err
}
