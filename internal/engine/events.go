package engine

import (
	"context"

	"siteline/internal/domain"
	"siteline/internal/engine/auth"
	"siteline/internal/repo"
)

const permEventsRead = "events.read"

// ListEvents pages the event log newest first. A positive before returns
// only older events. Roles that cannot see drafts cannot read the log.
func (e Engine) ListEvents(ctx context.Context, actor domain.Actor, f repo.EventFilters, limit int, before int64) ([]domain.Event, error) {
	if !auth.CanSeeDrafts(actor.Role) {
		return nil, auth.ForbiddenError{Permission: permEventsRead, Role: actor.Role}
	}
	return e.Repo.LatestEvents(ctx, limit, before, f)
}

// ListEvidence returns the stored photo refs of a task.
func (e Engine) ListEvidence(ctx context.Context, actor domain.Actor, taskID string) ([]string, error) {
	if _, err := visibleTask(ctx, e.Repo, actor, taskID); err != nil {
		return nil, err
	}
	return e.Evidence.List(taskID)
}
