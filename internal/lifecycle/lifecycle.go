// Package lifecycle is the task state table. Every allowed transition is
// one row; anything not in the table is rejected.
package lifecycle

import (
	"siteline/internal/domain"
	"siteline/internal/engine/auth"
)

type Event string

const (
	Unlock  Event = "unlock"
	Lock    Event = "lock"
	Submit  Event = "submit"
	Approve Event = "approve"
	Reject  Event = "reject"
)

// Rule is one row of the state table.
type Rule struct {
	From  string
	Event Event
	Roles []string
	To    string
	// CommentRequired is checked by the caller after the rule is chosen.
	CommentRequired bool
	// RequiresAssignee restricts the actor to the task's assignees.
	RequiresAssignee bool
}

var (
	system   = []string{domain.RoleSystem}
	worker   = []string{domain.RoleWorker}
	foreman  = []string{domain.RoleForeman}
	managers = []string{domain.RolePM, domain.RoleSuperAdmin}
)

var table = []Rule{
	{From: domain.StatusLocked, Event: Unlock, Roles: system, To: domain.StatusActive},
	{From: domain.StatusActive, Event: Lock, Roles: system, To: domain.StatusLocked},

	{From: domain.StatusActive, Event: Submit, Roles: worker, To: domain.StatusUnderReviewForeman, RequiresAssignee: true},
	{From: domain.StatusReworkForeman, Event: Submit, Roles: worker, To: domain.StatusUnderReviewForeman, RequiresAssignee: true},
	{From: domain.StatusReworkPM, Event: Submit, Roles: worker, To: domain.StatusUnderReviewForeman, RequiresAssignee: true},

	{From: domain.StatusUnderReviewForeman, Event: Approve, Roles: foreman, To: domain.StatusUnderReviewPM},
	{From: domain.StatusUnderReviewForeman, Event: Approve, Roles: managers, To: domain.StatusCompleted},
	{From: domain.StatusUnderReviewForeman, Event: Reject, Roles: foreman, To: domain.StatusReworkForeman, CommentRequired: true},

	{From: domain.StatusUnderReviewPM, Event: Approve, Roles: managers, To: domain.StatusCompleted},
	{From: domain.StatusUnderReviewPM, Event: Reject, Roles: managers, To: domain.StatusReworkPM, CommentRequired: true},
}

// Rules returns a copy of the state table.
func Rules() []Rule {
	out := make([]Rule, len(table))
	copy(out, table)
	return out
}

// Next finds the rule for event fired by role from status. With no row for
// (from, event) it fails with domain.TransitionError; when rows exist but
// none lists role it fails with auth.ForbiddenError.
func Next(from string, ev Event, role string) (Rule, error) {
	matched := false
	for _, r := range table {
		if r.From != from || r.Event != ev {
			continue
		}
		matched = true
		for _, allowed := range r.Roles {
			if allowed == role {
				return r, nil
			}
		}
	}
	if !matched {
		return Rule{}, domain.TransitionError{From: from, Event: string(ev)}
	}
	return Rule{}, auth.ForbiddenError{Permission: "task." + string(ev), Role: role}
}

// Targets lists the statuses reachable from status by any event.
func Targets(from string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range table {
		if r.From == from && !seen[r.To] {
			seen[r.To] = true
			out = append(out, r.To)
		}
	}
	return out
}
