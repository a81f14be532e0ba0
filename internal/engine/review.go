package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"siteline/internal/domain"
	"siteline/internal/engine/auth"
	"siteline/internal/events"
	"siteline/internal/evidence"
	"siteline/internal/lifecycle"
	"siteline/internal/repo"
)

// UploadEvidence stores a photo for a task and returns its ref. Workers
// may upload only to tasks they are assigned to.
func (e Engine) UploadEvidence(ctx context.Context, actor domain.Actor, taskID, filename string, body io.Reader) (string, error) {
	if err := e.require(ctx, actor, auth.PermEvidenceUpload); err != nil {
		return "", err
	}
	t, err := visibleTask(ctx, e.Repo, actor, taskID)
	if err != nil {
		return "", err
	}
	if actor.Role == domain.RoleWorker && !t.HasAssignee(actor.ID) {
		return "", auth.ForbiddenError{Permission: auth.PermEvidenceUpload, Role: actor.Role}
	}
	ref, size, err := e.Evidence.Put(ctx, taskID, filename, body)
	if err != nil {
		return "", err
	}
	if err := e.events().Append(ctx, e.DB, events.EvidenceUploaded, t.ProjectID, "task", t.ID, actor.ID, events.EventPayload{"ref": ref, "bytes": size}); err != nil {
		return "", err
	}
	return ref, nil
}

type SubmitInput struct {
	TaskID  string
	Comment string
	Answers []domain.ChecklistAnswer
	Photos  []domain.PhotoRef
}

// Submit records a worker's report and moves the task to foreman review.
// The report replaces any earlier one. Every checklist item must end up
// completed and every photo-required item needs a stored photo; all
// problems are reported together and nothing is written.
func (e Engine) Submit(ctx context.Context, actor domain.Actor, in SubmitInput) (domain.TaskDetail, error) {
	detail, err := e.submit(ctx, actor, in)
	if err != nil {
		e.Metrics.RejectedSubmission(rejectReason(err))
		return domain.TaskDetail{}, err
	}
	return detail, nil
}

func (e Engine) submit(ctx context.Context, actor domain.Actor, in SubmitInput) (domain.TaskDetail, error) {
	current, err := visibleTask(ctx, e.Repo, actor, in.TaskID)
	if err != nil {
		return domain.TaskDetail{}, err
	}
	var detail domain.TaskDetail
	err = e.mutate(ctx, current.SubObjectID, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		t, err := r.GetTask(ctx, in.TaskID)
		if err != nil {
			return err
		}
		rule, err := lifecycle.Next(t.Status, lifecycle.Submit, actor.Role)
		if err != nil {
			return err
		}
		if rule.RequiresAssignee && !t.HasAssignee(actor.ID) {
			return auth.ForbiddenError{Permission: "task.submit", Role: actor.Role}
		}
		items, err := r.ListChecklistItems(ctx, t.ID)
		if err != nil {
			return err
		}
		merged, err := e.checkReport(items, t.ID, in)
		if err != nil {
			return err
		}
		for i, it := range merged {
			if it.IsCompleted != items[i].IsCompleted {
				if err := r.UpdateChecklistItem(ctx, it); err != nil {
					return err
				}
			}
		}
		rep := domain.Report{
			TaskID:      t.ID,
			ActorID:     actor.ID,
			Comment:     strings.TrimSpace(in.Comment),
			Answers:     in.Answers,
			Photos:      in.Photos,
			SubmittedAt: e.ts(),
		}
		if rep.Answers == nil {
			rep.Answers = []domain.ChecklistAnswer{}
		}
		if rep.Photos == nil {
			rep.Photos = []domain.PhotoRef{}
		}
		if err := r.ReplaceReport(ctx, rep); err != nil {
			return err
		}
		if err := e.events().Append(ctx, tx, events.ReportSubmitted, t.ProjectID, "task", t.ID, actor.ID, events.EventPayload{
			"answers": len(rep.Answers),
			"photos":  len(rep.Photos),
			"from":    t.Status,
		}); err != nil {
			return err
		}
		if t, err = e.transition(ctx, tx, r, t, rule, actor, rep.Comment, fx); err != nil {
			return err
		}
		reviews, err := r.ListReviews(ctx, t.ID)
		if err != nil {
			return err
		}
		detail = domain.TaskDetail{Task: t, Checklist: domain.Checklist{TaskID: t.ID, Items: merged}, Report: &rep, Reviews: reviews}
		return nil
	})
	return detail, err
}

// checkReport merges the answers onto items and validates the result. It
// returns the merged items in the same order as items.
func (e Engine) checkReport(items []domain.ChecklistItem, taskID string, in SubmitInput) ([]domain.ChecklistItem, error) {
	var issues []string
	pos := make(map[string]int, len(items))
	merged := make([]domain.ChecklistItem, len(items))
	copy(merged, items)
	for i, it := range merged {
		pos[it.ID] = i
	}
	for _, a := range in.Answers {
		i, ok := pos[a.ChecklistItemID]
		if !ok {
			issues = append(issues, fmt.Sprintf("answer names unknown checklist item %s", a.ChecklistItemID))
			continue
		}
		merged[i].IsCompleted = a.Completed
	}
	photos := map[string]int{}
	for _, p := range in.Photos {
		if _, ok := pos[p.ChecklistItemID]; !ok {
			issues = append(issues, fmt.Sprintf("photo names unknown checklist item %s", p.ChecklistItemID))
			continue
		}
		if !evidence.BelongsTo(p.Ref, taskID) {
			issues = append(issues, fmt.Sprintf("photo %s does not belong to this task", p.Ref))
			continue
		}
		ok, err := e.Evidence.Exists(p.Ref)
		if err != nil {
			return nil, err
		}
		if !ok {
			issues = append(issues, fmt.Sprintf("photo %s was not uploaded", p.Ref))
			continue
		}
		photos[p.ChecklistItemID]++
	}
	for _, it := range merged {
		if !it.IsCompleted {
			issues = append(issues, fmt.Sprintf("checklist item %q is not completed", it.Description))
		}
		if it.IsPhotoRequired && photos[it.ID] == 0 {
			issues = append(issues, fmt.Sprintf("checklist item %q requires a photo", it.Description))
		}
	}
	if len(issues) > 0 {
		return nil, domain.ValidationError{Issues: issues}
	}
	return merged, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// Decide records a review decision. Which tier the task moves to depends
// on its status and the reviewer's role; an approval into COMPLETED
// unlocks successors in the same transaction.
func (e Engine) Decide(ctx context.Context, actor domain.Actor, taskID string, approve bool, comment string) (domain.Task, error) {
	current, err := visibleTask(ctx, e.Repo, actor, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	ev := lifecycle.Approve
	if !approve {
		ev = lifecycle.Reject
	}
	comment = strings.TrimSpace(comment)
	var t domain.Task
	err = e.mutate(ctx, current.SubObjectID, func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		var err error
		if t, err = r.GetTask(ctx, taskID); err != nil {
			return err
		}
		rule, err := lifecycle.Next(t.Status, ev, actor.Role)
		if err != nil {
			return err
		}
		if rule.CommentRequired && comment == "" {
			return domain.Validation("a comment is required to reject")
		}
		from := t.Status
		if t, err = e.transition(ctx, tx, r, t, rule, actor, comment, fx); err != nil {
			return err
		}
		rv := domain.Review{
			ID:         e.newID(),
			TaskID:     t.ID,
			ActorID:    actor.ID,
			Role:       actor.Role,
			Approve:    approve,
			Comment:    comment,
			FromStatus: from,
			ToStatus:   t.Status,
			CreatedAt:  e.ts(),
		}
		if err := r.InsertReview(ctx, rv); err != nil {
			return err
		}
		if err := e.events().Append(ctx, tx, events.ReviewDecided, t.ProjectID, "task", t.ID, actor.ID, events.EventPayload{
			"approve": approve,
			"from":    from,
			"to":      t.Status,
			"comment": comment,
		}); err != nil {
			return err
		}
		if t.Status == domain.StatusCompleted {
			return e.cascade(ctx, tx, r, t.SubObjectID, actor.ID, fx)
		}
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	e.Metrics.Review(approve)
	return t, nil
}

// ReviewQueue lists tasks awaiting the actor's review tier in published
// projects. An empty projectID covers every project.
func (e Engine) ReviewQueue(ctx context.Context, actor domain.Actor, projectID string) ([]domain.Task, error) {
	if err := e.require(ctx, actor, auth.PermReviewQueue); err != nil {
		return nil, err
	}
	statuses := []string{domain.StatusUnderReviewForeman}
	if actor.Role == domain.RolePM || actor.Role == domain.RoleSuperAdmin {
		statuses = append(statuses, domain.StatusUnderReviewPM)
	}
	return e.Repo.ListTasks(ctx, repo.TaskFilters{ProjectID: projectID, Statuses: statuses, PublishedOnly: true})
}

// MyTasks lists the actor's assigned tasks that can be worked on or are
// waiting on review, in published projects.
func (e Engine) MyTasks(ctx context.Context, actor domain.Actor) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx, repo.TaskFilters{
		AssigneeID: actor.ID,
		Statuses: []string{
			domain.StatusActive,
			domain.StatusUnderReviewForeman,
			domain.StatusReworkForeman,
			domain.StatusUnderReviewPM,
			domain.StatusReworkPM,
		},
		PublishedOnly: true,
	})
}

// TaskDetail returns a task with its checklist, current report and review
// history.
func (e Engine) TaskDetail(ctx context.Context, actor domain.Actor, taskID string) (domain.TaskDetail, error) {
	t, err := visibleTask(ctx, e.Repo, actor, taskID)
	if err != nil {
		return domain.TaskDetail{}, err
	}
	cl, err := e.Repo.GetChecklist(ctx, taskID)
	if err != nil {
		return domain.TaskDetail{}, err
	}
	d := domain.TaskDetail{Task: t, Checklist: cl}
	rep, err := e.Repo.GetReport(ctx, taskID)
	switch {
	case err == nil:
		d.Report = &rep
	case !errors.Is(err, domain.ErrNotFound):
		return domain.TaskDetail{}, err
	}
	if d.Reviews, err = e.Repo.ListReviews(ctx, taskID); err != nil {
		return domain.TaskDetail{}, err
	}
	return d, nil
}
