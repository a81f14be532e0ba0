package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"siteline/internal/domain"
	"siteline/internal/engine"
)

func registerReview(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/submit",
		Summary:     "Submit a report for foreman review",
		Tags:        []string{"review"},
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Body   SubmitRequest
	}) (*output[domain.TaskDetail], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.Submit(ctx, actor, engine.SubmitInput{
			TaskID:  input.TaskID,
			Comment: input.Body.Comment,
			Answers: input.Body.Answers,
			Photos:  input.Body.Photos,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decide-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/decision",
		Summary:     "Approve or reject a task under review",
		Tags:        []string{"review"},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Body   DecisionRequest
	}) (*output[domain.Task], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var approve bool
		switch input.Body.Decision {
		case "approve":
			approve = true
		case "reject":
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "decision must be approve or reject", nil)
		}
		t, err := e.Decide(ctx, actor, input.TaskID, approve, input.Body.Comment)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-queue",
		Method:      http.MethodGet,
		Path:        "/review-queue",
		Summary:     "Tasks waiting at the caller's review tier",
		Tags:        []string{"review"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
	}) (*output[[]domain.Task], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.ReviewQueue(ctx, actor, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNil(tasks)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-tasks",
		Method:      http.MethodGet,
		Path:        "/me/tasks",
		Summary:     "Tasks assigned to the caller",
		Tags:        []string{"review"},
	}, func(ctx context.Context, _ *struct{}) (*output[[]domain.Task], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.MyTasks(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNil(tasks)), nil
	})
}
