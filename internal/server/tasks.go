package server

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"siteline/internal/domain"
	"siteline/internal/engine"
	"siteline/internal/scheduler"
)

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/subobjects/{subobject_id}/tasks",
		Summary:       "Create task",
		Tags:          []string{"tasks"},
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		SubObjectID string `path:"subobject_id"`
		Body        CreateTaskRequest
	}) (*output[domain.Task], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if strings.TrimSpace(input.Body.Title) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.TaskCreateOptions{
			SubObjectID:         input.SubObjectID,
			Title:               input.Body.Title,
			Type:                input.Body.Type,
			Assignees:           input.Body.Assignees,
			Deadline:            input.Body.Deadline,
			Priority:            input.Body.Priority,
			ChecklistTemplateID: input.Body.ChecklistTemplateID,
			Placement:           defaultPlacement,
		}
		if input.Body.Placement != nil && input.Body.Placement.Mode != "" {
			opts.Placement = *input.Body.Placement
		}
		t, err := e.CreateTask(ctx, actor, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/subobjects/{subobject_id}/tasks",
		Summary:     "List tasks of a sub-object in execution order",
		Tags:        []string{"tasks"},
	}, func(ctx context.Context, input *struct {
		SubObjectID string `path:"subobject_id"`
	}) (*output[[]domain.Task], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.ListTasks(ctx, actor, input.SubObjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNil(tasks)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Task with checklist, report and review history",
		Tags:        []string{"tasks"},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*output[domain.TaskDetail], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.TaskDetail(ctx, actor, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task attributes",
		Tags:        []string{"tasks"},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Body   UpdateTaskRequest
	}) (*output[domain.Task], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		up := engine.TaskUpdate{
			Title:         input.Body.Title,
			Deadline:      input.Body.Deadline,
			Priority:      input.Body.Priority,
			ClearPriority: input.Body.ClearPriority,
		}
		// assignees present as [] clears them; absent leaves them
		if _, ok := rawBodyMap(ctx)["assignees"]; ok {
			up.Assignees = nonNil(input.Body.Assignees)
		}
		t, err := e.UpdateTask(ctx, actor, input.TaskID, up)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/move",
		Summary:     "Move task within its sub-object",
		Tags:        []string{"tasks"},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Body   MoveTaskRequest
	}) (*output[domain.Task], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.MoveTask(ctx, actor, input.TaskID, input.Body.Placement)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-task-type",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/type",
		Summary:     "Switch task between SEQUENTIAL and PARALLEL",
		Tags:        []string{"tasks"},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Body   ChangeTaskTypeRequest
	}) (*output[domain.Task], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.ChangeTaskType(ctx, actor, input.TaskID, input.Body.Type)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}",
		Summary:       "Delete task",
		Tags:          []string{"tasks"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct{}, error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, actor, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "upload-evidence",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/evidence",
		Summary:       "Upload a photo; the returned ref goes into a report",
		Tags:          []string{"tasks"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		TaskID   string `path:"task_id"`
		Filename string `query:"filename"`
		RawBody  []byte `contentType:"application/octet-stream"`
	}) (*output[UploadEvidenceResponse], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(input.RawBody) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		filename := input.Filename
		if filename == "" {
			filename = "photo.bin"
		}
		ref, err := e.UploadEvidence(ctx, actor, input.TaskID, filename, bytes.NewReader(input.RawBody))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(UploadEvidenceResponse{Ref: ref}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-evidence",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/evidence",
		Summary:     "List stored evidence refs of a task",
		Tags:        []string{"tasks"},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*output[EvidenceResponse], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		refs, err := e.ListEvidence(ctx, actor, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(EvidenceResponse{TaskID: input.TaskID, Refs: nonNil(refs)}), nil
	})
}

// defaultPlacement is the end of the sub-object.
var defaultPlacement = scheduler.Placement{Mode: scheduler.PlaceEnd}
