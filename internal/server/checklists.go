package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"siteline/internal/domain"
	"siteline/internal/engine"
)

func registerChecklists(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-checklist",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/checklist",
		Summary:     "Get task checklist",
		Tags:        []string{"checklists"},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*output[domain.Checklist], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cl, err := e.GetChecklist(ctx, actor, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(cl), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-checklist-item",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/checklist/items",
		Summary:       "Add checklist item",
		Tags:          []string{"checklists"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Body   AddChecklistItemRequest
	}) (*output[domain.ChecklistItem], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.AddChecklistItem(ctx, actor, input.TaskID, engine.ChecklistItemInput{
			Description:     input.Body.Description,
			OrderIndex:      input.Body.OrderIndex,
			IsPhotoRequired: input.Body.IsPhotoRequired,
			Methodology:     input.Body.Methodology,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(it), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-checklist-item",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/checklist/move",
		Summary:     "Move a checklist item between positions",
		Tags:        []string{"checklists"},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Body   MoveChecklistItemRequest
	}) (*output[domain.Checklist], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cl, err := e.MoveChecklistItem(ctx, actor, input.TaskID, input.Body.From, input.Body.To)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(cl), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-checklist-item",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}/checklist/items/{item_id}",
		Summary:     "Edit description, photo requirement or methodology",
		Tags:        []string{"checklists"},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		ItemID string `path:"item_id"`
		Body   UpdateChecklistItemRequest
	}) (*output[domain.ChecklistItem], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var (
			it  domain.ChecklistItem
			err error
		)
		edited := false
		if input.Body.Description != nil {
			if it, err = e.SetItemDescription(ctx, actor, input.TaskID, input.ItemID, *input.Body.Description); err != nil {
				return nil, handleError(err)
			}
			edited = true
		}
		if input.Body.IsPhotoRequired != nil {
			if it, err = e.SetItemPhotoRequired(ctx, actor, input.TaskID, input.ItemID, *input.Body.IsPhotoRequired); err != nil {
				return nil, handleError(err)
			}
			edited = true
		}
		if _, ok := rawBodyMap(ctx)["methodology"]; ok {
			if it, err = e.SetItemMethodology(ctx, actor, input.TaskID, input.ItemID, input.Body.Methodology); err != nil {
				return nil, handleError(err)
			}
			edited = true
		}
		if !edited {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "no changes", nil)
		}
		return respond(it), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-checklist-item",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}/checklist/items/{item_id}",
		Summary:     "Delete checklist item",
		Tags:        []string{"checklists"},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		ItemID string `path:"item_id"`
	}) (*output[domain.Checklist], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cl, err := e.DeleteChecklistItem(ctx, actor, input.TaskID, input.ItemID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(cl), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-checklist-item",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/checklist/items/{item_id}/toggle",
		Summary:     "Mark checklist item done or not done",
		Tags:        []string{"checklists"},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		ItemID string `path:"item_id"`
		Body   ToggleChecklistItemRequest
	}) (*output[domain.ChecklistItem], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.ToggleChecklistItem(ctx, actor, input.TaskID, input.ItemID, input.Body.Completed)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(it), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "apply-checklist-template",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/checklist/apply-template",
		Summary:     "Replace the checklist with a template's items",
		Tags:        []string{"checklists"},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Body   ApplyTemplateRequest
	}) (*output[domain.Checklist], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cl, err := e.ApplyChecklistTemplate(ctx, actor, input.TaskID, input.Body.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(cl), nil
	})
}
