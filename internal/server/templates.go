package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"siteline/internal/domain"
	"siteline/internal/engine"
)

func registerTemplates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-checklist-template",
		Method:        http.MethodPost,
		Path:          "/checklist-templates",
		Summary:       "Create checklist template",
		Tags:          []string{"templates"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body ChecklistTemplateRequest
	}) (*output[domain.ChecklistTemplate], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateChecklistTemplate(ctx, actor, checklistTemplateInput(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-checklist-templates",
		Method:      http.MethodGet,
		Path:        "/checklist-templates",
		Summary:     "List checklist templates",
		Tags:        []string{"templates"},
	}, func(ctx context.Context, _ *struct{}) (*output[[]domain.ChecklistTemplate], error) {
		if _, authErr := currentActor(ctx); authErr != nil {
			return nil, authErr
		}
		ts, err := e.ListChecklistTemplates(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNil(ts)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-checklist-template",
		Method:      http.MethodGet,
		Path:        "/checklist-templates/{template_id}",
		Summary:     "Get checklist template",
		Tags:        []string{"templates"},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
	}) (*output[domain.ChecklistTemplate], error) {
		if _, authErr := currentActor(ctx); authErr != nil {
			return nil, authErr
		}
		t, err := e.GetChecklistTemplate(ctx, input.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-checklist-template",
		Method:      http.MethodPut,
		Path:        "/checklist-templates/{template_id}",
		Summary:     "Rewrite checklist template in place",
		Tags:        []string{"templates"},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
		Body       ChecklistTemplateRequest
	}) (*output[domain.ChecklistTemplate], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateChecklistTemplate(ctx, actor, input.TemplateID, checklistTemplateInput(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-checklist-template",
		Method:        http.MethodDelete,
		Path:          "/checklist-templates/{template_id}",
		Summary:       "Delete an unreferenced checklist template",
		Tags:          []string{"templates"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
	}) (*struct{}, error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteChecklistTemplate(ctx, actor, input.TemplateID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "checklist-template-usage",
		Method:      http.MethodGet,
		Path:        "/checklist-templates/{template_id}/usage",
		Summary:     "Sub-object templates referencing a checklist template",
		Tags:        []string{"templates"},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
	}) (*output[engine.TemplateUsage], error) {
		if _, authErr := currentActor(ctx); authErr != nil {
			return nil, authErr
		}
		u, err := e.ChecklistTemplateUsage(ctx, input.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		u.SubObjectTemplateIDs = nonNil(u.SubObjectTemplateIDs)
		return respond(u), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "replace-checklist-template",
		Method:        http.MethodPost,
		Path:          "/checklist-templates/{template_id}/replace",
		Summary:       "Create a new template, relink references and delete the old one",
		Tags:          []string{"templates"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
		Body       ChecklistTemplateRequest
	}) (*output[engine.ReplaceResult], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.ReplaceChecklistTemplate(ctx, actor, input.TemplateID, checklistTemplateInput(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-subobject-template",
		Method:        http.MethodPost,
		Path:          "/subobject-templates",
		Summary:       "Create sub-object template",
		Tags:          []string{"templates"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body SubObjectTemplateRequest
	}) (*output[domain.SubObjectTemplate], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateSubObjectTemplate(ctx, actor, subObjectTemplateInput(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-subobject-templates",
		Method:      http.MethodGet,
		Path:        "/subobject-templates",
		Summary:     "List sub-object templates",
		Tags:        []string{"templates"},
	}, func(ctx context.Context, _ *struct{}) (*output[[]domain.SubObjectTemplate], error) {
		if _, authErr := currentActor(ctx); authErr != nil {
			return nil, authErr
		}
		ts, err := e.ListSubObjectTemplates(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNil(ts)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-subobject-template",
		Method:      http.MethodGet,
		Path:        "/subobject-templates/{template_id}",
		Summary:     "Get sub-object template",
		Tags:        []string{"templates"},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
	}) (*output[domain.SubObjectTemplate], error) {
		if _, authErr := currentActor(ctx); authErr != nil {
			return nil, authErr
		}
		t, err := e.GetSubObjectTemplate(ctx, input.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-subobject-template",
		Method:      http.MethodPut,
		Path:        "/subobject-templates/{template_id}",
		Summary:     "Rewrite sub-object template",
		Tags:        []string{"templates"},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
		Body       SubObjectTemplateRequest
	}) (*output[domain.SubObjectTemplate], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateSubObjectTemplate(ctx, actor, input.TemplateID, subObjectTemplateInput(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-subobject-template",
		Method:        http.MethodDelete,
		Path:          "/subobject-templates/{template_id}",
		Summary:       "Delete sub-object template",
		Tags:          []string{"templates"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
	}) (*struct{}, error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteSubObjectTemplate(ctx, actor, input.TemplateID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func checklistTemplateInput(req ChecklistTemplateRequest) engine.ChecklistTemplateInput {
	return engine.ChecklistTemplateInput{ID: req.ID, Name: req.Name, Items: req.Items}
}

func subObjectTemplateInput(req SubObjectTemplateRequest) engine.SubObjectTemplateInput {
	return engine.SubObjectTemplateInput{ID: req.ID, Name: req.Name, Tasks: req.Tasks}
}
