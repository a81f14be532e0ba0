package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"siteline/internal/domain"
	"siteline/internal/engine"
)

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create a draft project",
		Tags:          []string{"projects"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest
	}) (*output[domain.Project], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.Name) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		p, err := e.CreateProject(ctx, actor, engine.ProjectInput{ID: input.Body.ID, Name: input.Body.Name, Deadline: input.Body.Deadline})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List visible projects",
		Tags:        []string{"projects"},
	}, func(ctx context.Context, _ *struct{}) (*output[[]domain.Project], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ps, err := e.ListProjects(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNil(ps)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Tags:        []string{"projects"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*output[domain.Project], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.GetProject(ctx, actor, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Tags:        []string{"projects"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      UpdateProjectRequest
	}) (*output[domain.Project], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdateProject(ctx, actor, input.ProjectID, engine.ProjectUpdate{Name: input.Body.Name, Deadline: input.Body.Deadline})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-project",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}",
		Summary:       "Delete project and everything below it",
		Tags:          []string{"projects"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct{}, error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteProject(ctx, actor, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "publish-project",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/publish",
		Summary:     "Publish a draft project",
		Tags:        []string{"projects"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*output[domain.Project], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.PublishProject(ctx, actor, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-progress",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/progress",
		Summary:     "Task counts by status",
		Tags:        []string{"projects"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*output[ProgressResponse], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		counts, err := e.ProjectProgress(ctx, actor, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		res := ProgressResponse{ProjectID: input.ProjectID, Counts: counts}
		for status, n := range counts {
			res.Total += n
			if status == domain.StatusCompleted {
				res.Completed += n
			}
		}
		return respond(res), nil
	})
}

func registerObjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-object",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/objects",
		Summary:       "Create construction object",
		Tags:          []string{"structure"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      CreateObjectRequest
	}) (*output[domain.ConstructionObject], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := e.CreateObject(ctx, actor, engine.ObjectInput{ProjectID: input.ProjectID, Name: input.Body.Name, Address: input.Body.Address})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(o), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-objects",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/objects",
		Summary:     "List construction objects",
		Tags:        []string{"structure"},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*output[[]domain.ConstructionObject], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		objs, err := e.ListObjects(ctx, actor, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNil(objs)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-object",
		Method:      http.MethodGet,
		Path:        "/objects/{object_id}",
		Summary:     "Get construction object",
		Tags:        []string{"structure"},
	}, func(ctx context.Context, input *struct {
		ObjectID string `path:"object_id"`
	}) (*output[domain.ConstructionObject], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := e.GetObject(ctx, actor, input.ObjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(o), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-object",
		Method:      http.MethodPatch,
		Path:        "/objects/{object_id}",
		Summary:     "Update construction object",
		Tags:        []string{"structure"},
	}, func(ctx context.Context, input *struct {
		ObjectID string `path:"object_id"`
		Body     UpdateObjectRequest
	}) (*output[domain.ConstructionObject], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := e.UpdateObject(ctx, actor, input.ObjectID, engine.ObjectUpdate{Name: input.Body.Name, Address: input.Body.Address})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(o), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-object",
		Method:        http.MethodDelete,
		Path:          "/objects/{object_id}",
		Summary:       "Delete construction object",
		Tags:          []string{"structure"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		ObjectID string `path:"object_id"`
	}) (*struct{}, error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteObject(ctx, actor, input.ObjectID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-subobject",
		Method:        http.MethodPost,
		Path:          "/objects/{object_id}/subobjects",
		Summary:       "Create sub-object",
		Tags:          []string{"structure"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ObjectID string `path:"object_id"`
		Body     CreateSubObjectRequest
	}) (*output[domain.SubObject], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateSubObject(ctx, actor, engine.SubObjectInput{ObjectID: input.ObjectID, Name: input.Body.Name, Workers: input.Body.Workers})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-subobjects",
		Method:      http.MethodGet,
		Path:        "/objects/{object_id}/subobjects",
		Summary:     "List sub-objects",
		Tags:        []string{"structure"},
	}, func(ctx context.Context, input *struct {
		ObjectID string `path:"object_id"`
	}) (*output[[]domain.SubObject], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		subs, err := e.ListSubObjects(ctx, actor, input.ObjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNil(subs)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-subobject",
		Method:      http.MethodGet,
		Path:        "/subobjects/{subobject_id}",
		Summary:     "Get sub-object",
		Tags:        []string{"structure"},
	}, func(ctx context.Context, input *struct {
		SubObjectID string `path:"subobject_id"`
	}) (*output[domain.SubObject], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.GetSubObject(ctx, actor, input.SubObjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-subobject",
		Method:      http.MethodPatch,
		Path:        "/subobjects/{subobject_id}",
		Summary:     "Rename sub-object",
		Tags:        []string{"structure"},
	}, func(ctx context.Context, input *struct {
		SubObjectID string `path:"subobject_id"`
		Body        RenameSubObjectRequest
	}) (*output[domain.SubObject], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.RenameSubObject(ctx, actor, input.SubObjectID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-subobject",
		Method:        http.MethodDelete,
		Path:          "/subobjects/{subobject_id}",
		Summary:       "Delete sub-object and its tasks",
		Tags:          []string{"structure"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		SubObjectID string `path:"subobject_id"`
	}) (*struct{}, error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteSubObject(ctx, actor, input.SubObjectID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-workers",
		Method:      http.MethodPost,
		Path:        "/subobjects/{subobject_id}/workers",
		Summary:     "Add or remove assigned workers",
		Tags:        []string{"structure"},
	}, func(ctx context.Context, input *struct {
		SubObjectID string `path:"subobject_id"`
		Body        AssignWorkersRequest
	}) (*output[domain.SubObject], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.AssignWorkers(ctx, actor, input.SubObjectID, input.Body.Add, input.Body.Remove)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reconcile-subobject",
		Method:      http.MethodPost,
		Path:        "/subobjects/{subobject_id}/reconcile",
		Summary:     "Recompute LOCKED/ACTIVE statuses of the sub-object's tasks",
		Tags:        []string{"structure"},
	}, func(ctx context.Context, input *struct {
		SubObjectID string `path:"subobject_id"`
	}) (*output[[]domain.Task], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.ReconcileSubObject(ctx, actor, input.SubObjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNil(tasks)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "apply-subobject-template",
		Method:        http.MethodPost,
		Path:          "/subobjects/{subobject_id}/apply-template",
		Summary:       "Create tasks from a sub-object template",
		Tags:          []string{"structure"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		SubObjectID string `path:"subobject_id"`
		Body        ApplyTemplateRequest
	}) (*output[[]domain.Task], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := e.ApplySubObjectTemplate(ctx, actor, input.SubObjectID, input.Body.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNil(tasks)), nil
	})
}
