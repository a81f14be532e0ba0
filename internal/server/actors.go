package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"siteline/internal/domain"
	"siteline/internal/engine"
)

func registerActors(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-actor",
		Method:        http.MethodPost,
		Path:          "/actors",
		Summary:       "Create actor",
		Tags:          []string{"actors"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateActorRequest
	}) (*output[domain.Actor], error) {
		by, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateActor(ctx, by, engine.ActorInput{ID: input.Body.ID, Name: input.Body.Name, Role: input.Body.Role})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-actors",
		Method:      http.MethodGet,
		Path:        "/actors",
		Summary:     "List actors",
		Tags:        []string{"actors"},
	}, func(ctx context.Context, input *struct {
		Role string `query:"role"`
	}) (*output[[]domain.Actor], error) {
		by, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		actors, err := e.ListActors(ctx, by, input.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNil(actors)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/actors/{actor_id}/api-keys",
		Summary:       "Issue an API key; the raw key is only returned here",
		Tags:          []string{"actors"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
		Body    CreateAPIKeyRequest
	}) (*output[CreateAPIKeyResponse], error) {
		by, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		raw, key, err := e.CreateAPIKey(ctx, by, input.ActorID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(CreateAPIKeyResponse{Key: raw, APIKey: key}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/actors/{actor_id}/api-keys",
		Summary:     "List API keys of an actor",
		Tags:        []string{"actors"},
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
	}) (*output[[]domain.APIKey], error) {
		by, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.ListAPIKeys(ctx, by, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNil(keys)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-api-key",
		Method:        http.MethodDelete,
		Path:          "/api-keys/{id}",
		Summary:       "Revoke an API key",
		Tags:          []string{"actors"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		by, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAPIKey(ctx, by, input.ID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}
