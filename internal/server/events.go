package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"siteline/internal/engine"
	"siteline/internal/repo"
)

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit events, newest first",
		Tags:        []string{"events"},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `query:"project_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
		Before     int64  `query:"before"`
	}) (*output[EventsResponse], error) {
		actor, authErr := currentActor(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f := repo.EventFilters{
			ProjectID:  input.ProjectID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
		}
		evs, err := e.ListEvents(ctx, actor, f, input.Limit, input.Before)
		if err != nil {
			return nil, handleError(err)
		}
		res := EventsResponse{Items: nonNil(evs)}
		if len(evs) == input.Limit {
			next := evs[len(evs)-1].ID
			res.NextCursor = &next
		}
		return respond(res), nil
	})
}
