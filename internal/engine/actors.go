package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"siteline/internal/domain"
	"siteline/internal/engine/auth"
	"siteline/internal/events"
	"siteline/internal/repo"
)

type ActorInput struct {
	ID   string
	Name string
	Role string
}

func (e Engine) CreateActor(ctx context.Context, by domain.Actor, in ActorInput) (domain.Actor, error) {
	if err := e.require(ctx, by, auth.PermActorManage); err != nil {
		return domain.Actor{}, err
	}
	role := strings.ToUpper(strings.TrimSpace(in.Role))
	if !domain.ValidRole(role) {
		return domain.Actor{}, domain.Validation("role %q is not one of WORKER, FOREMAN, PM, SUPER_ADMIN, ESTIMATOR", in.Role)
	}
	a := domain.Actor{ID: strings.TrimSpace(in.ID), Name: in.Name, Role: role, CreatedAt: e.ts()}
	if a.ID == "" {
		a.ID = e.newID()
	}
	err := e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		if _, err := r.GetActor(ctx, a.ID); err == nil {
			return domain.Validation("actor %s already exists", a.ID)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err := r.InsertActor(ctx, a); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.ActorCreated, "", "actor", a.ID, by.ID, events.EventPayload{"role": a.Role})
	})
	return a, err
}

// Bootstrap makes sure a SUPER_ADMIN with adminID exists, so a fresh
// workspace has someone who can create the other actors.
func (e Engine) Bootstrap(ctx context.Context, adminID string) (domain.Actor, error) {
	if strings.TrimSpace(adminID) == "" {
		return domain.Actor{}, domain.Validation("bootstrap admin id is required")
	}
	a := domain.Actor{ID: adminID, Name: "Administrator", Role: domain.RoleSuperAdmin, CreatedAt: e.ts()}
	if err := e.Repo.EnsureActor(ctx, a); err != nil {
		return domain.Actor{}, fmt.Errorf("bootstrap admin: %w", err)
	}
	return e.Repo.GetActor(ctx, adminID)
}

func (e Engine) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	return e.Repo.GetActor(ctx, id)
}

func (e Engine) ListActors(ctx context.Context, by domain.Actor, role string) ([]domain.Actor, error) {
	if err := e.require(ctx, by, auth.PermActorManage); err != nil {
		return nil, err
	}
	return e.Repo.ListActors(ctx, strings.ToUpper(role))
}

// CreateAPIKey issues a key for actorID. The raw key is returned once and
// only its hash is stored. Actors may issue keys for themselves.
func (e Engine) CreateAPIKey(ctx context.Context, by domain.Actor, actorID, name string) (string, domain.APIKey, error) {
	if actorID == "" {
		actorID = by.ID
	}
	if actorID != by.ID {
		if err := e.require(ctx, by, auth.PermActorManage); err != nil {
			return "", domain.APIKey{}, err
		}
	}
	raw, err := generateKey()
	if err != nil {
		return "", domain.APIKey{}, err
	}
	key := domain.APIKey{ID: e.newID(), ActorID: actorID, Name: name, KeyHash: repo.HashAPIKey(raw), CreatedAt: e.ts()}
	err = e.mutate(ctx, "", func(tx *sql.Tx, r repo.Repo, fx *effects) error {
		if _, err := r.GetActor(ctx, actorID); err != nil {
			return err
		}
		if err := r.InsertAPIKey(ctx, key); err != nil {
			return err
		}
		return e.events().Append(ctx, tx, events.APIKeyCreated, "", "actor", actorID, by.ID, events.EventPayload{"key_id": key.ID, "name": name})
	})
	if err != nil {
		return "", domain.APIKey{}, err
	}
	return raw, key, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, by domain.Actor, actorID string) ([]domain.APIKey, error) {
	if actorID == "" || actorID != by.ID {
		if err := e.require(ctx, by, auth.PermActorManage); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListAPIKeys(ctx, actorID)
}

func (e Engine) DeleteAPIKey(ctx context.Context, by domain.Actor, id string) error {
	if err := e.require(ctx, by, auth.PermActorManage); err != nil {
		return err
	}
	return e.Repo.DeleteAPIKey(ctx, id)
}

// ResolveAPIKey returns the actor owning raw.
func (e Engine) ResolveAPIKey(ctx context.Context, raw string) (domain.Actor, error) {
	key, err := e.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(raw))
	if err != nil {
		return domain.Actor{}, err
	}
	return e.Repo.GetActor(ctx, key.ActorID)
}

func generateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "sl_" + hex.EncodeToString(buf), nil
}
