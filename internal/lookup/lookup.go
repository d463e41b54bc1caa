// Package lookup resolves display names to user records. Recruitment
// addresses invitees by display name, never by raw id, so every invitation
// path goes through a Resolver.
package lookup

import (
	"context"

	"guildhub/internal/models"
	"guildhub/internal/store"
)

type Resolver interface {
	// ResolveDisplayName returns the user with the given display name, or
	// a NotFound error.
	ResolveDisplayName(ctx context.Context, displayName string) (*models.User, error)

	// ResolveUsers batch-loads users by id, keyed by id. Missing ids are
	// simply absent from the result.
	ResolveUsers(ctx context.Context, ids []string) (map[string]models.User, error)
}

type storeResolver struct {
	users store.UserStore
}

func NewResolver(users store.UserStore) Resolver {
	return &storeResolver{users: users}
}

func (r *storeResolver) ResolveDisplayName(ctx context.Context, displayName string) (*models.User, error) {
	return r.users.GetUserByDisplayName(ctx, displayName)
}

func (r *storeResolver) ResolveUsers(ctx context.Context, ids []string) (map[string]models.User, error) {
	users, err := r.users.ListUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	return byID, nil
}
