// Package perms resolves the effective permission set of users from their
// memberships, admin designations and group permission grants.
package perms

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"guildhub/internal/cache"
	"guildhub/internal/models"
	"guildhub/internal/store"
	console "guildhub/internal/utils/logger"

	"golang.org/x/sync/errgroup"
)

var log = console.New("PERMS")

// groupRole is a user's role within one specific group.
type groupRole int

const (
	roleMember groupRole = iota
	roleAdmin
	roleOwner
)

// grantTable is the single place target types map to roles. all_admins is
// deliberately admin-only; the owner is not an implicit admin here.
var grantTable = map[models.TargetType]func(groupRole) bool{
	models.TargetAllMembers:     func(groupRole) bool { return true },
	models.TargetAllAdmins:      func(r groupRole) bool { return r == roleAdmin },
	models.TargetOwnerOnly:      func(r groupRole) bool { return r == roleOwner },
	models.TargetOwnerAndAdmins: func(r groupRole) bool { return r == roleOwner || r == roleAdmin },
}

// ResolvedPermission is one effective permission a user holds, with enough
// provenance to show where it came from.
type ResolvedPermission struct {
	URN         string                  `json:"urn"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Category    string                  `json:"category,omitempty"`
	GroupID     string                  `json:"groupId"`
	GroupName   string                  `json:"groupName"`
	TargetType  models.TargetType       `json:"targetType"`
	Source      models.PermissionSource `json:"source"`
}

type Service struct {
	store  store.Store
	hot    cache.Cache
	hotTTL time.Duration

	// fanOutLimit bounds concurrent per-user resolutions in the group-wide
	// queries.
	fanOutLimit int
}

func NewService(st store.Store, hot cache.Cache, hotTTL time.Duration) *Service {
	return &Service{store: st, hot: hot, hotTTL: hotTTL, fanOutLimit: 8}
}

// GetUserPermissions resolves the user's effective permissions across every
// group they belong to, deduplicated by URN with the first occurrence kept.
func (s *Service) GetUserPermissions(ctx context.Context, userID string) ([]ResolvedPermission, error) {
	key := cache.UserPermissionsKey(userID)
	if raw, err := s.hot.Get(ctx, key); err == nil {
		var cached []ResolvedPermission
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}
	resolved, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(resolved); err == nil {
		if err := s.hot.Put(ctx, key, raw, s.hotTTL); err != nil {
			log.Warn("permission cache write failed for user %s: %v", userID, err)
		}
	}
	return resolved, nil
}

func (s *Service) resolve(ctx context.Context, userID string) ([]ResolvedPermission, error) {
	memberships, err := s.store.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return []ResolvedPermission{}, nil
	}

	groupIDs := make([]string, 0, len(memberships))
	for _, membership := range memberships {
		groupIDs = append(groupIDs, membership.GroupID)
	}
	groups, err := s.store.ListGroupsByIDs(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	groupsByID := make(map[string]models.Group, len(groups))
	for _, group := range groups {
		groupsByID[group.ID] = group
	}

	adminGroupIDs, err := s.store.ListUserAdminGroupIDs(ctx, userID, groupIDs)
	if err != nil {
		return nil, err
	}
	adminIn := make(map[string]bool, len(adminGroupIDs))
	for _, id := range adminGroupIDs {
		adminIn[id] = true
	}

	grants, err := s.store.ListGroupPermissionsByGroups(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	grantsByGroup := make(map[string][]models.GroupPermission, len(groupIDs))
	for _, grant := range grants {
		grantsByGroup[grant.GroupID] = append(grantsByGroup[grant.GroupID], grant)
	}

	resolved := []ResolvedPermission{}
	seen := make(map[string]bool)
	// Walk groups in membership order so first-seen dedupe is deterministic.
	for _, membership := range memberships {
		group, ok := groupsByID[membership.GroupID]
		if !ok {
			continue
		}
		role := roleMember
		switch {
		case group.OwnerID == userID:
			role = roleOwner
		case adminIn[group.ID]:
			role = roleAdmin
		}
		for _, grant := range grantsByGroup[group.ID] {
			applies, ok := grantTable[grant.TargetType]
			if !ok || !applies(role) {
				continue
			}
			permission := materialize(grant, group)
			if seen[permission.URN] {
				continue
			}
			seen[permission.URN] = true
			resolved = append(resolved, permission)
		}
	}
	return resolved, nil
}

// materialize fills the output record from either the referenced global
// permission or the grant's own custom fields.
func materialize(grant models.GroupPermission, group models.Group) ResolvedPermission {
	resolved := ResolvedPermission{
		GroupID:    group.ID,
		GroupName:  group.Name,
		TargetType: grant.TargetType,
	}
	if grant.IsGlobal() && grant.Permission != nil {
		resolved.URN = grant.Permission.URN
		resolved.Name = grant.Permission.Name
		resolved.Description = grant.Permission.Description
		resolved.Source = models.PermissionSourceGlobal
		if grant.Permission.Category != nil {
			resolved.Category = grant.Permission.Category.Name
		}
		return resolved
	}
	resolved.URN = grant.CustomURN
	resolved.Name = grant.CustomName
	resolved.Description = grant.CustomDescription
	resolved.Source = models.PermissionSourceGroupScoped
	return resolved
}

// HasPermission reports whether the user holds the given URN anywhere.
func (s *Service) HasPermission(ctx context.Context, userID, urn string) (bool, error) {
	resolved, err := s.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, permission := range resolved {
		if permission.URN == urn {
			return true, nil
		}
	}
	return false, nil
}

// GetGroupMemberPermissions resolves every member of a group, filtered to
// permissions granted by that group.
func (s *Service) GetGroupMemberPermissions(ctx context.Context, groupID string) (map[string][]ResolvedPermission, error) {
	return s.GetMultiGroupMemberPermissions(ctx, []string{groupID})
}

// GetMultiGroupMemberPermissions fans out per-user resolution across the
// union of members of the given groups. The per-user cache makes repeat
// calls cheap; the errgroup bounds concurrency against the store.
func (s *Service) GetMultiGroupMemberPermissions(ctx context.Context, groupIDs []string) (map[string][]ResolvedPermission, error) {
	wanted := make(map[string]bool, len(groupIDs))
	userIDs := make([]string, 0)
	seenUser := make(map[string]bool)
	for _, groupID := range groupIDs {
		wanted[groupID] = true
		memberships, err := s.store.ListMembershipsByGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		for _, membership := range memberships {
			if !seenUser[membership.UserID] {
				seenUser[membership.UserID] = true
				userIDs = append(userIDs, membership.UserID)
			}
		}
	}

	var mu sync.Mutex
	result := make(map[string][]ResolvedPermission, len(userIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.fanOutLimit)
	for _, userID := range userIDs {
		eg.Go(func() error {
			resolved, err := s.GetUserPermissions(egCtx, userID)
			if err != nil {
				return err
			}
			scoped := make([]ResolvedPermission, 0, len(resolved))
			for _, permission := range resolved {
				if wanted[permission.GroupID] {
					scoped = append(scoped, permission)
				}
			}
			mu.Lock()
			result[userID] = scoped
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Invalidate drops a user's cached resolution. Mutation paths that change
// what a user can do call this before returning.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	if err := s.hot.Delete(ctx, cache.UserPermissionsKey(userID)); err != nil {
		log.Warn("permission cache invalidation failed for user %s: %v", userID, err)
	}
}
