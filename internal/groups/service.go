// Package groups implements categories, groups, memberships, admin
// designations and ownership transfer.
package groups

import (
	"context"
	"encoding/json"
	"time"

	"guildhub/internal/apperr"
	"guildhub/internal/cache"
	"guildhub/internal/events"
	"guildhub/internal/identity"
	"guildhub/internal/models"
	"guildhub/internal/store"
	console "guildhub/internal/utils/logger"
)

var log = console.New("GROUPS")

type Service struct {
	store store.Store

	// edge holds the category list shared across instances; hot is the
	// process-local cache for member id lists and resolved permissions.
	edge cache.Cache
	hot  cache.Cache

	categoryTTL time.Duration
	hotTTL      time.Duration
}

func NewService(st store.Store, edge, hot cache.Cache, categoryTTL, hotTTL time.Duration) *Service {
	return &Service{
		store:       st,
		edge:        edge,
		hot:         hot,
		categoryTTL: categoryTTL,
		hotTTL:      hotTTL,
	}
}

// Categories

type CategoryInput struct {
	Name        string                `json:"name" validate:"required,min=2"`
	Description string                `json:"description"`
	Visibility  models.Visibility     `json:"visibility" validate:"required,visibility"`
	Policy      models.CreationPolicy `json:"policy" validate:"required,creation_policy"`
}

func (s *Service) CreateCategory(ctx context.Context, actor identity.Actor, input CategoryInput) (*models.Category, error) {
	if !actor.SystemAdmin {
		return nil, apperr.PermissionDenied("only system admins manage categories")
	}
	category := models.Category{
		Name:        input.Name,
		Description: input.Description,
		Visibility:  input.Visibility,
		Policy:      input.Policy,
	}
	if err := s.store.CreateCategory(ctx, &category); err != nil {
		return nil, err
	}
	s.invalidateCategories(ctx)
	return &category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, actor identity.Actor, id string, input CategoryInput) (*models.Category, error) {
	if !actor.SystemAdmin {
		return nil, apperr.PermissionDenied("only system admins manage categories")
	}
	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = input.Name
	category.Description = input.Description
	category.Visibility = input.Visibility
	category.Policy = input.Policy
	if err := s.store.UpdateCategory(ctx, category); err != nil {
		return nil, err
	}
	s.invalidateCategories(ctx)
	return category, nil
}

func (s *Service) DeleteCategory(ctx context.Context, actor identity.Actor, id string) error {
	if !actor.SystemAdmin {
		return apperr.PermissionDenied("only system admins manage categories")
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.invalidateCategories(ctx)
	return nil
}

func (s *Service) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return s.store.GetCategory(ctx, id)
}

// ListCategories serves from the edge cache when possible. Hidden categories
// are filtered for non-admin callers after the cache read so one cached list
// serves everyone.
func (s *Service) ListCategories(ctx context.Context, actor identity.Actor) ([]models.Category, error) {
	var categories []models.Category
	if raw, err := s.edge.Get(ctx, cache.CategoryListKey()); err == nil {
		if err := json.Unmarshal(raw, &categories); err != nil {
			log.Warn("discarding bad cached category list: %v", err)
			categories = nil
		}
	}
	if categories == nil {
		var err error
		categories, err = s.store.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(categories); err == nil {
			if err := s.edge.Put(ctx, cache.CategoryListKey(), raw, s.categoryTTL); err != nil {
				log.Warn("category list cache write failed: %v", err)
			}
		}
	}
	if actor.SystemAdmin {
		return categories, nil
	}
	visible := categories[:0:0]
	for _, category := range categories {
		if category.Visibility == models.VisibilityPublic {
			visible = append(visible, category)
		}
	}
	return visible, nil
}

// Groups

type GroupInput struct {
	CategoryID  string            `json:"categoryId" validate:"required,uuid"`
	Name        string            `json:"name" validate:"required,min=2"`
	Description string            `json:"description"`
	Visibility  models.Visibility `json:"visibility" validate:"required,visibility"`
	JoinMode    models.JoinMode   `json:"joinMode" validate:"required,join_mode"`
	AutoRecruit bool              `json:"autoRecruit"`
}

// CreateGroup creates a standard group and enrolls the creator as its owner
// and first direct member.
func (s *Service) CreateGroup(ctx context.Context, actor identity.Actor, input GroupInput) (*models.Group, error) {
	category, err := s.store.GetCategory(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}
	if category.Policy == models.CreationPolicyAdminOnly && !actor.SystemAdmin {
		return nil, apperr.PermissionDenied("category %s only allows admin-created groups", category.Name)
	}
	group := models.Group{
		CategoryID:  input.CategoryID,
		Name:        input.Name,
		Description: input.Description,
		Visibility:  input.Visibility,
		JoinMode:    input.JoinMode,
		Type:        models.GroupTypeStandard,
		OwnerID:     actor.UserID,
		AutoRecruit: input.AutoRecruit,
	}
	if err := s.store.CreateGroup(ctx, &group); err != nil {
		return nil, err
	}
	membership := models.Membership{
		GroupID:  group.ID,
		UserID:   actor.UserID,
		Source:   models.MembershipSourceDirect,
		JoinedAt: time.Now(),
	}
	if err := s.store.CreateMembership(ctx, &membership); err != nil {
		return nil, err
	}
	s.invalidateMembers(ctx, group.ID, actor.UserID)
	events.Emit(events.GroupCreated, &group)
	return &group, nil
}

// CreateDerivedGroup creates a rule-computed group. Derived groups cannot be
// joined directly; their membership is reconciled from rules.
func (s *Service) CreateDerivedGroup(ctx context.Context, actor identity.Actor, input GroupInput) (*models.Group, error) {
	category, err := s.store.GetCategory(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}
	if category.Policy == models.CreationPolicyAdminOnly && !actor.SystemAdmin {
		return nil, apperr.PermissionDenied("category %s only allows admin-created groups", category.Name)
	}
	group := models.Group{
		CategoryID:  input.CategoryID,
		Name:        input.Name,
		Description: input.Description,
		Visibility:  input.Visibility,
		JoinMode:    models.JoinModeInvitationOnly,
		Type:        models.GroupTypeDerived,
		OwnerID:     actor.UserID,
	}
	if err := s.store.CreateGroup(ctx, &group); err != nil {
		return nil, err
	}
	events.Emit(events.GroupCreated, &group)
	return &group, nil
}

func (s *Service) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	return s.store.GetGroup(ctx, id)
}

func (s *Service) ListGroupsByCategory(ctx context.Context, categoryID string) ([]models.Group, error) {
	return s.store.ListGroupsByCategory(ctx, categoryID)
}

type GroupUpdate struct {
	Name        *string            `json:"name,omitempty" validate:"omitempty,min=2"`
	Description *string            `json:"description,omitempty"`
	Visibility  *models.Visibility `json:"visibility,omitempty" validate:"omitempty,visibility"`
	JoinMode    *models.JoinMode   `json:"joinMode,omitempty" validate:"omitempty,join_mode"`
	AutoRecruit *bool              `json:"autoRecruit,omitempty"`
}

func (s *Service) UpdateGroup(ctx context.Context, actor identity.Actor, id string, update GroupUpdate) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, group, actor); err != nil {
		return nil, err
	}
	if update.Name != nil {
		group.Name = *update.Name
	}
	if update.Description != nil {
		group.Description = *update.Description
	}
	if update.Visibility != nil {
		group.Visibility = *update.Visibility
	}
	if update.JoinMode != nil {
		if group.Type == models.GroupTypeDerived && *update.JoinMode != models.JoinModeInvitationOnly {
			return nil, apperr.InvalidState("derived groups cannot accept direct joins")
		}
		group.JoinMode = *update.JoinMode
	}
	if update.AutoRecruit != nil {
		group.AutoRecruit = *update.AutoRecruit
	}
	if err := s.store.UpdateGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

func (s *Service) DeleteGroup(ctx context.Context, actor identity.Actor, id string) error {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if group.OwnerID != actor.UserID && !actor.SystemAdmin {
		return apperr.PermissionDenied("only the owner can delete a group")
	}
	memberships, err := s.store.ListMembershipsByGroup(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteGroup(ctx, id); err != nil {
		return err
	}
	for _, membership := range memberships {
		s.invalidateUser(ctx, membership.UserID)
	}
	if err := s.hot.Delete(ctx, cache.GroupMembersKey(id)); err != nil {
		log.Warn("member cache invalidation failed for group %s: %v", id, err)
	}
	events.Emit(events.GroupDeleted, group)
	return nil
}

// TransferOwnership hands the group to an existing member. The new owner's
// admin designation, if any, is removed before the owner column flips so the
// owner is never also listed as admin; the old owner is added as admin after.
func (s *Service) TransferOwnership(ctx context.Context, actor identity.Actor, groupID, newOwnerID string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.OwnerID != actor.UserID && !actor.SystemAdmin {
		return nil, apperr.PermissionDenied("only the owner can transfer ownership")
	}
	if group.OwnerID == newOwnerID {
		return nil, apperr.InvalidState("user already owns this group")
	}
	if _, err := s.store.GetMembership(ctx, groupID, newOwnerID); err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.InvalidState("new owner must be a member of the group")
		}
		return nil, err
	}

	oldOwnerID := group.OwnerID
	if err := s.store.DeleteAdmin(ctx, groupID, newOwnerID); err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	group.OwnerID = newOwnerID
	if err := s.store.UpdateGroup(ctx, group); err != nil {
		return nil, err
	}
	admin := models.AdminDesignation{GroupID: groupID, UserID: oldOwnerID}
	if err := s.store.CreateAdmin(ctx, &admin); err != nil && !apperr.IsConflict(err) {
		return nil, err
	}

	s.invalidateUser(ctx, oldOwnerID)
	s.invalidateUser(ctx, newOwnerID)
	events.Emit(events.OwnershipChanged, group)
	return group, nil
}

// Memberships

// JoinGroup is the self-service path. Only open groups accept it; approval
// and invitation-only groups route through recruitment instead.
func (s *Service) JoinGroup(ctx context.Context, actor identity.Actor, groupID string) (*models.Membership, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.Type == models.GroupTypeDerived {
		return nil, apperr.InvalidState("derived groups cannot be joined directly")
	}
	if group.JoinMode != models.JoinModeOpen {
		return nil, apperr.InvalidState("group %s does not accept open joins", group.Name)
	}
	return s.Admit(ctx, groupID, actor.UserID)
}

// Admit enrolls a user and settles recruitment state. Every successful join
// path, open join, invitation accept, code redemption and request approval,
// lands here so the user's other pending join requests for the group are
// always cancelled.
func (s *Service) Admit(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	membership := models.Membership{
		GroupID:  groupID,
		UserID:   userID,
		Source:   models.MembershipSourceDirect,
		JoinedAt: time.Now(),
	}
	if err := s.store.CreateMembership(ctx, &membership); err != nil {
		return nil, err
	}
	if err := s.cancelPendingJoinRequests(ctx, groupID, userID); err != nil {
		log.Warn("pending join request cleanup failed for user %s in group %s: %v", userID, groupID, err)
	}
	s.invalidateMembers(ctx, groupID, userID)
	events.Emit(events.MemberJoined, &membership)
	return &membership, nil
}

func (s *Service) cancelPendingJoinRequests(ctx context.Context, groupID, userID string) error {
	requests, err := s.store.ListPendingJoinRequestsByGroupUser(ctx, groupID, userID)
	if err != nil {
		return err
	}
	now := time.Now()
	for i := range requests {
		request := requests[i]
		request.Status = models.JoinRequestStatusCancelled
		request.RespondedAt = &now
		if err := s.store.UpdateJoinRequest(ctx, &request); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) LeaveGroup(ctx context.Context, actor identity.Actor, groupID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID == actor.UserID {
		return apperr.PermissionDenied("owner must transfer ownership before leaving")
	}
	if _, err := s.store.GetMembership(ctx, groupID, actor.UserID); err != nil {
		if apperr.IsNotFound(err) {
			return apperr.PermissionDenied("not a member of this group")
		}
		return err
	}
	return s.removeMember(ctx, group, actor.UserID)
}

func (s *Service) RemoveMember(ctx context.Context, actor identity.Actor, groupID, userID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.requireModerator(ctx, group, actor); err != nil {
		return err
	}
	if group.OwnerID == userID {
		return apperr.InvalidState("the owner cannot be removed from the group")
	}
	return s.removeMember(ctx, group, userID)
}

func (s *Service) removeMember(ctx context.Context, group *models.Group, userID string) error {
	if err := s.store.DeleteMembership(ctx, group.ID, userID); err != nil {
		return err
	}
	// A departing admin loses the designation with the membership.
	if err := s.store.DeleteAdmin(ctx, group.ID, userID); err != nil && !apperr.IsNotFound(err) {
		return err
	}
	s.invalidateMembers(ctx, group.ID, userID)
	events.Emit(events.MemberLeft, &models.Membership{GroupID: group.ID, UserID: userID})
	return nil
}

// ListMemberIDs returns the group's member ids, hot-cache first.
func (s *Service) ListMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	key := cache.GroupMembersKey(groupID)
	if raw, err := s.hot.Get(ctx, key); err == nil {
		var ids []string
		if err := json.Unmarshal(raw, &ids); err == nil {
			return ids, nil
		}
	}
	memberships, err := s.store.ListMembershipsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(memberships))
	for _, membership := range memberships {
		ids = append(ids, membership.UserID)
	}
	if raw, err := json.Marshal(ids); err == nil {
		if err := s.hot.Put(ctx, key, raw, s.hotTTL); err != nil {
			log.Warn("member cache write failed for group %s: %v", groupID, err)
		}
	}
	return ids, nil
}

func (s *Service) ListMembers(ctx context.Context, groupID string) ([]models.Membership, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListMembershipsByGroup(ctx, groupID)
}

// Admin designations

// AddAdmin designates an existing member as admin. Already-admin is a no-op;
// the owner never appears in the admin table.
func (s *Service) AddAdmin(ctx context.Context, actor identity.Actor, groupID, userID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID != actor.UserID && !actor.SystemAdmin {
		return apperr.PermissionDenied("only the owner designates admins")
	}
	if group.OwnerID == userID {
		return apperr.InvalidState("the owner already holds every admin right")
	}
	if _, err := s.store.GetMembership(ctx, groupID, userID); err != nil {
		if apperr.IsNotFound(err) {
			return apperr.InvalidState("admins must be members of the group")
		}
		return err
	}
	admin := models.AdminDesignation{GroupID: groupID, UserID: userID}
	if err := s.store.CreateAdmin(ctx, &admin); err != nil {
		if apperr.IsConflict(err) {
			return nil
		}
		return err
	}
	s.invalidateUser(ctx, userID)
	return nil
}

func (s *Service) RemoveAdmin(ctx context.Context, actor identity.Actor, groupID, userID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID != actor.UserID && !actor.SystemAdmin {
		return apperr.PermissionDenied("only the owner designates admins")
	}
	if err := s.store.DeleteAdmin(ctx, groupID, userID); err != nil {
		return err
	}
	s.invalidateUser(ctx, userID)
	return nil
}

func (s *Service) ListAdmins(ctx context.Context, groupID string) ([]models.AdminDesignation, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListAdminsByGroup(ctx, groupID)
}

// IsModerator reports whether the actor may act for the group: owner, admin
// or system admin.
func (s *Service) IsModerator(ctx context.Context, group *models.Group, actor identity.Actor) (bool, error) {
	if actor.SystemAdmin || group.OwnerID == actor.UserID {
		return true, nil
	}
	return s.store.IsAdmin(ctx, group.ID, actor.UserID)
}

func (s *Service) requireModerator(ctx context.Context, group *models.Group, actor identity.Actor) error {
	ok, err := s.IsModerator(ctx, group, actor)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.PermissionDenied("requires group admin or owner")
	}
	return nil
}

// Cache invalidation. Membership changes invalidate the group's member list
// and the affected user's resolved permissions, synchronously, before the
// call returns.

func (s *Service) invalidateMembers(ctx context.Context, groupID string, userIDs ...string) {
	if err := s.hot.Delete(ctx, cache.GroupMembersKey(groupID)); err != nil {
		log.Warn("member cache invalidation failed for group %s: %v", groupID, err)
	}
	for _, userID := range userIDs {
		s.invalidateUser(ctx, userID)
	}
}

func (s *Service) invalidateUser(ctx context.Context, userID string) {
	if err := s.hot.Delete(ctx, cache.UserPermissionsKey(userID)); err != nil {
		log.Warn("permission cache invalidation failed for user %s: %v", userID, err)
	}
}

func (s *Service) invalidateCategories(ctx context.Context) {
	if err := s.edge.Delete(ctx, cache.CategoryListKey()); err != nil {
		log.Warn("category cache invalidation failed: %v", err)
	}
}
