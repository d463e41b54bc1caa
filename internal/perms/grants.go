package perms

import (
	"context"

	"guildhub/internal/apperr"
	"guildhub/internal/identity"
	"guildhub/internal/models"
)

// GrantInput attaches a permission to a group. Exactly one form is allowed:
// PermissionID referencing a global permission, or the Custom* fields for a
// group-scoped one.
type GrantInput struct {
	PermissionID      string            `json:"permissionId,omitempty" validate:"omitempty,uuid"`
	CustomURN         string            `json:"customUrn,omitempty"`
	CustomName        string            `json:"customName,omitempty"`
	CustomDescription string            `json:"customDescription,omitempty"`
	TargetType        models.TargetType `json:"targetType" validate:"required,target_type"`
}

func (s *Service) ListGlobalPermissions(ctx context.Context) ([]models.Permission, error) {
	return s.store.ListPermissions(ctx)
}

func (s *Service) ListGroupPermissions(ctx context.Context, groupID string) ([]models.GroupPermission, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListGroupPermissionsByGroups(ctx, []string{groupID})
}

func (s *Service) AttachGroupPermission(ctx context.Context, actor identity.Actor, groupID string, input GrantInput) (*models.GroupPermission, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, group, actor); err != nil {
		return nil, err
	}
	global := input.PermissionID != ""
	custom := input.CustomURN != ""
	if global == custom {
		return nil, apperr.Validation("exactly one of permissionId or customUrn is required")
	}

	grant := models.GroupPermission{
		GroupID:    groupID,
		TargetType: input.TargetType,
	}
	if global {
		if _, err := s.store.GetPermission(ctx, input.PermissionID); err != nil {
			return nil, err
		}
		grant.PermissionID = &input.PermissionID
	} else {
		if input.CustomName == "" {
			return nil, apperr.Validation("custom permissions require a name")
		}
		grant.CustomURN = input.CustomURN
		grant.CustomName = input.CustomName
		grant.CustomDescription = input.CustomDescription
	}
	if err := s.store.CreateGroupPermission(ctx, &grant); err != nil {
		return nil, err
	}
	s.invalidateGroupMembers(ctx, groupID)
	return s.store.GetGroupPermission(ctx, grant.ID)
}

func (s *Service) RemoveGroupPermission(ctx context.Context, actor identity.Actor, groupID, grantID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.requireModerator(ctx, group, actor); err != nil {
		return err
	}
	grant, err := s.store.GetGroupPermission(ctx, grantID)
	if err != nil {
		return err
	}
	if grant.GroupID != groupID {
		return apperr.NotFound("group permission not found")
	}
	if err := s.store.DeleteGroupPermission(ctx, grantID); err != nil {
		return err
	}
	s.invalidateGroupMembers(ctx, groupID)
	return nil
}

func (s *Service) requireModerator(ctx context.Context, group *models.Group, actor identity.Actor) error {
	if actor.SystemAdmin || group.OwnerID == actor.UserID {
		return nil
	}
	isAdmin, err := s.store.IsAdmin(ctx, group.ID, actor.UserID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return apperr.PermissionDenied("requires group admin or owner")
	}
	return nil
}

// invalidateGroupMembers drops the cached resolution of every current member
// before the mutation returns.
func (s *Service) invalidateGroupMembers(ctx context.Context, groupID string) {
	memberships, err := s.store.ListMembershipsByGroup(ctx, groupID)
	if err != nil {
		log.Warn("member enumeration for cache invalidation failed for group %s: %v", groupID, err)
		return
	}
	for _, membership := range memberships {
		s.Invalidate(ctx, membership.UserID)
	}
}
