package store

import (
	"context"
	"time"

	"guildhub/internal/models"
)

// The engine consumes storage through these narrow interfaces so tests can
// run against in-memory fakes and the production wiring against gorm. All
// implementations translate missing rows into apperr NotFound and
// unique-index violations into apperr Conflict; under interleaved
// check-then-insert sequences the unique index is the real guard, so callers
// must be prepared for Conflict from Create even after a clean pre-check.

type CategoryStore interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

type GroupStore interface {
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	GetGroupByName(ctx context.Context, categoryID, name string) (*models.Group, error)
	ListGroupsByCategory(ctx context.Context, categoryID string) ([]models.Group, error)
	ListGroupsByIDs(ctx context.Context, ids []string) ([]models.Group, error)
	ListGroupsByType(ctx context.Context, groupType models.GroupType) ([]models.Group, error)
	ListAutoRecruitGroups(ctx context.Context) ([]models.Group, error)
	UpdateGroup(ctx context.Context, group *models.Group) error
	DeleteGroup(ctx context.Context, id string) error
}

type MembershipStore interface {
	CreateMembership(ctx context.Context, membership *models.Membership) error
	GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error)
	ListMembershipsByGroup(ctx context.Context, groupID string) ([]models.Membership, error)
	ListMembershipsByUser(ctx context.Context, userID string) ([]models.Membership, error)
	ListMembershipsByGroupSource(ctx context.Context, groupID string, source models.MembershipSource) ([]models.Membership, error)
	DeleteMembership(ctx context.Context, groupID, userID string) error
}

type AdminStore interface {
	CreateAdmin(ctx context.Context, admin *models.AdminDesignation) error
	IsAdmin(ctx context.Context, groupID, userID string) (bool, error)
	ListAdminsByGroup(ctx context.Context, groupID string) ([]models.AdminDesignation, error)
	// ListUserAdminGroupIDs returns the subset of groupIDs in which the user
	// holds an admin designation.
	ListUserAdminGroupIDs(ctx context.Context, userID string, groupIDs []string) ([]string, error)
	DeleteAdmin(ctx context.Context, groupID, userID string) error
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByDisplayName(ctx context.Context, name string) (*models.User, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type InvitationStore interface {
	CreateInvitation(ctx context.Context, invitation *models.Invitation) error
	GetInvitation(ctx context.Context, id string) (*models.Invitation, error)
	FindPendingInvitation(ctx context.Context, groupID, inviteeUserID string) (*models.Invitation, error)
	ListInvitationsByGroup(ctx context.Context, groupID string) ([]models.Invitation, error)
	UpdateInvitation(ctx context.Context, invitation *models.Invitation) error
	ListExpiredPendingInvitations(ctx context.Context, now time.Time) ([]models.Invitation, error)
}

type InviteCodeStore interface {
	CreateInviteCode(ctx context.Context, code *models.InviteCode) error
	GetInviteCode(ctx context.Context, id string) (*models.InviteCode, error)
	GetInviteCodeByCode(ctx context.Context, code string) (*models.InviteCode, error)
	ListInviteCodesByGroup(ctx context.Context, groupID string) ([]models.InviteCode, error)
	UpdateInviteCode(ctx context.Context, code *models.InviteCode) error
}

type RedemptionStore interface {
	CreateRedemption(ctx context.Context, redemption *models.Redemption) error
	HasRedemption(ctx context.Context, inviteCodeID, userID string) (bool, error)
}

type JoinRequestStore interface {
	CreateJoinRequest(ctx context.Context, request *models.JoinRequest) error
	GetJoinRequest(ctx context.Context, id string) (*models.JoinRequest, error)
	FindPendingJoinRequest(ctx context.Context, groupID, userID string) (*models.JoinRequest, error)
	ListPendingJoinRequestsByGroup(ctx context.Context, groupID string) ([]models.JoinRequest, error)
	ListPendingJoinRequestsByGroupUser(ctx context.Context, groupID, userID string) ([]models.JoinRequest, error)
	UpdateJoinRequest(ctx context.Context, request *models.JoinRequest) error
}

type PermissionStore interface {
	GetPermission(ctx context.Context, id string) (*models.Permission, error)
	GetPermissionByURN(ctx context.Context, urn string) (*models.Permission, error)
	ListPermissions(ctx context.Context) ([]models.Permission, error)
}

type GroupPermissionStore interface {
	CreateGroupPermission(ctx context.Context, permission *models.GroupPermission) error
	GetGroupPermission(ctx context.Context, id string) (*models.GroupPermission, error)
	// ListGroupPermissionsByGroups returns rows for all the given groups with
	// the referenced global Permission (and its category) eagerly loaded.
	ListGroupPermissionsByGroups(ctx context.Context, groupIDs []string) ([]models.GroupPermission, error)
	DeleteGroupPermission(ctx context.Context, id string) error
}

type DerivedRuleStore interface {
	CreateDerivedRule(ctx context.Context, rule *models.DerivedRule) error
	GetDerivedRule(ctx context.Context, id string) (*models.DerivedRule, error)
	ListDerivedRulesByGroup(ctx context.Context, derivedGroupID string) ([]models.DerivedRule, error)
	// ListActiveDerivedRules returns active rules ordered by priority.
	ListActiveDerivedRules(ctx context.Context, derivedGroupID string) ([]models.DerivedRule, error)
	UpdateDerivedRule(ctx context.Context, rule *models.DerivedRule) error
	DeleteDerivedRule(ctx context.Context, id string) error
}

type AttachmentStore interface {
	UpsertAttachment(ctx context.Context, attachment *models.GroupDiscordAttachment) error
	GetAttachmentByGroup(ctx context.Context, groupID string) (*models.GroupDiscordAttachment, error)
	DeleteAttachmentByGroup(ctx context.Context, groupID string) error
	ListAttachmentsByGroups(ctx context.Context, groupIDs []string) ([]models.GroupDiscordAttachment, error)
}

type InviteAuditStore interface {
	InsertInviteAuditRecords(ctx context.Context, records []models.DiscordInviteAudit) error
	ListInviteAuditsByGroups(ctx context.Context, groupIDs []string) ([]models.DiscordInviteAudit, error)
}

// Store bundles every interface; the gorm implementation and the test fake
// both satisfy it.
type Store interface {
	CategoryStore
	GroupStore
	MembershipStore
	AdminStore
	UserStore
	InvitationStore
	InviteCodeStore
	RedemptionStore
	JoinRequestStore
	PermissionStore
	GroupPermissionStore
	DerivedRuleStore
	AttachmentStore
	InviteAuditStore
}
