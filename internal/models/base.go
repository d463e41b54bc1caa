package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *Base) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// Visibility controls who can discover a category or group.
type Visibility string

const (
	VisibilityPublic Visibility = "public"
	VisibilityHidden Visibility = "hidden"
	VisibilitySystem Visibility = "system"
)

// CreationPolicy controls who may create groups inside a category.
type CreationPolicy string

const (
	CreationPolicyAnyone    CreationPolicy = "anyone"
	CreationPolicyAdminOnly CreationPolicy = "admin_only"
)

// JoinMode controls which recruitment path a group accepts.
type JoinMode string

const (
	JoinModeOpen           JoinMode = "open"
	JoinModeApproval       JoinMode = "approval"
	JoinModeInvitationOnly JoinMode = "invitation_only"
)

// GroupType distinguishes directly-joined groups from rule-computed ones.
type GroupType string

const (
	GroupTypeStandard GroupType = "standard"
	GroupTypeDerived  GroupType = "derived"
)

// MembershipSource records which path created a membership row. Derived-group
// reconciliation only ever touches rows it created itself.
type MembershipSource string

const (
	MembershipSourceDirect  MembershipSource = "direct"
	MembershipSourceDerived MembershipSource = "derived"
)

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "PENDING"
	InviteStatusAccepted InviteStatus = "ACCEPTED"
	InviteStatusDeclined InviteStatus = "DECLINED"
	InviteStatusExpired  InviteStatus = "EXPIRED"
)

type JoinRequestStatus string

const (
	JoinRequestStatusPending   JoinRequestStatus = "PENDING"
	JoinRequestStatusApproved  JoinRequestStatus = "APPROVED"
	JoinRequestStatusRejected  JoinRequestStatus = "REJECTED"
	JoinRequestStatusCancelled JoinRequestStatus = "CANCELLED"
)

// TargetType decides which role inside a group a permission grant applies to.
type TargetType string

const (
	TargetAllMembers     TargetType = "all_members"
	TargetAllAdmins      TargetType = "all_admins"
	TargetOwnerOnly      TargetType = "owner_only"
	TargetOwnerAndAdmins TargetType = "owner_and_admins"
)

// RuleType is the evaluation strategy of a derived-group rule. Only
// parent_child and union are evaluated; role_based and conditional are
// accepted and stored but currently inert.
type RuleType string

const (
	RuleTypeParentChild RuleType = "parent_child"
	RuleTypeRoleBased   RuleType = "role_based"
	RuleTypeUnion       RuleType = "union"
	RuleTypeConditional RuleType = "conditional"
)

// PermissionSource tags resolved permissions with where they came from.
type PermissionSource string

const (
	PermissionSourceGlobal      PermissionSource = "global"
	PermissionSourceGroupScoped PermissionSource = "group_scoped"
)
