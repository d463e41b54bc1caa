package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Category is an admin-managed container for groups.
type Category struct {
	Base
	Name        string         `gorm:"uniqueIndex;not null" json:"name" validate:"required,min=2"`
	Description string         `json:"description"`
	Visibility  Visibility     `gorm:"not null;default:'public'" json:"visibility" validate:"required,visibility"`
	Policy      CreationPolicy `gorm:"not null;default:'anyone'" json:"policy" validate:"required,creation_policy"`
	Groups      []Group        `gorm:"foreignKey:CategoryID;references:ID;constraint:OnDelete:CASCADE" json:"groups,omitempty"`
}

// Group is a named, owned membership container inside a category.
// Name is unique per category, not globally.
type Group struct {
	Base
	CategoryID   string                 `gorm:"type:uuid;not null;uniqueIndex:idx_groups_category_name" json:"categoryId" validate:"required,uuid"`
	Category     *Category              `json:"category,omitempty"`
	Name         string                 `gorm:"not null;uniqueIndex:idx_groups_category_name" json:"name" validate:"required,min=2"`
	Description  string                 `json:"description"`
	Visibility   Visibility             `gorm:"not null;default:'public'" json:"visibility" validate:"required,visibility"`
	JoinMode     JoinMode               `gorm:"not null;default:'open'" json:"joinMode" validate:"required,join_mode"`
	Type         GroupType              `gorm:"not null;default:'standard'" json:"type"`
	OwnerID      string                 `gorm:"type:uuid;not null" json:"ownerId"`
	AutoRecruit  bool                   `gorm:"not null;default:false" json:"autoRecruit"`
	EmblemFileID string                 `gorm:"type:uuid;default:NULL" json:"emblemFileId,omitempty"`
	Emblem       *File                  `gorm:"foreignKey:EmblemFileID" json:"emblem,omitempty"`
	Memberships  []Membership           `gorm:"foreignKey:GroupID;references:ID;constraint:OnDelete:CASCADE" json:"memberships,omitempty"`
	Admins       []AdminDesignation     `gorm:"foreignKey:GroupID;references:ID;constraint:OnDelete:CASCADE" json:"admins,omitempty"`
	Permissions  []GroupPermission      `gorm:"foreignKey:GroupID;references:ID;constraint:OnDelete:CASCADE" json:"permissions,omitempty"`
	DerivedRules []DerivedRule          `gorm:"foreignKey:DerivedGroupID;references:ID;constraint:OnDelete:CASCADE" json:"derivedRules,omitempty"`
	Attachment   *GroupDiscordAttachment `gorm:"foreignKey:GroupID" json:"attachment,omitempty"`
}

// Membership records that a user belongs to a group. One row per
// (group, user); the unique index is the real guard under interleaved
// check-then-insert sequences.
type Membership struct {
	Base
	GroupID  string           `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_group_user" json:"groupId" validate:"required,uuid"`
	Group    *Group           `json:"group,omitempty"`
	UserID   string           `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_group_user" json:"userId" validate:"required,uuid"`
	User     *User            `json:"user,omitempty"`
	Source   MembershipSource `gorm:"not null;default:'direct'" json:"source"`
	JoinedAt time.Time        `gorm:"not null" json:"joinedAt"`
}

func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	return nil
}

// AdminDesignation grants moderation rights short of ownership. The owner is
// deliberately never present in this table.
type AdminDesignation struct {
	Base
	GroupID string `gorm:"type:uuid;not null;uniqueIndex:idx_admins_group_user" json:"groupId" validate:"required,uuid"`
	Group   *Group `json:"group,omitempty"`
	UserID  string `gorm:"type:uuid;not null;uniqueIndex:idx_admins_group_user" json:"userId" validate:"required,uuid"`
	User    *User  `json:"user,omitempty"`
}

// DerivedRule declares how a derived group's membership is computed from
// other groups. SourceGroupIDs is a JSON array of group ids; ConditionRules
// is an opaque JSON document reserved for the conditional rule type.
type DerivedRule struct {
	Base
	DerivedGroupID string         `gorm:"type:uuid;not null;index" json:"derivedGroupId" validate:"required,uuid"`
	DerivedGroup   *Group         `json:"derivedGroup,omitempty"`
	RuleType       RuleType       `gorm:"not null" json:"ruleType" validate:"required,rule_type"`
	SourceGroupIDs datatypes.JSON `gorm:"type:jsonb" json:"sourceGroupIds,omitempty"`
	ConditionRules datatypes.JSON `gorm:"type:jsonb" json:"conditionRules,omitempty"`
	Priority       int            `gorm:"not null;default:0" json:"priority"`
	IsActive       bool           `gorm:"not null;default:true" json:"isActive"`
}

// GroupDiscordAttachment records the intent to mirror a group onto a Discord
// server. The engine persists these; a bridge outside this service performs
// the actual guild calls.
type GroupDiscordAttachment struct {
	Base
	GroupID  string         `gorm:"type:uuid;not null;uniqueIndex" json:"groupId" validate:"required,uuid"`
	Group    *Group         `json:"group,omitempty"`
	ServerID string         `gorm:"not null" json:"serverId" validate:"required"`
	RoleIDs  datatypes.JSON `gorm:"type:jsonb" json:"roleIds,omitempty"`
}

// DiscordInviteAudit is the audit trail of auto-invite outcomes reported by
// the bridge.
type DiscordInviteAudit struct {
	Base
	GroupID  string `gorm:"type:uuid;not null;index" json:"groupId"`
	UserID   string `gorm:"type:uuid;not null" json:"userId"`
	ServerID string `gorm:"not null" json:"serverId"`
	Outcome  string `gorm:"not null" json:"outcome"`
	Detail   string `json:"detail"`
}

// File is an uploaded object (group emblems) stored in S3.
type File struct {
	Base
	Path      string `gorm:"not null" json:"path" validate:"required"`
	UserID    string `gorm:"type:uuid;default:NULL" json:"userId" validate:"omitempty,uuid"`
	User      *User  `json:"user,omitempty"`
	Name      string `gorm:"not null" json:"name" validate:"required"`
	Size      int64  `gorm:"not null" json:"size" validate:"required,min=1"`
	Type      string `gorm:"not null" json:"type" validate:"required"`
	SignedURL string `gorm:"-" json:"signedUrl,omitempty"` // Virtual field
}

func (f *File) AfterFind(tx *gorm.DB) error {
	registryMu.RLock()
	generator := urlGenerator
	registryMu.RUnlock()

	if generator != nil {
		// Generate URL with 1-hour expiry
		url, err := generator.GetSignedURL(tx.Statement.Context, f.Path, time.Hour)
		if err != nil {
			return fmt.Errorf("failed to generate signed URL: %w", err)
		}
		f.SignedURL = url
	}
	return nil
}
