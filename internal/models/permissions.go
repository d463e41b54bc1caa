package models

// PermissionCategory groups global permissions for display. Organizational
// only; it carries no grant semantics.
type PermissionCategory struct {
	Base
	Name        string       `gorm:"uniqueIndex;not null" json:"name" validate:"required"`
	Description string       `json:"description"`
	Permissions []Permission `gorm:"foreignKey:CategoryID" json:"permissions,omitempty"`
}

// Permission is a global, reusable permission identified by URN.
type Permission struct {
	Base
	URN         string              `gorm:"uniqueIndex;not null" json:"urn" validate:"required"`
	Name        string              `gorm:"not null" json:"name" validate:"required"`
	Description string              `json:"description"`
	CategoryID  string              `gorm:"type:uuid;default:NULL" json:"categoryId,omitempty" validate:"omitempty,uuid"`
	Category    *PermissionCategory `json:"category,omitempty"`
}

// GroupPermission attaches a permission grant to a group. Exactly one of the
// two forms is populated: PermissionID references a global Permission, or the
// Custom* fields define a group-scoped one. TargetType decides which role in
// the group receives the grant.
type GroupPermission struct {
	Base
	GroupID           string      `gorm:"type:uuid;not null;uniqueIndex:idx_group_permissions_group_perm" json:"groupId" validate:"required,uuid"`
	Group             *Group      `json:"group,omitempty"`
	PermissionID      *string     `gorm:"type:uuid;uniqueIndex:idx_group_permissions_group_perm" json:"permissionId,omitempty"`
	Permission        *Permission `json:"permission,omitempty"`
	CustomURN         string      `json:"customUrn,omitempty"`
	CustomName        string      `json:"customName,omitempty"`
	CustomDescription string      `json:"customDescription,omitempty"`
	TargetType        TargetType  `gorm:"not null" json:"targetType" validate:"required,target_type"`
}

// IsGlobal reports whether the grant references a global permission rather
// than a group-scoped custom one.
func (gp *GroupPermission) IsGlobal() bool {
	return gp.PermissionID != nil && *gp.PermissionID != ""
}
