package models

import "time"

// Invitation is an admin-initiated offer of membership addressed to a single
// user. Expires seven days after creation; terminal rows are kept for audit.
type Invitation struct {
	Base
	GroupID       string       `gorm:"type:uuid;not null;index:idx_invitations_group_invitee" json:"groupId" validate:"required,uuid"`
	Group         *Group       `json:"group,omitempty"`
	InviterID     string       `gorm:"type:uuid;not null" json:"inviterId" validate:"required,uuid"`
	Inviter       *User        `gorm:"foreignKey:InviterID" json:"inviter,omitempty"`
	InviteeUserID string       `gorm:"type:uuid;not null;index:idx_invitations_group_invitee" json:"inviteeUserId" validate:"required,uuid"`
	Invitee       *User        `gorm:"foreignKey:InviteeUserID" json:"invitee,omitempty"`
	Status        InviteStatus `gorm:"not null;default:'PENDING'" json:"status" validate:"required,invite_status"`
	ExpiresAt     time.Time    `gorm:"not null" json:"expiresAt"`
}

// InviteCode is a reusable, usage-limited token issued by the group owner.
// MaxUses nil means unlimited. Valid iff not revoked, not expired, and
// CurrentUses < MaxUses.
type InviteCode struct {
	Base
	GroupID     string     `gorm:"type:uuid;not null;index" json:"groupId" validate:"required,uuid"`
	Group       *Group     `json:"group,omitempty"`
	Code        string     `gorm:"uniqueIndex;not null" json:"code"`
	CreatedBy   string     `gorm:"type:uuid;not null" json:"createdBy"`
	MaxUses     *int       `json:"maxUses,omitempty" validate:"omitempty,min=1"`
	CurrentUses int        `gorm:"not null;default:0" json:"currentUses"`
	ExpiresAt   time.Time  `gorm:"not null" json:"expiresAt"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
	Redemptions []Redemption `gorm:"foreignKey:InviteCodeID;references:ID;constraint:OnDelete:CASCADE" json:"redemptions,omitempty"`
}

// Valid reports whether the code can still be redeemed at the given instant.
func (c *InviteCode) Valid(now time.Time) bool {
	if c.RevokedAt != nil {
		return false
	}
	if now.After(c.ExpiresAt) {
		return false
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return false
	}
	return true
}

// Redemption records one user's use of an invite code. The unique index
// prevents double redemption of the same code by the same user.
type Redemption struct {
	Base
	InviteCodeID string      `gorm:"type:uuid;not null;uniqueIndex:idx_redemptions_code_user" json:"inviteCodeId" validate:"required,uuid"`
	InviteCode   *InviteCode `json:"inviteCode,omitempty"`
	UserID       string      `gorm:"type:uuid;not null;uniqueIndex:idx_redemptions_code_user" json:"userId" validate:"required,uuid"`
	RedeemedAt   time.Time   `gorm:"not null" json:"redeemedAt"`
}

// JoinRequest is a user-initiated, admin-approved request to join an
// approval-mode group. At most one pending row per (group, user); terminal
// rows are kept for audit.
type JoinRequest struct {
	Base
	GroupID     string            `gorm:"type:uuid;not null;index:idx_join_requests_group_user" json:"groupId" validate:"required,uuid"`
	Group       *Group            `json:"group,omitempty"`
	UserID      string            `gorm:"type:uuid;not null;index:idx_join_requests_group_user" json:"userId" validate:"required,uuid"`
	User        *User             `json:"user,omitempty"`
	Reason      string            `json:"reason"`
	Status      JoinRequestStatus `gorm:"not null;default:'PENDING'" json:"status" validate:"required,join_request_status"`
	RespondedAt *time.Time        `json:"respondedAt,omitempty"`
	RespondedBy string            `gorm:"type:uuid;default:NULL" json:"respondedBy,omitempty"`
}
