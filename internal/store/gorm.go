package store

import (
	"context"
	"errors"
	"time"

	"guildhub/internal/apperr"
	"guildhub/internal/models"

	"gorm.io/gorm"
)

// GormStore is the production Store backed by Postgres through gorm.
// Requires TranslateError so unique-index violations surface as
// gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// translate maps gorm sentinel errors onto the engine error taxonomy.
func translate(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s not found", entity)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict("%s already exists", entity)
	default:
		return err
	}
}

// Categories

func (s *GormStore) CreateCategory(ctx context.Context, category *models.Category) error {
	return translate(s.db.WithContext(ctx).Create(category).Error, "category")
}

func (s *GormStore) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	err := s.db.WithContext(ctx).First(&category, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "category")
	}
	return &category, nil
}

func (s *GormStore) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := s.db.WithContext(ctx).First(&category, "name = ?", name).Error
	if err != nil {
		return nil, translate(err, "category")
	}
	return &category, nil
}

func (s *GormStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.WithContext(ctx).Order("name asc").Find(&categories).Error
	return categories, translate(err, "category")
}

func (s *GormStore) UpdateCategory(ctx context.Context, category *models.Category) error {
	return translate(s.db.WithContext(ctx).Save(category).Error, "category")
}

func (s *GormStore) DeleteCategory(ctx context.Context, id string) error {
	return translate(s.db.WithContext(ctx).Delete(&models.Category{}, "id = ?", id).Error, "category")
}

// Groups

func (s *GormStore) CreateGroup(ctx context.Context, group *models.Group) error {
	return translate(s.db.WithContext(ctx).Create(group).Error, "group")
}

func (s *GormStore) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).Preload("Category").First(&group, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "group")
	}
	return &group, nil
}

func (s *GormStore) GetGroupByName(ctx context.Context, categoryID, name string) (*models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).First(&group, "category_id = ? AND name = ?", categoryID, name).Error
	if err != nil {
		return nil, translate(err, "group")
	}
	return &group, nil
}

func (s *GormStore) ListGroupsByCategory(ctx context.Context, categoryID string) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.WithContext(ctx).Where("category_id = ?", categoryID).Order("name asc").Find(&groups).Error
	return groups, translate(err, "group")
}

func (s *GormStore) ListGroupsByIDs(ctx context.Context, ids []string) ([]models.Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var groups []models.Group
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error
	return groups, translate(err, "group")
}

func (s *GormStore) ListGroupsByType(ctx context.Context, groupType models.GroupType) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.WithContext(ctx).Where("type = ?", groupType).Find(&groups).Error
	return groups, translate(err, "group")
}

func (s *GormStore) ListAutoRecruitGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.WithContext(ctx).Preload("Attachment").Where("auto_recruit = ?", true).Find(&groups).Error
	return groups, translate(err, "group")
}

func (s *GormStore) UpdateGroup(ctx context.Context, group *models.Group) error {
	return translate(s.db.WithContext(ctx).Save(group).Error, "group")
}

func (s *GormStore) DeleteGroup(ctx context.Context, id string) error {
	return translate(s.db.WithContext(ctx).Select("Memberships", "Admins", "Permissions", "DerivedRules").
		Delete(&models.Group{Base: models.Base{ID: id}}).Error, "group")
}

// Memberships

func (s *GormStore) CreateMembership(ctx context.Context, membership *models.Membership) error {
	return translate(s.db.WithContext(ctx).Create(membership).Error, "membership")
}

func (s *GormStore) GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	var membership models.Membership
	err := s.db.WithContext(ctx).First(&membership, "group_id = ? AND user_id = ?", groupID, userID).Error
	if err != nil {
		return nil, translate(err, "membership")
	}
	return &membership, nil
}

func (s *GormStore) ListMembershipsByGroup(ctx context.Context, groupID string) ([]models.Membership, error) {
	var memberships []models.Membership
	err := s.db.WithContext(ctx).Where("group_id = ?", groupID).Order("joined_at asc").Find(&memberships).Error
	return memberships, translate(err, "membership")
}

func (s *GormStore) ListMembershipsByUser(ctx context.Context, userID string) ([]models.Membership, error) {
	var memberships []models.Membership
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&memberships).Error
	return memberships, translate(err, "membership")
}

func (s *GormStore) ListMembershipsByGroupSource(ctx context.Context, groupID string, source models.MembershipSource) ([]models.Membership, error) {
	var memberships []models.Membership
	err := s.db.WithContext(ctx).Where("group_id = ? AND source = ?", groupID, source).Find(&memberships).Error
	return memberships, translate(err, "membership")
}

func (s *GormStore) DeleteMembership(ctx context.Context, groupID, userID string) error {
	result := s.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.Membership{})
	if result.Error != nil {
		return translate(result.Error, "membership")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("membership not found")
	}
	return nil
}

// Admin designations

func (s *GormStore) CreateAdmin(ctx context.Context, admin *models.AdminDesignation) error {
	return translate(s.db.WithContext(ctx).Create(admin).Error, "admin designation")
}

func (s *GormStore) IsAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.AdminDesignation{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).Count(&count).Error
	return count > 0, err
}

func (s *GormStore) ListAdminsByGroup(ctx context.Context, groupID string) ([]models.AdminDesignation, error) {
	var admins []models.AdminDesignation
	err := s.db.WithContext(ctx).Where("group_id = ?", groupID).Find(&admins).Error
	return admins, translate(err, "admin designation")
}

func (s *GormStore) ListUserAdminGroupIDs(ctx context.Context, userID string, groupIDs []string) ([]string, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.AdminDesignation{}).
		Where("user_id = ? AND group_id IN ?", userID, groupIDs).
		Pluck("group_id", &ids).Error
	return ids, err
}

func (s *GormStore) DeleteAdmin(ctx context.Context, groupID, userID string) error {
	result := s.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.AdminDesignation{})
	if result.Error != nil {
		return translate(result.Error, "admin designation")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("admin designation not found")
	}
	return nil
}

// Users

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (s *GormStore) GetUserByDisplayName(ctx context.Context, name string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "display_name = ?", name).Error
	if err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (s *GormStore) ListUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, translate(err, "user")
}

// Invitations

func (s *GormStore) CreateInvitation(ctx context.Context, invitation *models.Invitation) error {
	return translate(s.db.WithContext(ctx).Create(invitation).Error, "invitation")
}

func (s *GormStore) GetInvitation(ctx context.Context, id string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := s.db.WithContext(ctx).First(&invitation, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "invitation")
	}
	return &invitation, nil
}

func (s *GormStore) FindPendingInvitation(ctx context.Context, groupID, inviteeUserID string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := s.db.WithContext(ctx).
		First(&invitation, "group_id = ? AND invitee_user_id = ? AND status = ?",
			groupID, inviteeUserID, models.InviteStatusPending).Error
	if err != nil {
		return nil, translate(err, "invitation")
	}
	return &invitation, nil
}

func (s *GormStore) ListInvitationsByGroup(ctx context.Context, groupID string) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := s.db.WithContext(ctx).Where("group_id = ?", groupID).Order("created_at desc").Find(&invitations).Error
	return invitations, translate(err, "invitation")
}

func (s *GormStore) UpdateInvitation(ctx context.Context, invitation *models.Invitation) error {
	return translate(s.db.WithContext(ctx).Save(invitation).Error, "invitation")
}

func (s *GormStore) ListExpiredPendingInvitations(ctx context.Context, now time.Time) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.InviteStatusPending, now).
		Find(&invitations).Error
	return invitations, translate(err, "invitation")
}

// Invite codes

func (s *GormStore) CreateInviteCode(ctx context.Context, code *models.InviteCode) error {
	return translate(s.db.WithContext(ctx).Create(code).Error, "invite code")
}

func (s *GormStore) GetInviteCode(ctx context.Context, id string) (*models.InviteCode, error) {
	var code models.InviteCode
	err := s.db.WithContext(ctx).First(&code, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "invite code")
	}
	return &code, nil
}

func (s *GormStore) GetInviteCodeByCode(ctx context.Context, codeValue string) (*models.InviteCode, error) {
	var code models.InviteCode
	err := s.db.WithContext(ctx).First(&code, "code = ?", codeValue).Error
	if err != nil {
		return nil, translate(err, "invite code")
	}
	return &code, nil
}

func (s *GormStore) ListInviteCodesByGroup(ctx context.Context, groupID string) ([]models.InviteCode, error) {
	var codes []models.InviteCode
	err := s.db.WithContext(ctx).Where("group_id = ?", groupID).Order("created_at desc").Find(&codes).Error
	return codes, translate(err, "invite code")
}

func (s *GormStore) UpdateInviteCode(ctx context.Context, code *models.InviteCode) error {
	return translate(s.db.WithContext(ctx).Save(code).Error, "invite code")
}

// Redemptions

func (s *GormStore) CreateRedemption(ctx context.Context, redemption *models.Redemption) error {
	return translate(s.db.WithContext(ctx).Create(redemption).Error, "redemption")
}

func (s *GormStore) HasRedemption(ctx context.Context, inviteCodeID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Redemption{}).
		Where("invite_code_id = ? AND user_id = ?", inviteCodeID, userID).Count(&count).Error
	return count > 0, err
}

// Join requests

func (s *GormStore) CreateJoinRequest(ctx context.Context, request *models.JoinRequest) error {
	return translate(s.db.WithContext(ctx).Create(request).Error, "join request")
}

func (s *GormStore) GetJoinRequest(ctx context.Context, id string) (*models.JoinRequest, error) {
	var request models.JoinRequest
	err := s.db.WithContext(ctx).First(&request, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "join request")
	}
	return &request, nil
}

func (s *GormStore) FindPendingJoinRequest(ctx context.Context, groupID, userID string) (*models.JoinRequest, error) {
	var request models.JoinRequest
	err := s.db.WithContext(ctx).
		First(&request, "group_id = ? AND user_id = ? AND status = ?",
			groupID, userID, models.JoinRequestStatusPending).Error
	if err != nil {
		return nil, translate(err, "join request")
	}
	return &request, nil
}

func (s *GormStore) ListPendingJoinRequestsByGroup(ctx context.Context, groupID string) ([]models.JoinRequest, error) {
	var requests []models.JoinRequest
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND status = ?", groupID, models.JoinRequestStatusPending).
		Order("created_at asc").Find(&requests).Error
	return requests, translate(err, "join request")
}

func (s *GormStore) ListPendingJoinRequestsByGroupUser(ctx context.Context, groupID, userID string) ([]models.JoinRequest, error) {
	var requests []models.JoinRequest
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ? AND status = ?", groupID, userID, models.JoinRequestStatusPending).
		Find(&requests).Error
	return requests, translate(err, "join request")
}

func (s *GormStore) UpdateJoinRequest(ctx context.Context, request *models.JoinRequest) error {
	return translate(s.db.WithContext(ctx).Save(request).Error, "join request")
}

// Permission catalog

func (s *GormStore) GetPermission(ctx context.Context, id string) (*models.Permission, error) {
	var permission models.Permission
	err := s.db.WithContext(ctx).Preload("Category").First(&permission, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "permission")
	}
	return &permission, nil
}

func (s *GormStore) GetPermissionByURN(ctx context.Context, urn string) (*models.Permission, error) {
	var permission models.Permission
	err := s.db.WithContext(ctx).Preload("Category").First(&permission, "urn = ?", urn).Error
	if err != nil {
		return nil, translate(err, "permission")
	}
	return &permission, nil
}

func (s *GormStore) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	var permissions []models.Permission
	err := s.db.WithContext(ctx).Preload("Category").Order("urn asc").Find(&permissions).Error
	return permissions, translate(err, "permission")
}

// Group permissions

func (s *GormStore) CreateGroupPermission(ctx context.Context, permission *models.GroupPermission) error {
	return translate(s.db.WithContext(ctx).Create(permission).Error, "group permission")
}

func (s *GormStore) GetGroupPermission(ctx context.Context, id string) (*models.GroupPermission, error) {
	var permission models.GroupPermission
	err := s.db.WithContext(ctx).Preload("Permission").Preload("Permission.Category").
		First(&permission, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "group permission")
	}
	return &permission, nil
}

func (s *GormStore) ListGroupPermissionsByGroups(ctx context.Context, groupIDs []string) ([]models.GroupPermission, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var permissions []models.GroupPermission
	err := s.db.WithContext(ctx).Preload("Permission").Preload("Permission.Category").
		Where("group_id IN ?", groupIDs).Find(&permissions).Error
	return permissions, translate(err, "group permission")
}

func (s *GormStore) DeleteGroupPermission(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.GroupPermission{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error, "group permission")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("group permission not found")
	}
	return nil
}

// Derived rules

func (s *GormStore) CreateDerivedRule(ctx context.Context, rule *models.DerivedRule) error {
	return translate(s.db.WithContext(ctx).Create(rule).Error, "derived rule")
}

func (s *GormStore) GetDerivedRule(ctx context.Context, id string) (*models.DerivedRule, error) {
	var rule models.DerivedRule
	err := s.db.WithContext(ctx).First(&rule, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "derived rule")
	}
	return &rule, nil
}

func (s *GormStore) ListDerivedRulesByGroup(ctx context.Context, derivedGroupID string) ([]models.DerivedRule, error) {
	var rules []models.DerivedRule
	err := s.db.WithContext(ctx).Where("derived_group_id = ?", derivedGroupID).
		Order("priority asc").Find(&rules).Error
	return rules, translate(err, "derived rule")
}

func (s *GormStore) ListActiveDerivedRules(ctx context.Context, derivedGroupID string) ([]models.DerivedRule, error) {
	var rules []models.DerivedRule
	err := s.db.WithContext(ctx).
		Where("derived_group_id = ? AND is_active = ?", derivedGroupID, true).
		Order("priority asc").Find(&rules).Error
	return rules, translate(err, "derived rule")
}

func (s *GormStore) UpdateDerivedRule(ctx context.Context, rule *models.DerivedRule) error {
	return translate(s.db.WithContext(ctx).Save(rule).Error, "derived rule")
}

func (s *GormStore) DeleteDerivedRule(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.DerivedRule{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error, "derived rule")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("derived rule not found")
	}
	return nil
}

// Discord attachments and audit

func (s *GormStore) UpsertAttachment(ctx context.Context, attachment *models.GroupDiscordAttachment) error {
	existing := &models.GroupDiscordAttachment{}
	err := s.db.WithContext(ctx).First(existing, "group_id = ?", attachment.GroupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return translate(s.db.WithContext(ctx).Create(attachment).Error, "discord attachment")
	}
	if err != nil {
		return err
	}
	existing.ServerID = attachment.ServerID
	existing.RoleIDs = attachment.RoleIDs
	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return translate(err, "discord attachment")
	}
	*attachment = *existing
	return nil
}

func (s *GormStore) GetAttachmentByGroup(ctx context.Context, groupID string) (*models.GroupDiscordAttachment, error) {
	var attachment models.GroupDiscordAttachment
	err := s.db.WithContext(ctx).First(&attachment, "group_id = ?", groupID).Error
	if err != nil {
		return nil, translate(err, "discord attachment")
	}
	return &attachment, nil
}

func (s *GormStore) DeleteAttachmentByGroup(ctx context.Context, groupID string) error {
	result := s.db.WithContext(ctx).Delete(&models.GroupDiscordAttachment{}, "group_id = ?", groupID)
	if result.Error != nil {
		return translate(result.Error, "discord attachment")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("discord attachment not found")
	}
	return nil
}

func (s *GormStore) ListAttachmentsByGroups(ctx context.Context, groupIDs []string) ([]models.GroupDiscordAttachment, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var attachments []models.GroupDiscordAttachment
	err := s.db.WithContext(ctx).Where("group_id IN ?", groupIDs).Find(&attachments).Error
	return attachments, translate(err, "discord attachment")
}

func (s *GormStore) InsertInviteAuditRecords(ctx context.Context, records []models.DiscordInviteAudit) error {
	if len(records) == 0 {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(&records).Error, "discord invite audit")
}

func (s *GormStore) ListInviteAuditsByGroups(ctx context.Context, groupIDs []string) ([]models.DiscordInviteAudit, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var records []models.DiscordInviteAudit
	err := s.db.WithContext(ctx).Where("group_id IN ?", groupIDs).Find(&records).Error
	return records, translate(err, "discord invite audit")
}
