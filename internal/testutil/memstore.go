// Package testutil provides in-memory fakes for the engine's store
// interfaces so service tests run without a database.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"guildhub/internal/apperr"
	"guildhub/internal/models"

	"github.com/google/uuid"
)

// MemStore is an in-memory store.Store. It enforces the same uniqueness
// rules the real schema does, returning Conflict on violation, so tests
// exercise the constraint-backed paths faithfully.
type MemStore struct {
	mu sync.Mutex

	categories       map[string]models.Category
	groups           map[string]models.Group
	memberships      map[string]models.Membership
	admins           map[string]models.AdminDesignation
	users            map[string]models.User
	invitations      map[string]models.Invitation
	inviteCodes      map[string]models.InviteCode
	redemptions      map[string]models.Redemption
	joinRequests     map[string]models.JoinRequest
	permissions      map[string]models.Permission
	groupPermissions map[string]models.GroupPermission
	derivedRules     map[string]models.DerivedRule
	attachments      map[string]models.GroupDiscordAttachment
	inviteAudits     []models.DiscordInviteAudit
}

func NewMemStore() *MemStore {
	return &MemStore{
		categories:       make(map[string]models.Category),
		groups:           make(map[string]models.Group),
		memberships:      make(map[string]models.Membership),
		admins:           make(map[string]models.AdminDesignation),
		users:            make(map[string]models.User),
		invitations:      make(map[string]models.Invitation),
		inviteCodes:      make(map[string]models.InviteCode),
		redemptions:      make(map[string]models.Redemption),
		joinRequests:     make(map[string]models.JoinRequest),
		permissions:      make(map[string]models.Permission),
		groupPermissions: make(map[string]models.GroupPermission),
		derivedRules:     make(map[string]models.DerivedRule),
		attachments:      make(map[string]models.GroupDiscordAttachment),
	}
}

func stamp(base *models.Base) {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	now := time.Now()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

// Categories

func (s *MemStore) CreateCategory(ctx context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.Name == category.Name {
			return apperr.Conflict("category already exists")
		}
	}
	stamp(&category.Base)
	s.categories[category.ID] = *category
	return nil
}

func (s *MemStore) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	category, ok := s.categories[id]
	if !ok {
		return nil, apperr.NotFound("category not found")
	}
	return &category, nil
}

func (s *MemStore) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, category := range s.categories {
		if category.Name == name {
			c := category
			return &c, nil
		}
	}
	return nil, apperr.NotFound("category not found")
}

func (s *MemStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var categories []models.Category
	for _, category := range s.categories {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (s *MemStore) UpdateCategory(ctx context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[category.ID]; !ok {
		return apperr.NotFound("category not found")
	}
	category.UpdatedAt = time.Now()
	s.categories[category.ID] = *category
	return nil
}

func (s *MemStore) DeleteCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return apperr.NotFound("category not found")
	}
	delete(s.categories, id)
	for groupID, group := range s.groups {
		if group.CategoryID == id {
			s.deleteGroupLocked(groupID)
		}
	}
	return nil
}

// Groups

func (s *MemStore) CreateGroup(ctx context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.groups {
		if existing.CategoryID == group.CategoryID && existing.Name == group.Name {
			return apperr.Conflict("group already exists")
		}
	}
	stamp(&group.Base)
	s.groups[group.ID] = *group
	return nil
}

func (s *MemStore) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[id]
	if !ok {
		return nil, apperr.NotFound("group not found")
	}
	return &group, nil
}

func (s *MemStore) GetGroupByName(ctx context.Context, categoryID, name string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, group := range s.groups {
		if group.CategoryID == categoryID && group.Name == name {
			g := group
			return &g, nil
		}
	}
	return nil, apperr.NotFound("group not found")
}

func (s *MemStore) ListGroupsByCategory(ctx context.Context, categoryID string) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var groups []models.Group
	for _, group := range s.groups {
		if group.CategoryID == categoryID {
			groups = append(groups, group)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

func (s *MemStore) ListGroupsByIDs(ctx context.Context, ids []string) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var groups []models.Group
	for _, id := range ids {
		if group, ok := s.groups[id]; ok {
			groups = append(groups, group)
		}
	}
	return groups, nil
}

func (s *MemStore) ListGroupsByType(ctx context.Context, groupType models.GroupType) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var groups []models.Group
	for _, group := range s.groups {
		if group.Type == groupType {
			groups = append(groups, group)
		}
	}
	return groups, nil
}

func (s *MemStore) ListAutoRecruitGroups(ctx context.Context) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var groups []models.Group
	for _, group := range s.groups {
		if group.AutoRecruit {
			if attachment, ok := s.attachments[group.ID]; ok {
				a := attachment
				group.Attachment = &a
			}
			groups = append(groups, group)
		}
	}
	return groups, nil
}

func (s *MemStore) UpdateGroup(ctx context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ID]; !ok {
		return apperr.NotFound("group not found")
	}
	group.UpdatedAt = time.Now()
	s.groups[group.ID] = *group
	return nil
}

func (s *MemStore) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return apperr.NotFound("group not found")
	}
	s.deleteGroupLocked(id)
	return nil
}

// deleteGroupLocked mirrors the schema's ON DELETE CASCADE behavior.
func (s *MemStore) deleteGroupLocked(id string) {
	delete(s.groups, id)
	for key, membership := range s.memberships {
		if membership.GroupID == id {
			delete(s.memberships, key)
		}
	}
	for key, admin := range s.admins {
		if admin.GroupID == id {
			delete(s.admins, key)
		}
	}
	for key, permission := range s.groupPermissions {
		if permission.GroupID == id {
			delete(s.groupPermissions, key)
		}
	}
	for key, rule := range s.derivedRules {
		if rule.DerivedGroupID == id {
			delete(s.derivedRules, key)
		}
	}
	delete(s.attachments, id)
}

// Memberships

func (s *MemStore) CreateMembership(ctx context.Context, membership *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.memberships {
		if existing.GroupID == membership.GroupID && existing.UserID == membership.UserID {
			return apperr.Conflict("membership already exists")
		}
	}
	stamp(&membership.Base)
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now()
	}
	if membership.Source == "" {
		membership.Source = models.MembershipSourceDirect
	}
	s.memberships[membership.ID] = *membership
	return nil
}

func (s *MemStore) GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, membership := range s.memberships {
		if membership.GroupID == groupID && membership.UserID == userID {
			m := membership
			return &m, nil
		}
	}
	return nil, apperr.NotFound("membership not found")
}

func (s *MemStore) ListMembershipsByGroup(ctx context.Context, groupID string) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var memberships []models.Membership
	for _, membership := range s.memberships {
		if membership.GroupID == groupID {
			memberships = append(memberships, membership)
		}
	}
	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].JoinedAt.Before(memberships[j].JoinedAt)
	})
	return memberships, nil
}

func (s *MemStore) ListMembershipsByUser(ctx context.Context, userID string) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var memberships []models.Membership
	for _, membership := range s.memberships {
		if membership.UserID == userID {
			memberships = append(memberships, membership)
		}
	}
	return memberships, nil
}

func (s *MemStore) ListMembershipsByGroupSource(ctx context.Context, groupID string, source models.MembershipSource) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var memberships []models.Membership
	for _, membership := range s.memberships {
		if membership.GroupID == groupID && membership.Source == source {
			memberships = append(memberships, membership)
		}
	}
	return memberships, nil
}

func (s *MemStore) DeleteMembership(ctx context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, membership := range s.memberships {
		if membership.GroupID == groupID && membership.UserID == userID {
			delete(s.memberships, key)
			return nil
		}
	}
	return apperr.NotFound("membership not found")
}

// Admin designations

func (s *MemStore) CreateAdmin(ctx context.Context, admin *models.AdminDesignation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.admins {
		if existing.GroupID == admin.GroupID && existing.UserID == admin.UserID {
			return apperr.Conflict("admin designation already exists")
		}
	}
	stamp(&admin.Base)
	s.admins[admin.ID] = *admin
	return nil
}

func (s *MemStore) IsAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, admin := range s.admins {
		if admin.GroupID == groupID && admin.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) ListAdminsByGroup(ctx context.Context, groupID string) ([]models.AdminDesignation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var admins []models.AdminDesignation
	for _, admin := range s.admins {
		if admin.GroupID == groupID {
			admins = append(admins, admin)
		}
	}
	return admins, nil
}

func (s *MemStore) ListUserAdminGroupIDs(ctx context.Context, userID string, groupIDs []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = true
	}
	var ids []string
	for _, admin := range s.admins {
		if admin.UserID == userID && wanted[admin.GroupID] {
			ids = append(ids, admin.GroupID)
		}
	}
	return ids, nil
}

func (s *MemStore) DeleteAdmin(ctx context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, admin := range s.admins {
		if admin.GroupID == groupID && admin.UserID == userID {
			delete(s.admins, key)
			return nil
		}
	}
	return apperr.NotFound("admin designation not found")
}

// Users

// AddUser seeds a user row, assigning an id if absent.
func (s *MemStore) AddUser(user models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&user.Base)
	s.users[user.ID] = user
	return user
}

func (s *MemStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return &user, nil
}

func (s *MemStore) GetUserByDisplayName(ctx context.Context, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.DisplayName == name {
			u := user
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (s *MemStore) ListUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []models.User
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

// Invitations

func (s *MemStore) CreateInvitation(ctx context.Context, invitation *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&invitation.Base)
	s.invitations[invitation.ID] = *invitation
	return nil
}

func (s *MemStore) GetInvitation(ctx context.Context, id string) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invitation, ok := s.invitations[id]
	if !ok {
		return nil, apperr.NotFound("invitation not found")
	}
	return &invitation, nil
}

func (s *MemStore) FindPendingInvitation(ctx context.Context, groupID, inviteeUserID string) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, invitation := range s.invitations {
		if invitation.GroupID == groupID && invitation.InviteeUserID == inviteeUserID &&
			invitation.Status == models.InviteStatusPending {
			i := invitation
			return &i, nil
		}
	}
	return nil, apperr.NotFound("invitation not found")
}

func (s *MemStore) ListInvitationsByGroup(ctx context.Context, groupID string) ([]models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var invitations []models.Invitation
	for _, invitation := range s.invitations {
		if invitation.GroupID == groupID {
			invitations = append(invitations, invitation)
		}
	}
	sort.Slice(invitations, func(i, j int) bool {
		return invitations[i].CreatedAt.After(invitations[j].CreatedAt)
	})
	return invitations, nil
}

func (s *MemStore) UpdateInvitation(ctx context.Context, invitation *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invitations[invitation.ID]; !ok {
		return apperr.NotFound("invitation not found")
	}
	invitation.UpdatedAt = time.Now()
	s.invitations[invitation.ID] = *invitation
	return nil
}

func (s *MemStore) ListExpiredPendingInvitations(ctx context.Context, now time.Time) ([]models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var invitations []models.Invitation
	for _, invitation := range s.invitations {
		if invitation.Status == models.InviteStatusPending && invitation.ExpiresAt.Before(now) {
			invitations = append(invitations, invitation)
		}
	}
	return invitations, nil
}

// Invite codes

func (s *MemStore) CreateInviteCode(ctx context.Context, code *models.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.inviteCodes {
		if existing.Code == code.Code {
			return apperr.Conflict("invite code already exists")
		}
	}
	stamp(&code.Base)
	s.inviteCodes[code.ID] = *code
	return nil
}

func (s *MemStore) GetInviteCode(ctx context.Context, id string) (*models.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.inviteCodes[id]
	if !ok {
		return nil, apperr.NotFound("invite code not found")
	}
	return &code, nil
}

func (s *MemStore) GetInviteCodeByCode(ctx context.Context, codeValue string) (*models.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, code := range s.inviteCodes {
		if code.Code == codeValue {
			c := code
			return &c, nil
		}
	}
	return nil, apperr.NotFound("invite code not found")
}

func (s *MemStore) ListInviteCodesByGroup(ctx context.Context, groupID string) ([]models.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var codes []models.InviteCode
	for _, code := range s.inviteCodes {
		if code.GroupID == groupID {
			codes = append(codes, code)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].CreatedAt.After(codes[j].CreatedAt) })
	return codes, nil
}

func (s *MemStore) UpdateInviteCode(ctx context.Context, code *models.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inviteCodes[code.ID]; !ok {
		return apperr.NotFound("invite code not found")
	}
	code.UpdatedAt = time.Now()
	s.inviteCodes[code.ID] = *code
	return nil
}

// Redemptions

func (s *MemStore) CreateRedemption(ctx context.Context, redemption *models.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.redemptions {
		if existing.InviteCodeID == redemption.InviteCodeID && existing.UserID == redemption.UserID {
			return apperr.Conflict("redemption already exists")
		}
	}
	stamp(&redemption.Base)
	if redemption.RedeemedAt.IsZero() {
		redemption.RedeemedAt = time.Now()
	}
	s.redemptions[redemption.ID] = *redemption
	return nil
}

func (s *MemStore) HasRedemption(ctx context.Context, inviteCodeID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, redemption := range s.redemptions {
		if redemption.InviteCodeID == inviteCodeID && redemption.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// Join requests

func (s *MemStore) CreateJoinRequest(ctx context.Context, request *models.JoinRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&request.Base)
	s.joinRequests[request.ID] = *request
	return nil
}

func (s *MemStore) GetJoinRequest(ctx context.Context, id string) (*models.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.joinRequests[id]
	if !ok {
		return nil, apperr.NotFound("join request not found")
	}
	return &request, nil
}

func (s *MemStore) FindPendingJoinRequest(ctx context.Context, groupID, userID string) (*models.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, request := range s.joinRequests {
		if request.GroupID == groupID && request.UserID == userID &&
			request.Status == models.JoinRequestStatusPending {
			r := request
			return &r, nil
		}
	}
	return nil, apperr.NotFound("join request not found")
}

func (s *MemStore) ListPendingJoinRequestsByGroup(ctx context.Context, groupID string) ([]models.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var requests []models.JoinRequest
	for _, request := range s.joinRequests {
		if request.GroupID == groupID && request.Status == models.JoinRequestStatusPending {
			requests = append(requests, request)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
	return requests, nil
}

func (s *MemStore) ListPendingJoinRequestsByGroupUser(ctx context.Context, groupID, userID string) ([]models.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var requests []models.JoinRequest
	for _, request := range s.joinRequests {
		if request.GroupID == groupID && request.UserID == userID &&
			request.Status == models.JoinRequestStatusPending {
			requests = append(requests, request)
		}
	}
	return requests, nil
}

func (s *MemStore) UpdateJoinRequest(ctx context.Context, request *models.JoinRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.joinRequests[request.ID]; !ok {
		return apperr.NotFound("join request not found")
	}
	request.UpdatedAt = time.Now()
	s.joinRequests[request.ID] = *request
	return nil
}

// Permission catalog

// AddPermission seeds a global permission row.
func (s *MemStore) AddPermission(permission models.Permission) models.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&permission.Base)
	s.permissions[permission.ID] = permission
	return permission
}

func (s *MemStore) GetPermission(ctx context.Context, id string) (*models.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	permission, ok := s.permissions[id]
	if !ok {
		return nil, apperr.NotFound("permission not found")
	}
	return &permission, nil
}

func (s *MemStore) GetPermissionByURN(ctx context.Context, urn string) (*models.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, permission := range s.permissions {
		if permission.URN == urn {
			p := permission
			return &p, nil
		}
	}
	return nil, apperr.NotFound("permission not found")
}

func (s *MemStore) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var permissions []models.Permission
	for _, permission := range s.permissions {
		permissions = append(permissions, permission)
	}
	sort.Slice(permissions, func(i, j int) bool { return permissions[i].URN < permissions[j].URN })
	return permissions, nil
}

// Group permissions

func (s *MemStore) CreateGroupPermission(ctx context.Context, permission *models.GroupPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if permission.IsGlobal() {
		for _, existing := range s.groupPermissions {
			if existing.GroupID == permission.GroupID && existing.IsGlobal() &&
				*existing.PermissionID == *permission.PermissionID {
				return apperr.Conflict("group permission already exists")
			}
		}
	}
	stamp(&permission.Base)
	s.groupPermissions[permission.ID] = *permission
	return nil
}

func (s *MemStore) GetGroupPermission(ctx context.Context, id string) (*models.GroupPermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	permission, ok := s.groupPermissions[id]
	if !ok {
		return nil, apperr.NotFound("group permission not found")
	}
	s.resolvePermissionLocked(&permission)
	return &permission, nil
}

func (s *MemStore) ListGroupPermissionsByGroups(ctx context.Context, groupIDs []string) ([]models.GroupPermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = true
	}
	var permissions []models.GroupPermission
	for _, permission := range s.groupPermissions {
		if wanted[permission.GroupID] {
			s.resolvePermissionLocked(&permission)
			permissions = append(permissions, permission)
		}
	}
	return permissions, nil
}

func (s *MemStore) resolvePermissionLocked(gp *models.GroupPermission) {
	if gp.IsGlobal() {
		if permission, ok := s.permissions[*gp.PermissionID]; ok {
			p := permission
			gp.Permission = &p
		}
	}
}

func (s *MemStore) DeleteGroupPermission(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groupPermissions[id]; !ok {
		return apperr.NotFound("group permission not found")
	}
	delete(s.groupPermissions, id)
	return nil
}

// Derived rules

func (s *MemStore) CreateDerivedRule(ctx context.Context, rule *models.DerivedRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&rule.Base)
	s.derivedRules[rule.ID] = *rule
	return nil
}

func (s *MemStore) GetDerivedRule(ctx context.Context, id string) (*models.DerivedRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.derivedRules[id]
	if !ok {
		return nil, apperr.NotFound("derived rule not found")
	}
	return &rule, nil
}

func (s *MemStore) ListDerivedRulesByGroup(ctx context.Context, derivedGroupID string) ([]models.DerivedRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rules []models.DerivedRule
	for _, rule := range s.derivedRules {
		if rule.DerivedGroupID == derivedGroupID {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
	return rules, nil
}

func (s *MemStore) ListActiveDerivedRules(ctx context.Context, derivedGroupID string) ([]models.DerivedRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rules []models.DerivedRule
	for _, rule := range s.derivedRules {
		if rule.DerivedGroupID == derivedGroupID && rule.IsActive {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
	return rules, nil
}

func (s *MemStore) UpdateDerivedRule(ctx context.Context, rule *models.DerivedRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.derivedRules[rule.ID]; !ok {
		return apperr.NotFound("derived rule not found")
	}
	rule.UpdatedAt = time.Now()
	s.derivedRules[rule.ID] = *rule
	return nil
}

func (s *MemStore) DeleteDerivedRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.derivedRules[id]; !ok {
		return apperr.NotFound("derived rule not found")
	}
	delete(s.derivedRules, id)
	return nil
}

// Discord attachments and audit

func (s *MemStore) UpsertAttachment(ctx context.Context, attachment *models.GroupDiscordAttachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.attachments[attachment.GroupID]; ok {
		existing.ServerID = attachment.ServerID
		existing.RoleIDs = attachment.RoleIDs
		existing.UpdatedAt = time.Now()
		s.attachments[attachment.GroupID] = existing
		*attachment = existing
		return nil
	}
	stamp(&attachment.Base)
	s.attachments[attachment.GroupID] = *attachment
	return nil
}

func (s *MemStore) GetAttachmentByGroup(ctx context.Context, groupID string) (*models.GroupDiscordAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attachment, ok := s.attachments[groupID]
	if !ok {
		return nil, apperr.NotFound("discord attachment not found")
	}
	return &attachment, nil
}

func (s *MemStore) DeleteAttachmentByGroup(ctx context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attachments[groupID]; !ok {
		return apperr.NotFound("discord attachment not found")
	}
	delete(s.attachments, groupID)
	return nil
}

func (s *MemStore) ListAttachmentsByGroups(ctx context.Context, groupIDs []string) ([]models.GroupDiscordAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = true
	}
	var attachments []models.GroupDiscordAttachment
	for _, attachment := range s.attachments {
		if wanted[attachment.GroupID] {
			attachments = append(attachments, attachment)
		}
	}
	return attachments, nil
}

func (s *MemStore) InsertInviteAuditRecords(ctx context.Context, records []models.DiscordInviteAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		stamp(&records[i].Base)
	}
	s.inviteAudits = append(s.inviteAudits, records...)
	return nil
}

func (s *MemStore) ListInviteAuditsByGroups(ctx context.Context, groupIDs []string) ([]models.DiscordInviteAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = true
	}
	var records []models.DiscordInviteAudit
	for _, record := range s.inviteAudits {
		if wanted[record.GroupID] {
			records = append(records, record)
		}
	}
	return records, nil
}

// InviteAudits returns a copy of the audit trail for assertions.
func (s *MemStore) InviteAudits() []models.DiscordInviteAudit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DiscordInviteAudit, len(s.inviteAudits))
	copy(out, s.inviteAudits)
	return out
}
