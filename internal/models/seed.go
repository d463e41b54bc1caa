package models

import (
	"guildhub/internal/config"
	"errors"
	"os"

	"golang.org/x/crypto/bcrypt"

	console "guildhub/internal/utils/logger"

	"gorm.io/gorm"
)

var log = console.New("SEEDER")

// Default permission catalog seeded on startup. URNs are global and reusable
// across groups; categories are display-only.
var defaultPermissionCategories = []PermissionCategory{
	{Name: "membership", Description: "Joining, leaving and member management"},
	{Name: "moderation", Description: "Admin and moderation capabilities"},
	{Name: "recruitment", Description: "Invitations, invite codes and join requests"},
	{Name: "content", Description: "Group content and presentation"},
}

var defaultPermissions = []Permission{
	{URN: "guildhub:member:view", Name: "View members", Description: "See the member list of a group"},
	{URN: "guildhub:member:remove", Name: "Remove members", Description: "Remove a member from a group"},
	{URN: "guildhub:admin:manage", Name: "Manage admins", Description: "Add or remove group admins"},
	{URN: "guildhub:invite:create", Name: "Create invitations", Description: "Invite users by display name"},
	{URN: "guildhub:invite-code:manage", Name: "Manage invite codes", Description: "Issue and revoke invite codes"},
	{URN: "guildhub:join-request:respond", Name: "Respond to join requests", Description: "Approve or reject join requests"},
	{URN: "guildhub:group:edit", Name: "Edit group", Description: "Change group name, description and settings"},
	{URN: "guildhub:emblem:upload", Name: "Upload emblem", Description: "Upload the group emblem image"},
}

var permissionCategoryByURN = map[string]string{
	"guildhub:member:view":          "membership",
	"guildhub:member:remove":        "membership",
	"guildhub:admin:manage":         "moderation",
	"guildhub:invite:create":        "recruitment",
	"guildhub:invite-code:manage":   "recruitment",
	"guildhub:join-request:respond": "recruitment",
	"guildhub:group:edit":           "content",
	"guildhub:emblem:upload":        "content",
}

// SeedPermissionCatalog inserts the default permission categories and global
// permissions if they are missing. Safe to run on every startup.
func SeedPermissionCatalog(db *gorm.DB) error {
	categoryIDs := make(map[string]string, len(defaultPermissionCategories))

	for _, category := range defaultPermissionCategories {
		existing := &PermissionCategory{}
		err := db.Where("name = ?", category.Name).First(existing).Error
		switch {
		case err == nil:
			categoryIDs[category.Name] = existing.ID
			continue
		case errors.Is(err, gorm.ErrRecordNotFound):
			created := category
			if err := db.Create(&created).Error; err != nil {
				return err
			}
			categoryIDs[category.Name] = created.ID
		default:
			return err
		}
	}

	for _, permission := range defaultPermissions {
		var count int64
		if err := db.Model(&Permission{}).Where("urn = ?", permission.URN).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		created := permission
		if categoryName, ok := permissionCategoryByURN[permission.URN]; ok {
			created.CategoryID = categoryIDs[categoryName]
		}
		if err := db.Create(&created).Error; err != nil {
			return err
		}
		log.Info("Seeded permission %s", created.URN)
	}

	return nil
}

// SeedSystemCategory makes sure the hidden system category used for derived
// groups exists.
func SeedSystemCategory(db *gorm.DB) error {
	var count int64
	if err := db.Model(&Category{}).Where("name = ?", "system").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	category := &Category{
		Name:        "system",
		Description: "Managed groups",
		Visibility:  VisibilitySystem,
		Policy:      CreationPolicyAdminOnly,
	}
	if err := db.Create(category).Error; err != nil {
		return err
	}
	log.Success("Seeded system category")
	return nil
}

// CreateSystemAdminFromEnv creates the bootstrap system admin account from
// SYSTEM_ADMIN_EMAIL / SYSTEM_ADMIN_PASSWORD when no such account exists.
func CreateSystemAdminFromEnv(db *gorm.DB, cfg *config.Config) error {
	email := os.Getenv("SYSTEM_ADMIN_EMAIL")
	password := os.Getenv("SYSTEM_ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Warn("SYSTEM_ADMIN_EMAIL or SYSTEM_ADMIN_PASSWORD not set, skipping system admin creation")
		return nil
	}

	var count int64
	if err := db.Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &User{
		Email:         email,
		Password:      string(hashed),
		DisplayName:   "System Admin",
		IsSystemAdmin: true,
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}

	log.Success("Created system admin %s", email)
	return nil
}
