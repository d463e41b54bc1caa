package testutil

import (
	"context"
	"testing"
	"time"

	"guildhub/internal/models"
)

// Fixture seeds common object graphs against a MemStore so individual tests
// stay short. Every helper fails the test on error instead of returning one.
type Fixture struct {
	T     *testing.T
	Store *MemStore
}

func NewFixture(t *testing.T) *Fixture {
	return &Fixture{T: t, Store: NewMemStore()}
}

func (f *Fixture) User(displayName string) models.User {
	return f.Store.AddUser(models.User{
		Email:       displayName + "@example.com",
		DisplayName: displayName,
	})
}

func (f *Fixture) SystemAdmin(displayName string) models.User {
	return f.Store.AddUser(models.User{
		Email:         displayName + "@example.com",
		DisplayName:   displayName,
		IsSystemAdmin: true,
	})
}

func (f *Fixture) Category(name string) models.Category {
	category := models.Category{
		Name:       name,
		Visibility: models.VisibilityPublic,
		Policy:     models.CreationPolicyAnyone,
	}
	if err := f.Store.CreateCategory(context.Background(), &category); err != nil {
		f.T.Fatalf("seed category %s: %v", name, err)
	}
	return category
}

// Group creates a group owned by ownerID along with the owner's membership
// row, matching what the production create path does.
func (f *Fixture) Group(categoryID, name, ownerID string, joinMode models.JoinMode) models.Group {
	group := models.Group{
		CategoryID: categoryID,
		Name:       name,
		Visibility: models.VisibilityPublic,
		JoinMode:   joinMode,
		Type:       models.GroupTypeStandard,
		OwnerID:    ownerID,
	}
	if err := f.Store.CreateGroup(context.Background(), &group); err != nil {
		f.T.Fatalf("seed group %s: %v", name, err)
	}
	f.Member(group.ID, ownerID)
	return group
}

func (f *Fixture) DerivedGroup(categoryID, name, ownerID string) models.Group {
	group := models.Group{
		CategoryID: categoryID,
		Name:       name,
		Visibility: models.VisibilityPublic,
		JoinMode:   models.JoinModeInvitationOnly,
		Type:       models.GroupTypeDerived,
		OwnerID:    ownerID,
	}
	if err := f.Store.CreateGroup(context.Background(), &group); err != nil {
		f.T.Fatalf("seed derived group %s: %v", name, err)
	}
	return group
}

func (f *Fixture) Member(groupID, userID string) models.Membership {
	membership := models.Membership{
		GroupID:  groupID,
		UserID:   userID,
		Source:   models.MembershipSourceDirect,
		JoinedAt: time.Now(),
	}
	if err := f.Store.CreateMembership(context.Background(), &membership); err != nil {
		f.T.Fatalf("seed membership: %v", err)
	}
	return membership
}

func (f *Fixture) DerivedMember(groupID, userID string) models.Membership {
	membership := models.Membership{
		GroupID:  groupID,
		UserID:   userID,
		Source:   models.MembershipSourceDerived,
		JoinedAt: time.Now(),
	}
	if err := f.Store.CreateMembership(context.Background(), &membership); err != nil {
		f.T.Fatalf("seed derived membership: %v", err)
	}
	return membership
}

func (f *Fixture) Admin(groupID, userID string) models.AdminDesignation {
	admin := models.AdminDesignation{GroupID: groupID, UserID: userID}
	if err := f.Store.CreateAdmin(context.Background(), &admin); err != nil {
		f.T.Fatalf("seed admin: %v", err)
	}
	return admin
}
