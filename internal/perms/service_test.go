package perms

import (
	"context"
	"testing"
	"time"

	"guildhub/internal/apperr"
	"guildhub/internal/cache"
	"guildhub/internal/identity"
	"guildhub/internal/models"
	"guildhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *testutil.Fixture) {
	fixture := testutil.NewFixture(t)
	service := NewService(fixture.Store, cache.NewMemoryCache(), 5*time.Minute)
	return service, fixture
}

func grant(t *testing.T, fixture *testutil.Fixture, groupID string, permissionID string, target models.TargetType) {
	t.Helper()
	gp := models.GroupPermission{GroupID: groupID, PermissionID: &permissionID, TargetType: target}
	require.NoError(t, fixture.Store.CreateGroupPermission(context.Background(), &gp))
}

func urns(resolved []ResolvedPermission) []string {
	out := make([]string, 0, len(resolved))
	for _, permission := range resolved {
		out = append(out, permission.URN)
	}
	return out
}

func TestGetUserPermissionsNoMemberships(t *testing.T) {
	service, fixture := newTestService(t)
	user := fixture.User("casey")

	resolved, err := service.GetUserPermissions(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, resolved)
	assert.Empty(t, resolved)
}

func TestTargetTypeGrantsByRole(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	admin := fixture.User("casey")
	member := fixture.User("riley")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeOpen)
	fixture.Member(group.ID, admin.ID)
	fixture.Admin(group.ID, admin.ID)
	fixture.Member(group.ID, member.ID)

	members := fixture.Store.AddPermission(models.Permission{URN: "guildhub:member:view", Name: "View members"})
	admins := fixture.Store.AddPermission(models.Permission{URN: "guildhub:admin:manage", Name: "Manage admins"})
	ownerOnly := fixture.Store.AddPermission(models.Permission{URN: "guildhub:group:edit", Name: "Edit group"})
	elevated := fixture.Store.AddPermission(models.Permission{URN: "guildhub:member:remove", Name: "Remove members"})
	grant(t, fixture, group.ID, members.ID, models.TargetAllMembers)
	grant(t, fixture, group.ID, admins.ID, models.TargetAllAdmins)
	grant(t, fixture, group.ID, ownerOnly.ID, models.TargetOwnerOnly)
	grant(t, fixture, group.ID, elevated.ID, models.TargetOwnerAndAdmins)
	ctx := context.Background()

	resolved, err := service.GetUserPermissions(ctx, owner.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"guildhub:member:view", "guildhub:group:edit", "guildhub:member:remove"}, urns(resolved),
		"the owner is not an implicit admin for all_admins grants")

	resolved, err = service.GetUserPermissions(ctx, admin.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"guildhub:member:view", "guildhub:admin:manage", "guildhub:member:remove"}, urns(resolved))

	resolved, err = service.GetUserPermissions(ctx, member.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"guildhub:member:view"}, urns(resolved))
}

func TestPermissionDeduplicationByURN(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	user := fixture.User("casey")
	category := fixture.Category("guilds")
	first := fixture.Group(category.ID, "first", owner.ID, models.JoinModeOpen)
	second := fixture.Group(category.ID, "second", owner.ID, models.JoinModeOpen)
	fixture.Member(first.ID, user.ID)
	fixture.Member(second.ID, user.ID)

	shared := fixture.Store.AddPermission(models.Permission{URN: "guildhub:member:view", Name: "View members"})
	grant(t, fixture, first.ID, shared.ID, models.TargetAllMembers)
	grant(t, fixture, second.ID, shared.ID, models.TargetAllMembers)

	resolved, err := service.GetUserPermissions(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "guildhub:member:view", resolved[0].URN)
}

func TestCustomPermissionResolution(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeOpen)

	gp := models.GroupPermission{
		GroupID:    group.ID,
		CustomURN:  "night-watch:patrol:lead",
		CustomName: "Lead patrols",
		TargetType: models.TargetOwnerOnly,
	}
	require.NoError(t, fixture.Store.CreateGroupPermission(context.Background(), &gp))

	resolved, err := service.GetUserPermissions(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, models.PermissionSourceGroupScoped, resolved[0].Source)
	assert.Equal(t, "night-watch:patrol:lead", resolved[0].URN)
	assert.Equal(t, group.Name, resolved[0].GroupName)
}

func TestAttachGroupPermissionInvalidatesMembers(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeOpen)
	permission := fixture.Store.AddPermission(models.Permission{URN: "guildhub:member:view", Name: "View members"})
	ctx := context.Background()

	resolved, err := service.GetUserPermissions(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, resolved)

	_, err = service.AttachGroupPermission(ctx, identity.Actor{UserID: owner.ID}, group.ID, GrantInput{
		PermissionID: permission.ID,
		TargetType:   models.TargetAllMembers,
	})
	require.NoError(t, err)

	resolved, err = service.GetUserPermissions(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, resolved, 1, "attaching a grant must invalidate cached member resolutions")
}

func TestAttachGroupPermissionValidation(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeOpen)
	permission := fixture.Store.AddPermission(models.Permission{URN: "guildhub:member:view", Name: "View members"})
	actor := identity.Actor{UserID: owner.ID}
	ctx := context.Background()

	_, err := service.AttachGroupPermission(ctx, actor, group.ID, GrantInput{TargetType: models.TargetAllMembers})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = service.AttachGroupPermission(ctx, actor, group.ID, GrantInput{
		PermissionID: permission.ID,
		CustomURN:    "x:y:z",
		TargetType:   models.TargetAllMembers,
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = service.AttachGroupPermission(ctx, actor, group.ID, GrantInput{PermissionID: permission.ID, TargetType: models.TargetAllMembers})
	require.NoError(t, err)
	_, err = service.AttachGroupPermission(ctx, actor, group.ID, GrantInput{PermissionID: permission.ID, TargetType: models.TargetAllAdmins})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), "a global permission attaches to a group at most once")
}

func TestAttachGroupPermissionRequiresModerator(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeOpen)
	fixture.Member(group.ID, member.ID)
	permission := fixture.Store.AddPermission(models.Permission{URN: "guildhub:member:view", Name: "View members"})

	_, err := service.AttachGroupPermission(context.Background(), identity.Actor{UserID: member.ID}, group.ID, GrantInput{
		PermissionID: permission.ID,
		TargetType:   models.TargetAllMembers,
	})
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
}

func TestGetMultiGroupMemberPermissions(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	inside := fixture.Group(category.ID, "inside", owner.ID, models.JoinModeOpen)
	outside := fixture.Group(category.ID, "outside", owner.ID, models.JoinModeOpen)
	fixture.Member(inside.ID, member.ID)
	fixture.Member(outside.ID, member.ID)

	insideView := fixture.Store.AddPermission(models.Permission{URN: "guildhub:member:view", Name: "View members"})
	outsideRemove := fixture.Store.AddPermission(models.Permission{URN: "guildhub:member:remove", Name: "Remove members"})
	grant(t, fixture, inside.ID, insideView.ID, models.TargetAllMembers)
	grant(t, fixture, outside.ID, outsideRemove.ID, models.TargetAllMembers)

	result, err := service.GetGroupMemberPermissions(context.Background(), inside.ID)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.ElementsMatch(t, []string{"guildhub:member:view"}, urns(result[member.ID]),
		"grants from other groups are filtered out")
	assert.ElementsMatch(t, []string{"guildhub:member:view"}, urns(result[owner.ID]))
}
