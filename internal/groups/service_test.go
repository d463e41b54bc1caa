package groups

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
	service := NewService(fixture.Store, cache.NewMemoryCache(), cache.NewMemoryCache(), time.Hour, 5*time.Minute)
	return service, fixture
}

func asActor(user models.User) identity.Actor {
	return identity.Actor{UserID: user.ID, DisplayName: user.DisplayName, SystemAdmin: user.IsSystemAdmin}
}

func TestCreateCategoryRequiresSystemAdmin(t *testing.T) {
	service, fixture := newTestService(t)
	regular := fixture.User("casey")
	admin := fixture.SystemAdmin("root")
	input := CategoryInput{Name: "guilds", Visibility: models.VisibilityPublic, Policy: models.CreationPolicyAnyone}

	_, err := service.CreateCategory(context.Background(), asActor(regular), input)
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))

	category, err := service.CreateCategory(context.Background(), asActor(admin), input)
	require.NoError(t, err)
	assert.NotEmpty(t, category.ID)
}

func TestCreateCategoryDuplicateName(t *testing.T) {
	service, fixture := newTestService(t)
	admin := fixture.SystemAdmin("root")
	input := CategoryInput{Name: "guilds", Visibility: models.VisibilityPublic, Policy: models.CreationPolicyAnyone}

	_, err := service.CreateCategory(context.Background(), asActor(admin), input)
	require.NoError(t, err)
	_, err = service.CreateCategory(context.Background(), asActor(admin), input)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestListCategoriesHidesNonPublic(t *testing.T) {
	service, fixture := newTestService(t)
	admin := fixture.SystemAdmin("root")
	regular := fixture.User("casey")
	ctx := context.Background()

	_, err := service.CreateCategory(ctx, asActor(admin), CategoryInput{Name: "guilds", Visibility: models.VisibilityPublic, Policy: models.CreationPolicyAnyone})
	require.NoError(t, err)
	_, err = service.CreateCategory(ctx, asActor(admin), CategoryInput{Name: "system", Visibility: models.VisibilityHidden, Policy: models.CreationPolicyAdminOnly})
	require.NoError(t, err)

	visible, err := service.ListCategories(ctx, asActor(regular))
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "guilds", visible[0].Name)

	all, err := service.ListCategories(ctx, asActor(admin))
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateGroupEnrollsOwner(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	category := fixture.Category("guilds")

	group, err := service.CreateGroup(context.Background(), asActor(owner), GroupInput{
		CategoryID: category.ID,
		Name:       "night-watch",
		Visibility: models.VisibilityPublic,
		JoinMode:   models.JoinModeOpen,
	})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, group.OwnerID)

	membership, err := fixture.Store.GetMembership(context.Background(), group.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipSourceDirect, membership.Source)
}

func TestCreateGroupAdminOnlyCategory(t *testing.T) {
	service, fixture := newTestService(t)
	regular := fixture.User("casey")
	admin := fixture.SystemAdmin("root")
	category := models.Category{Name: "staff", Visibility: models.VisibilityPublic, Policy: models.CreationPolicyAdminOnly}
	require.NoError(t, fixture.Store.CreateCategory(context.Background(), &category))

	input := GroupInput{CategoryID: category.ID, Name: "review-board", Visibility: models.VisibilityPublic, JoinMode: models.JoinModeApproval}
	_, err := service.CreateGroup(context.Background(), asActor(regular), input)
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))

	_, err = service.CreateGroup(context.Background(), asActor(admin), input)
	assert.NoError(t, err)
}

func TestGroupNameUniquePerCategory(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	guilds := fixture.Category("guilds")
	clubs := fixture.Category("clubs")
	ctx := context.Background()

	input := GroupInput{CategoryID: guilds.ID, Name: "night-watch", Visibility: models.VisibilityPublic, JoinMode: models.JoinModeOpen}
	_, err := service.CreateGroup(ctx, asActor(owner), input)
	require.NoError(t, err)

	_, err = service.CreateGroup(ctx, asActor(owner), input)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	input.CategoryID = clubs.ID
	_, err = service.CreateGroup(ctx, asActor(owner), input)
	assert.NoError(t, err, "same name in a different category is fine")
}

func TestJoinGroupOnlyOpenMode(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	joiner := fixture.User("casey")
	category := fixture.Category("guilds")
	open := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	approval := fixture.Group(category.ID, "approval-group", owner.ID, models.JoinModeApproval)
	ctx := context.Background()

	membership, err := service.JoinGroup(ctx, asActor(joiner), open.ID)
	require.NoError(t, err)
	assert.Equal(t, joiner.ID, membership.UserID)

	_, err = service.JoinGroup(ctx, asActor(joiner), approval.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestJoinGroupTwiceConflicts(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	joiner := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	ctx := context.Background()

	_, err := service.JoinGroup(ctx, asActor(joiner), group.ID)
	require.NoError(t, err)
	_, err = service.JoinGroup(ctx, asActor(joiner), group.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestJoinDerivedGroupDenied(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	joiner := fixture.User("casey")
	category := fixture.Category("guilds")
	derived := fixture.DerivedGroup(category.ID, "all-hands", owner.ID)

	_, err := service.JoinGroup(context.Background(), asActor(joiner), derived.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestAdmitCancelsPendingJoinRequests(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	joiner := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	ctx := context.Background()

	request := models.JoinRequest{GroupID: group.ID, UserID: joiner.ID, Status: models.JoinRequestStatusPending}
	require.NoError(t, fixture.Store.CreateJoinRequest(ctx, &request))

	_, err := service.JoinGroup(ctx, asActor(joiner), group.ID)
	require.NoError(t, err)

	updated, err := fixture.Store.GetJoinRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestStatusCancelled, updated.Status)
	assert.NotNil(t, updated.RespondedAt)
}

func TestLeaveGroupOwnerDenied(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	fixture.Member(group.ID, member.ID)
	ctx := context.Background()

	err := service.LeaveGroup(ctx, asActor(owner), group.ID)
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))

	require.NoError(t, service.LeaveGroup(ctx, asActor(member), group.ID))
	_, err = fixture.Store.GetMembership(ctx, group.ID, member.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRemoveMemberDropsAdminDesignation(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	fixture.Member(group.ID, member.ID)
	fixture.Admin(group.ID, member.ID)
	ctx := context.Background()

	require.NoError(t, service.RemoveMember(ctx, asActor(owner), group.ID, member.ID))

	isAdmin, err := fixture.Store.IsAdmin(ctx, group.ID, member.ID)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestRemoveMemberOwnerProtected(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	admin := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	fixture.Member(group.ID, admin.ID)
	fixture.Admin(group.ID, admin.ID)

	err := service.RemoveMember(context.Background(), asActor(admin), group.ID, owner.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestTransferOwnership(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	successor := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	fixture.Member(group.ID, successor.ID)
	fixture.Admin(group.ID, successor.ID)
	ctx := context.Background()

	updated, err := service.TransferOwnership(ctx, asActor(owner), group.ID, successor.ID)
	require.NoError(t, err)
	assert.Equal(t, successor.ID, updated.OwnerID)

	// The new owner leaves the admin table; the old owner enters it.
	isAdmin, err := fixture.Store.IsAdmin(ctx, group.ID, successor.ID)
	require.NoError(t, err)
	assert.False(t, isAdmin)
	isAdmin, err = fixture.Store.IsAdmin(ctx, group.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func TestTransferOwnershipRequiresMembership(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	outsider := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)

	_, err := service.TransferOwnership(context.Background(), asActor(owner), group.ID, outsider.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestTransferOwnershipOnlyOwner(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	fixture.Member(group.ID, member.ID)

	_, err := service.TransferOwnership(context.Background(), asActor(member), group.ID, member.ID)
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
}

func TestAddAdmin(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	outsider := fixture.User("riley")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	fixture.Member(group.ID, member.ID)
	ctx := context.Background()

	require.NoError(t, service.AddAdmin(ctx, asActor(owner), group.ID, member.ID))
	// Re-designating is a no-op, not an error.
	require.NoError(t, service.AddAdmin(ctx, asActor(owner), group.ID, member.ID))

	err := service.AddAdmin(ctx, asActor(owner), group.ID, outsider.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	err = service.AddAdmin(ctx, asActor(owner), group.ID, owner.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestUpdateGroupRequiresModerator(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	fixture.Member(group.ID, member.ID)
	ctx := context.Background()

	name := "renamed"
	_, err := service.UpdateGroup(ctx, asActor(member), group.ID, GroupUpdate{Name: &name})
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))

	fixture.Admin(group.ID, member.ID)
	updated, err := service.UpdateGroup(ctx, asActor(member), group.ID, GroupUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
}

func TestDeleteGroupOwnerOnly(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	admin := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	fixture.Member(group.ID, admin.ID)
	fixture.Admin(group.ID, admin.ID)
	ctx := context.Background()

	err := service.DeleteGroup(ctx, asActor(admin), group.ID)
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))

	require.NoError(t, service.DeleteGroup(ctx, asActor(owner), group.ID))
	_, err = fixture.Store.GetGroup(ctx, group.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = fixture.Store.GetMembership(ctx, group.ID, admin.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err), "memberships cascade with the group")
}

func TestListMemberIDsCacheInvalidation(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	joiner := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	ctx := context.Background()

	ids, err := service.ListMemberIDs(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{owner.ID}, ids)

	_, err = service.JoinGroup(ctx, asActor(joiner), group.ID)
	require.NoError(t, err)

	ids, err = service.ListMemberIDs(ctx, group.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 2, "join must invalidate the cached member list")
}
