package recruit

import (
	"context"
	"testing"
	"time"

	"guildhub/internal/apperr"
	"guildhub/internal/cache"
	"guildhub/internal/groups"
	"guildhub/internal/identity"
	"guildhub/internal/lookup"
	"guildhub/internal/models"
	"guildhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *testutil.Fixture) {
	fixture := testutil.NewFixture(t)
	manager := groups.NewService(fixture.Store, cache.NewMemoryCache(), cache.NewMemoryCache(), time.Hour, 5*time.Minute)
	service := NewService(fixture.Store, manager, lookup.NewResolver(fixture.Store))
	return service, fixture
}

func asActor(user models.User) identity.Actor {
	return identity.Actor{UserID: user.ID, DisplayName: user.DisplayName, SystemAdmin: user.IsSystemAdmin}
}

func TestInviteByDisplayName(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	invitee := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	ctx := context.Background()

	invitation, err := service.Invite(ctx, asActor(owner), group.ID, invitee.DisplayName)
	require.NoError(t, err)
	assert.Equal(t, invitee.ID, invitation.InviteeUserID)
	assert.Equal(t, models.InviteStatusPending, invitation.Status)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), invitation.ExpiresAt, time.Minute)

	_, err = service.Invite(ctx, asActor(owner), group.ID, invitee.DisplayName)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), "duplicate pending invitation")

	_, err = service.Invite(ctx, asActor(owner), group.ID, "nobody")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestInviteRequiresModerator(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	invitee := fixture.User("riley")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	fixture.Member(group.ID, member.ID)

	_, err := service.Invite(context.Background(), asActor(member), group.ID, invitee.DisplayName)
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
}

func TestInviteExistingMember(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	fixture.Member(group.ID, member.ID)

	_, err := service.Invite(context.Background(), asActor(owner), group.ID, member.DisplayName)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAcceptInvitation(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	invitee := fixture.User("casey")
	stranger := fixture.User("riley")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	ctx := context.Background()

	invitation, err := service.Invite(ctx, asActor(owner), group.ID, invitee.DisplayName)
	require.NoError(t, err)

	_, err = service.AcceptInvitation(ctx, asActor(stranger), invitation.ID)
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err), "only the addressee may respond")

	membership, err := service.AcceptInvitation(ctx, asActor(invitee), invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, invitee.ID, membership.UserID)

	updated, err := fixture.Store.GetInvitation(ctx, invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusAccepted, updated.Status)

	_, err = service.AcceptInvitation(ctx, asActor(invitee), invitation.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err), "terminal invitations cannot be re-accepted")
}

func TestAcceptExpiredInvitationFlipsStatus(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	invitee := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	ctx := context.Background()

	invitation := models.Invitation{
		GroupID:       group.ID,
		InviterID:     owner.ID,
		InviteeUserID: invitee.ID,
		Status:        models.InviteStatusPending,
		ExpiresAt:     time.Now().Add(-time.Hour),
	}
	require.NoError(t, fixture.Store.CreateInvitation(ctx, &invitation))

	_, err := service.AcceptInvitation(ctx, asActor(invitee), invitation.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	updated, err := fixture.Store.GetInvitation(ctx, invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusExpired, updated.Status)
}

func TestDeclineInvitation(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	invitee := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	ctx := context.Background()

	invitation, err := service.Invite(ctx, asActor(owner), group.ID, invitee.DisplayName)
	require.NoError(t, err)
	require.NoError(t, service.DeclineInvitation(ctx, asActor(invitee), invitation.ID))

	updated, err := fixture.Store.GetInvitation(ctx, invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusDeclined, updated.Status)
	_, err = fixture.Store.GetMembership(ctx, group.ID, invitee.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestListInvitationsResolvesNames(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	invitee := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	ctx := context.Background()

	_, err := service.Invite(ctx, asActor(owner), group.ID, invitee.DisplayName)
	require.NoError(t, err)

	views, err := service.ListInvitations(ctx, asActor(owner), group.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "morgan", views[0].InviterName)
	assert.Equal(t, "casey", views[0].InviteeName)
}

func TestExpireInvitations(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	first := fixture.User("casey")
	second := fixture.User("riley")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	ctx := context.Background()

	stale := models.Invitation{GroupID: group.ID, InviterID: owner.ID, InviteeUserID: first.ID, Status: models.InviteStatusPending, ExpiresAt: time.Now().Add(-time.Hour)}
	require.NoError(t, fixture.Store.CreateInvitation(ctx, &stale))
	fresh := models.Invitation{GroupID: group.ID, InviterID: owner.ID, InviteeUserID: second.ID, Status: models.InviteStatusPending, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, fixture.Store.CreateInvitation(ctx, &fresh))

	flipped, err := service.ExpireInvitations(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)

	updated, err := fixture.Store.GetInvitation(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusExpired, updated.Status)
	untouched, err := fixture.Store.GetInvitation(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusPending, untouched.Status)
}

func TestCreateInviteCodeOwnerOnly(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	admin := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	fixture.Member(group.ID, admin.ID)
	fixture.Admin(group.ID, admin.ID)
	ctx := context.Background()

	_, err := service.CreateInviteCode(ctx, asActor(admin), group.ID, InviteCodeInput{ExpiresInDays: 7})
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))

	_, err = service.CreateInviteCode(ctx, asActor(owner), group.ID, InviteCodeInput{ExpiresInDays: 45})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	code, err := service.CreateInviteCode(ctx, asActor(owner), group.ID, InviteCodeInput{ExpiresInDays: 7})
	require.NoError(t, err)
	assert.Len(t, code.Code, codeLength)
	assert.Zero(t, code.CurrentUses)
}

func TestRedeemInviteCodeConservation(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	first := fixture.User("casey")
	second := fixture.User("riley")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	ctx := context.Background()

	maxUses := 1
	code, err := service.CreateInviteCode(ctx, asActor(owner), group.ID, InviteCodeInput{MaxUses: &maxUses, ExpiresInDays: 7})
	require.NoError(t, err)

	membership, err := service.RedeemInviteCode(ctx, asActor(first), code.Code)
	require.NoError(t, err)
	assert.Equal(t, first.ID, membership.UserID)

	updated, err := fixture.Store.GetInviteCode(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentUses)

	_, err = service.RedeemInviteCode(ctx, asActor(second), code.Code)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err), "exhausted codes refuse further redemptions")

	// The check-then-increment on CurrentUses is read-then-write with no
	// compare-and-swap: truly concurrent redemptions can overrun the limit
	// by one. Serial execution, as here, always conserves it.
}

func TestRedeemRevokedCode(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	joiner := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	ctx := context.Background()

	code, err := service.CreateInviteCode(ctx, asActor(owner), group.ID, InviteCodeInput{ExpiresInDays: 7})
	require.NoError(t, err)
	require.NoError(t, service.RevokeInviteCode(ctx, asActor(owner), code.ID))

	_, err = service.RedeemInviteCode(ctx, asActor(joiner), code.Code)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	err = service.RevokeInviteCode(ctx, asActor(owner), code.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err), "double revoke")
}

func TestRedeemTwiceAfterLeaving(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	joiner := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	ctx := context.Background()

	code, err := service.CreateInviteCode(ctx, asActor(owner), group.ID, InviteCodeInput{ExpiresInDays: 7})
	require.NoError(t, err)

	_, err = service.RedeemInviteCode(ctx, asActor(joiner), code.Code)
	require.NoError(t, err)
	require.NoError(t, fixture.Store.DeleteMembership(ctx, group.ID, joiner.ID))

	_, err = service.RedeemInviteCode(ctx, asActor(joiner), code.Code)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), "the redemption row outlives the membership")
}

func TestRedeemAsMember(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeInvitationOnly)
	fixture.Member(group.ID, member.ID)
	ctx := context.Background()

	code, err := service.CreateInviteCode(ctx, asActor(owner), group.ID, InviteCodeInput{ExpiresInDays: 7})
	require.NoError(t, err)

	_, err = service.RedeemInviteCode(ctx, asActor(member), code.Code)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	updated, err := fixture.Store.GetInviteCode(ctx, code.ID)
	require.NoError(t, err)
	assert.Zero(t, updated.CurrentUses, "failed redemption leaves no writes behind")
}

func TestRequestJoinApprovalModeOnly(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	requester := fixture.User("casey")
	category := fixture.Category("guilds")
	open := fixture.Group(category.ID, "open-group", owner.ID, models.JoinModeOpen)
	approval := fixture.Group(category.ID, "approval-group", owner.ID, models.JoinModeApproval)
	ctx := context.Background()

	_, err := service.RequestJoin(ctx, asActor(requester), open.ID, "please")
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	request, err := service.RequestJoin(ctx, asActor(requester), approval.ID, "please")
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestStatusPending, request.Status)

	_, err = service.RequestJoin(ctx, asActor(requester), approval.ID, "again")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), "one pending request per user per group")
}

func TestApproveJoinRequest(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	requester := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "approval-group", owner.ID, models.JoinModeApproval)
	ctx := context.Background()

	request, err := service.RequestJoin(ctx, asActor(requester), group.ID, "please")
	require.NoError(t, err)

	membership, err := service.ApproveJoinRequest(ctx, asActor(owner), request.ID)
	require.NoError(t, err)
	assert.Equal(t, requester.ID, membership.UserID)

	updated, err := fixture.Store.GetJoinRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestStatusApproved, updated.Status)
	assert.Equal(t, owner.ID, updated.RespondedBy)
	assert.NotNil(t, updated.RespondedAt)

	_, err = service.ApproveJoinRequest(ctx, asActor(owner), request.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err), "responded requests are terminal")
}

func TestApproveCancelsOtherPendingRequests(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	requester := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "approval-group", owner.ID, models.JoinModeApproval)
	ctx := context.Background()

	request, err := service.RequestJoin(ctx, asActor(requester), group.ID, "please")
	require.NoError(t, err)
	// A second pending row for the same pair can only arise from interleaved
	// creates; seed one directly to model it.
	duplicate := models.JoinRequest{GroupID: group.ID, UserID: requester.ID, Status: models.JoinRequestStatusPending}
	require.NoError(t, fixture.Store.CreateJoinRequest(ctx, &duplicate))

	_, err = service.ApproveJoinRequest(ctx, asActor(owner), request.ID)
	require.NoError(t, err)

	approved, err := fixture.Store.GetJoinRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestStatusApproved, approved.Status)
	cancelled, err := fixture.Store.GetJoinRequest(ctx, duplicate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestStatusCancelled, cancelled.Status)

	pending, err := fixture.Store.ListPendingJoinRequestsByGroupUser(ctx, group.ID, requester.ID)
	require.NoError(t, err)
	assert.Empty(t, pending, "no pending request survives a successful join")
}

func TestRejectJoinRequest(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	requester := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "approval-group", owner.ID, models.JoinModeApproval)
	ctx := context.Background()

	request, err := service.RequestJoin(ctx, asActor(requester), group.ID, "please")
	require.NoError(t, err)
	require.NoError(t, service.RejectJoinRequest(ctx, asActor(owner), request.ID))

	updated, err := fixture.Store.GetJoinRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestStatusRejected, updated.Status)
	assert.Equal(t, owner.ID, updated.RespondedBy)
	_, err = fixture.Store.GetMembership(ctx, group.ID, requester.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCancelJoinRequestRequesterOnly(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	requester := fixture.User("casey")
	other := fixture.User("riley")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "approval-group", owner.ID, models.JoinModeApproval)
	ctx := context.Background()

	request, err := service.RequestJoin(ctx, asActor(requester), group.ID, "please")
	require.NoError(t, err)

	err = service.CancelJoinRequest(ctx, asActor(other), request.ID)
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))

	require.NoError(t, service.CancelJoinRequest(ctx, asActor(requester), request.ID))
	updated, err := fixture.Store.GetJoinRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestStatusCancelled, updated.Status)
}
