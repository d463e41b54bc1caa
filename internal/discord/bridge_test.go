package discord

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

func newTestBridge(t *testing.T) (*Bridge, *testutil.Fixture) {
	fixture := testutil.NewFixture(t)
	bridge := NewBridge(fixture.Store, cache.NewMemoryCache(), 15*time.Minute, 6000)
	return bridge, fixture
}

func asActor(user models.User) identity.Actor {
	return identity.Actor{UserID: user.ID, DisplayName: user.DisplayName, SystemAdmin: user.IsSystemAdmin}
}

func TestAttachServerOwnerOnly(t *testing.T) {
	bridge, fixture := newTestBridge(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeOpen)
	fixture.Member(group.ID, member.ID)
	ctx := context.Background()

	_, err := bridge.AttachServer(ctx, asActor(member), group.ID, AttachInput{ServerID: "srv-1"})
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))

	attachment, err := bridge.AttachServer(ctx, asActor(owner), group.ID, AttachInput{ServerID: "srv-1", RoleIDs: []string{"role-a"}})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", attachment.ServerID)

	// Re-attaching replaces the link in place.
	attachment, err = bridge.AttachServer(ctx, asActor(owner), group.ID, AttachInput{ServerID: "srv-2"})
	require.NoError(t, err)
	assert.Equal(t, "srv-2", attachment.ServerID)
}

func TestTargetsAggregateAndInvalidation(t *testing.T) {
	bridge, fixture := newTestBridge(t)
	owner := fixture.User("morgan")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeOpen)
	ctx := context.Background()

	group.AutoRecruit = true
	require.NoError(t, fixture.Store.UpdateGroup(ctx, &group))

	targets, err := bridge.Targets(ctx)
	require.NoError(t, err)
	assert.Empty(t, targets, "auto-recruit without an attachment is not a target")

	_, err = bridge.AttachServer(ctx, asActor(owner), group.ID, AttachInput{ServerID: "srv-1", RoleIDs: []string{"role-a"}})
	require.NoError(t, err)

	targets, err = bridge.Targets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1, "attach must invalidate the cached aggregate")
	assert.Equal(t, group.ID, targets[0].GroupID)
	assert.Equal(t, []string{"role-a"}, targets[0].RoleIDs)

	require.NoError(t, bridge.DetachServer(ctx, asActor(owner), group.ID))
	targets, err = bridge.Targets(ctx)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestProcessPendingInvites(t *testing.T) {
	bridge, fixture := newTestBridge(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeOpen)
	fixture.Member(group.ID, member.ID)
	ctx := context.Background()

	group.AutoRecruit = true
	require.NoError(t, fixture.Store.UpdateGroup(ctx, &group))
	_, err := bridge.AttachServer(ctx, asActor(owner), group.ID, AttachInput{ServerID: "srv-1"})
	require.NoError(t, err)

	written, err := bridge.ProcessPendingInvites(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, written, "one audit row per member")

	// A second pass finds everything audited already.
	written, err = bridge.ProcessPendingInvites(ctx)
	require.NoError(t, err)
	assert.Zero(t, written)

	audits := fixture.Store.InviteAudits()
	require.Len(t, audits, 2)
	assert.Equal(t, OutcomeInvited, audits[0].Outcome)
	assert.Equal(t, "srv-1", audits[0].ServerID)
}

func TestRecordOutcomesValidation(t *testing.T) {
	bridge, fixture := newTestBridge(t)
	owner := fixture.User("morgan")
	category := fixture.Category("guilds")
	group := fixture.Group(category.ID, "night-watch", owner.ID, models.JoinModeOpen)
	ctx := context.Background()

	err := bridge.RecordOutcomes(ctx, []models.DiscordInviteAudit{
		{GroupID: group.ID, UserID: owner.ID, ServerID: "srv-1", Outcome: "noped"},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = bridge.RecordOutcomes(ctx, []models.DiscordInviteAudit{
		{GroupID: group.ID, UserID: owner.ID, ServerID: "srv-1", Outcome: OutcomeFailed, Detail: "user left server"},
	})
	require.NoError(t, err)
	assert.Len(t, fixture.Store.InviteAudits(), 1)
}
