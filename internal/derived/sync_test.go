package derived

import (
	"context"
	"testing"

	"guildhub/internal/apperr"
	"guildhub/internal/cache"
	"guildhub/internal/identity"
	"guildhub/internal/models"
	"guildhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newTestService(t *testing.T) (*Service, *testutil.Fixture) {
	fixture := testutil.NewFixture(t)
	return NewService(fixture.Store, cache.NewMemoryCache()), fixture
}

func asActor(user models.User) identity.Actor {
	return identity.Actor{UserID: user.ID, DisplayName: user.DisplayName, SystemAdmin: user.IsSystemAdmin}
}

func TestAddRuleOnlyOnDerivedGroups(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	category := fixture.Category("guilds")
	standard := fixture.Group(category.ID, "standard", owner.ID, models.JoinModeOpen)

	_, err := service.AddRule(context.Background(), asActor(owner), standard.ID, RuleInput{
		RuleType:       models.RuleTypeUnion,
		SourceGroupIDs: []string{standard.ID},
	})
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestAddRuleValidation(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	category := fixture.Category("guilds")
	derived := fixture.DerivedGroup(category.ID, "all-hands", owner.ID)
	ctx := context.Background()

	_, err := service.AddRule(ctx, asActor(owner), derived.ID, RuleInput{RuleType: models.RuleTypeUnion})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "union rules need sources")

	_, err = service.AddRule(ctx, asActor(owner), derived.ID, RuleInput{
		RuleType:       models.RuleTypeUnion,
		SourceGroupIDs: []string{derived.ID},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "self-referencing source")

	_, err = service.AddRule(ctx, asActor(owner), derived.ID, RuleInput{
		RuleType:       models.RuleTypeUnion,
		SourceGroupIDs: []string{"00000000-0000-0000-0000-000000000000"},
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err), "unknown source group")
}

func TestSyncUnionRule(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	a := fixture.User("casey")
	b := fixture.User("riley")
	category := fixture.Category("guilds")
	first := fixture.Group(category.ID, "first", owner.ID, models.JoinModeOpen)
	second := fixture.Group(category.ID, "second", owner.ID, models.JoinModeOpen)
	derived := fixture.DerivedGroup(category.ID, "all-hands", owner.ID)
	fixture.Member(first.ID, a.ID)
	fixture.Member(second.ID, b.ID)
	ctx := context.Background()

	_, err := service.AddRule(ctx, asActor(owner), derived.ID, RuleInput{
		RuleType:       models.RuleTypeUnion,
		SourceGroupIDs: []string{first.ID, second.ID},
	})
	require.NoError(t, err)

	memberships, err := fixture.Store.ListMembershipsByGroup(ctx, derived.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 3, "owner of both sources plus the two members")
	for _, membership := range memberships {
		assert.Equal(t, models.MembershipSourceDerived, membership.Source)
	}
}

func TestSyncIdempotent(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	source := fixture.Group(category.ID, "source", owner.ID, models.JoinModeOpen)
	derived := fixture.DerivedGroup(category.ID, "all-hands", owner.ID)
	fixture.Member(source.ID, member.ID)
	ctx := context.Background()

	_, err := service.AddRule(ctx, asActor(owner), derived.ID, RuleInput{
		RuleType:       models.RuleTypeUnion,
		SourceGroupIDs: []string{source.ID},
	})
	require.NoError(t, err)

	again, err := service.Sync(ctx, derived.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Added)
	assert.Zero(t, again.Removed)
}

func TestSyncRemovesDeparted(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	source := fixture.Group(category.ID, "source", owner.ID, models.JoinModeOpen)
	derived := fixture.DerivedGroup(category.ID, "all-hands", owner.ID)
	fixture.Member(source.ID, member.ID)
	ctx := context.Background()

	_, err := service.AddRule(ctx, asActor(owner), derived.ID, RuleInput{
		RuleType:       models.RuleTypeUnion,
		SourceGroupIDs: []string{source.ID},
	})
	require.NoError(t, err)

	require.NoError(t, fixture.Store.DeleteMembership(ctx, source.ID, member.ID))
	result, err := service.Sync(ctx, derived.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)

	_, err = fixture.Store.GetMembership(ctx, derived.ID, member.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSyncLeavesDirectMembershipsAlone(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	direct := fixture.User("casey")
	category := fixture.Category("guilds")
	source := fixture.Group(category.ID, "source", owner.ID, models.JoinModeOpen)
	derived := fixture.DerivedGroup(category.ID, "all-hands", owner.ID)
	// Directly enrolled, not produced by any rule.
	fixture.Member(derived.ID, direct.ID)
	ctx := context.Background()

	_, err := service.AddRule(ctx, asActor(owner), derived.ID, RuleInput{
		RuleType:       models.RuleTypeUnion,
		SourceGroupIDs: []string{source.ID},
	})
	require.NoError(t, err)

	membership, err := fixture.Store.GetMembership(ctx, derived.ID, direct.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipSourceDirect, membership.Source,
		"reconciliation only touches rows it created")
}

func TestSyncInertRuleTypes(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	category := fixture.Category("guilds")
	derived := fixture.DerivedGroup(category.ID, "all-hands", owner.ID)
	ctx := context.Background()

	_, err := service.AddRule(ctx, asActor(owner), derived.ID, RuleInput{RuleType: models.RuleTypeRoleBased})
	require.NoError(t, err, "role_based rules are stored")

	result, err := service.Sync(ctx, derived.ID)
	require.NoError(t, err)
	assert.Zero(t, result.Added, "inert rule types produce no members")
}

func TestRemoveRuleResyncs(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	source := fixture.Group(category.ID, "source", owner.ID, models.JoinModeOpen)
	derived := fixture.DerivedGroup(category.ID, "all-hands", owner.ID)
	fixture.Member(source.ID, member.ID)
	ctx := context.Background()

	rule, err := service.AddRule(ctx, asActor(owner), derived.ID, RuleInput{
		RuleType:       models.RuleTypeUnion,
		SourceGroupIDs: []string{source.ID},
	})
	require.NoError(t, err)

	require.NoError(t, service.RemoveRule(ctx, asActor(owner), derived.ID, rule.ID))
	memberships, err := fixture.Store.ListMembershipsByGroup(ctx, derived.ID)
	require.NoError(t, err)
	assert.Empty(t, memberships, "removing the only rule empties the derived membership")
}

func TestSyncAll(t *testing.T) {
	service, fixture := newTestService(t)
	owner := fixture.User("morgan")
	member := fixture.User("casey")
	category := fixture.Category("guilds")
	source := fixture.Group(category.ID, "source", owner.ID, models.JoinModeOpen)
	derived := fixture.DerivedGroup(category.ID, "all-hands", owner.ID)
	fixture.Member(source.ID, member.ID)
	ctx := context.Background()

	rule := models.DerivedRule{
		DerivedGroupID: derived.ID,
		RuleType:       models.RuleTypeUnion,
		IsActive:       true,
	}
	rule.SourceGroupIDs = datatypes.JSON(`["` + source.ID + `"]`)
	require.NoError(t, fixture.Store.CreateDerivedRule(ctx, &rule))

	result, err := service.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added, "owner and member of the source group")
}
