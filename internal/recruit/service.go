// Package recruit implements the three recruitment paths into a group:
// direct invitations, reusable invite codes and approval-mode join requests.
// Every successful path converges on the same admission step.
package recruit

import (
	"context"
	"time"

	"guildhub/internal/apperr"
	"guildhub/internal/events"
	"guildhub/internal/identity"
	"guildhub/internal/lookup"
	"guildhub/internal/models"
	"guildhub/internal/store"
	"guildhub/internal/utils"
	console "guildhub/internal/utils/logger"

	"golang.org/x/sync/errgroup"
)

var log = console.New("RECRUIT")

const (
	invitationLifetime = 7 * 24 * time.Hour
	codeLength         = 10
)

// Admitter is the single join step shared with the membership manager. It
// inserts the membership row, cancels the user's pending join requests for
// the group and invalidates the affected caches.
type Admitter interface {
	Admit(ctx context.Context, groupID, userID string) (*models.Membership, error)
	IsModerator(ctx context.Context, group *models.Group, actor identity.Actor) (bool, error)
}

type Service struct {
	store    store.Store
	admitter Admitter
	resolver lookup.Resolver
}

func NewService(st store.Store, admitter Admitter, resolver lookup.Resolver) *Service {
	return &Service{store: st, admitter: admitter, resolver: resolver}
}

// Invitations

// Invite sends a membership offer to a user addressed by display name.
func (s *Service) Invite(ctx context.Context, actor identity.Actor, groupID, inviteeDisplayName string) (*models.Invitation, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, group, actor); err != nil {
		return nil, err
	}
	invitee, err := s.resolver.ResolveDisplayName(ctx, inviteeDisplayName)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetMembership(ctx, groupID, invitee.ID); err == nil {
		return nil, apperr.Conflict("%s is already a member", inviteeDisplayName)
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}
	if _, err := s.store.FindPendingInvitation(ctx, groupID, invitee.ID); err == nil {
		return nil, apperr.Conflict("%s already has a pending invitation", inviteeDisplayName)
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	invitation := models.Invitation{
		GroupID:       groupID,
		InviterID:     actor.UserID,
		InviteeUserID: invitee.ID,
		Status:        models.InviteStatusPending,
		ExpiresAt:     time.Now().Add(invitationLifetime),
	}
	if err := s.store.CreateInvitation(ctx, &invitation); err != nil {
		return nil, err
	}
	events.Emit(events.InvitationCreated, &invitation)
	return &invitation, nil
}

// AcceptInvitation admits the addressee. An invitation past its expiry is
// flipped to expired on the spot and refused.
func (s *Service) AcceptInvitation(ctx context.Context, actor identity.Actor, invitationID string) (*models.Membership, error) {
	invitation, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if invitation.InviteeUserID != actor.UserID {
		return nil, apperr.PermissionDenied("only the invited user can respond")
	}
	if invitation.Status != models.InviteStatusPending {
		return nil, apperr.InvalidState("invitation is %s", invitation.Status)
	}
	if time.Now().After(invitation.ExpiresAt) {
		invitation.Status = models.InviteStatusExpired
		if err := s.store.UpdateInvitation(ctx, invitation); err != nil {
			log.Warn("marking invitation %s expired failed: %v", invitation.ID, err)
		}
		return nil, apperr.InvalidState("invitation has expired")
	}
	if _, err := s.store.GetMembership(ctx, invitation.GroupID, actor.UserID); err == nil {
		return nil, apperr.Conflict("already a member of this group")
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	membership, err := s.admitter.Admit(ctx, invitation.GroupID, actor.UserID)
	if err != nil {
		return nil, err
	}
	invitation.Status = models.InviteStatusAccepted
	if err := s.store.UpdateInvitation(ctx, invitation); err != nil {
		return nil, err
	}
	return membership, nil
}

func (s *Service) DeclineInvitation(ctx context.Context, actor identity.Actor, invitationID string) error {
	invitation, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return err
	}
	if invitation.InviteeUserID != actor.UserID {
		return apperr.PermissionDenied("only the invited user can respond")
	}
	if invitation.Status != models.InviteStatusPending {
		return apperr.InvalidState("invitation is %s", invitation.Status)
	}
	invitation.Status = models.InviteStatusDeclined
	return s.store.UpdateInvitation(ctx, invitation)
}

// InvitationView is an invitation enriched with display names for listing.
type InvitationView struct {
	models.Invitation
	InviterName string `json:"inviterName"`
	InviteeName string `json:"inviteeName"`
}

// ListInvitations returns the group's invitations with names resolved in one
// batch lookup.
func (s *Service) ListInvitations(ctx context.Context, actor identity.Actor, groupID string) ([]InvitationView, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, group, actor); err != nil {
		return nil, err
	}
	invitations, err := s.store.ListInvitationsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(invitations)*2)
	for _, invitation := range invitations {
		ids = append(ids, invitation.InviterID, invitation.InviteeUserID)
	}
	users, err := s.resolver.ResolveUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]InvitationView, 0, len(invitations))
	for _, invitation := range invitations {
		views = append(views, InvitationView{
			Invitation:  invitation,
			InviterName: users[invitation.InviterID].DisplayName,
			InviteeName: users[invitation.InviteeUserID].DisplayName,
		})
	}
	return views, nil
}

// ExpireInvitations flips every pending invitation past its expiry. Called
// by the scheduler; returns the number of rows flipped.
func (s *Service) ExpireInvitations(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.store.ListExpiredPendingInvitations(ctx, now)
	if err != nil {
		return 0, err
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(8)
	for i := range expired {
		invitation := expired[i]
		eg.Go(func() error {
			invitation.Status = models.InviteStatusExpired
			return s.store.UpdateInvitation(egCtx, &invitation)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	return len(expired), nil
}

// Invite codes

type InviteCodeInput struct {
	MaxUses       *int `json:"maxUses,omitempty" validate:"omitempty,min=1"`
	ExpiresInDays int  `json:"expiresInDays" validate:"required,min=1,max=30"`
}

// CreateInviteCode issues a reusable code for the group. Owner only.
func (s *Service) CreateInviteCode(ctx context.Context, actor identity.Actor, groupID string, input InviteCodeInput) (*models.InviteCode, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.OwnerID != actor.UserID && !actor.SystemAdmin {
		return nil, apperr.PermissionDenied("only the owner issues invite codes")
	}
	if input.ExpiresInDays < 1 || input.ExpiresInDays > 30 {
		return nil, apperr.Validation("expiresInDays must be between 1 and 30")
	}
	if input.MaxUses != nil && *input.MaxUses < 1 {
		return nil, apperr.Validation("maxUses must be at least 1")
	}
	value, err := utils.GenerateRandomString(codeLength)
	if err != nil {
		return nil, err
	}
	code := models.InviteCode{
		GroupID:   groupID,
		Code:      value,
		CreatedBy: actor.UserID,
		MaxUses:   input.MaxUses,
		ExpiresAt: time.Now().AddDate(0, 0, input.ExpiresInDays),
	}
	if err := s.store.CreateInviteCode(ctx, &code); err != nil {
		return nil, err
	}
	return &code, nil
}

func (s *Service) ListInviteCodes(ctx context.Context, actor identity.Actor, groupID string) ([]models.InviteCode, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, group, actor); err != nil {
		return nil, err
	}
	return s.store.ListInviteCodesByGroup(ctx, groupID)
}

func (s *Service) RevokeInviteCode(ctx context.Context, actor identity.Actor, codeID string) error {
	code, err := s.store.GetInviteCode(ctx, codeID)
	if err != nil {
		return err
	}
	group, err := s.store.GetGroup(ctx, code.GroupID)
	if err != nil {
		return err
	}
	if group.OwnerID != actor.UserID && !actor.SystemAdmin {
		return apperr.PermissionDenied("only the owner revokes invite codes")
	}
	if code.RevokedAt != nil {
		return apperr.InvalidState("invite code already revoked")
	}
	now := time.Now()
	code.RevokedAt = &now
	return s.store.UpdateInviteCode(ctx, code)
}

// RedeemInviteCode joins the caller via a shared code. Everything checkable
// is checked before the first write; the unique indexes on membership and
// redemption remain the real guard under interleaving.
func (s *Service) RedeemInviteCode(ctx context.Context, actor identity.Actor, codeValue string) (*models.Membership, error) {
	code, err := s.store.GetInviteCodeByCode(ctx, codeValue)
	if err != nil {
		return nil, err
	}
	if !code.Valid(time.Now()) {
		return nil, apperr.InvalidState("invite code is revoked, expired or at its usage limit")
	}
	redeemed, err := s.store.HasRedemption(ctx, code.ID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if redeemed {
		return nil, apperr.Conflict("invite code already redeemed")
	}
	if _, err := s.store.GetMembership(ctx, code.GroupID, actor.UserID); err == nil {
		return nil, apperr.Conflict("already a member of this group")
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	membership, err := s.admitter.Admit(ctx, code.GroupID, actor.UserID)
	if err != nil {
		return nil, err
	}
	redemption := models.Redemption{
		InviteCodeID: code.ID,
		UserID:       actor.UserID,
		RedeemedAt:   time.Now(),
	}
	if err := s.store.CreateRedemption(ctx, &redemption); err != nil {
		return nil, err
	}
	// Read-then-write: a concurrent redemption interleaving here can push
	// CurrentUses one past MaxUses. Known race, tolerated; see the usage
	// counter test.
	code.CurrentUses++
	if err := s.store.UpdateInviteCode(ctx, code); err != nil {
		return nil, err
	}
	events.Emit(events.InviteCodeRedeemed, code)
	return membership, nil
}

// Join requests

// RequestJoin opens an approval-mode join request.
func (s *Service) RequestJoin(ctx context.Context, actor identity.Actor, groupID, reason string) (*models.JoinRequest, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.JoinMode != models.JoinModeApproval {
		return nil, apperr.InvalidState("group %s does not accept join requests", group.Name)
	}
	if _, err := s.store.GetMembership(ctx, groupID, actor.UserID); err == nil {
		return nil, apperr.Conflict("already a member of this group")
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}
	if _, err := s.store.FindPendingJoinRequest(ctx, groupID, actor.UserID); err == nil {
		return nil, apperr.Conflict("a pending join request already exists")
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	request := models.JoinRequest{
		GroupID: groupID,
		UserID:  actor.UserID,
		Reason:  reason,
		Status:  models.JoinRequestStatusPending,
	}
	if err := s.store.CreateJoinRequest(ctx, &request); err != nil {
		return nil, err
	}
	events.Emit(events.JoinRequestCreated, &request)
	return &request, nil
}

func (s *Service) ListJoinRequests(ctx context.Context, actor identity.Actor, groupID string) ([]models.JoinRequest, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, group, actor); err != nil {
		return nil, err
	}
	return s.store.ListPendingJoinRequestsByGroup(ctx, groupID)
}

// ApproveJoinRequest admits the requester. Admission itself cancels the
// user's other pending requests for the group before this one is marked
// approved, so approval order does not matter.
func (s *Service) ApproveJoinRequest(ctx context.Context, actor identity.Actor, requestID string) (*models.Membership, error) {
	request, err := s.store.GetJoinRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(ctx, request.GroupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, group, actor); err != nil {
		return nil, err
	}
	if request.Status != models.JoinRequestStatusPending {
		return nil, apperr.InvalidState("join request is %s", request.Status)
	}
	if _, err := s.store.GetMembership(ctx, request.GroupID, request.UserID); err == nil {
		return nil, apperr.Conflict("requester is already a member")
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	membership, err := s.admitter.Admit(ctx, request.GroupID, request.UserID)
	if err != nil {
		return nil, err
	}
	// Admit cancelled every pending request for this user; re-read and mark
	// this one approved with the responder audit trail.
	request, err = s.store.GetJoinRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	request.Status = models.JoinRequestStatusApproved
	request.RespondedAt = &now
	request.RespondedBy = actor.UserID
	if err := s.store.UpdateJoinRequest(ctx, request); err != nil {
		return nil, err
	}
	return membership, nil
}

func (s *Service) RejectJoinRequest(ctx context.Context, actor identity.Actor, requestID string) error {
	request, err := s.store.GetJoinRequest(ctx, requestID)
	if err != nil {
		return err
	}
	group, err := s.store.GetGroup(ctx, request.GroupID)
	if err != nil {
		return err
	}
	if err := s.requireModerator(ctx, group, actor); err != nil {
		return err
	}
	if request.Status != models.JoinRequestStatusPending {
		return apperr.InvalidState("join request is %s", request.Status)
	}
	now := time.Now()
	request.Status = models.JoinRequestStatusRejected
	request.RespondedAt = &now
	request.RespondedBy = actor.UserID
	return s.store.UpdateJoinRequest(ctx, request)
}

// CancelJoinRequest lets the requester withdraw their own pending request.
func (s *Service) CancelJoinRequest(ctx context.Context, actor identity.Actor, requestID string) error {
	request, err := s.store.GetJoinRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.UserID != actor.UserID {
		return apperr.PermissionDenied("only the requester can cancel")
	}
	if request.Status != models.JoinRequestStatusPending {
		return apperr.InvalidState("join request is %s", request.Status)
	}
	now := time.Now()
	request.Status = models.JoinRequestStatusCancelled
	request.RespondedAt = &now
	return s.store.UpdateJoinRequest(ctx, request)
}

func (s *Service) requireModerator(ctx context.Context, group *models.Group, actor identity.Actor) error {
	ok, err := s.admitter.IsModerator(ctx, group, actor)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.PermissionDenied("requires group admin or owner")
	}
	return nil
}
