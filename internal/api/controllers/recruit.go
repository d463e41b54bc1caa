package controllers

import (
	"net/http"
	"time"

	"guildhub/internal/api/middleware"
	"guildhub/internal/recruit"

	"github.com/labstack/echo/v4"
)

// RecruitController exposes the three recruitment paths: display-name
// invitations, reusable invite codes and approval-mode join requests.
type RecruitController struct {
	recruit *recruit.Service
}

func NewRecruitController(recruitSvc *recruit.Service) *RecruitController {
	return &RecruitController{recruit: recruitSvc}
}

type inviteRequest struct {
	DisplayName string `json:"displayName" validate:"required,min=2"`
}

// Invite sends a group invitation by display name
// @Summary Invite user to group
// @Description Invite a user by display name (owner or admin)
// @Accept json
// @Produce json
// @Param request body inviteRequest true "Invitee display name"
// @Success 201 {object} models.Invitation
// @Router /api/v1/groups/{id}/invitations [post]
func (r *RecruitController) Invite(ctx echo.Context) error {
	var req inviteRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	invitation, err := r.recruit.Invite(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), req.DisplayName)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, invitation)
}

// ListInvitations lists a group's invitations with resolved display names
// @Summary List group invitations
// @Router /api/v1/groups/{id}/invitations [get]
func (r *RecruitController) ListInvitations(ctx echo.Context) error {
	invitations, err := r.recruit.ListInvitations(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, invitations)
}

// Accept admits the invitee into the group
// @Summary Accept invitation
// @Router /api/v1/invitations/{id}/accept [post]
func (r *RecruitController) Accept(ctx echo.Context) error {
	membership, err := r.recruit.AcceptInvitation(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, membership)
}

// Decline turns the invitation down
// @Summary Decline invitation
// @Router /api/v1/invitations/{id}/decline [post]
func (r *RecruitController) Decline(ctx echo.Context) error {
	if err := r.recruit.DeclineInvitation(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// CreateCode issues a reusable invite code
// @Summary Create invite code
// @Description Issue a reusable invite code (owner only)
// @Accept json
// @Produce json
// @Param request body recruit.InviteCodeInput true "Code settings"
// @Success 201 {object} models.InviteCode
// @Router /api/v1/groups/{id}/codes [post]
func (r *RecruitController) CreateCode(ctx echo.Context) error {
	var input recruit.InviteCodeInput
	if err := ctx.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&input); err != nil {
		return err
	}

	code, err := r.recruit.CreateInviteCode(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), input)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, code)
}

// ListCodes lists a group's invite codes
// @Summary List invite codes
// @Router /api/v1/groups/{id}/codes [get]
func (r *RecruitController) ListCodes(ctx echo.Context) error {
	codes, err := r.recruit.ListInviteCodes(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, codes)
}

// RevokeCode deactivates an invite code
// @Summary Revoke invite code
// @Router /api/v1/codes/{id} [delete]
func (r *RecruitController) RevokeCode(ctx echo.Context) error {
	if err := r.recruit.RevokeInviteCode(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

type redeemRequest struct {
	Code string `json:"code" validate:"required"`
}

// Redeem joins a group through an invite code
// @Summary Redeem invite code
// @Description Redeem a code; each user may redeem a given code once
// @Router /api/v1/codes/redeem [post]
func (r *RecruitController) Redeem(ctx echo.Context) error {
	var req redeemRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	membership, err := r.recruit.RedeemInviteCode(ctx.Request().Context(), middleware.GetActor(ctx), req.Code)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, membership)
}

type joinRequestBody struct {
	Reason string `json:"reason" validate:"max=500"`
}

// RequestJoin files a join request on an approval-mode group
// @Summary Request to join group
// @Router /api/v1/groups/{id}/join-requests [post]
func (r *RecruitController) RequestJoin(ctx echo.Context) error {
	var req joinRequestBody
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	request, err := r.recruit.RequestJoin(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), req.Reason)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, request)
}

// ListJoinRequests lists pending join requests for moderators
// @Summary List join requests
// @Router /api/v1/groups/{id}/join-requests [get]
func (r *RecruitController) ListJoinRequests(ctx echo.Context) error {
	requests, err := r.recruit.ListJoinRequests(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, requests)
}

// Approve admits the requester
// @Summary Approve join request
// @Router /api/v1/join-requests/{id}/approve [post]
func (r *RecruitController) Approve(ctx echo.Context) error {
	membership, err := r.recruit.ApproveJoinRequest(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, membership)
}

// Reject declines the requester
// @Summary Reject join request
// @Router /api/v1/join-requests/{id}/reject [post]
func (r *RecruitController) Reject(ctx echo.Context) error {
	if err := r.recruit.RejectJoinRequest(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Cancel withdraws the caller's own pending request
// @Summary Cancel join request
// @Router /api/v1/join-requests/{id}/cancel [post]
func (r *RecruitController) Cancel(ctx echo.Context) error {
	if err := r.recruit.CancelJoinRequest(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ExpireNow sweeps expired invitations on demand, ahead of the hourly task
// @Summary Expire stale invitations
// @Router /api/v1/invitations/expire [post]
func (r *RecruitController) ExpireNow(ctx echo.Context) error {
	count, err := r.recruit.ExpireInvitations(ctx.Request().Context(), time.Now())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{"expired": count})
}
