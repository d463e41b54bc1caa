package controllers

import (
	"net/http"

	"guildhub/internal/api/middleware"
	"guildhub/internal/groups"

	"github.com/labstack/echo/v4"
)

// GroupController exposes group lifecycle, membership and admin designation.
type GroupController struct {
	groups *groups.Service
}

func NewGroupController(groupsSvc *groups.Service) *GroupController {
	return &GroupController{groups: groupsSvc}
}

// Create handles group creation
// @Summary Create group
// @Description Create a standard group; the caller becomes its owner
// @Accept json
// @Produce json
// @Param group body groups.GroupInput true "Group details"
// @Success 201 {object} models.Group
// @Router /api/v1/groups [post]
func (g *GroupController) Create(ctx echo.Context) error {
	var input groups.GroupInput
	if err := ctx.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&input); err != nil {
		return err
	}

	group, err := g.groups.CreateGroup(ctx.Request().Context(), middleware.GetActor(ctx), input)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, group)
}

// CreateDerived handles derived group creation
// @Summary Create derived group
// @Description Create a rule-computed group; it is always invitation_only
// @Router /api/v1/groups/derived [post]
func (g *GroupController) CreateDerived(ctx echo.Context) error {
	var input groups.GroupInput
	if err := ctx.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&input); err != nil {
		return err
	}

	group, err := g.groups.CreateDerivedGroup(ctx.Request().Context(), middleware.GetActor(ctx), input)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, group)
}

func (g *GroupController) Get(ctx echo.Context) error {
	group, err := g.groups.GetGroup(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, group)
}

// Update handles group updates
// @Summary Update group
// @Description Update group settings (owner or admin)
// @Router /api/v1/groups/{id} [put]
func (g *GroupController) Update(ctx echo.Context) error {
	var update groups.GroupUpdate
	if err := ctx.Bind(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&update); err != nil {
		return err
	}

	group, err := g.groups.UpdateGroup(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), update)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, group)
}

// Delete handles group deletion
// @Summary Delete group
// @Description Delete a group with all memberships and grants (owner only)
// @Router /api/v1/groups/{id} [delete]
func (g *GroupController) Delete(ctx echo.Context) error {
	if err := g.groups.DeleteGroup(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

type transferRequest struct {
	NewOwnerID string `json:"newOwnerId" validate:"required,uuid"`
}

// TransferOwnership hands the group to another direct member
// @Summary Transfer group ownership
// @Description Transfer ownership to another member (owner only)
// @Router /api/v1/groups/{id}/transfer [post]
func (g *GroupController) TransferOwnership(ctx echo.Context) error {
	var req transferRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	group, err := g.groups.TransferOwnership(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), req.NewOwnerID)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, group)
}

// Join handles open-mode joins
// @Summary Join group
// @Description Join an open group directly
// @Router /api/v1/groups/{id}/join [post]
func (g *GroupController) Join(ctx echo.Context) error {
	membership, err := g.groups.JoinGroup(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, membership)
}

// Leave handles voluntary departure
// @Summary Leave group
// @Router /api/v1/groups/{id}/leave [post]
func (g *GroupController) Leave(ctx echo.Context) error {
	if err := g.groups.LeaveGroup(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ListMembers lists the memberships of a group
// @Summary List group members
// @Produce json
// @Success 200 {array} models.Membership
// @Router /api/v1/groups/{id}/members [get]
func (g *GroupController) ListMembers(ctx echo.Context) error {
	members, err := g.groups.ListMembers(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, members)
}

// RemoveMember kicks a member out of the group
// @Summary Remove group member
// @Description Remove a member (owner or admin; the owner cannot be removed)
// @Router /api/v1/groups/{id}/members/{userId} [delete]
func (g *GroupController) RemoveMember(ctx echo.Context) error {
	if err := g.groups.RemoveMember(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), ctx.Param("userId")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ListAdmins lists the admin designations of a group
// @Summary List group admins
// @Router /api/v1/groups/{id}/admins [get]
func (g *GroupController) ListAdmins(ctx echo.Context) error {
	admins, err := g.groups.ListAdmins(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, admins)
}

// AddAdmin designates a member as group admin
// @Summary Designate group admin
// @Description Designate an existing member as admin (owner only)
// @Router /api/v1/groups/{id}/admins/{userId} [post]
func (g *GroupController) AddAdmin(ctx echo.Context) error {
	if err := g.groups.AddAdmin(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), ctx.Param("userId")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// RemoveAdmin revokes an admin designation
// @Summary Revoke group admin
// @Router /api/v1/groups/{id}/admins/{userId} [delete]
func (g *GroupController) RemoveAdmin(ctx echo.Context) error {
	if err := g.groups.RemoveAdmin(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), ctx.Param("userId")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
