package controllers

import (
	"net/http"

	"guildhub/internal/api/middleware"
	"guildhub/internal/perms"

	"github.com/labstack/echo/v4"
)

// PermissionController exposes resolved permissions and group grants.
type PermissionController struct {
	perms *perms.Service
}

func NewPermissionController(permsSvc *perms.Service) *PermissionController {
	return &PermissionController{perms: permsSvc}
}

// Mine returns the caller's resolved permission set
// @Summary Get own permissions
// @Description Resolve the caller's effective permissions across all groups
// @Produce json
// @Success 200 {array} perms.ResolvedPermission
// @Router /api/v1/me/permissions [get]
func (p *PermissionController) Mine(ctx echo.Context) error {
	resolved, err := p.perms.GetUserPermissions(ctx.Request().Context(), middleware.GetUserID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resolved)
}

// ForUser returns another user's resolved permission set
// @Summary Get user permissions
// @Router /api/v1/users/{id}/permissions [get]
func (p *PermissionController) ForUser(ctx echo.Context) error {
	resolved, err := p.perms.GetUserPermissions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resolved)
}

// Catalog lists the global permission definitions
// @Summary List global permissions
// @Router /api/v1/permissions [get]
func (p *PermissionController) Catalog(ctx echo.Context) error {
	catalog, err := p.perms.ListGlobalPermissions(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, catalog)
}

// ListGrants lists the permission grants attached to a group
// @Summary List group permission grants
// @Router /api/v1/groups/{id}/permissions [get]
func (p *PermissionController) ListGrants(ctx echo.Context) error {
	grants, err := p.perms.ListGroupPermissions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grants)
}

// AttachGrant attaches a global or custom permission to a group
// @Summary Attach group permission
// @Description Attach a catalog permission or define a custom one (owner or admin)
// @Accept json
// @Produce json
// @Param grant body perms.GrantInput true "Grant details"
// @Success 201 {object} models.GroupPermission
// @Router /api/v1/groups/{id}/permissions [post]
func (p *PermissionController) AttachGrant(ctx echo.Context) error {
	var input perms.GrantInput
	if err := ctx.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&input); err != nil {
		return err
	}

	grant, err := p.perms.AttachGroupPermission(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), input)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, grant)
}

// RemoveGrant detaches a permission grant from a group
// @Summary Remove group permission grant
// @Router /api/v1/groups/{id}/permissions/{grantId} [delete]
func (p *PermissionController) RemoveGrant(ctx echo.Context) error {
	if err := p.perms.RemoveGroupPermission(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), ctx.Param("grantId")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// MemberMatrix returns the per-member resolved permissions of a group
// @Summary Get group member permissions
// @Description Resolve every member's effective permissions for one group
// @Router /api/v1/groups/{id}/member-permissions [get]
func (p *PermissionController) MemberMatrix(ctx echo.Context) error {
	matrix, err := p.perms.GetGroupMemberPermissions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, matrix)
}
