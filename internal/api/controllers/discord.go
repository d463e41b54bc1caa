package controllers

import (
	"net/http"

	"guildhub/internal/api/middleware"
	"guildhub/internal/discord"
	"guildhub/internal/models"

	"github.com/labstack/echo/v4"
)

// DiscordController manages group-to-server attachments and the bridge's
// audit feedback.
type DiscordController struct {
	bridge *discord.Bridge
}

func NewDiscordController(bridge *discord.Bridge) *DiscordController {
	return &DiscordController{bridge: bridge}
}

// Attach links a group to a Discord server
// @Summary Attach Discord server
// @Description Link a group to a Discord server for auto-recruit (owner only)
// @Accept json
// @Produce json
// @Param attachment body discord.AttachInput true "Server attachment"
// @Success 200 {object} models.GroupDiscordAttachment
// @Router /api/v1/groups/{id}/discord [put]
func (d *DiscordController) Attach(ctx echo.Context) error {
	var input discord.AttachInput
	if err := ctx.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&input); err != nil {
		return err
	}

	attachment, err := d.bridge.AttachServer(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), input)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, attachment)
}

// Get returns a group's server attachment
// @Summary Get Discord attachment
// @Router /api/v1/groups/{id}/discord [get]
func (d *DiscordController) Get(ctx echo.Context) error {
	attachment, err := d.bridge.GetAttachment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, attachment)
}

// Detach unlinks a group from its Discord server
// @Summary Detach Discord server
// @Router /api/v1/groups/{id}/discord [delete]
func (d *DiscordController) Detach(ctx echo.Context) error {
	if err := d.bridge.DetachServer(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Targets returns the auto-recruit aggregate the bridge works from
// @Summary List auto-recruit targets
// @Description Aggregate of auto-recruit groups with attachments, durably cached
// @Router /api/v1/discord/targets [get]
func (d *DiscordController) Targets(ctx echo.Context) error {
	targets, err := d.bridge.Targets(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, targets)
}

// RecordOutcomes ingests invite results reported back by the bridge worker
// @Summary Record invite outcomes
// @Accept json
// @Router /api/v1/discord/outcomes [post]
func (d *DiscordController) RecordOutcomes(ctx echo.Context) error {
	var records []models.DiscordInviteAudit
	if err := ctx.Bind(&records); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}

	if err := d.bridge.RecordOutcomes(ctx.Request().Context(), records); err != nil {
		return err
	}

	return ctx.NoContent(http.StatusAccepted)
}
