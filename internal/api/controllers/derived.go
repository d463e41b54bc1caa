package controllers

import (
	"net/http"

	"guildhub/internal/api/middleware"
	"guildhub/internal/derived"

	"github.com/labstack/echo/v4"
)

// DerivedController manages membership rules on derived groups.
type DerivedController struct {
	derived *derived.Service
}

func NewDerivedController(derivedSvc *derived.Service) *DerivedController {
	return &DerivedController{derived: derivedSvc}
}

// AddRule attaches a membership rule and reconciles immediately
// @Summary Add derived group rule
// @Accept json
// @Produce json
// @Param rule body derived.RuleInput true "Rule details"
// @Success 201 {object} models.DerivedRule
// @Router /api/v1/groups/{id}/rules [post]
func (d *DerivedController) AddRule(ctx echo.Context) error {
	var input derived.RuleInput
	if err := ctx.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&input); err != nil {
		return err
	}

	rule, err := d.derived.AddRule(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), input)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, rule)
}

// ListRules lists the rules of a derived group
// @Summary List derived group rules
// @Router /api/v1/groups/{id}/rules [get]
func (d *DerivedController) ListRules(ctx echo.Context) error {
	rules, err := d.derived.ListRules(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rules)
}

// RemoveRule detaches a rule and reconciles the group
// @Summary Remove derived group rule
// @Router /api/v1/groups/{id}/rules/{ruleId} [delete]
func (d *DerivedController) RemoveRule(ctx echo.Context) error {
	if err := d.derived.RemoveRule(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), ctx.Param("ruleId")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Sync reconciles a derived group's memberships on demand
// @Summary Sync derived group
// @Description Reconcile computed memberships ahead of the scheduled sweep
// @Router /api/v1/groups/{id}/sync [post]
func (d *DerivedController) Sync(ctx echo.Context) error {
	result, err := d.derived.Sync(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, result)
}
