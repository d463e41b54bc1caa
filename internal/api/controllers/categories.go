package controllers

import (
	"net/http"

	"guildhub/internal/api/middleware"
	"guildhub/internal/groups"

	"github.com/labstack/echo/v4"
)

// CategoryController exposes category administration. Writes are restricted
// to system admins inside the service layer.
type CategoryController struct {
	groups *groups.Service
}

func NewCategoryController(groupsSvc *groups.Service) *CategoryController {
	return &CategoryController{groups: groupsSvc}
}

// Create handles category creation
// @Summary Create category
// @Description Create a new group category (system admin only)
// @Accept json
// @Produce json
// @Param category body groups.CategoryInput true "Category details"
// @Success 201 {object} models.Category
// @Router /api/v1/categories [post]
func (c *CategoryController) Create(ctx echo.Context) error {
	var input groups.CategoryInput
	if err := ctx.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&input); err != nil {
		return err
	}

	category, err := c.groups.CreateCategory(ctx.Request().Context(), middleware.GetActor(ctx), input)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, category)
}

// List handles category listing
// @Summary List categories
// @Description List categories visible to the caller, cached at the edge
// @Produce json
// @Success 200 {array} models.Category
// @Router /api/v1/categories [get]
func (c *CategoryController) List(ctx echo.Context) error {
	categories, err := c.groups.ListCategories(ctx.Request().Context(), middleware.GetActor(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, categories)
}

func (c *CategoryController) Get(ctx echo.Context) error {
	category, err := c.groups.GetCategory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, category)
}

// Update handles category updates
// @Summary Update category
// @Description Update an existing category (system admin only)
// @Router /api/v1/categories/{id} [put]
func (c *CategoryController) Update(ctx echo.Context) error {
	var input groups.CategoryInput
	if err := ctx.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body "+err.Error())
	}
	if err := ctx.Validate(&input); err != nil {
		return err
	}

	category, err := c.groups.UpdateCategory(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id"), input)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, category)
}

// Delete handles category deletion
// @Summary Delete category
// @Description Delete a category and every group under it (system admin only)
// @Router /api/v1/categories/{id} [delete]
func (c *CategoryController) Delete(ctx echo.Context) error {
	if err := c.groups.DeleteCategory(ctx.Request().Context(), middleware.GetActor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ListGroups lists the groups under a category
// @Summary List groups in category
// @Produce json
// @Success 200 {array} models.Group
// @Router /api/v1/categories/{id}/groups [get]
func (c *CategoryController) ListGroups(ctx echo.Context) error {
	list, err := c.groups.ListGroupsByCategory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, list)
}
