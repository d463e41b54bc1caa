package registry

import (
	"github.com/labstack/echo/v4"

	"guildhub/internal/api/controllers"
	"guildhub/internal/api/middleware"
	"guildhub/internal/derived"
	"guildhub/internal/discord"
	"guildhub/internal/groups"
	"guildhub/internal/perms"
	"guildhub/internal/recruit"
)

// Services bundles the engine services the API layer exposes.
type Services struct {
	Groups  *groups.Service
	Perms   *perms.Service
	Recruit *recruit.Service
	Derived *derived.Service
	Bridge  *discord.Bridge
}

// RegisterEngineRoutes wires every engine controller under the
// authenticated API group.
// @Summary Register engine routes
// @Description Register category, group, recruitment, permission, derived
// @Description rule and Discord bridge routes
// @Accept json
// @Produce json
func RegisterEngineRoutes(g *echo.Group, svcs Services) {
	categoryController := controllers.NewCategoryController(svcs.Groups)
	groupController := controllers.NewGroupController(svcs.Groups)
	recruitController := controllers.NewRecruitController(svcs.Recruit)
	permissionController := controllers.NewPermissionController(svcs.Perms)
	derivedController := controllers.NewDerivedController(svcs.Derived)
	discordController := controllers.NewDiscordController(svcs.Bridge)

	// Categories. Reads are open to any authenticated user; the service
	// filters non-public categories. Writes stay system-admin only.
	categoryGroup := g.Group("/categories")
	categoryGroup.GET("", categoryController.List)
	categoryGroup.GET("/:id", categoryController.Get)
	categoryGroup.GET("/:id/groups", categoryController.ListGroups)

	categoryWriteGroup := categoryGroup.Group("")
	categoryWriteGroup.Use(middleware.RequireSystemAdmin())
	categoryWriteGroup.POST("", categoryController.Create)
	categoryWriteGroup.PUT("/:id", categoryController.Update)
	categoryWriteGroup.DELETE("/:id", categoryController.Delete)

	// Groups and membership
	groupGroup := g.Group("/groups")
	groupGroup.POST("", groupController.Create)
	groupGroup.POST("/derived", groupController.CreateDerived)
	groupGroup.GET("/:id", groupController.Get)
	groupGroup.PUT("/:id", groupController.Update)
	groupGroup.DELETE("/:id", groupController.Delete)
	groupGroup.POST("/:id/transfer", groupController.TransferOwnership)
	groupGroup.POST("/:id/join", groupController.Join)
	groupGroup.POST("/:id/leave", groupController.Leave)
	groupGroup.GET("/:id/members", groupController.ListMembers)
	groupGroup.DELETE("/:id/members/:userId", groupController.RemoveMember)
	groupGroup.GET("/:id/admins", groupController.ListAdmins)
	groupGroup.POST("/:id/admins/:userId", groupController.AddAdmin)
	groupGroup.DELETE("/:id/admins/:userId", groupController.RemoveAdmin)

	// Recruitment
	groupGroup.POST("/:id/invitations", recruitController.Invite)
	groupGroup.GET("/:id/invitations", recruitController.ListInvitations)
	groupGroup.POST("/:id/codes", recruitController.CreateCode)
	groupGroup.GET("/:id/codes", recruitController.ListCodes)
	groupGroup.POST("/:id/join-requests", recruitController.RequestJoin)
	groupGroup.GET("/:id/join-requests", recruitController.ListJoinRequests)

	invitationGroup := g.Group("/invitations")
	invitationGroup.POST("/:id/accept", recruitController.Accept)
	invitationGroup.POST("/:id/decline", recruitController.Decline)

	codeGroup := g.Group("/codes")
	codeGroup.POST("/redeem", recruitController.Redeem)
	codeGroup.DELETE("/:id", recruitController.RevokeCode)

	joinRequestGroup := g.Group("/join-requests")
	joinRequestGroup.POST("/:id/approve", recruitController.Approve)
	joinRequestGroup.POST("/:id/reject", recruitController.Reject)
	joinRequestGroup.POST("/:id/cancel", recruitController.Cancel)

	// Permissions
	g.GET("/me/permissions", permissionController.Mine)
	g.GET("/users/:id/permissions", permissionController.ForUser)
	g.GET("/permissions", permissionController.Catalog)
	groupGroup.GET("/:id/permissions", permissionController.ListGrants)
	groupGroup.POST("/:id/permissions", permissionController.AttachGrant)
	groupGroup.DELETE("/:id/permissions/:grantId", permissionController.RemoveGrant)
	groupGroup.GET("/:id/member-permissions", permissionController.MemberMatrix)

	// Derived group rules
	groupGroup.POST("/:id/rules", derivedController.AddRule)
	groupGroup.GET("/:id/rules", derivedController.ListRules)
	groupGroup.DELETE("/:id/rules/:ruleId", derivedController.RemoveRule)
	groupGroup.POST("/:id/sync", derivedController.Sync)

	// Discord bridge
	groupGroup.PUT("/:id/discord", discordController.Attach)
	groupGroup.GET("/:id/discord", discordController.Get)
	groupGroup.DELETE("/:id/discord", discordController.Detach)

	bridgeGroup := g.Group("/discord")
	bridgeGroup.Use(middleware.RequireSystemAdmin())
	bridgeGroup.GET("/targets", discordController.Targets)
	bridgeGroup.POST("/outcomes", discordController.RecordOutcomes)

	// Operator sweeps
	sweepGroup := g.Group("/invitations")
	sweepGroup.Use(middleware.RequireSystemAdmin())
	sweepGroup.POST("/expire", recruitController.ExpireNow)
}
