package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/achievement-registry-api/internal/middleware"
)

// RouteDeps groups the handlers and middleware mounted by RegisterRoutes.
type RouteDeps struct {
	Achievements *AchievementHandler
	Profiles     *ProfileHandler
	// Assistant is nil when the assistant endpoint is disabled.
	Assistant *AssistantHandler

	// Authenticate requires a bearer token; Identify accepts anonymous callers.
	Authenticate gin.HandlerFunc
	Identify     gin.HandlerFunc
	LoadProfile  gin.HandlerFunc
	// ExportAudit, when set, runs before the portfolio export handler.
	ExportAudit gin.HandlerFunc
}

// RegisterRoutes mounts the API under api.
func RegisterRoutes(api *gin.RouterGroup, deps RouteDeps) {
	public := api.Group("", deps.Identify, deps.LoadProfile)
	public.GET("/achievements", deps.Achievements.ListByStudent)
	public.GET("/achievements/verified", deps.Achievements.ListVerified)
	public.GET("/achievements/search", deps.Achievements.Search)
	public.GET("/achievements/summary", deps.Achievements.Summary)
	public.GET("/achievements/:id", deps.Achievements.Get)
	public.GET("/profile/role", deps.Profiles.Role)
	if deps.Assistant != nil {
		public.POST("/assistant/query", deps.Assistant.Query)
	}

	authed := api.Group("", deps.Authenticate, deps.LoadProfile)
	authed.GET("/profile", deps.Profiles.GetCaller)
	authed.PUT("/profile", deps.Profiles.SaveCaller)
	authed.GET("/profiles/:principal", deps.Profiles.Get)

	member := authed.Group("", middleware.RequireProfile())
	member.POST("/achievements", deps.Achievements.Create)
	member.PATCH("/achievements/:id", deps.Achievements.Update)
	exportChain := []gin.HandlerFunc{deps.Achievements.Export}
	if deps.ExportAudit != nil {
		exportChain = append([]gin.HandlerFunc{deps.ExportAudit}, exportChain...)
	}
	member.GET("/achievements/export", exportChain...)

	admin := member.Group("", middleware.RequireAdmin())
	admin.GET("/achievements/pending", deps.Achievements.ListPending)
	admin.POST("/achievements/:id/review", deps.Achievements.Review)
	admin.GET("/profiles", deps.Profiles.List)
}
