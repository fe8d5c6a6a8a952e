package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/presence-api/internal/middleware"
	"github.com/noah-isme/presence-api/internal/models"
)

// PresenceRouteConfig controls route protection.
type PresenceRouteConfig struct {
	// Authenticate validates the bearer token and stores claims, usually middleware.JWT.
	Authenticate gin.HandlerFunc
	// PatchRequiresAdmin puts PATCH /:id behind authentication and the ADMIN role.
	PatchRequiresAdmin bool
	// AuditLogger receives an entry for every successful status correction or backfill.
	AuditLogger *zap.Logger
}

// RegisterPresenceRoutes mounts the presence endpoints on group.
func RegisterPresenceRoutes(group *gin.RouterGroup, h *PresenceHandler, cfg PresenceRouteConfig) {
	auth := cfg.Authenticate
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleVigil)

	presences := group.Group("/presences")
	presences.POST("/scan", auth, middleware.RequireRoles(models.RoleVigil), h.Scan)
	presences.GET("", auth, staff, h.List)
	presences.GET("/export", auth, adminOnly, h.Export)
	presences.POST("/backfill", auth, adminOnly, middleware.Audit(cfg.AuditLogger, "presence.backfill"), h.Backfill)
	presences.GET("/estMarquer/:userId", auth, staff, h.Today)
	presences.GET("/:userId", auth, h.StudentHistory)

	audit := middleware.Audit(cfg.AuditLogger, "presence.update_status")
	if cfg.PatchRequiresAdmin {
		presences.PATCH("/:id", auth, adminOnly, audit, h.UpdateStatus)
		return
	}
	presences.PATCH("/:id", audit, h.UpdateStatus)
}
