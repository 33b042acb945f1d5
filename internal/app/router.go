// internal/app/router.go
package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authHandler "ordering-service/internal/handlers/auth"
	catalogHandler "ordering-service/internal/handlers/catalog"
	invitationHandler "ordering-service/internal/handlers/invitation"
	wsHandler "ordering-service/internal/handlers/websocket"
	"ordering-service/internal/middleware"
)

type Handlers struct {
	AuthHandler       *authHandler.AuthHandler
	InvitationHandler *invitationHandler.InvitationHandler
	CatalogHandler    *catalogHandler.CatalogHandler
	WSHandler         *wsHandler.WebSocketHandler
	SessionMiddleware *middleware.SessionMiddleware
	// Metrics is nil when metrics are disabled.
	Metrics http.Handler
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": "1.0.0"})
	})

	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)
	r.GET("/ws/stats", h.WSHandler.GetStats)

	// Email links land here.
	r.GET("/auth/callback", h.AuthHandler.Callback)

	// ==================== Auth Routes ====================
	auth := api.Group("/auth")
	{
		auth.GET("/session", h.AuthHandler.GetSession)
		auth.GET("/session/last-known", h.AuthHandler.GetLastKnownSession)
		auth.POST("/logout", h.AuthHandler.Logout)

		auth.POST("/login", h.AuthHandler.LoginWithPassword)
		auth.POST("/code", h.AuthHandler.RequestCode)
		auth.GET("/code/status", h.AuthHandler.ResendStatus) // ?contact=xxx
		auth.POST("/code/verify", h.AuthHandler.VerifyCode)
		auth.POST("/code/input", h.AuthHandler.SubmitCodeInput)
		auth.POST("/link", h.AuthHandler.ExchangeLink)
		auth.POST("/password/reset", h.AuthHandler.CompletePasswordReset)

		registration := auth.Group("/register")
		{
			registration.POST("", h.AuthHandler.StartCustomerRegistration)
			registration.GET("/pending", h.AuthHandler.GetPendingRegistration)
			registration.POST("/complete", h.AuthHandler.CompleteCustomerRegistration)
			registration.DELETE("/pending", h.AuthHandler.AbandonRegistration)
		}
	}

	// ==================== Admin Routes ====================
	admin := api.Group("/admin")
	{
		admin.GET("/setup-status", h.InvitationHandler.SetupStatus)
		admin.POST("/register", h.InvitationHandler.Register)
		admin.GET("/invited", h.InvitationHandler.IsInvited) // ?email=xxx
		admin.POST("/invitations/validate", h.InvitationHandler.Validate)

		invitations := admin.Group("/invitations")
		invitations.Use(h.SessionMiddleware.RequireSession(), h.SessionMiddleware.RequireAdmin())
		{
			invitations.POST("", h.InvitationHandler.Create)
			invitations.GET("", h.InvitationHandler.List)
			invitations.DELETE("/:id", h.InvitationHandler.Revoke)
		}
	}

	// ==================== Catalog ====================
	catalog := api.Group("")
	catalog.Use(h.SessionMiddleware.RequireSession())
	{
		catalog.GET("/items/:id", h.CatalogHandler.GetItem)
		catalog.GET("/customers/:id", h.CatalogHandler.GetCustomer)
		catalog.PUT("/customers/:id", h.CatalogHandler.UpdateCustomer)
		catalog.POST("/orders", h.CatalogHandler.CreateOrder)

		adminCatalog := catalog.Group("")
		adminCatalog.Use(h.SessionMiddleware.RequireAdmin())
		{
			adminCatalog.PUT("/items/:id", h.CatalogHandler.UpdateItem)
			adminCatalog.GET("/orders/recent", h.CatalogHandler.RecentOrders)
		}
	}
}
