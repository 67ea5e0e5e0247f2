package auth

import (
	"authsvc/internal/http/middleware"
	"authsvc/internal/lib/jwt"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the auth endpoints under the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, issuer *jwt.Issuer) {
	grp := rg.Group("/auth")
	{
		grp.POST("/login", h.Login)
		grp.POST("/register", h.Register)
		grp.POST("/refresh", h.Refresh)
		grp.POST("/verify-email", h.VerifyEmail)

		protected := grp.Group("/")
		protected.Use(middleware.Auth(issuer))
		{
			protected.POST("/logout", h.Logout)
			protected.POST("/request-verification", h.RequestVerification)
			protected.GET("/me", h.Me)
		}
	}
}
