package routes

import (
	"civic-issues/controllers"
	"civic-issues/middlewares"

	"github.com/gin-gonic/gin"
)

// AuthRoutes exposes the identity carried by the caller's token.
func AuthRoutes(r *gin.Engine, ac *controllers.AuthController, jwtSecret string) {
	auth := r.Group("/api/auth")
	{
		auth.GET("/me", middlewares.AuthMiddleware(jwtSecret), ac.Me)
	}
}
