package middlewares

import (
	"net/http"
	"strings"

	"civic-issues/models"
	authUtils "civic-issues/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ActorKey is the gin context key holding the authenticated models.Actor.
const ActorKey = "actor"

func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
			return
		}

		// Extracting token from "Bearer <token>" format
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		if jwtSecret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "JWT secret not configured"})
			return
		}

		actor, err := authUtils.ParseToken(jwtSecret, tokenString)
		if err != nil {
			log.WithError(err).Debug("auth: token validation failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}

// CurrentActor returns the actor set by AuthMiddleware, or the anonymous actor.
func CurrentActor(c *gin.Context) models.Actor {
	if v, ok := c.Get(ActorKey); ok {
		if actor, ok := v.(models.Actor); ok {
			return actor
		}
	}
	return models.Actor{}
}

// RequirePrivileged lets through only actors the policy considers privileged.
func RequirePrivileged(policy models.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := CurrentActor(c)
		if !actor.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		if policy == nil || !policy.IsPrivileged(actor) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}
