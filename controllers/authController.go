package controllers

import (
	"net/http"

	"civic-issues/middlewares"
	"civic-issues/models"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	policy models.Policy
}

func NewAuthController(policy models.Policy) *AuthController {
	return &AuthController{policy: policy}
}

// Me describes the caller as the token presents them, including whether
// they may change statuses.
func (ac *AuthController) Me(c *gin.Context) {
	actor := middlewares.CurrentActor(c)
	if !actor.Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                   actor.ID,
		"name":                 actor.Name(),
		"email":                actor.Email,
		"reporterDisplayImage": actor.AvatarURL,
		"roles":                actor.Roles,
		"privileged":           ac.policy != nil && ac.policy.IsPrivileged(actor),
	})
}
