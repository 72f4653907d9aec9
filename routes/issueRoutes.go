package routes

import (
	"net/http"

	"civic-issues/controllers"
	"civic-issues/middlewares"
	"civic-issues/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type IssueRouteConfig struct {
	JWTSecret    string
	Policy       models.Policy
	Redis        redis.Cmdable
	LimitPrefix  string
	DailyLimit   int
	RateLimiting bool
}

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine, ic *controllers.IssueController, config IssueRouteConfig) {
	issue := r.Group("/api/issues", middlewares.AuthMiddleware(config.JWTSecret))
	{
		submit := []gin.HandlerFunc{ic.Submit}
		if config.RateLimiting {
			submit = append([]gin.HandlerFunc{
				middlewares.IssueRateLimiter(config.Redis, config.LimitPrefix, config.DailyLimit),
			}, submit...)
		}
		issue.POST("", submit...)

		issue.GET("", ic.List)
		issue.GET("/mine", ic.Mine)
		issue.GET("/stream", ic.Stream)
		issue.GET("/categories", ic.Categories)
		issue.GET("/:id", ic.Get)
		issue.POST("/:id/upvote", ic.Upvote)

		privileged := middlewares.RequirePrivileged(config.Policy)
		issue.PATCH("/:id/status", privileged, ic.SetStatus)
		issue.GET("/:id/summary", privileged, ic.Summary)
	}
}

func HealthRoutes(r *gin.Engine) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
}
