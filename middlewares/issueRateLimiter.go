package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const rateLimitWindow = 24 * time.Hour

// IssueRateLimiter caps submissions per actor per day. Counters live in
// Redis under "<prefix>:<actorID>" and expire a day after the first hit.
func IssueRateLimiter(client redis.Cmdable, prefix string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := CurrentActor(c)
		if !actor.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		if client == nil || prefix == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Redis queue not configured"})
			return
		}

		ctx := c.Request.Context()

		// Create individual key for each user
		userKey := prefix + ":" + actor.ID

		count, err := client.Incr(ctx, userKey).Result()
		if err != nil {
			log.WithError(err).WithField("key", userKey).Error("rate limiter: incr failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "redis error incrementing count"})
			return
		}

		// Set TTL only for the first increment
		if count == 1 {
			if err := client.Expire(ctx, userKey, rateLimitWindow).Err(); err != nil {
				log.WithError(err).WithField("key", userKey).Error("rate limiter: expire failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "redis error setting TTL"})
				return
			}
		}

		if count > int64(limit) {
			retryAfter, _ := client.TTL(ctx, userKey).Result()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}

		c.Next()
	}
}
