package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civic-issues/models"
	authUtils "civic-issues/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		actor := CurrentActor(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "roles": actor.Roles})
	})
	r.GET("/", handlers...)
	return r
}

func do(t *testing.T, r http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, actor models.Actor) string {
	t.Helper()
	tok, err := authUtils.GenerateToken(secret, actor, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(secret))

	w := do(t, r, token(t, models.Actor{ID: "u1", Roles: []string{"citizen"}}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u1","roles":["citizen"]}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(t, r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, r, "garbage").Code)
}

func TestAuthMiddleware_NoSecret(t *testing.T) {
	r := newRouter(AuthMiddleware(""))

	assert.Equal(t, http.StatusInternalServerError, do(t, r, "anything").Code)
}

func TestRequirePrivileged(t *testing.T) {
	r := newRouter(AuthMiddleware(secret), RequirePrivileged(models.NewRolePolicy("admin")))

	assert.Equal(t, http.StatusOK, do(t, r, token(t, models.Actor{ID: "a", Roles: []string{"admin"}})).Code)
	assert.Equal(t, http.StatusForbidden, do(t, r, token(t, models.Actor{ID: "b"})).Code)

	anonymous := newRouter(RequirePrivileged(models.NewRolePolicy("admin")))
	assert.Equal(t, http.StatusUnauthorized, do(t, anonymous, "").Code)
}

// fakeRedis implements the three commands the limiter uses.
type fakeRedis struct {
	redis.Cmdable
	counts  map[string]int64
	ttls    map[string]time.Duration
	failing bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.failing {
		return redis.NewIntResult(0, errors.New("connection refused"))
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) TTL(_ context.Context, key string) *redis.DurationCmd {
	return redis.NewDurationResult(f.ttls[key], nil)
}

func TestIssueRateLimiter(t *testing.T) {
	client := newFakeRedis()
	r := newRouter(AuthMiddleware(secret), IssueRateLimiter(client, "issue-limit", 2))
	tok := token(t, models.Actor{ID: "u1"})

	assert.Equal(t, http.StatusOK, do(t, r, tok).Code)
	assert.Equal(t, http.StatusOK, do(t, r, tok).Code)

	w := do(t, r, tok)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded","retry_after":86400}`, w.Body.String())

	assert.Equal(t, int64(3), client.counts["issue-limit:u1"])
	assert.Equal(t, 24*time.Hour, client.ttls["issue-limit:u1"])

	assert.Equal(t, http.StatusOK, do(t, r, token(t, models.Actor{ID: "u2"})).Code)
}

func TestIssueRateLimiter_Failures(t *testing.T) {
	tok := token(t, models.Actor{ID: "u1"})

	failing := newFakeRedis()
	failing.failing = true
	r := newRouter(AuthMiddleware(secret), IssueRateLimiter(failing, "issue-limit", 2))
	assert.Equal(t, http.StatusInternalServerError, do(t, r, tok).Code)

	r = newRouter(AuthMiddleware(secret), IssueRateLimiter(newFakeRedis(), "", 2))
	assert.Equal(t, http.StatusInternalServerError, do(t, r, tok).Code)

	r = newRouter(IssueRateLimiter(newFakeRedis(), "issue-limit", 2))
	assert.Equal(t, http.StatusUnauthorized, do(t, r, "").Code)
}
