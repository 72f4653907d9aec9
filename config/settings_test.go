package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("S3_BUCKET", "media")
	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("S3_PUBLIC_URL", "https://media.example.com")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", s.Port)
	assert.Equal(t, []string{"admin"}, s.PrivilegedRoles)
	assert.Equal(t, 10*time.Second, s.ClassifyTimeout)
	assert.Equal(t, int64(50<<20), s.MaxMediaBytes)
	assert.True(t, s.MediaRequired)
	assert.False(t, s.UpvoteOncePerActor)
	assert.Equal(t, 4, s.MutationWorkers)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PRIVILEGED_ROLES", "admin, operator ,")
	t.Setenv("CLASSIFY_TIMEOUT", "3s")
	t.Setenv("MEDIA_REQUIRED", "false")
	t.Setenv("UPVOTE_ONCE_PER_ACTOR", "true")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"admin", "operator"}, s.PrivilegedRoles)
	assert.Equal(t, 3*time.Second, s.ClassifyTimeout)
	assert.False(t, s.MediaRequired)
	assert.True(t, s.UpvoteOncePerActor)
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadNumber(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MUTATION_WORKERS", "many")

	_, err := Load()
	assert.ErrorContains(t, err, "MUTATION_WORKERS")
}
