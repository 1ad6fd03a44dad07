package postscheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/postwave/postwave/pkg/postscheduler"
)

func TestPlatformValid(t *testing.T) {
	t.Parallel()

	for _, platform := range postscheduler.Platforms() {
		assert.True(t, platform.Valid(), "platform %q", platform)
	}
	assert.False(t, postscheduler.Platform("myspace").Valid())
	assert.False(t, postscheduler.Platform("").Valid())
	assert.False(t, postscheduler.Platform("Instagram").Valid(), "platforms are case sensitive")
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to postscheduler.Status }{
		{postscheduler.StatusScheduled, postscheduler.StatusProcessing},
		{postscheduler.StatusScheduled, postscheduler.StatusCancelled},
		{postscheduler.StatusProcessing, postscheduler.StatusPublished},
		{postscheduler.StatusProcessing, postscheduler.StatusFailed},
		{postscheduler.StatusFailed, postscheduler.StatusProcessing},
	}
	for _, tc := range allowed {
		assert.True(t, postscheduler.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	statuses := []postscheduler.Status{
		postscheduler.StatusScheduled,
		postscheduler.StatusProcessing,
		postscheduler.StatusPublished,
		postscheduler.StatusFailed,
		postscheduler.StatusCancelled,
	}

	// published and cancelled are terminal.
	for _, to := range statuses {
		assert.False(t, postscheduler.CanTransition(postscheduler.StatusPublished, to))
		assert.False(t, postscheduler.CanTransition(postscheduler.StatusCancelled, to))
	}

	// No self loops.
	for _, status := range statuses {
		assert.False(t, postscheduler.CanTransition(status, status), "%s -> %s", status, status)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	base := 30 * time.Second
	max := 300 * time.Second

	assert.Equal(t, 30*time.Second, postscheduler.Backoff(1, base, max))
	assert.Equal(t, 60*time.Second, postscheduler.Backoff(2, base, max))
	assert.Equal(t, 120*time.Second, postscheduler.Backoff(3, base, max))
	assert.Equal(t, 240*time.Second, postscheduler.Backoff(4, base, max))
	assert.Equal(t, 300*time.Second, postscheduler.Backoff(5, base, max), "capped")
	assert.Equal(t, 300*time.Second, postscheduler.Backoff(50, base, max), "stays capped")
	assert.Equal(t, base, postscheduler.Backoff(0, base, max), "attempts clamp to 1")
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Rate limit exceeded, retry later":      postscheduler.ErrorClassRateLimit,
		"HTTP 429 Too Many Requests":            postscheduler.ErrorClassRateLimit,
		"access token expired":                  postscheduler.ErrorClassAuth,
		"401 Unauthorized":                      postscheduler.ErrorClassAuth,
		"connection reset by peer":              postscheduler.ErrorClassNetwork,
		"request timed out":                     postscheduler.ErrorClassNetwork,
		"unsupported media format":              postscheduler.ErrorClassContent,
		"caption exceeds maximum length":        postscheduler.ErrorClassContent,
		"daily quota reached":                   postscheduler.ErrorClassQuota,
		"something completely unexpected broke": postscheduler.ErrorClassUnknown,
		"":                                      postscheduler.ErrorClassUnknown,
	}
	for message, want := range cases {
		assert.Equal(t, want, postscheduler.ClassifyError(message), "message %q", message)
	}
}
