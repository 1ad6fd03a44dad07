package postscheduler

import "strings"

// Error classes reported by DLQ statistics. Classification is advisory
// and only feeds dashboards; it never changes retry behavior.
const (
	ErrorClassRateLimit = "rate_limit"
	ErrorClassAuth      = "auth_error"
	ErrorClassNetwork   = "network_error"
	ErrorClassContent   = "content_error"
	ErrorClassQuota     = "quota_exceeded"
	ErrorClassUnknown   = "unknown"
)

// errorClassPatterns maps substring markers to a class. Order matters:
// first matching class wins.
var errorClassPatterns = []struct {
	class   string
	markers []string
}{
	{ErrorClassRateLimit, []string{"rate limit", "rate_limit", "429", "too many requests"}},
	{ErrorClassQuota, []string{"quota", "limit exceeded"}},
	{ErrorClassAuth, []string{"unauthorized", "401", "forbidden", "403", "token", "auth"}},
	{ErrorClassNetwork, []string{"network", "connection", "timeout", "timed out", "dns", "unreachable"}},
	{ErrorClassContent, []string{"content", "caption", "media", "invalid", "unsupported"}},
}

// ClassifyError buckets a publish error message into a coarse class for
// DLQ reporting.
func ClassifyError(message string) string {
	lower := strings.ToLower(message)
	for _, p := range errorClassPatterns {
		for _, marker := range p.markers {
			if strings.Contains(lower, marker) {
				return p.class
			}
		}
	}
	return ErrorClassUnknown
}
