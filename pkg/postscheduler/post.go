package postscheduler

import (
	"time"

	"github.com/google/uuid"
)

// Platform identifies the publishing target of a post.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformWhatsApp  Platform = "whatsapp"
)

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformTikTok, PlatformYouTube, PlatformWhatsApp:
		return true
	}
	return false
}

// Platforms returns all supported platforms.
func Platforms() []Platform {
	return []Platform{PlatformInstagram, PlatformTikTok, PlatformYouTube, PlatformWhatsApp}
}

// Status is the lifecycle state of a scheduled post.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// transitions is the closed set of legal status changes. Lookup shape
// mirrors a state machine transition table: from → allowed targets.
var transitions = map[Status]map[Status]bool{
	StatusScheduled: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusPublished: true,
		StatusFailed:    true,
	},
	StatusFailed: {
		StatusProcessing: true,
	},
}

// CanTransition reports whether moving from one status to another is
// legal. published and cancelled have no outgoing edges.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Post is a scheduled publication. Fields are mutated only by the
// promotion/worker path or by explicit cancel/retry operations.
type Post struct {
	ID            uuid.UUID `json:"id"`
	UserID        string    `json:"user_id"`
	Platform      Platform  `json:"platform"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Status        Status    `json:"status"`

	ContentType    string         `json:"content_type"`
	Caption        string         `json:"caption"`
	Hashtags       []string       `json:"hashtags,omitempty"`
	AccountName    string         `json:"account_name,omitempty"`
	PlatformConfig map[string]any `json:"platform_config,omitempty"`

	RetryCount  int      `json:"retry_count"`
	RetryErrors []string `json:"retry_errors,omitempty"`

	ErrorMessage string         `json:"error_message,omitempty"`
	Result       map[string]any `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
}

// NewPost is the caller-supplied input for Scheduler.Schedule.
type NewPost struct {
	UserID         string
	Platform       Platform
	ScheduledTime  time.Time
	ContentType    string
	Caption        string
	Hashtags       []string
	AccountName    string
	PlatformConfig map[string]any
}

// DLQEntry is a dead-lettered post with the context needed to inspect
// and re-enqueue it.
type DLQEntry struct {
	Post         *Post     `json:"post"`
	ErrorMessage string    `json:"error_message"`
	ErrorClass   string    `json:"error_class"`
	FailedAt     time.Time `json:"failed_at"`
}

// Stats summarizes a user's posts for dashboards.
type Stats struct {
	Total      int              `json:"total"`
	Scheduled  int              `json:"scheduled"`
	Retrying   int              `json:"retrying"`
	Processing int              `json:"processing"`
	Published  int              `json:"published"`
	Failed     int              `json:"failed"`
	Cancelled  int              `json:"cancelled"`
	ByPlatform map[Platform]int `json:"by_platform"`
}

// DLQStats aggregates the dead letter queue.
type DLQStats struct {
	Total         int              `json:"total"`
	ByPlatform    map[Platform]int `json:"by_platform"`
	ByErrorClass  map[string]int   `json:"by_error_class"`
	OldestFailure *time.Time       `json:"oldest_failure,omitempty"`
}

// BulkResult reports a per-ID bulk DLQ operation.
type BulkResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
