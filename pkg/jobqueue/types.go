package jobqueue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the logical type of a queued job. The set of kinds is
// closed: handlers can only be registered for the constants below.
type Kind string

const (
	KindCopyGeneration  Kind = "copy_generation"
	KindImageProcessing Kind = "image_processing"
	KindNotification    Kind = "notification"
	KindAnalytics       Kind = "analytics"
)

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case KindCopyGeneration, KindImageProcessing, KindNotification, KindAnalytics:
		return true
	}
	return false
}

// Status represents the lifecycle state of a queued job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Entry is the wire format of a queued job. Consumers must tolerate
// unknown extra fields, so decoding ignores anything not listed here.
type Entry struct {
	ID        uuid.UUID       `json:"id"`
	Kind      Kind            `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// JobStatus is the observable terminal record of an entry, stored
// separately from the queue under job:{id}.
type JobStatus struct {
	Status    Status `json:"status"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	UpdatedAt string `json:"updated_at"`
}
