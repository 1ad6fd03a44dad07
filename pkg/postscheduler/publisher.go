package postscheduler

import (
	"context"
	"fmt"
	"time"
)

// PublishResult is the platform's acknowledgement of a publication.
type PublishResult struct {
	URL         string    `json:"url,omitempty"`
	PlatformID  string    `json:"platform_id,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher performs the actual platform publish call. Implementations
// are external collaborators (Instagram/TikTok/YouTube/WhatsApp clients);
// this package only knows the narrow contract. Any returned error counts
// against the post's retry budget.
type Publisher interface {
	Publish(ctx context.Context, post *Post) (*PublishResult, error)
}

// PublisherFunc adapts a function into a Publisher.
type PublisherFunc func(ctx context.Context, post *Post) (*PublishResult, error)

func (f PublisherFunc) Publish(ctx context.Context, post *Post) (*PublishResult, error) {
	return f(ctx, post)
}

// PublisherMux routes posts to a per-platform Publisher.
type PublisherMux struct {
	publishers map[Platform]Publisher
}

// NewPublisherMux creates an empty mux.
func NewPublisherMux() *PublisherMux {
	return &PublisherMux{publishers: make(map[Platform]Publisher)}
}

// Register wires a publisher for a platform. Unknown platforms and
// duplicates are construction-time errors.
func (m *PublisherMux) Register(platform Platform, publisher Publisher) error {
	if !platform.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPlatform, platform)
	}
	if publisher == nil {
		return ErrPublisherNil
	}
	if _, exists := m.publishers[platform]; exists {
		return fmt.Errorf("publisher already registered for platform %q", platform)
	}
	m.publishers[platform] = publisher
	return nil
}

func (m *PublisherMux) Publish(ctx context.Context, post *Post) (*PublishResult, error) {
	publisher, ok := m.publishers[post.Platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnregisteredPlatform, post.Platform)
	}
	return publisher.Publish(ctx, post)
}
