package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enqueuer validates and pushes jobs onto a queue.
type Enqueuer struct {
	queue Queue
}

// NewEnqueuer creates an Enqueuer over the given queue.
func NewEnqueuer(queue Queue) (*Enqueuer, error) {
	if queue == nil {
		return nil, ErrQueueNil
	}
	return &Enqueuer{queue: queue}, nil
}

// Enqueue marshals payload and pushes a new entry of the given kind.
// Kinds outside the closed set are rejected before anything is stored.
func (e *Enqueuer) Enqueue(ctx context.Context, kind Kind, payload any) (*Entry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload of type %T: %w", payload, err)
		}
		raw = data
	}

	entry := &Entry{
		ID:        uuid.New(),
		Kind:      kind,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}

	if err := e.queue.Push(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
