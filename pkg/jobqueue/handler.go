package jobqueue

import (
	"context"
	"encoding/json"
)

type (
	// Handler processes entries of a single kind. The returned result is
	// serialized into the job's status record on completion.
	Handler interface {
		Kind() Kind
		Handle(ctx context.Context, payload json.RawMessage) (any, error)
	}

	// HandlerFunc is the function form of a job handler.
	HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)
)

// NewHandler adapts a function into a Handler for the given kind.
func NewHandler(kind Kind, fn HandlerFunc) Handler {
	return &funcHandler{kind: kind, fn: fn}
}

type funcHandler struct {
	kind Kind
	fn   HandlerFunc
}

func (h *funcHandler) Kind() Kind { return h.kind }

func (h *funcHandler) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	return h.fn(ctx, payload)
}
