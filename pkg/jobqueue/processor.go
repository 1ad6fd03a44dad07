package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Processor pulls entries one at a time from a queue and dispatches them
// to the handler registered for their kind. Multiple Processor instances
// may run as independent replicas against the same queue; the queue's pop
// primitive guarantees each entry is claimed by exactly one of them.
type Processor struct {
	queue    Queue
	handlers map[Kind]Handler
	workerID uuid.UUID

	popTimeout   time.Duration
	jobTimeout   time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewProcessor creates a worker over the given queue.
func NewProcessor(queue Queue, opts ...ProcessorOption) (*Processor, error) {
	if queue == nil {
		return nil, ErrQueueNil
	}

	options := &processorOptions{
		popTimeout:   5 * time.Second,
		jobTimeout:   5 * time.Minute,
		errorBackoff: 5 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Processor{
		queue:        queue,
		handlers:     make(map[Kind]Handler),
		workerID:     uuid.New(),
		popTimeout:   options.popTimeout,
		jobTimeout:   options.jobTimeout,
		errorBackoff: options.errorBackoff,
		logger:       options.logger,
	}, nil
}

// Register adds a handler to the dispatch registry. Registration fails
// for nil handlers, kinds outside the closed set, and duplicates, so a
// miswired processor is caught at startup rather than at dispatch time.
func (p *Processor) Register(handlers ...Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range handlers {
		if h == nil {
			return ErrHandlerNil
		}
		kind := h.Kind()
		if !kind.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
		}
		if _, exists := p.handlers[kind]; exists {
			return fmt.Errorf("%w: %q", ErrHandlerRegistered, kind)
		}
		p.handlers[kind] = h
	}
	return nil
}

// Start begins consuming in the background.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("processor already started")
	}
	if len(p.handlers) == 0 {
		return ErrNoHandlers
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("job processor started",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("handlers", len(p.handlers)))

	return nil
}

// Stop cancels the loop and waits for the in-flight entry to finish.
func (p *Processor) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return fmt.Errorf("processor not started")
	}
	cancel()
	p.wg.Wait()

	p.logger.Info("job processor stopped",
		slog.String("worker_id", p.workerID.String()))
	return nil
}

// Run returns a function suitable for errgroup.
func (p *Processor) Run(ctx context.Context) func() error {
	return func() error {
		if err := p.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return p.Stop()
	}
}

// run is the main consume loop. Infrastructure failures back off and
// retry; a bad entry never terminates the loop.
func (p *Processor) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		entry, err := p.queue.Pop(p.ctx, p.popTimeout)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			// A malformed entry has already been consumed from the
			// queue; it is lost, not retriable, so no backoff.
			if errors.Is(err, ErrMalformedEntry) {
				p.logger.Error("discarded malformed entry",
					slog.String("worker_id", p.workerID.String()),
					slog.String("error", err.Error()))
				continue
			}
			p.logger.Error("failed to pop entry",
				slog.String("worker_id", p.workerID.String()),
				slog.String("error", err.Error()))
			p.sleep(p.errorBackoff)
			continue
		}
		if entry == nil {
			continue
		}

		p.process(entry)
	}
}

func (p *Processor) sleep(d time.Duration) {
	select {
	case <-p.ctx.Done():
	case <-time.After(d):
	}
}

// process executes a single entry and records its terminal status.
func (p *Processor) process(entry *Entry) {
	p.mu.Lock()
	handler, ok := p.handlers[entry.Kind]
	p.mu.Unlock()

	if !ok {
		p.logger.Error("no handler registered for entry kind",
			slog.String("worker_id", p.workerID.String()),
			slog.String("job_id", entry.ID.String()),
			slog.String("kind", string(entry.Kind)))
		p.recordStatus(entry.ID, StatusFailed, "", "no handler registered for kind: "+string(entry.Kind))
		return
	}

	p.recordStatus(entry.ID, StatusProcessing, "", "")

	start := time.Now()
	result, err := p.invoke(handler, entry)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("job failed",
			slog.String("worker_id", p.workerID.String()),
			slog.String("job_id", entry.ID.String()),
			slog.String("kind", string(entry.Kind)),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		p.recordStatus(entry.ID, StatusFailed, "", err.Error())
		return
	}

	resultJSON := ""
	if result != nil {
		if data, merr := json.Marshal(result); merr == nil {
			resultJSON = string(data)
		}
	}
	p.recordStatus(entry.ID, StatusCompleted, resultJSON, "")

	p.logger.Info("job completed",
		slog.String("worker_id", p.workerID.String()),
		slog.String("job_id", entry.ID.String()),
		slog.String("kind", string(entry.Kind)),
		slog.Duration("duration", duration))
}

// invoke runs the handler under its own timeout, detached from the loop
// context so graceful shutdown lets the in-flight job complete. Panics
// are converted into job failures.
func (p *Processor) invoke(handler Handler, entry *Entry) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
			p.logger.Error("handler panicked",
				slog.String("worker_id", p.workerID.String()),
				slog.String("job_id", entry.ID.String()),
				slog.String("kind", string(entry.Kind)),
				slog.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancel()

	return handler.Handle(ctx, entry.Payload)
}

// recordStatus writes the status record, logging rather than failing on
// storage errors: observability must not take down the worker.
func (p *Processor) recordStatus(id uuid.UUID, status Status, result, errMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.queue.SetStatus(ctx, id, status, result, errMsg); err != nil {
		p.logger.Error("failed to record job status",
			slog.String("job_id", id.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
	}
}
