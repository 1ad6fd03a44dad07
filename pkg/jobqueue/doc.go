// Package jobqueue implements the generic background job pipeline: a thin
// enqueue/dequeue API over Redis lists plus a worker loop that dispatches
// entries to registered handlers.
//
// The package is organised around three components:
//
//   - Enqueuer  — validates and pushes Entry values onto a named queue
//   - Queue     — the storage interface (Redis in production, memory in tests)
//   - Processor — claims one entry at a time and runs the handler for its kind
//
// Job kinds form a closed set. Handlers are registered against a Kind at
// construction time; registering an unknown kind is an error, so an invalid
// dispatch target cannot survive past process startup. Entries carry opaque
// JSON payloads and workers tolerate unknown extra fields on the wire.
//
// The terminal outcome of every entry is recorded under a per-job status
// hash (pending, processing, completed, failed) for observability. A
// handler failure is always contained to its single entry: the worker loop
// records the failure and keeps consuming.
//
// Basic usage:
//
//	q := jobqueue.NewRedisQueue(client, "copy:jobs")
//	enq, _ := jobqueue.NewEnqueuer(q)
//	_ = enq.Enqueue(ctx, jobqueue.KindCopyGeneration, payload)
//
//	p, _ := jobqueue.NewProcessor(q, jobqueue.WithProcessorLogger(log))
//	_ = p.Register(jobqueue.NewCopyGenerationHandler(gen, store))
//	go p.Start(ctx)
package jobqueue
