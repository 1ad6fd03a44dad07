// Package postscheduler defers, retries, and dead-letters outbound
// social-media publications.
//
// A caller schedules a Post for a future time on one of the supported
// platforms. A periodic promotion sweep selects due posts, atomically
// claims each one (compare-and-set scheduled→processing, so concurrent
// sweeps in different replicas can never double-claim), and hands it to a
// bounded pool of publish workers. Workers call the platform Publisher
// under an explicit timeout; on failure the post is rescheduled with
// exponential backoff until its retry budget is exhausted, at which point
// it moves to the dead letter queue for manual inspection and recovery.
//
// Post status moves only along a closed transition set:
//
//	scheduled  → processing   (promotion claim)
//	processing → published    (publisher success)
//	processing → failed       (retry budget exhausted, dead-lettered)
//	failed     → processing   (n/a for automatic flow; manual DLQ retry
//	                           resets the post to scheduled first)
//	scheduled  → cancelled    (caller cancel)
//
// published and cancelled are terminal. A post claimed into processing
// runs to completion: there is no mid-flight cancellation.
//
// Claimed posts carry a lease; a post whose worker died is reclaimed by
// the next sweep once the lease expires, so a crash never leaves a post
// stuck in processing.
//
// The package deliberately does not distinguish transient publish
// failures (rate limits, network) from permanent ones (invalid content):
// both consume the retry budget identically before reaching the DLQ.
package postscheduler
