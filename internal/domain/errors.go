package domain

import "errors"

// Failure categories surfaced by the pipeline. All are recoverable:
// the scheduler skips the remainder of the cycle and retries on the
// next tick. Parse anomalies are not errors at all; the parser
// degrades field by field instead.
var (
	// ErrFetchFailed covers transport errors, timeouts and
	// non-success statuses from the listing endpoint.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrStorageFailed wraps storage-engine errors other than the
	// unique-constraint conflict on insert (which is a normal
	// duplicate outcome, not an error).
	ErrStorageFailed = errors.New("storage failed")

	// ErrDeliveryFailed is reported when the notifier gateway
	// rejects a posting; it aborts the remainder of the delivery
	// batch so chronological order is preserved.
	ErrDeliveryFailed = errors.New("delivery failed")
)
