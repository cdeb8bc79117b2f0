// Package digest batches low-priority notifications into periodic summary
// messages instead of delivering each one immediately.
//
// Enqueue defers a notification to the recipient's next digest boundary
// (daily or weekly at a fixed local hour). A periodic Flush claims due
// entries, composes one summary per recipient, sends it through the
// dispatcher, and conditionally marks the entries sent so concurrent
// flushes never double-send. Sent entries are purged after a retention
// window.
package digest
