// Package dispatch is the delivery core: it takes one notification, renders
// it per channel through the template cache, fans it out to the configured
// channel backends in caller order, applies the fallback policy, and
// aggregates per-channel delivery records into a single receipt.
//
// Dispatch is best-effort relative to the business operation that triggered
// it: a failed delivery is recorded and counted, never raised in a way that
// should block the caller's transaction. The only hard failures are
// configuration faults (unknown tenant or channel), which fail the whole
// dispatch before anything is recorded.
package dispatch
