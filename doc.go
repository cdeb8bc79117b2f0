// Package notifykit assembles the notification stack into a single engine:
// template rendering behind a two-tier cache, multi-channel dispatch with
// fallback, realtime fan-out over a connection registry, digest batching,
// and broadcast acknowledgement tracking.
//
// The subpackages under pkg/ are usable on their own; Engine is the wiring
// most deployments want. Notify is the main entry point: it routes normal
// priority events into the recipient's digest when one is configured and
// dispatches everything else immediately.
package notifykit
