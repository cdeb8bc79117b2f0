// Package notifier exposes the notification engine over HTTP: the dispatch
// entry point, the realtime event stream, the broadcast acknowledgement
// API, and the in-app inbox.
//
// Identity arrives on trusted headers set by the edge proxy (X-User-ID,
// X-Tenant-ID, X-User-Email, X-User-Roles, X-User-Groups); the service does
// not authenticate. The stream endpoint serves server-sent events: on open
// it registers a connection, pushes one JSON envelope per line-delimited
// event, heartbeats every 30 seconds, and unregisters on disconnect.
package notifier
