// Package channels implements the delivery backends the dispatcher fans
// notifications out to: realtime (connection registry push), email, sms,
// and the in-app inbox.
//
// Every backend satisfies the same Backend interface and reports the
// outcome of a single delivery attempt as a DeliveryResult. Backends never
// retry on their own; SupportsRetry tells the dispatcher whether retrying
// the backend is meaningful. Provider-facing backends (email, sms) run
// behind a circuit breaker so a degraded provider fails fast instead of
// holding dispatch workers.
package channels
