// Package redis bootstraps the shared redis connection used by the template
// cache L2 tier and the realtime fan-out transport: env-driven Config,
// Connect with startup retries, and a Healthcheck probe.
package redis
