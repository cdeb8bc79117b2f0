// Package mongo bootstraps the MongoDB connection backing the in-app inbox:
// env-driven Config, New with startup retries, and a Healthcheck probe.
package mongo
