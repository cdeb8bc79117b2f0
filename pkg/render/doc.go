// Package render turns an event key, a locale, and a context map into the
// (title, text, html) tuple delivered through channel backends.
//
// Templates are registered per (event, locale) and compiled once. Lookup
// falls back from the exact locale to the base language to the registry
// default, so "de-AT" uses a "de" template when no Austrian variant exists.
// The per-event version feeds the template cache key: bumping a template's
// version bypasses stale cache entries without explicit invalidation.
package render
