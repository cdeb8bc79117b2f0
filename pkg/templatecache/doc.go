// Package templatecache memoizes rendered notification templates across two
// tiers: a bounded in-process map with a short TTL and a shared redis tier
// visible to every engine process.
//
// Lookups check L1 first; a shared-tier hit is promoted back into L1. On a
// total miss the caller renders and Set populates both tiers. Keys are
// deterministic over (event, channel, tenant, locale, context), with the
// context map hashed in sorted-key order so iteration order never changes the
// key, and a version component that lets a template change bypass stale
// entries without active invalidation.
//
// The cache is a memo, never a source of truth: shared tier errors and
// timeouts degrade to misses and are logged at debug level.
package templatecache
