// Package registry tracks which live realtime connections belong to which
// user and groups, and fans rendered payloads out to them.
//
// A connection is keyed by an opaque channel name unique per stream.
// Registration is idempotent and refreshes liveness; a background Sweep (or a
// lazy check on publish) drops connections whose last heartbeat exceeds the
// idle timeout. Resolve unions direct user matches and group matches within a
// tenant. The registry is sharded by channel name so concurrent registers,
// resolves, and publishes do not contend on one lock; strict read-after-write
// ordering is not guaranteed and not needed.
//
// Payload transport is pluggable: MemoryPublisher for a single process,
// RedisPublisher to reach streams held open by other replicas.
package registry
