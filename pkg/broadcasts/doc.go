// Package broadcasts manages tenant-wide one-to-many announcements and the
// acknowledgements users record against them.
//
// A broadcast message becomes deliverable inside its active window
// (scheduled-for to expires-at) and fans out through the dispatcher one
// recipient at a time. Blocking broadcasts gate application access until
// the user acknowledges them; acknowledgements are unique per (user,
// broadcast, tenant) and never deleted, so acknowledging twice returns the
// original row.
package broadcasts
