// Package monitor provides lightweight in-process performance metrics:
// named counters and rolling-window timers with percentile snapshots.
//
// It is not an exporter. The engine keeps hot-path instrumentation cheap and
// allocation-free; anything that needs to leave the process reads snapshots
// through Stats and ships them with whatever pipeline the host application
// uses.
package monitor
