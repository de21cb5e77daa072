// Package mono provides a monotonic clock used throughout the substrate for
// idle-time accounting, EWMA latency tracking, and log timestamps.
package mono

import "time"

var start = time.Now()

// NanoTime returns nanoseconds elapsed since package init, monotonic within
// a process lifetime (the contract required by hk and the racer's latency
// tracker — never wall-clock, never subject to NTP step adjustment).
func NanoTime() int64 { return time.Since(start).Nanoseconds() }

// Since is a convenience wrapper returning the duration elapsed since a
// NanoTime() reading.
func Since(t int64) time.Duration { return time.Duration(NanoTime() - t) }
