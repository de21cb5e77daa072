//go:build linux

package stats

import (
	"os"
	"strconv"
	"strings"
)

// readProcSelf samples this process' RSS (bytes) and accumulated CPU time
// (microseconds) from /proc/self/stat, the same source aistore's own
// memory-monitor code reads on Linux. Best-effort: any parse failure
// yields zeros rather than an error, since a failed sample should never
// take down the sampler goroutine.
func readProcSelf() (cpuUs, rssBytes uint64) {
	data, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return 0, 0
	}
	// Field 2 (comm) may contain spaces/parens; skip past the closing paren.
	close := strings.LastIndexByte(string(data), ')')
	if close < 0 {
		return 0, 0
	}
	fields := strings.Fields(string(data[close+2:]))
	// This slice starts at field 3 (state), so field N is at index N-3:
	// field 14 utime and field 15 stime (clock ticks), field 24 rss (pages)
	// -> utime=11, stime=12, rss=21.
	const utimeIdx, stimeIdx, rssIdx = 11, 12, 21
	if len(fields) <= rssIdx {
		return 0, 0
	}
	utime, _ := strconv.ParseUint(fields[utimeIdx], 10, 64)
	stime, _ := strconv.ParseUint(fields[stimeIdx], 10, 64)
	rssPages, _ := strconv.ParseUint(fields[rssIdx], 10, 64)

	const clockTicksPerSec = 100 // USER_HZ on virtually every Linux target
	cpuUs = (utime + stime) * (1000000 / clockTicksPerSec)
	rssBytes = rssPages * uint64(os.Getpagesize())
	return cpuUs, rssBytes
}
