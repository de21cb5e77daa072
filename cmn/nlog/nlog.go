// Package nlog is the substrate's own logger: timestamped,
// severity-leveled, writing to stderr and to a per-cell log file. Grounded
// on aistore's cmn/nlog (same API shape: Infof/Warningf/Errorf, file
// rotation by size) but considerably smaller — every line is written
// synchronously, with no buffer and no background flusher; the teacher's
// dual-buffer swap-and-flush pipeline is overkill for a
// single-process-per-cell daemon that logs at a few lines per second, not
// at aistore's per-object-transfer volume.
package nlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

const maxSize = 64 << 20 // rotate at 64MiB, matching teacher's MaxSize default order of magnitude

var (
	mu       sync.Mutex
	out      io.Writer = os.Stderr
	file     *os.File
	written  int64
	dir      string
	name     string
	toStderr = true
)

// SetOutput points the logger at <dir>/<name>.log in addition to stderr.
// Call once at process start, after config is loaded.
func SetOutput(runtimeDir, cellName string) error {
	mu.Lock()
	defer mu.Unlock()
	dir, name = filepath.Join(runtimeDir, "log"), cellName
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return rotate()
}

// DisableStderr stops mirroring lines to stderr once a file sink is set up
// (used by daemonized cells; the Stem itself keeps stderr on).
func DisableStderr() {
	mu.Lock()
	toStderr = false
	mu.Unlock()
}

func rotate() error {
	if file != nil {
		file.Close()
	}
	path := filepath.Join(dir, name+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	file = f
	written = 0
	return nil
}

func log(sev severity, depth int, format string, args ...any) {
	line := sprintf(sev, depth+1, format, args...)
	mu.Lock()
	defer mu.Unlock()
	if toStderr || file == nil {
		os.Stderr.WriteString(line)
	}
	if file != nil {
		n, _ := file.WriteString(line)
		written += int64(n)
		if written >= maxSize {
			// Keep one previous file as <name>.log.1 and start afresh.
			path := filepath.Join(dir, name+".log")
			_ = os.Rename(path, path+".1")
			_ = rotate()
		}
	}
}

func sprintf(sev severity, depth int, format string, args ...any) string {
	var b strings.Builder
	const chars = "IWE"
	b.WriteByte(chars[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().Format("15:04:05.000000"))
	b.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(depth + 1); ok {
		if idx := strings.LastIndexByte(fn, '/'); idx >= 0 {
			fn = fn[idx+1:]
		}
		b.WriteString(fn)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(ln))
		b.WriteByte(' ')
	}
	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	return b.String()
}

func Infof(format string, args ...any)    { log(sevInfo, 1, format, args...) }
func Infoln(args ...any)                  { log(sevInfo, 1, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 1, format, args...) }
func Errorf(format string, args ...any)   { log(sevErr, 1, format, args...) }
func Errorln(args ...any)                 { log(sevErr, 1, "", args...) }

// ErrorDepth logs at sevErr, skipping `depth` extra frames — used by
// callers (e.g. cmn/cos.ExitLogf) that log on behalf of someone else.
func ErrorDepth(depth int, args ...any) { log(sevErr, depth+1, "", args...) }

// Flush is a no-op placeholder kept for API parity with the teacher's
// buffered logger; this implementation writes synchronously.
func Flush(_ bool) {}
