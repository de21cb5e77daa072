package genome

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LockPath returns <schema-dir>/<name>.lock, per spec.md §6.
func LockPath(schemaDir, name string) string {
	return filepath.Join(schemaDir, name+".lock")
}

// ReadLock reads the hex-encoded fingerprint previously written for name,
// if any.
func ReadLock(schemaDir, name string) (fp uint64, ok bool, err error) {
	b, err := os.ReadFile(LockPath(schemaDir, name))
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	fp, err = strconv.ParseUint(strings.TrimSpace(string(b)), 16, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: corrupt schema lock: %w", LockPath(schemaDir, name), err)
	}
	return fp, true, nil
}

// WriteLock writes the one-line hex fingerprint for name, write-once unless
// explicitly cleared (spec.md §6's "Persisted state layout").
func WriteLock(schemaDir, name string, fp uint64) error {
	if existing, ok, err := ReadLock(schemaDir, name); err != nil {
		return err
	} else if ok && existing != fp {
		return fmt.Errorf("schema lock for %q already pinned to %#x, refusing to overwrite with %#x (clear it first)",
			name, existing, fp)
	} else if ok {
		return nil // idempotent re-write of the same value
	}
	if err := os.MkdirAll(schemaDir, 0o755); err != nil {
		return err
	}
	tmp := LockPath(schemaDir, name) + ".tmp"
	if err := os.WriteFile(tmp, []byte(fmt.Sprintf("%x\n", fp)), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, LockPath(schemaDir, name))
}

// Clear removes a schema lock so the next build may re-pin it.
func Clear(schemaDir, name string) error {
	err := os.Remove(LockPath(schemaDir, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Verify checks a just-computed fingerprint against the pinned lock (if
// any), returning the mismatch as an error the caller can translate to
// exit code 3 (spec.md §6: "schema lock mismatch at startup").
func Verify(schemaDir, name string, fp uint64) error {
	existing, ok, err := ReadLock(schemaDir, name)
	if err != nil {
		return err
	}
	if !ok {
		return WriteLock(schemaDir, name, fp)
	}
	if existing != fp {
		return fmt.Errorf("schema lock mismatch for %q: locked %#x, built %#x", name, existing, fp)
	}
	return nil
}
