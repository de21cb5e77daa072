// Package discovery implements spec.md §3's cell-name-to-path mapping and
// §9's "registry replaced by filesystem + per-host Stem + optional
// gossip" design note. Resolve is pure path arithmetic; Beacon and
// PeerCache add an opt-in LAN multicast announcement mechanism, inferred
// from the teacher corpus's own membership-gossip idioms (pinecone's
// signed peer identity, aistore's Smap-style peer table) since spec.md
// leaves this detail for the implementer.
package discovery

// Resolve returns the deterministic filesystem paths for a cell named
// name rooted at runtimeDir: its listener socket and its metrics socket.
// Pure; performs no I/O.
func Resolve(runtimeDir, name string) (sockPath, metricsSockPath string) {
	return runtimeDir + "/" + name + ".sock", runtimeDir + "/" + name + ".metrics.sock"
}

// BinaryPath returns the deterministic DNA-directory path Stem's
// Germinate looks up for a cell named name.
func BinaryPath(dnaDir, name string) string {
	return dnaDir + "/" + name
}

// LockPath returns the deterministic schema-directory path for a cell's
// pinned genome fingerprint lock file.
func LockPath(schemaDir, name string) string {
	return schemaDir + "/" + name + ".lock"
}
