package cos

import "regexp"

// nameRe is the cell-name grammar from spec.md §3:
// [a-z0-9][a-z0-9_-]{0,62}
var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidName reports whether name satisfies the cell-name grammar.
func ValidName(name string) bool { return nameRe.MatchString(name) }
