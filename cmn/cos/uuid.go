// Package cos - short unique identifiers, grounded on aistore's
// cmn/cos/uuid.go (xxhash-seeded shortid generator used for daemon and
// object IDs there). No package in this module calls GenUUID.
package cos

import (
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sidOnce sync.Once
	sid     *shortid.Shortid
)

func initSID() {
	seed := xxhash.Checksum64([]byte("cell"))
	sid = shortid.MustNew(1, uuidABC, seed)
}

// GenUUID returns a short, URL-safe, non-cryptographic unique ID.
func GenUUID() string {
	sidOnce.Do(initSID)
	return sid.MustGenerate()
}
