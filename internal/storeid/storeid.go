// Package storeid derives the stable identifier that keys a repository's
// socket path, manifest file and vector table directory.
package storeid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
)

// ID is a stable, filesystem-safe identifier for a repository root.
type ID string

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FromPath derives an ID from a repository root path. The path is
// canonicalized (absolute, cleaned) before hashing so that two different
// working-directory-relative spellings of the same repo resolve to the same
// ID. The human-readable base name is kept as a prefix so sockets and data
// directories stay recognizable on disk; the hash suffix is what actually
// guarantees uniqueness.
func FromPath(root string) (ID, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	sum := sha256.Sum256([]byte(abs))
	hash := hex.EncodeToString(sum[:])[:16]

	base := filepath.Base(abs)
	base = unsafeChars.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "repo"
	}

	return ID(base + "-" + hash), nil
}

// String implements fmt.Stringer.
func (i ID) String() string { return string(i) }
