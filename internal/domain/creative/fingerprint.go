package creative

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the hex sha256 of data. Identical bytes always map to
// the same fingerprint regardless of source URL.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashSourceURL returns the hex sha256 of a source URL. The index stores the
// hash rather than relying on the raw URL for lookups, since CDN URLs can be
// arbitrarily long.
func HashSourceURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
