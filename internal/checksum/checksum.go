package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Fingerprint returns a cheap change-detection value built from file size and
// modification time. Equal fingerprints mean the document can be skipped without reading it.
func Fingerprint(size int64, modTime time.Time) string {
	return strconv.FormatInt(size, 10) + "-" + strconv.FormatInt(modTime.UnixNano(), 10)
}
