package fingerprint

import (
	"crypto/md5"
)

// NewMD5 creates an MD5 content fingerprinter.
// MD5 is faster than SHA-256 but weaker; suitable for non-critical data.
func NewMD5(bufferSize int) *ContentHasher {
	return newContentHasher("md5", md5.New, bufferSize)
}
