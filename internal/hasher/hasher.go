// Package hasher computes the content digest used to detect duplicate uploads.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/hpungsan/ocrdesk/internal/errors"
)

// BlockSize is the read size used when streaming file contents.
const BlockSize = 64 * 1024

// HexLen is the length of a hex-encoded digest.
const HexLen = sha256.Size * 2

// HashReader returns the lowercase hex SHA-256 digest of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, BlockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile streams the file at path and returns its digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewFileNotFound(path)
		}
		return "", errors.NewInternal(fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	sum, err := HashReader(f)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return sum, nil
}

// LegacyHexLen is the length of the MD5 digests older clients submit.
const LegacyHexLen = 32

// ValidClient reports whether s is acceptable as a client-supplied digest:
// either the current form or a legacy MD5 one.
func ValidClient(s string) bool {
	return (len(s) == HexLen || len(s) == LegacyHexLen) && isLowerHex(s)
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
