package installer

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ChecksumMismatch is returned when a downloaded file's declared checksum
// does not match its actual contents (spec §4.5: "a checksum mismatch
// deletes the cached file and surfaces a ChecksumMismatch error without
// trying the next URL").
type ChecksumMismatch struct {
	Package string
}

func (e *ChecksumMismatch) Error() string {
	return "checksum mismatch for " + e.Package
}

// VerifyChecksum reports whether the file at path matches the declared
// SHA-256 (sha256Hex) or, failing that, SHA-1 (sha1Hex) checksum. If
// neither is declared, the file is trusted and verification reports true
// (spec §4.5 "Verification").
func VerifyChecksum(path, sha256Hex, sha1Hex string) (bool, error) {
	if sha256Hex != "" {
		sum, err := hashFile(path, sha256.New())
		if err != nil {
			return false, err
		}
		return sum == sha256Hex, nil
	}
	if sha1Hex != "" {
		sum, err := hashFile(path, sha1.New())
		if err != nil {
			return false, err
		}
		return sum == sha1Hex, nil
	}
	return true, nil
}

func hashFile(path string, h hash.Hash) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %q for checksum", path)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hashing %q", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
