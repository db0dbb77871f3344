package trust

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"rookpkg/pkg/helper/errors"
)

// Fingerprint derives the ALGO:HASHNAME:HEX16 identifier for a public key's
// canonical bytes: the first 16 bytes of SHA-256 over the bytes, hex-encoded.
func Fingerprint(algo Algorithm, pubKeyBytes []byte) string {
	sum := sha256.Sum256(pubKeyBytes)
	return fmt.Sprintf("%s:sha256:%s", algo, hex.EncodeToString(sum[:16]))
}

// ParseFingerprint splits a fingerprint string into its algorithm, hash name,
// and hex digest parts, validating the shape.
func ParseFingerprint(fp string) (algo Algorithm, hashName string, hex16 string, err error) {
	parts := strings.SplitN(fp, ":", 3)
	if len(parts) != 3 {
		return "", "", "", errors.InvalidInputf("malformed fingerprint %q", fp)
	}
	a := Algorithm(parts[0])
	if !a.Valid() {
		return "", "", "", errors.InvalidInputf("unknown algorithm in fingerprint %q", fp)
	}
	if len(parts[2]) != 32 {
		return "", "", "", errors.InvalidInputf("fingerprint %q does not carry a 16-byte hex digest", fp)
	}
	return a, parts[1], parts[2], nil
}
