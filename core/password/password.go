// Package password implements the deterministic credential digest shared by the local and
// remote stores. A record hashed under one mode authenticates under the other.
package password

import (
	"crypto"
	_ "crypto/sha256" // registers crypto.SHA256
	"crypto/subtle"
	"encoding/hex"
	"hash/fnv"
)

// Algorithms
const (
	AlgSHA256   = "sha256"
	AlgFallback = "fnv1a-32"
)

// digestAvailable is mockable to exercise the fallback path.
var digestAvailable = crypto.SHA256.Available

// Hash returns the hex SHA-256 digest of pwd, or Fallback(pwd) when SHA-256 is not
// linked into the binary.
func Hash(pwd string) string {
	if !digestAvailable() {
		return Fallback(pwd)
	}
	h := crypto.SHA256.New()
	_, _ = h.Write([]byte(pwd))
	return hex.EncodeToString(h.Sum(nil))
}

// Fallback is a deterministic 32-bit FNV-1a digest rendered as 8 hex characters.
//
// It is NOT a cryptographic hash: it is trivially brute-forced and collides easily.
// It only exists so a runtime without SHA-256 can still compare credentials; never
// rely on it as the sole credential protection in production.
func Fallback(pwd string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(pwd))
	return hex.EncodeToString(h.Sum(nil))
}

// Algorithm reports the digest Hash currently uses.
func Algorithm() string {
	if !digestAvailable() {
		return AlgFallback
	}
	return AlgSHA256
}

// Equal compares two digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Check hashes pwd and compares it against digest in constant time.
func Check(pwd, digest string) bool {
	return Equal(Hash(pwd), digest)
}

// IsDigest reports whether s already looks like a digest produced by Hash.
func IsDigest(s string) bool {
	if len(s) != hex.EncodedLen(32) && len(s) != hex.EncodedLen(4) {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
