package utils

import (
	"crypto/sha256"
	"fmt"
)

// HashIdentity produces the salted one-way digest under which a user is
// tracked. Raw identifiers are never persisted.
func HashIdentity(rawID, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + rawID))
	return fmt.Sprintf("%x", sum)
}

// HashString is an unsalted digest used for cache keys.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", sum)
}
