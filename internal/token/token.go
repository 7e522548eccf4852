// Package token generates the single-use bearer tokens embedded in
// reminder links. Only a one-way digest of a token is ever stored; the
// raw value travels in the outbound message and nowhere else.
package token

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// maxAttempts bounds collision regeneration. Two UUIDv4s per token make a
// digest collision effectively impossible, so hitting the bound means the
// uniqueness callback itself is broken.
const maxAttempts = 16

// Digest returns the hex sha-256 of a raw token, the only form that may
// be persisted.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Generate produces a 32-character URL-safe token and its digest. isUnique
// is consulted with the digest; on a collision a fresh token is generated
// silently.
func Generate(isUnique func(digest string) bool) (raw, digest string, err error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		u1 := uuid.New()
		u2 := uuid.New()
		b := append(u1[:], u2[:]...)
		raw = base64.URLEncoding.EncodeToString(b)[:32]
		digest = Digest(raw)
		if isUnique(digest) {
			return raw, digest, nil
		}
	}
	return "", "", fmt.Errorf("token generation: %d consecutive digest collisions", maxAttempts)
}
