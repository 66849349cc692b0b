package service

import (
	"crypto/sha256"
	"encoding/hex"
)

// messageIdentity derives a stable external identity for records the
// gateway never assigned an id. The same logical message always hashes
// to the same value, so overlapping polling windows stay idempotent.
// Body and timestamp are hashed exactly as received, no whitespace or
// case normalization.
func messageIdentity(sender, recipient, body, timestamp string) string {
	h := sha256.Sum256([]byte(sender + "|" + recipient + "|" + body + "|" + timestamp))
	return hex.EncodeToString(h[:])
}
