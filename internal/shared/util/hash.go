package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// OwnerKey maps an owner id (user or "guest:" id) to a fixed-length,
// filesystem-safe namespace for permanent storage keys.
func OwnerKey(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(sum[:16])
}
