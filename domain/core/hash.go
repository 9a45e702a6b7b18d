package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// RowHash fingerprints the canonical content of one dataset row
type RowHash Hash

// NewRowHash hashes an already canonicalized row encoding
func NewRowHash(canonical []byte) RowHash { return RowHash(NewHash(canonical)) }

func (h RowHash) String() string { return Hash(h).String() }
