// Package crypto provides key derivation, signing and address handling for
// emulator accounts.
package crypto

import (
	"fmt"
	"strings"
)

// KeyType represents the type of cryptographic key used by an account.
type KeyType int

const (
	// KeyTypeUnknown indicates an unknown or invalid key type.
	KeyTypeUnknown KeyType = iota
	// KeyTypeSecp256k1 indicates a secp256k1 (ECDSA) key.
	KeyTypeSecp256k1
	// KeyTypeEd25519 indicates an Ed25519 key.
	KeyTypeEd25519
)

// String returns the string representation of the key type.
func (kt KeyType) String() string {
	switch kt {
	case KeyTypeSecp256k1:
		return "secp256k1"
	case KeyTypeEd25519:
		return "ed25519"
	default:
		return "unknown"
	}
}

// ParseKeyType parses a key type name as produced by KeyType.String.
func ParseKeyType(s string) (KeyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "secp256k1":
		return KeyTypeSecp256k1, nil
	case "ed25519":
		return KeyTypeEd25519, nil
	default:
		return KeyTypeUnknown, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, s)
	}
}

// PublicKeyType determines the key type from a public key's raw bytes.
// It returns KeyTypeUnknown if the public key format is not recognized.
//
// Public key formats:
//   - Ed25519: 33 bytes, first byte is 0xED
//   - secp256k1: 33 bytes, first byte is 0x02 or 0x03 (compressed format)
func PublicKeyType(pubKey []byte) KeyType {
	if len(pubKey) != 33 {
		return KeyTypeUnknown
	}

	switch pubKey[0] {
	case 0xED:
		return KeyTypeEd25519
	case 0x02, 0x03:
		return KeyTypeSecp256k1
	default:
		return KeyTypeUnknown
	}
}

// IsValidPublicKey returns true if the public key has a valid format.
func IsValidPublicKey(pubKey []byte) bool {
	return PublicKeyType(pubKey) != KeyTypeUnknown
}
