package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/crypto/ripemd160"
)

// AccountIDSize is the size of a full account ID in bytes.
const AccountIDSize = 20

// AddressSize is the size of an emulator account address in bytes.
const AddressSize = 8

// AddressPrefix marks a literal address in user input.
const AddressPrefix = "0x"

// ErrInvalidAddress is returned when a string is not a well-formed address.
var ErrInvalidAddress = errors.New("invalid address")

// Address identifies an account on the emulated ledger.
// It is rendered as 0x followed by 16 lowercase hex digits.
type Address [AddressSize]byte

// EmptyAddress is the zero address.
var EmptyAddress Address

// CalcAccountID computes the account ID from a public key.
// The account ID is a 160-bit identifier computed as RIPEMD160(SHA256(publicKey)).
//
// The same computation is used regardless of the cryptographic scheme
// (secp256k1 or Ed25519); the entire public key including any prefix
// is hashed.
func CalcAccountID(publicKey []byte) [AccountIDSize]byte {
	sha256Hash := sha256.Sum256(publicKey)

	ripemd160Hasher := ripemd160.New()
	ripemd160Hasher.Write(sha256Hash[:])
	ripemd160Hash := ripemd160Hasher.Sum(nil)

	var result [AccountIDSize]byte
	copy(result[:], ripemd160Hash)
	return result
}

// AddressFromPublicKey derives an address from the leading bytes of the
// account ID of publicKey.
func AddressFromPublicKey(publicKey []byte) Address {
	id := CalcAccountID(publicKey)
	var addr Address
	copy(addr[:], id[:AddressSize])
	return addr
}

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(s string) (Address, error) {
	var addr Address
	if !strings.HasPrefix(s, AddressPrefix) {
		return addr, fmt.Errorf("%w: %q is missing the %s prefix", ErrInvalidAddress, s, AddressPrefix)
	}
	raw := s[len(AddressPrefix):]
	if len(raw) != AddressSize*2 {
		return addr, fmt.Errorf("%w: %q must have %d hex digits", ErrInvalidAddress, s, AddressSize*2)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return addr, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	copy(addr[:], b)
	return addr, nil
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// IsAddress reports whether s looks like a literal address rather than an
// account name.
func IsAddress(s string) bool {
	_, err := ParseAddress(s)
	return err == nil
}

// String returns the 0x-prefixed hex form.
func (a Address) String() string {
	return AddressPrefix + hex.EncodeToString(a[:])
}

// IsZero returns true if the address is all zeros.
func (a Address) IsZero() bool {
	return a == EmptyAddress
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	addr, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
