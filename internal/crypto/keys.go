package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

var (
	// ErrUnsupportedKeyType is returned when an unsupported key type is requested.
	ErrUnsupportedKeyType = errors.New("unsupported key type")
	// ErrInvalidSeed is returned when a seed is too short to derive a key.
	ErrInvalidSeed = errors.New("invalid seed")
	// ErrInvalidSignature is returned when a signature cannot be parsed.
	ErrInvalidSignature = errors.New("invalid signature")
)

// SeedSize is the number of seed bytes consumed by DeriveKeyPair.
const SeedSize = 32

// ed25519Prefix marks Ed25519 public keys so they share the 33-byte layout
// of compressed secp256k1 keys.
const ed25519Prefix = 0xED

// KeyPair holds the key material of an account.
type KeyPair struct {
	Type       KeyType
	PrivateKey []byte
	PublicKey  []byte
}

// SeedFromName derives a deterministic seed from a human-readable name, so
// that the same name always produces the same account.
func SeedFromName(name string) []byte {
	hash := sha512.Sum512([]byte(name))
	seed := make([]byte, SeedSize)
	copy(seed, hash[:SeedSize])
	return seed
}

// DeriveKeyPair derives a keypair of the given type from seed.
func DeriveKeyPair(seed []byte, keyType KeyType) (*KeyPair, error) {
	if len(seed) < SeedSize {
		return nil, ErrInvalidSeed
	}
	seed = seed[:SeedSize]

	switch keyType {
	case KeyTypeSecp256k1:
		priv, pub := btcec.PrivKeyFromBytes(seed)
		return &KeyPair{
			Type:       keyType,
			PrivateKey: priv.Serialize(),
			PublicKey:  pub.SerializeCompressed(),
		}, nil
	case KeyTypeEd25519:
		priv := ed25519.NewKeyFromSeed(seed)
		pub := priv.Public().(ed25519.PublicKey)
		return &KeyPair{
			Type:       keyType,
			PrivateKey: []byte(priv),
			PublicKey:  append([]byte{ed25519Prefix}, pub...),
		}, nil
	default:
		return nil, ErrUnsupportedKeyType
	}
}

// Address returns the address derived from the public key.
func (k *KeyPair) Address() Address {
	return AddressFromPublicKey(k.PublicKey)
}

// Sign signs message with the private key.
// secp256k1 signatures are DER encoded over SHA256(message).
func (k *KeyPair) Sign(message []byte) ([]byte, error) {
	switch k.Type {
	case KeyTypeSecp256k1:
		priv, _ := btcec.PrivKeyFromBytes(k.PrivateKey)
		digest := sha256.Sum256(message)
		return ecdsa.Sign(priv, digest[:]).Serialize(), nil
	case KeyTypeEd25519:
		return ed25519.Sign(ed25519.PrivateKey(k.PrivateKey), message), nil
	default:
		return nil, ErrUnsupportedKeyType
	}
}

// Verify checks signature over message against publicKey. The key type is
// inferred from the public key format.
func Verify(publicKey, message, signature []byte) (bool, error) {
	switch PublicKeyType(publicKey) {
	case KeyTypeSecp256k1:
		pub, err := btcec.ParsePubKey(publicKey)
		if err != nil {
			return false, err
		}
		sig, err := ecdsa.ParseDERSignature(signature)
		if err != nil {
			return false, ErrInvalidSignature
		}
		digest := sha256.Sum256(message)
		return sig.Verify(digest[:], pub), nil
	case KeyTypeEd25519:
		if len(signature) != ed25519.SignatureSize {
			return false, ErrInvalidSignature
		}
		return ed25519.Verify(ed25519.PublicKey(publicKey[1:]), message, signature), nil
	default:
		return false, ErrUnsupportedKeyType
	}
}
