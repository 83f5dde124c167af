package crypto

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcAccountID(t *testing.T) {
	tests := []struct {
		name      string
		publicKey string
		accountID string
	}{
		{
			name:      "Ed25519 public key",
			publicKey: "ED9434799226374926EDA3B54B1B461B4ABF7237962EAE18528FEA67595397FA32",
			accountID: "7f58b19358f8e497c8a9ded3e6db3bc23a13c1a5",
		},
		{
			name:      "Secp256k1 public key",
			publicKey: "0330E7FC9D56BB25D6893BA3F317AE5BCF33B3291BD63DB32654A313222F7FD020",
			accountID: "b5f762798a53d543a014caf8b297cff8f2f937e8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pubKey, err := hex.DecodeString(tt.publicKey)
			require.NoError(t, err)

			accountID := CalcAccountID(pubKey)

			expectedID, err := hex.DecodeString(tt.accountID)
			require.NoError(t, err)

			assert.Equal(t, expectedID, accountID[:])
			assert.Equal(t, "0x"+tt.accountID[:16], AddressFromPublicKey(pubKey).String())
		})
	}
}

func TestParseAddress(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		addr, err := ParseAddress("0x01cf0e2f2f715450")
		require.NoError(t, err)
		assert.Equal(t, "0x01cf0e2f2f715450", addr.String())
		assert.False(t, addr.IsZero())
	})

	t.Run("Rejects malformed input", func(t *testing.T) {
		for _, in := range []string{"", "alice", "01cf0e2f2f715450", "0x01cf", "0xzzcf0e2f2f715450", "0x01cf0e2f2f71545000"} {
			_, err := ParseAddress(in)
			assert.ErrorIs(t, err, ErrInvalidAddress, in)
			assert.False(t, IsAddress(in), in)
		}
	})

	t.Run("Zero address", func(t *testing.T) {
		addr := MustParseAddress("0x0000000000000000")
		assert.True(t, addr.IsZero())
	})
}

func TestAddressJSON(t *testing.T) {
	type wrapper struct {
		Addr Address `json:"addr"`
	}

	in := wrapper{Addr: MustParseAddress("0xf8d6e0586b0a20c7")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"addr":"0xf8d6e0586b0a20c7"}`, string(data))

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	assert.Error(t, json.Unmarshal([]byte(`{"addr":"bob"}`), &out))
}
