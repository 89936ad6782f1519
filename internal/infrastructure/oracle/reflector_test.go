package oracle

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBody(t *testing.T) []byte {
	t.Helper()
	return []byte(`{
		"update": {
			"contract": "CBNGTEST",
			"event": {
				"subscription": "sub-1",
				"base": {"source": "exchanges", "asset": "XLM"},
				"quote": {"source": "exchanges", "asset": "USD"},
				"decimals": 7,
				"price": "1234567890",
				"prevPrice": "1200000000",
				"timestamp": 1700000000000
			}
		},
		"signature": "",
		"verifier": ""
	}`)
}

func TestDecode_ValidPayload(t *testing.T) {
	env, err := ParseEnvelope(validBody(t))
	require.NoError(t, err)

	update, err := env.Decode()
	require.NoError(t, err)

	assert.Equal(t, "XLM/USD", update.Asset)
	assert.InDelta(t, 123.456789, update.Price, 1e-9)
	assert.InDelta(t, 120.0, update.PrevPrice, 1e-9)
	assert.Equal(t, int64(1700000000000), update.Timestamp)
}

func TestDecode_BaseOnlyAssetName(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{
		"update": {"event": {"base": {"asset": "XLM"}, "decimals": 2, "price": "8900", "timestamp": 1}}
	}`))
	require.NoError(t, err)

	update, err := env.Decode()
	require.NoError(t, err)
	assert.Equal(t, "XLM", update.Asset)
	assert.InDelta(t, 89.0, update.Price, 1e-9)
	assert.Equal(t, 0.0, update.PrevPrice)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Not JSON", `{{{`},
		{"Missing Update", `{"signature": "x", "verifier": "y"}`},
		{"Missing Event", `{"update": {"contract": "C"}}`},
		{"Missing Base Asset", `{"update": {"event": {"decimals": 7, "price": "1", "timestamp": 1}}}`},
		{"Unparsable Price", `{"update": {"event": {"base": {"asset": "XLM"}, "decimals": 7, "price": "abc", "timestamp": 1}}}`},
		{"Unparsable PrevPrice", `{"update": {"event": {"base": {"asset": "XLM"}, "decimals": 7, "price": "10", "prevPrice": "abc", "timestamp": 1}}}`},
		{"Negative Decimals", `{"update": {"event": {"base": {"asset": "XLM"}, "decimals": -1, "price": "10", "timestamp": 1}}}`},
		{"Huge Decimals", `{"update": {"event": {"base": {"asset": "XLM"}, "decimals": 40, "price": "10", "timestamp": 1}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.body))
			if err != nil {
				assert.ErrorIs(t, err, ErrMalformedPayload)
				return
			}
			_, err = env.Decode()
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestParseScaledPrice(t *testing.T) {
	tests := []struct {
		raw      string
		decimals int
		want     float64
	}{
		{"1234567890", 7, 123.456789},
		{"8900", 2, 89.0},
		{"100", 0, 100.0},
		{"1", 14, 1e-14},
	}

	for _, tt := range tests {
		got, err := ParseScaledPrice(tt.raw, tt.decimals)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-12)
	}

	_, err := ParseScaledPrice("not-a-number", 7)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func signedEnvelope(t *testing.T, priv ed25519.PrivateKey, pub ed25519.PublicKey) *ReflectorEnvelope {
	t.Helper()

	rawUpdate := json.RawMessage(`{"event":{"base":{"asset":"XLM"},"quote":{"asset":"USD"},"decimals":7,"price":"1234567890","timestamp":1700000000000}}`)
	sig := ed25519.Sign(priv, rawUpdate)

	body, err := json.Marshal(map[string]any{
		"update":    rawUpdate,
		"signature": hex.EncodeToString(sig),
		"verifier":  hex.EncodeToString(pub),
	})
	require.NoError(t, err)

	env, err := ParseEnvelope(body)
	require.NoError(t, err)
	return env
}

func TestVerify_ValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	env := signedEnvelope(t, priv, pub)
	assert.NoError(t, env.Verify(nil))
	assert.NoError(t, env.Verify(map[string]bool{hex.EncodeToString(pub): true}))
}

func TestVerify_Rejections(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	t.Run("Untrusted Verifier", func(t *testing.T) {
		env := signedEnvelope(t, priv, pub)
		err := env.Verify(map[string]bool{"someoneelse": true})
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("Tampered Update", func(t *testing.T) {
		env := signedEnvelope(t, priv, pub)
		env.Update = json.RawMessage(`{"event":{"base":{"asset":"XLM"},"decimals":7,"price":"9999999999","timestamp":1700000000000}}`)
		assert.ErrorIs(t, env.Verify(nil), ErrBadSignature)
	})

	t.Run("Wrong Key", func(t *testing.T) {
		otherPub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		env := signedEnvelope(t, priv, pub)
		env.Verifier = hex.EncodeToString(otherPub)
		assert.ErrorIs(t, env.Verify(nil), ErrBadSignature)
	})

	t.Run("Garbage Encoding", func(t *testing.T) {
		env := signedEnvelope(t, priv, pub)
		env.Signature = "zz-not-hex"
		assert.ErrorIs(t, env.Verify(nil), ErrBadSignature)
	})
}
