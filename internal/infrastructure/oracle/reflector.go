// Package oracle implements the inbound side of the price feed: the
// Reflector webhook wire format, a REST price poller and a websocket ticker
// stream.
package oracle

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	// ErrMalformedPayload covers any structurally invalid webhook body:
	// missing update.event, unparsable prices, bad decimals.
	ErrMalformedPayload = errors.New("malformed reflector payload")

	// ErrBadSignature is returned when the payload signature does not
	// verify against the claimed verifier key, or the verifier is not
	// trusted.
	ErrBadSignature = errors.New("invalid payload signature")
)

// ReflectorEnvelope is the raw webhook body. Update is kept as raw JSON so
// the signature can be verified over the exact bytes that were signed.
type ReflectorEnvelope struct {
	Update    json.RawMessage `json:"update"`
	Signature string          `json:"signature"`
	Verifier  string          `json:"verifier"`
}

type ReflectorUpdate struct {
	Contract string          `json:"contract"`
	Events   []string        `json:"events,omitempty"`
	Event    *ReflectorEvent `json:"event"`
	Root     string          `json:"root,omitempty"`
}

type ReflectorAsset struct {
	Source string `json:"source"`
	Asset  string `json:"asset"`
}

// ReflectorEvent carries one price tick. Prices are integer strings scaled
// by 10^decimals.
type ReflectorEvent struct {
	Subscription string         `json:"subscription"`
	Base         ReflectorAsset `json:"base"`
	Quote        ReflectorAsset `json:"quote"`
	Decimals     int            `json:"decimals"`
	Price        string         `json:"price"`
	PrevPrice    string         `json:"prevPrice"`
	Timestamp    int64          `json:"timestamp"`
}

// PriceUpdate is a decoded tick ready for ingestion.
type PriceUpdate struct {
	Asset     string
	Price     float64
	PrevPrice float64
	Timestamp int64
}

// ParseEnvelope unmarshals a webhook body. The update field is left raw for
// signature verification.
func ParseEnvelope(body []byte) (*ReflectorEnvelope, error) {
	var env ReflectorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(env.Update) == 0 {
		return nil, fmt.Errorf("%w: missing update", ErrMalformedPayload)
	}
	return &env, nil
}

// Verify checks the ed25519 signature over the raw update bytes. Both the
// verifier public key and the signature are hex encoded. When trusted is
// non-empty, the verifier must appear in it.
func (e *ReflectorEnvelope) Verify(trusted map[string]bool) error {
	if len(trusted) > 0 && !trusted[e.Verifier] {
		return fmt.Errorf("%w: untrusted verifier %s", ErrBadSignature, e.Verifier)
	}

	pub, err := hex.DecodeString(e.Verifier)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad verifier key", ErrBadSignature)
	}
	sig, err := hex.DecodeString(e.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: bad signature encoding", ErrBadSignature)
	}

	if !ed25519.Verify(ed25519.PublicKey(pub), e.Update, sig) {
		return ErrBadSignature
	}
	return nil
}

// Decode extracts the price update from the envelope. The asset name is the
// base/quote pair, e.g. "XLM/USD".
func (e *ReflectorEnvelope) Decode() (*PriceUpdate, error) {
	var update ReflectorUpdate
	if err := json.Unmarshal(e.Update, &update); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	ev := update.Event
	if ev == nil {
		return nil, fmt.Errorf("%w: missing update.event", ErrMalformedPayload)
	}
	if ev.Base.Asset == "" {
		return nil, fmt.Errorf("%w: missing base asset", ErrMalformedPayload)
	}
	if ev.Decimals < 0 || ev.Decimals > 18 {
		return nil, fmt.Errorf("%w: decimals out of range: %d", ErrMalformedPayload, ev.Decimals)
	}

	price, err := ParseScaledPrice(ev.Price, ev.Decimals)
	if err != nil {
		return nil, err
	}

	// prevPrice is optional; some subscriptions omit it on the first tick.
	var prevPrice float64
	if ev.PrevPrice != "" {
		prevPrice, err = ParseScaledPrice(ev.PrevPrice, ev.Decimals)
		if err != nil {
			return nil, err
		}
	}

	asset := ev.Base.Asset
	if ev.Quote.Asset != "" {
		asset = ev.Base.Asset + "/" + ev.Quote.Asset
	}

	return &PriceUpdate{
		Asset:     asset,
		Price:     price,
		PrevPrice: prevPrice,
		Timestamp: ev.Timestamp,
	}, nil
}

// ParseScaledPrice decodes an integer string scaled by 10^decimals.
func ParseScaledPrice(raw string, decimals int) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparsable price %q", ErrMalformedPayload, raw)
	}
	return v / math.Pow10(decimals), nil
}
