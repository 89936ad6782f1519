// feedsim posts synthetic Reflector price updates at a running monitor, for
// exercising the webhook path end to end without a live oracle. It generates
// an ed25519 keypair and signs each payload; pass the printed verifier key to
// the monitor's trusted_verifiers config to test signature verification.
package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	mathrand "math/rand"
	"net/http"
	"time"
)

func main() {
	target := flag.String("target", "http://localhost:8080/webhook/reflector", "webhook endpoint")
	base := flag.String("base", "XLM", "base asset")
	quote := flag.String("quote", "USD", "quote asset")
	startPrice := flag.Float64("price", 100, "starting price")
	drift := flag.Float64("drift", -0.02, "per-tick relative drift")
	jitter := flag.Float64("jitter", 0.005, "per-tick random jitter")
	interval := flag.Duration("interval", 2*time.Second, "tick interval")
	ticks := flag.Int("ticks", 20, "number of ticks to send (0 = forever)")
	decimals := flag.Int("decimals", 7, "price scale decimals")
	flag.Parse()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}
	fmt.Printf("Verifier key: %s\n", hex.EncodeToString(pub))

	client := &http.Client{Timeout: 10 * time.Second}
	scale := math.Pow10(*decimals)

	price := *startPrice
	for i := 0; *ticks == 0 || i < *ticks; i++ {
		prev := price
		price = price * (1 + *drift + (mathrand.Float64()-0.5)*2**jitter)

		update := map[string]any{
			"contract": "feedsim",
			"event": map[string]any{
				"subscription": "sim-1",
				"base":         map[string]string{"source": "exchanges", "asset": *base},
				"quote":        map[string]string{"source": "exchanges", "asset": *quote},
				"decimals":     *decimals,
				"price":        fmt.Sprintf("%.0f", price*scale),
				"prevPrice":    fmt.Sprintf("%.0f", prev*scale),
				"timestamp":    time.Now().UnixMilli(),
			},
		}

		rawUpdate, err := json.Marshal(update)
		if err != nil {
			log.Fatalf("Failed to marshal update: %v", err)
		}
		sig := ed25519.Sign(priv, rawUpdate)

		payload, _ := json.Marshal(map[string]any{
			"update":    json.RawMessage(rawUpdate),
			"signature": hex.EncodeToString(sig),
			"verifier":  hex.EncodeToString(pub),
		})

		resp, err := client.Post(*target, "application/json", bytes.NewReader(payload))
		if err != nil {
			log.Printf("POST failed: %v", err)
		} else {
			fmt.Printf("tick %d: %s/%s %.4f -> %s\n", i+1, *base, *quote, price, resp.Status)
			resp.Body.Close()
		}

		time.Sleep(*interval)
	}
}
