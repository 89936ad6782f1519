package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PricePoller fetches spot prices for the monitored assets from a
// CoinGecko-compatible REST endpoint on a fixed interval and fans them out
// to registered callbacks. It is the fallback ingestion channel when no
// oracle webhook is reachable.
type PricePoller struct {
	endpoint   string
	vsCurrency string
	interval   time.Duration
	client     *http.Client
	logger     *zap.Logger

	mu        sync.Mutex
	assetIDs  map[string]string // asset name -> provider id
	callbacks []func(asset string, price float64, timestamp int64)
}

// NewPricePoller builds a poller. assetIDs maps monitor asset names (e.g.
// "XLM/USD") to the provider's coin ids (e.g. "stellar").
func NewPricePoller(endpoint, vsCurrency string, assetIDs map[string]string, interval time.Duration, logger *zap.Logger) *PricePoller {
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ids := make(map[string]string, len(assetIDs))
	for asset, id := range assetIDs {
		ids[asset] = id
	}
	return &PricePoller{
		endpoint:   strings.TrimRight(endpoint, "/"),
		vsCurrency: vsCurrency,
		interval:   interval,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		assetIDs:   ids,
	}
}

func (p *PricePoller) OnPriceUpdate(callback func(asset string, price float64, timestamp int64)) {
	p.mu.Lock()
	p.callbacks = append(p.callbacks, callback)
	p.mu.Unlock()
}

// Subscribe adds assets to the poll set. Assets without a configured
// provider id are ignored with a warning.
func (p *PricePoller) Subscribe(assets []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range assets {
		if _, ok := p.assetIDs[a]; !ok {
			p.logger.Warn("no provider id configured for asset", zap.String("asset", a))
		}
	}
	return nil
}

func (p *PricePoller) Close() error {
	return nil
}

// Run polls until the context is cancelled. One failed poll is logged and
// skipped; the loop keeps going.
func (p *PricePoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				p.logger.Error("price poll failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *PricePoller) pollOnce(ctx context.Context) error {
	p.mu.Lock()
	byID := make(map[string]string, len(p.assetIDs)) // provider id -> asset
	ids := make([]string, 0, len(p.assetIDs))
	for asset, id := range p.assetIDs {
		byID[id] = asset
		ids = append(ids, id)
	}
	callbacks := append([]func(string, float64, int64){}, p.callbacks...)
	p.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	prices, err := p.FetchPrices(ctx, ids)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	for id, price := range prices {
		asset, ok := byID[id]
		if !ok {
			continue
		}
		for _, cb := range callbacks {
			cb(asset, price, now)
		}
	}
	return nil
}

// FetchPrices queries the simple-price endpoint for the given provider ids.
func (p *PricePoller) FetchPrices(ctx context.Context, ids []string) (map[string]float64, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", p.vsCurrency)

	reqURL := p.endpoint + "/simple/price?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price api error %d: %s", resp.StatusCode, string(body))
	}

	var result map[string]map[string]float64
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}

	prices := make(map[string]float64, len(result))
	for id, quotes := range result {
		if price, ok := quotes[p.vsCurrency]; ok && price > 0 {
			prices[id] = price
		}
	}
	return prices, nil
}
