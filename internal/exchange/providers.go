package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Provider is one source of the current USD/PYG rate. Implementations fail
// independently; the resolver decides what a failure means.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (decimal.Decimal, error)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// MarketProvider reads the dolarpy aggregator, which lists buy/sell quotes
// per exchange house. The resolved rate is the average of the positive sell
// quotes.
type MarketProvider struct {
	url        string
	httpClient *http.Client
}

func NewMarketProvider(url string, timeout time.Duration) *MarketProvider {
	return &MarketProvider{url: url, httpClient: newHTTPClient(timeout)}
}

func (p *MarketProvider) Name() string { return "dolarpy" }

func (p *MarketProvider) Fetch(ctx context.Context) (decimal.Decimal, error) {
	var payload struct {
		DolarPy map[string]struct {
			Compra float64 `json:"compra"`
			Venta  float64 `json:"venta"`
		} `json:"dolarpy"`
	}
	if err := getJSON(ctx, p.httpClient, p.url, &payload); err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	count := 0
	for _, quote := range payload.DolarPy {
		if quote.Venta > 0 {
			sum = sum.Add(decimal.NewFromFloat(quote.Venta))
			count++
		}
	}
	if count == 0 {
		return decimal.Zero, fmt.Errorf("no positive sell quotes in response")
	}
	return sum.Div(decimal.NewFromInt(int64(count))), nil
}

// CentralBankProvider reads the BCP reference rate.
type CentralBankProvider struct {
	url        string
	httpClient *http.Client
}

func NewCentralBankProvider(url string, timeout time.Duration) *CentralBankProvider {
	return &CentralBankProvider{url: url, httpClient: newHTTPClient(timeout)}
}

func (p *CentralBankProvider) Name() string { return "bcp" }

func (p *CentralBankProvider) Fetch(ctx context.Context) (decimal.Decimal, error) {
	var payload struct {
		Referencial float64 `json:"referencial"`
	}
	if err := getJSON(ctx, p.httpClient, p.url, &payload); err != nil {
		return decimal.Zero, err
	}
	if payload.Referencial <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive reference rate: %v", payload.Referencial)
	}
	return decimal.NewFromFloat(payload.Referencial), nil
}

// LocalMarketProvider reads a local exchange-house feed that quotes numbers
// as strings.
type LocalMarketProvider struct {
	url        string
	httpClient *http.Client
}

func NewLocalMarketProvider(url string, timeout time.Duration) *LocalMarketProvider {
	return &LocalMarketProvider{url: url, httpClient: newHTTPClient(timeout)}
}

func (p *LocalMarketProvider) Name() string { return "cambioslocal" }

func (p *LocalMarketProvider) Fetch(ctx context.Context) (decimal.Decimal, error) {
	var payload struct {
		USD struct {
			Venta string `json:"venta"`
		} `json:"usd"`
	}
	if err := getJSON(ctx, p.httpClient, p.url, &payload); err != nil {
		return decimal.Zero, err
	}
	rate, err := decimal.NewFromString(payload.USD.Venta)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse sell rate %q: %w", payload.USD.Venta, err)
	}
	return rate, nil
}

// InternationalProvider is the generic fallback, an open exchange-rate API
// keyed by currency code.
type InternationalProvider struct {
	url        string
	currency   string
	httpClient *http.Client
}

func NewInternationalProvider(url, currency string, timeout time.Duration) *InternationalProvider {
	return &InternationalProvider{url: url, currency: currency, httpClient: newHTTPClient(timeout)}
}

func (p *InternationalProvider) Name() string { return "er-api" }

func (p *InternationalProvider) Fetch(ctx context.Context) (decimal.Decimal, error) {
	var payload struct {
		Result string             `json:"result"`
		Rates  map[string]float64 `json:"rates"`
	}
	if err := getJSON(ctx, p.httpClient, p.url, &payload); err != nil {
		return decimal.Zero, err
	}
	if payload.Result != "success" {
		return decimal.Zero, fmt.Errorf("provider result: %s", payload.Result)
	}
	rate, ok := payload.Rates[p.currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("currency %s missing from response", p.currency)
	}
	return decimal.NewFromFloat(rate), nil
}
