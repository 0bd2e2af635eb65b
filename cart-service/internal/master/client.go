package master

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client talks to the master-data service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

func (c *Client) Item(ctx context.Context, tenantID, storeCode, itemCode string) (*domain.ItemMaster, error) {
	var item domain.ItemMaster
	q := url.Values{"store_code": {storeCode}}
	if err := c.get(ctx, "item "+itemCode, q, &item, "tenants", tenantID, "items", itemCode); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) Payment(ctx context.Context, tenantID, paymentCode string) (*domain.PaymentMaster, error) {
	var p domain.PaymentMaster
	if err := c.get(ctx, "payment "+paymentCode, nil, &p, "tenants", tenantID, "payments", paymentCode); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Tax(ctx context.Context, tenantID, taxCode string) (*domain.TaxMaster, error) {
	var t domain.TaxMaster
	if err := c.get(ctx, "tax "+taxCode, nil, &t, "tenants", tenantID, "taxes", taxCode); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) Setting(ctx context.Context, tenantID, storeCode string, terminalNo int, name string) (string, error) {
	var doc SettingDoc
	q := url.Values{"store_code": {storeCode}, "terminal_no": {strconv.Itoa(terminalNo)}}
	if err := c.get(ctx, "setting "+name, q, &doc, "tenants", tenantID, "settings", name); err != nil {
		return "", err
	}
	return doc.Resolve(storeCode, terminalNo), nil
}

func (c *Client) Terminal(ctx context.Context, terminalID string) (*domain.TerminalInfo, error) {
	var info domain.TerminalInfo
	if err := c.get(ctx, "terminal "+terminalID, nil, &info, "terminals", terminalID); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) get(ctx context.Context, what string, query url.Values, out any, segments ...string) error {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := c.baseURL + "/" + strings.Join(escaped, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", what, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", what, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.NotFoundf("%s", what)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s: status %d: %s", what, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}
