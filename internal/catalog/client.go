package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/rocketshoes-cart/internal/domain"
	"github.com/fjod/go_cart/rocketshoes-cart/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUnavailable     = errors.New("catalog service unavailable")
)

// Client queries the stock oracle (GET stock/{id}) and the catalog (GET products/{id}).
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration

	stockBreaker   *gobreaker.CircuitBreaker[domain.StockRecord]
	productBreaker *gobreaker.CircuitBreaker[domain.Product]
	sfg            singleflight.Group // collapses identical in-flight lookups
}

type Options struct {
	Timeout time.Duration
	Breaker circuitbreaker.Config
	// Transport defaults to http.DefaultTransport; it is always wrapped by otelhttp.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

func NewClient(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	// A missing product is a valid answer, not a sign of an unhealthy service.
	healthy := func(err error) bool {
		return err == nil || errors.Is(err, ErrProductNotFound)
	}

	return &Client{
		baseURL:        u,
		http:           &http.Client{Transport: otelhttp.NewTransport(transport)},
		timeout:        opts.Timeout,
		stockBreaker:   circuitbreaker.New[domain.StockRecord]("stock", opts.Breaker, healthy, opts.Logger),
		productBreaker: circuitbreaker.New[domain.Product]("products", opts.Breaker, healthy, opts.Logger),
	}, nil
}

// Stock returns the available amount for productID.
func (c *Client) Stock(ctx context.Context, productID int64) (domain.StockRecord, error) {
	key := "stock/" + strconv.FormatInt(productID, 10)
	v, err := fetch(ctx, c, key, c.stockBreaker)
	if err != nil {
		return domain.StockRecord{}, err
	}
	return v.(domain.StockRecord), nil
}

// Product returns the catalog record for productID. The record carries no amount.
func (c *Client) Product(ctx context.Context, productID int64) (domain.Product, error) {
	key := "products/" + strconv.FormatInt(productID, 10)
	v, err := fetch(ctx, c, key, c.productBreaker)
	if err != nil {
		return domain.Product{}, err
	}
	// singleflight shares the value between callers; hand each its own copy.
	p := v.(domain.Product).Clone()
	p.Amount = 0
	return p, nil
}

// fetch runs one shared lookup per path. The lookup is detached from the
// caller that started it, so a cancelled caller neither fails the callers
// that joined it nor counts against the breaker; each caller still stops
// waiting when its own context is done.
func fetch[T any](ctx context.Context, c *Client, path string, cb *gobreaker.CircuitBreaker[T]) (interface{}, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.sfg.DoChan(path, func() (interface{}, error) {
		return cb.Execute(func() (T, error) {
			var out T
			err := c.getJSON(detached, path, &out)
			return out, err
		})
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get %s: %w", path, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, wrapBreakerErr(res.Err)
		}
		return res.Val, nil
	}
}

// getJSON bounds every request by the client timeout; a request that hits it
// counts as a breaker failure.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("get %s: %w", path, ErrProductNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func wrapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
