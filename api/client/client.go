// Package client is the gateway HTTP client. Requests fail over through the
// trusted hosts and the first host that answers with a 2xx becomes the base
// for later requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/samber/lo"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/build"
	"github.com/arpi-project/arpi/metrics"
)

var log = logging.Logger("apiclient")

type Config struct {
	Endpoint Endpoint
	// TrustedHosts are tried in order after the base URL fails.
	TrustedHosts     []string
	Timeout          time.Duration
	MaxContentLength int64
	// RateLimit caps requests per second; zero disables limiting.
	RateLimit float64
	// LogRequests logs every request and response at info level.
	LogRequests bool
}

func DefaultConfig() Config {
	return Config{
		Endpoint:         Endpoint{URL: build.DefaultGatewayURL},
		TrustedHosts:     append([]string(nil), build.DefaultTrustedHosts...),
		Timeout:          build.DefaultRequestTimeout,
		MaxContentLength: build.MaxContentLength,
	}
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter

	lk   sync.Mutex
	base Endpoint
}

var _ api.Gateway = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = build.DefaultRequestTimeout
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = build.MaxContentLength
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		base: NormalizeEndpoint(cfg.Endpoint),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}
	return c
}

// Base is the endpoint requests currently start from.
func (c *Client) Base() Endpoint {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.base
}

func (c *Client) Get(ctx context.Context, endpoint string, opts ...api.RequestOption) (*api.Response, error) {
	return c.doRequest(ctx, http.MethodGet, endpoint, nil, "", api.ApplyOptions(opts))
}

func (c *Client) Post(ctx context.Context, endpoint string, body any, opts ...api.RequestOption) (*api.Response, error) {
	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	return c.doRequest(ctx, http.MethodPost, endpoint, payload, contentType, api.ApplyOptions(opts))
}

func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "application/octet-stream", nil
	case string:
		return []byte(b), "text/plain; charset=utf-8", nil
	default:
		out, err := json.Marshal(body)
		if err != nil {
			return nil, "", xerrors.Errorf("encoding request body: %w", err)
		}
		return out, "application/json", nil
	}
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, payload []byte, contentType string, o api.RequestOptions) (*api.Response, error) {
	previous := c.Base()
	endpoint = strings.TrimPrefix(endpoint, "/")

	hosts := lo.Uniq(append([]string{previous.URL}, c.cfg.TrustedHosts...))

	var errs error
	var last *api.Response

	for i, h := range hosts {
		ep := previous
		if i > 0 {
			ep = NormalizeEndpoint(Endpoint{URL: h})
			c.recordFailover(ctx, ep)
		}

		resp, err := c.request(ctx, ep, method, endpoint, payload, contentType, o)
		if err == nil && resp.OK() {
			if i > 0 {
				log.Infow("switched gateway", "from", previous.URL, "to", ep.URL)
				c.lk.Lock()
				c.base = ep
				c.lk.Unlock()
			}
			return resp, nil
		}

		if err != nil {
			errs = multierr.Append(errs, &api.ErrRequest{Host: ep.URL, Err: err})
		} else {
			last = resp
			errs = multierr.Append(errs, resp.Err())
		}

		if ctx.Err() != nil || previous.IsLocal() {
			break
		}
	}

	if last != nil {
		return last, nil
	}
	if errs == nil {
		return nil, api.ErrNoHosts
	}
	return nil, errs
}

func (c *Client) request(ctx context.Context, ep Endpoint, method, endpoint string, payload []byte, contentType string, o api.RequestOptions) (*api.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := ep.URL + "/" + endpoint

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, xerrors.Errorf("building request: %w", err)
	}
	for k, vs := range o.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", build.UserAgent())

	c.logf("requesting", "method", method, "url", u)

	start := time.Now()
	hresp, err := c.http.Do(req)
	if err != nil {
		c.recordRequest(ctx, method, endpoint, "error", start, 0)
		return nil, err
	}
	defer hresp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(hresp.Body, c.cfg.MaxContentLength+1))
	if err != nil {
		return nil, xerrors.Errorf("reading response: %w", err)
	}
	if int64(len(data)) > c.cfg.MaxContentLength {
		return nil, xerrors.Errorf("response from %s exceeds %d bytes", u, c.cfg.MaxContentLength)
	}

	c.recordRequest(ctx, method, endpoint, strconv.Itoa(hresp.StatusCode), start, len(data))
	c.logf("response", "url", u, "status", hresp.StatusCode, "bytes", len(data))

	return &api.Response{
		Status:     hresp.StatusCode,
		StatusText: statusText(hresp),
		Header:     hresp.Header,
		Data:       data,
	}, nil
}

func statusText(r *http.Response) string {
	// r.Status is "404 Not Found"
	if _, text, ok := strings.Cut(r.Status, " "); ok {
		return text
	}
	return http.StatusText(r.StatusCode)
}

func (c *Client) logf(msg string, kv ...any) {
	if c.cfg.LogRequests {
		log.Infow(msg, kv...)
		return
	}
	log.Debugw(msg, kv...)
}

var knownEndpoints = map[string]struct{}{
	"tx": {}, "tx_anchor": {}, "chunk": {}, "price": {}, "wallet": {},
	"block": {}, "info": {}, "peers": {}, "offset": {}, "status": {},
}

// endpointTag keeps metric cardinality bounded: ids and offsets are dropped.
func endpointTag(endpoint string) string {
	segs := strings.Split(endpoint, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if _, ok := knownEndpoints[segs[i]]; ok {
			return segs[i]
		}
	}
	return "data"
}

func (c *Client) recordRequest(ctx context.Context, method, endpoint, status string, start time.Time, size int) {
	ctx, _ = tag.New(ctx,
		tag.Upsert(metrics.Endpoint, endpointTag(endpoint)),
		tag.Upsert(metrics.Method, method),
		tag.Upsert(metrics.Status, status),
	)
	stats.Record(ctx, metrics.APIRequestDuration.M(metrics.SinceInMilliseconds(start)), metrics.APIResponseSize.M(int64(size)))
}

func (c *Client) recordFailover(ctx context.Context, ep Endpoint) {
	ctx, _ = tag.New(ctx, tag.Upsert(metrics.Host, ep.Host))
	stats.Record(ctx, metrics.APIRequestFailover.M(1))
}
