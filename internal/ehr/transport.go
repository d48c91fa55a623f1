package ehr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const maxErrorBody = 64 << 10

// NewHTTPClient returns a pooled client sized for a single vendor host.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConns = 100
	tr.MaxIdleConnsPerHost = 10
	tr.IdleConnTimeout = 90 * time.Second
	return &http.Client{Timeout: timeout, Transport: tr}
}

// RequestDecorator adds per-request headers such as credentials.
type RequestDecorator func(ctx context.Context, req *http.Request) error

// Transport issues JSON requests against one vendor base URL.
type Transport struct {
	vendor      string
	baseURL     string
	client      *http.Client
	decorate    RequestDecorator
	contentType string
	accept      string
	logger      zerolog.Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *Transport) { t.client = c }
}

// WithDecorator sets the hook run on every outgoing request.
func WithDecorator(fn RequestDecorator) TransportOption {
	return func(t *Transport) { t.decorate = fn }
}

// WithMediaType sets the Content-Type and Accept headers.
func WithMediaType(mediaType string) TransportOption {
	return func(t *Transport) {
		t.contentType = mediaType
		t.accept = mediaType
	}
}

func WithLogger(logger zerolog.Logger) TransportOption {
	return func(t *Transport) { t.logger = logger }
}

func NewTransport(vendor, baseURL string, timeout time.Duration, opts ...TransportOption) *Transport {
	t := &Transport{
		vendor:      vendor,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      NewHTTPClient(timeout),
		contentType: "application/json",
		accept:      "application/json",
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Call describes a single vendor request. Op and Resource name the request
// in errors, for example "create" and "Patient".
type Call struct {
	Op       string
	Resource string
	Method   string
	Path     string
	Query    url.Values
	Body     interface{}
	Out      interface{}
	// Location, when set, receives the response Location header.
	Location *string
}

// URL joins the base URL with path and query.
func (t *Transport) URL(path string, query url.Values) string {
	u := t.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Do performs the call. A non-2xx status is returned as *APIError; decoder
// failures on a 2xx body are returned wrapped.
func (t *Transport) Do(ctx context.Context, call Call) error {
	var body io.Reader
	if call.Body != nil {
		buf, err := json.Marshal(call.Body)
		if err != nil {
			return fmt.Errorf("%s: encode %s: %w", t.vendor, call.Resource, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, t.URL(call.Path, call.Query), body)
	if err != nil {
		return fmt.Errorf("%s: build %s request: %w", t.vendor, call.Resource, err)
	}
	req.Header.Set("Accept", t.accept)
	if body != nil {
		req.Header.Set("Content-Type", t.contentType)
	}
	if t.decorate != nil {
		if err := t.decorate(ctx, req); err != nil {
			return err
		}
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug().Err(err).
			Str("vendor", t.vendor).
			Str("method", call.Method).
			Str("path", call.Path).
			Dur("latency", time.Since(start)).
			Msg("vendor request failed")
		return fmt.Errorf("%s: %s %s: %w", t.vendor, call.Op, call.Resource, err)
	}
	defer resp.Body.Close()

	t.logger.Debug().
		Str("vendor", t.vendor).
		Str("method", call.Method).
		Str("path", call.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("vendor request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Vendor:     t.vendor,
			Op:         call.Op,
			Resource:   call.Resource,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
		}
	}

	if call.Location != nil {
		*call.Location = resp.Header.Get("Location")
	}
	if call.Out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read %s response: %w", t.vendor, call.Resource, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, call.Out); err != nil {
		return fmt.Errorf("%s: decode %s response: %w", t.vendor, call.Resource, err)
	}
	return nil
}
