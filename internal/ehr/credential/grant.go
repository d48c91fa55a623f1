package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ehr/ehrbridge/internal/ehr"
)

// defaultLifetime applies when a token response omits expires_in.
const defaultLifetime = time.Hour

// Grant is an OAuth token endpoint response.
type Grant struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   Seconds `json:"expires_in"`
	TokenType   string  `json:"token_type"`
}

// Lifetime converts expires_in into a duration.
func (g *Grant) Lifetime() time.Duration {
	if g.ExpiresIn <= 0 {
		return defaultLifetime
	}
	return time.Duration(g.ExpiresIn) * time.Second
}

// Seconds accepts expires_in as a JSON number or a numeric string.
type Seconds int64

func (s *Seconds) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("expires_in: %w", err)
	}
	*s = Seconds(n)
	return nil
}

// ClientCredentials performs the client_credentials grant.
type ClientCredentials struct {
	Vendor       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	// BasicAuth sends the client id and secret as HTTP Basic credentials
	// instead of form fields.
	BasicAuth bool
	Header    http.Header
	HTTP      *http.Client
}

func (g *ClientCredentials) Fetch(ctx context.Context) (*Grant, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	if g.Scope != "" {
		form.Set("scope", g.Scope)
	}
	if !g.BasicAuth {
		form.Set("client_id", g.ClientID)
		form.Set("client_secret", g.ClientSecret)
	}
	return requestToken(ctx, tokenRequest{
		vendor:   g.Vendor,
		url:      g.TokenURL,
		form:     form,
		header:   g.Header,
		client:   g.HTTP,
		basic:    g.BasicAuth,
		username: g.ClientID,
		password: g.ClientSecret,
	})
}

// Password performs the resource-owner password grant.
type Password struct {
	Vendor       string
	TokenURL     string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	Header       http.Header
	HTTP         *http.Client
}

func (g *Password) Fetch(ctx context.Context) (*Grant, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {g.Username},
		"password":   {g.Password},
	}
	if g.ClientID != "" {
		form.Set("client_id", g.ClientID)
	}
	if g.ClientSecret != "" {
		form.Set("client_secret", g.ClientSecret)
	}
	return requestToken(ctx, tokenRequest{
		vendor: g.Vendor,
		url:    g.TokenURL,
		form:   form,
		header: g.Header,
		client: g.HTTP,
	})
}

type tokenRequest struct {
	vendor   string
	url      string
	form     url.Values
	header   http.Header
	client   *http.Client
	basic    bool
	username string
	password string
}

func requestToken(ctx context.Context, tr tokenRequest) (*Grant, error) {
	client := tr.client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tr.url, bytes.NewBufferString(tr.form.Encode()))
	if err != nil {
		return nil, &ehr.AuthError{Vendor: tr.vendor, Err: err}
	}
	for k, vs := range tr.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if tr.basic {
		req.SetBasicAuth(tr.username, tr.password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ehr.AuthError{Vendor: tr.vendor, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &ehr.AuthError{Vendor: tr.vendor, StatusCode: resp.StatusCode}
	}

	var grant Grant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return nil, &ehr.AuthError{Vendor: tr.vendor, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if grant.AccessToken == "" {
		return nil, &ehr.AuthError{Vendor: tr.vendor, Err: fmt.Errorf("token response has no access_token")}
	}
	return &grant, nil
}
