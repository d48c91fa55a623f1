package ehr

import (
	"context"
	"fmt"
	"sync"
)

// ClientFactory builds the client bound to one dashboard user.
type ClientFactory func(userID string) (Client, error)

// CredentialFactory builds an unshared client from supplied credentials.
type CredentialFactory func(creds Credentials) (Client, error)

// CachingProvider memoises one client per user so each user keeps a single
// token slot for the life of the process.
type CachingProvider struct {
	vendor    string
	newClient ClientFactory
	withCreds CredentialFactory

	mu      sync.Mutex
	clients map[string]Client
}

func NewProvider(vendor string, newClient ClientFactory, withCreds CredentialFactory) *CachingProvider {
	return &CachingProvider{
		vendor:    vendor,
		newClient: newClient,
		withCreds: withCreds,
		clients:   make(map[string]Client),
	}
}

func (p *CachingProvider) Vendor() string { return p.vendor }

func (p *CachingProvider) ClientFor(ctx context.Context, userID string) (Client, error) {
	if userID == "" {
		return nil, fmt.Errorf("%s: %w: no user", p.vendor, ErrUnauthenticated)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[userID]; ok {
		return c, nil
	}
	c, err := p.newClient(userID)
	if err != nil {
		return nil, err
	}
	p.clients[userID] = c
	return c, nil
}

func (p *CachingProvider) WithCredentials(creds Credentials) (Client, error) {
	return p.withCreds(creds)
}
