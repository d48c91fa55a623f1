package ehr_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/ehr/ehrtest"
)

func TestCachingProvider_OneClientPerUser(t *testing.T) {
	var (
		mu    sync.Mutex
		built []string
	)
	p := ehr.NewProvider(ehr.VendorModMed, func(userID string) (ehr.Client, error) {
		mu.Lock()
		built = append(built, userID)
		mu.Unlock()
		return ehrtest.NewClient(ehr.VendorModMed), nil
	}, nil)

	ctx := context.Background()
	first, err := p.ClientFor(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := p.ClientFor(ctx, "user-1")
			if err != nil || c != first {
				t.Errorf("expected the cached client, got %v %v", c, err)
			}
		}()
	}
	wg.Wait()

	other, err := p.ClientFor(ctx, "user-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other == first {
		t.Error("expected a separate client for another user")
	}
	if len(built) != 2 {
		t.Errorf("expected 2 clients built, got %v", built)
	}
	if p.Vendor() != ehr.VendorModMed {
		t.Errorf("unexpected vendor %q", p.Vendor())
	}
}

func TestCachingProvider_NoUser(t *testing.T) {
	p := ehr.NewProvider(ehr.VendorAthena, func(string) (ehr.Client, error) {
		t.Fatal("factory must not run without a user")
		return nil, nil
	}, nil)

	_, err := p.ClientFor(context.Background(), "")
	if !errors.Is(err, ehr.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestCachingProvider_FactoryErrorNotCached(t *testing.T) {
	calls := 0
	p := ehr.NewProvider(ehr.VendorAthena, func(string) (ehr.Client, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("token store unavailable")
		}
		return ehrtest.NewClient(ehr.VendorAthena), nil
	}, nil)

	if _, err := p.ClientFor(context.Background(), "u"); err == nil {
		t.Fatal("expected factory error")
	}
	if _, err := p.ClientFor(context.Background(), "u"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestCachingProvider_WithCredentials(t *testing.T) {
	var got ehr.Credentials
	p := ehr.NewProvider(ehr.VendorModMed, nil, func(creds ehr.Credentials) (ehr.Client, error) {
		got = creds
		return ehrtest.NewClient(ehr.VendorModMed), nil
	})

	creds := ehr.Credentials{ClientID: "id", ClientSecret: "secret", UseSandbox: true}
	c, err := p.WithCredentials(creds)
	if err != nil || c == nil {
		t.Fatalf("unexpected result %v %v", c, err)
	}
	if got != creds {
		t.Errorf("expected credentials to reach the factory, got %+v", got)
	}
}
