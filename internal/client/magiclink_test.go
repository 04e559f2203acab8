package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joseAcevesG/phishingMailAI-sub000/internal/config"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *MagicLinkClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cli, err := NewMagicLinkClient(config.MagicLinkConfig{BaseURL: server.URL, Secret: "provider-secret"})
	if err != nil {
		t.Fatalf("NewMagicLinkClient: %v", err)
	}
	return cli
}

func TestMagicLinkAuthenticate(t *testing.T) {
	cli := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/magic_links/authenticate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer provider-secret" {
			t.Fatalf("missing provider credential")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"a@x.com"}`))
	})

	email, err := cli.Authenticate(context.Background(), "link-token")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if email != "a@x.com" {
		t.Fatalf("expected a@x.com, got %q", email)
	}
}

func TestMagicLinkInvalidTokenIsRejection(t *testing.T) {
	cli := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_type":"invalid_token","error_message":"expired"}`))
	})

	_, err := cli.Authenticate(context.Background(), "stale")
	if err == nil || !IsProviderRejection(err) {
		t.Fatalf("expected provider rejection, got %v", err)
	}
}

func TestMagicLinkServerErrorIsNotRejection(t *testing.T) {
	cli := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := cli.Send(context.Background(), "a@x.com")
	if err == nil {
		t.Fatalf("expected error")
	}
	if IsProviderRejection(err) {
		t.Fatalf("infrastructure failure must not read as rejection")
	}
}
