package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"identity_api_gateway/internal/identity"
)

func TestFetchResultSuccess(t *testing.T) {
	var gotContentType string
	var gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"resultCode":"2000","resultMsg":"OK","encryptMOKResult":"cipher-payload"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, zaptest.NewLogger(t))

	payload, err := c.FetchResult(context.Background(), "token-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != "cipher-payload" {
		t.Errorf("unexpected payload: %q", payload)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("unexpected content type: %q", gotContentType)
	}
	if gotBody != "data=token-123" {
		t.Errorf("unexpected request body: %q", gotBody)
	}
}

func TestFetchResultTokenIsFormEncoded(t *testing.T) {
	var gotData string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotData = r.PostFormValue("data")
		w.Write([]byte(`{"resultCode":"2000","encryptMOKResult":"x"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, zaptest.NewLogger(t))

	token := "a+b/c==&d"
	if _, err := c.FetchResult(context.Background(), token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotData != token {
		t.Errorf("token arrived mangled: %q", gotData)
	}
}

func TestFetchResultRejected(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		expectInMsg string
	}{
		{
			name:        "with_message",
			response:    `{"resultCode":"4000","resultMsg":"expired token"}`,
			expectInMsg: "expired token",
		},
		{
			name:        "without_message",
			response:    `{"resultCode":"5000"}`,
			expectInMsg: "code 5000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			c := NewClient(server.URL, 5*time.Second, zaptest.NewLogger(t))

			_, err := c.FetchResult(context.Background(), "token-123")
			if !errors.Is(err, identity.ErrProviderRejected) {
				t.Fatalf("expected ErrProviderRejected, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.expectInMsg) {
				t.Errorf("expected error to mention %q, got %q", tt.expectInMsg, err.Error())
			}
		})
	}
}

func TestFetchResultCommunicationFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http_error_status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "malformed_json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>not json</html>"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := NewClient(server.URL, 5*time.Second, zaptest.NewLogger(t))

			_, err := c.FetchResult(context.Background(), "token-123")
			if !errors.Is(err, identity.ErrProviderCommunication) {
				t.Errorf("expected ErrProviderCommunication, got %v", err)
			}
		})
	}
}

func TestFetchResultTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"resultCode":"2000","encryptMOKResult":"late"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 20*time.Millisecond, zaptest.NewLogger(t))

	_, err := c.FetchResult(context.Background(), "token-123")
	if !errors.Is(err, identity.ErrProviderCommunication) {
		t.Errorf("expected ErrProviderCommunication on timeout, got %v", err)
	}
}

func TestFetchResultUnreachableProvider(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, zaptest.NewLogger(t))

	_, err := c.FetchResult(context.Background(), "token-123")
	if !errors.Is(err, identity.ErrProviderCommunication) {
		t.Errorf("expected ErrProviderCommunication, got %v", err)
	}
}
