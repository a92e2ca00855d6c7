package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWhatsAppSend(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.test123"}]}`))
	}))
	defer server.Close()

	client := NewWhatsAppClient(WhatsAppConfig{
		AccessToken:   "token-abc",
		PhoneNumberID: "1055512345",
		APIVersion:    "v18.0",
		BaseURL:       server.URL,
		SendTimeout:   5 * time.Second,
	})

	receipt, err := client.Send(context.Background(), "+254 700-000-001", "Hello there")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if receipt != "wamid.test123" {
		t.Errorf("receipt = %q, want %q", receipt, "wamid.test123")
	}
	if gotPath != "/v18.0/1055512345/messages" {
		t.Errorf("path = %q, want %q", gotPath, "/v18.0/1055512345/messages")
	}
	if gotAuth != "Bearer token-abc" {
		t.Errorf("auth header = %q, want bearer token", gotAuth)
	}

	if gotBody["messaging_product"] != "whatsapp" {
		t.Errorf("messaging_product = %v, want whatsapp", gotBody["messaging_product"])
	}
	if gotBody["to"] != "254700000001" {
		t.Errorf("to = %v, want digits-only phone", gotBody["to"])
	}
	text, ok := gotBody["text"].(map[string]any)
	if !ok || text["body"] != "Hello there" {
		t.Errorf("text body = %v, want message content", gotBody["text"])
	}
}

func TestWhatsAppSendTemplate(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.tmpl1"}]}`))
	}))
	defer server.Close()

	client := NewWhatsAppClient(WhatsAppConfig{
		AccessToken:   "token-abc",
		PhoneNumberID: "1055512345",
		BaseURL:       server.URL,
	})

	receipt, err := client.SendTemplate(context.Background(), "254700000001", "hello_world")
	if err != nil {
		t.Fatalf("SendTemplate() error = %v", err)
	}
	if receipt != "wamid.tmpl1" {
		t.Errorf("receipt = %q, want %q", receipt, "wamid.tmpl1")
	}

	tmpl, ok := gotBody["template"].(map[string]any)
	if !ok {
		t.Fatalf("template payload missing: %v", gotBody)
	}
	if tmpl["name"] != "hello_world" {
		t.Errorf("template name = %v, want hello_world", tmpl["name"])
	}
}

func TestWhatsAppSendNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid token"}}`))
	}))
	defer server.Close()

	client := NewWhatsAppClient(WhatsAppConfig{
		AccessToken: "bad-token",
		BaseURL:     server.URL,
	})

	_, err := client.Send(context.Background(), "254700000001", "Hello")
	if err == nil {
		t.Fatal("Send() error = nil, want failure for 401")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid token") {
		t.Errorf("error %q does not carry status and body", err)
	}
}

func TestWhatsAppSendMissingMessageID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[]}`))
	}))
	defer server.Close()

	client := NewWhatsAppClient(WhatsAppConfig{BaseURL: server.URL})

	if _, err := client.Send(context.Background(), "254700000001", "Hello"); err == nil {
		t.Fatal("Send() error = nil, want missing message id failure")
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+254700000001", "254700000001"},
		{"+254 700-000-001", "254700000001"},
		{"(254) 700 000 001", "254700000001"},
		{"254700000001", "254700000001"},
	}

	for _, tt := range tests {
		if got := normalizePhone(tt.in); got != tt.want {
			t.Errorf("normalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMockSender(t *testing.T) {
	sender := NewMockSender(1.0)

	receipt, err := sender.Send(context.Background(), "254700000001", "Hello")
	if err != nil {
		t.Fatalf("Send() error = %v with success rate 1.0", err)
	}
	if receipt == "" {
		t.Error("Send() returned empty receipt")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sender.Send(ctx, "254700000001", "Hello"); err == nil {
		t.Error("Send() error = nil with cancelled context")
	}
}
