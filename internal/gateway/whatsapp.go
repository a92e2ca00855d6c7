package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WhatsAppConfig holds the credentials and endpoint settings for the
// WhatsApp Cloud API. Supplied once at startup; the client never reads
// ambient state.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
	BaseURL       string // overridable for tests; defaults to the Graph API
	SendTimeout   time.Duration
}

// WhatsAppClient sends text and template messages through the WhatsApp
// Cloud API.
type WhatsAppClient struct {
	accessToken string
	baseURL     string
	client      *http.Client
}

// NewWhatsAppClient creates a WhatsApp Cloud API client
func NewWhatsAppClient(cfg WhatsAppConfig) *WhatsAppClient {
	version := cfg.APIVersion
	if version == "" {
		version = "v18.0"
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://graph.facebook.com"
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &WhatsAppClient{
		accessToken: cfg.AccessToken,
		baseURL:     fmt.Sprintf("%s/%s/%s", base, version, cfg.PhoneNumberID),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

type templatePayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Template         struct {
		Name     string `json:"name"`
		Language struct {
			Code string `json:"code"`
		} `json:"language"`
	} `json:"template"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send delivers a text message to one recipient and returns the
// provider message id as the receipt.
func (c *WhatsAppClient) Send(ctx context.Context, phoneNumber, content string) (string, error) {
	payload := textPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               normalizePhone(phoneNumber),
		Type:             "text",
	}
	payload.Text.Body = content

	return c.post(ctx, payload)
}

// SendTemplate delivers a pre-approved template message to one recipient
func (c *WhatsAppClient) SendTemplate(ctx context.Context, phoneNumber, templateName string) (string, error) {
	payload := templatePayload{
		MessagingProduct: "whatsapp",
		To:               normalizePhone(phoneNumber),
		Type:             "template",
	}
	payload.Template.Name = templateName
	payload.Template.Language.Code = "en_US"

	return c.post(ctx, payload)
}

func (c *WhatsAppClient) post(ctx context.Context, payload any) (string, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("whatsapp api returned status %d body=%q", resp.StatusCode, string(body))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("failed to decode response: %w body=%q", err, string(body))
	}
	if len(sr.Messages) == 0 || sr.Messages[0].ID == "" {
		return "", fmt.Errorf("missing message id in response body=%q", string(body))
	}

	return sr.Messages[0].ID, nil
}

// normalizePhone strips everything but digits, the format the Cloud
// API expects.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
