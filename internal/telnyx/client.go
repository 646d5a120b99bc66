package telnyx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/quietline/frontdesk/internal/config"
)

const defaultVoicemailMessage = "Thank you for calling. Please leave a detailed message after the beep, and we'll get back to you as soon as possible."

// SettingsSource resolves operator-editable settings such as the voicemail
// greeting. A missing key yields the empty string.
type SettingsSource interface {
	Setting(key string) string
}

// Client wraps the Telnyx call-control REST API. It knows nothing about call
// sessions; it only issues commands against a call-control id.
type Client struct {
	apiKey        string
	baseURL       string
	webhookSecret string
	settings      SettingsSource
	http          *http.Client
}

// New builds a call-control client from configuration.
func New(cfg config.TelnyxConfig, settings SettingsSource) *Client {
	if cfg.APIKey == "" {
		log.Println("[telnyx] warning: TELNYX_API_KEY not configured, call-control commands will fail")
	}

	return &Client{
		apiKey:        cfg.APIKey,
		baseURL:       cfg.BaseURL,
		webhookSecret: cfg.WebhookSecret,
		settings:      settings,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telnyx request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read telnyx response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("telnyx api error: %d %s", resp.StatusCode, string(raw))
	}

	return json.RawMessage(raw), nil
}

// Answer picks up an incoming call.
func (c *Client) Answer(ctx context.Context, callControlID string) error {
	_, err := c.request(ctx, http.MethodPost, "/calls/"+callControlID+"/actions/answer", nil)
	return err
}

// Hangup terminates a call.
func (c *Client) Hangup(ctx context.Context, callControlID string) error {
	_, err := c.request(ctx, http.MethodPost, "/calls/"+callControlID+"/actions/hangup", nil)
	return err
}

// StartTranscription enables provider-side speech-to-text on the inbound leg.
func (c *Client) StartTranscription(ctx context.Context, callControlID string) error {
	_, err := c.request(ctx, http.MethodPost, "/calls/"+callControlID+"/actions/transcription_start", map[string]string{
		"transcription_engine":   "A",
		"transcription_language": "en",
		"transcription_tracks":   "inbound_track",
	})
	return err
}

// StopTranscription disables speech-to-text for the call.
func (c *Client) StopTranscription(ctx context.Context, callControlID string) error {
	_, err := c.request(ctx, http.MethodPost, "/calls/"+callControlID+"/actions/transcription_stop", nil)
	return err
}

// Speak plays a text-to-speech message on the call.
func (c *Client) Speak(ctx context.Context, callControlID, text string) error {
	_, err := c.request(ctx, http.MethodPost, "/calls/"+callControlID+"/actions/speak", map[string]string{
		"payload":  text,
		"voice":    "female",
		"language": "en-US",
	})
	return err
}

// Transfer moves the call to another destination (phone number or SIP URI).
func (c *Client) Transfer(ctx context.Context, callControlID, to string) error {
	_, err := c.request(ctx, http.MethodPost, "/calls/"+callControlID+"/actions/transfer", map[string]string{
		"to": to,
	})
	return err
}

// SendToVoicemail speaks the voicemail greeting and starts recording.
func (c *Client) SendToVoicemail(ctx context.Context, callControlID string) error {
	message := c.settings.Setting("voicemail_message")
	if message == "" {
		message = defaultVoicemailMessage
	}

	if err := c.Speak(ctx, callControlID, message); err != nil {
		return err
	}

	_, err := c.request(ctx, http.MethodPost, "/calls/"+callControlID+"/actions/record_start", map[string]any{
		"format":    "mp3",
		"channels":  "single",
		"play_beep": true,
	})
	return err
}

// CreateOutboundCall dials an outbound call leg.
func (c *Client) CreateOutboundCall(ctx context.Context, to, from, connectionID string) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPost, "/calls", map[string]string{
		"to":            to,
		"from":          from,
		"connection_id": connectionID,
	})
}

// GetCallInfo fetches the provider's view of a call leg.
func (c *Client) GetCallInfo(ctx context.Context, callControlID string) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, "/calls/"+callControlID, nil)
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature over
// timestamp+payload. When no webhook secret is configured verification is
// skipped, which is logged because it leaves the endpoint open.
func (c *Client) VerifyWebhookSignature(payload []byte, signature, timestamp string) bool {
	if c.webhookSecret == "" {
		log.Println("[telnyx] warning: TELNYX_WEBHOOK_SECRET not configured, accepting unsigned webhook")
		return true
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
