package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Nlkomaru/vrc-playtime/internal/logger"
)

const (
	timeout      = 30 * time.Second
	maxErrorBody = 4 << 10
)

// ErrMissingWebhook is returned when no webhook URL is configured.
var ErrMissingWebhook = errors.New("missing Discord webhook URL")

// StatusError reports a non-2xx response from the webhook endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discord webhook error (status %d): %s", e.StatusCode, e.Body)
}

var tracer = otel.Tracer("github.com/Nlkomaru/vrc-playtime/internal/discord")

// Client posts payloads to a single Discord webhook.
type Client struct {
	webhookURL string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a webhook client. An empty URL is accepted; Send reports it.
func NewClient(webhookURL string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Send makes exactly one delivery attempt. Failures are logged and returned.
func (c *Client) Send(ctx context.Context, payload WebhookPayload) error {
	if c.webhookURL == "" {
		c.log.Error("Missing Discord webhook URL", nil, ErrMissingWebhook)
		return ErrMissingWebhook
	}

	ctx, span := tracer.Start(ctx, "discord.Send")
	defer span.End()

	err := c.post(ctx, payload)
	if err != nil {
		logger.IncrCounter("discord.failures")
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook failed")

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			span.SetAttributes(attribute.Int("http.status_code", statusErr.StatusCode))
			c.log.Error("Discord webhook failed", logger.Fields{"status": statusErr.StatusCode}, err)
		} else {
			c.log.Error("Error sending to Discord", nil, err)
		}
		return err
	}

	logger.IncrCounter("discord.deliveries")
	return nil
}

func (c *Client) post(ctx context.Context, payload WebhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	logger.RecordTiming("discord.send", time.Since(start))
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return nil
}
