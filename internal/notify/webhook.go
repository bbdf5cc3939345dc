// Package notify posts harvest run summaries to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// Colors for Discord embeds
	colorRed   = 15158332 // 0xE74C3C - for failures
	colorGreen = 5763719  // 0x57F287 - for completed runs

	// Default timeout for webhook requests
	defaultWebhookTimeout = 10 * time.Second

	// Max retries for rate limiting
	maxRetries = 3
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// NewRunCompletedPayload creates a payload for a finished harvest run.
func NewRunCompletedPayload(matches, requests int64, runtime time.Duration, cursor time.Time) WebhookPayload {
	return WebhookPayload{
		Embeds: []Embed{
			{
				Title: "✅ Harvest Completed",
				Color: colorGreen,
				Fields: []EmbedField{
					{
						Name:   "Matches",
						Value:  formatNumber(matches),
						Inline: true,
					},
					{
						Name:   "Requests",
						Value:  formatNumber(requests),
						Inline: true,
					},
					{
						Name:   "Runtime",
						Value:  formatDuration(runtime),
						Inline: true,
					},
				},
				Footer: &EmbedFooter{
					Text: "Cursor: " + cursor.Format(time.RFC3339),
				},
			},
		},
	}
}

// NewRunFailedPayload creates a payload for a harvest run that stopped with
// an error. The cursor marks where a resumed run should start.
func NewRunFailedPayload(cause error, matches int64, cursor time.Time) WebhookPayload {
	return WebhookPayload{
		Content: "@here Harvest failed!",
		Embeds: []Embed{
			{
				Title:       "🔴 Harvest Failed",
				Color:       colorRed,
				Description: cause.Error(),
				Fields: []EmbedField{
					{
						Name:   "Matches Collected",
						Value:  formatNumber(matches),
						Inline: true,
					},
					{
						Name:   "Resume From",
						Value:  cursor.Format(time.RFC3339),
						Inline: true,
					},
				},
				Footer: &EmbedFooter{
					Text: "Restart with -after set to the resume point",
				},
			},
		},
	}
}

// WebhookClient sends notifications to a Discord webhook. A client with an
// empty URL is valid and drops every payload.
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// SendRunCompleted sends a completed-run summary.
func (c *WebhookClient) SendRunCompleted(ctx context.Context, matches, requests int64, runtime time.Duration, cursor time.Time) error {
	return c.sendPayload(ctx, NewRunCompletedPayload(matches, requests, runtime, cursor))
}

// SendRunFailed sends a failed-run notification.
func (c *WebhookClient) SendRunFailed(ctx context.Context, cause error, matches int64, cursor time.Time) error {
	return c.sendPayload(ctx, NewRunFailedPayload(cause, matches, cursor))
}

// sendPayload sends a webhook payload with retry on rate limiting
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	if c.webhookURL == "" {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Success - Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		// Rate limited - wait and retry
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := resp.Header.Get("Retry-After")
			waitDuration := time.Second // Default wait
			if retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					waitDuration = time.Duration(seconds) * time.Second
				}
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		// Other error
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int64) string {
	if n < 1000 {
		return strconv.FormatInt(n, 10)
	}

	// Simple comma formatting
	s := strconv.FormatInt(n, 10)
	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xh Ym" (e.g., 18h 32m)
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
