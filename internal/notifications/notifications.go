package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/config"
)

// Notifier delivers a short human-readable alert.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

// Ntfy posts JSON messages to an ntfy server.
type Ntfy struct {
	client *http.Client
	server string
	topic  string
}

// New returns nil when no topic is configured.
func New(cfg config.Notifications) *Ntfy {
	if cfg.NtfyTopic == "" {
		log.Warn().Msg("Ntfy topic not configured - notifications disabled")
		return nil
	}

	log.Info().
		Str("server", cfg.NtfyServer).
		Str("topic", cfg.NtfyTopic).
		Msg("Ntfy notifications initialized")

	return &Ntfy{
		client: &http.Client{Timeout: 10 * time.Second},
		server: strings.TrimSuffix(cfg.NtfyServer, "/"),
		topic:  cfg.NtfyTopic,
	}
}

func (n *Ntfy) Send(ctx context.Context, title, message string) error {
	if n == nil {
		return fmt.Errorf("notifications not initialized")
	}

	payload := map[string]interface{}{
		"topic":   n.topic,
		"title":   title,
		"message": message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.server, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}

	log.Debug().
		Str("title", title).
		Int("status", resp.StatusCode).
		Msg("Notification sent successfully")

	return nil
}
