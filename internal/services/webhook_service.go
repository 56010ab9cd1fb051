package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"
)

// WebhookService posts pipeline events to a user-configured URL.
type WebhookService struct {
	Client   *http.Client
	Secret   string
	Logger   *slog.Logger
	Attempts int
	Backoff  time.Duration

	now func() time.Time
}

func NewWebhookService(secret string, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		Client:   &http.Client{Timeout: 10 * time.Second},
		Secret:   secret,
		Logger:   logger,
		Attempts: 3,
		Backoff:  time.Second,
		now:      time.Now,
	}
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Notify posts {event, sentAt, ...payload}. Client errors are not retried.
func (s *WebhookService) Notify(ctx context.Context, url, event string, payload map[string]any) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}

	body := maps.Clone(payload)
	if body == nil {
		body = map[string]any{}
	}
	body["event"] = event
	body["sentAt"] = s.now().UTC().Format(time.RFC3339)
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	return s.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
		if err != nil {
			return permanentError{err}
		}
		req.Header.Set("Content-Type", "application/json")
		if s.Secret != "" {
			req.Header.Set("Authorization", "Bearer "+s.Secret)
		}

		resp, err := s.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 300 {
			return nil
		}
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err = fmt.Errorf("webhook POST failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(text)))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return permanentError{err}
		}
		return err
	})
}

// retry executes f with exponential backoff.
func (s *WebhookService) retry(ctx context.Context, f func() error) error {
	sleep := s.Backoff
	attempts := max(s.Attempts, 1)
	var err error
	for i := range attempts {
		if err = f(); err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if i == attempts-1 {
			break
		}

		s.Logger.Warn("webhook delivery failed, retrying", "error", err, "retry_in", sleep)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		sleep *= 2
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}
