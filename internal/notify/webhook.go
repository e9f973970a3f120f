package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/mariaback/internal/config"
	"github.com/edvin/mariaback/internal/metrics"
)

// Placeholder is the sample webhook value shipped in config templates. It
// disables delivery the same way an empty URL does.
const Placeholder = "YOUR_WEBHOOK_URL"

// Webhook posts rendered message templates as JSON to a configured endpoint.
type Webhook struct {
	logger zerolog.Logger
	cfg    config.Notifications
	client *http.Client
}

// NewWebhook creates a webhook notifier.
func NewWebhook(logger zerolog.Logger, cfg config.Notifications) *Webhook {
	return &Webhook{
		logger: logger.With().Str("component", "notifier").Logger(),
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Render substitutes the {host}, {database} and {error} placeholders in a
// message template.
func Render(template, host, database, errText string) string {
	r := strings.NewReplacer("{host}", host, "{database}", database, "{error}", errText)
	return r.Replace(template)
}

func (w *Webhook) enabled() bool {
	return w.cfg.WebhookURL != "" && w.cfg.WebhookURL != Placeholder
}

func (w *Webhook) send(ctx context.Context, message string) {
	if !w.enabled() {
		return
	}

	body, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		w.logger.Warn().Err(err).Msg("marshal notification payload")
		return
	}

	// Shutdown of the surrounding run must not cut off its own failure
	// report; the client timeout still bounds the request.
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, w.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		w.logger.Warn().Err(err).Msg("build notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		metrics.NotificationFailuresTotal.Inc()
		w.logger.Warn().Err(err).Msg("notification delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.NotificationFailuresTotal.Inc()
		w.logger.Warn().Int("status", resp.StatusCode).Msg("notification delivery failed")
	}
}

func (w *Webhook) BackupSucceeded(ctx context.Context, host, database string) {
	w.send(ctx, Render(w.cfg.OnSuccess, host, database, ""))
}

func (w *Webhook) BackupFailed(ctx context.Context, host, database string, err error) {
	w.send(ctx, Render(w.cfg.OnFailure, host, database, err.Error()))
}

func (w *Webhook) RestoreSucceeded(ctx context.Context, host, database string) {
	w.send(ctx, Render(w.cfg.OnRestore, host, database, ""))
}

func (w *Webhook) RestoreFailed(ctx context.Context, host, database string, err error) {
	w.send(ctx, Render(w.cfg.OnRestoreFailure, host, database, err.Error()))
}
