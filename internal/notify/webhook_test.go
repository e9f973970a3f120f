package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/mariaback/internal/config"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"all placeholders", "Backup of {database} on {host} failed: {error}", "Backup of shop on db1 failed: timed out"},
		{"no placeholders", "plain message", "plain message"},
		{"repeated", "{host} {host}", "db1 db1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.template, "db1", "shop", "timed out"))
		})
	}
}

func TestWebhook_PostsRenderedContent(t *testing.T) {
	var body atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		body.Store(string(b))
	}))
	defer srv.Close()

	w := NewWebhook(zerolog.Nop(), config.Notifications{
		WebhookURL: srv.URL,
		OnFailure:  "Backup of {database} on {host} failed: {error}",
	})

	w.BackupFailed(context.Background(), "db1.example.com", "shop", errors.New("dump failed: access denied"))

	require.NotNil(t, body.Load())
	assert.JSONEq(t, `{"content": "Backup of shop on db1.example.com failed: dump failed: access denied"}`, body.Load().(string))
}

func TestWebhook_DisabledByPlaceholderURL(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	for _, url := range []string{"", Placeholder} {
		w := NewWebhook(zerolog.Nop(), config.Notifications{WebhookURL: url, OnSuccess: "ok"})
		w.BackupSucceeded(context.Background(), "db1.example.com", "shop")
	}

	assert.Equal(t, int32(0), requests.Load())
}

func TestWebhook_ServerErrorDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(zerolog.Nop(), config.Notifications{WebhookURL: srv.URL, OnSuccess: "ok"})
	w.BackupSucceeded(context.Background(), "db1.example.com", "shop")
}

func TestWebhook_SurvivesCanceledContext(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWebhook(zerolog.Nop(), config.Notifications{WebhookURL: srv.URL, OnFailure: "failed: {error}"})
	w.BackupFailed(ctx, "db1.example.com", "shop", errors.New("interrupted"))

	assert.Equal(t, int32(1), requests.Load())
}
