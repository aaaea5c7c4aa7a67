package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordSendBuildsEmbed(t *testing.T) {
	var got struct {
		Embeds []discordEmbed `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Trade Failed", "sell leg rejected on kraken"))

	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Trade Failed", got.Embeds[0].Title)
	assert.Equal(t, "sell leg rejected on kraken", got.Embeds[0].Description)
	assert.Equal(t, discordColorRed, got.Embeds[0].Color)
	assert.NotEmpty(t, got.Embeds[0].Timestamp)
}

func TestDiscordSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid webhook token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestDiscordColorBySeverity(t *testing.T) {
	assert.Equal(t, discordColorRed, discordColor("COMPENSATION FAILED"))
	assert.Equal(t, discordColorGreen, discordColor("Trade Executed"))
	assert.Equal(t, discordColorGrey, discordColor("Opportunity Detected"))
}

func TestTelegramSendEscapesText(t *testing.T) {
	var path string
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("bot-token", "chat-42")
	s.apiBase = srv.URL
	require.NoError(t, s.Send(context.Background(), "Trade Failed", "spread < 0.5% on BTC/USDT"))

	assert.Equal(t, "/botbot-token/sendMessage", path)
	assert.Equal(t, "chat-42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Equal(t, "<b>Trade Failed</b>\nspread &lt; 0.5% on BTC/USDT", got["text"])
}
