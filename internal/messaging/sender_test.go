package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

func TestWhatsAppSenderSendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload whatsAppTextPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	sender, err := NewWhatsAppSender(WhatsAppConfig{
		Token:         "tok-123",
		PhoneNumberID: "5550001111",
		BaseURL:       srv.URL,
	}, nil, logging.New("error"))
	require.NoError(t, err)

	require.NoError(t, sender.SendText(context.Background(), "5511999990000", "Olá!"))

	assert.Equal(t, "/5550001111/messages", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "whatsapp", gotPayload.MessagingProduct)
	assert.Equal(t, "5511999990000", gotPayload.To)
	assert.Equal(t, "text", gotPayload.Type)
	assert.Equal(t, "Olá!", gotPayload.Text.Body)
}

func TestWhatsAppSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"invalid token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	sender, err := NewWhatsAppSender(WhatsAppConfig{
		Token:         "bad",
		PhoneNumberID: "5550001111",
		BaseURL:       srv.URL,
	}, nil, logging.New("error"))
	require.NoError(t, err)

	err = sender.SendText(context.Background(), "5511999990000", "Olá!")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestWhatsAppSenderValidatesInput(t *testing.T) {
	sender, err := NewWhatsAppSender(WhatsAppConfig{Token: "tok", PhoneNumberID: "id"}, nil, logging.New("error"))
	require.NoError(t, err)

	require.Error(t, sender.SendText(context.Background(), "", "body"))
	require.Error(t, sender.SendText(context.Background(), "to", "  "))
}

func TestNewWhatsAppSenderRequiresCredentials(t *testing.T) {
	_, err := NewWhatsAppSender(WhatsAppConfig{PhoneNumberID: "id"}, nil, nil)
	require.Error(t, err)

	_, err = NewWhatsAppSender(WhatsAppConfig{Token: "tok"}, nil, nil)
	require.Error(t, err)
}

func TestLogSenderNeverFails(t *testing.T) {
	sender := NewLogSender(logging.New("error"))
	require.NoError(t, sender.SendText(context.Background(), "p1", "oi"))
}
