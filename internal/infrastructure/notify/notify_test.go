package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

var sample = ports.Notification{
	Subject: "1 nouveau(x) appel(s) d'offres - PMN Marchés Publics",
	Text:    "*AO-2026-001234*\nMarché de nettoyage des locaux",
	HTML:    "<p>AO-2026-001234</p>",
}

func TestFormatPhone(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   string
		want string
		ok   bool
	}{
		"local":            {"77 123 45 67", "221771234567", true},
		"leading zero":     {"0771234567", "221771234567", true},
		"international":    {"+221 77-123-45-67", "221771234567", true},
		"already prefixed": {"221771234567", "221771234567", true},
		"too short":        {"77 12", "", false},
		"too long":         {"+221 77 123 45 67 89", "", false},
		"empty":            {"", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, ok := FormatPhone(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWhatsAppDeliver(t *testing.T) {
	t.Parallel()

	var body whatsAppMessage
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	ch := NewWhatsAppChannel(WhatsAppConfig{APIURL: srv.URL, PhoneNumberID: "12345", AccessToken: "secret"}, nil)
	require.NoError(t, ch.Deliver(context.Background(), "77 123 45 67", sample))

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "/12345/messages", path)
	assert.Equal(t, "whatsapp", body.MessagingProduct)
	assert.Equal(t, "individual", body.RecipientType)
	assert.Equal(t, "221771234567", body.To)
	assert.Equal(t, "text", body.Type)
	assert.True(t, body.Text.PreviewURL)
	assert.Equal(t, sample.Text, body.Text.Body)
}

func TestWhatsAppErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Recipient phone number not in allowed list"}}`))
	}))
	defer srv.Close()

	ch := NewWhatsAppChannel(WhatsAppConfig{APIURL: srv.URL, PhoneNumberID: "1", AccessToken: "t"}, nil)
	err := ch.Deliver(context.Background(), "771234567", sample)
	assert.ErrorContains(t, err, "not in allowed list")

	err = ch.Deliver(context.Background(), "12", sample)
	assert.True(t, eris.Is(err, ErrInvalidAddress))

	err = NewWhatsAppChannel(WhatsAppConfig{}, nil).Deliver(context.Background(), "771234567", sample)
	assert.True(t, eris.Is(err, ErrNotConfigured))
}

func TestTelegramDeliver(t *testing.T) {
	t.Parallel()

	var form map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"chat_id":    r.PostForm.Get("chat_id"),
			"text":       r.PostForm.Get("text"),
			"parse_mode": r.PostForm.Get("parse_mode"),
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ch := NewTelegramChannel("token", srv.URL)
	require.NoError(t, ch.Deliver(context.Background(), "-100200", sample))
	assert.Equal(t, "/bottoken/sendMessage", path)
	assert.Equal(t, "-100200", form["chat_id"])
	assert.Equal(t, sample.Text, form["text"])
	assert.Equal(t, "Markdown", form["parse_mode"])
}

func TestTelegramErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewTelegramChannel("bad", srv.URL).Deliver(context.Background(), "1", sample)
	assert.ErrorContains(t, err, "401")

	err = NewTelegramChannel("", srv.URL).Deliver(context.Background(), "1", sample)
	assert.True(t, eris.Is(err, ErrNotConfigured))

	err = NewTelegramChannel("token", srv.URL).Deliver(context.Background(), " ", sample)
	assert.True(t, eris.Is(err, ErrInvalidAddress))
}

type sendCall struct {
	mail *email.Email
	addr string
	auth smtp.Auth
}

func TestEmailDeliver(t *testing.T) {
	t.Parallel()

	var calls []sendCall
	ch := NewEmailChannel(SMTPConfig{
		Host:        "smtp.example.sn",
		Port:        587,
		Username:    "alerts",
		Password:    "pw",
		FromName:    "PMN Marchés Publics",
		FromAddress: "alerts@example.sn",
	})
	ch.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		calls = append(calls, sendCall{e, addr, auth})
		if auth != nil {
			return eris.New("smtp: server doesn't support AUTH")
		}
		return nil
	}

	require.NoError(t, ch.Deliver(context.Background(), "artisan@example.sn", sample))
	require.Len(t, calls, 2)
	assert.NotNil(t, calls[0].auth)
	assert.Nil(t, calls[1].auth)

	mail := calls[1].mail
	assert.Equal(t, "smtp.example.sn:587", calls[1].addr)
	assert.Equal(t, "PMN Marchés Publics <alerts@example.sn>", mail.From)
	assert.Equal(t, []string{"artisan@example.sn"}, mail.To)
	assert.Equal(t, sample.Subject, mail.Subject)
	assert.Equal(t, []byte(sample.Text), mail.Text)
	assert.Equal(t, []byte(sample.HTML), mail.HTML)
}

func TestEmailErrors(t *testing.T) {
	t.Parallel()

	ch := NewEmailChannel(SMTPConfig{Host: "smtp.example.sn", Port: 25, FromAddress: "alerts@example.sn"})
	ch.send = func(*email.Email, string, smtp.Auth) error { return eris.New("connection refused") }

	err := ch.Deliver(context.Background(), "artisan@example.sn", sample)
	assert.ErrorContains(t, err, "connection refused")

	err = ch.Deliver(context.Background(), "not-an-email", sample)
	assert.True(t, eris.Is(err, ErrInvalidAddress))

	err = NewEmailChannel(SMTPConfig{}).Deliver(context.Background(), "artisan@example.sn", sample)
	assert.True(t, eris.Is(err, ErrNotConfigured))
}
