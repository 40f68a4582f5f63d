// Package notify delivers rendered notifications over email, WhatsApp and Telegram.
package notify

import (
	"time"

	"github.com/rotisserie/eris"
)

const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelTelegram = "telegram"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrNotConfigured is returned when a channel lacks credentials.
	ErrNotConfigured = eris.New("channel not configured")
	// ErrInvalidAddress is returned for addresses the channel cannot reach.
	ErrInvalidAddress = eris.New("invalid address")
)
