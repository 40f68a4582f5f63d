package notify

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// DefaultWhatsAppAPIURL is the Graph API base used when none is configured.
const DefaultWhatsAppAPIURL = "https://graph.facebook.com/v17.0"

const senegalCountryCode = "221"

// WhatsAppConfig holds the Business API credentials.
type WhatsAppConfig struct {
	APIURL        string
	PhoneNumberID string
	AccessToken   string
}

// WhatsAppChannel sends text messages through the WhatsApp Business API.
type WhatsAppChannel struct {
	cfg    WhatsAppConfig
	client *resty.Client
	logger *slog.Logger
}

var _ ports.NotificationChannel = (*WhatsAppChannel)(nil)

type whatsAppText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type whatsAppMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewWhatsAppChannel configures the resty client with the bearer token.
func NewWhatsAppChannel(cfg WhatsAppConfig, logger *slog.Logger) *WhatsAppChannel {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultWhatsAppAPIURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetAuthToken(cfg.AccessToken).
		SetTimeout(defaultTimeout)
	return &WhatsAppChannel{cfg: cfg, client: client, logger: logger.With("component", "whatsapp")}
}

// Name implements ports.NotificationChannel.
func (c *WhatsAppChannel) Name() string { return ChannelWhatsApp }

// Deliver posts msg.Text to the phone number in address.
func (c *WhatsAppChannel) Deliver(ctx context.Context, address string, msg ports.Notification) error {
	if c.cfg.PhoneNumberID == "" || c.cfg.AccessToken == "" {
		return eris.Wrap(ErrNotConfigured, "whatsapp")
	}
	phone, ok := FormatPhone(address)
	if !ok {
		return eris.Wrapf(ErrInvalidAddress, "whatsapp %q", address)
	}

	var apiErr whatsAppError
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(whatsAppMessage{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               phone,
			Type:             "text",
			Text:             whatsAppText{PreviewURL: true, Body: msg.Text},
		}).
		SetError(&apiErr).
		SetPathParam("phoneNumberID", c.cfg.PhoneNumberID).
		Post("/{phoneNumberID}/messages")
	if err != nil {
		return eris.Wrapf(err, "whatsapp to %s", phone)
	}
	if resp.StatusCode() != http.StatusOK {
		reason := apiErr.Error.Message
		if reason == "" {
			reason = resp.Status()
		}
		return eris.Errorf("whatsapp to %s: %s", phone, reason)
	}
	c.logger.Debug("whatsapp message sent", "to", phone)
	return nil
}

// FormatPhone normalises a Senegalese number to 221XXXXXXXXX.
func FormatPhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "0") {
		digits = senegalCountryCode + digits[1:]
	}
	if !strings.HasPrefix(digits, senegalCountryCode) {
		digits = senegalCountryCode + digits
	}
	if len(digits) != 12 {
		return "", false
	}
	return digits, true
}
