package notify

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// DefaultTelegramAPIURL is the Bot API endpoint.
const DefaultTelegramAPIURL = "https://api.telegram.org"

// TelegramChannel posts Markdown messages to a chat via the Bot API.
type TelegramChannel struct {
	botToken string
	client   *resty.Client
}

var _ ports.NotificationChannel = (*TelegramChannel)(nil)

// NewTelegramChannel registers the bot token; apiURL may be empty.
func NewTelegramChannel(botToken, apiURL string) *TelegramChannel {
	if apiURL == "" {
		apiURL = DefaultTelegramAPIURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetTimeout(defaultTimeout)
	return &TelegramChannel{botToken: botToken, client: client}
}

// Name implements ports.NotificationChannel.
func (c *TelegramChannel) Name() string { return ChannelTelegram }

// Deliver sends msg.Text to the chat id in address.
func (c *TelegramChannel) Deliver(ctx context.Context, address string, msg ports.Notification) error {
	if c.botToken == "" {
		return eris.Wrap(ErrNotConfigured, "telegram")
	}
	if strings.TrimSpace(address) == "" {
		return eris.Wrap(ErrInvalidAddress, "telegram: empty chat id")
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":    address,
			"text":       msg.Text,
			"parse_mode": "Markdown",
		}).
		Post("/bot" + c.botToken + "/sendMessage")
	if err != nil {
		return eris.Wrap(err, "telegram: do request")
	}
	if resp.StatusCode() != http.StatusOK {
		return eris.Errorf("telegram error: %s", resp.Status())
	}
	return nil
}
