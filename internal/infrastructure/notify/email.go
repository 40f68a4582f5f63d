package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// EmailChannel sends notifications as multipart text/HTML mail.
type EmailChannel struct {
	cfg  SMTPConfig
	send sendFunc
}

var _ ports.NotificationChannel = (*EmailChannel)(nil)

// NewEmailChannel binds the SMTP settings.
func NewEmailChannel(cfg SMTPConfig) *EmailChannel {
	return &EmailChannel{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// Name implements ports.NotificationChannel.
func (c *EmailChannel) Name() string { return ChannelEmail }

// Deliver sends msg to address. Servers that refuse AUTH are retried
// without credentials.
func (c *EmailChannel) Deliver(ctx context.Context, address string, msg ports.Notification) error {
	if c.cfg.Host == "" || c.cfg.FromAddress == "" {
		return eris.Wrap(ErrNotConfigured, "email")
	}
	if !strings.Contains(address, "@") {
		return eris.Wrapf(ErrInvalidAddress, "email %q", address)
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "email")
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("%s <%s>", c.cfg.FromName, c.cfg.FromAddress)
	if c.cfg.FromName == "" {
		mail.From = c.cfg.FromAddress
	}
	mail.To = []string{address}
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.Text)
	if msg.HTML != "" {
		mail.HTML = []byte(msg.HTML)
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}
	err := c.send(mail, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = c.send(mail, addr, nil)
	}
	return eris.Wrapf(err, "email to %s", address)
}
