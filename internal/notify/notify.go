package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

type Config struct {
	SendgridAPIKey    string
	SendgridFromEmail string
	SendgridFromName  string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
}

// Notifier delivers e-mail through SendGrid and SMS through Twilio. A channel
// whose credentials are missing is skipped with a log line.
type Notifier struct {
	cfg    Config
	email  *sendgrid.Client
	sms    *twilio.RestClient
	logger *zap.Logger
}

var ErrChannelDisabled = errors.New("notification channel is not configured")

func New(cfg Config, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{cfg: cfg, logger: logger}
	if cfg.SendgridAPIKey != "" && cfg.SendgridFromEmail != "" {
		n.email = sendgrid.NewSendClient(cfg.SendgridAPIKey)
	}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		n.sms = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username:   cfg.TwilioAccountSID,
			Password:   cfg.TwilioAuthToken,
			AccountSid: cfg.TwilioAccountSID,
		})
	}
	if n.email == nil {
		logger.Info("email notifications disabled (SENDGRID_API_KEY or SENDGRID_FROM_EMAIL is empty)")
	}
	if n.sms == nil {
		logger.Info("sms notifications disabled (TWILIO credentials are incomplete)")
	}
	return n
}

func (n *Notifier) EmailEnabled() bool { return n != nil && n.email != nil }
func (n *Notifier) SMSEnabled() bool   { return n != nil && n.sms != nil }

func (n *Notifier) SendEmail(ctx context.Context, toEmail, toName string, msg Message) error {
	if !n.EmailEnabled() {
		return ErrChannelDisabled
	}
	fromName := n.cfg.SendgridFromName
	if fromName == "" {
		fromName = "Pendakian"
	}
	message := mail.NewSingleEmail(
		mail.NewEmail(fromName, n.cfg.SendgridFromEmail),
		msg.Subject,
		mail.NewEmail(toName, toEmail),
		msg.Text,
		msg.HTML,
	)
	res, err := n.email.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	n.logger.Info("email sent", zap.String("to", toEmail), zap.String("subject", msg.Subject))
	return nil
}

func (n *Notifier) SendSMS(toPhone, body string) error {
	if !n.SMSEnabled() {
		return ErrChannelDisabled
	}
	to, ok := NormalizePhone(toPhone)
	if !ok {
		return fmt.Errorf("invalid phone number %q", toPhone)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(n.cfg.TwilioFromNumber)
	params.SetBody(body)

	resp, err := n.sms.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	n.logger.Info("sms sent", zap.String("to", to), zap.String("sid", sid))
	return nil
}

// NormalizePhone converts Indonesian local numbers (08xx, 628xx) to E.164.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", false
		}
	}
	digits := b.String()
	switch {
	case strings.HasPrefix(digits, "+"):
	case strings.HasPrefix(digits, "62"):
		digits = "+" + digits
	case strings.HasPrefix(digits, "0"):
		digits = "+62" + digits[1:]
	default:
		return "", false
	}
	if len(digits) < 10 || len(digits) > 16 {
		return "", false
	}
	return digits, true
}
