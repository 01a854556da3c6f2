package emailsvc

import (
	"context"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/trezcool/learnsmart/core"
)

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

var _ core.EmailService = (*smtpService)(nil)

// NewSMTPService sends emails through an authenticated SMTP relay (STARTTLS on port 587).
func NewSMTPService(conf *core.Config) core.EmailService {
	from := conf.DefaultFromEmail()
	return &smtpService{
		dialer: gomail.NewDialer(conf.Email.SMTPHost, conf.Email.SMTPPort, conf.Email.SMTPUser, conf.Email.SMTPPassword),
		from:   from.String(),
	}
}

func (svc *smtpService) SendMessage(_ context.Context, msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return nil
	}
	if err := svc.dialer.DialAndSend(svc.prepare(*msg)); err != nil {
		return core.NewTransportError(err)
	}
	return nil
}

func (svc *smtpService) prepare(msg core.EmailMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", svc.from)
	m.SetHeader("To", addressStrings(msg.To)...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", addressStrings(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", addressStrings(msg.Bcc)...)
	}
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.TextContent != "" && msg.HTMLContent != "":
		m.SetBody("text/plain", msg.TextContent)
		m.AddAlternative("text/html", msg.HTMLContent)
	case msg.HTMLContent != "":
		m.SetBody("text/html", msg.HTMLContent)
	default:
		m.SetBody("text/plain", msg.TextContent)
	}

	for _, at := range msg.Attachments {
		content := at.Content.String()
		m.Attach(at.Filename,
			gomail.SetHeader(map[string][]string{"Content-Type": {at.ContentType}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				raw, err := base64.StdEncoding.DecodeString(content)
				if err != nil {
					return err
				}
				_, err = w.Write(raw)
				return err
			}),
		)
	}
	return m
}
