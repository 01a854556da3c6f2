package emailsvc

import (
	"context"
	"encoding/base64"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"

	"github.com/trezcool/learnsmart/core"
)

type resendService struct {
	client *resend.Client
	from   string
}

var _ core.EmailService = (*resendService)(nil)

func NewResendService(conf *core.Config) core.EmailService {
	from := conf.DefaultFromEmail()
	return &resendService{
		client: resend.NewClient(conf.Email.ResendAPIKey),
		from:   from.String(),
	}
}

func (svc *resendService) SendMessage(ctx context.Context, msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return nil
	}

	params, err := svc.prepare(*msg)
	if err != nil {
		return errors.Wrap(err, "preparing email")
	}
	if _, err := svc.client.Emails.SendWithContext(ctx, params); err != nil {
		return core.NewTransportError(err)
	}
	return nil
}

func (svc *resendService) prepare(msg core.EmailMessage) (*resend.SendEmailRequest, error) {
	params := &resend.SendEmailRequest{
		From:    svc.from,
		To:      addressStrings(msg.To),
		Cc:      addressStrings(msg.Cc),
		Bcc:     addressStrings(msg.Bcc),
		Subject: msg.Subject,
		Text:    msg.TextContent,
		Html:    msg.HTMLContent,
	}
	for _, at := range msg.Attachments {
		raw, err := base64.StdEncoding.DecodeString(at.Content.String())
		if err != nil {
			return nil, err
		}
		params.Attachments = append(params.Attachments, &resend.Attachment{Content: raw, Filename: at.Filename})
	}
	return params, nil
}

func addressStrings(addrs []mail.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}
