package emailsvc

import (
	"bytes"
	"context"
	"errors"
	"net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnsmart/core"
)

type slowService struct {
	delay time.Duration
	err   error
}

func (s slowService) SendMessage(ctx context.Context, _ *core.EmailMessage) error {
	select {
	case <-time.After(s.delay):
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type blockingService struct{ release chan struct{} }

func (s blockingService) SendMessage(context.Context, *core.EmailMessage) error {
	<-s.release // ignores ctx
	return nil
}

func TestConsoleServiceMock(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf)
	ctx := context.Background()

	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: "student@example.com"}},
		Subject:      "New Study Material Available - LearnSmart",
		TemplateName: core.TmplNoteNotify,
		TemplateData: map[string]string{"Title": "<script>alert(1)</script>", "Details": "Course: CSE"},
	}
	require.NoError(t, svc.SendMessage(ctx, msg))

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].HTMLContent, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, sent[0].HTMLContent, "<script>")
	assert.Contains(t, sent[0].TextContent, "Course: CSE")

	svc.FailFor("student@example.com", errors.New("mailbox full"))
	err := svc.SendMessage(ctx, msg)
	uerr, ok := core.AsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, "mailbox full", uerr.Details())
	assert.Len(t, svc.SentMessages(), 1)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestRender_UnknownTemplate(t *testing.T) {
	svc := NewConsoleServiceMock(core.NewTestConfig())
	err := svc.SendMessage(context.Background(), &core.EmailMessage{
		To:           []mail.Address{{Address: "a@example.com"}},
		TemplateName: "does-not-exist",
	})
	assert.Error(t, err)
	_, ok := core.AsUpstream(err)
	assert.False(t, ok)
}

func TestWithTimeout(t *testing.T) {
	msg := &core.EmailMessage{To: []mail.Address{{Address: "a@example.com"}}, BodyStr: "hi"}

	tests := []struct {
		name    string
		next    core.EmailService
		wantErr bool
	}{
		{name: "fast", next: slowService{delay: time.Millisecond}},
		{name: "fast failure", next: slowService{delay: time.Millisecond, err: core.NewTransportError(errors.New("refused"))}, wantErr: true},
		{name: "honours ctx", next: slowService{delay: time.Hour}, wantErr: true},
		{name: "ignores ctx", next: blockingService{release: make(chan struct{})}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WithTimeout(tt.next, 20*time.Millisecond).SendMessage(context.Background(), msg)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			_, ok := core.AsUpstream(err)
			assert.True(t, ok, err)
		})
	}
}

func TestNewService(t *testing.T) {
	conf := core.NewTestConfig()
	for _, engine := range []string{"console", "sendgrid", "smtp", "resend"} {
		conf.Email.Engine = engine
		svc := NewService(conf)
		_, ok := svc.(*timeoutService)
		assert.True(t, ok, engine)
	}
	conf.Email.Timeout = 0
	conf.Email.Engine = "console"
	_, ok := NewService(conf).(*consoleService)
	assert.True(t, ok)
}

func testMessage(t *testing.T) core.EmailMessage {
	t.Helper()
	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Ada", Address: "ada@example.com"}},
		Cc:          []mail.Address{{Address: "cc@example.com"}},
		Subject:     "Hello",
		TextContent: "plain",
		HTMLContent: "<p>html</p>",
	}
	require.NoError(t, msg.Attach(bytes.NewBufferString("%PDF-1.4"), "note.pdf", "application/pdf"))
	return msg
}

func TestSMTPService_prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSMTPService(conf).(*smtpService)

	m := svc.prepare(testMessage(t))
	assert.Equal(t, []string{"Hello"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{`"Ada" <ada@example.com>`}, m.GetHeader("To"))
	assert.Equal(t, []string{"<cc@example.com>"}, m.GetHeader("Cc"))
	assert.Equal(t, []string{svc.from}, m.GetHeader("From"))
}

func TestResendService_prepare(t *testing.T) {
	svc := NewResendService(core.NewTestConfig()).(*resendService)

	params, err := svc.prepare(testMessage(t))
	require.NoError(t, err)
	assert.Equal(t, "Hello", params.Subject)
	assert.Equal(t, []string{`"Ada" <ada@example.com>`}, params.To)
	assert.Nil(t, params.Bcc)
	assert.Equal(t, "<p>html</p>", params.Html)
	require.Len(t, params.Attachments, 1)
	assert.Equal(t, []byte("%PDF-1.4"), params.Attachments[0].Content)
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(core.NewTestConfig()).(*sendgridService)

	m := svc.prepare(testMessage(t))
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "Hello", m.Personalizations[0].Subject)
	assert.Len(t, m.Content, 2)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "note.pdf", m.Attachments[0].Filename)
}
