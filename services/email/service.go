package emailsvc

import "github.com/trezcool/learnsmart/core"

// NewService returns the transport selected by conf.Email.Engine, bounded by conf.Email.Timeout.
func NewService(conf *core.Config) core.EmailService {
	var svc core.EmailService
	switch conf.Email.Engine {
	case "sendgrid":
		svc = NewSendgridService(conf)
	case "smtp":
		svc = NewSMTPService(conf)
	case "resend":
		svc = NewResendService(conf)
	default:
		svc = NewConsoleService(conf)
	}
	return WithTimeout(svc, conf.Email.Timeout)
}
