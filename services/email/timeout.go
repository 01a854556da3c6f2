package emailsvc

import (
	"context"
	"time"

	"github.com/trezcool/learnsmart/core"
)

type timeoutService struct {
	next    core.EmailService
	timeout time.Duration
}

// WithTimeout bounds every send to d. A send still running at the deadline fails with a TransportError.
func WithTimeout(next core.EmailService, d time.Duration) core.EmailService {
	if d <= 0 {
		return next
	}
	return &timeoutService{next: next, timeout: d}
}

func (svc *timeoutService) SendMessage(ctx context.Context, msg *core.EmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, svc.timeout)
	defer cancel()

	// some transports ignore ctx, so the deadline is enforced here
	done := make(chan error, 1)
	cp := *msg
	go func() { done <- svc.next.SendMessage(ctx, &cp) }()

	select {
	case err := <-done:
		*msg = cp
		return err
	case <-ctx.Done():
		return core.NewTransportError(ctx.Err())
	}
}
