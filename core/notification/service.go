// Package notification stores per-user notifications and fans announcements out to every user.
package notification

import (
	"context"
	"fmt"
	"net/mail"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/user"
)

// JobFanout is the queue job kind carrying an Announcement.
const JobFanout = "notification.fanout"

// EventNotification is the realtime event name for a new notification.
const EventNotification = "notification"

var ErrNotFound = core.NewError(core.ErrNotFound, "notification not found")

var NowFunc = time.Now // mockable

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		// QueryNotifications returns userID's notifications newest first.
		QueryNotifications(ctx context.Context, userID string, unreadOnly bool, page core.Page) ([]Notification, error)
		SetNotificationRead(ctx context.Context, id string) error
		// SetAllNotificationsRead flips every unread notification of userID and returns how many changed.
		SetAllNotificationsRead(ctx context.Context, userID string) (int, error)
		CountUnread(ctx context.Context, userID string) (int, error)
	}

	// UserLister enumerates fan-out recipients.
	UserLister interface {
		QueryAll(ctx context.Context) ([]user.User, error)
	}

	// Publisher pushes an event to the live connections of a user.
	Publisher interface {
		Publish(ctx context.Context, userID, event string, payload interface{}) error
	}

	Options struct {
		Concurrency int
		MaxRetries  int
		RetryDelay  time.Duration
	}

	Service struct {
		repo      Repository
		users     UserLister
		mailSvc   core.EmailService
		publisher Publisher
		queue     core.JobQueue
		logger    core.Logger
		opts      Options
	}
)

func NewService(
	conf *core.Config,
	repo Repository,
	users UserLister,
	mailSvc core.EmailService,
	publisher Publisher,
	queue core.JobQueue,
	logger core.Logger,
) *Service {
	opts := Options{
		Concurrency: conf.Queue.FanoutConcurrency,
		MaxRetries:  conf.Queue.MaxRetries,
		RetryDelay:  conf.Queue.RetryDelay,
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Service{
		repo:      repo,
		users:     users,
		mailSvc:   mailSvc,
		publisher: publisher,
		queue:     queue,
		logger:    logger,
		opts:      opts,
	}
}

// Create stores a single unread notification for n.UserID and pushes it to the user's live feed.
func (svc *Service) Create(ctx context.Context, n Notification) (Notification, error) {
	n.Read = false
	n.CreatedAt = NowFunc().UTC()
	n, err := svc.repo.CreateNotification(ctx, n)
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}
	if svc.publisher != nil {
		if err := svc.publisher.Publish(ctx, n.UserID, EventNotification, n); err != nil {
			svc.logger.Warn(fmt.Sprintf("publishing notification %s", n.ID), err)
		}
	}
	return n, nil
}

// Announce queues an Announcement for fan-out; the caller does not wait for delivery.
func (svc *Service) Announce(ctx context.Context, a Announcement) error {
	return errors.Wrap(svc.queue.Enqueue(ctx, JobFanout, a), "enqueueing fan-out")
}

// HandleFanout is the JobHandler for JobFanout. Only a failure to enumerate recipients fails the job.
func (svc *Service) HandleFanout(ctx context.Context, job core.Job) error {
	var a Announcement
	if err := job.Decode(&a); err != nil {
		svc.logger.Error(fmt.Sprintf("decoding fan-out job %s", job.ID), err)
		return nil // retrying won't help
	}
	res, err := svc.NotifyAll(ctx, a)
	if err != nil {
		return err
	}
	svc.logger.Info(fmt.Sprintf("fan-out %q: %d/%d delivered", a.Title, res.Succeeded, res.Attempted))
	return nil
}

// NotifyAll inserts one notification per user except a.ExcludeUserID and emails each of them.
// Recipients are processed concurrently; a failed recipient never aborts the others.
func (svc *Service) NotifyAll(ctx context.Context, a Announcement) (FanoutResult, error) {
	users, err := svc.users.QueryAll(ctx)
	if err != nil {
		return FanoutResult{}, errors.Wrap(err, "listing recipients")
	}

	var (
		res       FanoutResult
		succeeded int64
		g         errgroup.Group
	)
	g.SetLimit(svc.opts.Concurrency)

	for _, usr := range users {
		if usr.ID == a.ExcludeUserID {
			continue
		}
		usr := usr
		res.Attempted++
		g.Go(func() error {
			if svc.notifyOne(ctx, usr, a) {
				atomic.AddInt64(&succeeded, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Succeeded = int(succeeded)
	return res, nil
}

func (svc *Service) notifyOne(ctx context.Context, usr user.User, a Announcement) bool {
	n := Notification{UserID: usr.ID, Title: a.Title, Content: a.Content, Type: a.Type}

	var err error
	for attempt := 0; attempt <= svc.opts.MaxRetries; attempt++ {
		if attempt > 0 && !sleep(ctx, svc.opts.RetryDelay) {
			break
		}
		if _, err = svc.Create(ctx, n); err == nil {
			break
		}
	}
	if err != nil {
		svc.logger.Error(fmt.Sprintf("fan-out: notifying user %s", usr.ID), err)
		return false
	}

	// the recipient address always comes from the user record
	if err := svc.SendEmail(ctx, usr.Email, a.Type, a.Title, a.Content); err != nil {
		svc.logger.Warn(fmt.Sprintf("fan-out: emailing user %s", usr.ID), err)
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// SendEmail mails a notification using the template for typ: notes get note-notify, anything else quiz-notify.
func (svc *Service) SendEmail(ctx context.Context, email, typ, title, details string) error {
	tmpl, subject := core.TmplQuizNotify, "New Quiz Available - LearnSmart"
	if typ == TypeNote {
		tmpl, subject = core.TmplNoteNotify, "New Study Material Available - LearnSmart"
	}
	return svc.mailSvc.SendMessage(ctx, &core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: map[string]string{"Title": title, "Details": details},
	})
}

// MarkRead marks one of userID's notifications read. Marking a read notification again is a no-op.
func (svc *Service) MarkRead(ctx context.Context, userID, id string) error {
	n, err := svc.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return ErrNotFound
	}
	if n.Read {
		return nil
	}
	return svc.repo.SetNotificationRead(ctx, id)
}

func (svc *Service) MarkAllRead(ctx context.Context, userID string) error {
	_, err := svc.repo.SetAllNotificationsRead(ctx, userID)
	return err
}

func (svc *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnread(ctx, userID)
}

// Feed returns userID's unread notifications, newest first.
func (svc *Service) Feed(ctx context.Context, userID string, page core.Page) ([]Notification, error) {
	page.Clean()
	return svc.repo.QueryNotifications(ctx, userID, true, page)
}

// List returns all of userID's notifications, newest first.
func (svc *Service) List(ctx context.Context, userID string, page core.Page) ([]Notification, error) {
	page.Clean()
	return svc.repo.QueryNotifications(ctx, userID, false, page)
}
