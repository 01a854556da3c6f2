package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/notification"
)

var notificationColumns = []string{"id", "user_id", "title", "content", "type", "read", "created_at"}

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	Type      string    `db:"type"`
	Read      bool      `db:"read"`
	CreatedAt time.Time `db:"created_at"`
}

func (r notificationRow) toNotification() notification.Notification {
	return notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Content:   r.Content,
		Type:      r.Type,
		Read:      r.Read,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.ID = uuid.New().String()
	_, err := exec(ctx, repo.db, psql.Insert("notifications").
		Columns(notificationColumns...).
		Values(n.ID, n.UserID, n.Title, n.Content, n.Type, n.Read, n.CreatedAt))
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return notification.Notification{}, notification.ErrNotFound
	}
	var row notificationRow
	err := get(ctx, repo.db, &row, psql.Select(notificationColumns...).From("notifications").Where(sq.Eq{"id": id}))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "selecting notification")
	}
	return row.toNotification(), nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, userID string, unreadOnly bool, page core.Page) ([]notification.Notification, error) {
	where := sq.Eq{"user_id": userID}
	if unreadOnly {
		where["read"] = false
	}
	b := psql.Select(notificationColumns...).From("notifications").
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Offset(uint64(page.Offset))
	if page.Limit > 0 {
		b = b.Limit(uint64(page.Limit))
	}

	var rows []notificationRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}
	ns := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		ns = append(ns, r.toNotification())
	}
	return ns, nil
}

func (repo *notificationRepository) SetNotificationRead(ctx context.Context, id string) error {
	res, err := exec(ctx, repo.db, psql.Update("notifications").Set("read", true).Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "updating notification")
	}
	return affected(res, notification.ErrNotFound)
}

func (repo *notificationRepository) SetAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	res, err := exec(ctx, repo.db, psql.Update("notifications").
		Set("read", true).
		Where(sq.Eq{"user_id": userID, "read": false}))
	if err != nil {
		return 0, errors.Wrap(err, "updating notifications")
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (repo *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := get(ctx, repo.db, &count, psql.Select("COUNT(*)").From("notifications").
		Where(sq.Eq{"user_id": userID, "read": false}))
	return count, errors.Wrap(err, "counting notifications")
}
