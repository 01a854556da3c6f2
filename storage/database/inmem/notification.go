package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n.ID = uuid.New().String()
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) GetNotificationByID(_ context.Context, id string) (notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, userID string, unreadOnly bool, page core.Page) ([]notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]notification.Notification, 0)
	for _, n := range repo.db.table {
		if n.UserID == userID && !(unreadOnly && n.Read) {
			rows = append(rows, *n)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	lo, hi := page.Slice(len(rows))
	return rows[lo:hi], nil
}

func (repo *notificationRepository) SetNotificationRead(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n, ok := repo.db.table[id]
	if !ok {
		return notification.ErrNotFound
	}
	n.Read = true
	return nil
}

func (repo *notificationRepository) SetAllNotificationsRead(_ context.Context, userID string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	count := 0
	for _, n := range repo.db.table {
		if n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, userID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	count := 0
	for _, n := range repo.db.table {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}
