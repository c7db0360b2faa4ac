package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

// queryForUser returns the user's notifications newest first.
func (repo *notificationRepository) queryForUser(userID string) []notification.Notification {
	var notifs []notification.Notification
	for _, notif := range repo.db.table {
		if notif.UserID == userID {
			notifs = append(notifs, *notif)
		}
	}
	sort.Slice(notifs, func(i, j int) bool {
		if !notifs[i].CreatedAt.Equal(notifs[j].CreatedAt) {
			return notifs[i].CreatedAt.After(notifs[j].CreatedAt)
		}
		return notifs[i].ID > notifs[j].ID
	})
	return notifs
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, notif notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	notif.ID = uuid.New().String()
	repo.db.table[notif.ID] = &notif
	return notif, nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	notifs := repo.queryForUser(userID)
	if limit > 0 && len(notifs) > limit {
		notifs = notifs[:limit]
	}
	return notifs, nil
}

func (repo *notificationRepository) TrimNotifications(ctx context.Context, userID string, keep int) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	notifs := repo.queryForUser(userID)
	if len(notifs) <= keep {
		return 0, nil
	}
	evicted := notifs[keep:]
	for _, notif := range evicted {
		delete(repo.db.table, notif.ID)
	}
	return len(evicted), nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id string) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	notif, ok := repo.db.table[id]
	if !ok {
		return false, nil
	}
	notif.Viewed = true
	return true, nil
}

func (repo *notificationRepository) MarkAllNotificationsRead(ctx context.Context, userID, relatedID string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var updated int
	for _, notif := range repo.db.table {
		if notif.UserID != userID || notif.Viewed {
			continue
		}
		if relatedID != "" && notif.RelatedID != relatedID {
			continue
		}
		notif.Viewed = true
		updated++
	}
	return updated, nil
}
