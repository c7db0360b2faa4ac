package notification

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("notification not found")

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		// QueryNotifications returns up to limit of the user's notifications,
		// newest first.
		QueryNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
		// TrimNotifications hard-deletes every notification of the user beyond
		// the keep newest ones and returns how many were deleted.
		TrimNotifications(ctx context.Context, userID string, keep int) (int, error)
		MarkNotificationRead(ctx context.Context, id string) (bool, error)
		MarkAllNotificationsRead(ctx context.Context, userID, relatedID string) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SendOptions carries the optional attributes of a Notification.
type SendOptions struct {
	RelatedID string
	ActionURL string
}

// Send creates one notification then enforces per-user retention. Insertion
// and trimming are one logical unit; a concurrent Fetch may transiently see
// more than MaxPerUser rows but never retains them.
func (svc *Service) Send(ctx context.Context, userID string, kind Kind, message string, opts ...SendOptions) (Notification, error) {
	n := Notification{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		Kind:      kind,
		Message:   message,
	}
	if len(opts) > 0 {
		n.RelatedID = opts[0].RelatedID
		n.ActionURL = opts[0].ActionURL
	}
	n, err := svc.repo.CreateNotification(ctx, n)
	if err != nil {
		return Notification{}, err
	}
	if _, err = svc.repo.TrimNotifications(ctx, userID, MaxPerUser); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Fetch returns the user's retained notifications, newest first.
func (svc *Service) Fetch(ctx context.Context, userID string) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, userID, MaxPerUser)
}

// Read flips the viewed flag of one notification.
func (svc *Service) Read(ctx context.Context, id string) error {
	updated, err := svc.repo.MarkNotificationRead(ctx, id)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNotFound
	}
	return nil
}

// ReadAllFor marks every notification of the user related to the given entity
// as read; used when the owning learner opens the related solution.
func (svc *Service) ReadAllFor(ctx context.Context, userID, relatedID string) error {
	_, err := svc.repo.MarkAllNotificationsRead(ctx, userID, relatedID)
	return err
}
