package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/notification"
)

type notificationRepository struct {
	db core.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db core.DB) notification.Repository {
	return &notificationRepository{db: db}
}

type notificationRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	CreatedAt time.Time   `db:"created_at"`
	Kind      int         `db:"kind"`
	Message   string      `db:"message"`
	RelatedID null.String `db:"related_id"`
	ActionURL null.String `db:"action_url"`
	Viewed    bool        `db:"viewed"`
}

func (repo notificationRepository) unrow(row notificationRow) notification.Notification {
	return notification.Notification{
		ID:        row.ID,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt,
		Kind:      notification.Kind(row.Kind),
		Message:   row.Message,
		RelatedID: row.RelatedID.String,
		ActionURL: row.ActionURL.String,
		Viewed:    row.Viewed,
	}
}

var notificationColumns = []string{
	"id", "user_id", "created_at", "kind", "message", "related_id", "action_url", "viewed",
}

func (repo notificationRepository) CreateNotification(ctx context.Context, notif notification.Notification) (notification.Notification, error) {
	notif.ID = uuid.New().String()
	query, args, err := psql.Insert("notification").
		Columns(notificationColumns...).
		Values(
			notif.ID, notif.UserID, notif.CreatedAt.UTC(), int(notif.Kind), notif.Message,
			null.NewString(notif.RelatedID, notif.RelatedID != ""),
			null.NewString(notif.ActionURL, notif.ActionURL != ""),
			notif.Viewed,
		).ToSql()
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "building notification insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return notif, nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	builder := psql.Select(notificationColumns...).From("notification").
		Where(sq.Eq{"user_id": userID}).
		OrderBy(core.DBOrdering{Field: "created_at"}.String(), core.DBOrdering{Field: "id"}.String())
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building notifications query")
	}
	var rows []notificationRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, repo.unrow(row))
	}
	return notifs, nil
}

// TrimNotifications deletes every notification of the user past the newest
// keep rows.
func (repo notificationRepository) TrimNotifications(ctx context.Context, userID string, keep int) (int, error) {
	sub, subArgs, err := psql.Select("id").From("notification").
		Where(sq.Eq{"user_id": userID}).
		OrderBy(core.DBOrdering{Field: "created_at"}.String(), core.DBOrdering{Field: "id"}.String()).
		Limit(uint64(keep)).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building trim subquery")
	}
	query, args, err := psql.Delete("notification").
		Where(sq.Eq{"user_id": userID}).
		Where("id NOT IN ("+sub+")", subArgs...).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building trim query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "trimming notifications")
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "reading trimmed count")
	}
	return int(deleted), nil
}

func (repo notificationRepository) MarkNotificationRead(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, notification.ErrNotFound
	}
	query, args, err := psql.Update("notification").
		Set("viewed", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building read update")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errors.Wrap(err, "marking notification read")
	}
	return oneRowChanged(res)
}

func (repo notificationRepository) MarkAllNotificationsRead(ctx context.Context, userID, relatedID string) (int, error) {
	builder := psql.Update("notification").
		Set("viewed", true).
		Where(sq.Eq{"user_id": userID, "viewed": false})
	if relatedID != "" {
		builder = builder.Where(sq.Eq{"related_id": relatedID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building read-all update")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "reading marked count")
	}
	return int(updated), nil
}
