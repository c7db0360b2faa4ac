package notification_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/notification"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

func setup(t *testing.T) (*notification.Service, notification.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewNotificationRepository(db)
	return notification.NewService(repo), repo
}

func TestService_Send_enforcesRetention(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	userID := "user-1"

	for i := 0; i < notification.MaxPerUser+5; i++ {
		_, err := svc.Send(ctx, userID, notification.KindSolutionChecked, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	notifs, err := svc.Fetch(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, notifs, notification.MaxPerUser)
}

func TestService_Send_doesNotTouchOtherUsers(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "other", notification.KindCheckerError, "kept")
	require.NoError(t, err)
	for i := 0; i < notification.MaxPerUser+3; i++ {
		_, err = svc.Send(ctx, "noisy", notification.KindSolutionChecked, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	notifs, err := svc.Fetch(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, notifs, 1)
}

func TestService_Fetch_newestFirst(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	userID := "user-2"

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		_, err := repo.CreateNotification(ctx, notification.Notification{
			UserID:    userID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Kind:      notification.KindSolutionChecked,
			Message:   fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	notifs, err := svc.Fetch(ctx, userID)
	require.NoError(t, err)
	require.Len(t, notifs, 3)
	assert.Equal(t, "message 2", notifs[0].Message)
	assert.Equal(t, "message 0", notifs[2].Message)
}

func TestService_Send_retentionEvictsOldest(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	userID := "user-3"

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < notification.MaxPerUser; i++ {
		_, err := repo.CreateNotification(ctx, notification.Notification{
			UserID:    userID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Kind:      notification.KindSolutionChecked,
			Message:   fmt.Sprintf("old %d", i),
		})
		require.NoError(t, err)
	}

	_, err := svc.Send(ctx, userID, notification.KindCheckerError, "newest")
	require.NoError(t, err)

	notifs, err := svc.Fetch(ctx, userID)
	require.NoError(t, err)
	require.Len(t, notifs, notification.MaxPerUser)
	assert.Equal(t, "newest", notifs[0].Message)
	for _, n := range notifs {
		assert.NotEqual(t, "old 0", n.Message) // the oldest was evicted
	}
}

func TestService_Read(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	sent, err := svc.Send(ctx, "reader", notification.KindSolutionChecked, "check it")
	require.NoError(t, err)

	require.NoError(t, svc.Read(ctx, sent.ID))

	notifs, err := svc.Fetch(ctx, "reader")
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.True(t, notifs[0].Viewed)

	assert.Equal(t, notification.ErrNotFound, svc.Read(ctx, "missing-id"))
}

func TestService_ReadAllFor(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	userID := "reader-2"

	_, err := svc.Send(ctx, userID, notification.KindSolutionChecked, "about sol-1", notification.SendOptions{RelatedID: "sol-1"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, userID, notification.KindCheckerError, "about sol-1 too", notification.SendOptions{RelatedID: "sol-1"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, userID, notification.KindSolutionChecked, "about sol-2", notification.SendOptions{RelatedID: "sol-2"})
	require.NoError(t, err)

	require.NoError(t, svc.ReadAllFor(ctx, userID, "sol-1"))

	notifs, err := svc.Fetch(ctx, userID)
	require.NoError(t, err)
	require.Len(t, notifs, 3)
	for _, n := range notifs {
		assert.Equal(t, n.RelatedID == "sol-1", n.Viewed)
	}
}
