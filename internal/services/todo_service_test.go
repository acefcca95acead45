package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tasklit/tasklit/internal/database/testutil"
	"github.com/tasklit/tasklit/internal/models"
)

func newTodoService(t *testing.T) (*TodoService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	svc, err := NewTodoService(db)
	require.NoError(t, err)
	return svc, db
}

func TestTodoCreateDefaults(t *testing.T) {
	svc, _ := newTodoService(t)
	ctx := context.Background()

	todo, err := svc.Create(ctx, "owner-1", CreateTodoInput{Title: "  buy milk  "})
	require.NoError(t, err)
	require.Equal(t, "buy milk", todo.Title)
	require.Equal(t, models.PriorityMedium, todo.Priority)
	require.Equal(t, "owner-1", todo.UserID)
	require.False(t, todo.Completed)

	_, err = svc.Create(ctx, "owner-1", CreateTodoInput{Title: ""})
	require.Error(t, err)

	_, err = svc.Create(ctx, "owner-1", CreateTodoInput{Title: "x", Priority: "urgent"})
	require.Error(t, err)
}

func TestTodoOwnershipScoping(t *testing.T) {
	svc, _ := newTodoService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-a", CreateTodoInput{Title: "a's task"})
	require.NoError(t, err)

	// Another user's listing stays empty and direct access misses.
	list, err := svc.List(ctx, "owner-b")
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = svc.Get(ctx, "owner-b", created.ID)
	require.ErrorIs(t, err, ErrTodoNotFound)

	_, err = svc.Update(ctx, "owner-b", created.ID, UpdateTodoInput{})
	require.ErrorIs(t, err, ErrTodoNotFound)

	err = svc.Delete(ctx, "owner-b", created.ID)
	require.ErrorIs(t, err, ErrTodoNotFound)

	// The owner still sees it.
	got, err := svc.Get(ctx, "owner-a", created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
}

func TestTodoListOrder(t *testing.T) {
	svc, db := newTodoService(t)
	ctx := context.Background()

	older := models.Todo{UserID: "owner-1", Title: "older", CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, db.Create(&older).Error)
	newer := models.Todo{UserID: "owner-1", Title: "newer", CreatedAt: time.Now()}
	require.NoError(t, db.Create(&newer).Error)

	list, err := svc.List(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "newer", list[0].Title)
	require.Equal(t, "older", list[1].Title)
}

func TestTodoUpdatePartial(t *testing.T) {
	svc, _ := newTodoService(t)
	ctx := context.Background()

	todo, err := svc.Create(ctx, "owner-1", CreateTodoInput{Title: "task", Description: "desc"})
	require.NoError(t, err)

	title := "renamed"
	priority := "high"
	updated, err := svc.Update(ctx, "owner-1", todo.ID, UpdateTodoInput{Title: &title, Priority: &priority})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Title)
	require.Equal(t, models.PriorityHigh, updated.Priority)
	require.Equal(t, "desc", updated.Description)

	empty := ""
	_, err = svc.Update(ctx, "owner-1", todo.ID, UpdateTodoInput{Title: &empty})
	require.Error(t, err)
}

func TestTodoToggle(t *testing.T) {
	svc, _ := newTodoService(t)
	ctx := context.Background()

	todo, err := svc.Create(ctx, "owner-1", CreateTodoInput{Title: "task"})
	require.NoError(t, err)

	toggled, err := svc.Toggle(ctx, "owner-1", todo.ID)
	require.NoError(t, err)
	require.True(t, toggled.Completed)

	toggled, err = svc.Toggle(ctx, "owner-1", todo.ID)
	require.NoError(t, err)
	require.False(t, toggled.Completed)
}

func TestTodoDelete(t *testing.T) {
	svc, _ := newTodoService(t)
	ctx := context.Background()

	todo, err := svc.Create(ctx, "owner-1", CreateTodoInput{Title: "task"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "owner-1", todo.ID))

	_, err = svc.Get(ctx, "owner-1", todo.ID)
	require.ErrorIs(t, err, ErrTodoNotFound)
}
