package database

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tasklit/tasklit/internal/models"
)

func TestOpenAndMigrate(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := Open(Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		require.NoError(t, err)
		_ = sqlDB.Close()
	})

	require.NoError(t, Migrate(db))

	// The migrated schema accepts both models.
	user := models.User{Email: "schema@example.com", Password: "hash"}
	require.NoError(t, db.Create(&user).Error)
	todo := models.Todo{UserID: user.ID, Title: "first"}
	require.NoError(t, db.Create(&todo).Error)

	var count int64
	require.NoError(t, db.Model(&models.Todo{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestMigrateNilHandle(t *testing.T) {
	require.Error(t, Migrate(nil))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}
