package tasks

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventcore/pkg/db"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
)

func TestFindBySourceAndUniqueRule(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Task{}))
	repo := NewRepository(conn)
	ctx := context.Background()

	missing, err := repo.FindBySource(ctx, 10, "follow-up")
	require.NoError(t, err)
	assert.Nil(t, missing)

	task := &models.Task{
		TenantSchema:  "acme",
		Title:         "Call client",
		EntityType:    "Client",
		EntityID:      "5",
		Status:        enums.TaskStatusOpen,
		Priority:      enums.TaskPriorityNormal,
		SourceEventID: 10,
		RuleName:      "follow-up",
	}
	require.NoError(t, repo.Create(ctx, task))

	found, err := repo.FindBySource(ctx, 10, "follow-up")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, task.ID, found.ID)

	dup := *task
	dup.ID = uuid.Nil
	err = repo.Create(ctx, &dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))

	rows, err := repo.ListByEntity(ctx, "acme", "Client", "5")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
