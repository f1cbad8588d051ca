package migrate

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventcore/pkg/config"
	"github.com/angelmondragon/eventcore/pkg/db"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

func TestMaybeRunDevAutoMigratesSQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		App:          config.AppConfig{Env: "prod"},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true},
	}
	logg := logger.New(logger.Options{ServiceName: "migrate-test"})

	require.NoError(t, MaybeRunDev(context.Background(), cfg, logg, db.Wrap(conn)))
	for _, table := range []string{"events", "event_processing_controls", "activities", "tasks", "notifications"} {
		require.True(t, conn.Migrator().HasTable(table), "expected table %s", table)
	}
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "prod"}}
	logg := logger.New(logger.Options{ServiceName: "migrate-test"})
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logg, nil))
}
