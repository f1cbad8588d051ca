package migrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventcore/pkg/logger"
)

func writeMigration(t *testing.T, dir, file, up, down string) {
	t.Helper()
	body := "-- +goose Up\n" + up + "\n\n-- +goose Down\n" + down + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644))
}

func newSQLiteRunner(t *testing.T) (*Runner, *gorm.DB) {
	t.Helper()
	dir := t.TempDir()
	writeMigration(t, dir, "20260101000000_first.sql",
		"CREATE TABLE first_table (id INTEGER PRIMARY KEY);", "DROP TABLE first_table;")
	writeMigration(t, dir, "20260102000000_second.sql",
		"CREATE TABLE second_table (id INTEGER PRIMARY KEY);", "DROP TABLE second_table;")

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)

	runner, err := NewRunner(sqlDB, Options{Dir: dir, Dialect: goose.DialectSQLite3},
		logger.New(logger.Options{ServiceName: "migrate-test", Output: io.Discard}))
	require.NoError(t, err)
	return runner, conn
}

func TestRunnerUpDownAndStatus(t *testing.T) {
	ctx := context.Background()
	runner, conn := newSQLiteRunner(t)

	pending, err := runner.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, pending)

	require.NoError(t, runner.Up(ctx))
	version, err := runner.Version(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 20260102000000, version)
	require.True(t, conn.Migrator().HasTable("second_table"))

	require.NoError(t, runner.Down(ctx))
	require.False(t, conn.Migrator().HasTable("second_table"))
	require.True(t, conn.Migrator().HasTable("first_table"))

	pending, err = runner.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, pending)
}

func TestRunnerToVersion(t *testing.T) {
	ctx := context.Background()
	runner, conn := newSQLiteRunner(t)

	require.NoError(t, runner.ToVersion(ctx, "20260101000000"))
	require.True(t, conn.Migrator().HasTable("first_table"))
	require.False(t, conn.Migrator().HasTable("second_table"))

	require.NoError(t, runner.ToVersion(ctx, "20260102000000"))
	require.True(t, conn.Migrator().HasTable("second_table"))

	require.NoError(t, runner.ToVersion(ctx, "20260102000000"))
	require.Error(t, runner.ToVersion(ctx, "latest"))
}

func TestNewRunnerSources(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "migrate-test", Output: io.Discard})
	_, err := NewRunner(nil, Options{}, logg)
	require.Error(t, err)

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)

	_, err = NewRunner(sqlDB, Options{Dir: filepath.Join(t.TempDir(), "missing")}, logg)
	require.Error(t, err)

	// Embedded migrations load without touching the filesystem.
	_, err = NewRunner(sqlDB, Options{}, logg)
	require.NoError(t, err)
}
