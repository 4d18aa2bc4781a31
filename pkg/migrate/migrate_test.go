package migrate

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/yardgate-backend/pkg/config"
	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
)

const migrationsDir = "migrations"

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func insertRecord(db *sql.DB, plate, status string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO transaction_records
		(id, plate, driver, location, status, desk_operator_out, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), plate, "Juan", "main-yard", status, "desk-1", now, now)
	return err
}

func TestMigrationsApplyAndRollBackOnSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	require.NoError(t, Run(ctx, db, DialectSQLite, migrationsDir, "up"))

	require.NoError(t, insertRecord(db, "AB1234", "COMPLETED"))
	require.NoError(t, insertRecord(db, "AB1234", "COMPLETED"), "completed cycles may repeat a plate")
	require.NoError(t, insertRecord(db, "AB1234", "IN_ROUTE"))
	err := insertRecord(db, "AB1234", "PENDING_EXIT")
	require.Error(t, err, "a second open cycle must hit the partial unique index")
	assert.Contains(t, err.Error(), "UNIQUE")

	assert.Error(t, insertRecord(db, "CD5678", "LOST"), "unknown statuses are rejected")

	require.NoError(t, Run(ctx, db, DialectSQLite, migrationsDir, "down-to", "0"))
	_, err = db.Exec(`SELECT 1 FROM transaction_records`)
	assert.Error(t, err, "rollback drops the table")
}

func TestMigratedRowsReadBackThroughGorm(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	require.NoError(t, Run(ctx, db, DialectSQLite, migrationsDir, "up"))

	conn, err := gorm.Open(&sqlite.Dialector{Conn: db}, &gorm.Config{})
	require.NoError(t, err)

	exit := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	rec := &models.TransactionRecord{
		ID:              uuid.New(),
		Plate:           "AB1234",
		Driver:          "Juan",
		Location:        "main-yard",
		Status:          enums.TransactionStatusInRoute,
		ExitTime:        &exit,
		DeskOperatorOut: "desk-1",
		GateOperatorOut: "gate-1",
		CreatedAt:       exit.Add(-time.Hour),
		UpdatedAt:       exit,
	}
	require.NoError(t, conn.WithContext(ctx).Create(rec).Error)
	require.NoError(t, conn.WithContext(ctx).Create(&models.TransitionEvent{
		ID: uuid.New(), TransactionID: rec.ID, Plate: rec.Plate, Location: rec.Location,
		Transition: enums.TransitionAuthorizeExit, FromStatus: enums.TransactionStatusPendingExit,
		ToStatus: enums.TransactionStatusInRoute, Slot: enums.ManifestSlotGateOut,
		OperatorID: "gate-1", OccurredAt: exit,
	}).Error)

	var got models.TransactionRecord
	require.NoError(t, conn.WithContext(ctx).Where("id = ?", rec.ID).First(&got).Error)
	require.NotNil(t, got.ExitTime)
	assert.True(t, got.ExitTime.Equal(exit))
	assert.Nil(t, got.EntryTime)
	assert.True(t, got.CreatedAt.Equal(exit.Add(-time.Hour)))

	var event models.TransitionEvent
	require.NoError(t, conn.WithContext(ctx).Where("transaction_id = ?", rec.ID).First(&event).Error)
	assert.True(t, event.OccurredAt.Equal(exit))
}

func TestRunRequiresDBAndDir(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil, DialectSQLite, migrationsDir, "up"))
	assert.Error(t, Run(context.Background(), openSQLite(t), DialectSQLite, "", "up"))
	assert.Error(t, Run(context.Background(), openSQLite(t), "oracle", migrationsDir, "up"))
}

func TestShippedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateDir(migrationsDir))

	matches, err := filepath.Glob(filepath.Join(migrationsDir, "*_create_transaction_records.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS transaction_records",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_transaction_records_open_plate",
		"WHERE status <> 'COMPLETED'",
		"DROP TABLE IF EXISTS transaction_records",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "create_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	assert.Error(t, ValidateDir(dir))

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_things.sql"), []byte("-- +goose Up\n"), 0o644))
	assert.Error(t, ValidateDir(dir), "missing down section")

	dir = t.TempDir()
	body := []byte("-- +goose Up\n-- +goose Down\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_a.sql"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_b.sql"), body, 0o644))
	assert.Error(t, ValidateDir(dir), "duplicate versions")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Gate Notes!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_gate_notes.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
	_, err = CreateSQLMigration("", "x")
	assert.Error(t, err)
}

func TestValidateDirChecksStructureAndPortability(t *testing.T) {
	cases := map[string]string{
		"down before up": "-- +goose Down\n-- +goose Up\n",
		"unbalanced":     "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n",
		"serial column":  "-- +goose Up\nCREATE TABLE t (id SERIAL PRIMARY KEY);\n-- +goose Down\nDROP TABLE t;\n",
		"cast":           "-- +goose Up\nSELECT '1'::int;\n-- +goose Down\n",
		"timestamptz":    "-- +goose Up\nCREATE TABLE t (at TIMESTAMPTZ NOT NULL);\n-- +goose Down\nDROP TABLE t;\n",
	}
	for name, body := range cases {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_case.sql"), []byte(body), 0o644))
		assert.Error(t, ValidateDir(dir), name)
	}

	dir := t.TempDir()
	portable := "-- +goose Up\n-- uses ::casts only in comments\nCREATE TABLE t (id UUID PRIMARY KEY);\n-- +goose Down\nDROP TABLE t;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_ok.sql"), []byte(portable), 0o644))
	assert.NoError(t, ValidateDir(dir))
}

func TestCreateSQLMigrationRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	path, err := createSQLMigration(dir, "gate notes", at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260301090000_gate_notes.sql"), path)

	_, err = createSQLMigration(dir, "gate notes", at)
	assert.Error(t, err)
}

func TestShouldAutoRun(t *testing.T) {
	dev := &config.Config{App: config.AppConfig{Env: "dev"}}
	devFlag := &config.Config{App: config.AppConfig{Env: "dev"}, FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true}}
	prodFlag := &config.Config{App: config.AppConfig{Env: "prod"}, FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true}}

	assert.False(t, shouldAutoRun(dev, DialectPostgres))
	assert.True(t, shouldAutoRun(devFlag, DialectPostgres))
	assert.False(t, shouldAutoRun(prodFlag, DialectPostgres))
	assert.True(t, shouldAutoRun(&config.Config{}, DialectSQLite), "sqlite local mode always migrates")
}

func TestAutoRunAppliesAndLogsVersions(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: &buf})

	require.NoError(t, autoRun(ctx, logg, db, DialectSQLite, migrationsDir))
	require.NoError(t, insertRecord(db, "AB1234", "IN_ROUTE"))
	assert.Contains(t, buf.String(), `"message":"migrations.applied"`)
	assert.Contains(t, buf.String(), `"from_version":0`)

	buf.Reset()
	require.NoError(t, autoRun(ctx, logg, db, DialectSQLite, migrationsDir), "second run is a no-op")
	assert.NotContains(t, buf.String(), `"from_version":0`)
}

func TestAutoRunRefusesInvalidDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_bad.sql"), []byte("SELECT 1;"), 0o644))
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})

	err := autoRun(context.Background(), logg, openSQLite(t), DialectSQLite, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validating")
}

func TestMigrateToVersion(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	require.NoError(t, MigrateToVersion(ctx, db, DialectSQLite, migrationsDir, "20260301090000"))
	require.NoError(t, insertRecord(db, "AB1234", "IN_ROUTE"))
	_, err := db.Exec(`SELECT 1 FROM transition_events`)
	assert.Error(t, err, "the ledger table comes in the next version")

	require.NoError(t, MigrateToVersion(ctx, db, DialectSQLite, migrationsDir, "20260301090500"))
	_, err = db.Exec(`SELECT 1 FROM transition_events`)
	assert.NoError(t, err)

	require.NoError(t, MigrateToVersion(ctx, db, DialectSQLite, migrationsDir, "20260301090500"), "already there")
	require.NoError(t, MigrateToVersion(ctx, db, DialectSQLite, migrationsDir, "20260301090000"))
	_, err = db.Exec(`SELECT 1 FROM transition_events`)
	assert.Error(t, err)

	assert.Error(t, MigrateToVersion(ctx, db, DialectSQLite, migrationsDir, "latest"))
}
