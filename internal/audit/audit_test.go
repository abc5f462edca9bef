package audit_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"authgate/internal/audit"
	"authgate/internal/models"
)

func testRecorder(t *testing.T) (*audit.Recorder, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))
	return audit.NewRecorder(db, zap.NewNop().Sugar()), db
}

func TestRecordAndList(t *testing.T) {
	rec, _ := testRecorder(t)
	ctx := context.Background()

	rec.Record(ctx, audit.Event{UserID: "u1", UserEmail: "bob@x.com", Action: "auth.login", Resource: "sessions"})
	rec.Record(ctx, audit.Event{UserEmail: "bob@x.com", Action: "auth.login", Resource: "sessions",
		Status: audit.StatusFailure, ErrorMessage: "password mismatch"})
	rec.Record(ctx, audit.Event{UserID: "u2", UserEmail: "eve@x.com", Action: "users.delete", Resource: "users",
		ResourceID: "u9", Details: map[string]any{"reason": "offboarding"}})

	logs, total, err := rec.List(ctx, audit.Filters{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, logs, 3)

	logs, total, err = rec.List(ctx, audit.Filters{Action: "auth.login", Status: audit.StatusFailure})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, logs, 1)
	assert.Equal(t, "password mismatch", logs[0].ErrorMessage)

	logs, _, err = rec.List(ctx, audit.Filters{UserID: "u2"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "u9", logs[0].ResourceID)
}

func TestListDateRangeAndPagination(t *testing.T) {
	rec, _ := testRecorder(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec.Record(ctx, audit.Event{Action: "auth.login", Resource: "sessions"})
	}

	logs, total, err := rec.List(ctx, audit.Filters{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, logs, 2)

	_, total, err = rec.List(ctx, audit.Filters{From: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestStatistics(t *testing.T) {
	rec, _ := testRecorder(t)
	ctx := context.Background()

	rec.Record(ctx, audit.Event{Action: "auth.login", Resource: "sessions"})
	rec.Record(ctx, audit.Event{Action: "auth.login", Resource: "sessions", Status: audit.StatusFailure})
	rec.Record(ctx, audit.Event{Action: "users.update", Resource: "users"})

	stats, err := rec.GetStatistics(ctx, audit.Filters{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.ByStatus[audit.StatusSuccess])
	assert.EqualValues(t, 1, stats.ByStatus[audit.StatusFailure])
	assert.EqualValues(t, 2, stats.ByAction["auth.login"])
	assert.EqualValues(t, 2, stats.ByResource["sessions"])
}

func TestRecordSwallowsStoreFailures(t *testing.T) {
	rec, db := testRecorder(t)
	require.NoError(t, db.Migrator().DropTable(&models.AuditLog{}))

	// Must not panic or surface the write failure.
	rec.Record(context.Background(), audit.Event{Action: "auth.login", Resource: "sessions"})
}
