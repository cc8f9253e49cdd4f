package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/duskforge/channelcore/internal/persistence/migrations"
)

var gooseOnce sync.Once

// SchemaStatus reports the applied state of the persisted_objects bookkeeping
// table, the single generic store every spec section 3 "Persistent object
// identity" row lands in regardless of its kind.
type SchemaStatus struct {
	Version     int64
	ObjectCount int64
}

// RunMigrations applies the persisted_objects bookkeeping schema on dsn and
// returns its resulting version and row count, so the caller can log the
// bookkeeping table's state rather than just "migrations ran".
func RunMigrations(ctx context.Context, dsn string) (SchemaStatus, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("persistence: opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	var dialectErr error
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		dialectErr = goose.SetDialect("postgres")
	})
	if dialectErr != nil {
		return SchemaStatus{}, fmt.Errorf("persistence: setting goose dialect: %w", dialectErr)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return SchemaStatus{}, fmt.Errorf("persistence: running migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("persistence: reading goose schema version: %w", err)
	}

	var count int64
	if err := sqlDB.QueryRowContext(ctx, "SELECT count(*) FROM persisted_objects").Scan(&count); err != nil {
		// A brand-new database has the table (migrations just created it) but
		// counting it is diagnostic, not load-bearing: don't fail startup over it.
		slog.Warn("persistence: counting persisted_objects rows", "error", err)
	}

	return SchemaStatus{Version: version, ObjectCount: count}, nil
}
