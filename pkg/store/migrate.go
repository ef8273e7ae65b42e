package store

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

func init() {
	goose.SetBaseFS(embeddedMigrations)
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.configureGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db.DB, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrateDown reverts every applied migration.
func (s *Store) MigrateDown(ctx context.Context) error {
	if err := s.configureGoose(); err != nil {
		return err
	}
	if err := goose.DownToContext(ctx, s.db.DB, migrationsDir, 0); err != nil {
		return fmt.Errorf("revert migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	if err := s.configureGoose(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, s.db.DB)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}

func (s *Store) configureGoose() error {
	goose.SetLogger(gooseLogger{s.log.Sugar()})
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// gooseLogger sends goose's progress lines to zap.
type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.s.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs at error level. goose returns the failure to the caller,
// which closes the store.
func (l gooseLogger) Fatalf(format string, v ...any) {
	l.s.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
