// Package migrate applies the embedded products schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Direction selects which way Run migrates.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// Run migrates the database behind pool all the way up or down and logs the
// schema version before and after. Being at the target already is not an
// error.
func Run(ctx context.Context, pool *pgxpool.Pool, dir Direction, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := checkPairs(migrationsFS, "sql"); err != nil {
		return err
	}
	srcDriver, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return fmt.Errorf("init iofs: %w", err)
	}

	sqlDB, err := sql.Open("pgx", pool.Config().ConnString())
	if err != nil {
		return fmt.Errorf("open sql db: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sql db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("init db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "pgx", dbDriver)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	from := version(m)
	switch dir {
	case Down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", dir, err)
	}

	logger.Info("schema migrated",
		zap.Stringer("direction", dir),
		zap.String("from", from),
		zap.String("to", version(m)),
		zap.Bool("changed", err == nil),
	)
	return nil
}

func version(m *migrate.Migrate) string {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return "none"
	case err != nil:
		return "unknown"
	case dirty:
		return fmt.Sprintf("%d (dirty)", v)
	default:
		return fmt.Sprintf("%d", v)
	}
}

// checkPairs fails when a migration version lacks its up or down file.
// golang-migrate only reports that as a bare fs.ErrNotExist mid-run.
func checkPairs(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	seen := make(map[string]int)
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			seen[strings.TrimSuffix(name, ".up.sql")] |= 1
		case strings.HasSuffix(name, ".down.sql"):
			seen[strings.TrimSuffix(name, ".down.sql")] |= 2
		}
	}
	if len(seen) == 0 {
		return errors.New("no migrations embedded")
	}
	for name, mask := range seen {
		if mask != 3 {
			return fmt.Errorf("migration %s needs both .up.sql and .down.sql", name)
		}
	}
	return nil
}
