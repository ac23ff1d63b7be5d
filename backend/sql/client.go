package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-vcagent/core"
	"github.com/goliatone/go-vcagent/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const defaultBusyTimeout = 5 * time.Second

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "go-vcagent"
}

// OpenClient opens the database named by cfg, wraps it in a persistence
// client and applies the record schema migrations.
func OpenClient(ctx context.Context, cfg core.SQLConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(cfg.Driver)
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, core.NewError(core.ErrInvalidConfiguration, "", "sql dsn is required", nil)
	}
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" {
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	}
	migrationsFS, err := migrations.ForDriver(driver)
	if err != nil {
		return nil, core.NewError(core.ErrInvalidConfiguration, "", "sql migrations", err)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	client, err := persistence.New(persistenceConfig{driver: driver, server: dsn, debug: cfg.Debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	client.RegisterSQLMigrations(migrationsFS)
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}

// sqliteDSN prepares a sqlite DSN for a pool of connections, one per open
// session. File databases run in WAL mode so readers never wait on an open
// transaction, and a competing writer waits at most the busy timeout. A
// private in-memory database lives inside a single connection, so it is
// rejected: in-memory databases must use cache=shared.
func sqliteDSN(dsn string) (string, error) {
	path, query, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(query)
	if err != nil {
		return "", core.NewError(core.ErrInvalidConfiguration, "", "sqlite dsn query", err)
	}
	inMemory := path == ":memory:" || path == "file::memory:" || params.Get("mode") == "memory"
	if inMemory {
		if params.Get("cache") != "shared" {
			return "", core.NewError(core.ErrInvalidConfiguration, "", "in-memory sqlite dsn requires cache=shared", nil)
		}
		return dsn, nil
	}
	extra := []string{}
	if params.Get("_journal_mode") == "" && params.Get("_journal") == "" {
		extra = append(extra, "_journal_mode=WAL")
	}
	if params.Get("_busy_timeout") == "" && params.Get("_timeout") == "" {
		extra = append(extra, fmt.Sprintf("_busy_timeout=%d", defaultBusyTimeout.Milliseconds()))
	}
	if len(extra) == 0 {
		return dsn, nil
	}
	if query == "" {
		return path + "?" + strings.Join(extra, "&"), nil
	}
	return dsn + "&" + strings.Join(extra, "&"), nil
}

func dialectFor(driver string) (schema.Dialect, error) {
	switch driver {
	case "sqlite3":
		return sqlitedialect.New(), nil
	case "postgres":
		return pgdialect.New(), nil
	default:
		return nil, core.NewError(core.ErrInvalidConfiguration, "", fmt.Sprintf("unsupported sql driver %q", driver), nil)
	}
}
