package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Drivers suportados.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB representa a conexão com o banco de dados (PostgreSQL ou SQLite).
type DB struct {
	*sqlx.DB
	driver string
	logger *slog.Logger
}

// NewDB conecta-se ao banco e executa as migrações.
func NewDB(driver, dataSourceName string, logger *slog.Logger) (*DB, error) {
	d, err := Open(driver, dataSourceName, logger)
	if err != nil {
		return nil, err
	}
	if _, err := d.Migrate(migrate.Up, 0); err != nil {
		d.Close()
		return nil, fmt.Errorf("falha ao executar migrações: %w", err)
	}
	return d, nil
}

// Open conecta-se ao banco sem executar migrações.
func Open(driver, dataSourceName string, logger *slog.Logger) (*DB, error) {
	if _, err := dialectFor(driver); err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar ao banco de dados: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite aceita um único escritor; ":memory:" também exige conexão única.
		db.SetMaxOpenConns(1)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("falha ao pingar o banco de dados: %w", err)
	}
	logger.Info("conexão com o banco estabelecida", slog.String("driver", driver))

	return &DB{DB: db, driver: driver, logger: logger}, nil
}

// Migrate aplica (ou reverte) até `limit` migrações; limit = 0 aplica todas.
func (d *DB) Migrate(direction migrate.MigrationDirection, limit int) (int, error) {
	return runMigrations(d.DB.DB, d.driver, direction, limit, d.logger)
}

// runMigrations executa as migrações embutidas usando sql-migrate.
func runMigrations(db *sql.DB, driver string, direction migrate.MigrationDirection, limit int, logger *slog.Logger) (int, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return 0, err
	}
	migrations := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationsFS,
		Root:       "migrations",
	}

	n, err := migrate.ExecMax(db, dialect, migrations, direction, limit)
	if err != nil {
		return 0, fmt.Errorf("erro ao aplicar migrações: %w", err)
	}
	if n > 0 {
		logger.Info("migrações aplicadas", slog.Int("count", n))
	} else {
		logger.Debug("nenhuma migração nova para aplicar")
	}
	return n, nil
}

// dialectFor traduz o nome do driver para o dialeto do sql-migrate.
func dialectFor(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return "postgres", nil
	case DriverSQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("driver de banco não suportado: %q", driver)
	}
}
