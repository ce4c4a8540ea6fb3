package database

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents one schema change. Statements are keyed by driver
// name because MySQL and SQLite disagree on autoincrement and type syntax;
// each statement runs separately so the MySQL driver never needs
// multi-statement mode.
type Migration struct {
	Version     string
	Description string
	Statements  map[string][]string
}

// migrations bootstraps the two tables the relay touches. The users table
// belongs to the web tier; it is created here only so development and test
// deployments work against an empty database.
var migrations = []Migration{
	{
		Version:     "001",
		Description: "create_users",
		Statements: map[string][]string{
			"mysql": {`
				CREATE TABLE IF NOT EXISTS users (
					user_id BIGINT NOT NULL AUTO_INCREMENT,
					user_nickname VARCHAR(50) NOT NULL,
					avatar_filename VARCHAR(255) NULL,
					PRIMARY KEY (user_id)
				)`,
			},
			"sqlite3": {`
				CREATE TABLE IF NOT EXISTS users (
					user_id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_nickname TEXT NOT NULL,
					avatar_filename TEXT
				)`,
			},
		},
	},
	{
		Version:     "002",
		Description: "create_messages",
		Statements: map[string][]string{
			"mysql": {`
				CREATE TABLE IF NOT EXISTS messages (
					message_id BIGINT NOT NULL AUTO_INCREMENT,
					sender_id BIGINT NOT NULL,
					receiver_id BIGINT NULL,
					content TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (message_id)
				)`,
			},
			"sqlite3": {`
				CREATE TABLE IF NOT EXISTS messages (
					message_id INTEGER PRIMARY KEY AUTOINCREMENT,
					sender_id INTEGER NOT NULL,
					receiver_id INTEGER,
					content TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)`,
			},
		},
	},
	{
		Version:     "003",
		Description: "index_messages_created_at",
		Statements: map[string][]string{
			"mysql": {
				`CREATE INDEX idx_messages_created_at ON messages (created_at)`,
			},
			"sqlite3": {
				`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages (created_at)`,
			},
		},
	},
}

// MigrationManager applies schema migrations and tracks applied versions in
// a schema_migrations table.
type MigrationManager struct {
	db     *sql.DB
	driver string
}

// NewMigrationManager creates a migration manager for the given driver.
func NewMigrationManager(db *sql.DB, driver string) *MigrationManager {
	return &MigrationManager{
		db:     db,
		driver: driver,
	}
}

// ApplyMigrations applies all pending migrations in version order. Each
// migration runs in its own transaction together with its tracking row.
func (m *MigrationManager) ApplyMigrations() error {
	if err := m.createMigrationTable(); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	pending := make([]Migration, 0, len(migrations))
	for _, migration := range migrations {
		if !applied[migration.Version] {
			pending = append(pending, migration)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})

	for _, migration := range pending {
		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s_%s: %w", migration.Version, migration.Description, err)
		}
	}

	return nil
}

func (m *MigrationManager) createMigrationTable() error {
	ddl := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(64) NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (version)
		)`
	if m.driver == "sqlite3" {
		ddl = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`
	}
	_, err := m.db.Exec(ddl)
	return err
}

func (m *MigrationManager) appliedVersions() (map[string]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	versions := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions[version] = true
	}

	return versions, rows.Err()
}

func (m *MigrationManager) applyMigration(migration Migration) error {
	statements, ok := migration.Statements[m.driver]
	if !ok {
		return fmt.Errorf("no statements for driver %s", m.driver)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, statement := range statements {
		if _, err := tx.Exec(statement); err != nil {
			return err
		}
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.Version); err != nil {
		return err
	}

	return tx.Commit()
}
