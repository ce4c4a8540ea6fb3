package database

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestApplyMigrations(t *testing.T) {
	db := openTestDB(t)

	manager := NewMigrationManager(db, "sqlite3")
	if err := manager.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations() error = %v", err)
	}

	validator := NewSchemaValidator(db, "sqlite3")
	if err := validator.ValidateTablesExist(); err != nil {
		t.Errorf("ValidateTablesExist() error = %v", err)
	}
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	db := openTestDB(t)

	manager := NewMigrationManager(db, "sqlite3")
	if err := manager.ApplyMigrations(); err != nil {
		t.Fatalf("first ApplyMigrations() error = %v", err)
	}
	if err := manager.ApplyMigrations(); err != nil {
		t.Fatalf("second ApplyMigrations() error = %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("failed to count migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("applied migrations = %d, want %d", count, len(migrations))
	}
}

func TestApplyMigrationsRecordsVersions(t *testing.T) {
	db := openTestDB(t)

	manager := NewMigrationManager(db, "sqlite3")
	if err := manager.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations() error = %v", err)
	}

	applied, err := manager.appliedVersions()
	if err != nil {
		t.Fatalf("appliedVersions() error = %v", err)
	}

	for _, migration := range migrations {
		if !applied[migration.Version] {
			t.Errorf("migration %s not recorded as applied", migration.Version)
		}
	}
}

func TestValidateTablesExistFailsOnEmptySchema(t *testing.T) {
	db := openTestDB(t)

	validator := NewSchemaValidator(db, "sqlite3")
	if err := validator.ValidateTablesExist(); err == nil {
		t.Error("ValidateTablesExist() on empty schema should fail")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"sqlite driver", func(c *Config) { c.Driver = "sqlite3"; c.DSN = ":memory:" }, false},
		{"unknown driver", func(c *Config) { c.Driver = "postgres" }, true},
		{"empty DSN", func(c *Config) { c.DSN = "" }, true},
		{"zero attempts", func(c *Config) { c.MaxConnectAttempts = 0 }, true},
		{"zero delay", func(c *Config) { c.ReconnectDelay = 0 }, true},
		{"zero open conns", func(c *Config) { c.MaxOpenConns = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
