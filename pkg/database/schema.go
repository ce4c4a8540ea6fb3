package database

import (
	"database/sql"
	"fmt"
)

// SchemaValidator verifies at startup that the store contains the tables the
// relay depends on, so a misconfigured DSN fails fast instead of at the
// first chat message.
type SchemaValidator struct {
	db     *sql.DB
	driver string
}

// NewSchemaValidator creates a schema validator for the given driver.
func NewSchemaValidator(db *sql.DB, driver string) *SchemaValidator {
	return &SchemaValidator{db: db, driver: driver}
}

// ValidateTablesExist verifies that all required tables exist.
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"users":             "user display metadata",
		"messages":          "chat message storage",
		"schema_migrations": "migration tracking",
	}

	for table, description := range requiredTables {
		exists, err := v.tableExists(table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}

	return nil
}

func (v *SchemaValidator) tableExists(tableName string) (bool, error) {
	var count int
	var err error

	switch v.driver {
	case "sqlite3":
		err = v.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			tableName,
		).Scan(&count)
	default:
		err = v.db.QueryRow(
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
			tableName,
		).Scan(&count)
	}

	if err != nil {
		return false, err
	}
	return count > 0, nil
}
