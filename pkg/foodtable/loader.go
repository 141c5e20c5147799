package foodtable

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/menta2k/calorie-estimator/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// tableFile is the on-disk JSON layout of a reference table
type tableFile struct {
	Version    string               `json:"version"`
	Categories []types.FoodCategory `json:"categories"`
}

const schema = `
CREATE TABLE IF NOT EXISTS food_categories (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    food_group TEXT NOT NULL,
    calories_per_reference REAL NOT NULL,
    reference_quantity REAL NOT NULL,
    unit TEXT NOT NULL,
    typical_portion REAL NOT NULL,
    min_portion REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS table_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Load reads a reference table from path. An empty path yields the built-in
// table; .json files are parsed as JSON, .db/.sqlite/.sqlite3 as SQLite.
func Load(ctx context.Context, path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path)
	case ".db", ".sqlite", ".sqlite3":
		return LoadSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported food table format: %s", path)
	}
}

// LoadJSON reads a reference table from a JSON file
func LoadJSON(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read food table: %w", err)
	}

	var f tableFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse food table: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("food table %s has no categories", path)
	}

	return New(f.Version, f.Categories)
}

// LoadSQLite reads a reference table from the food_categories table of a SQLite database
func LoadSQLite(ctx context.Context, path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open food table: %w", err)
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var categories []types.FoodCategory
	query := `SELECT id, name, food_group, calories_per_reference, reference_quantity,
        unit, typical_portion, min_portion FROM food_categories ORDER BY id`
	if err := db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("failed to query food categories: %w", err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("food table %s has no categories", path)
	}

	var version string
	err = db.GetContext(ctx, &version, `SELECT value FROM table_meta WHERE key = 'version'`)
	if err != nil {
		version = filepath.Base(path)
	}

	return New(version, categories)
}

// SaveSQLite writes the table into a SQLite database, replacing existing rows
func SaveSQLite(ctx context.Context, path string, t *Table) error {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM food_categories`); err != nil {
		return fmt.Errorf("failed to clear food categories: %w", err)
	}

	insert := `INSERT INTO food_categories (id, name, food_group, calories_per_reference,
        reference_quantity, unit, typical_portion, min_portion)
        VALUES (:id, :name, :food_group, :calories_per_reference, :reference_quantity,
        :unit, :typical_portion, :min_portion)`
	for _, c := range t.categories {
		if _, err := tx.NamedExecContext(ctx, insert, c); err != nil {
			return fmt.Errorf("failed to insert food category %s: %w", c.ID, err)
		}
	}

	meta := `INSERT INTO table_meta (key, value) VALUES ('version', ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, meta, t.version); err != nil {
		return fmt.Errorf("failed to store table version: %w", err)
	}

	return tx.Commit()
}
