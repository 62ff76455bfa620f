package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lumehaus/liveshop-backend/pkg/migrate"
)

func TestGiftMigrationContainsCounterGuards(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_gift_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no gift tables migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS gifts",
		"CREATE TABLE IF NOT EXISTS gift_rules",
		"CREATE TABLE IF NOT EXISTS applied_gifts",
		"CHECK (stock_qty >= 0)",
		"CHECK (max_total_awards IS NULL OR current_awards_count <= max_total_awards)",
		"ux_applied_gifts_cart_rule",
		"DROP TABLE IF EXISTS applied_gifts",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migration dir failed validation: %v", err)
	}
}
