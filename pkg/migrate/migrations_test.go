package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestShippedMigrationsAreValid(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
	if err := ValidateDir(""); err != nil {
		t.Fatalf("embedded migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	fsys, err := Source("")
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	embeddedFiles, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embeddedFiles) == 0 || len(embeddedFiles) != len(onDisk) {
		t.Fatalf("embedded %v, on disk %v", embeddedFiles, onDisk)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("20260301090100")
	if err != nil || v != 20260301090100 {
		t.Fatalf("unexpected version %d err=%v", v, err)
	}
	for _, bad := range []string{"", "2026", "2026030109010x", "-0260301090100"} {
		if _, err := ParseVersion(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestSalesMigrationContainsSchema(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_sales_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one sales migration, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS sales",
		"CREATE TABLE IF NOT EXISTS sale_items",
		"CREATE TABLE IF NOT EXISTS debts",
		"CHECK (payment_type IN ('cash', 'credit'))",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_debts_sale_id",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCatalogMigrationGuardsStock(t *testing.T) {
	matches, _ := filepath.Glob(filepath.Join("migrations", "*_create_catalog_tables.sql"))
	if len(matches) != 1 {
		t.Fatalf("expected one catalog migration, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	if !strings.Contains(string(data), "CHECK (qty >= 0)") {
		t.Fatalf("products.qty must be guarded against negative stock")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	path, err := CreateSQLMigration(dir, "Add Product Barcode!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if filepath.Base(path) != "20260301093000_add_product_barcode.sql" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := CreateSQLMigration(dir, "add product barcode"); err == nil {
		t.Fatal("expected duplicate migration to fail")
	}
}

func TestValidateRejectsSwappedSections(t *testing.T) {
	fsys := fstest.MapFS{
		"20260301090000_swapped.sql": {Data: []byte("-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x();\n")},
	}
	if err := Validate(fsys); err == nil {
		t.Fatal("expected down-before-up to be rejected")
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestCheckoutIDMigrationIsUnique(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_add_sales_checkout_id.sql"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one checkout id migration, got %v (%v)", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)
	for _, sub := range []string{
		"ADD COLUMN IF NOT EXISTS checkout_id",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_checkout_id ON sales (checkout_id)",
		"DROP INDEX IF EXISTS idx_sales_checkout_id",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
