// Package dbtest provides sqlite-backed databases for repository and service tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/angelmondragon/shopkeeper/pkg/db"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
)

// NewClient opens a private in-memory database with the full schema migrated.
// The pool is pinned to one connection so concurrent transactions serialize
// the way row locks serialize them on Postgres.
func NewClient(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:shopkeeper_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := db.Open(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	client := db.NewFromConn(conn)
	if err := client.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return client
}
