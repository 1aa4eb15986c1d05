package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopkeeper/pkg/config"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
)

func sqliteConfig() *config.Config {
	return &config.Config{
		App:          config.AppConfig{Env: "dev"},
		DB:           config.DBConfig{Driver: config.DriverSQLite, DSN: ":memory:"},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true, AutoMigrate: true},
		Store:        config.StoreConfig{Name: "Test", Timezone: "Asia/Tashkent", Brand: "SRM"},
		FX:           config.FXConfig{FallbackRate: "12800"},
	}
}

func TestNewWiresServicesWithoutRedis(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, sqliteConfig(), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	require.Nil(t, a.Redis)
	require.Equal(t, "Asia/Tashkent", a.Location.String())
	require.NotNil(t, a.Catalog)
	require.NotNil(t, a.Cart)
	require.NotNil(t, a.Checkout)
	require.NotNil(t, a.Ledger)
	require.NotNil(t, a.Reports)
	require.NotNil(t, a.Receipts)
	require.NoError(t, a.Ping(ctx))

	// the schema was migrated, so lookups reach the database.
	found, err := a.Catalog.Search(ctx, "", 10)
	require.NoError(t, err)
	require.Empty(t, found)

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	cfg := sqliteConfig()
	cfg.Store.Timezone = "Mars/Olympus"
	_, err := New(context.Background(), cfg, logger.Nop())
	require.Error(t, err)
}

func TestNewRejectsBadFallbackRate(t *testing.T) {
	cfg := sqliteConfig()
	cfg.FX.FallbackRate = "-1"
	_, err := New(context.Background(), cfg, logger.Nop())
	require.ErrorContains(t, err, "fx provider")
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, logger.Nop())
	require.Error(t, err)
}
