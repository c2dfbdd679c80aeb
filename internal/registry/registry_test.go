package registry

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/imaker-dev/restro-backend-sub004/internal/db"
	"github.com/imaker-dev/restro-backend-sub004/internal/model"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return New(gdb)
}

func TestCreatePrinterDefaultsAndDefaultBridge(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	printer := model.Printer{OutletID: 1, Name: "Kitchen Epson", Station: "kot_kitchen", IP: "192.168.1.50"}
	require.NoError(t, reg.CreatePrinter(ctx, &printer))

	assert.NotEmpty(t, printer.UUID)
	assert.Equal(t, model.DefaultPrinterPort, printer.Port)
	assert.Equal(t, model.ConnectionNetwork, printer.ConnectionType)
	assert.True(t, printer.IsActive)

	// The outlet's first printer seeds the default bridge.
	bridges, err := reg.ListBridges(ctx, 1)
	require.NoError(t, err)
	require.Len(t, bridges, 1)
	assert.Equal(t, "default", bridges[0].Code)
	assert.Equal(t, model.DefaultBridgeKey, bridges[0].APIKey)
	assert.Empty(t, bridges[0].Stations)

	// A second printer does not seed another.
	second := model.Printer{OutletID: 1, Name: "Bar", Station: "bar"}
	require.NoError(t, reg.CreatePrinter(ctx, &second))
	bridges, err = reg.ListBridges(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, bridges, 1)
}

func TestResolvePrinter(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	ks := model.KitchenStation{OutletID: 1, Name: "Main Kitchen", Type: "kitchen"}
	require.NoError(t, reg.CreateKitchenStation(ctx, &ks))

	printer := model.Printer{
		OutletID: 1, Name: "Kitchen Epson", Station: "kot_kitchen",
		KitchenStationID: &ks.ID, IP: "192.168.1.50",
	}
	require.NoError(t, reg.CreatePrinter(ctx, &printer))

	t.Run("by station string", func(t *testing.T) {
		got, err := reg.ResolvePrinter(ctx, 1, "kot_kitchen")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, printer.ID, got.ID)
	})

	t.Run("by kitchen station type", func(t *testing.T) {
		got, err := reg.ResolvePrinter(ctx, 1, "kitchen")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, printer.ID, got.ID)
	})

	t.Run("no match is not an error", func(t *testing.T) {
		got, err := reg.ResolvePrinter(ctx, 1, "patisserie")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("other outlet does not match", func(t *testing.T) {
		got, err := reg.ResolvePrinter(ctx, 2, "kot_kitchen")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStationsForType(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	ks := model.KitchenStation{OutletID: 1, Name: "Main Kitchen", Type: "kitchen"}
	require.NoError(t, reg.CreateKitchenStation(ctx, &ks))

	for _, station := range []string{"kot_kitchen", "tandoor"} {
		p := model.Printer{OutletID: 1, Name: station, Station: station, KitchenStationID: &ks.ID}
		require.NoError(t, reg.CreatePrinter(ctx, &p))
	}
	unlinked := model.Printer{OutletID: 1, Name: "Bar", Station: "bar"}
	require.NoError(t, reg.CreatePrinter(ctx, &unlinked))

	stations, err := reg.StationsForType(ctx, 1, "kitchen")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"kot_kitchen", "tandoor"}, stations)
}

func TestSetPrinterLiveness(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	printer := model.Printer{OutletID: 1, Name: "Kitchen", Station: "kot_kitchen"}
	require.NoError(t, reg.CreatePrinter(ctx, &printer))

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, reg.SetPrinterLiveness(ctx, printer.ID, true, at))

	got, err := reg.GetPrinter(ctx, printer.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline)
	require.NotNil(t, got.LastSeenAt)
	assert.WithinDuration(t, at, *got.LastSeenAt, time.Second)
}
