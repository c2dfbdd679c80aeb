// Package registry is the persistence layer for printers, bridges and
// kitchen stations: station lookup at enqueue time, bridge authentication,
// printer-map assembly and status-report reconciliation.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imaker-dev/restro-backend-sub004/internal/model"
)

// Registry wraps all printer/bridge database operations.
type Registry struct {
	db *gorm.DB
}

// New creates a gorm-backed registry.
func New(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// DB exposes the underlying handle for callers that need raw queries.
func (r *Registry) DB() *gorm.DB {
	return r.db
}

// ResolvePrinter finds the target printer for an outlet+station routing
// key. The printer's own station string is checked first, then the type of
// any linked kitchen station. Returns (nil, nil) when nothing matches; a
// job without a resolved printer is still queueable, a bridge may know the
// device out of band.
func (r *Registry) ResolvePrinter(ctx context.Context, outletID int64, station string) (*model.Printer, error) {
	var printer model.Printer
	err := r.db.WithContext(ctx).
		Preload("KitchenStation").
		Where("outlet_id = ? AND station = ? AND is_active = ?", outletID, station, true).
		First(&printer).Error
	if err == nil {
		return &printer, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("printer lookup failed: %w", err)
	}

	err = r.db.WithContext(ctx).
		Preload("KitchenStation").
		Joins("JOIN kitchen_stations ks ON ks.id = printers.kitchen_station_id").
		Where("printers.outlet_id = ? AND ks.type = ? AND printers.is_active = ?", outletID, station, true).
		First(&printer).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("printer lookup by station type failed: %w", err)
	}
	return &printer, nil
}

// CreatePrinter registers a printer. The first printer of an outlet also
// auto-creates the outlet's default bridge so a zero-setup installation has
// a working poll credential from day one.
func (r *Registry) CreatePrinter(ctx context.Context, p *model.Printer) error {
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	if p.Port <= 0 {
		p.Port = model.DefaultPrinterPort
	}
	if p.ConnectionType == "" {
		p.ConnectionType = model.ConnectionNetwork
	}
	p.IsActive = true

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create printer: %w", err)
		}
		_, err := ensureDefaultBridge(tx, p.OutletID)
		return err
	})
}

// GetPrinter fetches a printer by id.
func (r *Registry) GetPrinter(ctx context.Context, id int64) (*model.Printer, error) {
	var printer model.Printer
	if err := r.db.WithContext(ctx).Preload("KitchenStation").First(&printer, id).Error; err != nil {
		return nil, err
	}
	return &printer, nil
}

// ListPrinters returns all printers of an outlet.
func (r *Registry) ListPrinters(ctx context.Context, outletID int64) ([]model.Printer, error) {
	var printers []model.Printer
	err := r.db.WithContext(ctx).
		Preload("KitchenStation").
		Where("outlet_id = ?", outletID).
		Order("station, id").
		Find(&printers).Error
	return printers, err
}

// SetPrinterLiveness writes the shared liveness cache. Both the direct
// probe path and the bridge status-report path land here; last writer wins
// and the status tracker picks the trusted source at read time.
func (r *Registry) SetPrinterLiveness(ctx context.Context, printerID int64, online bool, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Printer{}).
		Where("id = ?", printerID).
		Updates(map[string]any{"is_online": online, "last_seen_at": at}).Error
}

// CreateKitchenStation registers a structured station entity.
func (r *Registry) CreateKitchenStation(ctx context.Context, ks *model.KitchenStation) error {
	ks.IsActive = true
	return r.db.WithContext(ctx).Create(ks).Error
}

// StationsForType maps a logical station type (e.g. "kitchen") to the
// physical station strings of the outlet's printers linked to a kitchen
// station of that type.
func (r *Registry) StationsForType(ctx context.Context, outletID int64, stationType string) ([]string, error) {
	var stations []string
	err := r.db.WithContext(ctx).
		Model(&model.Printer{}).
		Distinct("printers.station").
		Joins("JOIN kitchen_stations ks ON ks.id = printers.kitchen_station_id").
		Where("printers.outlet_id = ? AND ks.type = ? AND printers.is_active = ?", outletID, stationType, true).
		Pluck("printers.station", &stations).Error
	if err != nil {
		return nil, fmt.Errorf("station type lookup failed: %w", err)
	}
	return stations, nil
}
