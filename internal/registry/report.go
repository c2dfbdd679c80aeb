package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/imaker-dev/restro-backend-sub004/internal/model"
	"github.com/imaker-dev/restro-backend-sub004/internal/parse"
)

// PrinterTarget is one entry of the printer map served to bridges for
// dynamic discovery.
type PrinterTarget struct {
	PrinterID      int64  `json:"printer_id"`
	Station        string `json:"station"`
	IP             string `json:"ip"`
	Port           int    `json:"port"`
	SupportsDrawer bool   `json:"supports_drawer"`
	SupportsCutter bool   `json:"supports_cutter"`
	CharsPerLine   int    `json:"chars_per_line"`
}

// PrinterMap assembles the station → target map a bridge pulls for dynamic
// discovery. A dynamic-mode bridge sees every active printer of the outlet
// that has an IP; a fixed-mode bridge sees only its assigned stations.
// Entries are keyed by the printer's own station string and additionally by
// the linked kitchen station's type; on collision the first key wins, so a
// printer-level station name takes priority over a station-type name.
func (r *Registry) PrinterMap(ctx context.Context, bridge *model.Bridge) (map[string]PrinterTarget, error) {
	var printers []model.Printer
	err := r.db.WithContext(ctx).
		Preload("KitchenStation").
		Where("outlet_id = ? AND is_active = ? AND ip <> ''", bridge.OutletID, true).
		Order("id").
		Find(&printers).Error
	if err != nil {
		return nil, fmt.Errorf("printer map query failed: %w", err)
	}

	assigned := parse.Stations(bridge.Stations)
	dynamic := parse.IsDynamic(assigned, model.StationWildcard)
	serves := make(map[string]bool, len(assigned))
	for _, s := range assigned {
		serves[s] = true
	}

	targets := make(map[string]PrinterTarget)
	add := func(key string, p model.Printer) {
		if key == "" {
			return
		}
		if _, taken := targets[key]; taken {
			return
		}
		targets[key] = PrinterTarget{
			PrinterID:      p.ID,
			Station:        p.Station,
			IP:             p.IP,
			Port:           p.Port,
			SupportsDrawer: p.SupportsDrawer,
			SupportsCutter: p.SupportsCutter,
			CharsPerLine:   p.CharsPerLine,
		}
	}

	// Printer-level station names first, station-type aliases second.
	for _, p := range printers {
		if !dynamic && !serves[p.Station] {
			continue
		}
		add(p.Station, p)
	}
	for _, p := range printers {
		if p.KitchenStation == nil {
			continue
		}
		if !dynamic && !serves[p.Station] {
			continue
		}
		add(p.KitchenStation.Type, p)
	}

	return targets, nil
}

// StatusReportEntry is one observed printer liveness reading pushed by a
// bridge. Identification is by printer id, ip(+port), or station, in that
// priority order.
type StatusReportEntry struct {
	PrinterID *int64     `json:"printer_id"`
	Address   string     `json:"address"`
	Station   string     `json:"station"`
	IsOnline  bool       `json:"is_online"`
	CheckedAt *time.Time `json:"checked_at"`
}

// unmatchedSampleCap bounds how many unmatched entries are echoed back.
const unmatchedSampleCap = 10

// ApplyStatusReport reconciles a batch of bridge-observed liveness readings
// against the outlet's printers. Malformed or ambiguous entries are skipped
// individually and reported back as a capped sample; the batch never fails
// as a whole.
func (r *Registry) ApplyStatusReport(ctx context.Context, outletID int64, defaultPort int, entries []StatusReportEntry) (int, []StatusReportEntry, error) {
	var printers []model.Printer
	if err := r.db.WithContext(ctx).Where("outlet_id = ?", outletID).Find(&printers).Error; err != nil {
		return 0, nil, fmt.Errorf("status report printer query failed: %w", err)
	}

	byID := make(map[int64]*model.Printer, len(printers))
	byAddr := make(map[string][]*model.Printer)
	byStation := make(map[string][]*model.Printer)
	for i := range printers {
		p := &printers[i]
		byID[p.ID] = p
		if p.IP != "" {
			key := fmt.Sprintf("%s:%d", p.IP, p.Port)
			byAddr[key] = append(byAddr[key], p)
		}
		byStation[p.Station] = append(byStation[p.Station], p)
	}

	matched := 0
	var unmatched []StatusReportEntry
	for _, entry := range entries {
		printer := matchEntry(entry, defaultPort, byID, byAddr, byStation)
		if printer == nil {
			if len(unmatched) < unmatchedSampleCap {
				unmatched = append(unmatched, entry)
			}
			continue
		}

		at := time.Now().UTC()
		if entry.CheckedAt != nil {
			at = entry.CheckedAt.UTC()
		}
		if err := r.SetPrinterLiveness(ctx, printer.ID, entry.IsOnline, at); err != nil {
			return matched, unmatched, err
		}
		matched++
	}

	return matched, unmatched, nil
}

func matchEntry(entry StatusReportEntry, defaultPort int, byID map[int64]*model.Printer, byAddr, byStation map[string][]*model.Printer) *model.Printer {
	if entry.PrinterID != nil {
		return byID[*entry.PrinterID]
	}
	if entry.Address != "" {
		host, port, err := parse.HostPort(entry.Address, defaultPort)
		if err == nil {
			candidates := byAddr[fmt.Sprintf("%s:%d", host, port)]
			if len(candidates) == 1 {
				return candidates[0]
			}
			// Zero or ambiguous by address; fall through to station.
		}
	}
	if entry.Station != "" {
		candidates := byStation[entry.Station]
		if len(candidates) == 1 {
			return candidates[0]
		}
	}
	return nil
}
