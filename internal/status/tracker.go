// Package status answers "is this printer online" from the best available
// evidence: bridge-reported heartbeats or direct TCP probes.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/imaker-dev/restro-backend-sub004/internal/model"
	"github.com/imaker-dev/restro-backend-sub004/internal/netprint"
	"github.com/imaker-dev/restro-backend-sub004/internal/registry"
)

// Mode selects the liveness source for a status query.
type Mode string

const (
	// ModeDirect probes every printer with a configured IP over TCP.
	ModeDirect Mode = "direct"
	// ModeBridge trusts the liveness cache written by bridge status
	// reports, subject to the staleness window.
	ModeBridge Mode = "bridge"
	// ModeAuto picks bridge when any bridge of the outlet polled recently,
	// direct otherwise. Decided once per query, not per printer.
	ModeAuto Mode = "auto"
)

// Prober is the direct probe dependency; netprint.Client satisfies it.
type Prober interface {
	Probe(ctx context.Context, ip string, port int, timeout time.Duration) netprint.Result
}

// Tracker merges the two liveness signals into one view.
type Tracker struct {
	registry     *registry.Registry
	prober       Prober
	probeTimeout time.Duration
	staleWindow  time.Duration
	bridgeWindow time.Duration
}

// New creates a tracker. staleWindow bounds how old a bridge-reported
// reading may be before it counts as offline; bridgeWindow is the
// "recently polled" horizon auto mode uses to pick its source.
func New(reg *registry.Registry, prober Prober, probeTimeout, staleWindow, bridgeWindow time.Duration) *Tracker {
	return &Tracker{
		registry:     reg,
		prober:       prober,
		probeTimeout: probeTimeout,
		staleWindow:  staleWindow,
		bridgeWindow: bridgeWindow,
	}
}

// PrinterStatus is one printer's resolved liveness.
type PrinterStatus struct {
	PrinterID int64      `json:"printer_id"`
	Name      string     `json:"name"`
	Station   string     `json:"station"`
	IP        string     `json:"ip,omitempty"`
	Port      int        `json:"port,omitempty"`
	Online    bool       `json:"online"`
	LatencyMs int64      `json:"latency_ms,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// Report is the outcome of a status query.
type Report struct {
	Source    Mode            `json:"source"`
	AllOnline bool            `json:"all_online"`
	AnyOnline bool            `json:"any_online"`
	Printers  []PrinterStatus `json:"printers"`
}

// OutletStatus resolves liveness for every printer of the outlet.
func (t *Tracker) OutletStatus(ctx context.Context, outletID int64, mode Mode) (*Report, error) {
	printers, err := t.registry.ListPrinters(ctx, outletID)
	if err != nil {
		return nil, fmt.Errorf("status printer query failed: %w", err)
	}
	return t.report(ctx, outletID, mode, printers)
}

// StationTypeStatus aggregates liveness for the physical stations mapped to
// a logical station type (e.g. "kitchen").
func (t *Tracker) StationTypeStatus(ctx context.Context, outletID int64, stationType string, mode Mode) (*Report, error) {
	stations, err := t.registry.StationsForType(ctx, outletID, stationType)
	if err != nil {
		return nil, err
	}
	mapped := make(map[string]bool, len(stations))
	for _, s := range stations {
		mapped[s] = true
	}

	printers, err := t.registry.ListPrinters(ctx, outletID)
	if err != nil {
		return nil, fmt.Errorf("status printer query failed: %w", err)
	}
	var subset []model.Printer
	for _, p := range printers {
		if mapped[p.Station] {
			subset = append(subset, p)
		}
	}
	return t.report(ctx, outletID, mode, subset)
}

func (t *Tracker) report(ctx context.Context, outletID int64, mode Mode, printers []model.Printer) (*Report, error) {
	source, err := t.resolveMode(ctx, outletID, mode)
	if err != nil {
		return nil, err
	}

	var statuses []PrinterStatus
	if source == ModeDirect {
		statuses = t.probeAll(ctx, printers)
	} else {
		statuses = t.fromCache(printers)
	}

	report := &Report{Source: source, AllOnline: len(statuses) > 0, Printers: statuses}
	for _, s := range statuses {
		if s.Online {
			report.AnyOnline = true
		} else {
			report.AllOnline = false
		}
	}
	return report, nil
}

// resolveMode makes the source choice once per query, uniformly for every
// printer in it.
func (t *Tracker) resolveMode(ctx context.Context, outletID int64, mode Mode) (Mode, error) {
	if mode != ModeAuto && mode != "" {
		return mode, nil
	}
	recent, err := t.registry.AnyBridgeOnline(ctx, outletID, t.bridgeWindow)
	if err != nil {
		return "", err
	}
	if recent {
		return ModeBridge, nil
	}
	return ModeDirect, nil
}

// probeAll runs direct probes in parallel and persists each outcome into
// the liveness cache.
func (t *Tracker) probeAll(ctx context.Context, printers []model.Printer) []PrinterStatus {
	statuses := make([]PrinterStatus, len(printers))
	var wg sync.WaitGroup

	for i, p := range printers {
		statuses[i] = PrinterStatus{
			PrinterID: p.ID,
			Name:      p.Name,
			Station:   p.Station,
			IP:        p.IP,
			Port:      p.Port,
			LastSeen:  p.LastSeenAt,
		}
		if p.IP == "" {
			statuses[i].Message = "no ip configured; only reachable through a bridge"
			continue
		}

		wg.Add(1)
		go func(i int, p model.Printer) {
			defer wg.Done()
			res := t.prober.Probe(ctx, p.IP, p.Port, t.probeTimeout)
			now := time.Now().UTC()
			statuses[i].Online = res.OK
			statuses[i].LatencyMs = res.Latency.Milliseconds()
			statuses[i].Message = res.Message
			statuses[i].LastSeen = &now
			if err := t.registry.SetPrinterLiveness(ctx, p.ID, res.OK, now); err != nil {
				statuses[i].Message = fmt.Sprintf("%s (cache update failed: %v)", res.Message, err)
			}
		}(i, p)
	}

	wg.Wait()
	return statuses
}

// fromCache reads bridge-reported liveness. A reading older than the
// staleness window, or with no timestamp at all, reports offline regardless
// of the stored flag.
func (t *Tracker) fromCache(printers []model.Printer) []PrinterStatus {
	cutoff := time.Now().UTC().Add(-t.staleWindow)
	statuses := make([]PrinterStatus, len(printers))
	for i, p := range printers {
		s := PrinterStatus{
			PrinterID: p.ID,
			Name:      p.Name,
			Station:   p.Station,
			IP:        p.IP,
			Port:      p.Port,
			LastSeen:  p.LastSeenAt,
		}
		switch {
		case p.LastSeenAt == nil:
			s.Message = "no liveness report received yet"
		case p.LastSeenAt.Before(cutoff):
			s.Message = fmt.Sprintf("last report at %s is stale", p.LastSeenAt.Format(time.RFC3339))
		default:
			s.Online = p.IsOnline
		}
		statuses[i] = s
	}
	return statuses
}
