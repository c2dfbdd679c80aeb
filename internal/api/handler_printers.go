package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imaker-dev/restro-backend-sub004/internal/escpos"
	"github.com/imaker-dev/restro-backend-sub004/internal/model"
	"github.com/imaker-dev/restro-backend-sub004/internal/status"
)

func queryOutletID(c *gin.Context) (int64, bool) {
	outletID, err := strconv.ParseInt(c.Query("outlet_id"), 10, 64)
	if err != nil || outletID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "outlet_id is required"})
		return 0, false
	}
	return outletID, true
}

type createPrinterRequest struct {
	OutletID         int64  `json:"outlet_id" binding:"required"`
	Name             string `json:"name" binding:"required"`
	Station          string `json:"station" binding:"required"`
	KitchenStationID *int64 `json:"kitchen_station_id"`
	IP               string `json:"ip"`
	Port             int    `json:"port"`
	ConnectionType   string `json:"connection_type"`
	SupportsDrawer   bool   `json:"supports_drawer"`
	SupportsCutter   bool   `json:"supports_cutter"`
	SupportsLogo     bool   `json:"supports_logo"`
	CharsPerLine     int    `json:"chars_per_line"`
}

// CreatePrinter registers a printer. The outlet's default bridge comes into
// existence alongside the first printer, so remote delivery works with zero
// manual bridge setup.
func (h *Handler) CreatePrinter(c *gin.Context) {
	var req createPrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	printer := model.Printer{
		OutletID:         req.OutletID,
		Name:             req.Name,
		Station:          req.Station,
		KitchenStationID: req.KitchenStationID,
		IP:               req.IP,
		Port:             req.Port,
		ConnectionType:   model.ConnectionType(req.ConnectionType),
		SupportsDrawer:   req.SupportsDrawer,
		SupportsCutter:   req.SupportsCutter,
		SupportsLogo:     req.SupportsLogo,
		CharsPerLine:     req.CharsPerLine,
	}
	if printer.CharsPerLine <= 0 {
		printer.CharsPerLine = escpos.LineWidth
	}

	if err := h.registry.CreatePrinter(c.Request.Context(), &printer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, printer)
}

// ListPrinters returns the outlet's printers.
func (h *Handler) ListPrinters(c *gin.Context) {
	outletID, ok := queryOutletID(c)
	if !ok {
		return
	}
	printers, err := h.registry.ListPrinters(c.Request.Context(), outletID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve printers"})
		return
	}
	c.JSON(http.StatusOK, printers)
}

type pingRequest struct {
	PrintTestPage bool `json:"print_test_page"`
}

// PingPrinter probes a printer's raw socket on demand, optionally pushing a
// test page through the direct path.
func (h *Handler) PingPrinter(c *gin.Context) {
	printerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid printer id"})
		return
	}

	var req pingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	printer, err := h.registry.GetPrinter(ctx, printerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
		return
	}
	if printer.IP == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "printer has no ip; it is only reachable through a bridge"})
		return
	}

	var res = h.net.Probe(ctx, printer.IP, printer.Port, h.print.ProbeTimeout)
	if res.OK && req.PrintTestPage {
		text := escpos.FormatTestPage(escpos.TestData{
			OutletName:  printer.Name,
			PrinterName: printer.Name,
			Station:     printer.Station,
			PrintedAt:   time.Now(),
		})
		payload := escpos.Wrap(text, escpos.Options{Cut: printer.SupportsCutter})
		res, _ = h.net.SendRaw(ctx, printer.IP, printer.Port, payload, h.print.SendTimeout)
	}

	now := time.Now().UTC()
	if err := h.registry.SetPrinterLiveness(ctx, printer.ID, res.OK, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, res)
}

// PrinterStatus answers liveness queries. mode defaults to auto; an
// optional station_type narrows the view to one logical station group.
func (h *Handler) PrinterStatus(c *gin.Context) {
	outletID, ok := queryOutletID(c)
	if !ok {
		return
	}

	mode := status.Mode(c.DefaultQuery("mode", string(status.ModeAuto)))
	switch mode {
	case status.ModeAuto, status.ModeBridge, status.ModeDirect:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be auto, bridge or direct"})
		return
	}

	var report *status.Report
	var err error
	if stationType := c.Query("station_type"); stationType != "" {
		report, err = h.tracker.StationTypeStatus(c.Request.Context(), outletID, stationType, mode)
	} else {
		report, err = h.tracker.OutletStatus(c.Request.Context(), outletID, mode)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

type createKitchenStationRequest struct {
	OutletID int64  `json:"outlet_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type" binding:"required"`
}

// CreateKitchenStation registers a structured station entity printers can
// link to for station-type resolution.
func (h *Handler) CreateKitchenStation(c *gin.Context) {
	var req createKitchenStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ks := model.KitchenStation{OutletID: req.OutletID, Name: req.Name, Type: req.Type}
	if err := h.registry.CreateKitchenStation(c.Request.Context(), &ks); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, ks)
}
