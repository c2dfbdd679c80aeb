package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/imaker-dev/restro-backend-sub004/internal/model"
	"github.com/imaker-dev/restro-backend-sub004/internal/parse"
	"github.com/imaker-dev/restro-backend-sub004/internal/registry"
)

// bridgeCredential pulls the poll credential from either the dedicated
// header or a bearer-style authorization header.
func bridgeCredential(c *gin.Context) string {
	if key := c.GetHeader("X-Bridge-Key"); key != "" {
		return key
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// authenticate resolves and validates the calling bridge. On failure it
// writes the 401 itself and returns nil.
func (h *Handler) authenticate(c *gin.Context, outletID int64, code string) *model.Bridge {
	bridge, err := h.registry.AuthenticateBridge(c.Request.Context(), outletID, code, bridgeCredential(c))
	if err != nil {
		if err == registry.ErrBridgeAuth {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bridge authentication failed"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bridge lookup failed"})
		}
		return nil
	}
	return bridge
}

type pollRequest struct {
	OutletID   int64  `json:"outlet_id" binding:"required"`
	BridgeCode string `json:"bridge_code" binding:"required"`
}

// jobPayload is the wire shape of a claimed job. Content is raw bytes and
// serializes as base64, so ESC/POS control bytes survive the trip intact.
type jobPayload struct {
	ID              int64             `json:"id"`
	UUID            string            `json:"uuid"`
	JobType         model.JobType     `json:"job_type"`
	ContentType     model.ContentType `json:"content_type"`
	Content         []byte            `json:"content"`
	Station         string            `json:"station"`
	Priority        int               `json:"priority"`
	Attempts        int               `json:"attempts"`
	ReferenceNumber string            `json:"reference_number"`
	TableNumber     string            `json:"table_number"`
	PrinterIP       string            `json:"printer_ip,omitempty"`
	PrinterPort     int               `json:"printer_port,omitempty"`
}

// BridgePoll hands the calling bridge its next job, if any. An empty queue
// is not an error: the response is 200 with a null job.
func (h *Handler) BridgePoll(c *gin.Context) {
	var req pollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bridge := h.authenticate(c, req.OutletID, req.BridgeCode)
	if bridge == nil {
		return
	}

	ctx := c.Request.Context()
	stations := parse.Stations(bridge.Stations)

	var job *model.PrintJob
	var err error
	if parse.IsDynamic(stations, model.StationWildcard) {
		job, err = h.queue.ClaimAny(ctx, bridge.OutletID, &bridge.ID)
	} else {
		// Assigned stations are tried in stored order and the first hit
		// wins, so assignment order ranks a bridge's own stations.
		for _, station := range stations {
			job, err = h.queue.Claim(ctx, bridge.OutletID, station, &bridge.ID)
			if err != nil || job != nil {
				break
			}
		}
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The poll itself proves the bridge is alive, job or not.
	if err := h.registry.MarkBridgeOnline(ctx, bridge.ID, c.ClientIP()); err != nil {
		log.Printf("Warning: failed to mark bridge %d online: %v", bridge.ID, err)
	}

	if job == nil {
		c.JSON(http.StatusOK, gin.H{"job": nil, "bridge_id": bridge.ID})
		return
	}

	payload := jobPayload{
		ID:              job.ID,
		UUID:            job.UUID,
		JobType:         job.JobType,
		ContentType:     job.ContentType,
		Content:         job.Content,
		Station:         job.Station,
		Priority:        job.Priority,
		Attempts:        job.Attempts,
		ReferenceNumber: job.ReferenceNumber,
		TableNumber:     job.TableNumber,
	}
	if job.PrinterID != nil {
		if printer, err := h.registry.GetPrinter(ctx, *job.PrinterID); err == nil && printer.IP != "" {
			payload.PrinterIP = printer.IP
			payload.PrinterPort = printer.Port
		}
	}

	c.JSON(http.StatusOK, gin.H{"job": payload, "bridge_id": bridge.ID})
}

type ackRequest struct {
	OutletID   int64  `json:"outlet_id" binding:"required"`
	BridgeCode string `json:"bridge_code" binding:"required"`
	JobID      int64  `json:"job_id" binding:"required"`
	Status     string `json:"status" binding:"required,oneof=printed failed"`
	Error      string `json:"error"`
}

// BridgeAck records a delivery outcome for a previously claimed job.
func (h *Handler) BridgeAck(c *gin.Context) {
	var req ackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bridge := h.authenticate(c, req.OutletID, req.BridgeCode)
	if bridge == nil {
		return
	}

	ctx := c.Request.Context()
	if err := h.queue.Ack(ctx, req.JobID, req.Status == "printed", req.Error, &bridge.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.registry.MarkBridgeOnline(ctx, bridge.ID, c.ClientIP()); err != nil {
		log.Printf("Warning: failed to mark bridge %d online: %v", bridge.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func bridgeQueryIdentity(c *gin.Context) (int64, string, bool) {
	outletID, err := strconv.ParseInt(c.Query("outlet_id"), 10, 64)
	if err != nil || c.Query("bridge_code") == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "outlet_id and bridge_code are required"})
		return 0, "", false
	}
	return outletID, c.Query("bridge_code"), true
}

// BridgePrinterMap serves the station → printer target map bridges use for
// dynamic discovery.
func (h *Handler) BridgePrinterMap(c *gin.Context) {
	outletID, code, ok := bridgeQueryIdentity(c)
	if !ok {
		return
	}
	bridge := h.authenticate(c, outletID, code)
	if bridge == nil {
		return
	}

	targets, err := h.registry.PrinterMap(c.Request.Context(), bridge)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"printers": targets, "bridge_id": bridge.ID})
}

type statusReportRequest struct {
	OutletID   int64                        `json:"outlet_id" binding:"required"`
	BridgeCode string                       `json:"bridge_code" binding:"required"`
	Printers   []registry.StatusReportEntry `json:"printers" binding:"required"`
}

// BridgeStatusReport ingests a batch of bridge-observed printer liveness
// readings. Unmatched entries never fail the batch; they come back as a
// capped sample for the bridge to log.
func (h *Handler) BridgeStatusReport(c *gin.Context) {
	var req statusReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bridge := h.authenticate(c, req.OutletID, req.BridgeCode)
	if bridge == nil {
		return
	}

	matched, unmatched, err := h.registry.ApplyStatusReport(
		c.Request.Context(), bridge.OutletID, h.print.DefaultPrinterPort, req.Printers)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"matched":          matched,
		"unmatched":        len(req.Printers) - matched,
		"unmatched_sample": unmatched,
	})
}

var wsUpgrader = websocket.Upgrader{
	// Bridges connect from kitchen LANs with arbitrary origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// BridgeWS is the optional wake-hint channel. A connected bridge gets a
// small JSON hint whenever work is queued for its outlet; a missed hint is
// harmless because polling remains the source of truth.
func (h *Handler) BridgeWS(c *gin.Context) {
	outletID, code, ok := bridgeQueryIdentity(c)
	if !ok {
		return
	}
	bridge := h.authenticate(c, outletID, code)
	if bridge == nil {
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed for bridge %d: %v", bridge.ID, err)
		return
	}
	defer conn.Close()

	hints := h.hub.Subscribe(bridge.OutletID)
	defer h.hub.Unsubscribe(bridge.OutletID, hints)

	// Drain reads so the close handshake works; the hint channel is
	// one-directional.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case hint, ok := <-hints:
			if !ok {
				return
			}
			if err := conn.WriteJSON(hint); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
