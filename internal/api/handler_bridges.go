package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imaker-dev/restro-backend-sub004/internal/model"
)

type createBridgeRequest struct {
	OutletID      int64  `json:"outlet_id" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Code          string `json:"code" binding:"required"`
	APIKey        string `json:"api_key" binding:"required,min=12"`
	Stations      string `json:"stations"`
	AllowOpenPoll bool   `json:"allow_open_poll"`
}

// CreateBridge registers a bridge with a hashed credential. Stations is an
// ordered comma list; empty or "*" selects dynamic mode.
func (h *Handler) CreateBridge(c *gin.Context) {
	var req createBridgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bridge := model.Bridge{
		OutletID:      req.OutletID,
		Name:          req.Name,
		Code:          req.Code,
		Stations:      req.Stations,
		AllowOpenPoll: req.AllowOpenPoll,
	}
	if err := h.registry.CreateBridge(c.Request.Context(), &bridge, req.APIKey); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, bridge)
}

// ListBridges returns the outlet's bridges with their liveness counters.
func (h *Handler) ListBridges(c *gin.Context) {
	outletID, ok := queryOutletID(c)
	if !ok {
		return
	}
	bridges, err := h.registry.ListBridges(c.Request.Context(), outletID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve bridges"})
		return
	}
	c.JSON(http.StatusOK, bridges)
}

// DeactivateBridge soft-disables a bridge.
func (h *Handler) DeactivateBridge(c *gin.Context) {
	bridgeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bridge id"})
		return
	}
	if err := h.registry.DeactivateBridge(c.Request.Context(), bridgeID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
