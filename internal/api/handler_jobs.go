package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imaker-dev/restro-backend-sub004/internal/escpos"
	"github.com/imaker-dev/restro-backend-sub004/internal/model"
	"github.com/imaker-dev/restro-backend-sub004/internal/netprint"
	"github.com/imaker-dev/restro-backend-sub004/internal/queue"
)

type enqueueJobRequest struct {
	OutletID        int64  `json:"outlet_id" binding:"required"`
	Station         string `json:"station" binding:"required"`
	JobType         string `json:"job_type" binding:"required,oneof=kot bot bill duplicate_bill cancel_slip cash_drawer test"`
	Content         string `json:"content"`
	Priority        int    `json:"priority"`
	ReferenceNumber string `json:"reference_number"`
	TableNumber     string `json:"table_number"`
	CreatedBy       string `json:"created_by"`

	Beep       bool `json:"beep"`
	Cut        bool `json:"cut"`
	PartialCut bool `json:"partial_cut"`
	OpenDrawer bool `json:"open_drawer"`
	Logo       bool `json:"logo"`
}

// EnqueueJob accepts a formatted payload from business logic, encodes it
// for the printer and queues it. When no bridge has polled recently the
// job is also pushed synchronously over the direct TCP path.
func (h *Handler) EnqueueJob(c *gin.Context) {
	var req enqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobType := model.JobType(req.JobType)
	var content []byte
	if jobType == model.JobTypeCashDrawer {
		content = escpos.DrawerPulse()
	} else {
		if req.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
			return
		}
		var logo []byte
		if req.Logo {
			// A nil logo means rasterization failed or none is configured;
			// the receipt simply prints without one.
			logo = h.logo
		}
		content = escpos.Wrap(req.Content, escpos.Options{
			Beep:       req.Beep,
			Cut:        req.Cut,
			PartialCut: req.PartialCut,
			OpenDrawer: req.OpenDrawer,
			Logo:       logo,
		})
	}

	ctx := c.Request.Context()
	job, err := h.queue.Enqueue(ctx, queue.EnqueueParams{
		OutletID:        req.OutletID,
		Station:         req.Station,
		JobType:         jobType,
		ContentType:     model.ContentTypeEscPos,
		Content:         content,
		Priority:        req.Priority,
		ReferenceNumber: req.ReferenceNumber,
		TableNumber:     req.TableNumber,
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	delivery := h.maybeDeliverDirect(c, job)
	c.JSON(http.StatusCreated, gin.H{"job": job, "direct_delivery": delivery})
}

// maybeDeliverDirect pushes the job over raw TCP when the outlet has no
// recently-online bridge and the resolved printer is directly reachable.
// The outcome feeds the normal ack path, so retries and the audit log work
// identically for both delivery modes.
func (h *Handler) maybeDeliverDirect(c *gin.Context, job *model.PrintJob) *netprint.Result {
	ctx := c.Request.Context()

	bridged, err := h.registry.AnyBridgeOnline(ctx, job.OutletID, h.print.BridgeOnlineWindow)
	if err != nil {
		log.Printf("Warning: bridge liveness check failed for outlet %d: %v", job.OutletID, err)
		return nil
	}
	if bridged || job.PrinterID == nil {
		return nil
	}

	printer, err := h.registry.GetPrinter(ctx, *job.PrinterID)
	if err != nil || printer.IP == "" {
		return nil
	}

	claimed, err := h.queue.ClaimByID(ctx, job.ID)
	if err != nil || claimed == nil {
		// A bridge got there first; leave delivery to it.
		return nil
	}

	res, sendErr := h.net.SendRaw(ctx, printer.IP, printer.Port, job.Content, h.print.SendTimeout)
	if sendErr != nil {
		if err := h.queue.Ack(ctx, job.ID, false, res.Message, nil); err != nil {
			log.Printf("Warning: failed to record direct delivery failure for job %d: %v", job.ID, err)
		}
		return &res
	}
	if err := h.queue.Ack(ctx, job.ID, true, "", nil); err != nil {
		log.Printf("Warning: failed to record direct delivery for job %d: %v", job.ID, err)
	}
	return &res
}

// ListPendingJobs returns the outlet's pending jobs in claim order.
func (h *Handler) ListPendingJobs(c *gin.Context) {
	outletID, ok := queryOutletID(c)
	if !ok {
		return
	}
	jobs, err := h.queue.ListPending(c.Request.Context(), outletID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve jobs"})
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// ListFailedJobs surfaces permanently failed jobs for manual retry.
func (h *Handler) ListFailedJobs(c *gin.Context) {
	outletID, ok := queryOutletID(c)
	if !ok {
		return
	}
	jobs, err := h.queue.ListFailed(c.Request.Context(), outletID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve jobs"})
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// JobStats aggregates counts per day and status between from and to
// (RFC3339 dates, default last 7 days).
func (h *Handler) JobStats(c *gin.Context) {
	outletID, ok := queryOutletID(c)
	if !ok {
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp, use RFC3339"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp, use RFC3339"})
			return
		}
		to = t
	}

	rows, err := h.queue.StatsByDate(c.Request.Context(), outletID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func pathJobID(c *gin.Context) (int64, bool) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return 0, false
	}
	return jobID, true
}

// JobLogs returns a job's append-only transition log.
func (h *Handler) JobLogs(c *gin.Context) {
	jobID, ok := pathJobID(c)
	if !ok {
		return
	}
	logs, err := h.queue.Logs(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve job logs"})
		return
	}
	c.JSON(http.StatusOK, logs)
}

// RetryJob resets a job for redelivery, even from failed.
func (h *Handler) RetryJob(c *gin.Context) {
	jobID, ok := pathJobID(c)
	if !ok {
		return
	}
	if err := h.queue.Retry(c.Request.Context(), jobID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type cancelJobRequest struct {
	Reason string `json:"reason"`
}

// CancelJob force-cancels a non-terminal job.
func (h *Handler) CancelJob(c *gin.Context) {
	jobID, ok := pathJobID(c)
	if !ok {
		return
	}
	var req cancelJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := h.queue.Cancel(c.Request.Context(), jobID, req.Reason); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
