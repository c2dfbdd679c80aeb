// Package queue is the durable, ordered, at-least-once print job queue.
// Claiming is an atomic conditional update against the store: concurrent
// bridges never win the same job.
package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imaker-dev/restro-backend-sub004/internal/model"
)

// PrinterResolver resolves the target printer for an outlet+station routing
// key at enqueue time. The registry satisfies this.
type PrinterResolver interface {
	ResolvePrinter(ctx context.Context, outletID int64, station string) (*model.Printer, error)
}

// Hinter receives best-effort "work arrived" hints. Delivery is never
// required for correctness; the periodic poll is the source of truth.
type Hinter interface {
	JobQueued(outletID int64, station string)
}

// AlertSink receives ids of jobs that exhausted their attempts.
type AlertSink interface {
	Dispatch(jobID int64)
}

// Queue is the gorm-backed job queue.
type Queue struct {
	db          *gorm.DB
	resolver    PrinterResolver
	hints       Hinter
	alerts      AlertSink
	maxAttempts int
}

// New creates a queue. hints and alerts may be nil.
func New(db *gorm.DB, resolver PrinterResolver, maxAttempts int, hints Hinter, alerts AlertSink) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Queue{db: db, resolver: resolver, hints: hints, alerts: alerts, maxAttempts: maxAttempts}
}

// EnqueueParams carries everything business logic supplies for a new job.
type EnqueueParams struct {
	OutletID        int64
	Station         string
	JobType         model.JobType
	ContentType     model.ContentType
	Content         []byte
	Priority        int
	PrinterID       *int64
	MaxAttempts     int
	ReferenceNumber string
	TableNumber     string
	CreatedBy       string
}

// Enqueue persists a pending job, resolving the target printer by station
// when no explicit printer id was given, and publishes a fire-and-forget
// wake-up hint.
func (q *Queue) Enqueue(ctx context.Context, params EnqueueParams) (*model.PrintJob, error) {
	if params.OutletID <= 0 || params.Station == "" {
		return nil, fmt.Errorf("outlet and station are required")
	}
	if params.ContentType == "" {
		params.ContentType = model.ContentTypeText
	}
	if params.MaxAttempts <= 0 {
		params.MaxAttempts = q.maxAttempts
	}

	printerID := params.PrinterID
	if printerID == nil && q.resolver != nil {
		printer, err := q.resolver.ResolvePrinter(ctx, params.OutletID, params.Station)
		if err != nil {
			return nil, err
		}
		if printer != nil {
			printerID = &printer.ID
		}
	}

	job := model.PrintJob{
		UUID:            uuid.NewString(),
		OutletID:        params.OutletID,
		Station:         params.Station,
		PrinterID:       printerID,
		JobType:         params.JobType,
		ContentType:     params.ContentType,
		Content:         params.Content,
		Priority:        params.Priority,
		MaxAttempts:     params.MaxAttempts,
		Status:          model.JobStatusPending,
		ReferenceNumber: params.ReferenceNumber,
		TableNumber:     params.TableNumber,
		CreatedBy:       params.CreatedBy,
	}

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&job).Error; err != nil {
			return fmt.Errorf("failed to create print job: %w", err)
		}
		return appendLog(tx, job.ID, nil, model.JobEventCreated, string(job.JobType)+" queued for "+job.Station)
	})
	if err != nil {
		return nil, err
	}

	if q.hints != nil {
		q.hints.JobQueued(job.OutletID, job.Station)
	}
	return &job, nil
}

// claimRetries bounds how many candidates a single claim call races for
// before reporting no work.
const claimRetries = 3

// Claim atomically hands out the single eligible job for an outlet+station:
// pending, attempts below the cap, highest priority first, FIFO within a
// priority. Returns (nil, nil) when there is no eligible work.
func (q *Queue) Claim(ctx context.Context, outletID int64, station string, bridgeID *int64) (*model.PrintJob, error) {
	return q.claim(ctx, bridgeID, "outlet_id = ? AND station = ?", outletID, station)
}

// ClaimAny is the dynamic-mode variant: any station of the outlet.
func (q *Queue) ClaimAny(ctx context.Context, outletID int64, bridgeID *int64) (*model.PrintJob, error) {
	return q.claim(ctx, bridgeID, "outlet_id = ?", outletID)
}

func (q *Queue) claim(ctx context.Context, bridgeID *int64, cond string, args ...any) (*model.PrintJob, error) {
	for i := 0; i < claimRetries; i++ {
		var candidate model.PrintJob
		err := q.db.WithContext(ctx).
			Where(cond, args...).
			Where("status = ? AND attempts < max_attempts", model.JobStatusPending).
			Order("priority DESC, created_at ASC, id ASC").
			First(&candidate).Error
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("claim candidate query failed: %w", err)
		}

		// The guarded update is the atomic step: of all concurrent claimers
		// only one sees RowsAffected == 1, everyone else retries on the next
		// candidate.
		now := time.Now().UTC()
		res := q.db.WithContext(ctx).
			Model(&model.PrintJob{}).
			Where("id = ? AND status = ? AND attempts < max_attempts", candidate.ID, model.JobStatusPending).
			Updates(map[string]any{
				"status":       model.JobStatusProcessing,
				"processed_at": now,
				"attempts":     gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return nil, fmt.Errorf("claim update failed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			continue // lost the race
		}

		candidate.Status = model.JobStatusProcessing
		candidate.ProcessedAt = &now
		candidate.Attempts++

		actor := "server"
		if bridgeID != nil {
			actor = fmt.Sprintf("bridge %d", *bridgeID)
		}
		if err := appendLog(q.db.WithContext(ctx), candidate.ID, bridgeID,
			model.JobEventClaimed, fmt.Sprintf("attempt %d claimed by %s", candidate.Attempts, actor)); err != nil {
			log.Printf("Warning: failed to log claim of job %d: %v", candidate.ID, err)
		}
		return &candidate, nil
	}
	return nil, nil
}

// ClaimByID claims one specific job, used by the synchronous direct
// delivery path at enqueue time. Same guarded update as Claim; returns
// (nil, nil) when the job is no longer eligible.
func (q *Queue) ClaimByID(ctx context.Context, jobID int64) (*model.PrintJob, error) {
	now := time.Now().UTC()
	res := q.db.WithContext(ctx).
		Model(&model.PrintJob{}).
		Where("id = ? AND status = ? AND attempts < max_attempts", jobID, model.JobStatusPending).
		Updates(map[string]any{
			"status":       model.JobStatusProcessing,
			"processed_at": now,
			"attempts":     gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("claim update failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var job model.PrintJob
	if err := q.db.WithContext(ctx).First(&job, jobID).Error; err != nil {
		return nil, fmt.Errorf("claim reload failed: %w", err)
	}
	if err := appendLog(q.db.WithContext(ctx), job.ID, nil,
		model.JobEventClaimed, fmt.Sprintf("attempt %d claimed by server for direct delivery", job.Attempts)); err != nil {
		log.Printf("Warning: failed to log claim of job %d: %v", job.ID, err)
	}
	return &job, nil
}

// Ack records a delivery outcome. Success transitions processing → printed
// and is idempotent once printed; failure requeues the job until attempts
// reach the cap, then parks it in failed for manual retry. The handler
// operates on whatever state it finds, so an ack racing an out-of-band
// cancel is accepted without corrupting state.
func (q *Queue) Ack(ctx context.Context, jobID int64, ok bool, detail string, bridgeID *int64) error {
	var job model.PrintJob
	if err := q.db.WithContext(ctx).First(&job, jobID).Error; err != nil {
		return fmt.Errorf("ack lookup failed: %w", err)
	}

	if ok {
		return q.ackSuccess(ctx, &job, bridgeID)
	}
	return q.ackFailure(ctx, &job, detail, bridgeID)
}

func (q *Queue) ackSuccess(ctx context.Context, job *model.PrintJob, bridgeID *int64) error {
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch job.Status {
		case model.JobStatusPrinted:
			// Duplicate ack; printed stays printed and counters stay put.
			return nil
		case model.JobStatusCancelled:
			// The bridge printed a job that was cancelled mid-flight. Keep
			// the terminal state, record what happened.
			return appendLog(tx, job.ID, bridgeID, model.JobEventPrinted, "printed after cancellation")
		}

		now := time.Now().UTC()
		if err := tx.Model(job).Updates(map[string]any{
			"status":     model.JobStatusPrinted,
			"printed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark job printed: %w", err)
		}
		if bridgeID != nil {
			if err := tx.Model(&model.Bridge{}).Where("id = ?", *bridgeID).
				Update("total_jobs_printed", gorm.Expr("total_jobs_printed + 1")).Error; err != nil {
				log.Printf("Warning: failed to bump printed counter for bridge %d: %v", *bridgeID, err)
			}
		}
		return appendLog(tx, job.ID, bridgeID, model.JobEventPrinted, "delivery confirmed")
	})
	return err
}

func (q *Queue) ackFailure(ctx context.Context, job *model.PrintJob, detail string, bridgeID *int64) error {
	var exhausted bool
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if bridgeID != nil {
			if err := tx.Model(&model.Bridge{}).Where("id = ?", *bridgeID).
				Update("failed_jobs", gorm.Expr("failed_jobs + 1")).Error; err != nil {
				log.Printf("Warning: failed to bump failure counter for bridge %d: %v", *bridgeID, err)
			}
		}

		if job.Status.Terminal() {
			return appendLog(tx, job.ID, bridgeID, model.JobEventFailed, "failure reported on terminal job: "+detail)
		}

		if job.Attempts >= job.MaxAttempts {
			exhausted = true
			if err := tx.Model(job).Update("status", model.JobStatusFailed).Error; err != nil {
				return fmt.Errorf("failed to mark job failed: %w", err)
			}
			return appendLog(tx, job.ID, bridgeID, model.JobEventFailed,
				fmt.Sprintf("attempts exhausted (%d/%d): %s", job.Attempts, job.MaxAttempts, detail))
		}

		if err := tx.Model(job).Update("status", model.JobStatusPending).Error; err != nil {
			return fmt.Errorf("failed to requeue job: %w", err)
		}
		return appendLog(tx, job.ID, bridgeID, model.JobEventRequeued,
			fmt.Sprintf("attempt %d/%d failed: %s", job.Attempts, job.MaxAttempts, detail))
	})
	if err != nil {
		return err
	}

	if exhausted && q.alerts != nil {
		q.alerts.Dispatch(job.ID)
	}
	return nil
}

// Cancel force-transitions a non-terminal job to cancelled.
func (q *Queue) Cancel(ctx context.Context, jobID int64, reason string) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job model.PrintJob
		if err := tx.First(&job, jobID).Error; err != nil {
			return fmt.Errorf("cancel lookup failed: %w", err)
		}
		if job.Status.Terminal() {
			return fmt.Errorf("job %d is already %s", jobID, job.Status)
		}
		if err := tx.Model(&job).Update("status", model.JobStatusCancelled).Error; err != nil {
			return fmt.Errorf("failed to cancel job: %w", err)
		}
		return appendLog(tx, job.ID, nil, model.JobEventCancelled, reason)
	})
}

// Retry resets a job for redelivery, even from failed. It is the only
// un-stuck path for a job that exhausted its attempts.
func (q *Queue) Retry(ctx context.Context, jobID int64) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job model.PrintJob
		if err := tx.First(&job, jobID).Error; err != nil {
			return fmt.Errorf("retry lookup failed: %w", err)
		}
		if job.Status == model.JobStatusPrinted {
			return fmt.Errorf("job %d is already printed", jobID)
		}
		if err := tx.Model(&job).Updates(map[string]any{
			"status":       model.JobStatusPending,
			"attempts":     0,
			"processed_at": nil,
		}).Error; err != nil {
			return fmt.Errorf("failed to reset job: %w", err)
		}
		return appendLog(tx, job.ID, nil, model.JobEventRetried, "manually requeued")
	})
}

func appendLog(tx *gorm.DB, jobID int64, bridgeID *int64, event, detail string) error {
	entry := model.PrintJobLog{
		PrintJobID: jobID,
		BridgeID:   bridgeID,
		Event:      event,
		Detail:     detail,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append job log: %w", err)
	}
	return nil
}
