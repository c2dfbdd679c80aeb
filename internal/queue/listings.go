package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/imaker-dev/restro-backend-sub004/internal/model"
)

// Get fetches a job by id.
func (q *Queue) Get(ctx context.Context, jobID int64) (*model.PrintJob, error) {
	var job model.PrintJob
	if err := q.db.WithContext(ctx).Preload("Printer").First(&job, jobID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Logs returns the append-only transition log of a job, oldest first.
func (q *Queue) Logs(ctx context.Context, jobID int64) ([]model.PrintJobLog, error) {
	var logs []model.PrintJobLog
	err := q.db.WithContext(ctx).
		Where("print_job_id = ?", jobID).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

// ListPending returns the outlet's pending jobs in claim order.
func (q *Queue) ListPending(ctx context.Context, outletID int64) ([]model.PrintJob, error) {
	var jobs []model.PrintJob
	err := q.db.WithContext(ctx).
		Where("outlet_id = ? AND status = ?", outletID, model.JobStatusPending).
		Order("priority DESC, created_at ASC, id ASC").
		Find(&jobs).Error
	return jobs, err
}

// ListFailed surfaces permanently failed jobs for operators. Manual retry
// is the only path out of this list.
func (q *Queue) ListFailed(ctx context.Context, outletID int64) ([]model.PrintJob, error) {
	var jobs []model.PrintJob
	err := q.db.WithContext(ctx).
		Where("outlet_id = ? AND status = ?", outletID, model.JobStatusFailed).
		Order("updated_at DESC").
		Find(&jobs).Error
	return jobs, err
}

// StatRow is one day's count for one job status.
type StatRow struct {
	Day    string          `json:"day"`
	Status model.JobStatus `json:"status"`
	Count  int64           `json:"count"`
}

// StatsByDate aggregates job counts per day and status over [from, to].
func (q *Queue) StatsByDate(ctx context.Context, outletID int64, from, to time.Time) ([]StatRow, error) {
	var rows []StatRow
	err := q.db.WithContext(ctx).
		Model(&model.PrintJob{}).
		Select("DATE(created_at) as day, status, COUNT(*) as count").
		Where("outlet_id = ? AND created_at >= ? AND created_at < ?", outletID, from, to).
		Group("DATE(created_at), status").
		Order("day").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("job stats query failed: %w", err)
	}
	return rows, nil
}
