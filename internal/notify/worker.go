package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"github.com/imaker-dev/restro-backend-sub004/internal/model"
)

// Sender sends a single web push notification. Split out so tests can
// inject a fake.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// AlertPool pushes "job failed permanently" alerts to operator push
// subscriptions through a pool of workers.
type AlertPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewAlertPool creates an alert pool.
func NewAlertPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *AlertPool {
	if size <= 0 {
		size = 1
	}
	return &AlertPool{
		size:    size,
		jobs:    make(chan int64, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// SetSender replaces the sender; tests use this to avoid real pushes.
func (p *AlertPool) SetSender(s Sender) { p.sender = s }

// Jobs exposes the job channel for tests.
func (p *AlertPool) Jobs() chan int64 { return p.jobs }

// Start launches the worker goroutines.
func (p *AlertPool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		go p.worker(ctx, i)
	}
}

func (p *AlertPool) worker(ctx context.Context, id int) {
	log.Printf("alert worker %d started", id)
	for {
		select {
		case jobID := <-p.jobs:
			p.sendAlertsForJob(ctx, jobID)
		case <-ctx.Done():
			log.Printf("alert worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert. Non-blocking: when the buffer is full the alert
// is dropped, the failed-job listing is the durable surface.
func (p *AlertPool) Dispatch(jobID int64) {
	select {
	case p.jobs <- jobID:
	default:
		log.Printf("alert queue full, dropping alert for job %d", jobID)
	}
}

func (p *AlertPool) sendAlertsForJob(ctx context.Context, jobID int64) {
	var job model.PrintJob
	if err := p.db.WithContext(ctx).First(&job, jobID).Error; err != nil {
		log.Printf("Error fetching job %d for alert: %v", jobID, err)
		return
	}

	var subscriptions []model.PushSubscription
	if err := p.db.WithContext(ctx).
		Where("outlet_id = ?", job.OutletID).
		Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching subscriptions for outlet %d: %v", job.OutletID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	message := fmt.Sprintf("Print job %s (%s) for station %q failed after %d attempts",
		job.ReferenceNumber, job.JobType, job.Station, job.Attempts)
	log.Printf("Sending %d failure alerts for job %d", len(subscriptions), jobID)
	for _, sub := range subscriptions {
		p.sendAlert(ctx, sub, []byte(message))
	}
}

func (p *AlertPool) sendAlert(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := p.sender.Send(payload, wpSub, p.webpush)
	if err != nil {
		log.Printf("Error sending alert to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions are removed on the spot.
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription %s is expired. Deleting.", sub.Endpoint)
		if err := p.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
