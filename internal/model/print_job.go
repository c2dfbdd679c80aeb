package model

import "time"

// JobType identifies what kind of document a print job carries.
type JobType string

const (
	JobTypeKOT           JobType = "kot"
	JobTypeBOT           JobType = "bot"
	JobTypeBill          JobType = "bill"
	JobTypeDuplicateBill JobType = "duplicate_bill"
	JobTypeCancelSlip    JobType = "cancel_slip"
	JobTypeCashDrawer    JobType = "cash_drawer"
	JobTypeTest          JobType = "test"
)

// ContentType tells a bridge whether the payload is plain text or
// already-encoded ESC/POS bytes.
type ContentType string

const (
	ContentTypeText   ContentType = "text"
	ContentTypeEscPos ContentType = "escpos"
)

// JobStatus is the lifecycle state of a print job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusPrinted    JobStatus = "printed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether a status permits no further transitions
// other than an explicit operator retry.
func (s JobStatus) Terminal() bool {
	return s == JobStatusPrinted || s == JobStatusFailed || s == JobStatusCancelled
}

// PrintJob is one unit of work in the delivery queue. Content is persisted
// as opaque binary so ESC/POS control bytes round-trip exactly.
type PrintJob struct {
	ID          int64       `gorm:"primaryKey" json:"id"`
	UUID        string      `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	OutletID    int64       `gorm:"index:idx_print_jobs_claim,priority:1;not null" json:"outlet_id"`
	Station     string      `gorm:"index:idx_print_jobs_claim,priority:2;size:64;not null" json:"station"`
	PrinterID   *int64      `gorm:"index" json:"printer_id"`
	JobType     JobType     `gorm:"size:32;not null" json:"job_type"`
	ContentType ContentType `gorm:"size:16;not null;default:text" json:"content_type"`
	Content     []byte      `gorm:"not null" json:"-"`

	Priority    int       `gorm:"not null;default:0" json:"priority"`
	Attempts    int       `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int       `gorm:"not null;default:3" json:"max_attempts"`
	Status      JobStatus `gorm:"index:idx_print_jobs_claim,priority:3;size:16;not null;default:pending" json:"status"`

	ReferenceNumber string `gorm:"size:64" json:"reference_number"`
	TableNumber     string `gorm:"size:32" json:"table_number"`
	CreatedBy       string `gorm:"size:64" json:"created_by"`

	ProcessedAt *time.Time `json:"processed_at"`
	PrintedAt   *time.Time `json:"printed_at"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`

	// Associations
	Printer *Printer `gorm:"foreignKey:PrinterID" json:"printer,omitempty"`
}

// PrintJobLog is an append-only record of a job state transition.
// BridgeID is null for transitions made by the server or an operator.
type PrintJobLog struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	PrintJobID int64     `gorm:"index;not null" json:"print_job_id"`
	BridgeID   *int64    `json:"bridge_id"`
	Event      string    `gorm:"size:32;not null" json:"event"`
	Detail     string    `gorm:"size:512" json:"detail"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

// Log event names.
const (
	JobEventCreated   = "created"
	JobEventClaimed   = "claimed"
	JobEventPrinted   = "printed"
	JobEventFailed    = "failed"
	JobEventRequeued  = "requeued"
	JobEventRetried   = "retried"
	JobEventCancelled = "cancelled"
)
