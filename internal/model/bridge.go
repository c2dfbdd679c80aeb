package model

import "time"

// StationWildcard in a bridge's station assignment means "serve any pending
// job for the outlet regardless of station" (dynamic mode). An empty
// assignment means the same thing.
const StationWildcard = "*"

// DefaultBridgeKey is the legacy plaintext credential of the auto-created
// default bridge. It validates as plaintext alongside the bcrypt scheme so
// zero-setup installations keep working.
const DefaultBridgeKey = "bridge-default-key"

// Bridge is a registered remote agent that polls for print jobs on behalf of
// printers the server cannot reach directly.
type Bridge struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	UUID     string `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	OutletID int64  `gorm:"uniqueIndex:idx_bridges_outlet_code;not null" json:"outlet_id"`
	Name     string `gorm:"size:128;not null" json:"name"`
	Code     string `gorm:"uniqueIndex:idx_bridges_outlet_code;size:32;not null" json:"code"`

	// APIKey holds a bcrypt hash for bridges keyed under the current scheme,
	// or the raw key for the seeded legacy default bridge. Authentication
	// tries both forms.
	APIKey        string `gorm:"size:128;not null" json:"-"`
	AllowOpenPoll bool   `gorm:"not null;default:false" json:"allow_open_poll"`

	// Stations is a comma-separated, ordered assignment list. Empty or
	// containing StationWildcard selects dynamic mode.
	Stations string `gorm:"size:256" json:"stations"`

	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	IsOnline   bool       `gorm:"not null;default:false" json:"is_online"`
	LastPollAt *time.Time `json:"last_poll_at"`
	LastIP     string     `gorm:"size:64" json:"last_ip"`

	TotalJobsPrinted int64 `gorm:"not null;default:0" json:"total_jobs_printed"`
	FailedJobs       int64 `gorm:"not null;default:0" json:"failed_jobs"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
