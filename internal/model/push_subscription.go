package model

import "time"

// PushSubscription holds a browser push subscription for an operator who
// wants alerts about permanently failed jobs and offline printers.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	OutletID  int64     `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null"`
}
