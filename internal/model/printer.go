package model

import "time"

// DefaultPrinterPort is the raw-socket port convention for network thermal
// printers.
const DefaultPrinterPort = 9100

// ConnectionType describes how a printer is attached.
type ConnectionType string

const (
	ConnectionNetwork ConnectionType = "network"
	ConnectionUSB     ConnectionType = "usb"
)

// Printer is a physical thermal printer record. IP may be empty; such a
// printer can only be reached through a bridge that knows its LAN address
// out of band.
type Printer struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	UUID     string `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	OutletID int64  `gorm:"index;not null" json:"outlet_id"`
	Name     string `gorm:"size:128;not null" json:"name"`
	Station  string `gorm:"index;size:64;not null" json:"station"`

	KitchenStationID *int64 `json:"kitchen_station_id"`

	IP             string         `gorm:"size:64" json:"ip"`
	Port           int            `gorm:"not null;default:9100" json:"port"`
	ConnectionType ConnectionType `gorm:"size:16;not null;default:network" json:"connection_type"`

	SupportsDrawer bool `gorm:"not null;default:false" json:"supports_drawer"`
	SupportsCutter bool `gorm:"not null;default:true" json:"supports_cutter"`
	SupportsLogo   bool `gorm:"not null;default:false" json:"supports_logo"`
	CharsPerLine   int  `gorm:"not null;default:42" json:"chars_per_line"`
	PaperWidthMM   int  `gorm:"not null;default:80" json:"paper_width_mm"`

	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	// Liveness cache, written by both the direct-probe path and the
	// bridge status-report path. Last writer wins; the status tracker
	// decides at read time which source to trust.
	IsOnline   bool       `gorm:"not null;default:false" json:"is_online"`
	LastSeenAt *time.Time `json:"last_seen_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// Associations
	KitchenStation *KitchenStation `gorm:"foreignKey:KitchenStationID" json:"kitchen_station,omitempty"`
}

// KitchenStation is a structured station entity a printer may link to for
// station-type resolution (e.g. a "kitchen" type grouping several physical
// station strings).
type KitchenStation struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	OutletID int64  `gorm:"index;not null" json:"outlet_id"`
	Name     string `gorm:"size:128;not null" json:"name"`
	Type     string `gorm:"size:32;not null" json:"type"`
	IsActive bool   `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
