package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"github.com/imaker-dev/restro-backend-sub004/config"
	"github.com/imaker-dev/restro-backend-sub004/internal/netprint"
	"github.com/imaker-dev/restro-backend-sub004/internal/notify"
	"github.com/imaker-dev/restro-backend-sub004/internal/queue"
	"github.com/imaker-dev/restro-backend-sub004/internal/registry"
	"github.com/imaker-dev/restro-backend-sub004/internal/status"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	registry *registry.Registry
	queue    *queue.Queue
	tracker  *status.Tracker
	net      *netprint.Client
	hub      *notify.Hub
	webpush  *webpush.Options
	print    config.PrintConfig

	// logo is the pre-rasterized outlet logo, nil when not configured or
	// when rasterization failed at startup. Receipts degrade to no logo.
	logo []byte
}

// NewHandler creates a new API handler.
func NewHandler(reg *registry.Registry, q *queue.Queue, tracker *status.Tracker, net *netprint.Client,
	hub *notify.Hub, webpushOptions *webpush.Options, printCfg config.PrintConfig, logo []byte) *Handler {
	return &Handler{
		registry: reg,
		queue:    q,
		tracker:  tracker,
		net:      net,
		hub:      hub,
		webpush:  webpushOptions,
		print:    printCfg,
		logo:     logo,
	}
}
