// Package ingest exposes the event-sourcing input API: the platform reports
// domain events (note created, file uploaded, instance discovered) and each
// handler translates them into chart deltas.
//
// Chart updates are auxiliary work. A failure here must never roll back the
// primary domain write; callers are expected to log the error response and
// carry on.
package ingest

import (
	"github.com/gin-gonic/gin"

	"github.com/statline-io/statline/internal/charts/drive"
	"github.com/statline-io/statline/internal/charts/federation"
	"github.com/statline-io/statline/internal/charts/perusernotes"
)

const defaultMaxBodySizeMB = 1

// Service routes domain events to their charts.
type Service struct {
	notes            *perusernotes.Chart
	drive            *drive.Chart
	federation       *federation.Chart
	maxBodySizeBytes int64
}

// NewService creates the ingest service. All charts are required.
func NewService(notes *perusernotes.Chart, driveChart *drive.Chart, fed *federation.Chart, maxBodySizeMB int) *Service {
	if notes == nil || driveChart == nil || fed == nil {
		panic("ingest: all charts must be non-nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = defaultMaxBodySizeMB
	}
	return &Service{
		notes:            notes,
		drive:            driveChart,
		federation:       fed,
		maxBodySizeBytes: int64(maxBodySizeMB) * 1024 * 1024,
	}
}

// RegisterRoutes registers the event ingest routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/events/notes", s.HandleNoteEvent)
	r.POST("/v1/events/drive", s.HandleDriveEvent)
	r.POST("/v1/events/federation", s.HandleFederationEvent)
}
