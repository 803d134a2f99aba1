package ingest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	v1 "github.com/statline-io/statline/internal/api/v1"
	"github.com/statline-io/statline/internal/charts/drive"
	"github.com/statline-io/statline/internal/charts/perusernotes"
	httperr "github.com/statline-io/statline/internal/core/errors"
)

const (
	msgInvalidJSON  = "Invalid JSON body"
	msgBodyTooLarge = "Request body exceeds maximum allowed size"
	msgRecordFailed = "Failed to record chart delta"
	statusRecorded  = "recorded"
)

// validator is the common shape of the v1 event types.
type validator interface {
	Validate() error
}

// HandleNoteEvent handles POST /v1/events/notes.
func (s *Service) HandleNoteEvent(c *gin.Context) {
	var evt v1.NoteEvent
	if !s.bindEvent(c, &evt) {
		return
	}
	evt.ID = defaultID(evt.ID)

	slog.Info("[Ingest] Note event",
		"event_id", evt.ID,
		"user_id", evt.UserID,
		"note_id", evt.NoteID,
		"deleted", evt.Deleted)

	err := s.notes.Update(c.Request.Context(), perusernotes.Note{
		UserID:     evt.UserID,
		ReplyToID:  evt.ReplyToID,
		RenoteOfID: evt.RenoteOfID,
	}, !evt.Deleted)
	if err != nil {
		writeUpdateError(c, "note", evt.ID, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": statusRecorded})
}

// HandleDriveEvent handles POST /v1/events/drive.
func (s *Service) HandleDriveEvent(c *gin.Context) {
	var evt v1.DriveFileEvent
	if !s.bindEvent(c, &evt) {
		return
	}
	evt.ID = defaultID(evt.ID)

	slog.Info("[Ingest] Drive event",
		"event_id", evt.ID,
		"user_id", evt.UserID,
		"file_id", evt.FileID,
		"size", evt.Size,
		"deleted", evt.Deleted)

	err := s.drive.Update(c.Request.Context(), drive.File{
		UserID: evt.UserID,
		Size:   evt.Size,
	}, !evt.Deleted)
	if err != nil {
		writeUpdateError(c, "drive", evt.ID, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": statusRecorded})
}

// HandleFederationEvent handles POST /v1/events/federation.
func (s *Service) HandleFederationEvent(c *gin.Context) {
	var evt v1.FederationEvent
	if !s.bindEvent(c, &evt) {
		return
	}
	evt.ID = defaultID(evt.ID)

	slog.Info("[Ingest] Federation event",
		"event_id", evt.ID,
		"host", evt.Host,
		"removed", evt.Removed)

	if err := s.federation.Update(c.Request.Context(), !evt.Removed); err != nil {
		writeUpdateError(c, "federation", evt.ID, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": statusRecorded})
}

// bindEvent decodes the request body into evt with a size cap and runs the
// event's own validation. Writes the error response and returns false on
// failure.
func (s *Service) bindEvent(c *gin.Context, evt validator) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodySizeBytes)

	if err := c.ShouldBindJSON(evt); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			slog.Warn("[Ingest] Request body exceeds maximum size", "max_bytes", s.maxBodySizeBytes)
			c.JSON(http.StatusRequestEntityTooLarge, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidJsonError,
				Message:   msgBodyTooLarge,
			})
			return false
		}

		slog.Warn("[Ingest] Invalid JSON body received", "error", err)
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   msgInvalidJSON,
		})
		return false
	}

	if err := evt.Validate(); err != nil {
		slog.Warn("[Ingest] Event validation failed", "error", err)
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   err.Error(),
		})
		return false
	}

	return true
}

// writeUpdateError reports a failed chart update. The delta is lost but the
// caller's primary write already succeeded; surfacing 503 lets the platform
// log and continue.
func writeUpdateError(c *gin.Context, kind, eventID string, err error) {
	slog.Error("[Ingest] Chart update failed",
		"event_kind", kind,
		"event_id", eventID,
		"error", err)
	c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
		ErrorType: httperr.HttpStoreUnavailableErr,
		Message:   msgRecordFailed,
		Details:   err.Error(),
	})
}

func defaultID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
