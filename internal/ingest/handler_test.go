package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/statline-io/statline/internal/charts/drive"
	"github.com/statline-io/statline/internal/charts/federation"
	"github.com/statline-io/statline/internal/charts/perusernotes"
	"github.com/statline-io/statline/internal/core/chart"
	httperr "github.com/statline-io/statline/internal/core/errors"
	"github.com/statline-io/statline/internal/core/storage/memory"
)

// stubCounts implements every chart source interface over fixed values.
type stubCounts struct {
	err error
}

func (s *stubCounts) CountNotes(context.Context, string) (int64, error)      { return 0, s.err }
func (s *stubCounts) CountInstances(context.Context) (int64, error)          { return 0, s.err }
func (s *stubCounts) DriveUsage(context.Context, string) (int64, int64, error) { return 0, 0, s.err }

type fixture struct {
	router *gin.Engine
	notes  *perusernotes.Chart
	drive  *drive.Chart
	fed    *federation.Chart
}

func newFixture(t *testing.T, counts *stubCounts) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	f := &fixture{
		notes: perusernotes.New(store, counts),
		drive: drive.New(store, counts),
		fed:   federation.New(store, counts),
	}

	f.router = gin.New()
	NewService(f.notes, f.drive, f.fed, 1).RegisterRoutes(f.router)
	return f
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandleNoteEventRecordsDelta(t *testing.T) {
	f := newFixture(t, &stubCounts{})

	w := postJSON(f.router, "/v1/events/notes", `{"user_id":"user-1","note_id":"note-1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	window, err := f.notes.Window(context.Background(), chart.SpanHour, 1, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), window[0].Total)
	require.Equal(t, int64(1), window[0].Inc)
	require.Equal(t, int64(1), window[0].Diffs.Normal)
}

func TestHandleNoteEventDeletion(t *testing.T) {
	f := newFixture(t, &stubCounts{})

	w := postJSON(f.router, "/v1/events/notes", `{"user_id":"user-1","note_id":"note-1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	w = postJSON(f.router, "/v1/events/notes", `{"user_id":"user-1","note_id":"note-1","deleted":true}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	window, err := f.notes.Window(context.Background(), chart.SpanHour, 1, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), window[0].Total)
	require.Equal(t, int64(1), window[0].Inc)
	require.Equal(t, int64(1), window[0].Dec)
}

func TestHandleNoteEventRejectsInvalidBody(t *testing.T) {
	f := newFixture(t, &stubCounts{})

	cases := map[string]string{
		"malformed json":     `{"user_id":`,
		"missing user_id":    `{"note_id":"note-1"}`,
		"missing note_id":    `{"user_id":"user-1"}`,
		"reply and renote":   `{"user_id":"user-1","note_id":"n","reply_to_id":"a","renote_of_id":"b"}`,
	}
	for name, body := range cases {
		w := postJSON(f.router, "/v1/events/notes", body)
		require.Equal(t, http.StatusBadRequest, w.Code, name)

		var resp httperr.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), name)
		require.Equal(t, httperr.HttpInvalidJsonError, resp.ErrorType, name)
	}
}

func TestHandleNoteEventBodyTooLarge(t *testing.T) {
	f := newFixture(t, &stubCounts{})

	padding := strings.Repeat("x", 2*1024*1024)
	body := `{"user_id":"user-1","note_id":"note-1","reply_to_id":"` + padding + `"}`

	w := postJSON(f.router, "/v1/events/notes", body)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandleNoteEventStoreFailure(t *testing.T) {
	f := newFixture(t, &stubCounts{err: errors.New("db down")})

	w := postJSON(f.router, "/v1/events/notes", `{"user_id":"user-1","note_id":"note-1"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, httperr.HttpStoreUnavailableErr, resp.ErrorType)
}

func TestHandleDriveEventRecordsDelta(t *testing.T) {
	f := newFixture(t, &stubCounts{})

	w := postJSON(f.router, "/v1/events/drive", `{"user_id":"user-1","file_id":"file-1","size":2048}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	window, err := f.drive.Window(context.Background(), chart.SpanHour, 1, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), window[0].TotalCount)
	require.Equal(t, int64(2048), window[0].TotalSize)
	require.Equal(t, int64(2048), window[0].IncSize)
}

func TestHandleDriveEventRejectsNegativeSize(t *testing.T) {
	f := newFixture(t, &stubCounts{})

	w := postJSON(f.router, "/v1/events/drive", `{"user_id":"user-1","file_id":"file-1","size":-1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleFederationEventRecordsDelta(t *testing.T) {
	f := newFixture(t, &stubCounts{})

	w := postJSON(f.router, "/v1/events/federation", `{"host":"remote.example"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	w = postJSON(f.router, "/v1/events/federation", `{"host":"gone.example","removed":true}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	window, err := f.fed.Window(context.Background(), chart.SpanHour, 1, "")
	require.NoError(t, err)
	require.Equal(t, int64(0), window[0].Instances.Total)
	require.Equal(t, int64(1), window[0].Instances.Inc)
	require.Equal(t, int64(1), window[0].Instances.Dec)
}

func TestHandleFederationEventRequiresHost(t *testing.T) {
	f := newFixture(t, &stubCounts{})

	w := postJSON(f.router, "/v1/events/federation", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewServiceRequiresCharts(t *testing.T) {
	require.Panics(t, func() {
		NewService(nil, nil, nil, 1)
	})
}
