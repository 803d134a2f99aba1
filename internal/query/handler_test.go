package query

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/statline-io/statline/internal/core/chart"
	httperr "github.com/statline-io/statline/internal/core/errors"
)

func newTestRouter(t *testing.T, charts ...chart.ChartService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	newTestService(t, charts...).RegisterRoutes(router)
	return router
}

func TestHandleSeriesOK(t *testing.T) {
	fc := &fakeChart{name: "federation", data: []map[string]int{{"total": 5}}}
	router := newTestRouter(t, fc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/charts/federation?span=hour&limit=1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp SeriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "federation", resp.Chart)
	require.Equal(t, chart.SpanHour, resp.Span)
	require.Equal(t, 1, resp.Limit)
	require.Empty(t, resp.Group)
}

func TestHandleSeriesMissingSpan(t *testing.T) {
	router := newTestRouter(t, &fakeChart{name: "federation"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/charts/federation", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, httperr.HttpInvalidQueryError, resp.ErrorType)
}

func TestHandleSeriesInvalidQuery(t *testing.T) {
	router := newTestRouter(t, &fakeChart{name: "federation"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/charts/federation?span=week", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, httperr.HttpInvalidQueryError, resp.ErrorType)
}

func TestHandleSeriesStoreFailure(t *testing.T) {
	fc := &fakeChart{name: "federation", err: errors.New("connection refused")}
	router := newTestRouter(t, fc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/charts/federation?span=hour", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, httperr.HttpStoreUnavailableErr, resp.ErrorType)
}
