package query

import (
	"github.com/statline-io/statline/internal/core/chart"
)

// SeriesRequest is the validated query for one chart series.
type SeriesRequest struct {
	Chart string
	Span  string
	Limit int
	Group string
}

// SeriesResponse is the response body for a chart series query. Data holds
// exactly Limit payload objects ordered oldest to newest; synthesized
// periods are indistinguishable from stored ones by design.
type SeriesResponse struct {
	Chart string     `json:"chart"`
	Span  chart.Span `json:"span"`
	Limit int        `json:"limit"`
	Group string     `json:"group,omitempty"`
	Data  any        `json:"data"`
}
