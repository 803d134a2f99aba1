// Package query is the read facade over the chart registry. It validates
// request parameters and passes through to the engine's gap-filled window;
// it performs no aggregation of its own.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/statline-io/statline/internal/core/chart"
)

const (
	defaultLimit = 30
	maxLimit     = 500
)

// ErrInvalidQuery marks request validation errors that should return HTTP 400.
var ErrInvalidQuery = errors.New("invalid chart query")

// Service implements the chart query facade.
type Service struct {
	registry *chart.Registry
}

// NewService creates the query facade over a populated registry.
func NewService(registry *chart.Registry) *Service {
	return &Service{registry: registry}
}

// Series validates the request and returns the chart's gap-filled window.
// An empty or short history is a valid zero-filled result, not an error;
// store outages surface as wrapped errors distinct from ErrInvalidQuery.
func (s *Service) Series(ctx context.Context, req SeriesRequest) (*SeriesResponse, error) {
	if req.Limit == 0 {
		req.Limit = defaultLimit
	}
	if req.Limit < 1 || req.Limit > maxLimit {
		return nil, invalidQueryf("limit must be in [1,%d], got %d", maxLimit, req.Limit)
	}

	span, err := chart.ParseSpan(req.Span)
	if err != nil {
		return nil, invalidQueryf("%v", err)
	}

	svc, ok := s.registry.Get(req.Chart)
	if !ok {
		return nil, invalidQueryf("unknown chart: %s", req.Chart)
	}

	if svc.Grouped() && req.Group == "" {
		return nil, invalidQueryf("chart %s requires a group", req.Chart)
	}
	if !svc.Grouped() && req.Group != "" {
		return nil, invalidQueryf("chart %s does not take a group", req.Chart)
	}

	data, err := svc.Series(ctx, span, req.Limit, req.Group)
	if err != nil {
		return nil, fmt.Errorf("query chart %s: %w", req.Chart, err)
	}

	return &SeriesResponse{
		Chart: req.Chart,
		Span:  span,
		Limit: req.Limit,
		Group: req.Group,
		Data:  data,
	}, nil
}

func invalidQueryf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
