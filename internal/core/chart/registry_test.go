package chart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubChart struct {
	name string
}

func (s *stubChart) Name() string  { return s.name }
func (s *stubChart) Grouped() bool { return false }

func (s *stubChart) Series(context.Context, Span, int, string) (any, error) { return nil, nil }

func (s *stubChart) Rollover(context.Context, Span) error { return nil }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubChart{name: "federation"}))

	c, ok := r.Get("federation")
	require.True(t, ok)
	require.Equal(t, "federation", c.Name())

	_, ok = r.Get("unknown")
	require.False(t, ok)
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubChart{name: "federation"}))
	require.Error(t, r.Register(&stubChart{name: "federation"}))
}

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(&stubChart{name: name}))
	}

	require.Equal(t, []string{"c", "a", "b"}, r.Names())

	all := r.All()
	require.Len(t, all, 3)
	require.Equal(t, "c", all[0].Name())
	require.Equal(t, "b", all[2].Name())
}
