package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string                     { return string(n) }
func (n namedJob) Run(context.Context) (int, error) { return 0, nil }

func TestRegistryKeepsOrderAndHandsOutSnapshots(t *testing.T) {
	registry, err := NewRegistry(namedJob("a"), nil)
	require.NoError(t, err)
	require.NoError(t, registry.Register(namedJob("b")))
	require.NoError(t, registry.Register(nil))
	require.Equal(t, 2, registry.Len())

	jobs := registry.Jobs()
	require.Equal(t, []Job{namedJob("a"), namedJob("b")}, jobs)

	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsBadNames(t *testing.T) {
	_, err := NewRegistry(namedJob("low_stock"), namedJob("low_stock"))
	require.ErrorContains(t, err, "registered twice")

	_, err = NewRegistry(namedJob("  "))
	require.ErrorContains(t, err, "no name")
}
