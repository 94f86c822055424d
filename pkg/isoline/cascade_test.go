package isoline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/isolysis/internal/model"
)

func TestCascadeProvider_FirstSucceeds(t *testing.T) {
	primary := &fakeProvider{name: "primary", available: true}
	backup := &fakeProvider{name: "backup", available: true}
	cascade := NewCascadeProvider(primary, backup)

	bands, err := cascade.Isochrones(context.Background(), model.Centroid{ID: "C1", Rho: 1}, []float64{0.5, 1})
	require.NoError(t, err)
	assert.Len(t, bands, 2)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, backup.calls)
}

func TestCascadeProvider_FallsBack(t *testing.T) {
	primary := &fakeProvider{name: "primary", available: true, failIDs: map[string]bool{"C1": true}}
	backup := &fakeProvider{name: "backup", available: true}
	cascade := NewCascadeProvider(primary, backup)

	bands, err := cascade.Isochrones(context.Background(), model.Centroid{ID: "C1", Rho: 1}, []float64{0.5})
	require.NoError(t, err)
	assert.Len(t, bands, 1)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestCascadeProvider_SkipsUnavailable(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	backup := &fakeProvider{name: "backup", available: true}
	cascade := NewCascadeProvider(primary, backup)

	assert.True(t, cascade.Available())

	_, err := cascade.Isochrones(context.Background(), model.Centroid{ID: "C1", Rho: 1}, []float64{0.5})
	require.NoError(t, err)
	assert.Equal(t, 0, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestCascadeProvider_AllFail(t *testing.T) {
	primary := &fakeProvider{name: "primary", available: true, failIDs: map[string]bool{"C1": true}}
	backup := &fakeProvider{name: "backup", available: true, failIDs: map[string]bool{"C1": true}}
	cascade := NewCascadeProvider(primary, backup)

	_, err := cascade.Isochrones(context.Background(), model.Centroid{ID: "C1", Rho: 1}, []float64{0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routing failed")
}

func TestCascadeProvider_NoneAvailable(t *testing.T) {
	cascade := NewCascadeProvider(&fakeProvider{name: "p"})

	assert.False(t, cascade.Available())

	_, err := cascade.Isochrones(context.Background(), model.Centroid{ID: "C1", Rho: 1}, []float64{0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no providers available")
}
