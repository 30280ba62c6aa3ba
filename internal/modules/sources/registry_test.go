package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLayers(t *testing.T) {
	r := NewRegistry()
	layers := r.Layers()

	require.NotEmpty(t, layers[1], "layer 1 must have wire feeds")
	require.NotEmpty(t, layers[2], "layer 2 must have aggregators")
	require.NotEmpty(t, layers[3], "layer 3 must have supplemental APIs")

	// L1 wire feeds score 1.0, L2 sits in 0.75-0.90, L3 at 0.60.
	for _, s := range layers[1] {
		assert.Equal(t, 1.0, s.Quality, s.Name)
	}
	for _, s := range layers[2] {
		assert.GreaterOrEqual(t, s.Quality, 0.75, s.Name)
		assert.LessOrEqual(t, s.Quality, 0.90, s.Name)
	}
	for _, s := range layers[3] {
		assert.Equal(t, 0.60, s.Quality, s.Name)
	}
}

func TestQualityLookup(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, 1.0, r.Quality("Reuters"))
	assert.Equal(t, 0.0, r.Quality("No Such Source"))
}

func TestTierLookup(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, 1, r.Tier("Reuters"))
	assert.Equal(t, 2, r.Tier("CNBC"))
	assert.Equal(t, 3, r.Tier("Benzinga"))
	assert.Equal(t, 0, r.Tier("Unknown Blog"))
}

func TestAllOrderedByLayer(t *testing.T) {
	r := NewRegistry()
	all := r.All()

	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Layer, all[i].Layer)
	}
}

func TestSupportsSearch(t *testing.T) {
	r := NewRegistry()

	reuters, ok := r.Lookup("Reuters")
	require.True(t, ok)
	assert.True(t, reuters.SupportsSearch())

	sa, ok := r.Lookup("Seeking Alpha")
	require.True(t, ok)
	assert.False(t, sa.SupportsSearch(), "Seeking Alpha has no search endpoint")
}
