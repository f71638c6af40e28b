package hist

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/roast/pkg/errors"
)

func TestFixedBinning(t *testing.T) {
	h, err := New("h", "x", 4, 0, 4)
	require.NoError(t, err)

	for _, x := range []float64{-1, 0, 0.5, 1, 3.99, 4, math.NaN()} {
		h.Fill(x)
	}
	assert.Equal(t, []float64{1, 2, 1, 0, 1, 1}, h.Counts)
	assert.Equal(t, int64(6), h.Entries)
	assert.InDelta(t, 0.5, h.BinCenter(1), 1e-12)
}

func TestAutoRange(t *testing.T) {
	h := NewAuto("h", "x", 10)
	for _, x := range []float64{2, 4, 6, 8, 10} {
		h.Fill(x)
	}
	assert.Equal(t, int64(0), h.Entries)

	h.Finalize()
	assert.Equal(t, 2.0, h.Low)
	assert.Greater(t, h.High, 10.0)
	assert.Equal(t, int64(5), h.Entries)
	assert.Zero(t, h.Counts[0])
	assert.Zero(t, h.Counts[h.Bins+1])
	assert.InDelta(t, 6.0, h.Mean(), 1e-12)
	assert.InDelta(t, math.Sqrt(8), h.StdDev(), 1e-12)

	// second finalize is a no-op
	h.Finalize()
	assert.Equal(t, int64(5), h.Entries)
}

func TestAutoRangeSingleValue(t *testing.T) {
	h := NewAuto("h", "", 0)
	assert.Equal(t, DefaultBins, h.Bins)
	h.Fill(3)
	h.Fill(3)
	h.Finalize()
	assert.Less(t, h.Low, 3.0)
	assert.Greater(t, h.High, 3.0)
	assert.Equal(t, int64(2), h.Entries)
	assert.Zero(t, h.Counts[0]+h.Counts[h.Bins+1])
}

func TestInvalidBinning(t *testing.T) {
	_, err := New("h", "", 0, 0, 1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSpecSyntax))
	_, err = New("h", "", 10, 1, 1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSpecSyntax))
}

func TestAutoRangeKeepsWeights(t *testing.T) {
	h := NewAuto("h", "x", 10)
	for _, x := range []float64{5, 6, 7, 8} {
		h.FillWeight(x, 2)
	}
	h.Fill(6.5)
	assert.Equal(t, int64(0), h.Entries)

	h.Finalize()
	assert.Equal(t, 5.0, h.Low)
	assert.Greater(t, h.High, 8.0)
	assert.Equal(t, int64(5), h.Entries)
	assert.Zero(t, h.Counts[0])
	assert.Zero(t, h.Counts[h.Bins+1])
	assert.InDelta(t, 9.0, h.SumW, 1e-12)
	assert.InDelta(t, (2*(5+6+7+8)+6.5)/9, h.Mean(), 1e-12)
	assert.Equal(t, 2.0, h.Counts[h.FindBin(5)])
}
