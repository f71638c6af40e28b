// Package hist provides the fixed-binning one dimensional histogram filled
// by draw operations.
package hist

import (
	"math"

	"github.com/ajitpratap0/roast/pkg/errors"
)

// DefaultBins is the bin count used when a draw target names no binning.
const DefaultBins = 100

// Hist1D is a weighted histogram with underflow and overflow bins.
// Counts[0] is the underflow and Counts[Bins+1] the overflow.
//
// A histogram created with NewAuto buffers its values and chooses its range
// from them on Finalize.
type Hist1D struct {
	Name    string    `json:"name"`
	Title   string    `json:"title"`
	Bins    int       `json:"bins"`
	Low     float64   `json:"low"`
	High    float64   `json:"high"`
	Counts  []float64 `json:"counts"`
	Entries int64     `json:"entries"`
	SumW    float64   `json:"sumw"`
	SumWX   float64   `json:"sumwx"`
	SumWX2  float64   `json:"sumwx2"`

	auto   bool
	buffer []weighted
}

type weighted struct {
	x, w float64
}

// New creates a histogram with bins equal-width bins over [low, high).
func New(name, title string, bins int, low, high float64) (*Hist1D, error) {
	if bins <= 0 {
		return nil, errors.Newf(errors.ErrorTypeSpecSyntax, "histogram %s needs a positive bin count, got %d", name, bins)
	}
	if !(high > low) {
		return nil, errors.Newf(errors.ErrorTypeSpecSyntax, "histogram %s has an empty range [%g, %g)", name, low, high)
	}
	return &Hist1D{Name: name, Title: title, Bins: bins, Low: low, High: high, Counts: make([]float64, bins+2)}, nil
}

// NewAuto creates a histogram whose range is taken from the filled values.
func NewAuto(name, title string, bins int) *Hist1D {
	if bins <= 0 {
		bins = DefaultBins
	}
	return &Hist1D{Name: name, Title: title, Bins: bins, Counts: make([]float64, bins+2), auto: true}
}

// Fill adds x with weight 1. NaN values are ignored.
func (h *Hist1D) Fill(x float64) {
	h.FillWeight(x, 1)
}

// FillWeight adds x with weight w.
func (h *Hist1D) FillWeight(x, w float64) {
	if math.IsNaN(x) {
		return
	}
	if h.auto {
		h.buffer = append(h.buffer, weighted{x, w})
		return
	}
	h.Counts[h.FindBin(x)] += w
	h.Entries++
	h.SumW += w
	h.SumWX += w * x
	h.SumWX2 += w * x * x
}

// Finalize fixes the range of an auto-ranged histogram and bins the
// buffered values. It is a no-op for fixed histograms.
func (h *Hist1D) Finalize() {
	if !h.auto {
		return
	}
	h.auto = false
	low, high := 0.0, 1.0
	if len(h.buffer) > 0 {
		low, high = h.buffer[0].x, h.buffer[0].x
		for _, v := range h.buffer[1:] {
			low = math.Min(low, v.x)
			high = math.Max(high, v.x)
		}
		// widen so the maximum lands inside the last bin
		margin := (high - low) * 0.01
		if margin == 0 {
			margin = math.Max(math.Abs(low)*0.01, 0.5)
			low -= margin
		}
		high += margin
	}
	h.Low, h.High = low, high
	buf := h.buffer
	h.buffer = nil
	for _, v := range buf {
		h.FillWeight(v.x, v.w)
	}
}

// FindBin returns the index into Counts x falls into.
func (h *Hist1D) FindBin(x float64) int {
	switch {
	case x < h.Low:
		return 0
	case x >= h.High:
		return h.Bins + 1
	}
	bin := 1 + int(float64(h.Bins)*(x-h.Low)/(h.High-h.Low))
	if bin > h.Bins {
		bin = h.Bins
	}
	return bin
}

// BinCenter returns the center of bin i, 1 <= i <= Bins.
func (h *Hist1D) BinCenter(i int) float64 {
	width := (h.High - h.Low) / float64(h.Bins)
	return h.Low + (float64(i)-0.5)*width
}

// Mean returns the weighted mean of the filled values.
func (h *Hist1D) Mean() float64 {
	if h.SumW == 0 {
		return 0
	}
	return h.SumWX / h.SumW
}

// StdDev returns the weighted standard deviation of the filled values.
func (h *Hist1D) StdDev() float64 {
	if h.SumW == 0 {
		return 0
	}
	m := h.Mean()
	return math.Sqrt(math.Max(h.SumWX2/h.SumW-m*m, 0))
}
