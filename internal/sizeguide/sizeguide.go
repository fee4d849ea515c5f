// Package sizeguide recommends a size from body measurements in centimeters.
package sizeguide

import (
	"fmt"
	"math"

	sferrors "github.com/abgdnv/storefront/internal/errors"
)

// Fit describes how the recommended size sits on the shopper.
type Fit string

const (
	FitPerfect Fit = "perfect"
	FitLoose   Fit = "loose"
	FitTight   Fit = "tight"
)

// Range is an inclusive measurement band.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) contains(v float64) bool { return v >= r.Min && v <= r.Max }

func (r Range) mid() float64 { return (r.Min + r.Max) / 2 }

// Band is one row of the size chart.
type Band struct {
	Size  string `json:"size"`
	Bust  Range  `json:"bust"`
	Waist Range  `json:"waist"`
	Hips  Range  `json:"hips"`
}

// Chart lists the bands from smallest to largest.
var Chart = []Band{
	{Size: "XS", Bust: Range{81, 84}, Waist: Range{61, 64}, Hips: Range{86, 89}},
	{Size: "S", Bust: Range{86, 89}, Waist: Range{66, 69}, Hips: Range{91, 94}},
	{Size: "M", Bust: Range{91, 94}, Waist: Range{71, 74}, Hips: Range{96, 99}},
	{Size: "L", Bust: Range{96, 99}, Waist: Range{76, 79}, Hips: Range{101, 104}},
	{Size: "XL", Bust: Range{101, 104}, Waist: Range{81, 84}, Hips: Range{106, 109}},
	{Size: "XXL", Bust: Range{106, 109}, Waist: Range{86, 89}, Hips: Range{111, 114}},
}

type Measurements struct {
	Bust  float64 `json:"bust"`
	Waist float64 `json:"waist"`
	Hips  float64 `json:"hips"`
}

type Recommendation struct {
	Size string `json:"size"`
	Fit  Fit    `json:"fit"`
}

// Recommend returns the first band containing all three measurements as a
// perfect fit. Otherwise it picks the band whose bust midpoint is nearest,
// the smaller band on a tie, and grades the fit by bust alone.
func Recommend(m Measurements) (Recommendation, error) {
	for _, v := range []float64{m.Bust, m.Waist, m.Hips} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Recommendation{}, fmt.Errorf("%w: %+v", sferrors.ErrInvalidMeasurements, m)
		}
	}

	for _, b := range Chart {
		if b.Bust.contains(m.Bust) && b.Waist.contains(m.Waist) && b.Hips.contains(m.Hips) {
			return Recommendation{Size: b.Size, Fit: FitPerfect}, nil
		}
	}

	closest := Chart[0]
	minDiff := math.Inf(1)
	for _, b := range Chart {
		if diff := math.Abs(m.Bust - b.Bust.mid()); diff < minDiff {
			minDiff = diff
			closest = b
		}
	}

	fit := FitPerfect
	switch {
	case m.Bust < closest.Bust.Min:
		fit = FitLoose
	case m.Bust > closest.Bust.Max:
		fit = FitTight
	}
	return Recommendation{Size: closest.Size, Fit: fit}, nil
}
