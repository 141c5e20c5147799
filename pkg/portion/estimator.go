package portion

import (
	"fmt"
	"math"

	"github.com/menta2k/calorie-estimator/pkg/foodtable"
	"github.com/menta2k/calorie-estimator/pkg/types"
)

// Base confidences per estimation method
const (
	AreaConfidence      = 0.5
	ReferenceConfidence = 0.85
	PlateConfidence     = 0.7
)

// Confidence multipliers for ambiguous geometry
const (
	BorderPenalty     = 0.8
	OutOfRangePenalty = 0.75
)

// Portion used for labels missing from the food table
const (
	genericTypical = 100.0
	genericMin     = 10.0
)

var plateDiameters = map[types.SizeClass]float64{
	types.SizeSmall:      18,
	types.SizeMedium:     23,
	types.SizeLarge:      27,
	types.SizeExtraLarge: 32,
}

// PlateDiameterCm returns the plate diameter for a size class
func PlateDiameterCm(size types.SizeClass) (float64, bool) {
	d, ok := plateDiameters[size]
	return d, ok
}

// Estimator converts detected regions into real-world portions
type Estimator struct {
	table  *foodtable.Table
	curves Curves
}

// New creates an Estimator with the built-in calibration curves
func New(table *foodtable.Table) *Estimator {
	return NewWithCurves(table, DefaultCurves())
}

// NewWithCurves creates an Estimator with custom calibration curves
func NewWithCurves(table *foodtable.Table, curves Curves) *Estimator {
	return &Estimator{table: table, curves: curves}
}

// Curves returns the calibration data in use
func (e *Estimator) Curves() Curves {
	return e.curves
}

// Estimate infers the quantity of food in a region. Without a hint the
// quantity follows the region's share of the frame; a reference object or a
// plate size converts pixels to centimetres first and yields higher confidence.
// The quantity never drops below the category minimum.
func (e *Estimator) Estimate(region types.DetectedRegion, hint *types.PortionHint) (types.PortionEstimate, error) {
	shape := region.Shape
	if shape.PixelArea <= 0 || shape.FrameWidth <= 0 || shape.FrameHeight <= 0 {
		return types.PortionEstimate{}, &types.PortionEstimationError{Label: region.Label, Reason: "region has no area"}
	}

	typical, minimum, unit, group := genericTypical, genericMin, types.UnitGram, ""
	if e.table != nil {
		if c, ok := e.table.Lookup(region.Label); ok {
			typical, minimum, unit, group = c.TypicalPortion, c.MinPortion, c.Unit, c.Group
		}
	}
	if minimum <= 0 {
		minimum = genericMin
	}
	curve := e.curves.For(region.Label, group)

	var quantity, confidence float64

	cmPerPx, method, err := scaleFromHint(region, hint)
	if err != nil {
		return types.PortionEstimate{}, err
	}

	switch method {
	case types.MethodArea:
		if curve.ReferenceAreaFraction <= 0 {
			return types.PortionEstimate{}, &types.PortionEstimationError{Label: region.Label, Reason: "invalid reference area fraction"}
		}
		quantity = typical * math.Pow(shape.AreaFraction()/curve.ReferenceAreaFraction, curve.Exponent)
		confidence = AreaConfidence
	default:
		if curve.ServingAreaCm2 <= 0 {
			return types.PortionEstimate{}, &types.PortionEstimationError{Label: region.Label, Reason: "invalid serving area"}
		}
		areaCm2 := float64(shape.PixelArea) * cmPerPx * cmPerPx
		quantity = typical * math.Pow(areaCm2/curve.ServingAreaCm2, curve.Exponent)
		confidence = ReferenceConfidence
		if method == types.MethodPlate {
			confidence = PlateConfidence
		}
	}

	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return types.PortionEstimate{}, &types.PortionEstimationError{Label: region.Label, Reason: "quantity is not finite"}
	}
	quantity = math.Max(quantity, minimum)

	if shape.TouchesBorder {
		confidence *= BorderPenalty
	}
	if frac := shape.AreaFraction(); frac < curve.ExpectedMin || frac > curve.ExpectedMax {
		confidence *= OutOfRangePenalty
	}
	confidence *= 0.75 + 0.25*types.Clamp01(shape.Fill)

	return types.PortionEstimate{
		Quantity:   quantity,
		Unit:       unit,
		Confidence: types.Clamp01(confidence),
		Method:     method,
	}, nil
}

// scaleFromHint returns centimetres per working pixel and the method the hint selects
func scaleFromHint(region types.DetectedRegion, hint *types.PortionHint) (float64, types.PortionMethod, error) {
	if hint == nil {
		return 0, types.MethodArea, nil
	}
	if hint.ReferenceObjectCm < 0 || hint.ReferencePixels < 0 {
		return 0, "", &types.ConfigError{Field: "portion_hint", Reason: "reference sizes must not be negative"}
	}

	shape := region.Shape
	if hint.ReferenceObjectCm > 0 {
		px := float64(shape.FrameWidth)
		if hint.ReferencePixels > 0 {
			scale := region.Scale
			if scale <= 0 {
				scale = 1
			}
			px = hint.ReferencePixels * scale
		}
		return hint.ReferenceObjectCm / px, types.MethodReference, nil
	}

	if hint.Size != "" {
		d, ok := PlateDiameterCm(hint.Size)
		if !ok {
			return 0, "", &types.ConfigError{Field: "portion_hint.size", Reason: fmt.Sprintf("unknown size %q", hint.Size)}
		}
		return d / float64(min(shape.FrameWidth, shape.FrameHeight)), types.MethodPlate, nil
	}

	return 0, types.MethodArea, nil
}
