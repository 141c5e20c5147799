package portion

import "github.com/menta2k/calorie-estimator/pkg/foodtable"

// Curve maps the visible area of a region to a quantity relative to the
// category's typical portion.
type Curve struct {
	// ServingAreaCm2 is the visible top-down area of one typical portion
	ServingAreaCm2 float64 `json:"serving_area_cm2"`
	// ReferenceAreaFraction is the frame share of one typical portion when no scale is known
	ReferenceAreaFraction float64 `json:"reference_area_fraction"`
	// Exponent converts area growth into quantity growth; dense foods grow with depth too
	Exponent float64 `json:"exponent"`
	// ExpectedMin and ExpectedMax bound the plausible frame share of a single item
	ExpectedMin float64 `json:"expected_min"`
	ExpectedMax float64 `json:"expected_max"`
}

// Curves is versionable calibration data keyed by category id, then food group
type Curves struct {
	Version    string           `json:"version"`
	ByCategory map[string]Curve `json:"by_category"`
	ByGroup    map[string]Curve `json:"by_group"`
	Fallback   Curve            `json:"fallback"`
}

// For resolves the curve of a category, falling back to its group and then
// to the generic curve.
func (c Curves) For(id, group string) Curve {
	if curve, ok := c.ByCategory[foodtable.NormalizeID(id)]; ok {
		return curve
	}
	if curve, ok := c.ByGroup[group]; ok {
		return curve
	}
	return c.Fallback
}

// DefaultCurves returns the built-in calibration
func DefaultCurves() Curves {
	return Curves{
		Version: "builtin-2024.1",
		ByCategory: map[string]Curve{
			"lettuce":  {ServingAreaCm2: 250, ReferenceAreaFraction: 1, Exponent: 1.0, ExpectedMin: 0.02, ExpectedMax: 1},
			"salad":    {ServingAreaCm2: 300, ReferenceAreaFraction: 1, Exponent: 1.0, ExpectedMin: 0.02, ExpectedMax: 1},
			"broccoli": {ServingAreaCm2: 120, ReferenceAreaFraction: 1, Exponent: 1.2, ExpectedMin: 0.01, ExpectedMax: 1},
			"rice":     {ServingAreaCm2: 110, ReferenceAreaFraction: 1, Exponent: 1.5, ExpectedMin: 0.01, ExpectedMax: 1},
			"pizza":    {ServingAreaCm2: 200, ReferenceAreaFraction: 1, Exponent: 1.0, ExpectedMin: 0.02, ExpectedMax: 1},
		},
		ByGroup: map[string]Curve{
			foodtable.GroupFruits:     {ServingAreaCm2: 50, ReferenceAreaFraction: 1, Exponent: 1.5, ExpectedMin: 0.005, ExpectedMax: 1},
			foodtable.GroupVegetables: {ServingAreaCm2: 100, ReferenceAreaFraction: 1, Exponent: 1.0, ExpectedMin: 0.005, ExpectedMax: 1},
			foodtable.GroupProteins:   {ServingAreaCm2: 80, ReferenceAreaFraction: 1, Exponent: 1.5, ExpectedMin: 0.01, ExpectedMax: 1},
			foodtable.GroupGrains:     {ServingAreaCm2: 90, ReferenceAreaFraction: 1, Exponent: 1.5, ExpectedMin: 0.01, ExpectedMax: 1},
			foodtable.GroupSnacks:     {ServingAreaCm2: 60, ReferenceAreaFraction: 1, Exponent: 1.5, ExpectedMin: 0.005, ExpectedMax: 1},
			foodtable.GroupBeverages:  {ServingAreaCm2: 50, ReferenceAreaFraction: 1, Exponent: 1.0, ExpectedMin: 0.005, ExpectedMax: 1},
			foodtable.GroupMixed:      {ServingAreaCm2: 250, ReferenceAreaFraction: 1, Exponent: 1.2, ExpectedMin: 0.02, ExpectedMax: 1},
		},
		Fallback: Curve{ServingAreaCm2: 100, ReferenceAreaFraction: 1, Exponent: 1.0, ExpectedMin: 0.005, ExpectedMax: 1},
	}
}
