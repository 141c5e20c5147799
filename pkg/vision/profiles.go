package vision

import "github.com/menta2k/calorie-estimator/pkg/types"

// Classifier maps a segment's mean colour and frame coverage to a food label.
// An empty label means the segment is not recognised and is dropped.
type Classifier func(mean types.HSV, areaFraction float64) string

// Profile is a colour range that segments one family of foods
type Profile struct {
	Name string
	// Hue window on the OpenCV circle, centre ± half width
	HueCenter    float64
	HueHalfWidth float64
	MinS, MaxS   float64
	MinV, MaxV   float64
	// Base is the confidence of an ideal, large and compact segment
	Base     float64
	Classify Classifier
}

// Matches reports whether a pixel colour falls inside the profile's range
func (p Profile) Matches(c types.HSV) bool {
	return hueDistance(c.H, p.HueCenter) <= p.HueHalfWidth &&
		c.S >= p.MinS && c.S <= p.MaxS &&
		c.V >= p.MinV && c.V <= p.MaxV
}

// DefaultProfiles returns the built-in colour profiles for fruits, vegetables,
// grains and proteins.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name:      "fruits",
			HueCenter: 7, HueHalfWidth: 13,
			MinS: 50, MaxS: 255, MinV: 50, MaxV: 255,
			Base: 0.9,
			Classify: func(mean types.HSV, _ float64) string {
				if mean.S > 100 {
					return "apple"
				}
				return "orange"
			},
		},
		{
			Name:      "vegetables",
			HueCenter: 60, HueHalfWidth: 25,
			MinS: 50, MaxS: 255, MinV: 50, MaxV: 255,
			Base: 0.85,
			Classify: func(mean types.HSV, area float64) string {
				switch {
				case mean.S > 100 && area > 0.05:
					return "broccoli"
				case mean.S > 100:
					return "lettuce"
				default:
					return "cucumber"
				}
			},
		},
		{
			Name:      "grains",
			HueCenter: 27.5, HueHalfWidth: 7.5,
			MinS: 50, MaxS: 255, MinV: 50, MaxV: 255,
			Base: 0.8,
			Classify: func(_ types.HSV, area float64) string {
				if area > 0.02 {
					return "bread"
				}
				return "rice"
			},
		},
		{
			Name:      "proteins",
			HueCenter: 15, HueHalfWidth: 10,
			MinS: 50, MaxS: 200, MinV: 40, MaxV: 160,
			Base: 0.75,
			Classify: func(mean types.HSV, _ float64) string {
				if mean.V < 100 {
					return "beef"
				}
				return "chicken"
			},
		},
	}
}
