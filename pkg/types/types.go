package types

import (
	"image"
	"math"
)

// Orientation is the clockwise rotation needed to display a captured image upright.
type Orientation int

const (
	OrientationNormal Orientation = 0
	Orientation90     Orientation = 90
	Orientation180    Orientation = 180
	Orientation270    Orientation = 270
)

// Image is a decoded photograph supplied by the caller. The pipeline only reads it.
type Image struct {
	Pixels       image.Image
	Format       string
	Orientation  Orientation
	ChannelDepth int
}

// Width returns the pixel width of the decoded image
func (i Image) Width() int {
	if i.Pixels == nil {
		return 0
	}
	return i.Pixels.Bounds().Dx()
}

// Height returns the pixel height of the decoded image
func (i Image) Height() int {
	if i.Pixels == nil {
		return 0
	}
	return i.Pixels.Bounds().Dy()
}

// Unit is the real-world unit a portion is measured in.
type Unit string

const (
	UnitGram       Unit = "g"
	UnitMilliliter Unit = "ml"
	UnitServing    Unit = "serving"
)

// FoodCategory is one entry of the calorie reference table.
type FoodCategory struct {
	ID                   string  `json:"id" db:"id"`
	Name                 string  `json:"name" db:"name"`
	Group                string  `json:"group" db:"food_group"`
	CaloriesPerReference float64 `json:"calories_per_reference" db:"calories_per_reference"`
	ReferenceQuantity    float64 `json:"reference_quantity" db:"reference_quantity"`
	Unit                 Unit    `json:"unit" db:"unit"`
	TypicalPortion       float64 `json:"typical_portion" db:"typical_portion"`
	MinPortion           float64 `json:"min_portion" db:"min_portion"`
}

// Box is an axis-aligned pixel rectangle
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the box
func (b Box) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Area returns the area of the box
func (b Box) Area() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Rect converts the box to an image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Intersect returns the overlapping area of two boxes
func (b Box) Intersect(o Box) int {
	x1 := max(b.X, o.X)
	y1 := max(b.Y, o.Y)
	x2 := min(b.X+b.Width, o.X+o.Width)
	y2 := min(b.Y+b.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	return (x2 - x1) * (y2 - y1)
}

// IoU returns the intersection-over-union ratio of two boxes
func (b Box) IoU(o Box) float64 {
	inter := b.Intersect(o)
	if inter == 0 {
		return 0
	}
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Shape describes the pixel footprint of a region inside the analysed frame.
type Shape struct {
	PixelArea     int     `json:"pixel_area"`
	FrameWidth    int     `json:"frame_width"`
	FrameHeight   int     `json:"frame_height"`
	Fill          float64 `json:"fill"`
	AspectRatio   float64 `json:"aspect_ratio"`
	TouchesBorder bool    `json:"touches_border"`
}

// FrameArea returns the pixel area of the analysed frame
func (s Shape) FrameArea() int {
	return s.FrameWidth * s.FrameHeight
}

// AreaFraction returns the share of the frame covered by the region
func (s Shape) AreaFraction() float64 {
	frame := s.FrameArea()
	if frame <= 0 {
		return 0
	}
	return float64(s.PixelArea) / float64(frame)
}

// HSV is a mean colour in OpenCV scale: H in [0,180), S and V in [0,255].
type HSV struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	V float64 `json:"v"`
}

// DetectedRegion is one candidate food instance found by the detector.
// Box coordinates are relative to the frame described by Shape.
type DetectedRegion struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Shape      Shape   `json:"shape"`
	MeanColor  HSV     `json:"mean_color"`
	// Scale is working pixels per source pixel.
	Scale float64 `json:"scale"`
}

// SizeClass is a user-selected plate size.
type SizeClass string

const (
	SizeSmall      SizeClass = "small"
	SizeMedium     SizeClass = "medium"
	SizeLarge      SizeClass = "large"
	SizeExtraLarge SizeClass = "extra-large"
)

// PortionHint is an optional real-world scale reference.
// ReferencePixels is measured in source image pixels; zero means the reference
// object spans the full frame width.
type PortionHint struct {
	ReferenceObjectCm float64   `json:"reference_object_cm,omitempty" validate:"gte=0"`
	ReferencePixels   float64   `json:"reference_pixels,omitempty" validate:"gte=0"`
	Size              SizeClass `json:"size,omitempty" validate:"omitempty,oneof=small medium large extra-large"`
}

// PortionMethod names how a portion was derived.
type PortionMethod string

const (
	MethodArea      PortionMethod = "area"
	MethodReference PortionMethod = "reference"
	MethodPlate     PortionMethod = "plate"
)

// PortionEstimate is the estimated real-world quantity of one region.
type PortionEstimate struct {
	Quantity   float64       `json:"quantity"`
	Unit       Unit          `json:"unit"`
	Confidence float64       `json:"-"`
	Method     PortionMethod `json:"-"`
}

// CalorieEstimate is a point calorie value with a symmetric uncertainty band.
type CalorieEstimate struct {
	Calories       float64
	UncertaintyPct float64
	Low            float64
	High           float64
}

// ItemResult is one recognised food item of a PipelineResult.
type ItemResult struct {
	Category              FoodCategory    `json:"-"`
	FoodName              string          `json:"foodName"`
	Confidence            float64         `json:"confidence"`
	Portion               PortionEstimate `json:"portion"`
	Calories              float64         `json:"calories"`
	CalorieUncertaintyPct float64         `json:"calorieUncertaintyPct"`
	Region                DetectedRegion  `json:"-"`
	Estimate              CalorieEstimate `json:"-"`
}

// SkippedItem records why a detected region was left out of the result.
type SkippedItem struct {
	Label  string
	Reason string
}

// PipelineResult is the final output of one estimation run.
type PipelineResult struct {
	Items               []ItemResult  `json:"items"`
	TotalCalories       float64       `json:"totalCalories"`
	TotalUncertaintyPct float64       `json:"totalUncertaintyPct"`
	SkippedItemCount    int           `json:"skippedItemCount"`
	Skipped             []SkippedItem `json:"-"`
}

// Clamp01 clamps v into [0,1], mapping NaN to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
