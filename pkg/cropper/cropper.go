package cropper

import (
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/menta2k/calorie-estimator/pkg/processing"
	"github.com/menta2k/calorie-estimator/pkg/types"
)

// ItemCropper cuts detected food regions out of a preprocessed photo
type ItemCropper struct {
	config CropConfig
}

// CropConfig holds configuration for item crops
type CropConfig struct {
	// PaddingRatio grows each side of a box by this fraction of its size
	PaddingRatio float64 `json:"padding_ratio"`
	// ThumbnailSize fills crops to a square of this side; 0 keeps the padded box
	ThumbnailSize int `json:"thumbnail_size"`
	// MinSide drops crops whose shorter side is smaller than this
	MinSide int `json:"min_side"`
}

// ItemCrop is one cropped region
type ItemCrop struct {
	Image  image.Image
	Region types.DetectedRegion
	// Bounds is the crop rectangle in canvas coordinates
	Bounds image.Rectangle
}

// DefaultConfig returns 10% padding, 128px thumbnails and a 4px minimum side
func DefaultConfig() CropConfig {
	return CropConfig{
		PaddingRatio:  0.1,
		ThumbnailSize: 128,
		MinSide:       4,
	}
}

// New creates a new ItemCropper with default configuration
func New() *ItemCropper {
	return &ItemCropper{config: DefaultConfig()}
}

// NewWithConfig creates a new ItemCropper with custom configuration
func NewWithConfig(config CropConfig) (*ItemCropper, error) {
	if config.PaddingRatio < 0 || math.IsNaN(config.PaddingRatio) {
		return nil, &types.ConfigError{Field: "padding_ratio", Reason: "must be non-negative"}
	}
	if config.ThumbnailSize < 0 || config.MinSide < 0 {
		return nil, &types.ConfigError{Field: "thumbnail_size", Reason: "sizes must be non-negative"}
	}
	return &ItemCropper{config: config}, nil
}

// CropRegions returns one crop per region in input order. Regions that
// collapse below MinSide after clipping to the content area are left out.
func (c *ItemCropper) CropRegions(pre *processing.PreprocessedImage, regions []types.DetectedRegion) ([]ItemCrop, error) {
	if pre == nil || pre.Canvas == nil {
		return nil, &types.InvalidImageError{Reason: "no preprocessed image"}
	}

	crops := make([]ItemCrop, 0, len(regions))
	for _, r := range regions {
		rect := c.cropRect(pre.Content, r.Box)
		if rect.Dx() < max(1, c.config.MinSide) || rect.Dy() < max(1, c.config.MinSide) {
			continue
		}

		var img image.Image = imaging.Crop(pre.Canvas, rect)
		if c.config.ThumbnailSize > 0 {
			img = imaging.Fill(img, c.config.ThumbnailSize, c.config.ThumbnailSize, imaging.Center, imaging.Linear)
		}
		crops = append(crops, ItemCrop{Image: img, Region: r, Bounds: rect})
	}

	return crops, nil
}

// SaveCrops writes crops as <base>_<index>_<label>.<format> into dir
func SaveCrops(crops []ItemCrop, dir, base, format string, quality int) ([]string, error) {
	paths := make([]string, 0, len(crops))
	for i, crop := range crops {
		path := filepath.Join(dir, fmt.Sprintf("%s_%02d_%s.%s", base, i+1, crop.Region.Label, format))
		if err := processing.SaveImage(crop.Image, path, format, quality, false); err != nil {
			return paths, fmt.Errorf("failed to save crop %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// cropRect maps a content-relative box to canvas coordinates, pads it and
// clips it to the content area so letterbox bars never appear in a crop.
func (c *ItemCropper) cropRect(content image.Rectangle, box types.Box) image.Rectangle {
	padX := int(math.Round(float64(box.Width) * c.config.PaddingRatio))
	padY := int(math.Round(float64(box.Height) * c.config.PaddingRatio))

	x1 := content.Min.X + box.X - padX
	y1 := content.Min.Y + box.Y - padY
	x2 := content.Min.X + box.X + box.Width + padX
	y2 := content.Min.Y + box.Y + box.Height + padY

	return image.Rect(x1, y1, x2, y2).Intersect(content)
}
