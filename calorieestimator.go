// Package calorieestimator estimates the calories of a meal from one photograph.
//
// A run preprocesses the photo to a fixed working resolution, segments it into
// candidate food regions, infers a real-world portion for every region and
// converts portions to calories using an immutable food reference table.
//
// Basic usage:
//
//	est := calorieestimator.New()
//
//	data, err := os.ReadFile("lunch.jpg")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := est.RunBytes(ctx, data, calorieestimator.DefaultRunConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, item := range result.Items {
//		fmt.Printf("%s: %.0f %s, %.0f kcal\n", item.FoodName, item.Portion.Quantity, item.Portion.Unit, item.Calories)
//	}
//	fmt.Printf("Total: %.0f kcal (±%.0f%%)\n", result.TotalCalories, result.TotalUncertaintyPct)
//
// The package consists of these components:
//
// 1. Analyzer (pkg/analyzer): decodes and validates photos, assesses quality
// 2. Processing (pkg/processing): normalizes photos to the working resolution
// 3. Vision (pkg/vision): colour segmentation into labelled food regions
// 4. Portion (pkg/portion): area and scale based portion inference
// 5. Calorie (pkg/calorie): calorie lookup and uncertainty aggregation
// 6. Food table (pkg/foodtable): the calorie reference data
//
// Runs hold no state between calls; one Estimator may serve concurrent runs.
package calorieestimator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/calorie-estimator/pkg/analyzer"
	"github.com/menta2k/calorie-estimator/pkg/calorie"
	"github.com/menta2k/calorie-estimator/pkg/foodtable"
	"github.com/menta2k/calorie-estimator/pkg/log"
	"github.com/menta2k/calorie-estimator/pkg/metrics"
	"github.com/menta2k/calorie-estimator/pkg/portion"
	"github.com/menta2k/calorie-estimator/pkg/processing"
	"github.com/menta2k/calorie-estimator/pkg/types"
	"github.com/menta2k/calorie-estimator/pkg/vision"
)

// Version of the calorie estimator library
const Version = "1.0.0"

var validate = validator.New()

// Recorder observes finished runs. It never influences results.
type Recorder interface {
	ObserveRun(outcome string, elapsed time.Duration, totalCalories float64)
	ObserveItem(food string)
	ObserveSkipped(reason string)
}

// Options wires the pipeline components. Zero values select the defaults.
type Options struct {
	Table      *foodtable.Table
	Curves     *portion.Curves
	Analyzer   *analyzer.Config
	Processing *processing.Config
	Detection  *vision.Config
	Calorie    *calorie.Config
	Logger     *logrus.Logger
	Recorder   Recorder
}

// RunConfig is the per-call configuration supplied by the caller
type RunConfig struct {
	ConfidenceThreshold float64            `json:"confidence_threshold" validate:"gte=0,lte=1"`
	PortionHint         *types.PortionHint `json:"portion_hint,omitempty"`
}

// DefaultRunConfig returns a threshold of 0.5 and no portion hint
func DefaultRunConfig() RunConfig {
	return RunConfig{ConfidenceThreshold: 0.5}
}

// Validate rejects out-of-range thresholds and unknown or incomplete portion hints
func (c RunConfig) Validate() error {
	if math.IsNaN(c.ConfidenceThreshold) {
		return &types.ConfigError{Field: "RunConfig.ConfidenceThreshold", Reason: "is NaN"}
	}
	err := validate.Struct(c)
	if err == nil {
		return validateHint(c.PortionHint)
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &types.ConfigError{
			Field:  fe.Namespace(),
			Reason: fmt.Sprintf("failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value()),
		}
	}
	return &types.ConfigError{Field: "run_config", Reason: err.Error()}
}

// validateHint catches what struct tags cannot: non-finite sizes and a pixel
// size given without the real size it measures.
func validateHint(h *types.PortionHint) error {
	if h == nil {
		return nil
	}
	for field, v := range map[string]float64{
		"PortionHint.ReferenceObjectCm": h.ReferenceObjectCm,
		"PortionHint.ReferencePixels":   h.ReferencePixels,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &types.ConfigError{Field: field, Reason: fmt.Sprintf("must be finite (got %v)", v)}
		}
	}
	if h.ReferencePixels > 0 && h.ReferenceObjectCm == 0 {
		return &types.ConfigError{Field: "PortionHint.ReferenceObjectCm", Reason: "required when ReferencePixels is set"}
	}
	return nil
}

// Estimator runs the calorie estimation pipeline
type Estimator struct {
	table     *foodtable.Table
	analyzer  *analyzer.ImageAnalyzer
	processor *processing.Processor
	detector  *vision.FoodDetector
	portions  *portion.Estimator
	calories  *calorie.Estimator
	logger    *logrus.Logger
	recorder  Recorder
}

// New creates an Estimator with the built-in food table and default configuration
func New() *Estimator {
	e, err := NewWithOptions(Options{})
	if err != nil {
		panic(err)
	}
	return e
}

// NewWithOptions creates an Estimator from custom components
func NewWithOptions(opts Options) (*Estimator, error) {
	table := opts.Table
	if table == nil {
		table = foodtable.Default()
	}

	procCfg := processing.DefaultConfig()
	if opts.Processing != nil {
		procCfg = *opts.Processing
	}
	if err := procCfg.Validate(); err != nil {
		return nil, err
	}

	calCfg := calorie.DefaultConfig()
	if opts.Calorie != nil {
		calCfg = *opts.Calorie
	}
	if err := calCfg.Validate(); err != nil {
		return nil, err
	}

	a := analyzer.New()
	if opts.Analyzer != nil {
		a = analyzer.NewWithConfig(*opts.Analyzer)
	}

	d := vision.New()
	if opts.Detection != nil {
		d = vision.NewWithConfig(*opts.Detection)
	}

	p := portion.New(table)
	if opts.Curves != nil {
		p = portion.NewWithCurves(table, *opts.Curves)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	return &Estimator{
		table:     table,
		analyzer:  a,
		processor: processing.NewProcessorWithConfig(procCfg),
		detector:  d,
		portions:  p,
		calories:  calorie.NewWithConfig(table, calCfg),
		logger:    logger,
		recorder:  opts.Recorder,
	}, nil
}

// Table returns the food reference table in use
func (e *Estimator) Table() *foodtable.Table {
	return e.table
}

// Inspection holds the intermediate artefacts of a run for debugging
type Inspection struct {
	Result       *types.PipelineResult
	Preprocessed *processing.PreprocessedImage
	Regions      []types.DetectedRegion
}

// Run estimates the calories in a decoded photo. Invalid configuration and
// invalid images fail the call; regions that cannot be estimated are skipped
// and counted.
func (e *Estimator) Run(ctx context.Context, img types.Image, cfg RunConfig) (*types.PipelineResult, error) {
	ins, err := e.Inspect(ctx, img, cfg)
	if err != nil {
		return nil, err
	}
	return ins.Result, nil
}

// RunBytes decodes raw image bytes and runs the pipeline on them.
// The configuration is validated before the bytes are decoded.
func (e *Estimator) RunBytes(ctx context.Context, data []byte, cfg RunConfig) (*types.PipelineResult, error) {
	if err := cfg.Validate(); err != nil {
		e.observeFailure(time.Now(), err)
		return nil, err
	}
	img, err := e.analyzer.DecodeImage(data)
	if err != nil {
		e.observeFailure(time.Now(), err)
		return nil, err
	}
	return e.Run(ctx, img, cfg)
}

// RunFile reads and decodes an image file and runs the pipeline on it
func (e *Estimator) RunFile(ctx context.Context, path string, cfg RunConfig) (*types.PipelineResult, error) {
	if err := cfg.Validate(); err != nil {
		e.observeFailure(time.Now(), err)
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	return e.RunBytes(ctx, data, cfg)
}

// Inspect runs the pipeline and also returns the preprocessed image and the
// detected regions.
func (e *Estimator) Inspect(ctx context.Context, img types.Image, cfg RunConfig) (*Inspection, error) {
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		e.observeFailure(start, err)
		return nil, err
	}
	if err := e.analyzer.ValidateImage(img); err != nil {
		e.observeFailure(start, err)
		return nil, err
	}

	if e.logger.IsLevelEnabled(logrus.WarnLevel) {
		if q := e.analyzer.AssessQuality(img); !q.Acceptable {
			e.logger.WithFields(logrus.Fields{
				"score":      q.Score,
				"sharpness":  q.Sharpness,
				"brightness": q.Brightness,
				"contrast":   q.Contrast,
			}).Warn("low quality photo, estimates may be unreliable")
		}
	}

	pre, err := e.processor.Preprocess(img)
	if err != nil {
		e.observeFailure(start, err)
		return nil, err
	}

	regions, err := e.detector.Detect(ctx, pre, cfg.ConfidenceThreshold)
	if err != nil {
		e.observeFailure(start, err)
		return nil, fmt.Errorf("food detection failed: %w", err)
	}

	result, err := e.estimate(regions, cfg.PortionHint)
	if err != nil {
		e.observeFailure(start, err)
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"items":          len(result.Items),
		"skipped":        result.SkippedItemCount,
		"total_calories": result.TotalCalories,
		"uncertainty":    result.TotalUncertaintyPct,
		"elapsed":        time.Since(start).String(),
	}).Debug("estimation finished")

	if e.recorder != nil {
		e.recorder.ObserveRun(metrics.OutcomeOK, time.Since(start), result.TotalCalories)
		for _, item := range result.Items {
			e.recorder.ObserveItem(item.FoodName)
		}
		for _, s := range result.Skipped {
			e.recorder.ObserveSkipped(s.Reason)
		}
	}

	return &Inspection{Result: result, Preprocessed: pre, Regions: regions}, nil
}

// estimate turns detected regions into result items, in detector order
func (e *Estimator) estimate(regions []types.DetectedRegion, hint *types.PortionHint) (*types.PipelineResult, error) {
	result := &types.PipelineResult{Items: []types.ItemResult{}}
	estimates := make([]types.CalorieEstimate, 0, len(regions))

	for _, region := range regions {
		item, err := e.estimateItem(region, hint)
		if err != nil {
			if errors.Is(err, types.ErrInvalidConfig) {
				return nil, err
			}
			reason := skipReason(err)
			e.logger.WithFields(logrus.Fields{
				"label":  region.Label,
				"reason": reason,
			}).WithError(err).Info("skipping detected region")

			result.Skipped = append(result.Skipped, types.SkippedItem{Label: region.Label, Reason: reason})
			result.SkippedItemCount++
			continue
		}
		result.Items = append(result.Items, item)
		estimates = append(estimates, item.Estimate)
	}

	result.TotalCalories, result.TotalUncertaintyPct = calorie.Aggregate(estimates)
	return result, nil
}

func (e *Estimator) estimateItem(region types.DetectedRegion, hint *types.PortionHint) (types.ItemResult, error) {
	p, err := e.portions.Estimate(region, hint)
	if err != nil {
		return types.ItemResult{}, err
	}

	category, err := e.table.MustLookup(region.Label)
	if err != nil {
		return types.ItemResult{}, err
	}

	est, err := e.calories.EstimateCategory(category, p)
	if err != nil {
		return types.ItemResult{}, err
	}

	return types.ItemResult{
		Category:              category,
		FoodName:              category.ID,
		Confidence:            region.Confidence,
		Portion:               p,
		Calories:              est.Calories,
		CalorieUncertaintyPct: est.UncertaintyPct,
		Region:                region,
		Estimate:              est,
	}, nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, types.ErrUnknownFoodCategory):
		return "unknown_food_category"
	case errors.Is(err, types.ErrPortionEstimation):
		return "portion_estimation"
	default:
		return "error"
	}
}

func (e *Estimator) observeFailure(start time.Time, err error) {
	outcome := metrics.OutcomeError
	switch {
	case errors.Is(err, types.ErrInvalidConfig):
		outcome = metrics.OutcomeConfigError
	case errors.Is(err, types.ErrInvalidImage):
		outcome = metrics.OutcomeInvalidImage
	}
	e.logger.WithError(err).WithField("outcome", outcome).Warn("estimation failed")
	if e.recorder != nil {
		e.recorder.ObserveRun(outcome, time.Since(start), 0)
	}
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
