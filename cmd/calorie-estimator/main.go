package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	calorieestimator "github.com/menta2k/calorie-estimator"
	"github.com/menta2k/calorie-estimator/internal/config"
	"github.com/menta2k/calorie-estimator/internal/utils"
	"github.com/menta2k/calorie-estimator/pkg/analyzer"
	"github.com/menta2k/calorie-estimator/pkg/cropper"
	"github.com/menta2k/calorie-estimator/pkg/foodtable"
	"github.com/menta2k/calorie-estimator/pkg/log"
	"github.com/menta2k/calorie-estimator/pkg/metrics"
	"github.com/menta2k/calorie-estimator/pkg/processing"
	"github.com/menta2k/calorie-estimator/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fileResult is one entry of the batch output
type fileResult struct {
	File   string                `json:"file"`
	RunID  string                `json:"runId"`
	Result *types.PipelineResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func main() {
	var in, out, configPath, tablePath, exportTable, metricsOut string
	var plate, dbgext string
	var threshold, refCm, refPx float64
	var workers int
	var debug, crops bool

	flag.StringVar(&in, "in", "", "input image or directory (jpg/png/gif/webp)")
	flag.StringVar(&out, "out", "", "write JSON result to this file instead of stdout")
	flag.StringVar(&configPath, "config", "", "JSON config file (default $CALORIE_CONFIG, then ~/.config/calorie-estimator/config.json)")
	flag.StringVar(&tablePath, "table", "", "food table: .json or .db/.sqlite (default built-in)")
	flag.StringVar(&exportTable, "export-table", "", "write the loaded food table to a SQLite file and exit")
	flag.StringVar(&metricsOut, "metrics-out", "", "write prometheus metrics to this textfile")

	flag.Float64Var(&threshold, "threshold", 0.5, "detection confidence threshold (0..1)")
	flag.StringVar(&plate, "plate", "", "plate size hint: small|medium|large|extra-large")
	flag.Float64Var(&refCm, "ref-cm", 0, "real size in cm of a reference object in the photo")
	flag.Float64Var(&refPx, "ref-px", 0, "size in pixels of the reference object (0 = full image width)")

	flag.IntVar(&workers, "workers", 4, "photos processed concurrently")
	flag.BoolVar(&debug, "debug", false, "write detection overlays and log at debug level")
	flag.BoolVar(&crops, "crops", false, "write a thumbnail of every detected region to the output directory")
	flag.StringVar(&dbgext, "dbgext", "", "debug overlay format: jpg|png|webp (default from config)")

	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Resolve(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// explicit flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threshold":
			cfg.Estimation.ConfidenceThreshold = threshold
		case "plate":
			cfg.Estimation.PlateSize = plate
		case "table":
			cfg.Estimation.FoodTable = tablePath
		case "dbgext":
			cfg.Output.OverlayFormat = dbgext
		}
	})
	if debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	runCfg, err := buildRunConfig(cfg, refCm, refPx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := log.New(log.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	table, err := foodtable.Load(ctx, cfg.Estimation.FoodTable)
	if err != nil {
		logger.WithError(err).Fatal("failed to load food table")
	}
	logger.WithFields(logrus.Fields{"version": table.Version(), "categories": table.Len()}).Debug("food table loaded")

	if exportTable != "" {
		if err := foodtable.SaveSQLite(ctx, exportTable, table); err != nil {
			logger.WithError(err).Fatal("failed to export food table")
		}
		logger.WithField("path", exportTable).Info("food table exported")
		return
	}

	if in == "" {
		logger.Fatalf("usage: %s -in photo.jpg|dir [-threshold 0.5] [-plate medium] [-ref-cm 2.4 -ref-px 80] [-table foods.json] [-out result.json] [-debug]", filepath.Base(os.Args[0]))
	}

	var recorder *metrics.Recorder
	opts := calorieestimator.Options{Table: table, Logger: logger}
	if metricsOut != "" {
		recorder = metrics.NewRecorder()
		opts.Recorder = recorder
	}
	analyzerCfg := cfg.AnalyzerOptions()
	processingCfg := cfg.ProcessingOptions()
	detectionCfg := cfg.DetectionOptions()
	calorieCfg := cfg.CalorieOptions()
	opts.Analyzer = &analyzerCfg
	opts.Processing = &processingCfg
	opts.Detection = &detectionCfg
	opts.Calorie = &calorieCfg

	est, err := calorieestimator.NewWithOptions(opts)
	if err != nil {
		logger.WithError(err).Fatal("failed to create estimator")
	}

	inputs, err := utils.CollectInputs(in)
	if err != nil {
		logger.WithError(err).Fatal("no input")
	}

	if debug || crops {
		if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
			logger.WithError(err).Fatal("failed to create output directory")
		}
	}

	loader := analyzer.NewWithConfig(analyzerCfg)
	var itemCropper *cropper.ItemCropper
	if crops {
		itemCropper = cropper.New()
	}
	results := make([]fileResult, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for i, path := range inputs {
		g.Go(func() error {
			results[i] = processFile(gctx, est, loader, itemCropper, cfg, runCfg, path, utils.OutputName(in, path), debug, logger)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("estimation interrupted")
	}

	if recorder != nil {
		if err := recorder.WriteToTextfile(metricsOut); err != nil {
			logger.WithError(err).Error("failed to write metrics")
		}
	}

	var payload any = results
	if len(results) == 1 {
		payload = results[0]
	}
	var data []byte
	if cfg.Output.Indent {
		data, err = json.MarshalIndent(payload, "", "  ")
	} else {
		data, err = json.Marshal(payload)
	}
	if err != nil {
		logger.WithError(err).Fatal("failed to encode results")
	}
	data = append(data, '\n')

	if out == "" {
		os.Stdout.Write(data)
	} else if err := os.WriteFile(out, data, 0o644); err != nil {
		logger.WithError(err).Fatal("failed to write results")
	}

	for _, r := range results {
		if r.Error != "" {
			os.Exit(1)
		}
	}
}

// buildRunConfig assembles and validates the per-photo settings
func buildRunConfig(cfg *config.Config, refCm, refPx float64) (calorieestimator.RunConfig, error) {
	runCfg := calorieestimator.RunConfig{ConfidenceThreshold: cfg.Estimation.ConfidenceThreshold}
	if refCm != 0 || refPx != 0 || cfg.Estimation.PlateSize != "" {
		runCfg.PortionHint = &types.PortionHint{
			ReferenceObjectCm: refCm,
			ReferencePixels:   refPx,
			Size:              types.SizeClass(cfg.Estimation.PlateSize),
		}
	}
	return runCfg, runCfg.Validate()
}

// processFile estimates one photo. Failures are reported in the result rather
// than aborting the batch. name keys the overlay and crop files.
func processFile(ctx context.Context, est *calorieestimator.Estimator, loader *analyzer.ImageAnalyzer, itemCropper *cropper.ItemCropper,
	cfg *config.Config, runCfg calorieestimator.RunConfig, path, name string, debug bool, logger *logrus.Logger,
) fileResult {
	res := fileResult{File: path, RunID: uuid.NewString()}
	entry := log.WithRunID(logger, res.RunID).WithField("file", path)
	start := time.Now()

	if info, err := os.Stat(path); err == nil {
		entry.WithField("size", utils.FormatFileSize(info.Size())).Debug("processing photo")
	}

	img, err := loader.LoadImage(path)
	if err != nil {
		entry.WithError(err).Error("failed to load photo")
		res.Error = err.Error()
		return res
	}

	ins, err := est.Inspect(ctx, img, runCfg)
	if err != nil {
		entry.WithError(err).Error("estimation failed")
		res.Error = err.Error()
		return res
	}
	res.Result = ins.Result

	entry.WithFields(logrus.Fields{
		"items":          len(ins.Result.Items),
		"skipped":        ins.Result.SkippedItemCount,
		"total_calories": fmt.Sprintf("%.0f", ins.Result.TotalCalories),
		"elapsed":        time.Since(start).String(),
	}).Info("meal estimated")

	if debug {
		overlay := processing.CreateDebugOverlay(ins.Preprocessed, ins.Regions)
		format := cfg.Output.OverlayFormat
		dst := utils.GenerateOutputFilename(name, cfg.Output.OutputDir, "", cfg.Output.Suffix, format)
		if err := processing.SaveImage(overlay, dst, format, cfg.Output.OverlayQuality, false); err != nil {
			entry.WithError(err).Warn("debug overlay save failed")
		} else {
			entry.WithField("path", dst).Debug("wrote debug overlay")
		}
	}

	if itemCropper != nil {
		saveCrops(itemCropper, ins, cfg, name, entry)
	}

	return res
}

func saveCrops(itemCropper *cropper.ItemCropper, ins *calorieestimator.Inspection, cfg *config.Config, name string, entry *logrus.Entry) {
	items, err := itemCropper.CropRegions(ins.Preprocessed, ins.Regions)
	if err != nil {
		entry.WithError(err).Warn("cropping failed")
		return
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	paths, err := cropper.SaveCrops(items, cfg.Output.OutputDir, base, cfg.Output.OverlayFormat, cfg.Output.OverlayQuality)
	if err != nil {
		entry.WithError(err).Warn("crop save failed")
	}
	entry.WithField("crops", len(paths)).Debug("wrote item crops")
}
