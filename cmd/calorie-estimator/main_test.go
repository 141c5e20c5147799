package main

import (
	"errors"
	"testing"

	"github.com/menta2k/calorie-estimator/internal/config"
	"github.com/menta2k/calorie-estimator/pkg/types"
)

func TestBuildRunConfig(t *testing.T) {
	cfg := config.Default()

	runCfg, err := buildRunConfig(cfg, 0, 0)
	if err != nil {
		t.Fatalf("buildRunConfig failed: %v", err)
	}
	if runCfg.PortionHint != nil {
		t.Errorf("Expected no hint without reference or plate, got %+v", runCfg.PortionHint)
	}

	cfg.Estimation.PlateSize = "large"
	runCfg, err = buildRunConfig(cfg, 2.4, 80)
	if err != nil {
		t.Fatalf("buildRunConfig failed: %v", err)
	}
	if runCfg.PortionHint == nil || runCfg.PortionHint.Size != types.SizeLarge || runCfg.PortionHint.ReferenceObjectCm != 2.4 {
		t.Errorf("Unexpected hint %+v", runCfg.PortionHint)
	}
}

func TestBuildRunConfigRejectsBadHints(t *testing.T) {
	tests := map[string][2]float64{
		"negative reference": {-1, 0},
		"pixels without cm":  {0, 80},
		"negative pixels":    {2, -5},
	}
	for name, ref := range tests {
		if _, err := buildRunConfig(config.Default(), ref[0], ref[1]); !errors.Is(err, types.ErrInvalidConfig) {
			t.Errorf("%s: expected config error, got %v", name, err)
		}
	}
}
