package types

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestBoxCenter(t *testing.T) {
	box := Box{X: 10, Y: 20, Width: 100, Height: 80}

	centerX, centerY := box.Center()
	if centerX != 60 {
		t.Errorf("Expected center X 60, got %d", centerX)
	}
	if centerY != 60 {
		t.Errorf("Expected center Y 60, got %d", centerY)
	}
}

func TestBoxArea(t *testing.T) {
	if area := (Box{Width: 100, Height: 80}).Area(); area != 8000 {
		t.Errorf("Expected area 8000, got %d", area)
	}
	if area := (Box{Width: -5, Height: 80}).Area(); area != 0 {
		t.Errorf("Expected area 0 for negative width, got %d", area)
	}
}

func TestBoxIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float64
	}{
		{"identical", Box{0, 0, 10, 10}, Box{0, 0, 10, 10}, 1},
		{"disjoint", Box{0, 0, 10, 10}, Box{20, 20, 10, 10}, 0},
		{"touching", Box{0, 0, 10, 10}, Box{10, 0, 10, 10}, 0},
		{"half", Box{0, 0, 10, 10}, Box{5, 0, 10, 10}, 50.0 / 150.0},
		{"nested", Box{0, 0, 10, 10}, Box{0, 0, 5, 10}, 0.5},
	}

	for _, test := range tests {
		got := test.a.IoU(test.b)
		if math.Abs(got-test.want) > 1e-9 {
			t.Errorf("%s: expected IoU %f, got %f", test.name, test.want, got)
		}
	}
}

func TestShapeAreaFraction(t *testing.T) {
	s := Shape{PixelArea: 250, FrameWidth: 50, FrameHeight: 20}
	if got := s.AreaFraction(); got != 0.25 {
		t.Errorf("Expected area fraction 0.25, got %f", got)
	}
	if got := (Shape{PixelArea: 10}).AreaFraction(); got != 0 {
		t.Errorf("Expected 0 for empty frame, got %f", got)
	}
}

func TestClamp01(t *testing.T) {
	tests := map[float64]float64{-1: 0, 0.3: 0.3, 2: 1, math.NaN(): 0}
	for in, want := range tests {
		if got := Clamp01(in); got != want {
			t.Errorf("Clamp01(%v) = %v, expected %v", in, got, want)
		}
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&InvalidImageError{Reason: "empty input"}, ErrInvalidImage},
		{&UnknownFoodCategoryError{Label: "durian"}, ErrUnknownFoodCategory},
		{&PortionEstimationError{Label: "rice", Reason: "zero area"}, ErrPortionEstimation},
		{&ConfigError{Field: "confidence_threshold", Reason: "must be within [0,1]"}, ErrInvalidConfig},
	}

	for _, test := range tests {
		wrapped := fmt.Errorf("run failed: %w", test.err)
		if !errors.Is(wrapped, test.sentinel) {
			t.Errorf("Expected %v to match %v", test.err, test.sentinel)
		}
	}

	if errors.Is(&ConfigError{}, ErrInvalidImage) {
		t.Error("ConfigError should not match ErrInvalidImage")
	}
}

func TestInvalidImageErrorUnwrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := &InvalidImageError{Reason: "undecodable", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("Expected InvalidImageError to unwrap to its cause")
	}
}
