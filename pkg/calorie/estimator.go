// Package calorie turns portions into calorie values with uncertainty bands.
package calorie

import (
	"fmt"
	"math"

	"github.com/menta2k/calorie-estimator/pkg/foodtable"
	"github.com/menta2k/calorie-estimator/pkg/types"
)

// Config controls how portion confidence widens the uncertainty band
type Config struct {
	// MinUncertaintyPct applies to a fully confident portion
	MinUncertaintyPct float64
	// MaxUncertaintyPct applies to a portion with zero confidence
	MaxUncertaintyPct float64
}

// DefaultConfig returns the default uncertainty range
func DefaultConfig() Config {
	return Config{MinUncertaintyPct: 10, MaxUncertaintyPct: 60}
}

// Validate checks the uncertainty range
func (c Config) Validate() error {
	if math.IsNaN(c.MinUncertaintyPct) || math.IsNaN(c.MaxUncertaintyPct) ||
		c.MinUncertaintyPct < 0 || c.MaxUncertaintyPct < c.MinUncertaintyPct || c.MaxUncertaintyPct > 100 {
		return &types.ConfigError{Field: "uncertainty", Reason: "range must satisfy 0 <= min <= max <= 100"}
	}
	return nil
}

// Estimator looks up calorie densities in a food table
type Estimator struct {
	table  *foodtable.Table
	config Config
}

// New creates an Estimator with the default uncertainty range
func New(table *foodtable.Table) *Estimator {
	return &Estimator{table: table, config: DefaultConfig()}
}

// NewWithConfig creates an Estimator with a custom uncertainty range
func NewWithConfig(table *foodtable.Table, config Config) *Estimator {
	return &Estimator{table: table, config: config}
}

// Table returns the reference table in use
func (e *Estimator) Table() *foodtable.Table {
	return e.table
}

// Estimate computes the calories of a portion of the labelled food
func (e *Estimator) Estimate(label string, portion types.PortionEstimate) (types.CalorieEstimate, error) {
	if e.table == nil {
		return types.CalorieEstimate{}, &types.UnknownFoodCategoryError{Label: label}
	}
	category, err := e.table.MustLookup(label)
	if err != nil {
		return types.CalorieEstimate{}, err
	}
	return e.EstimateCategory(category, portion)
}

// EstimateCategory computes the calories of a portion of category. Lower
// portion confidence gives a wider symmetric band around the point value.
func (e *Estimator) EstimateCategory(category types.FoodCategory, portion types.PortionEstimate) (types.CalorieEstimate, error) {
	quantity, err := Convert(portion.Quantity, portion.Unit, category)
	if err != nil {
		return types.CalorieEstimate{}, err
	}
	if quantity < 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return types.CalorieEstimate{}, &types.PortionEstimationError{Label: category.ID, Reason: "quantity must be a non-negative number"}
	}

	if !finite(category.CaloriesPerReference) || !finite(category.ReferenceQuantity) {
		return types.CalorieEstimate{}, &types.ConfigError{Field: "food_category." + category.ID, Reason: "calorie density must be finite"}
	}

	ref := category.ReferenceQuantity
	if ref <= 0 {
		ref = 100
	}
	calories := quantity / ref * category.CaloriesPerReference

	conf := types.Clamp01(portion.Confidence)
	pct := e.config.MinUncertaintyPct + (e.config.MaxUncertaintyPct-e.config.MinUncertaintyPct)*(1-conf)
	band := calories * pct / 100

	return types.CalorieEstimate{
		Calories:       calories,
		UncertaintyPct: pct,
		Low:            math.Max(0, calories-band),
		High:           calories + band,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Convert expresses a quantity in the category's unit. Grams and millilitres
// convert one to one; a serving is the category's typical portion.
func Convert(quantity float64, from types.Unit, category types.FoodCategory) (float64, error) {
	if from == "" {
		from = category.Unit
	}
	switch from {
	case category.Unit:
		return quantity, nil
	case types.UnitServing:
		return quantity * category.TypicalPortion, nil
	case types.UnitGram, types.UnitMilliliter:
		if category.Unit == types.UnitGram || category.Unit == types.UnitMilliliter {
			return quantity, nil
		}
	}
	return 0, &types.PortionEstimationError{
		Label:  category.ID,
		Reason: fmt.Sprintf("cannot convert %s to %s", from, category.Unit),
	}
}

// Aggregate sums item calories and combines their uncertainties as the root
// sum of squares, capped at 100%. The combined value is never below the
// largest single item uncertainty and never decreases when an item is added.
func Aggregate(items []types.CalorieEstimate) (total, uncertaintyPct float64) {
	var sumSq float64
	for _, item := range items {
		total += item.Calories
		sumSq += item.UncertaintyPct * item.UncertaintyPct
	}
	if len(items) == 0 {
		return 0, 0
	}
	return total, math.Min(100, math.Sqrt(sumSq))
}
