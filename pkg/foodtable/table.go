// Package foodtable holds the calorie reference data the estimator depends on.
//
// A Table is built once at startup (from the built-in defaults, a JSON file or a
// SQLite database) and never mutated afterwards, so it can be shared between
// concurrent pipeline runs without locking.
package foodtable

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/menta2k/calorie-estimator/pkg/types"
)

// Food groups used by the built-in table
const (
	GroupFruits     = "fruits"
	GroupVegetables = "vegetables"
	GroupProteins   = "proteins"
	GroupGrains     = "grains"
	GroupSnacks     = "snacks"
	GroupBeverages  = "beverages"
	GroupMixed      = "mixed"
)

// Table is an immutable set of food categories keyed by normalized ID.
type Table struct {
	version    string
	categories []types.FoodCategory
	index      map[string]int
}

// New builds a table from the given categories. Missing reference quantities
// default to 100 and missing minimum portions to a tenth of the typical portion.
func New(version string, categories []types.FoodCategory) (*Table, error) {
	t := &Table{
		version:    version,
		categories: make([]types.FoodCategory, 0, len(categories)),
		index:      make(map[string]int, len(categories)),
	}

	for _, c := range categories {
		c.ID = NormalizeID(c.ID)
		if c.ReferenceQuantity == 0 {
			c.ReferenceQuantity = 100
		}
		if c.Unit == "" {
			c.Unit = types.UnitGram
		}
		if c.MinPortion == 0 {
			c.MinPortion = c.TypicalPortion / 10
		}
		if c.Name == "" {
			c.Name = strings.ReplaceAll(c.ID, "_", " ")
		}
		if err := validateCategory(c); err != nil {
			return nil, err
		}
		if _, dup := t.index[c.ID]; dup {
			return nil, fmt.Errorf("duplicate food category %q", c.ID)
		}
		t.index[c.ID] = len(t.categories)
		t.categories = append(t.categories, c)
	}

	sort.SliceStable(t.categories, func(i, j int) bool {
		return t.categories[i].ID < t.categories[j].ID
	})
	for i, c := range t.categories {
		t.index[c.ID] = i
	}

	return t, nil
}

func validateCategory(c types.FoodCategory) error {
	for _, v := range []float64{c.CaloriesPerReference, c.ReferenceQuantity, c.TypicalPortion, c.MinPortion} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("food category %q: quantities must be finite", c.ID)
		}
	}
	switch {
	case c.ID == "":
		return fmt.Errorf("food category id cannot be empty")
	case c.CaloriesPerReference < 0:
		return fmt.Errorf("food category %q: calories must not be negative", c.ID)
	case c.ReferenceQuantity <= 0:
		return fmt.Errorf("food category %q: reference quantity must be positive", c.ID)
	case c.TypicalPortion <= 0:
		return fmt.Errorf("food category %q: typical portion must be positive", c.ID)
	case c.MinPortion <= 0:
		return fmt.Errorf("food category %q: minimum portion must be positive", c.ID)
	}
	switch c.Unit {
	case types.UnitGram, types.UnitMilliliter:
	default:
		return fmt.Errorf("food category %q: unsupported unit %q", c.ID, c.Unit)
	}
	return nil
}

// NormalizeID lowercases a label and folds spaces and hyphens into underscores
func NormalizeID(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.NewReplacer(" ", "_", "-", "_").Replace(label)
	return label
}

// Version returns the version tag of the reference data
func (t *Table) Version() string {
	return t.version
}

// Len returns the number of categories
func (t *Table) Len() int {
	return len(t.categories)
}

// Lookup finds a category by label
func (t *Table) Lookup(label string) (types.FoodCategory, bool) {
	i, ok := t.index[NormalizeID(label)]
	if !ok {
		return types.FoodCategory{}, false
	}
	return t.categories[i], true
}

// MustLookup finds a category or returns an UnknownFoodCategoryError
func (t *Table) MustLookup(label string) (types.FoodCategory, error) {
	c, ok := t.Lookup(label)
	if !ok {
		return types.FoodCategory{}, &types.UnknownFoodCategoryError{Label: label}
	}
	return c, nil
}

// Categories returns a copy of all categories ordered by ID
func (t *Table) Categories() []types.FoodCategory {
	out := make([]types.FoodCategory, len(t.categories))
	copy(out, t.categories)
	return out
}

// ByGroup returns the categories of one food group ordered by ID
func (t *Table) ByGroup(group string) []types.FoodCategory {
	var out []types.FoodCategory
	for _, c := range t.categories {
		if c.Group == group {
			out = append(out, c)
		}
	}
	return out
}

// With returns a new table containing the receiver's categories plus extra.
// Entries in extra replace existing categories with the same ID.
func (t *Table) With(version string, extra ...types.FoodCategory) (*Table, error) {
	merged := make(map[string]types.FoodCategory, len(t.categories)+len(extra))
	for _, c := range t.categories {
		merged[c.ID] = c
	}
	for _, c := range extra {
		merged[NormalizeID(c.ID)] = c
	}

	all := make([]types.FoodCategory, 0, len(merged))
	for _, c := range merged {
		all = append(all, c)
	}
	return New(version, all)
}
