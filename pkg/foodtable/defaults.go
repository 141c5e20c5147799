package foodtable

import "github.com/menta2k/calorie-estimator/pkg/types"

// DefaultVersion tags the built-in reference data
const DefaultVersion = "builtin-2024.1"

// typical and minimum portion per food group, in the group's unit
var groupPortions = map[string]struct {
	typical float64
	min     float64
	unit    types.Unit
}{
	GroupFruits:     {150, 10, types.UnitGram},
	GroupVegetables: {120, 10, types.UnitGram},
	GroupProteins:   {150, 15, types.UnitGram},
	GroupGrains:     {100, 10, types.UnitGram},
	GroupSnacks:     {60, 5, types.UnitGram},
	GroupBeverages:  {250, 30, types.UnitMilliliter},
	GroupMixed:      {200, 20, types.UnitGram},
}

// kcal per 100 g (or 100 ml for beverages)
var builtin = []struct {
	id       string
	name     string
	group    string
	calories float64
}{
	{"apple", "Apple", GroupFruits, 52},
	{"banana", "Banana", GroupFruits, 89},
	{"orange", "Orange", GroupFruits, 47},
	{"strawberry", "Strawberry", GroupFruits, 32},
	{"grape", "Grape", GroupFruits, 62},
	{"lemon", "Lemon", GroupFruits, 29},
	{"mixed_fruits", "Mixed fruits", GroupFruits, 50},

	{"carrot", "Carrot", GroupVegetables, 41},
	{"broccoli", "Broccoli", GroupVegetables, 34},
	{"tomato", "Tomato", GroupVegetables, 18},
	{"lettuce", "Lettuce", GroupVegetables, 15},
	{"cucumber", "Cucumber", GroupVegetables, 16},
	{"onion", "Onion", GroupVegetables, 40},
	{"mixed_vegetables", "Mixed vegetables", GroupVegetables, 25},

	{"chicken", "Chicken", GroupProteins, 165},
	{"beef", "Beef", GroupProteins, 250},
	{"fish", "Fish", GroupProteins, 206},
	{"egg", "Egg", GroupProteins, 155},
	{"cheese", "Cheese", GroupProteins, 113},
	{"yogurt", "Yogurt", GroupProteins, 59},

	{"bread", "Bread", GroupGrains, 265},
	{"rice", "Rice", GroupGrains, 130},
	{"pasta", "Pasta", GroupGrains, 131},
	{"cereal", "Cereal", GroupGrains, 350},
	{"oats", "Oats", GroupGrains, 389},

	{"chips", "Chips", GroupSnacks, 536},
	{"cookies", "Cookies", GroupSnacks, 488},
	{"candy", "Candy", GroupSnacks, 400},
	{"nuts", "Nuts", GroupSnacks, 607},
	{"chocolate", "Chocolate", GroupSnacks, 546},

	{"coffee", "Coffee", GroupBeverages, 2},
	{"tea", "Tea", GroupBeverages, 1},
	{"juice", "Juice", GroupBeverages, 45},
	{"soda", "Soda", GroupBeverages, 42},
	{"water", "Water", GroupBeverages, 0},
	{"milk", "Milk", GroupBeverages, 42},

	{"mixed_food", "Mixed food", GroupMixed, 200},
	{"cooked_food", "Cooked food", GroupMixed, 180},
	{"salad", "Salad", GroupMixed, 50},
	{"sandwich", "Sandwich", GroupMixed, 250},
	{"pizza", "Pizza", GroupMixed, 266},
	{"burger", "Burger", GroupMixed, 295},
	{"pasta_dish", "Pasta dish", GroupMixed, 200},
	{"soup", "Soup", GroupMixed, 80},
}

// DefaultCategories returns the built-in categories
func DefaultCategories() []types.FoodCategory {
	out := make([]types.FoodCategory, 0, len(builtin))
	for _, b := range builtin {
		p := groupPortions[b.group]
		out = append(out, types.FoodCategory{
			ID:                   b.id,
			Name:                 b.name,
			Group:                b.group,
			CaloriesPerReference: b.calories,
			ReferenceQuantity:    100,
			Unit:                 p.unit,
			TypicalPortion:       p.typical,
			MinPortion:           p.min,
		})
	}
	return out
}

// Default returns the built-in reference table
func Default() *Table {
	t, err := New(DefaultVersion, DefaultCategories())
	if err != nil {
		// the built-in data is static; failing here is a programming error
		panic(err)
	}
	return t
}
