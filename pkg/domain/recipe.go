package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recipe describes how one batch of a product is made. Lines are stored
// separately and joined by RecipeID.
type Recipe struct {
	Base
	Name            string    `json:"name"`
	ProductID       *int64    `json:"product_id,omitempty"`
	Instructions    string    `json:"instructions,omitempty"`
	Yield           int       `json:"yield"`
	PreparationTime int       `json:"preparation_time_minutes"`
	BakingTime      int       `json:"baking_time_minutes"`
	LastUpdated     time.Time `json:"last_updated"`
}

// TotalTime is preparation plus baking time in minutes.
func (r Recipe) TotalTime() int { return r.PreparationTime + r.BakingTime }

// RecipeLine is the quantity of one ingredient consumed per batch.
type RecipeLine struct {
	ID           int64           `json:"id"`
	RecipeID     int64           `json:"recipe_id"`
	IngredientID int64           `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Position     int             `json:"position"`
}

// Shortage describes how much of an ingredient is missing for a request.
type Shortage struct {
	IngredientID int64           `json:"ingredient_id"`
	Name         string          `json:"name"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
	Missing      decimal.Decimal `json:"missing"`
}
