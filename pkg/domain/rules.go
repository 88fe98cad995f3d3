package domain

import "context"

// RuleView provides read-only access to domain entities for rule evaluation.
type RuleView interface {
	ListIngredients() []Ingredient
	ListProducts() []Product
	ListRecipes() []Recipe
	ListRecipeLines() []RecipeLine
	ListProductions() []DailyProduction
	ListProductionDetails() []ProductionDetail
	FindIngredient(id int64) (Ingredient, bool)
	FindProduct(id int64) (Product, bool)
	FindRecipe(id int64) (Recipe, bool)
	FindProduction(id int64) (DailyProduction, bool)
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.Name())
	}
	return names
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
