package core

import "bakerycore/pkg/domain"

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *domain.RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in bakery policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(StockNonNegativeRule())
	engine.Register(UniqueNamesRule())
	engine.Register(RecipeIntegrityRule())
	engine.Register(ProductionIntegrityRule())
	engine.Register(LowStockRule())
	return engine
}
