package core

import "bakerycore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Product            = domain.Product
	Ingredient         = domain.Ingredient
	Recipe             = domain.Recipe
	RecipeLine         = domain.RecipeLine
	Sale               = domain.Sale
	DailyProduction    = domain.DailyProduction
	ProductionDetail   = domain.ProductionDetail
	ProductionRun      = domain.ProductionRun
	ProductionStatus   = domain.ProductionStatus
	Shortage           = domain.Shortage
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityProduct          = domain.EntityProduct
	EntityIngredient       = domain.EntityIngredient
	EntityRecipe           = domain.EntityRecipe
	EntityRecipeLine       = domain.EntityRecipeLine
	EntitySale             = domain.EntitySale
	EntityProduction       = domain.EntityProduction
	EntityProductionDetail = domain.EntityProductionDetail
)

const (
	ProductionPlanned    = domain.ProductionPlanned
	ProductionInProgress = domain.ProductionInProgress
	ProductionCompleted  = domain.ProductionCompleted
	ProductionCancelled  = domain.ProductionCancelled
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
