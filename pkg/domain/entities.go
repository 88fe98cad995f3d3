// Package domain defines the persistent bakery entities, value types, error
// taxonomy, and rule evaluation primitives used by bakerycore.
package domain

import (
	"fmt"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityProduct identifies a sellable product record.
	EntityProduct EntityType = "product"
	// EntityIngredient identifies an inventoried ingredient record.
	EntityIngredient EntityType = "ingredient"
	// EntityRecipe identifies a recipe header record.
	EntityRecipe EntityType = "recipe"
	// EntityRecipeLine identifies an ingredient line owned by a recipe.
	EntityRecipeLine EntityType = "recipe_line"
	// EntitySale identifies a sale record.
	EntitySale EntityType = "sale"
	// EntityProduction identifies a daily production run.
	EntityProduction EntityType = "daily_production"
	// EntityProductionDetail identifies an ingredient usage line owned by a production run.
	EntityProductionDetail EntityType = "production_detail"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Change describes a mutation applied inside a unit of work.
type Change struct {
	Entity   EntityType
	Action   Action
	EntityID int64
	Before   any
	After    any
}

// Action enumerates persistence operations.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// AuditEntry records a change that survived commit.
type AuditEntry struct {
	TxID        string        `json:"tx_id"`
	Entity      EntityType    `json:"entity"`
	Action      Action        `json:"action"`
	EntityID    int64         `json:"entity_id"`
	Before      ChangePayload `json:"before"`
	After       ChangePayload `json:"after"`
	CommittedAt time.Time     `json:"committed_at"`
}

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int64
}

// Result aggregates rule violations.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking reports whether any violation prevents commit.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present. It
// reports as a ConflictError since the write was rejected at commit.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return fmt.Sprintf("transaction blocked by rule %s: %s", v.Rule, v.Message)
		}
	}
	return "transaction blocked by rules"
}

// Is allows errors.Is(err, ErrConflict).
func (e RuleViolationError) Is(target error) bool { return target == ErrConflict }
