package memory

import (
	"maps"
	"slices"
	"time"

	"bakerycore/pkg/domain"
)

type memoryState struct {
	products    map[int64]Product
	ingredients map[int64]Ingredient
	recipes     map[int64]Recipe
	recipeLines map[int64]RecipeLine
	sales       map[int64]Sale
	productions map[int64]DailyProduction
	details     map[int64]ProductionDetail
	sequences   map[domain.EntityType]int64
}

// Snapshot is the serialisable form of the store state. Durable backends
// persist one JSON bucket per field.
type Snapshot struct {
	Products    map[int64]Product           `json:"products"`
	Ingredients map[int64]Ingredient        `json:"ingredients"`
	Recipes     map[int64]Recipe            `json:"recipes"`
	RecipeLines map[int64]RecipeLine        `json:"recipe_lines"`
	Sales       map[int64]Sale              `json:"sales"`
	Productions map[int64]DailyProduction   `json:"productions"`
	Details     map[int64]ProductionDetail  `json:"production_details"`
	Sequences   map[domain.EntityType]int64 `json:"sequences"`
}

func newMemoryState() memoryState {
	return memoryState{
		products:    make(map[int64]Product),
		ingredients: make(map[int64]Ingredient),
		recipes:     make(map[int64]Recipe),
		recipeLines: make(map[int64]RecipeLine),
		sales:       make(map[int64]Sale),
		productions: make(map[int64]DailyProduction),
		details:     make(map[int64]ProductionDetail),
		sequences:   make(map[domain.EntityType]int64),
	}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{
		products:    cloneMap(s.products, cloneProduct),
		ingredients: cloneMap(s.ingredients, cloneIngredient),
		recipes:     cloneMap(s.recipes, cloneRecipe),
		recipeLines: maps.Clone(s.recipeLines),
		sales:       maps.Clone(s.sales),
		productions: maps.Clone(s.productions),
		details:     maps.Clone(s.details),
		sequences:   maps.Clone(s.sequences),
	}
	return cloned.normalize()
}

// normalize replaces nil maps so a zero Snapshot imports cleanly.
func (s memoryState) normalize() memoryState {
	if s.products == nil {
		s.products = make(map[int64]Product)
	}
	if s.ingredients == nil {
		s.ingredients = make(map[int64]Ingredient)
	}
	if s.recipes == nil {
		s.recipes = make(map[int64]Recipe)
	}
	if s.recipeLines == nil {
		s.recipeLines = make(map[int64]RecipeLine)
	}
	if s.sales == nil {
		s.sales = make(map[int64]Sale)
	}
	if s.productions == nil {
		s.productions = make(map[int64]DailyProduction)
	}
	if s.details == nil {
		s.details = make(map[int64]ProductionDetail)
	}
	if s.sequences == nil {
		s.sequences = make(map[domain.EntityType]int64)
	}
	return s
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Products:    c.products,
		Ingredients: c.ingredients,
		Recipes:     c.recipes,
		RecipeLines: c.recipeLines,
		Sales:       c.sales,
		Productions: c.productions,
		Details:     c.details,
		Sequences:   c.sequences,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		products:    s.Products,
		ingredients: s.Ingredients,
		recipes:     s.Recipes,
		recipeLines: s.RecipeLines,
		sales:       s.Sales,
		productions: s.Productions,
		details:     s.Details,
		sequences:   s.Sequences,
	}.clone()
	// Older snapshots may predate sequence tracking.
	bump := func(entity domain.EntityType, ids []int64) {
		for _, id := range ids {
			if id > state.sequences[entity] {
				state.sequences[entity] = id
			}
		}
	}
	bump(domain.EntityProduct, slices.Collect(maps.Keys(state.products)))
	bump(domain.EntityIngredient, slices.Collect(maps.Keys(state.ingredients)))
	bump(domain.EntityRecipe, slices.Collect(maps.Keys(state.recipes)))
	bump(domain.EntityRecipeLine, slices.Collect(maps.Keys(state.recipeLines)))
	bump(domain.EntitySale, slices.Collect(maps.Keys(state.sales)))
	bump(domain.EntityProduction, slices.Collect(maps.Keys(state.productions)))
	bump(domain.EntityProductionDetail, slices.Collect(maps.Keys(state.details)))
	return state
}

func (s *memoryState) nextID(entity domain.EntityType) int64 {
	s.sequences[entity]++
	return s.sequences[entity]
}

// claimID reserves an explicit identity, advancing the sequence past it.
func (s *memoryState) claimID(entity domain.EntityType, id int64) {
	if id > s.sequences[entity] {
		s.sequences[entity] = id
	}
}

func cloneMap[T any](in map[int64]T, cloneFn func(T) T) map[int64]T {
	out := make(map[int64]T, len(in))
	for k, v := range in {
		out[k] = cloneFn(v)
	}
	return out
}

func sortedValues[T any](in map[int64]T, keep func(T) bool, cloneFn func(T) T) []T {
	ids := slices.Sorted(maps.Keys(in))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v := in[id]
		if keep != nil && !keep(v) {
			continue
		}
		if cloneFn != nil {
			v = cloneFn(v)
		}
		out = append(out, v)
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneProduct(p Product) Product { return p }

func cloneIngredient(i Ingredient) Ingredient {
	cp := i
	cp.LastRestockDate = cloneTime(i.LastRestockDate)
	cp.ExpirationDate = cloneTime(i.ExpirationDate)
	return cp
}

func cloneRecipe(r Recipe) Recipe {
	cp := r
	if r.ProductID != nil {
		id := *r.ProductID
		cp.ProductID = &id
	}
	return cp
}

// BucketNames lists snapshot buckets in the order durable stores write them.
var BucketNames = []string{
	"products",
	"ingredients",
	"recipes",
	"recipe_lines",
	"sales",
	"productions",
	"production_details",
	"sequences",
}

// Bucket returns a pointer to the named snapshot field for JSON encoding and
// decoding, or false for unknown buckets.
func (s *Snapshot) Bucket(name string) (any, bool) {
	switch name {
	case "products":
		return &s.Products, true
	case "ingredients":
		return &s.Ingredients, true
	case "recipes":
		return &s.Recipes, true
	case "recipe_lines":
		return &s.RecipeLines, true
	case "sales":
		return &s.Sales, true
	case "productions":
		return &s.Productions, true
	case "production_details":
		return &s.Details, true
	case "sequences":
		return &s.Sequences, true
	}
	return nil, false
}
