package memory

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bakerycore/pkg/domain"
)

func negative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return domain.InvalidArgumentError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ---- products ----

type productRepo struct{ u *UnitOfWork }

func (r productRepo) GetByID(id int64) (Product, error) {
	var (
		p  Product
		ok bool
	)
	r.u.read(func(s *memoryState) { p, ok = s.products[id] })
	if !ok {
		return Product{}, domain.NotFoundError{Entity: domain.EntityProduct, ID: id}
	}
	return p, nil
}

func (r productRepo) GetAll() []Product {
	var out []Product
	r.u.read(func(s *memoryState) { out = sortedValues(s.products, nil, cloneProduct) })
	return out
}

func (r productRepo) GetActive() []Product {
	var out []Product
	r.u.read(func(s *memoryState) {
		out = sortedValues(s.products, func(p Product) bool { return p.IsActive }, cloneProduct)
	})
	return out
}

func (r productRepo) GetByCategory(category string) []Product {
	var out []Product
	r.u.read(func(s *memoryState) {
		out = sortedValues(s.products, func(p Product) bool { return strings.EqualFold(p.Category, category) }, cloneProduct)
	})
	return out
}

func (r productRepo) FindByName(name string) (Product, bool) {
	var (
		p  Product
		ok bool
	)
	r.u.read(func(s *memoryState) { p, ok = findProductByName(s, name, 0) })
	return p, ok
}

func findProductByName(s *memoryState, name string, exclude int64) (Product, bool) {
	key := domain.NormalizedName(name)
	for id, p := range s.products {
		if id != exclude && domain.NormalizedName(p.Name) == key {
			return p, true
		}
	}
	return Product{}, false
}

func validateProduct(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return domain.InvalidArgumentError{Field: "name", Reason: "required"}
	}
	return firstErr(negative("sale_price", p.SalePrice), negative("production_cost", p.ProductionCost))
}

func (r productRepo) Add(p Product) (Product, error) {
	tx, err := r.u.writable("add product")
	if err != nil {
		return Product{}, err
	}
	p.Name = strings.TrimSpace(p.Name)
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	if _, dup := findProductByName(&tx.state, p.Name, 0); dup {
		return Product{}, domain.ConflictError{Entity: domain.EntityProduct, Reason: "name " + p.Name + " already exists"}
	}
	if p.ID == 0 {
		p.ID = tx.state.nextID(domain.EntityProduct)
	} else if _, exists := tx.state.products[p.ID]; exists {
		return Product{}, domain.ConflictError{Entity: domain.EntityProduct, ID: p.ID, Reason: "already exists"}
	} else {
		tx.state.claimID(domain.EntityProduct, p.ID)
	}
	p.IsActive = true
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.products[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionCreate, EntityID: p.ID, After: p})
	return p, nil
}

func (r productRepo) Update(id int64, mutator func(*Product) error) (Product, error) {
	tx, err := r.u.writable("update product")
	if err != nil {
		return Product{}, err
	}
	current, ok := tx.state.products[id]
	if !ok {
		return Product{}, domain.NotFoundError{Entity: domain.EntityProduct, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Product{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.Name = strings.TrimSpace(current.Name)
	if err := validateProduct(current); err != nil {
		return Product{}, err
	}
	if _, dup := findProductByName(&tx.state, current.Name, id); dup {
		return Product{}, domain.ConflictError{Entity: domain.EntityProduct, ID: id, Reason: "name " + current.Name + " already exists"}
	}
	current.UpdatedAt = tx.now
	tx.state.products[id] = current
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, EntityID: id, Before: before, After: current})
	return current, nil
}

// Delete deactivates the product; sales and production history keep referencing it.
func (r productRepo) Delete(id int64) error {
	_, err := r.Update(id, func(p *Product) error {
		p.IsActive = false
		return nil
	})
	return err
}

// ---- ingredients ----

type ingredientRepo struct{ u *UnitOfWork }

func (r ingredientRepo) GetByID(id int64) (Ingredient, error) {
	var (
		i  Ingredient
		ok bool
	)
	r.u.read(func(s *memoryState) {
		i, ok = s.ingredients[id]
		i = cloneIngredient(i)
	})
	if !ok {
		return Ingredient{}, domain.NotFoundError{Entity: domain.EntityIngredient, ID: id}
	}
	return i, nil
}

func (r ingredientRepo) GetAll() []Ingredient {
	var out []Ingredient
	r.u.read(func(s *memoryState) { out = sortedValues(s.ingredients, nil, cloneIngredient) })
	return out
}

func (r ingredientRepo) FindByName(name string) (Ingredient, bool) {
	var (
		i  Ingredient
		ok bool
	)
	r.u.read(func(s *memoryState) { i, ok = findIngredientByName(s, name, 0) })
	return i, ok
}

func findIngredientByName(s *memoryState, name string, exclude int64) (Ingredient, bool) {
	key := domain.NormalizedName(name)
	for id, i := range s.ingredients {
		if id != exclude && domain.NormalizedName(i.Name) == key {
			return cloneIngredient(i), true
		}
	}
	return Ingredient{}, false
}

func validateIngredient(i Ingredient) error {
	if strings.TrimSpace(i.Name) == "" {
		return domain.InvalidArgumentError{Field: "name", Reason: "required"}
	}
	if !i.Unit.Valid() {
		return domain.InvalidArgumentError{Field: "unit", Reason: "unsupported unit " + string(i.Unit)}
	}
	return firstErr(
		negative("minimum_stock", i.MinimumStock),
		negative("maximum_stock", i.MaximumStock),
		negative("unit_price", i.UnitPrice),
	)
}

func (r ingredientRepo) Add(i Ingredient) (Ingredient, error) {
	tx, err := r.u.writable("add ingredient")
	if err != nil {
		return Ingredient{}, err
	}
	i.Name = strings.TrimSpace(i.Name)
	if i.Unit == "" {
		i.Unit = domain.UnitUnit
	}
	if err := firstErr(validateIngredient(i), negative("current_stock", i.CurrentStock)); err != nil {
		return Ingredient{}, err
	}
	if _, dup := findIngredientByName(&tx.state, i.Name, 0); dup {
		return Ingredient{}, domain.ConflictError{Entity: domain.EntityIngredient, Reason: "name " + i.Name + " already exists"}
	}
	if i.ID == 0 {
		i.ID = tx.state.nextID(domain.EntityIngredient)
	} else if _, exists := tx.state.ingredients[i.ID]; exists {
		return Ingredient{}, domain.ConflictError{Entity: domain.EntityIngredient, ID: i.ID, Reason: "already exists"}
	} else {
		tx.state.claimID(domain.EntityIngredient, i.ID)
	}
	i.CreatedAt = tx.now
	i.UpdatedAt = tx.now
	tx.state.ingredients[i.ID] = cloneIngredient(i)
	tx.recordChange(Change{Entity: domain.EntityIngredient, Action: domain.ActionCreate, EntityID: i.ID, After: cloneIngredient(i)})
	return cloneIngredient(i), nil
}

// Update applies mutator. Negative stock is not rejected here; the ledger
// checks before writing and the commit rules reject anything that slips by.
func (r ingredientRepo) Update(id int64, mutator func(*Ingredient) error) (Ingredient, error) {
	tx, err := r.u.writable("update ingredient")
	if err != nil {
		return Ingredient{}, err
	}
	stored, ok := tx.state.ingredients[id]
	if !ok {
		return Ingredient{}, domain.NotFoundError{Entity: domain.EntityIngredient, ID: id}
	}
	before := cloneIngredient(stored)
	current := cloneIngredient(stored)
	if err := mutator(&current); err != nil {
		return Ingredient{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.Name = strings.TrimSpace(current.Name)
	if err := validateIngredient(current); err != nil {
		return Ingredient{}, err
	}
	if _, dup := findIngredientByName(&tx.state, current.Name, id); dup {
		return Ingredient{}, domain.ConflictError{Entity: domain.EntityIngredient, ID: id, Reason: "name " + current.Name + " already exists"}
	}
	current.UpdatedAt = tx.now
	tx.state.ingredients[id] = cloneIngredient(current)
	tx.recordChange(Change{Entity: domain.EntityIngredient, Action: domain.ActionUpdate, EntityID: id, Before: before, After: cloneIngredient(current)})
	return current, nil
}

func (r ingredientRepo) Delete(id int64) error {
	tx, err := r.u.writable("delete ingredient")
	if err != nil {
		return err
	}
	current, ok := tx.state.ingredients[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityIngredient, ID: id}
	}
	for _, line := range tx.state.recipeLines {
		if line.IngredientID == id {
			return domain.ConflictError{Entity: domain.EntityIngredient, ID: id, Reason: "still referenced by a recipe"}
		}
	}
	for _, d := range tx.state.details {
		if d.IngredientID == id {
			return domain.ConflictError{Entity: domain.EntityIngredient, ID: id, Reason: "still referenced by a production run"}
		}
	}
	delete(tx.state.ingredients, id)
	tx.recordChange(Change{Entity: domain.EntityIngredient, Action: domain.ActionDelete, EntityID: id, Before: cloneIngredient(current)})
	return nil
}

// GetLowStock orders by stock-to-minimum ratio, then name, then id.
func (r ingredientRepo) GetLowStock() []Ingredient {
	var out []Ingredient
	r.u.read(func(s *memoryState) {
		out = sortedValues(s.ingredients, Ingredient.NeedsRestock, cloneIngredient)
	})
	slices.SortStableFunc(out, func(a, b Ingredient) int {
		if c := a.StockRatio().Cmp(b.StockRatio()); c != 0 {
			return c
		}
		if c := cmp.Compare(domain.NormalizedName(a.Name), domain.NormalizedName(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r ingredientRepo) GetExpiringBefore(cutoff time.Time) []Ingredient {
	var out []Ingredient
	r.u.read(func(s *memoryState) {
		out = sortedValues(s.ingredients, func(i Ingredient) bool {
			return i.ExpirationDate != nil && !i.ExpirationDate.After(cutoff)
		}, cloneIngredient)
	})
	slices.SortStableFunc(out, func(a, b Ingredient) int { return a.ExpirationDate.Compare(*b.ExpirationDate) })
	return out
}

func (r ingredientRepo) GetTotalInventoryValue() decimal.Decimal {
	total := decimal.Zero
	r.u.read(func(s *memoryState) {
		for _, i := range s.ingredients {
			total = total.Add(i.InventoryValue())
		}
	})
	return total
}

// ---- recipes ----

type recipeRepo struct{ u *UnitOfWork }

func (r recipeRepo) GetByID(id int64) (Recipe, error) {
	var (
		rec Recipe
		ok  bool
	)
	r.u.read(func(s *memoryState) {
		rec, ok = s.recipes[id]
		rec = cloneRecipe(rec)
	})
	if !ok {
		return Recipe{}, domain.NotFoundError{Entity: domain.EntityRecipe, ID: id}
	}
	return rec, nil
}

func (r recipeRepo) GetAll() []Recipe {
	var out []Recipe
	r.u.read(func(s *memoryState) { out = sortedValues(s.recipes, nil, cloneRecipe) })
	return out
}

func (r recipeRepo) GetByProductID(productID int64) (Recipe, bool) {
	var (
		rec Recipe
		ok  bool
	)
	r.u.read(func(s *memoryState) { rec, ok = recipeForProduct(s, productID, 0) })
	return rec, ok
}

func recipeForProduct(s *memoryState, productID, exclude int64) (Recipe, bool) {
	for _, rec := range sortedValues(s.recipes, nil, nil) {
		if rec.ID != exclude && rec.ProductID != nil && *rec.ProductID == productID {
			return cloneRecipe(rec), true
		}
	}
	return Recipe{}, false
}

func checkRecipeLink(s *memoryState, rec Recipe) error {
	if rec.ProductID == nil {
		return nil
	}
	if _, ok := s.products[*rec.ProductID]; !ok {
		return domain.NotFoundError{Entity: domain.EntityProduct, ID: *rec.ProductID}
	}
	if other, ok := recipeForProduct(s, *rec.ProductID, rec.ID); ok {
		return domain.ConflictError{Entity: domain.EntityRecipe, ID: rec.ID, Reason: "product already linked to recipe " + other.Name}
	}
	return nil
}

// Add normalises a non-positive yield to one batch unit.
func (r recipeRepo) Add(rec Recipe) (Recipe, error) {
	tx, err := r.u.writable("add recipe")
	if err != nil {
		return Recipe{}, err
	}
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		return Recipe{}, domain.InvalidArgumentError{Field: "name", Reason: "required"}
	}
	if rec.Yield <= 0 {
		rec.Yield = 1
	}
	if rec.PreparationTime < 0 || rec.BakingTime < 0 {
		return Recipe{}, domain.InvalidArgumentError{Field: "time", Reason: "must not be negative"}
	}
	if rec.ID == 0 {
		rec.ID = tx.state.nextID(domain.EntityRecipe)
	} else if _, exists := tx.state.recipes[rec.ID]; exists {
		return Recipe{}, domain.ConflictError{Entity: domain.EntityRecipe, ID: rec.ID, Reason: "already exists"}
	} else {
		tx.state.claimID(domain.EntityRecipe, rec.ID)
	}
	if err := checkRecipeLink(&tx.state, rec); err != nil {
		return Recipe{}, err
	}
	rec.CreatedAt = tx.now
	rec.UpdatedAt = tx.now
	rec.LastUpdated = tx.now
	tx.state.recipes[rec.ID] = cloneRecipe(rec)
	tx.recordChange(Change{Entity: domain.EntityRecipe, Action: domain.ActionCreate, EntityID: rec.ID, After: cloneRecipe(rec)})
	return cloneRecipe(rec), nil
}

func (r recipeRepo) Update(id int64, mutator func(*Recipe) error) (Recipe, error) {
	tx, err := r.u.writable("update recipe")
	if err != nil {
		return Recipe{}, err
	}
	stored, ok := tx.state.recipes[id]
	if !ok {
		return Recipe{}, domain.NotFoundError{Entity: domain.EntityRecipe, ID: id}
	}
	before := cloneRecipe(stored)
	current := cloneRecipe(stored)
	if err := mutator(&current); err != nil {
		return Recipe{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.Name = strings.TrimSpace(current.Name)
	if current.Name == "" {
		return Recipe{}, domain.InvalidArgumentError{Field: "name", Reason: "required"}
	}
	if err := checkRecipeLink(&tx.state, current); err != nil {
		return Recipe{}, err
	}
	current.UpdatedAt = tx.now
	current.LastUpdated = tx.now
	tx.state.recipes[id] = cloneRecipe(current)
	tx.recordChange(Change{Entity: domain.EntityRecipe, Action: domain.ActionUpdate, EntityID: id, Before: before, After: cloneRecipe(current)})
	return current, nil
}

// Delete removes the recipe and its owned lines.
func (r recipeRepo) Delete(id int64) error {
	tx, err := r.u.writable("delete recipe")
	if err != nil {
		return err
	}
	current, ok := tx.state.recipes[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityRecipe, ID: id}
	}
	for _, line := range linesOf(&tx.state, id) {
		delete(tx.state.recipeLines, line.ID)
		tx.recordChange(Change{Entity: domain.EntityRecipeLine, Action: domain.ActionDelete, EntityID: line.ID, Before: line})
	}
	delete(tx.state.recipes, id)
	tx.recordChange(Change{Entity: domain.EntityRecipe, Action: domain.ActionDelete, EntityID: id, Before: cloneRecipe(current)})
	return nil
}

func linesOf(s *memoryState, recipeID int64) []RecipeLine {
	out := sortedValues(s.recipeLines, func(l RecipeLine) bool { return l.RecipeID == recipeID }, nil)
	slices.SortStableFunc(out, func(a, b RecipeLine) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r recipeRepo) Lines(recipeID int64) []RecipeLine {
	var out []RecipeLine
	r.u.read(func(s *memoryState) { out = linesOf(s, recipeID) })
	return out
}

func (r recipeRepo) touch(tx *transaction, recipeID int64) {
	rec := tx.state.recipes[recipeID]
	rec.LastUpdated = tx.now
	rec.UpdatedAt = tx.now
	tx.state.recipes[recipeID] = rec
}

func (r recipeRepo) lineFor(tx *transaction, recipeID, ingredientID int64) (RecipeLine, bool) {
	for _, line := range linesOf(&tx.state, recipeID) {
		if line.IngredientID == ingredientID {
			return line, true
		}
	}
	return RecipeLine{}, false
}

// AddLine appends a line, or adds quantity to the existing line for the ingredient.
func (r recipeRepo) AddLine(recipeID, ingredientID int64, quantity decimal.Decimal) (RecipeLine, error) {
	tx, err := r.u.writable("add recipe line")
	if err != nil {
		return RecipeLine{}, err
	}
	if _, ok := tx.state.recipes[recipeID]; !ok {
		return RecipeLine{}, domain.NotFoundError{Entity: domain.EntityRecipe, ID: recipeID}
	}
	if _, ok := tx.state.ingredients[ingredientID]; !ok {
		return RecipeLine{}, domain.NotFoundError{Entity: domain.EntityIngredient, ID: ingredientID}
	}
	if !quantity.IsPositive() {
		return RecipeLine{}, domain.InvalidArgumentError{Field: "quantity", Reason: "must be greater than zero"}
	}
	if existing, ok := r.lineFor(tx, recipeID, ingredientID); ok {
		updated := existing
		updated.Quantity = existing.Quantity.Add(quantity)
		tx.state.recipeLines[existing.ID] = updated
		r.touch(tx, recipeID)
		tx.recordChange(Change{Entity: domain.EntityRecipeLine, Action: domain.ActionUpdate, EntityID: existing.ID, Before: existing, After: updated})
		return updated, nil
	}
	line := RecipeLine{
		ID:           tx.state.nextID(domain.EntityRecipeLine),
		RecipeID:     recipeID,
		IngredientID: ingredientID,
		Quantity:     quantity,
		Position:     len(linesOf(&tx.state, recipeID)),
	}
	tx.state.recipeLines[line.ID] = line
	r.touch(tx, recipeID)
	tx.recordChange(Change{Entity: domain.EntityRecipeLine, Action: domain.ActionCreate, EntityID: line.ID, After: line})
	return line, nil
}

func (r recipeRepo) UpdateLine(recipeID, ingredientID int64, quantity decimal.Decimal) (RecipeLine, error) {
	tx, err := r.u.writable("update recipe line")
	if err != nil {
		return RecipeLine{}, err
	}
	if !quantity.IsPositive() {
		return RecipeLine{}, domain.InvalidArgumentError{Field: "quantity", Reason: "must be greater than zero"}
	}
	existing, ok := r.lineFor(tx, recipeID, ingredientID)
	if !ok {
		return RecipeLine{}, domain.NotFoundError{Entity: domain.EntityRecipeLine, ID: ingredientID}
	}
	updated := existing
	updated.Quantity = quantity
	tx.state.recipeLines[existing.ID] = updated
	r.touch(tx, recipeID)
	tx.recordChange(Change{Entity: domain.EntityRecipeLine, Action: domain.ActionUpdate, EntityID: existing.ID, Before: existing, After: updated})
	return updated, nil
}

func (r recipeRepo) RemoveLine(recipeID, ingredientID int64) error {
	tx, err := r.u.writable("remove recipe line")
	if err != nil {
		return err
	}
	existing, ok := r.lineFor(tx, recipeID, ingredientID)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityRecipeLine, ID: ingredientID}
	}
	delete(tx.state.recipeLines, existing.ID)
	r.touch(tx, recipeID)
	tx.recordChange(Change{Entity: domain.EntityRecipeLine, Action: domain.ActionDelete, EntityID: existing.ID, Before: existing})
	return nil
}

// ---- sales ----

type saleRepo struct{ u *UnitOfWork }

func (r saleRepo) GetByID(id int64) (Sale, error) {
	var (
		sale Sale
		ok   bool
	)
	r.u.read(func(s *memoryState) { sale, ok = s.sales[id] })
	if !ok {
		return Sale{}, domain.NotFoundError{Entity: domain.EntitySale, ID: id}
	}
	return sale, nil
}

func (r saleRepo) GetAll() []Sale {
	var out []Sale
	r.u.read(func(s *memoryState) { out = sortedValues[Sale](s.sales, nil, nil) })
	return out
}

func (r saleRepo) GetByDateRange(start, end time.Time) []Sale {
	var out []Sale
	r.u.read(func(s *memoryState) {
		out = sortedValues(s.sales, func(sale Sale) bool {
			return !sale.SaleDate.Before(start) && !sale.SaleDate.After(end)
		}, nil)
	})
	return out
}

func (r saleRepo) GetByProduct(productID int64) []Sale {
	var out []Sale
	r.u.read(func(s *memoryState) {
		out = sortedValues(s.sales, func(sale Sale) bool { return sale.ProductID == productID }, nil)
	})
	return out
}

func (r saleRepo) prepare(tx *transaction, sale *Sale) error {
	product, ok := tx.state.products[sale.ProductID]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityProduct, ID: sale.ProductID}
	}
	if sale.Quantity <= 0 {
		return domain.InvalidArgumentError{Field: "quantity", Reason: "must be greater than zero"}
	}
	if sale.UnitPrice.IsZero() {
		sale.UnitPrice = product.SalePrice
	}
	if err := negative("unit_price", sale.UnitPrice); err != nil {
		return err
	}
	if sale.PaymentMethod == "" {
		sale.PaymentMethod = domain.PaymentCash
	}
	if !sale.PaymentMethod.Valid() {
		return domain.InvalidArgumentError{Field: "payment_method", Reason: "unsupported method " + string(sale.PaymentMethod)}
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = tx.now
	}
	sale.TotalPrice = sale.CalculateTotal()
	return nil
}

func (r saleRepo) Add(sale Sale) (Sale, error) {
	tx, err := r.u.writable("add sale")
	if err != nil {
		return Sale{}, err
	}
	if err := r.prepare(tx, &sale); err != nil {
		return Sale{}, err
	}
	if sale.ID == 0 {
		sale.ID = tx.state.nextID(domain.EntitySale)
	} else if _, exists := tx.state.sales[sale.ID]; exists {
		return Sale{}, domain.ConflictError{Entity: domain.EntitySale, ID: sale.ID, Reason: "already exists"}
	} else {
		tx.state.claimID(domain.EntitySale, sale.ID)
	}
	sale.CreatedAt = tx.now
	sale.UpdatedAt = tx.now
	tx.state.sales[sale.ID] = sale
	tx.recordChange(Change{Entity: domain.EntitySale, Action: domain.ActionCreate, EntityID: sale.ID, After: sale})
	return sale, nil
}

func (r saleRepo) Update(id int64, mutator func(*Sale) error) (Sale, error) {
	tx, err := r.u.writable("update sale")
	if err != nil {
		return Sale{}, err
	}
	current, ok := tx.state.sales[id]
	if !ok {
		return Sale{}, domain.NotFoundError{Entity: domain.EntitySale, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Sale{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	if err := r.prepare(tx, &current); err != nil {
		return Sale{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.sales[id] = current
	tx.recordChange(Change{Entity: domain.EntitySale, Action: domain.ActionUpdate, EntityID: id, Before: before, After: current})
	return current, nil
}

func (r saleRepo) Delete(id int64) error {
	tx, err := r.u.writable("delete sale")
	if err != nil {
		return err
	}
	current, ok := tx.state.sales[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntitySale, ID: id}
	}
	delete(tx.state.sales, id)
	tx.recordChange(Change{Entity: domain.EntitySale, Action: domain.ActionDelete, EntityID: id, Before: current})
	return nil
}

// ---- productions ----

type productionRepo struct{ u *UnitOfWork }

func (r productionRepo) GetByID(id int64) (DailyProduction, error) {
	var (
		p  DailyProduction
		ok bool
	)
	r.u.read(func(s *memoryState) { p, ok = s.productions[id] })
	if !ok {
		return DailyProduction{}, domain.NotFoundError{Entity: domain.EntityProduction, ID: id}
	}
	return p, nil
}

func (r productionRepo) GetRun(id int64) (domain.ProductionRun, error) {
	var (
		run domain.ProductionRun
		ok  bool
	)
	r.u.read(func(s *memoryState) {
		run.DailyProduction, ok = s.productions[id]
		if ok {
			run.Details = detailsOf(s, id)
		}
	})
	if !ok {
		return domain.ProductionRun{}, domain.NotFoundError{Entity: domain.EntityProduction, ID: id}
	}
	return run, nil
}

func sortByDate(out []DailyProduction) []DailyProduction {
	slices.SortStableFunc(out, func(a, b DailyProduction) int {
		if c := a.ProductionDate.Compare(b.ProductionDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r productionRepo) GetAll() []DailyProduction {
	var out []DailyProduction
	r.u.read(func(s *memoryState) { out = sortedValues[DailyProduction](s.productions, nil, nil) })
	return out
}

func (r productionRepo) GetByDate(date time.Time) []DailyProduction {
	var out []DailyProduction
	r.u.read(func(s *memoryState) {
		out = sortedValues(s.productions, func(p DailyProduction) bool { return domain.SameDay(p.ProductionDate, date) }, nil)
	})
	return out
}

func (r productionRepo) GetByDateRange(start, end time.Time) []DailyProduction {
	from, to := domain.DateOnly(start), domain.DateOnly(end)
	var out []DailyProduction
	r.u.read(func(s *memoryState) {
		out = sortedValues(s.productions, func(p DailyProduction) bool {
			day := domain.DateOnly(p.ProductionDate)
			return !day.Before(from) && !day.After(to)
		}, nil)
	})
	return sortByDate(out)
}

func (r productionRepo) GetByProduct(productID int64) []DailyProduction {
	var out []DailyProduction
	r.u.read(func(s *memoryState) {
		out = sortedValues(s.productions, func(p DailyProduction) bool { return p.ProductID == productID }, nil)
	})
	return sortByDate(out)
}

func validateProduction(s *memoryState, p DailyProduction) error {
	if _, ok := s.products[p.ProductID]; !ok {
		return domain.NotFoundError{Entity: domain.EntityProduct, ID: p.ProductID}
	}
	return firstErr(
		negative("planned_quantity", p.PlannedQuantity),
		negative("actual_quantity", p.ActualQuantity),
		negative("waste_quantity", p.WasteQuantity),
	)
}

func (r productionRepo) Add(p DailyProduction) (DailyProduction, error) {
	tx, err := r.u.writable("add production")
	if err != nil {
		return DailyProduction{}, err
	}
	if p.Status == "" {
		p.Status = domain.ProductionPlanned
	}
	if p.ProductionDate.IsZero() {
		p.ProductionDate = domain.DateOnly(tx.now)
	}
	if err := validateProduction(&tx.state, p); err != nil {
		return DailyProduction{}, err
	}
	if p.ID == 0 {
		p.ID = tx.state.nextID(domain.EntityProduction)
	} else if _, exists := tx.state.productions[p.ID]; exists {
		return DailyProduction{}, domain.ConflictError{Entity: domain.EntityProduction, ID: p.ID, Reason: "already exists"}
	} else {
		tx.state.claimID(domain.EntityProduction, p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.productions[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityProduction, Action: domain.ActionCreate, EntityID: p.ID, After: p})
	return p, nil
}

// Update rejects any mutation of a terminal run and any status change the
// lifecycle does not allow.
func (r productionRepo) Update(id int64, mutator func(*DailyProduction) error) (DailyProduction, error) {
	tx, err := r.u.writable("update production")
	if err != nil {
		return DailyProduction{}, err
	}
	current, ok := tx.state.productions[id]
	if !ok {
		return DailyProduction{}, domain.NotFoundError{Entity: domain.EntityProduction, ID: id}
	}
	if current.Status.Terminal() {
		return DailyProduction{}, domain.InvalidStateError{Entity: domain.EntityProduction, ID: id, State: string(current.Status), Operation: "update"}
	}
	before := current
	if err := mutator(&current); err != nil {
		return DailyProduction{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	if current.Status != before.Status && !before.Status.CanTransition(current.Status) {
		return DailyProduction{}, domain.InvalidStateError{Entity: domain.EntityProduction, ID: id, State: string(before.Status), Operation: "transition to " + string(current.Status)}
	}
	if err := validateProduction(&tx.state, current); err != nil {
		return DailyProduction{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.productions[id] = current
	tx.recordChange(Change{Entity: domain.EntityProduction, Action: domain.ActionUpdate, EntityID: id, Before: before, After: current})
	return current, nil
}

// Delete removes the run and its owned detail lines.
func (r productionRepo) Delete(id int64) error {
	tx, err := r.u.writable("delete production")
	if err != nil {
		return err
	}
	current, ok := tx.state.productions[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityProduction, ID: id}
	}
	for _, d := range detailsOf(&tx.state, id) {
		delete(tx.state.details, d.ID)
		tx.recordChange(Change{Entity: domain.EntityProductionDetail, Action: domain.ActionDelete, EntityID: d.ID, Before: d})
	}
	delete(tx.state.productions, id)
	tx.recordChange(Change{Entity: domain.EntityProduction, Action: domain.ActionDelete, EntityID: id, Before: current})
	return nil
}

func detailsOf(s *memoryState, productionID int64) []ProductionDetail {
	out := sortedValues(s.details, func(d ProductionDetail) bool { return d.ProductionID == productionID }, nil)
	slices.SortStableFunc(out, func(a, b ProductionDetail) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r productionRepo) Details(productionID int64) []ProductionDetail {
	var out []ProductionDetail
	r.u.read(func(s *memoryState) { out = detailsOf(s, productionID) })
	return out
}

func (r productionRepo) mutableParent(tx *transaction, productionID int64, op string) error {
	parent, ok := tx.state.productions[productionID]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityProduction, ID: productionID}
	}
	if parent.Status.Terminal() {
		return domain.InvalidStateError{Entity: domain.EntityProduction, ID: productionID, State: string(parent.Status), Operation: op}
	}
	return nil
}

func validateDetail(s *memoryState, d ProductionDetail) error {
	if _, ok := s.ingredients[d.IngredientID]; !ok {
		return domain.NotFoundError{Entity: domain.EntityIngredient, ID: d.IngredientID}
	}
	return firstErr(negative("planned_quantity", d.PlannedQuantity), negative("actual_quantity", d.ActualQuantity))
}

// AddDetail links a new line to its parent run and computes its variance.
func (r productionRepo) AddDetail(d ProductionDetail) (ProductionDetail, error) {
	tx, err := r.u.writable("add production detail")
	if err != nil {
		return ProductionDetail{}, err
	}
	if err := r.mutableParent(tx, d.ProductionID, "add detail to"); err != nil {
		return ProductionDetail{}, err
	}
	if err := validateDetail(&tx.state, d); err != nil {
		return ProductionDetail{}, err
	}
	d.ID = tx.state.nextID(domain.EntityProductionDetail)
	d.Position = len(detailsOf(&tx.state, d.ProductionID))
	d.Variance = d.ComputeVariance()
	tx.state.details[d.ID] = d
	tx.recordChange(Change{Entity: domain.EntityProductionDetail, Action: domain.ActionCreate, EntityID: d.ID, After: d})
	return d, nil
}

func (r productionRepo) UpdateDetail(id int64, mutator func(*ProductionDetail) error) (ProductionDetail, error) {
	tx, err := r.u.writable("update production detail")
	if err != nil {
		return ProductionDetail{}, err
	}
	current, ok := tx.state.details[id]
	if !ok {
		return ProductionDetail{}, domain.NotFoundError{Entity: domain.EntityProductionDetail, ID: id}
	}
	if err := r.mutableParent(tx, current.ProductionID, "update detail of"); err != nil {
		return ProductionDetail{}, err
	}
	before := current
	if err := mutator(&current); err != nil {
		return ProductionDetail{}, err
	}
	current.ID = id
	current.ProductionID = before.ProductionID
	current.Position = before.Position
	if err := validateDetail(&tx.state, current); err != nil {
		return ProductionDetail{}, err
	}
	current.Variance = current.ComputeVariance()
	tx.state.details[id] = current
	tx.recordChange(Change{Entity: domain.EntityProductionDetail, Action: domain.ActionUpdate, EntityID: id, Before: before, After: current})
	return current, nil
}

func (r productionRepo) RemoveDetail(id int64) error {
	tx, err := r.u.writable("remove production detail")
	if err != nil {
		return err
	}
	current, ok := tx.state.details[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityProductionDetail, ID: id}
	}
	if err := r.mutableParent(tx, current.ProductionID, "remove detail of"); err != nil {
		return err
	}
	delete(tx.state.details, id)
	tx.recordChange(Change{Entity: domain.EntityProductionDetail, Action: domain.ActionDelete, EntityID: id, Before: current})
	return nil
}
