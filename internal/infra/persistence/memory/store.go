// Package memory provides the in-memory transactional store behind every
// bakerycore unit of work. Durable backends embed it and persist snapshots.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"bakerycore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.PersistentStore = (*Store)(nil)
	_ domain.UnitOfWork      = (*UnitOfWork)(nil)
)

type (
	// Product aliases domain.Product for in-memory persistence operations.
	Product = domain.Product
	// Ingredient aliases domain.Ingredient.
	Ingredient = domain.Ingredient
	// Recipe aliases domain.Recipe.
	Recipe = domain.Recipe
	// RecipeLine aliases domain.RecipeLine.
	RecipeLine = domain.RecipeLine
	// Sale aliases domain.Sale.
	Sale = domain.Sale
	// DailyProduction aliases domain.DailyProduction.
	DailyProduction = domain.DailyProduction
	// ProductionDetail aliases domain.ProductionDetail.
	ProductionDetail = domain.ProductionDetail
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
)

const defaultAuditLimit = 4096

// Persister durably records a snapshot before it becomes visible. A returned
// error aborts the commit.
type Persister interface {
	Persist(ctx context.Context, snapshot Snapshot) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, snapshot Snapshot) error

// Persist calls f.
func (f PersisterFunc) Persist(ctx context.Context, snapshot Snapshot) error { return f(ctx, snapshot) }

// Option customises a Store.
type Option func(*Store)

// WithPersister installs a durable backend invoked on every commit.
func WithPersister(p Persister) Option { return func(s *Store) { s.persister = p } }

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.nowFn = now } }

// WithLogger sets the logger used for commit diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAuditLimit bounds the retained audit trail.
func WithAuditLimit(n int) Option { return func(s *Store) { s.auditLimit = n } }

// Store provides an in-memory transactional store for the bakery domain.
// Writers are serialized through a single-slot semaphore so each unit of
// work observes and mutates the latest committed stock.
type Store struct {
	mu         sync.RWMutex
	state      memoryState
	engine     *RulesEngine
	nowFn      func() time.Time
	writer     *semaphore.Weighted
	persister  Persister
	logger     *zap.Logger
	audit      []domain.AuditEntry
	auditLimit int
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:      newMemoryState(),
		engine:     engine,
		nowFn:      func() time.Time { return time.Now().UTC() },
		writer:     semaphore.NewWeighted(1),
		logger:     zap.NewNop(),
		auditLimit: defaultAuditLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPersister replaces the durable backend. Durable stores call this after
// hydrating the in-memory state.
func (s *Store) SetPersister(p Persister) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persister = p
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// AuditTrail returns committed changes, oldest first.
func (s *Store) AuditTrail() []domain.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// NewUnitOfWork returns a fresh unit of work bound to the store.
func (s *Store) NewUnitOfWork() domain.UnitOfWork {
	return s.newUnitOfWork()
}

func (s *Store) newUnitOfWork() *UnitOfWork {
	u := &UnitOfWork{store: s}
	u.products = productRepo{u}
	u.ingredients = ingredientRepo{u}
	u.recipes = recipeRepo{u}
	u.sales = saleRepo{u}
	u.productions = productionRepo{u}
	return u
}

// RunInTransaction executes fn inside a new unit of work, committing when fn
// returns nil and rolling back on error or panic.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.UnitOfWork) error) (Result, error) {
	uow := s.newUnitOfWork()
	if err := uow.Begin(ctx); err != nil {
		return Result{}, err
	}
	committed := false
	defer func() {
		if !committed && uow.Active() {
			_ = uow.Rollback()
		}
	}()
	if err := fn(uow); err != nil {
		return Result{}, err
	}
	if !uow.Active() {
		return Result{}, domain.InvalidStateError{Operation: "commit", State: "transaction closed inside scope"}
	}
	committed = true
	return uow.Commit(ctx)
}

func (s *Store) appendAudit(tx *transaction, at time.Time) {
	for _, c := range tx.changes {
		s.audit = append(s.audit, domain.AuditEntry{
			TxID:        tx.id,
			Entity:      c.Entity,
			Action:      c.Action,
			EntityID:    c.EntityID,
			Before:      s.snapshot(tx.id, c.Before),
			After:       s.snapshot(tx.id, c.After),
			CommittedAt: at,
		})
	}
	if s.auditLimit > 0 && len(s.audit) > s.auditLimit {
		s.audit = append([]domain.AuditEntry(nil), s.audit[len(s.audit)-s.auditLimit:]...)
	}
}

func (s *Store) snapshot(txID string, v any) domain.ChangePayload {
	if v == nil {
		return domain.UndefinedChangePayload()
	}
	payload, err := domain.NewChangePayloadFromValue(v)
	if err != nil {
		s.logger.Warn("audit snapshot failed", zap.String("tx_id", txID), zap.Error(err))
		return domain.UndefinedChangePayload()
	}
	return payload
}

// transaction represents a mutation set applied to a private copy of the state.
type transaction struct {
	id      string
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// UnitOfWork implements domain.UnitOfWork. It is not safe for concurrent use;
// run one per goroutine.
type UnitOfWork struct {
	store *Store
	tx    *transaction

	products    productRepo
	ingredients ingredientRepo
	recipes     recipeRepo
	sales       saleRepo
	productions productionRepo
}

// Begin opens a transaction, waiting for the store's writer slot.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return domain.InvalidStateError{Operation: "begin transaction", State: "transaction already open"}
	}
	if err := u.store.writer.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	u.store.mu.RLock()
	state := u.store.state.clone()
	now := u.store.nowFn()
	u.store.mu.RUnlock()
	u.tx = &transaction{id: uuid.NewString(), state: state, now: now}
	return nil
}

// Active reports whether a transaction is open.
func (u *UnitOfWork) Active() bool { return u.tx != nil }

// TxID returns the identifier of the open transaction, or "".
func (u *UnitOfWork) TxID() string {
	if u.tx == nil {
		return ""
	}
	return u.tx.id
}

// Changes returns the mutations recorded so far in the open transaction.
func (u *UnitOfWork) Changes() []Change {
	if u.tx == nil {
		return nil
	}
	return append([]Change(nil), u.tx.changes...)
}

// Commit evaluates rules, persists the snapshot, and publishes the state.
// Any failure discards the transaction before the error is returned.
func (u *UnitOfWork) Commit(ctx context.Context) (Result, error) {
	tx := u.tx
	if tx == nil {
		return Result{}, domain.InvalidStateError{Operation: "commit transaction", State: "no open transaction"}
	}
	defer u.release()

	s := u.store
	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, newTransactionView(&tx.state), tx.changes)
		if err != nil {
			return Result{}, fmt.Errorf("evaluate rules: %w", err)
		}
		result = res
		if res.HasBlocking() {
			s.logger.Debug("commit blocked by rules", zap.String("tx_id", tx.id), zap.Int("violations", len(res.Violations)))
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.mu.RLock()
	persister := s.persister
	s.mu.RUnlock()
	if persister != nil {
		if err := persister.Persist(ctx, snapshotFromMemoryState(tx.state)); err != nil {
			s.logger.Warn("persist snapshot failed", zap.String("tx_id", tx.id), zap.Error(err))
			return result, fmt.Errorf("%w: persist snapshot: %w", domain.ErrConflict, err)
		}
	}

	s.mu.Lock()
	s.state = tx.state
	s.appendAudit(tx, s.nowFn())
	s.mu.Unlock()
	s.logger.Debug("transaction committed", zap.String("tx_id", tx.id), zap.Int("changes", len(tx.changes)))
	return result, nil
}

// Rollback discards the open transaction.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return domain.InvalidStateError{Operation: "rollback transaction", State: "no open transaction"}
	}
	u.release()
	return nil
}

func (u *UnitOfWork) release() {
	u.tx = nil
	u.store.writer.Release(1)
}

// Products returns the product repository.
func (u *UnitOfWork) Products() domain.ProductRepository { return u.products }

// Ingredients returns the ingredient repository.
func (u *UnitOfWork) Ingredients() domain.IngredientRepository { return u.ingredients }

// Recipes returns the recipe repository.
func (u *UnitOfWork) Recipes() domain.RecipeRepository { return u.recipes }

// Sales returns the sale repository.
func (u *UnitOfWork) Sales() domain.SaleRepository { return u.sales }

// Productions returns the production repository.
func (u *UnitOfWork) Productions() domain.ProductionRepository { return u.productions }

// read runs fn against the open transaction state, or the committed state
// under a read lock when none is open.
func (u *UnitOfWork) read(fn func(*memoryState)) {
	if u.tx != nil {
		fn(&u.tx.state)
		return
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	fn(&u.store.state)
}

func (u *UnitOfWork) writable(op string) (*transaction, error) {
	if u.tx == nil {
		return nil, domain.InvalidStateError{Operation: op, State: "no open transaction"}
	}
	return u.tx, nil
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) domain.RuleView {
	return transactionView{state: state}
}

func (v transactionView) ListIngredients() []Ingredient {
	return sortedValues(v.state.ingredients, nil, cloneIngredient)
}

func (v transactionView) ListProducts() []Product {
	return sortedValues(v.state.products, nil, cloneProduct)
}

func (v transactionView) ListRecipes() []Recipe {
	return sortedValues(v.state.recipes, nil, cloneRecipe)
}

func (v transactionView) ListRecipeLines() []RecipeLine {
	return sortedValues[RecipeLine](v.state.recipeLines, nil, nil)
}

func (v transactionView) ListProductions() []DailyProduction {
	return sortedValues[DailyProduction](v.state.productions, nil, nil)
}

func (v transactionView) ListProductionDetails() []ProductionDetail {
	return sortedValues[ProductionDetail](v.state.details, nil, nil)
}

func (v transactionView) FindIngredient(id int64) (Ingredient, bool) {
	i, ok := v.state.ingredients[id]
	return cloneIngredient(i), ok
}

func (v transactionView) FindProduct(id int64) (Product, bool) {
	p, ok := v.state.products[id]
	return p, ok
}

func (v transactionView) FindRecipe(id int64) (Recipe, bool) {
	r, ok := v.state.recipes[id]
	return cloneRecipe(r), ok
}

func (v transactionView) FindProduction(id int64) (DailyProduction, bool) {
	p, ok := v.state.productions[id]
	return p, ok
}
