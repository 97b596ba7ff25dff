// Package memory provides an in-process implementation of every persistence
// contract. It backs the server when no database is configured and the
// domain tests.
//
// Writers are serialized: a transaction works on a private copy of the
// committed state and swaps it in on commit, so readers never observe a
// partial write.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"procurement/internal/core/id"
	"procurement/internal/core/numerator"
	"procurement/internal/core/tx"
	"procurement/internal/domain/audit"
	"procurement/internal/domain/catalogs"
	"procurement/internal/domain/directory"
	po "procurement/internal/domain/purchase_order"
	pr "procurement/internal/domain/purchase_request"
	"procurement/internal/domain/workflow"
)

// ErrNoTransaction is returned by operations that require a transaction.
var ErrNoTransaction = errors.New("memory: operation requires a transaction")

type state struct {
	requests       map[id.ID]pr.Request
	requestDetails map[id.ID]pr.Detail

	orders       map[id.ID]po.PurchaseOrder
	orderDetails map[id.ID]po.Detail
	links        map[id.ID]po.PrDetailLink

	vendors     map[id.ID]catalogs.Vendor
	currencies  map[id.ID]catalogs.Currency
	creditTerms map[id.ID]catalogs.CreditTerm
	units       map[id.ID]catalogs.Unit
	taxProfiles map[id.ID]catalogs.TaxProfile

	users     map[string]directory.UserProfile
	patterns  map[string]numerator.Pattern
	workflows map[string]workflow.Definition
	audit     []audit.Entry
}

func newState() *state {
	return &state{
		requests:       make(map[id.ID]pr.Request),
		requestDetails: make(map[id.ID]pr.Detail),
		orders:         make(map[id.ID]po.PurchaseOrder),
		orderDetails:   make(map[id.ID]po.Detail),
		links:          make(map[id.ID]po.PrDetailLink),
		vendors:        make(map[id.ID]catalogs.Vendor),
		currencies:     make(map[id.ID]catalogs.Currency),
		creditTerms:    make(map[id.ID]catalogs.CreditTerm),
		units:          make(map[id.ID]catalogs.Unit),
		taxProfiles:    make(map[id.ID]catalogs.TaxProfile),
		users:          make(map[string]directory.UserProfile),
		patterns:       make(map[string]numerator.Pattern),
		workflows:      make(map[string]workflow.Definition),
	}
}

// clone copies the maps. Values are copied on every write, so sharing
// slices held by stored values is safe.
func (s *state) clone() *state {
	return &state{
		requests:       maps.Clone(s.requests),
		requestDetails: maps.Clone(s.requestDetails),
		orders:         maps.Clone(s.orders),
		orderDetails:   maps.Clone(s.orderDetails),
		links:          maps.Clone(s.links),
		vendors:        maps.Clone(s.vendors),
		currencies:     maps.Clone(s.currencies),
		creditTerms:    maps.Clone(s.creditTerms),
		units:          maps.Clone(s.units),
		taxProfiles:    maps.Clone(s.taxProfiles),
		users:          maps.Clone(s.users),
		patterns:       maps.Clone(s.patterns),
		workflows:      maps.Clone(s.workflows),
		audit:          slices.Clone(s.audit),
	}
}

// Store is the in-memory database.
type Store struct {
	mu        sync.RWMutex // guards committed
	committed *state

	writer sync.Mutex // held for the lifetime of a transaction
}

// New creates an empty store.
func New() *Store {
	return &Store{committed: newState()}
}

var (
	_ tx.Manager       = (*Store)(nil)
	_ tx.ActiveChecker = (*Store)(nil)
)

type txKey struct{}

type memTx struct {
	mu sync.Mutex
	st *state
}

// RunInTransaction implements tx.Manager. Nested calls reuse the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*memTx); ok {
		return fn(ctx)
	}

	s.writer.Lock()
	defer s.writer.Unlock()

	s.mu.RLock()
	t := &memTx{st: s.committed.clone()}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.committed = t.st
	s.mu.Unlock()
	return nil
}

// InTransaction implements tx.ActiveChecker.
func (s *Store) InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*memTx)
	return ok
}

// read runs fn against the transaction state or the committed state.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if t, ok := ctx.Value(txKey{}).(*memTx); ok {
		t.mu.Lock()
		defer t.mu.Unlock()
		return fn(t.st)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.committed)
}

// write runs fn inside the current transaction, or in its own one.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if t, ok := ctx.Value(txKey{}).(*memTx); ok {
		t.mu.Lock()
		defer t.mu.Unlock()
		return fn(t.st)
	}
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.write(ctx, fn)
	})
}

// Requests returns the purchase request repository.
func (s *Store) Requests() *RequestRepo { return &RequestRepo{s: s} }

// Orders returns the purchase order repository.
func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }

// Catalogs returns the catalog lookup.
func (s *Store) Catalogs() *CatalogRepo { return &CatalogRepo{s: s} }

// Directory returns the user directory.
func (s *Store) Directory() *DirectoryRepo { return &DirectoryRepo{s: s} }

// Numbering returns the numbering store and pattern source.
func (s *Store) Numbering() *NumberingRepo { return &NumberingRepo{s: s} }

// Workflows returns the workflow definition source.
func (s *Store) Workflows() *WorkflowRepo { return &WorkflowRepo{s: s} }

// Audit returns the audit recorder.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }
