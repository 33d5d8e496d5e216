package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fjod/go_cart/rocketshoes-cart/internal/domain"
	"github.com/fjod/go_cart/rocketshoes-cart/internal/notify"
	"github.com/fjod/go_cart/rocketshoes-cart/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultStorageKey = "@RocketShoes:cart"

// StockOracle returns the quantity currently available for a product.
type StockOracle interface {
	Stock(ctx context.Context, productID int64) (domain.StockRecord, error)
}

// CatalogLookup returns the display record of a product not yet in the cart.
type CatalogLookup interface {
	Product(ctx context.Context, productID int64) (domain.Product, error)
}

type Listener func(domain.Cart)

// CartStore owns the in-memory cart and is the single writer of its persisted copy.
// Every successful mutation persists the full cart, replaces the in-memory list and
// notifies subscribers; a failed one leaves all three untouched.
type CartStore struct {
	stock    StockOracle
	catalog  CatalogLookup
	store    storage.DurableStore
	notifier notify.Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	key      string

	mutate sync.Mutex // one read-modify-write cycle at a time

	mu        sync.RWMutex
	cart      domain.Cart
	listeners map[int]Listener
	nextID    int
}

type Deps struct {
	Stock    StockOracle
	Catalog  CatalogLookup
	Store    storage.DurableStore
	Notifier notify.Notifier
	Logger   *slog.Logger
}

type Option func(*CartStore)

// WithStorageKey overrides the key the cart is persisted under.
func WithStorageKey(key string) Option {
	return func(s *CartStore) { s.key = key }
}

// NewCartStore loads the persisted cart. A missing or unreadable value yields an
// empty cart; loaded quantities are not checked against current stock.
func NewCartStore(ctx context.Context, deps Deps, opts ...Option) *CartStore {
	s := &CartStore{
		stock:     deps.Stock,
		catalog:   deps.Catalog,
		store:     deps.Store,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		tracer:    otel.Tracer("github.com/fjod/go_cart/rocketshoes-cart/internal/service"),
		key:       DefaultStorageKey,
		listeners: make(map[int]Listener),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(s.logger)
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cart = s.load(ctx)
	return s
}

func (s *CartStore) load(ctx context.Context) domain.Cart {
	raw, err := s.store.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Cart{}
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read persisted cart, starting empty", "error", err)
		return domain.Cart{}
	}

	var cart domain.Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		s.logger.WarnContext(ctx, "persisted cart is not valid, starting empty", "error", err)
		return domain.Cart{}
	}
	if cart == nil {
		cart = domain.Cart{}
	}
	return dedupe(cart)
}

// dedupe keeps the first entry per product id.
func dedupe(cart domain.Cart) domain.Cart {
	seen := make(map[int64]struct{}, len(cart))
	out := cart[:0]
	for _, p := range cart {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Cart returns a copy of the current cart.
func (s *CartStore) Cart() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Subscribe registers fn to receive the cart after every commit. The returned
// func removes the subscription.
func (s *CartStore) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// AddProduct increments the product's amount by one, adding it from the catalog
// when it is not in the cart yet.
func (s *CartStore) AddProduct(ctx context.Context, productID int64) (err error) {
	ctx, span := s.startSpan(ctx, OpAdd, productID)
	defer func() { endSpan(span, err) }()

	kind, err := s.addProduct(ctx, productID)
	s.emit(ctx, kind, productID)
	return err
}

func (s *CartStore) addProduct(ctx context.Context, productID int64) (notify.Kind, error) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	working := s.Cart()
	idx := working.Find(productID)

	rec, err := s.stock.Stock(ctx, productID)
	if err != nil {
		return s.fail(ctx, OpAdd, notify.KindAddFailed, productID, fmt.Errorf("stock lookup: %w", err))
	}

	current := 0
	if idx >= 0 {
		current = working[idx].Amount
	}
	desired := current + 1

	if desired > rec.Amount {
		return notify.KindStockExceeded, ErrOutOfStock
	}

	if idx >= 0 {
		working[idx].Amount = desired
	} else {
		product, err := s.catalog.Product(ctx, productID)
		if err != nil {
			return s.fail(ctx, OpAdd, notify.KindAddFailed, productID, fmt.Errorf("catalog lookup: %w", err))
		}
		product.ID = productID
		product.Amount = 1
		working = append(working, product)
	}

	if err := s.commit(ctx, working); err != nil {
		return s.fail(ctx, OpAdd, notify.KindAddFailed, productID, err)
	}
	return "", nil
}

// RemoveProduct drops the product's entry from the cart.
func (s *CartStore) RemoveProduct(ctx context.Context, productID int64) (err error) {
	ctx, span := s.startSpan(ctx, OpRemove, productID)
	defer func() { endSpan(span, err) }()

	kind, err := s.removeProduct(ctx, productID)
	s.emit(ctx, kind, productID)
	return err
}

func (s *CartStore) removeProduct(ctx context.Context, productID int64) (notify.Kind, error) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	working := s.Cart()
	if !working.Contains(productID) {
		return notify.KindRemoveFailed, ErrProductNotInCart
	}

	filtered := make(domain.Cart, 0, len(working)-1)
	for _, p := range working {
		if p.ID != productID {
			filtered = append(filtered, p)
		}
	}

	if err := s.commit(ctx, filtered); err != nil {
		return s.fail(ctx, OpRemove, notify.KindRemoveFailed, productID, err)
	}
	return "", nil
}

// UpdateProductAmount sets the product's amount. Amounts <= 0 are ignored
// rather than treated as a removal.
func (s *CartStore) UpdateProductAmount(ctx context.Context, upd domain.AmountUpdate) (err error) {
	if upd.Amount <= 0 {
		return nil
	}

	ctx, span := s.startSpan(ctx, OpUpdate, upd.ProductID)
	defer func() { endSpan(span, err) }()

	kind, err := s.updateProductAmount(ctx, upd)
	s.emit(ctx, kind, upd.ProductID)
	return err
}

func (s *CartStore) updateProductAmount(ctx context.Context, upd domain.AmountUpdate) (notify.Kind, error) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	working := s.Cart()

	rec, err := s.stock.Stock(ctx, upd.ProductID)
	if err != nil {
		return s.fail(ctx, OpUpdate, notify.KindUpdateFailed, upd.ProductID, fmt.Errorf("stock lookup: %w", err))
	}

	if upd.Amount > rec.Amount {
		return notify.KindStockExceeded, ErrOutOfStock
	}

	// An id that is not in the cart matches nothing and the cart is rewritten as is.
	for i := range working {
		if working[i].ID == upd.ProductID {
			working[i].Amount = upd.Amount
		}
	}

	if err := s.commit(ctx, working); err != nil {
		return s.fail(ctx, OpUpdate, notify.KindUpdateFailed, upd.ProductID, err)
	}
	return "", nil
}

// commit persists next, then swaps it in and notifies subscribers. Nothing
// changes if persisting fails.
func (s *CartStore) commit(ctx context.Context, next domain.Cart) error {
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.store.Set(ctx, s.key, string(payload)); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}

	s.mu.Lock()
	s.cart = next
	listeners := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		s.deliver(ctx, fn, next.Clone())
	}
	return nil
}

// deliver runs one listener. The cart is already committed, so a panicking
// listener is logged and skipped.
func (s *CartStore) deliver(ctx context.Context, fn Listener, cart domain.Cart) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "cart listener panicked", "panic", r)
		}
	}()
	fn(cart)
}

func (s *CartStore) fail(ctx context.Context, op Op, kind notify.Kind, productID int64, err error) (notify.Kind, error) {
	s.logger.ErrorContext(ctx, "cart operation failed",
		"op", string(op), "product_id", productID, "error", err)
	return kind, &OperationError{Op: op, ProductID: productID, Err: err}
}

// emit sends the user message for a finished operation. It runs after the
// mutation lock is released so a slow sink never holds up other mutations.
func (s *CartStore) emit(ctx context.Context, kind notify.Kind, productID int64) {
	if kind == "" {
		return
	}
	s.notifier.Notify(ctx, notify.NewMessage(kind, productID))
}

func (s *CartStore) startSpan(ctx context.Context, op Op, productID int64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, string(op), trace.WithAttributes(
		attribute.Int64("product.id", productID),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
