// Package fakeapi serves the stock and catalog endpoints from a JSON seed, for
// local runs and client tests.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/fjod/go_cart/rocketshoes-cart/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Seed struct {
	Stock    []domain.StockRecord `json:"stock"`
	Products []domain.Product     `json:"products"`
}

func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return seed, nil
}

type Server struct {
	mu       sync.RWMutex
	stock    map[int64]domain.StockRecord
	products map[int64]domain.Product
	logger   *slog.Logger
}

func NewServer(seed Seed, logger *slog.Logger) *Server {
	s := &Server{
		stock:    make(map[int64]domain.StockRecord, len(seed.Stock)),
		products: make(map[int64]domain.Product, len(seed.Products)),
		logger:   logger,
	}
	for _, rec := range seed.Stock {
		s.stock[rec.ID] = rec
	}
	for _, p := range seed.Products {
		p.Amount = 0
		s.products[p.ID] = p
	}
	return s
}

// SetStock changes the available amount for a product.
func (s *Server) SetStock(productID int64, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[productID] = domain.StockRecord{ID: productID, Amount: amount}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/stock/{id}", s.getStock)
	r.Get("/products/{id}", s.getProduct)
	return r
}

func (s *Server) getStock(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	s.mu.RLock()
	rec, found := s.stock[id]
	s.mu.RUnlock()
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.respond(w, rec)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	s.mu.RLock()
	p, found := s.products[id]
	s.mu.RUnlock()
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	// Catalog records never carry an amount.
	attrs := make(map[string]json.RawMessage, len(p.Attributes)+1)
	for k, v := range p.Attributes {
		attrs[k] = v
	}
	attrs["id"] = json.RawMessage(strconv.FormatInt(p.ID, 10))
	s.respond(w, attrs)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
