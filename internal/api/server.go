package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mfolsen/brewstock/internal/domain"
	"github.com/mfolsen/brewstock/internal/repository"
)

// Server exposes the catalog endpoints the dashboard reads and writes.
type Server struct {
	products    repository.ProductRepository
	ingredients repository.IngredientRepository
	sales       repository.SaleRepository
}

// NewServer wires the catalog API.
func NewServer(products repository.ProductRepository, ingredients repository.IngredientRepository, sales repository.SaleRepository) *Server {
	return &Server{products: products, ingredients: ingredients, sales: sales}
}

// Routes mounts the catalog endpoints.
func (s *Server) Routes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handleListProducts)
		r.Post("/", s.handleCreateProduct)
	})
	r.Route("/ingredients", func(r chi.Router) {
		r.Get("/", s.handleListIngredients)
		r.Post("/", s.handleCreateIngredient)
	})
	r.Get("/sales", s.handleListSales)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.products.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name          string  `json:"name"`
		Category      string  `json:"category"`
		SalePrice     float64 `json:"sale_price"`
		UnitCost      float64 `json:"unit_cost"`
		StockQuantity int     `json:"stock_quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if payload.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}

	product := domain.NewProduct(payload.Name, payload.Category, payload.SalePrice, payload.UnitCost, payload.StockQuantity)
	created, err := s.products.Create(r.Context(), product)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := s.ingredients.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredients)
}

func (s *Server) handleCreateIngredient(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name          string  `json:"name"`
		Unit          string  `json:"unit"`
		UnitCost      float64 `json:"unit_cost"`
		StockQuantity float64 `json:"stock_quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if payload.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}

	ingredient := domain.NewIngredient(payload.Name, payload.Unit, payload.UnitCost, payload.StockQuantity)
	created, err := s.ingredients.Create(r.Context(), ingredient)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	sales, err := s.sales.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"message": err.Error()})
}
