package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/store"
)

const defaultListLimit = 50

var validDeliveryCodes = []string{"PICKUP", "COURIER", "LOCAL"}

func parseLimit(req *http.Request) int {
	limit := defaultListLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	return limit
}

// handleListProducts returns active listings, newest first. Supports
// ?category= and ?limit=.
func (r *Router) handleListProducts(w http.ResponseWriter, req *http.Request) {
	category := req.URL.Query().Get("category")

	products, err := r.store.ListProducts(req.Context(), category, parseLimit(req))
	if err != nil {
		r.logger.Printf("products: list failed: %v", err)
		http.Error(w, `{"error": "failed to list products"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// handleSearchProducts matches ?q= against names, descriptions, and
// categories.
func (r *Router) handleSearchProducts(w http.ResponseWriter, req *http.Request) {
	query := strings.TrimSpace(req.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, `{"error": "q parameter is required"}`, http.StatusBadRequest)
		return
	}

	products, err := r.store.SearchProducts(req.Context(), query, parseLimit(req))
	if err != nil {
		r.logger.Printf("products: search %q failed: %v", query, err)
		http.Error(w, `{"error": "search failed"}`, http.StatusInternalServerError)
		return
	}

	r.metrics.SearchQueries.Inc()

	writeJSON(w, http.StatusOK, map[string]any{"products": products, "query": query})
}

// handleGetProduct returns one listing with seller contact info.
func (r *Router) handleGetProduct(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	product, err := r.store.GetProductWithSeller(req.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			http.Error(w, `{"error": "product not found"}`, http.StatusNotFound)
			return
		}
		r.logger.Printf("products: get %s failed: %v", id, err)
		http.Error(w, `{"error": "failed to get product"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

// handleCreateProduct creates a listing for the authenticated seller.
func (r *Router) handleCreateProduct(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	var body struct {
		Name        string   `json:"name"`
		Description *string  `json:"description"`
		Price       int      `json:"price"`
		Quantity    int      `json:"quantity"`
		Unit        string   `json:"unit"`
		Category    string   `json:"category"`
		Delivery    []string `json:"delivery"`
		PhotoURL    *string  `json:"photo_url"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(body.Name) == "" {
		http.Error(w, `{"error": "name is required"}`, http.StatusBadRequest)
		return
	}
	if body.Price <= 0 {
		http.Error(w, `{"error": "price must be positive"}`, http.StatusBadRequest)
		return
	}
	if body.Quantity <= 0 {
		http.Error(w, `{"error": "quantity must be positive"}`, http.StatusBadRequest)
		return
	}
	if body.Unit == "" {
		http.Error(w, `{"error": "unit is required"}`, http.StatusBadRequest)
		return
	}
	for _, d := range body.Delivery {
		if !slices.Contains(validDeliveryCodes, d) {
			http.Error(w, `{"error": "invalid delivery option"}`, http.StatusBadRequest)
			return
		}
	}
	if len(body.Delivery) == 0 {
		body.Delivery = []string{"PICKUP"}
	}
	if body.Category == "" {
		body.Category = "other"
	}

	product, err := r.store.CreateProduct(req.Context(), store.Product{
		SellerID:    authUser.ID,
		Name:        strings.TrimSpace(body.Name),
		Description: body.Description,
		Price:       body.Price,
		Quantity:    body.Quantity,
		Unit:        body.Unit,
		Category:    body.Category,
		Delivery:    body.Delivery,
		PhotoURL:    body.PhotoURL,
	})
	if err != nil {
		r.logger.Printf("products: create failed for seller %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "failed to create product"}`, http.StatusInternalServerError)
		return
	}

	r.metrics.ProductsCreated.Inc()
	r.discord.NotifyProductListed(context.WithoutCancel(req.Context()), product.ID, product.Name, product.Price)
	r.logger.Printf("products: seller %s listed %q (%s)", authUser.ID, product.Name, product.ID)

	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

// handleUpdateProductStatus sets a listing's status. Only the owning seller
// may change it.
func (r *Router) handleUpdateProductStatus(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	id := req.PathValue("id")

	var body struct {
		Status string `json:"status"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if body.Status != "active" && body.Status != "sold" && body.Status != "removed" {
		http.Error(w, `{"error": "status must be 'active', 'sold', or 'removed'"}`, http.StatusBadRequest)
		return
	}

	err := r.store.UpdateProductStatus(req.Context(), id, authUser.ID, body.Status)
	if err != nil {
		if err == pgx.ErrNoRows {
			http.Error(w, `{"error": "product not found"}`, http.StatusNotFound)
			return
		}
		r.logger.Printf("products: status update %s failed: %v", id, err)
		http.Error(w, `{"error": "failed to update product"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleListMyProducts returns the authenticated seller's own listings,
// including sold and removed ones.
func (r *Router) handleListMyProducts(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	products, err := r.store.ListProductsBySeller(req.Context(), authUser.ID, parseLimit(req))
	if err != nil {
		r.logger.Printf("products: list mine failed for %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "failed to list products"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}
