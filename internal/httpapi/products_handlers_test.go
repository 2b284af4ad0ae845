package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/metrics"
)

func authedPost(path, body, userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ctx := context.WithValue(req.Context(), userContextKey, &AuthUser{ID: userID, Phone: "+919876543210"})
	return req.WithContext(ctx)
}

func validationRouter() *Router {
	return &Router{
		cfg:     RouterConfig{},
		logger:  log.New(io.Discard, "", 0),
		metrics: metrics.DefaultMetrics,
	}
}

func TestCreateProductValidation(t *testing.T) {
	r := validationRouter()

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty name", `{"name": "", "price": 40, "quantity": 10, "unit": "kg"}`, "name is required"},
		{"zero price", `{"name": "Rice", "price": 0, "quantity": 10, "unit": "kg"}`, "price must be positive"},
		{"negative price", `{"name": "Rice", "price": -5, "quantity": 10, "unit": "kg"}`, "price must be positive"},
		{"zero quantity", `{"name": "Rice", "price": 40, "quantity": 0, "unit": "kg"}`, "quantity must be positive"},
		{"missing unit", `{"name": "Rice", "price": 40, "quantity": 10}`, "unit is required"},
		{"bad delivery code", `{"name": "Rice", "price": 40, "quantity": 10, "unit": "kg", "delivery": ["DRONE"]}`, "invalid delivery option"},
		{"malformed json", `{not json`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.handleCreateProduct(rec, authedPost("/api/products", tt.body, "seller-1"))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}

			var resp map[string]string
			_ = json.NewDecoder(rec.Body).Decode(&resp)
			if !strings.Contains(rec.Body.String(), tt.wantErr) && !strings.Contains(resp["error"], tt.wantErr) {
				t.Errorf("error = %q, want mention of %q", rec.Body.String(), tt.wantErr)
			}
		})
	}
}

func TestUpdateProductStatusValidation(t *testing.T) {
	r := validationRouter()

	rec := httptest.NewRecorder()
	req := authedPost("/api/products/p1/status", `{"status": "archived"}`, "seller-1")
	req.SetPathValue("id", "p1")
	r.handleUpdateProductStatus(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "status must be") {
		t.Errorf("body = %q, should name the valid statuses", rec.Body.String())
	}
}

func TestSearchProductsRequiresQuery(t *testing.T) {
	r := validationRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/products/search", nil)
	ctx := context.WithValue(req.Context(), userContextKey, &AuthUser{ID: "buyer-1"})
	rec := httptest.NewRecorder()

	r.handleSearchProducts(rec, req.WithContext(ctx))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "q parameter") {
		t.Errorf("body = %q, should mention the q parameter", rec.Body.String())
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", defaultListLimit},
		{"limit=10", 10},
		{"limit=200", 200},
		{"limit=201", defaultListLimit}, // over the cap
		{"limit=0", defaultListLimit},
		{"limit=-5", defaultListLimit},
		{"limit=abc", defaultListLimit},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/products?"+tt.query, nil)
			if got := parseLimit(req); got != tt.want {
				t.Errorf("parseLimit(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}
