package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateOrderValidation(t *testing.T) {
	r := validationRouter()

	t.Run("missing product_id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.handleCreateOrder(rec, authedPost("/api/orders", `{"quantity": 2}`, "buyer-1"))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
		if !strings.Contains(rec.Body.String(), "product_id is required") {
			t.Errorf("body = %q, should mention product_id", rec.Body.String())
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.handleCreateOrder(rec, authedPost("/api/orders", `{{{`, "buyer-1"))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}
