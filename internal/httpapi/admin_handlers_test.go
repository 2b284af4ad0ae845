package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAdminTestPushValidation(t *testing.T) {
	r := validationRouter()

	t.Run("missing device token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.handleAdminTestPush(rec, authedPost("/admin/push/test", `{"message": "hello"}`, "admin-1"))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
		if !strings.Contains(rec.Body.String(), "device_token is required") {
			t.Errorf("body = %q, should mention device_token", rec.Body.String())
		}
	})

	t.Run("apns not configured", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.handleAdminTestPush(rec, authedPost("/admin/push/test", `{"device_token": "abc"}`, "admin-1"))

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
	})
}

func TestWithAdminRejectsUnauthenticated(t *testing.T) {
	r := validationRouter()
	r.cfg.JWTSecret = "test-secret"
	r.cfg.AdminPhones = []string{"+919999999999"}

	handler := r.withAdmin(func(w http.ResponseWriter, req *http.Request) {
		t.Error("handler should not be reached")
	})

	req := httptest.NewRequest(http.MethodPost, "/admin/push/test", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
