package httpapi

import (
	"encoding/json"
	"net/http"
	"slices"
)

// withAdmin is middleware that requires admin authentication.
// It wraps withAuth and additionally checks if the user's phone is in the admin list.
func (r *Router) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return r.withAuth(func(w http.ResponseWriter, req *http.Request) {
		authUser := getAuthUser(req.Context())
		if authUser == nil {
			http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
			return
		}

		if !slices.Contains(r.cfg.AdminPhones, authUser.Phone) {
			http.Error(w, `{"error": "admin access required"}`, http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, req)
	})
}

// handleAdminResetUserOnboarding clears a user's profile so support can walk
// them through voice onboarding again.
func (r *Router) handleAdminResetUserOnboarding(w http.ResponseWriter, req *http.Request) {
	userID := req.PathValue("userId")
	if userID == "" {
		http.Error(w, `{"error": "missing userId"}`, http.StatusBadRequest)
		return
	}

	if _, err := r.store.GetUserByID(req.Context(), userID); err != nil {
		http.Error(w, `{"error": "user not found"}`, http.StatusNotFound)
		return
	}

	if err := r.store.ResetUserOnboarding(req.Context(), userID); err != nil {
		r.logger.Printf("admin: failed to reset onboarding for %s: %v", userID, err)
		http.Error(w, `{"error": "failed to reset onboarding"}`, http.StatusInternalServerError)
		return
	}

	r.logger.Printf("admin: reset onboarding for user %s", userID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleAdminTestPush sends a test notification to a device token.
func (r *Router) handleAdminTestPush(w http.ResponseWriter, req *http.Request) {
	var body struct {
		DeviceToken string `json:"device_token"`
		Message     string `json:"message"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if body.DeviceToken == "" {
		http.Error(w, `{"error": "device_token is required"}`, http.StatusBadRequest)
		return
	}
	if body.Message == "" {
		body.Message = "Test notification from HaathSe"
	}

	if r.apns == nil {
		http.Error(w, `{"error": "push notifications not configured"}`, http.StatusServiceUnavailable)
		return
	}

	if err := r.apns.SendTestNotification(body.DeviceToken, body.Message); err != nil {
		r.logger.Printf("admin: test push failed: %v", err)
		http.Error(w, `{"error": "failed to send notification"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
