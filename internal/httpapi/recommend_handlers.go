package httpapi

import "net/http"

// handleRecommendations returns the current recommendation set. The set is
// rebuilt lazily when the cached one goes stale, so cold caches still serve.
func (r *Router) handleRecommendations(w http.ResponseWriter, req *http.Request) {
	entries, err := r.recommender.Get(req.Context(), parseLimit(req))
	if err != nil {
		r.logger.Printf("recommend: get failed: %v", err)
		http.Error(w, `{"error": "failed to load recommendations"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"recommendations": entries})
}
