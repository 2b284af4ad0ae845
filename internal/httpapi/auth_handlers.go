package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/store"
)

// Context key for user data
type contextKey string

const userContextKey contextKey = "user"

// JWTClaims represents the claims in the JWT token
type JWTClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
	Role   string `json:"role,omitempty"`
}

// AuthUser represents the authenticated user in request context
type AuthUser struct {
	ID    string
	Phone string
	Role  string
}

// E.164 phone number validation (international format)
var e164Regex = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

func isValidE164(phone string) bool {
	return e164Regex.MatchString(phone)
}

// hashToken creates a SHA256 hash of the token for storage
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// authenticateToken validates a bearer token and its session row, and
// returns the user it represents. Shared by the HTTP middleware and the
// voice websocket, which carries the token as a query parameter.
func (r *Router) authenticateToken(ctx context.Context, tokenString string) (*AuthUser, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(r.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	// Check if session is valid (not revoked)
	valid, err := r.store.IsSessionValid(ctx, hashToken(tokenString))
	if err != nil || !valid {
		return nil, errors.New("session expired or revoked")
	}

	return &AuthUser{
		ID:    claims.UserID,
		Phone: claims.Phone,
		Role:  claims.Role,
	}, nil
}

// withAuth is middleware that requires valid JWT authentication
func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		authHeader := req.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"error": "missing authorization header"}`, http.StatusUnauthorized)
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, `{"error": "invalid authorization format"}`, http.StatusUnauthorized)
			return
		}

		user, err := r.authenticateToken(req.Context(), parts[1])
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"error": %q}`, err.Error()), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(req.Context(), userContextKey, user)
		next.ServeHTTP(w, req.WithContext(ctx))
	}
}

// getAuthUser extracts the authenticated user from context
func getAuthUser(ctx context.Context) *AuthUser {
	user, _ := ctx.Value(userContextKey).(*AuthUser)
	return user
}

// generateJWT creates a new JWT token for a user
func (r *Router) generateJWT(user *store.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(r.cfg.JWTExpiry)

	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: user.ID,
		Phone:  user.Phone,
		Role:   user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(r.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// handleSendCode initiates phone verification via Twilio Verify
func (r *Router) handleSendCode(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Phone string `json:"phone"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if !isValidE164(body.Phone) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid phone format, use E.164 (e.g., +919876543210)",
		})
		return
	}

	if r.cfg.TwilioAccountSID == "" || r.cfg.TwilioVerifyServiceID == "" {
		r.logger.Printf("auth: Twilio Verify not configured")
		http.Error(w, `{"error": "SMS verification not configured"}`, http.StatusServiceUnavailable)
		return
	}

	if err := r.sendVerifyCode(req.Context(), body.Phone); err != nil {
		r.logger.Printf("auth: failed to send verification code to %s: %v", body.Phone, err)
		http.Error(w, `{"error": "failed to send verification code"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleVerifyCode verifies the OTP code and issues JWT
func (r *Router) handleVerifyCode(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if !isValidE164(body.Phone) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid phone format",
		})
		return
	}

	if len(body.Code) != 6 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "code must be 6 digits",
		})
		return
	}

	if r.cfg.TwilioAccountSID == "" || r.cfg.TwilioVerifyServiceID == "" {
		r.logger.Printf("auth: Twilio Verify not configured")
		http.Error(w, `{"error": "SMS verification not configured"}`, http.StatusServiceUnavailable)
		return
	}

	valid, err := r.checkVerifyCode(req.Context(), body.Phone, body.Code)
	if err != nil {
		r.logger.Printf("auth: verification check failed for %s: %v", body.Phone, err)
		http.Error(w, `{"error": "verification failed"}`, http.StatusInternalServerError)
		return
	}

	if !valid {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "invalid or expired code",
		})
		return
	}

	// Find or create user
	user, isNew, err := r.store.FindOrCreateUser(req.Context(), body.Phone)
	if err != nil {
		r.logger.Printf("auth: failed to find/create user for %s: %v", body.Phone, err)
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	token, expiresAt, err := r.generateJWT(user)
	if err != nil {
		r.logger.Printf("auth: failed to generate JWT: %v", err)
		http.Error(w, `{"error": "failed to create session"}`, http.StatusInternalServerError)
		return
	}

	// Store session for logout/revocation
	tokenHash := hashToken(token)
	if err := r.store.CreateSession(req.Context(), user.ID, tokenHash, expiresAt); err != nil {
		r.logger.Printf("auth: failed to store session: %v", err)
		http.Error(w, `{"error": "failed to create session"}`, http.StatusInternalServerError)
		return
	}

	if isNew {
		r.discord.NotifyNewUser(context.WithoutCancel(req.Context()), body.Phone)
	}

	r.logger.Printf("auth: user %s logged in (new: %v)", body.Phone, isNew)

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
		"user":       user,
		"is_new":     isNew,
	})
}

// handleRefreshToken issues a new JWT token
func (r *Router) handleRefreshToken(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Token string `json:"token"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	// Parse existing token (allow expired tokens for refresh)
	parser := jwt.NewParser(jwt.WithExpirationRequired())
	token, err := parser.ParseWithClaims(body.Token, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(r.cfg.JWTSecret), nil
	})

	// Allow expired tokens (we're refreshing) but reject other errors
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
			return
		}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		http.Error(w, `{"error": "invalid token claims"}`, http.StatusUnauthorized)
		return
	}

	// Check if old session is still valid (not revoked)
	oldTokenHash := hashToken(body.Token)
	valid, err := r.store.IsSessionValid(req.Context(), oldTokenHash)
	if err != nil || !valid {
		http.Error(w, `{"error": "session revoked"}`, http.StatusUnauthorized)
		return
	}

	// Get fresh user data
	user, err := r.store.GetUserByID(req.Context(), claims.UserID)
	if err != nil {
		http.Error(w, `{"error": "user not found"}`, http.StatusUnauthorized)
		return
	}

	newToken, expiresAt, err := r.generateJWT(user)
	if err != nil {
		http.Error(w, `{"error": "failed to create session"}`, http.StatusInternalServerError)
		return
	}

	// Revoke old session and create new one
	_ = r.store.RevokeSession(req.Context(), oldTokenHash)
	newTokenHash := hashToken(newToken)
	_ = r.store.CreateSession(req.Context(), user.ID, newTokenHash, expiresAt)

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      newToken,
		"expires_at": expiresAt.Format(time.RFC3339),
		"user":       user,
	})
}

// handleLogout revokes the current session
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	authHeader := req.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 {
		tokenHash := hashToken(parts[1])
		_ = r.store.RevokeSession(req.Context(), tokenHash)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleGetMe returns the current user's data
func (r *Router) handleGetMe(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	if authUser == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	user, err := r.store.GetUserByID(req.Context(), authUser.ID)
	if err != nil {
		http.Error(w, `{"error": "user not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// handleUpdateProfile updates the current user's profile fields
func (r *Router) handleUpdateProfile(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	if authUser == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	var body struct {
		Name     *string `json:"name"`
		Village  *string `json:"village"`
		District *string `json:"district"`
		Language *string `json:"language"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if body.Name == nil && body.Village == nil && body.District == nil && body.Language == nil {
		http.Error(w, `{"error": "no valid fields to update"}`, http.StatusBadRequest)
		return
	}

	if err := r.store.UpdateUserProfile(req.Context(), authUser.ID, body.Name, body.Village, body.District, body.Language); err != nil {
		r.logger.Printf("auth: failed to update profile for %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "failed to update profile"}`, http.StatusInternalServerError)
		return
	}

	user, err := r.store.GetUserByID(req.Context(), authUser.ID)
	if err != nil {
		http.Error(w, `{"error": "user not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// handleCompleteOnboarding persists the profile collected by the
// onboarding flow and marks the user onboarded.
func (r *Router) handleCompleteOnboarding(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	if authUser == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	var body struct {
		Name         string `json:"name"`
		Village      string `json:"village"`
		District     string `json:"district"`
		Role         string `json:"role"`
		Language     string `json:"language"`
		AadhaarLast4 string `json:"aadhaar_last4"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if body.Name == "" {
		http.Error(w, `{"error": "name is required"}`, http.StatusBadRequest)
		return
	}
	if body.Role != "seller" && body.Role != "buyer" {
		http.Error(w, `{"error": "role must be 'seller' or 'buyer'"}`, http.StatusBadRequest)
		return
	}
	if body.Language == "" {
		body.Language = "en"
	}

	profile := store.Profile{
		Name:         body.Name,
		Village:      body.Village,
		District:     body.District,
		Role:         body.Role,
		Language:     body.Language,
		AadhaarLast4: body.AadhaarLast4,
	}

	if err := r.store.CompleteOnboarding(req.Context(), authUser.ID, profile); err != nil {
		r.logger.Printf("auth: failed to complete onboarding for %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "failed to complete onboarding"}`, http.StatusInternalServerError)
		return
	}

	user, _ := r.store.GetUserByID(req.Context(), authUser.ID)

	r.logger.Printf("auth: onboarding complete for user %s (%s)", authUser.ID, body.Role)

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
