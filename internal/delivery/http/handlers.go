package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stone-app/backend/internal/domain"
	"github.com/stone-app/backend/internal/metrics"
	"github.com/stone-app/backend/internal/middleware"
	"github.com/stone-app/backend/internal/usecase"
)

type Handler struct {
	authUsecase   *usecase.AuthUsecase
	stoneUsecase  *usecase.StoneUsecase
	uploadUsecase *usecase.UploadUsecase
	metrics       *metrics.Metrics
}

func NewHandler(auth *usecase.AuthUsecase, stones *usecase.StoneUsecase, uploads *usecase.UploadUsecase, m *metrics.Metrics) *Handler {
	return &Handler{
		authUsecase:   auth,
		stoneUsecase:  stones,
		uploadUsecase: uploads,
		metrics:       m,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// Auth handlers

type providerSignInRequest struct {
	IdentityToken string `json:"identity_token"`
	Nonce         string `json:"nonce"`
	Email         string `json:"email"`
}

type authResponse struct {
	Account interface{} `json:"account"`
	Tokens  interface{} `json:"tokens"`
}

func (h *Handler) AppleSignIn(w http.ResponseWriter, r *http.Request) {
	h.providerSignIn(w, r, domain.ProviderApple)
}

func (h *Handler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	h.providerSignIn(w, r, domain.ProviderGoogle)
}

func (h *Handler) providerSignIn(w http.ResponseWriter, r *http.Request, provider domain.AuthProvider) {
	var req providerSignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.IdentityToken == "" {
		writeError(w, http.StatusBadRequest, "Identity token is required")
		return
	}

	account, tokens, err := h.authUsecase.SignInWithProvider(provider, req.IdentityToken, req.Nonce, req.Email)
	if errors.Is(err, usecase.ErrInvalidAssertion) || errors.Is(err, usecase.ErrNonceMismatch) {
		h.metrics.SignIns.WithLabelValues(string(provider), "rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid identity token")
		return
	}
	if err != nil {
		h.metrics.SignIns.WithLabelValues(string(provider), "error").Inc()
		writeError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	h.metrics.SignIns.WithLabelValues(string(provider), "success").Inc()
	writeJSON(w, http.StatusOK, authResponse{Account: account, Tokens: tokens})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username, email and password are required")
		return
	}

	account, tokens, err := h.authUsecase.Register(req.Username, req.Email, req.Password)
	if err == usecase.ErrEmailExists {
		writeError(w, http.StatusConflict, "Email already exists")
		return
	}
	if err == usecase.ErrUsernameTaken {
		writeError(w, http.StatusConflict, "Username already taken")
		return
	}
	if err == usecase.ErrInvalidUsername {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{Account: account, Tokens: tokens})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, tokens, err := h.authUsecase.Login(req.Email, req.Password)
	if err == usecase.ErrInvalidCredentials {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to login")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Account: account, Tokens: tokens})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tokens, err := h.authUsecase.Refresh(req.RefreshToken)
	// NotFound, Revoked and Expired deliberately present identically so a
	// stolen token cannot be probed for its state.
	if errors.Is(err, usecase.ErrCredentialNotFound) ||
		errors.Is(err, usecase.ErrCredentialRevoked) ||
		errors.Is(err, usecase.ErrCredentialExpired) {
		h.metrics.Refreshes.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}
	if err != nil {
		h.metrics.Refreshes.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "Failed to refresh session")
		return
	}

	h.metrics.Refreshes.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.authUsecase.Logout(req.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) GetCurrentAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	account, err := h.authUsecase.GetAccountByID(accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get account")
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// Stone handlers

type stoneRequest struct {
	Name      string   `json:"name"`
	Note      string   `json:"note"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	PhotoKey  string   `json:"photo_key"`
}

func (h *Handler) CreateStone(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req stoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stone, err := h.stoneUsecase.Create(accountID, req.Name, req.Note, req.Latitude, req.Longitude, req.PhotoKey)
	if err == usecase.ErrStoneName {
		writeError(w, http.StatusBadRequest, "Stone name is required")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create stone")
		return
	}

	writeJSON(w, http.StatusCreated, stone)
}

func (h *Handler) ListStones(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	result, err := h.stoneUsecase.List(accountID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list stones")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetStone(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid stone id")
		return
	}

	stone, err := h.stoneUsecase.Get(id, accountID)
	if err == usecase.ErrStoneNotFound {
		writeError(w, http.StatusNotFound, "Stone not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get stone")
		return
	}

	writeJSON(w, http.StatusOK, stone)
}

func (h *Handler) UpdateStone(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid stone id")
		return
	}

	var req stoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stone, err := h.stoneUsecase.Update(id, accountID, req.Name, req.Note, req.Latitude, req.Longitude, req.PhotoKey)
	if err == usecase.ErrStoneNotFound {
		writeError(w, http.StatusNotFound, "Stone not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update stone")
		return
	}

	writeJSON(w, http.StatusOK, stone)
}

func (h *Handler) DeleteStone(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid stone id")
		return
	}

	err = h.stoneUsecase.Delete(id, accountID)
	if err == usecase.ErrStoneNotFound {
		writeError(w, http.StatusNotFound, "Stone not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete stone")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Upload handlers

func (h *Handler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ticket, err := h.uploadUsecase.PresignUpload(r.Context(), accountID)
	if err == usecase.ErrUploadsDisabled {
		writeError(w, http.StatusServiceUnavailable, "Photo uploads are not configured")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to prepare upload")
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) PresignDownload(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetAccountID(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "Key is required")
		return
	}

	url, err := h.uploadUsecase.PresignDownload(r.Context(), key)
	if err == usecase.ErrUploadsDisabled {
		writeError(w, http.StatusServiceUnavailable, "Photo uploads are not configured")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to prepare download")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
