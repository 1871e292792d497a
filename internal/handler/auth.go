package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vestibule/vestibule/internal/auth"
	"github.com/vestibule/vestibule/internal/handler/dto"
	"github.com/vestibule/vestibule/internal/service"
)

// Client-facing messages owned by the HTTP layer.
const (
	MsgInvalidBody   = "Invalid request body."
	MsgAccessGranted = "Access granted."
)

// AuthHandler handles registration, login and profile requests.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
	// exposeErrors echoes internal error text in 500 bodies (development only).
	exposeErrors bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger, exposeErrors bool) *AuthHandler {
	return &AuthHandler{
		svc:          svc,
		logger:       logger,
		exposeErrors: exposeErrors,
	}
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.RegisterResponse{Message: MsgInvalidBody})
		return
	}

	result, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !result.Success {
		status = http.StatusBadRequest
	}

	writeJSON(w, status, dto.RegisterResponse{
		Success: result.Success,
		Message: result.Message,
		UserID:  result.UserID,
	})
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnauthorized, dto.LoginResponse{Message: MsgInvalidBody})
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeInternalError(w, r, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnauthorized
	}

	writeJSON(w, status, dto.LoginResponse{
		Success: result.Success,
		Message: result.Message,
		Token:   result.Token,
	})
}

// Profile handles GET /api/profile. It must sit behind
// middleware.RequireToken, which rejects requests without valid claims.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		h.writeInternalError(w, r, errMissingClaims)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProfileResponse{
		Message:  MsgAccessGranted,
		UserData: claims.Data,
	})
}

// writeInternalError logs err and writes the generic 500 body.
func (h *AuthHandler) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)

	resp := dto.ErrorResponse{Success: false, Message: MsgInternalError}
	if h.exposeErrors {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}
