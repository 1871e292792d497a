// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "github.com/vestibule/vestibule/internal/model"

// RegisterRequest represents the request body for POST /api/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the request body for POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse is returned by POST /api/register.
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  int64  `json:"userId,omitempty"`
}

// LoginResponse is returned by POST /api/login.
type LoginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// ProfileResponse is returned by GET /api/profile.
type ProfileResponse struct {
	Message  string         `json:"message"`
	UserData model.Identity `json:"user_data"`
}

// MessageResponse carries a bare message, used for routing errors.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of a 500 response.
// Error is only populated in development.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
