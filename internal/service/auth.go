// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vestibule/vestibule/internal/auth"
	"github.com/vestibule/vestibule/internal/events"
	"github.com/vestibule/vestibule/internal/metrics"
	"github.com/vestibule/vestibule/internal/model"
	"github.com/vestibule/vestibule/internal/repository"
)

// Messages returned to clients.
const (
	MsgRegisterFieldsRequired = "Username, email, and password are required."
	MsgInvalidEmail           = "Invalid email format."
	MsgUsernameTooShort       = "Username must be at least 3 characters long."
	MsgUsernameTooLong        = "Username cannot exceed 50 characters."
	MsgUsernameCharset        = "Username can only contain letters, numbers, and underscores."
	MsgPasswordTooShort       = "Password must be at least 8 characters long."
	MsgEmailInUse             = "Email already in use."
	MsgUsernameTaken          = "Username already taken."
	MsgRegistered             = "User registered successfully."
	MsgRegistrationFailed     = "Registration failed. Please try again."

	MsgLoginFieldsRequired = "Email and password are required."
	MsgInvalidCredentials  = "Invalid email or password."
	MsgLoginSuccessful     = "Login successful."
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 8
	maxDomainLen   = 253
)

var (
	usernamePattern    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	domainLabelPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	// VerifyDecoy spends one verification when there is no stored hash.
	VerifyDecoy(password string)
}

// TokenIssuer issues and checks bearer tokens.
type TokenIssuer interface {
	Issue(identity model.Identity) (string, *auth.Claims, error)
	VerifyHeader(header string) (*auth.Claims, error)
}

// EventSink receives an audit record for each decided registration or login.
// Emit must not block.
type EventSink interface {
	Emit(event events.AuthEvent)
}

// RegisterResult is the outcome of a registration attempt that reached a decision.
type RegisterResult struct {
	Success bool
	Message string
	UserID  int64
}

// LoginResult is the outcome of a login attempt that reached a decision.
type LoginResult struct {
	Success bool
	Message string
	Token   string
}

// AuthService handles registration, login and token validation.
// It holds no per-request state and is safe for concurrent use.
type AuthService struct {
	users   repository.UserStore
	hasher  PasswordHasher
	tokens  TokenIssuer
	metrics metrics.Recorder
	events  EventSink
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithEventSink publishes auth events to sink.
func WithEventSink(sink EventSink) Option {
	return func(s *AuthService) {
		if sink != nil {
			s.events = sink
		}
	}
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users repository.UserStore,
	hasher PasswordHasher,
	tokens TokenIssuer,
	recorder metrics.Recorder,
	logger *slog.Logger,
	opts ...Option,
) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &AuthService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		metrics: recorder,
		events:  events.Discard{},
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) emit(eventType, outcome string, userID int64, email string) {
	s.events.Emit(events.NewAuthEvent(eventType, outcome, userID, email, s.now()))
}

func registerFailure(msg string) *RegisterResult {
	return &RegisterResult{Success: false, Message: msg}
}

// validateRegistration returns the first failing rule's message, or "".
func validateRegistration(username, email, password string) string {
	if username == "" || email == "" || password == "" {
		return MsgRegisterFieldsRequired
	}
	if !validEmail(email) {
		return MsgInvalidEmail
	}
	if len(username) < minUsernameLen {
		return MsgUsernameTooShort
	}
	if len(username) > maxUsernameLen {
		return MsgUsernameTooLong
	}
	if !usernamePattern.MatchString(username) {
		return MsgUsernameCharset
	}
	if len(password) < minPasswordLen {
		return MsgPasswordTooShort
	}
	return ""
}

// validEmail accepts a bare addr-spec only: no display name, no angle brackets.
// On top of RFC 5322 parsing the local part must be ASCII and the domain a
// dotted host name.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return false
	}

	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return false
	}
	return asciiOnly(email[:at]) && validDomain(email[at+1:])
}

func asciiOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// validDomain requires at least two LDH labels, none starting or ending with '-'.
func validDomain(domain string) bool {
	if len(domain) > maxDomainLen {
		return false
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if !domainLabelPattern.MatchString(label) {
			return false
		}
	}
	return true
}

// Register validates the input, checks uniqueness and creates the user.
// A non-nil error means the store or hasher failed; every rejection the
// caller should show to the user comes back as a RegisterResult.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*RegisterResult, error) {
	if msg := validateRegistration(username, email, password); msg != "" {
		s.metrics.IncRegistration(metrics.RegistrationInvalid)
		return registerFailure(msg), nil
	}

	if taken, err := s.exists(ctx, s.users.FindUserByEmail, email); err != nil {
		s.metrics.IncRegistration(metrics.RegistrationError)
		return nil, fmt.Errorf("check email: %w", err)
	} else if taken {
		s.metrics.IncRegistration(metrics.RegistrationConflict)
		s.emit(events.TypeRegister, metrics.RegistrationConflict, 0, email)
		return registerFailure(MsgEmailInUse), nil
	}

	if taken, err := s.exists(ctx, s.users.FindUserByUsername, username); err != nil {
		s.metrics.IncRegistration(metrics.RegistrationError)
		return nil, fmt.Errorf("check username: %w", err)
	} else if taken {
		s.metrics.IncRegistration(metrics.RegistrationConflict)
		s.emit(events.TypeRegister, metrics.RegistrationConflict, 0, email)
		return registerFailure(MsgUsernameTaken), nil
	}

	start := time.Now()
	hash, err := s.hasher.Hash(password)
	s.metrics.ObservePasswordHash(time.Since(start))
	if err != nil {
		s.metrics.IncRegistration(metrics.RegistrationError)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			s.metrics.IncRegistration(metrics.RegistrationConflict)
			s.emit(events.TypeRegister, metrics.RegistrationConflict, 0, email)
			return registerFailure(MsgEmailInUse), nil
		case errors.Is(err, repository.ErrUsernameExists):
			s.metrics.IncRegistration(metrics.RegistrationConflict)
			s.emit(events.TypeRegister, metrics.RegistrationConflict, 0, email)
			return registerFailure(MsgUsernameTaken), nil
		}

		s.metrics.IncRegistration(metrics.RegistrationError)
		s.logger.Error("failed to insert user", "error", err)
		return registerFailure(MsgRegistrationFailed), nil
	}

	s.metrics.IncRegistration(metrics.RegistrationSuccess)
	s.emit(events.TypeRegister, metrics.RegistrationSuccess, user.ID, email)
	s.logger.Info("user registered", "user_id", user.ID)

	return &RegisterResult{Success: true, Message: MsgRegistered, UserID: user.ID}, nil
}

func (s *AuthService) exists(
	ctx context.Context,
	find func(context.Context, string) (*model.User, error),
	value string,
) (bool, error) {
	_, err := find(ctx, value)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	return false, err
}

func loginFailure(msg string) *LoginResult {
	return &LoginResult{Success: false, Message: msg}
}

// Login checks the credentials and issues a token.
// Unknown email and wrong password produce the same result and cost.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		s.metrics.IncLogin(metrics.LoginInvalid)
		return loginFailure(MsgLoginFieldsRequired), nil
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.hasher.VerifyDecoy(password)
		s.metrics.IncLogin(metrics.LoginInvalid)
		s.emit(events.TypeLogin, metrics.LoginInvalid, 0, email)
		return loginFailure(MsgInvalidCredentials), nil
	}
	if err != nil {
		s.metrics.IncLogin(metrics.LoginError)
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.metrics.IncLogin(metrics.LoginError)
		return nil, fmt.Errorf("verify password for user %d: %w", user.ID, err)
	}
	if !ok {
		s.metrics.IncLogin(metrics.LoginInvalid)
		s.emit(events.TypeLogin, metrics.LoginInvalid, 0, email)
		return loginFailure(MsgInvalidCredentials), nil
	}

	token, _, err := s.tokens.Issue(user.Identity())
	if err != nil {
		s.metrics.IncLogin(metrics.LoginError)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.IncLogin(metrics.LoginSuccess)
	s.emit(events.TypeLogin, metrics.LoginSuccess, user.ID, email)
	s.logger.Info("user logged in", "user_id", user.ID)

	return &LoginResult{Success: true, Message: MsgLoginSuccessful, Token: token}, nil
}

// ValidateToken verifies the token in an Authorization header value.
// Errors are the auth.ErrToken* sentinels.
func (s *AuthService) ValidateToken(_ context.Context, authorization string) (*auth.Claims, error) {
	claims, err := s.tokens.VerifyHeader(authorization)
	if err != nil {
		s.metrics.IncTokenValidation(metrics.TokenInvalid)
		s.logger.Debug("token rejected", "reason", err)
		return nil, err
	}

	s.metrics.IncTokenValidation(metrics.TokenValid)
	return claims, nil
}
