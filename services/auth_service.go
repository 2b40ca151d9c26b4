package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"quiz-portal-go/database"
	"quiz-portal-go/logging"
	"quiz-portal-go/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	minPasswordLength = 6
	minUsernameLength = 3
	maxUsernameLength = 24
)

// UserAccountStore is the slice of user persistence the auth service needs
type UserAccountStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

// AllowlistChecker gates signups against the allowed-emails document
type AllowlistChecker interface {
	IsAllowed(ctx context.Context, email string) (bool, error)
}

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService handles signup, login, tokens, and password resets
type AuthService struct {
	users           UserAccountStore
	allowlist       AllowlistChecker
	jwtSecret       []byte
	tokenExpiry     time.Duration
	restrictSignups bool
	logger          *logging.Logger
}

// NewAuthService creates a new authentication service. When
// restrictSignups is true, registration is limited to emails on the
// allowlist document.
func NewAuthService(users UserAccountStore, allowlist AllowlistChecker, jwtSecret string, restrictSignups bool) *AuthService {
	return &AuthService{
		users:           users,
		allowlist:       allowlist,
		jwtSecret:       []byte(jwtSecret),
		tokenExpiry:     24 * 30 * 6 * time.Hour, // Token expires in 6 months
		restrictSignups: restrictSignups,
		logger:          logging.WithPrefix("Auth"),
	}
}

// Signup registers a new account and returns the signed-in response
func (a *AuthService) Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return nil, NewValidation("username must be between %d and %d characters", minUsernameLength, maxUsernameLength)
	}
	if !strings.Contains(email, "@") {
		return nil, NewValidation("a valid email address is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, NewValidation("password must be at least %d characters long", minPasswordLength)
	}

	if a.restrictSignups {
		allowed, err := a.allowlist.IsAllowed(ctx, email)
		if err != nil {
			return nil, backendError(err)
		}
		if !allowed {
			a.logger.Warnf("Signup rejected for %s: not on allowlist", email)
			return nil, NewValidation("this email is not registered for the event")
		}
	}

	if _, err := a.users.GetByEmail(ctx, email); err == nil {
		return nil, NewConflict(ConflictDuplicateEmail, "an account with this email already exists")
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, backendError(err)
	}
	if _, err := a.users.GetByUsername(ctx, username); err == nil {
		return nil, NewConflict(ConflictDuplicateUsername, "username %q is already taken", username)
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, backendError(err)
	}

	now := time.Now()
	user := &models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		Avatar:    req.Avatar,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.HashPassword(req.Password); err != nil {
		return nil, errors.New("failed to hash password")
	}

	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, NewConflict(ConflictDuplicateUsername, "username or email is already taken")
		}
		return nil, backendError(err)
	}

	token, err := a.GenerateToken(user)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	a.logger.Infof("New account %s (%s)", username, user.ID)
	return &models.AuthResponse{User: user.ToSafeUser(), Token: token}, nil
}

// Login authenticates by email or username and returns a JWT token
func (a *AuthService) Login(ctx context.Context, identity, password string) (*models.AuthResponse, error) {
	identity = strings.TrimSpace(identity)

	var user *models.User
	var err error
	if strings.Contains(identity, "@") {
		user, err = a.users.GetByEmail(ctx, identity)
	} else {
		user, err = a.users.GetByUsername(ctx, identity)
	}
	if err != nil {
		return nil, errors.New("invalid credentials")
	}

	if !user.CheckPassword(password) {
		return nil, errors.New("invalid credentials")
	}

	token, err := a.GenerateToken(user)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	return &models.AuthResponse{
		User:  user.ToSafeUser(),
		Token: token,
	}, nil
}

// GenerateToken creates a new JWT token for the user
func (a *AuthService) GenerateToken(user *models.User) (string, error) {
	claims := JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "quiz-portal-go",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateToken validates a JWT token and returns the claims
func (a *AuthService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return a.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// GetUserFromToken validates token and returns the user
func (a *AuthService) GetUserFromToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, errors.New("user not found")
	}

	return user, nil
}

// GetUserByEmail returns a user by email address
func (a *AuthService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return a.users.GetByEmail(ctx, email)
}

// RequestPasswordReset generates a password reset token for the user
func (a *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		// User not found - return empty token but no error (security)
		return "", nil
	}

	if err := user.GenerateResetToken(); err != nil {
		return "", errors.New("failed to generate reset token")
	}

	if err := a.users.Update(ctx, user); err != nil {
		return "", errors.New("failed to save reset token")
	}

	return user.ResetToken, nil
}

// ResetPassword resets the user's password using a valid reset token
func (a *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return NewValidation("password must be at least %d characters long", minPasswordLength)
	}

	user, err := a.users.GetByResetToken(ctx, token)
	if err != nil {
		return errors.New("invalid or expired reset token")
	}

	if !user.IsResetTokenValid(token) {
		return errors.New("invalid or expired reset token")
	}

	if err := user.HashPassword(newPassword); err != nil {
		return errors.New("failed to hash password")
	}

	user.ClearResetToken()

	if err := a.users.Update(ctx, user); err != nil {
		return errors.New("failed to update password")
	}

	return nil
}
