// Package auth issues and verifies bearer tokens and answers role checks.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/matrix-ai/backend/internal/storage/models"
	"github.com/matrix-ai/backend/internal/storage/sqlite"
	"github.com/matrix-ai/backend/pkg/apperr"
	"github.com/matrix-ai/backend/pkg/logger"
)

type Service struct {
	db         *sqlite.Client
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
}

func NewService(db *sqlite.Client, secret string, tokenTTL time.Duration, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		db:         db,
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
	}
}

func (s *Service) Register(username, email, password, firstName, lastName string) (*models.User, error) {
	if len(username) < 3 || len(username) > 50 {
		return nil, apperr.New(apperr.KindValidation, "username must be 3-50 characters")
	}
	if len(password) < 6 {
		return nil, apperr.New(apperr.KindValidation, "password must be at least 6 characters")
	}
	if email == "" {
		return nil, apperr.New(apperr.KindValidation, "email is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		Role:         models.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.CreateUser(user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login verifies the credentials and returns a signed token with the user.
func (s *Service) Login(username, password string) (string, *models.User, error) {
	user, err := s.db.GetUserByUsername(username)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return "", nil, apperr.New(apperr.KindUnauthenticated, "invalid credentials")
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperr.New(apperr.KindUnauthenticated, "invalid credentials")
	}

	if !user.IsActive {
		return "", nil, apperr.New(apperr.KindForbidden, "account is deactivated")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"role":     user.Role,
		"exp":      now.Add(s.tokenTTL).Unix(),
		"iat":      now.Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}

	if err := s.db.UpdateLastLogin(user.ID, now); err != nil {
		logger.Warn("Failed to update last login", zap.Error(err))
	}
	user.LastLogin = &now

	logger.Info("User logged in", zap.String("username", user.Username))
	return signed, user, nil
}

// Authenticate resolves a bearer token into the account it was issued for.
// Returns Unauthenticated for missing/expired/malformed tokens and Forbidden
// when the account has been deactivated.
func (s *Service) Authenticate(tokenString string) (*models.User, error) {
	if tokenString == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, "authentication required")
	}

	userID, err := s.verifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.db.GetUserByID(userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.New(apperr.KindUnauthenticated, "user not found or token invalid")
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, apperr.New(apperr.KindForbidden, "account is deactivated")
	}

	return user, nil
}

func (s *Service) verifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperr.New(apperr.KindUnauthenticated, "token has expired")
		}
		return "", apperr.Wrap(apperr.KindUnauthenticated, "invalid token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", apperr.New(apperr.KindUnauthenticated, "invalid token")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", apperr.New(apperr.KindUnauthenticated, "invalid token")
	}

	return sub, nil
}

// Authorize reports whether the principal holds one of the required roles.
func Authorize(user *models.User, requiredRoles ...string) bool {
	if user == nil {
		return false
	}
	for _, role := range requiredRoles {
		if user.Role == role {
			return true
		}
	}
	return false
}

// AuthorizeOwnerOrAdmin allows admins and the resource's recorded owner,
// regardless of role.
func AuthorizeOwnerOrAdmin(user *models.User, ownerID string) bool {
	if user == nil {
		return false
	}
	if user.Role == models.RoleAdmin {
		return true
	}
	return ownerID != "" && user.ID == ownerID
}
