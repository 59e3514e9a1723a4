package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"reservas-backend/internal/models"
	"reservas-backend/internal/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserAlreadyExists  = &ActionError{Kind: ErrConflict, Message: "a user with this email or DNI already exists"}
	ErrInvalidCredentials = &ActionError{Kind: ErrPermission, Message: "invalid credentials"}
)

type AuthService struct {
	*env
	secret []byte
	ttl    time.Duration
	tokens *TokenService
}

type RegisterInput struct {
	DNI      string
	Name     string
	Email    string
	Password string
}

// Register creates a customer account. The very first account becomes admin.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	dni := strings.TrimSpace(in.DNI)

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR dni = ?", email, dni).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var userCount int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&userCount).Error; err != nil {
		return nil, err
	}

	role := models.RoleCustomer
	if userCount == 0 {
		role = models.RoleAdmin
	}

	user := &models.User{
		DNI:      dni,
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Password: string(hashedPassword),
		Role:     role,
		Enabled:  true,
		Active:   true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND active = ?", strings.ToLower(strings.TrimSpace(email)), true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(s.secret, user.ID, user.Role, s.ttl)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// Logout revokes the token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := utils.ValidateToken(s.secret, token)
	if err != nil {
		return err
	}
	ttl := s.ttl
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ttl = time.Until(exp.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return s.tokens.AddToDenylist(ctx, token, ttl)
}

// Authenticate validates a bearer token and loads its active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	revoked, err := s.tokens.IsDenylisted(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, permissionError("token has been revoked")
	}

	claims, err := utils.ValidateToken(s.secret, token)
	if err != nil {
		return nil, permissionError("invalid or expired token")
	}
	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return nil, permissionError("invalid user ID in token")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, uint(userIDFloat)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserNotFound
	}
	return &user, nil
}
