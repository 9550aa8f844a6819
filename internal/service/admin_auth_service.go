package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"parkingreserve/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthNotConfigured  = errors.New("admin authentication is not configured")
)

type AdminAuthService interface {
	Login(email, password string) (string, error)
}

type adminAuthService struct {
	repo     repository.AdminAuthRepository
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewAdminAuthService(repo repository.AdminAuthRepository, jwtSecret string, tokenTTL time.Duration) AdminAuthService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &adminAuthService{
		repo:     repo,
		secret:   []byte(jwtSecret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func (s *adminAuthService) Login(email, password string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrAuthNotConfigured
	}
	admin, err := s.repo.GetByEmail(email)
	if err != nil {
		return "", err
	}
	if admin == nil {
		return "", ErrInvalidCredentials
	}
	if !checkPasswordHash(password, admin.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	claims := jwt.MapClaims{
		"admin_id": admin.ID,
		"email":    admin.Email,
		"exp":      s.now().Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// HashPassword produces the bcrypt hash expected in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
