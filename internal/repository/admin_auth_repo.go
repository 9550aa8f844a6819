package repository

import "strings"

type Admin struct {
	ID           int
	Email        string
	PasswordHash string
}

type AdminAuthRepository interface {
	GetByEmail(email string) (*Admin, error)
}

// staticAdminAuthRepository serves the single operator account configured through
// ADMIN_EMAIL / ADMIN_PASSWORD_HASH.
type staticAdminAuthRepository struct {
	admin *Admin
}

func NewStaticAdminAuthRepository(email, passwordHash string) AdminAuthRepository {
	if email == "" || passwordHash == "" {
		return &staticAdminAuthRepository{}
	}
	return &staticAdminAuthRepository{admin: &Admin{ID: 1, Email: email, PasswordHash: passwordHash}}
}

// GetByEmail returns nil, nil when no admin matches, as the login flow treats that as bad credentials.
func (r *staticAdminAuthRepository) GetByEmail(email string) (*Admin, error) {
	if r.admin == nil || !strings.EqualFold(r.admin.Email, strings.TrimSpace(email)) {
		return nil, nil
	}
	admin := *r.admin
	return &admin, nil
}
