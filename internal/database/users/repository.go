// Package users provides credential-record database operations.
//
// # Usage
//
//	repo := users.NewRepository(db, "users")
//	user, err := repo.FindFirst(ctx, preds)
package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"gorm.io/gorm"

	"github.com/mrlokans/gatekeeper/internal/auth"
	"github.com/mrlokans/gatekeeper/internal/entities"
)

// fieldPattern restricts predicate field names to plain column
// identifiers; predicate fields end up interpolated into the where clause.
var fieldPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var (
	ErrInvalidField = errors.New("invalid predicate field name")
	ErrUserNotFound = errors.New("user not found")
)

// Repository resolves credential records from one table. It implements
// the guard's CredentialStore interface; one repository serves one guard.
type Repository struct {
	db    *gorm.DB
	table string
}

// NewRepository creates a repository over the given table.
func NewRepository(db *gorm.DB, table string) *Repository {
	if table == "" {
		table = "users"
	}
	return &Repository{db: db, table: table}
}

// FindFirst returns the first record matching every predicate, ANDed in
// order. Returns (nil, nil) when nothing matches.
func (r *Repository) FindFirst(ctx context.Context, preds []auth.Credential) (*entities.User, error) {
	tx := r.db.WithContext(ctx).Table(r.table)
	for _, pred := range preds {
		if !fieldPattern.MatchString(pred.Field) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, pred.Field)
		}
		tx = tx.Where(pred.Field+" = ?", pred.Value)
	}

	var user entities.User
	err := tx.First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// SaveRememberToken persists the record's remember-token column.
func (r *Repository) SaveRememberToken(ctx context.Context, user *entities.User, token string) error {
	result := r.db.WithContext(ctx).Table(r.table).
		Where("id = ?", user.ID).
		Update("remember_token", token)
	if result.Error != nil {
		return fmt.Errorf("failed to save remember token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateUser inserts a credential record with an already-hashed password.
func (r *Repository) CreateUser(ctx context.Context, email, username, passwordHash string, activated bool) (*entities.User, error) {
	user := &entities.User{
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Activated:    activated,
	}

	if err := r.db.WithContext(ctx).Table(r.table).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}
