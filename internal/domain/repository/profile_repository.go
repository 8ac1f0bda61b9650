package repository

import (
	"context"
	"errors"

	"github.com/turnlabs/authgate/internal/domain/entity"
)

var (
	// ErrNotFound is returned when no profile matches the lookup key.
	ErrNotFound = errors.New("profile not found")
	// ErrDuplicateEmail is returned when a create violates the unique email constraint.
	ErrDuplicateEmail = errors.New("email already registered")
)

// ProfileRepository defines the interface for profile persistence.
// Email uniqueness is enforced atomically by the store itself; callers
// perform no locking around Create.
type ProfileRepository interface {
	Create(ctx context.Context, p *entity.Profile) error
	GetByEmail(ctx context.Context, email string) (*entity.Profile, error)
}
