package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnlabs/authgate/internal/domain/entity"
	"github.com/turnlabs/authgate/internal/domain/repository"
)

const uniqueViolation = "23505"

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Create inserts the profile as a single atomic write; id and timestamps
// are generated by the database.
func (r *ProfileRepository) Create(ctx context.Context, p *entity.Profile) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO profiles (name, company_name, last_name, email, phone_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, p.Name, p.CompanyName, p.LastName, p.Email, p.PhoneNumber)

	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	p := &entity.Profile{}

	row := r.pool.QueryRow(ctx, `
		SELECT id, name, company_name, last_name, email, phone_number, created_at, updated_at
		FROM profiles
		WHERE email = $1
	`, email)

	if err := row.Scan(&p.ID, &p.Name, &p.CompanyName, &p.LastName, &p.Email,
		&p.PhoneNumber, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return p, nil
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)
