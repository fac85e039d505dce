package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stone-app/backend/internal/domain"
)

const uniqueViolationCode = "23505"

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, username, email, password_hash, auth_provider, COALESCE(apple_subject_id, ''), COALESCE(google_subject_id, ''), created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	account := &domain.Account{}
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.AuthProvider,
		&account.AppleSubjectID,
		&account.GoogleSubjectID,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// mapUniqueViolation converts a 23505 into the duplicate sentinel matching
// the violated constraint, so callers can distinguish a username collision
// from a lost provisioning race.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}
	switch pgErr.ConstraintName {
	case "accounts_username_key":
		return domain.ErrDuplicateUsername
	case "accounts_email_key":
		return domain.ErrDuplicateEmail
	case "accounts_apple_subject_id_key", "accounts_google_subject_id_key":
		return domain.ErrDuplicateSubject
	}
	return err
}

func (r *AccountRepository) Create(account *domain.Account) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO accounts (id, username, email, password_hash, auth_provider, apple_subject_id, google_subject_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)
	`

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := r.db.Exec(ctx, query,
		account.ID,
		account.Username,
		account.Email,
		account.PasswordHash,
		account.AuthProvider,
		account.AppleSubjectID,
		account.GoogleSubjectID,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (r *AccountRepository) GetByID(id uuid.UUID) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(email string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.db.QueryRow(ctx, query, email))
}

func (r *AccountRepository) GetByUsername(username string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccount(r.db.QueryRow(ctx, query, username))
}

func (r *AccountRepository) GetBySubject(provider domain.AuthProvider, subjectID string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var query string
	switch provider {
	case domain.ProviderApple:
		query = `SELECT ` + accountColumns + ` FROM accounts WHERE apple_subject_id = $1`
	case domain.ProviderGoogle:
		query = `SELECT ` + accountColumns + ` FROM accounts WHERE google_subject_id = $1`
	default:
		return nil, nil
	}
	return scanAccount(r.db.QueryRow(ctx, query, subjectID))
}
