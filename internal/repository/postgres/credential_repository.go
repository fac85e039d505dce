package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stone-app/backend/internal/domain"
)

type RefreshCredentialRepository struct {
	db *pgxpool.Pool
}

func NewRefreshCredentialRepository(db *pgxpool.Pool) *RefreshCredentialRepository {
	return &RefreshCredentialRepository{db: db}
}

func (r *RefreshCredentialRepository) GetByTokenHash(tokenHash string) (*domain.RefreshCredential, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		SELECT id, account_id, token_hash, expires_at, is_revoked, created_at
		FROM refresh_credentials WHERE token_hash = $1
	`

	cred := &domain.RefreshCredential{}
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&cred.ID,
		&cred.AccountID,
		&cred.TokenHash,
		&cred.ExpiresAt,
		&cred.IsRevoked,
		&cred.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// Replace revokes every active credential for the account and inserts the
// new one in a single transaction.
func (r *RefreshCredentialRepository) Replace(cred *domain.RefreshCredential) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := revokeActiveAndInsert(ctx, tx, cred); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RotateFrom is Replace guarded by the state of the credential being
// rotated: revoking currentID is a compare-and-swap on is_revoked, and a
// request that finds it already revoked has lost the race and gets
// domain.ErrCredentialSuperseded.
func (r *RefreshCredentialRepository) RotateFrom(currentID uuid.UUID, cred *domain.RefreshCredential) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE refresh_credentials SET is_revoked = TRUE WHERE id = $1 AND is_revoked = FALSE`,
		currentID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCredentialSuperseded
	}

	if err := revokeActiveAndInsert(ctx, tx, cred); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func revokeActiveAndInsert(ctx context.Context, tx pgx.Tx, cred *domain.RefreshCredential) error {
	_, err := tx.Exec(ctx,
		`UPDATE refresh_credentials SET is_revoked = TRUE WHERE account_id = $1 AND is_revoked = FALSE`,
		cred.AccountID,
	)
	if err != nil {
		return err
	}

	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}
	cred.CreatedAt = time.Now()

	_, err = tx.Exec(ctx,
		`INSERT INTO refresh_credentials (id, account_id, token_hash, expires_at, is_revoked, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)`,
		cred.ID,
		cred.AccountID,
		cred.TokenHash,
		cred.ExpiresAt,
		cred.CreatedAt,
	)
	return err
}

func (r *RefreshCredentialRepository) RevokeByTokenHash(tokenHash string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx,
		`UPDATE refresh_credentials SET is_revoked = TRUE WHERE token_hash = $1`,
		tokenHash,
	)
	return err
}
