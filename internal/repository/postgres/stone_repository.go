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

type StoneRepository struct {
	db *pgxpool.Pool
}

func NewStoneRepository(db *pgxpool.Pool) *StoneRepository {
	return &StoneRepository{db: db}
}

const stoneColumns = `id, account_id, name, note, latitude, longitude, photo_key, created_at, updated_at`

func scanStone(row pgx.Row) (*domain.Stone, error) {
	stone := &domain.Stone{}
	err := row.Scan(
		&stone.ID,
		&stone.AccountID,
		&stone.Name,
		&stone.Note,
		&stone.Latitude,
		&stone.Longitude,
		&stone.PhotoKey,
		&stone.CreatedAt,
		&stone.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return stone, nil
}

func (r *StoneRepository) Create(stone *domain.Stone) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO stones (id, account_id, name, note, latitude, longitude, photo_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if stone.ID == uuid.Nil {
		stone.ID = uuid.New()
	}
	now := time.Now()
	stone.CreatedAt = now
	stone.UpdatedAt = now

	_, err := r.db.Exec(ctx, query,
		stone.ID,
		stone.AccountID,
		stone.Name,
		stone.Note,
		stone.Latitude,
		stone.Longitude,
		stone.PhotoKey,
		stone.CreatedAt,
		stone.UpdatedAt,
	)
	return err
}

func (r *StoneRepository) GetByID(id uuid.UUID) (*domain.Stone, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `SELECT ` + stoneColumns + ` FROM stones WHERE id = $1`
	return scanStone(r.db.QueryRow(ctx, query, id))
}

func (r *StoneRepository) ListByAccount(accountID uuid.UUID, limit, offset int) ([]*domain.Stone, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM stones WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + stoneColumns + ` FROM stones WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var stones []*domain.Stone
	for rows.Next() {
		stone := &domain.Stone{}
		if err := rows.Scan(
			&stone.ID,
			&stone.AccountID,
			&stone.Name,
			&stone.Note,
			&stone.Latitude,
			&stone.Longitude,
			&stone.PhotoKey,
			&stone.CreatedAt,
			&stone.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		stones = append(stones, stone)
	}

	return stones, total, nil
}

func (r *StoneRepository) Update(stone *domain.Stone) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		UPDATE stones SET name = $2, note = $3, latitude = $4, longitude = $5, photo_key = $6, updated_at = $7
		WHERE id = $1
	`

	stone.UpdatedAt = time.Now()
	_, err := r.db.Exec(ctx, query, stone.ID, stone.Name, stone.Note, stone.Latitude, stone.Longitude, stone.PhotoKey, stone.UpdatedAt)
	return err
}

func (r *StoneRepository) Delete(id uuid.UUID, accountID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `DELETE FROM stones WHERE id = $1 AND account_id = $2`
	_, err := r.db.Exec(ctx, query, id, accountID)
	return err
}
