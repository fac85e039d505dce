package domain

import (
	"time"

	"github.com/google/uuid"
)

type Stone struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	Note      string    `json:"note,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	PhotoKey  string    `json:"photo_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StoneRepository interface {
	Create(stone *Stone) error
	GetByID(id uuid.UUID) (*Stone, error)
	ListByAccount(accountID uuid.UUID, limit, offset int) ([]*Stone, int, error)
	Update(stone *Stone) error
	Delete(id uuid.UUID, accountID uuid.UUID) error
}
