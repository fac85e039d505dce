package usecase

import (
	"errors"

	"github.com/google/uuid"

	"github.com/stone-app/backend/internal/domain"
)

var (
	ErrStoneNotFound = errors.New("stone not found")
	ErrStoneName     = errors.New("stone name is required")
)

type StoneUsecase struct {
	stoneRepo domain.StoneRepository
}

func NewStoneUsecase(stoneRepo domain.StoneRepository) *StoneUsecase {
	return &StoneUsecase{stoneRepo: stoneRepo}
}

type StoneListResult struct {
	Stones []*domain.Stone `json:"stones"`
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Limit  int             `json:"limit"`
}

func (u *StoneUsecase) Create(accountID uuid.UUID, name, note string, lat, lng *float64, photoKey string) (*domain.Stone, error) {
	if name == "" {
		return nil, ErrStoneName
	}

	stone := &domain.Stone{
		AccountID: accountID,
		Name:      name,
		Note:      note,
		Latitude:  lat,
		Longitude: lng,
		PhotoKey:  photoKey,
	}
	if err := u.stoneRepo.Create(stone); err != nil {
		return nil, err
	}
	return stone, nil
}

func (u *StoneUsecase) Get(id uuid.UUID, accountID uuid.UUID) (*domain.Stone, error) {
	stone, err := u.stoneRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if stone == nil || stone.AccountID != accountID {
		return nil, ErrStoneNotFound
	}
	return stone, nil
}

func (u *StoneUsecase) List(accountID uuid.UUID, limit, offset int) (*StoneListResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	stones, total, err := u.stoneRepo.ListByAccount(accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &StoneListResult{
		Stones: stones,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	}, nil
}

func (u *StoneUsecase) Update(id uuid.UUID, accountID uuid.UUID, name, note string, lat, lng *float64, photoKey string) (*domain.Stone, error) {
	stone, err := u.Get(id, accountID)
	if err != nil {
		return nil, err
	}

	if name != "" {
		stone.Name = name
	}
	stone.Note = note
	if lat != nil {
		stone.Latitude = lat
	}
	if lng != nil {
		stone.Longitude = lng
	}
	if photoKey != "" {
		stone.PhotoKey = photoKey
	}

	if err := u.stoneRepo.Update(stone); err != nil {
		return nil, err
	}
	return stone, nil
}

func (u *StoneUsecase) Delete(id uuid.UUID, accountID uuid.UUID) error {
	stone, err := u.Get(id, accountID)
	if err != nil {
		return err
	}
	return u.stoneRepo.Delete(stone.ID, accountID)
}
