package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/uwazi254/uwazi-api/internal/models"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
)

type referenceRepository interface {
	ListCounties(ctx context.Context) ([]models.County, error)
	ListConstituencies(ctx context.Context, countyID string) ([]models.Constituency, error)
	ListWards(ctx context.Context, constituencyID string) ([]models.Ward, error)
}

// ReferenceService serves the county, constituency and ward hierarchy.
type ReferenceService struct {
	repo   referenceRepository
	logger *zap.Logger
}

// NewReferenceService creates an instance of ReferenceService.
func NewReferenceService(repo referenceRepository, logger *zap.Logger) *ReferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceService{repo: repo, logger: logger}
}

// Counties returns every county ordered by name.
func (s *ReferenceService) Counties(ctx context.Context) ([]models.County, error) {
	counties, err := s.repo.ListCounties(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list counties")
	}
	if counties == nil {
		counties = []models.County{}
	}
	return counties, nil
}

// Constituencies returns constituencies, optionally scoped to a county.
func (s *ReferenceService) Constituencies(ctx context.Context, countyID string) ([]models.Constituency, error) {
	constituencies, err := s.repo.ListConstituencies(ctx, countyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list constituencies")
	}
	if constituencies == nil {
		constituencies = []models.Constituency{}
	}
	return constituencies, nil
}

// Wards returns wards, optionally scoped to a constituency.
func (s *ReferenceService) Wards(ctx context.Context, constituencyID string) ([]models.Ward, error) {
	wards, err := s.repo.ListWards(ctx, constituencyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list wards")
	}
	if wards == nil {
		wards = []models.Ward{}
	}
	return wards, nil
}
