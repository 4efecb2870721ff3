package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/uwazi254/uwazi-api/internal/models"
)

// ReferenceRepository reads the static administrative location hierarchy.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository creates a new instance of ReferenceRepository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// ListCounties returns all counties ordered by name.
func (r *ReferenceRepository) ListCounties(ctx context.Context) ([]models.County, error) {
	const query = `SELECT id, name, code, created_at FROM counties ORDER BY name`
	var counties []models.County
	if err := r.db.SelectContext(ctx, &counties, query); err != nil {
		return nil, fmt.Errorf("list counties: %w", err)
	}
	return counties, nil
}

// ListConstituencies returns constituencies, optionally scoped to a county.
func (r *ReferenceRepository) ListConstituencies(ctx context.Context, countyID string) ([]models.Constituency, error) {
	query := `SELECT id, name, county_id, created_at FROM constituencies`
	var args []interface{}
	if countyID != "" {
		query += ` WHERE county_id = $1`
		args = append(args, countyID)
	}
	query += ` ORDER BY name`

	var constituencies []models.Constituency
	if err := r.db.SelectContext(ctx, &constituencies, query, args...); err != nil {
		return nil, fmt.Errorf("list constituencies: %w", err)
	}
	return constituencies, nil
}

// ListWards returns wards, optionally scoped to a constituency.
func (r *ReferenceRepository) ListWards(ctx context.Context, constituencyID string) ([]models.Ward, error) {
	query := `SELECT id, name, constituency_id, created_at FROM wards`
	var args []interface{}
	if constituencyID != "" {
		query += ` WHERE constituency_id = $1`
		args = append(args, constituencyID)
	}
	query += ` ORDER BY name`

	var wards []models.Ward
	if err := r.db.SelectContext(ctx, &wards, query, args...); err != nil {
		return nil, fmt.Errorf("list wards: %w", err)
	}
	return wards, nil
}
