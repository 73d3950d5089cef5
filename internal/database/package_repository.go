package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/tripnest/booking-backend/internal/models"
)

// packageTable describes where a package type is stored and how its columns
// map onto models.Package
type packageTable struct {
	name    string
	columns string
}

// packageTables is the explicit lookup from package type to catalog table.
// Tours and activities are priced per person, rentals per day.
var packageTables = map[models.PackageType]packageTable{
	models.PackageTypeTour: {
		name: "tour_packages",
		columns: `id, name, description, price_per_person AS unit_price, min_persons,
			duration_days, image_url, is_available, created_at, updated_at`,
	},
	models.PackageTypeActivity: {
		name: "activity_packages",
		columns: `id, name, description, price_per_person AS unit_price, min_persons,
			duration_hours, image_url, is_available, created_at, updated_at`,
	},
	models.PackageTypeRental: {
		name: "rental_packages",
		columns: `id, name, description, price_per_day AS unit_price, vehicle_type, brand,
			model, plate_number, is_available, created_at, updated_at`,
	},
}

// PackageRepository resolves tagged package references against the catalogs
type PackageRepository struct {
	db sqlx.ExtContext
}

// NewPackageRepository creates a new package repository
func NewPackageRepository(db sqlx.ExtContext) *PackageRepository {
	return &PackageRepository{db: db}
}

func tableFor(t models.PackageType) (packageTable, error) {
	table, ok := packageTables[t]
	if !ok {
		return packageTable{}, fmt.Errorf("unknown package type: %s", t)
	}
	return table, nil
}

// Get retrieves a package by its tagged reference. Returns nil, nil when absent.
func (r *PackageRepository) Get(ctx context.Context, ref models.PackageRef) (*models.Package, error) {
	table, err := tableFor(ref.Type)
	if err != nil {
		return nil, err
	}

	var pkg models.Package
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, table.columns, table.name)

	if err := sqlx.GetContext(ctx, r.db, &pkg, query, ref.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s package: %w", ref.Type, err)
	}
	pkg.Type = ref.Type

	return &pkg, nil
}

// List returns packages of one type ordered by name
func (r *PackageRepository) List(ctx context.Context, t models.PackageType, onlyAvailable bool) ([]*models.Package, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, table.columns, table.name)
	if onlyAvailable {
		query += ` WHERE is_available = TRUE`
	}
	query += ` ORDER BY name`

	packages := []*models.Package{}
	if err := sqlx.SelectContext(ctx, r.db, &packages, query); err != nil {
		return nil, fmt.Errorf("failed to list %s packages: %w", t, err)
	}
	for _, p := range packages {
		p.Type = t
	}

	return packages, nil
}

// Exists reports whether the referenced package exists
func (r *PackageRepository) Exists(ctx context.Context, ref models.PackageRef) (bool, error) {
	table, err := tableFor(ref.Type)
	if err != nil {
		return false, err
	}

	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, table.name)
	if err := sqlx.GetContext(ctx, r.db, &exists, query, ref.ID); err != nil {
		return false, fmt.Errorf("failed to check package existence: %w", err)
	}
	return exists, nil
}
