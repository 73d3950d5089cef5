package models

import (
	"time"

	"github.com/google/uuid"
)

// PackageType identifies which catalog a bookable package lives in
type PackageType string

const (
	PackageTypeTour     PackageType = "tour"
	PackageTypeActivity PackageType = "activity"
	PackageTypeRental   PackageType = "rental"
)

// Valid reports whether t is one of the known package types
func (t PackageType) Valid() bool {
	switch t {
	case PackageTypeTour, PackageTypeActivity, PackageTypeRental:
		return true
	}
	return false
}

// PackageTypes lists every bookable package type
func PackageTypes() []PackageType {
	return []PackageType{PackageTypeTour, PackageTypeActivity, PackageTypeRental}
}

// PackageRef is the tagged reference a booking holds to its bookable
type PackageRef struct {
	Type PackageType `json:"type" db:"package_type"`
	ID   uuid.UUID   `json:"id" db:"package_id"`
}

// Package is the common view of a tour, activity or rental package.
// UnitPrice is per person for tours and activities and per day for rentals.
type Package struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	Type          PackageType `json:"type" db:"package_type"`
	Name          string      `json:"name" db:"name"`
	Description   *string     `json:"description,omitempty" db:"description"`
	UnitPrice     int64       `json:"unit_price" db:"unit_price"`
	MinPersons    *int        `json:"min_persons,omitempty" db:"min_persons"`
	DurationDays  *int        `json:"duration_days,omitempty" db:"duration_days"`
	DurationHours *int        `json:"duration_hours,omitempty" db:"duration_hours"`
	ImageURL      *string     `json:"image_url,omitempty" db:"image_url"`

	// Rental-only vehicle details
	VehicleType *string `json:"vehicle_type,omitempty" db:"vehicle_type"`
	Brand       *string `json:"brand,omitempty" db:"brand"`
	Model       *string `json:"model,omitempty" db:"model"`
	PlateNumber *string `json:"plate_number,omitempty" db:"plate_number"`

	IsAvailable bool      `json:"is_available" db:"is_available"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Ref returns the tagged reference for this package
func (p *Package) Ref() PackageRef {
	return PackageRef{Type: p.Type, ID: p.ID}
}

// Availability is the result of an advisory availability check
type Availability struct {
	Available bool     `json:"available"`
	Reasons   []string `json:"reasons,omitempty"`
}
