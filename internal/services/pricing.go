package services

import (
	"time"

	"github.com/tripnest/booking-backend/internal/models"
)

// DateLayout is the wire format for booking dates
const DateLayout = "2006-01-02"

// PriceQuote is the point-in-time price of a prospective booking
type PriceQuote struct {
	UnitPrice  int64      `json:"unit_price"`
	Units      int64      `json:"units"`
	TotalPrice int64      `json:"total_price"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

// QuotePrice prices a booking of pkg.
//
// Tours and activities bill unit price × quantity. Tours end after
// duration_days (inclusive); activities have no end date. Rentals bill per
// vehicle per day over the inclusive [start, end] range. For rentals the
// stored quantity counts vehicles, not days; Units holds vehicles × days.
func QuotePrice(pkg *models.Package, quantity int, start time.Time, end *time.Time) (*PriceQuote, error) {
	if quantity < 1 {
		return nil, fieldError("quantity", "must be at least 1")
	}

	quote := &PriceQuote{
		UnitPrice: pkg.UnitPrice,
		StartDate: start,
	}

	switch pkg.Type {
	case models.PackageTypeTour:
		days := 1
		if pkg.DurationDays != nil && *pkg.DurationDays > 1 {
			days = *pkg.DurationDays
		}
		endDate := start.AddDate(0, 0, days-1)
		quote.EndDate = &endDate
		quote.Units = int64(quantity)

	case models.PackageTypeActivity:
		quote.Units = int64(quantity)

	case models.PackageTypeRental:
		if end == nil {
			return nil, fieldError("end_date", "is required for rentals")
		}
		if end.Before(start) {
			return nil, fieldError("end_date", "must be on or after start_date")
		}
		endDate := *end
		quote.EndDate = &endDate
		quote.Units = int64(quantity) * RentalDays(start, endDate)

	default:
		return nil, fieldError("package_type", "must be one of tour, activity, rental")
	}

	quote.TotalPrice = quote.UnitPrice * quote.Units
	return quote, nil
}

// RentalDays counts the calendar days in [start, end], inclusive
func RentalDays(start, end time.Time) int64 {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int64(e.Sub(s).Hours()/24) + 1
}

// FinalPrice clamps the discounted price at zero
func FinalPrice(total, rewardTotal int64) int64 {
	if final := total - rewardTotal; final > 0 {
		return final
	}
	return 0
}

// ParseDate parses a YYYY-MM-DD date in the business timezone
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, loc)
}

// Today returns midnight of the current day in the business timezone
func Today(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
