package validation

import (
	"fmt"
	"math"
)

// CoordinateError describes a coordinate that cannot be used.
type CoordinateError struct {
	Field   string
	Value   float64
	Message string
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("%s: %s (value: %.6f)", e.Field, e.Message, e.Value)
}

// ValidateLatitude rejects NaN, infinities and values outside [-90, 90].
func ValidateLatitude(lat float64, fieldName string) error {
	return validateRange(lat, fieldName, 90)
}

// ValidateLongitude rejects NaN, infinities and values outside [-180, 180].
func ValidateLongitude(lon float64, fieldName string) error {
	return validateRange(lon, fieldName, 180)
}

func validateRange(v float64, fieldName string, limit float64) error {
	if math.IsNaN(v) {
		return &CoordinateError{Field: fieldName, Value: v, Message: "NaN is not allowed"}
	}
	if math.IsInf(v, 0) {
		return &CoordinateError{Field: fieldName, Value: v, Message: "infinite value is not allowed"}
	}
	if v < -limit || v > limit {
		return &CoordinateError{
			Field:   fieldName,
			Value:   v,
			Message: fmt.Sprintf("must be between %.0f and %.0f", -limit, limit),
		}
	}
	return nil
}

// ValidateCoordinatePair validates a (lat, lon) pair. The site renders
// missing coordinates as 0, so the null island pair is rejected as well.
func ValidateCoordinatePair(lat, lon float64) error {
	if err := ValidateLatitude(lat, "latitude"); err != nil {
		return err
	}
	if err := ValidateLongitude(lon, "longitude"); err != nil {
		return err
	}
	if IsZeroCoordinate(lat, lon) {
		return &CoordinateError{Field: "latitude,longitude", Value: 0, Message: "zero coordinate pair"}
	}
	return nil
}

// IsZeroCoordinate reports whether the pair is (0, 0).
func IsZeroCoordinate(lat, lon float64) bool {
	return lat == 0 && lon == 0
}
