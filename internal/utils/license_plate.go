package utils

import (
	"regexp"
	"strings"
)

var licensePlatePattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// NormalizeLicensePlate trims surrounding whitespace and upper-cases the plate.
func NormalizeLicensePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// ValidLicensePlate reports whether an already normalized plate is 1-10 uppercase alphanumerics.
func ValidLicensePlate(plate string) bool {
	return licensePlatePattern.MatchString(plate)
}
