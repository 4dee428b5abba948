// Package util provides utility functions for the GymBot application.
package util

import (
	"math/rand/v2"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand/v2; not suitable for cryptographic purposes.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateBookingID generates a unique booking ID with "b_" prefix.
func GenerateBookingID() string {
	return GenerateRandomID("b_", 32)
}

// GeneratePauseRequestID generates a unique pause request ID with "pr_" prefix.
func GeneratePauseRequestID() string {
	return GenerateRandomID("pr_", 32)
}
