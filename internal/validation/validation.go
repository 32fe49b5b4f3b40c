package validation

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// ErrCityEmpty is returned when city is empty or whitespace-only after trim.
var ErrCityEmpty = errors.New("city is required")

// ErrCityTooShort is returned when city length is below the minimum.
var ErrCityTooShort = errors.New("city too short")

// ErrCityTooLong is returned when city length exceeds the maximum.
var ErrCityTooLong = errors.New("city too long")

// ErrCityInvalidChars is returned when city contains disallowed characters.
var ErrCityInvalidChars = errors.New("city contains invalid characters")

// ErrDateMalformed is returned when a date is not YYYY-MM-DD.
var ErrDateMalformed = errors.New("date must be YYYY-MM-DD")

// ValidateCity trims the input, enforces length bounds (minLen, maxLen in
// runes), and restricts to allowed characters: letters (Unicode, so CJK city
// names pass), digits, space, comma, hyphen. Returns the trimmed string or an
// error suitable for 400 INVALID_CITY responses. Normalization (suffix strip,
// aliases) is left to the resolver.
func ValidateCity(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrCityEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrCityTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

// isAllowedCityRune returns true for letters (Unicode), digits, space, comma, hyphen.
func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-':
		return true
	}
	return false
}

// ValidateDate checks strict YYYY-MM-DD form and returns the trimmed value.
func ValidateDate(input string) (string, error) {
	s := strings.TrimSpace(input)
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", ErrDateMalformed
	}
	return s, nil
}
