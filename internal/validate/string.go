// Package validate provides centralized input validation and sanitization
// utilities for the MiPlaza API.
package validate

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort = errors.New("string is too short")
	ErrStringTooLong  = errors.New("string is too long")
	ErrEmpty          = errors.New("string is empty")
)

// Field length limits for the public write surface.
const (
	MaxCommerceNameLength = 100
	MaxPostTitleLength    = 150
	MaxDescriptionLength  = 5000
	MaxCaptionLength      = 500
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength  int  // Minimum length (0 = no minimum)
	MaxLength  int  // Maximum length (0 = no maximum)
	AllowEmpty bool // Whether empty strings are allowed
	TrimSpace  bool // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if
// validation fails. Lengths count runes, not bytes.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)
	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}
	return s, nil
}

// SanitizeHTML escapes HTML special characters. Call on user-generated text
// that will be rendered in HTML contexts.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// CommerceName validates a storefront name: required, at most 100 characters.
func CommerceName(name string) (string, error) {
	return String(name, StringConstraints{
		MinLength: 1,
		MaxLength: MaxCommerceNameLength,
		TrimSpace: true,
	})
}

// PostTitle validates a post title: required, at most 150 characters.
func PostTitle(title string) (string, error) {
	return String(title, StringConstraints{
		MinLength: 1,
		MaxLength: MaxPostTitleLength,
		TrimSpace: true,
	})
}

// Description validates a description field: optional, at most 5000
// characters.
func Description(desc string) (string, error) {
	return String(desc, StringConstraints{
		MaxLength:  MaxDescriptionLength,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// Caption validates a story caption: optional, at most 500 characters.
func Caption(caption string) (string, error) {
	return String(caption, StringConstraints{
		MaxLength:  MaxCaptionLength,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}
