// Package username implements the registry's handle syntax.
//
// A username is 6 to 17 raw ASCII bytes: three leading lowercase letters,
// three trailing digits, and lowercase letters, digits or underscores in
// between. Nothing is normalized; uppercase input is rejected.
package username

import (
	dErrors "profilereg/pkg/domain-errors"
)

const (
	MinLength      = 6
	MaxLength      = 17
	LeadingLetters = 3
	TrailingDigits = 3
)

// Pattern documents the accepted language.
const Pattern = `^[a-z]{3}[a-z0-9_]{0,11}[0-9]{3}$`

// Username is a handle that passed Validate.
type Username string

func (u Username) String() string { return string(u) }

// Bytes returns the raw storage form.
func (u Username) Bytes() []byte { return []byte(u) }

// Validate reports whether b is a well-formed username. Checks run in a fixed
// order: length, leading letters, trailing digits, middle bytes.
func Validate(b []byte) bool {
	return violation(b) == ""
}

// Parse validates s and returns it as a Username, or a CodeInvalidUsername
// error naming the first rule that failed.
func Parse(s string) (Username, error) {
	if v := violation([]byte(s)); v != "" {
		return "", dErrors.New(dErrors.CodeInvalidUsername, v)
	}
	return Username(s), nil
}

// ValidIfLowercased reports whether b would validate after ASCII lowercasing.
// b is not modified and nothing is returned in lowercased form.
func ValidIfLowercased(b []byte) bool {
	n := len(b)
	if n < MinLength || n > MaxLength {
		return false
	}
	for i := 0; i < n; i++ {
		c := lower(b[i])
		switch {
		case i < LeadingLetters:
			if !isLowerLetter(c) {
				return false
			}
		case i >= n-TrailingDigits:
			if !isDigit(c) {
				return false
			}
		default:
			if !isMiddle(c) {
				return false
			}
		}
	}
	return true
}

func violation(b []byte) string {
	n := len(b)
	if n < MinLength || n > MaxLength {
		return "username must be 6 to 17 characters"
	}
	for i := 0; i < LeadingLetters; i++ {
		if !isLowerLetter(b[i]) {
			return "username must start with 3 lowercase letters"
		}
	}
	for i := n - TrailingDigits; i < n; i++ {
		if !isDigit(b[i]) {
			return "username must end with 3 digits"
		}
	}
	for i := LeadingLetters; i < n-TrailingDigits; i++ {
		if !isMiddle(b[i]) {
			return "username may only contain lowercase letters, digits and underscores"
		}
	}
	return ""
}

func isLowerLetter(c byte) bool { return c >= 'a' && c <= 'z' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isMiddle(c byte) bool { return isLowerLetter(c) || isDigit(c) || c == '_' }

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
