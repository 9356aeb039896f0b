// Package domain holds identifier primitives shared across the registry.
// Values are validated once at the trust boundary by their Parse functions.
package domain

import (
	"encoding/hex"
	"strings"

	dErrors "profilereg/pkg/domain-errors"
)

// MaxPrincipalLength bounds principal identifiers.
const MaxPrincipalLength = 128

// Principal identifies an account that can own a profile or authorize a call.
type Principal string

// ParsePrincipal validates an account identifier: 1..128 printable ASCII
// bytes with no whitespace.
func ParsePrincipal(s string) (Principal, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	if len(s) > MaxPrincipalLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is too long")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return "", dErrors.New(dErrors.CodeInvalidInput, "principal contains invalid characters")
		}
	}
	return Principal(s), nil
}

func (p Principal) String() string { return string(p) }

// IsNil reports whether p is the zero principal.
func (p Principal) IsNil() bool { return p == "" }

// CodeHash identifies the executable backing the registry.
type CodeHash [32]byte

// ParseCodeHash decodes a 64 character hex string.
func ParseCodeHash(s string) (CodeHash, error) {
	var h CodeHash
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != hex.EncodedLen(len(h)) {
		return h, dErrors.New(dErrors.CodeInvalidInput, "code hash must be 32 bytes of hex")
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, dErrors.New(dErrors.CodeInvalidInput, "code hash must be 32 bytes of hex")
	}
	return h, nil
}

func (h CodeHash) String() string { return hex.EncodeToString(h[:]) }

// IsNil reports whether h is all zeros.
func (h CodeHash) IsNil() bool { return h == CodeHash{} }

func (h CodeHash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *CodeHash) UnmarshalText(b []byte) error {
	parsed, err := ParseCodeHash(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
