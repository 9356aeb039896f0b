package models

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"

	dErrors "profilereg/pkg/domain-errors"
)

var (
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	mask64    = new(big.Int).SetUint64(^uint64(0))
)

// Int128 is a signed 128-bit integer in two's complement form.
type Int128 struct {
	hi int64
	lo uint64
}

// Int128FromInt64 widens v.
func Int128FromInt64(v int64) Int128 {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Int128{hi: hi, lo: uint64(v)}
}

// Int128FromBig converts b, rejecting values outside the 128-bit range.
func Int128FromBig(b *big.Int) (Int128, error) {
	if b.Cmp(minInt128) < 0 || b.Cmp(maxInt128) > 0 {
		return Int128{}, dErrors.New(dErrors.CodeInvalidInput, "value out of 128-bit range")
	}
	// Two's complement: add 2^128 to negatives.
	u := new(big.Int).Set(b)
	if u.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	lo := new(big.Int).And(u, mask64).Uint64()
	hi := new(big.Int).Rsh(u, 64).Uint64()
	return Int128{hi: int64(hi), lo: lo}, nil
}

// ParseInt128 parses a base-10 integer.
func ParseInt128(s string) (Int128, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Int128{}, dErrors.New(dErrors.CodeInvalidInput, "value must be a base-10 integer")
	}
	return Int128FromBig(b)
}

// Big returns v as a big.Int.
func (v Int128) Big() *big.Int {
	b := new(big.Int).SetInt64(v.hi)
	b.Lsh(b, 64)
	return b.Add(b, new(big.Int).SetUint64(v.lo))
}

// Sign returns -1, 0 or +1.
func (v Int128) Sign() int {
	switch {
	case v.hi < 0:
		return -1
	case v.hi == 0 && v.lo == 0:
		return 0
	default:
		return 1
	}
}

func (v Int128) String() string {
	if v.hi == 0 {
		return strconv.FormatUint(v.lo, 10)
	}
	if v.hi == -1 && v.lo >= 1<<63 {
		return strconv.FormatInt(int64(v.lo), 10)
	}
	return v.Big().String()
}

func (v Int128) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Int128) UnmarshalText(b []byte) error {
	parsed, err := ParseInt128(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON encodes as a decimal string so no precision is lost in clients.
func (v Int128) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts a decimal string or a bare JSON number.
func (v *Int128) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return v.UnmarshalText([]byte(s))
	}
	return v.UnmarshalText(b)
}
