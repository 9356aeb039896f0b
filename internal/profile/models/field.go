package models

import (
	"encoding/json"
	"fmt"

	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
)

// MaxFieldNameLength matches the host symbol limit.
const MaxFieldNameLength = 32

// FieldName keys an extensible profile attribute.
type FieldName string

// Conventional field names. The registry does not enforce them.
const (
	FieldBio              FieldName = "bio"
	FieldAvatar           FieldName = "avatar"
	FieldHomepage         FieldName = "homepage"
	FieldLocation         FieldName = "location"
	FieldGithub           FieldName = "github"
	FieldTwitter          FieldName = "twitter"
	FieldEmail            FieldName = "email"
	FieldAvailableForHire FieldName = "hiring"
)

// StandardFields lists the conventional names in display order.
var StandardFields = []FieldName{
	FieldBio, FieldAvatar, FieldHomepage, FieldLocation,
	FieldGithub, FieldTwitter, FieldEmail, FieldAvailableForHire,
}

// ParseFieldName accepts 1..32 bytes of [A-Za-z0-9_].
func ParseFieldName(s string) (FieldName, error) {
	if s == "" || len(s) > MaxFieldNameLength {
		return "", dErrors.New(dErrors.CodeInvalidField, "field name must be 1 to 32 characters")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		ok := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
		if !ok {
			return "", dErrors.New(dErrors.CodeInvalidField, "field name may only contain letters, digits and underscores")
		}
	}
	return FieldName(s), nil
}

func (n FieldName) String() string { return string(n) }

// FieldKind tags the variant held by a FieldValue.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindInt     FieldKind = "int"
	KindBool    FieldKind = "bool"
	KindAddress FieldKind = "address"
	KindBytes   FieldKind = "bytes"
)

// ParseFieldKind validates a kind tag.
func ParseFieldKind(s string) (FieldKind, error) {
	switch k := FieldKind(s); k {
	case KindString, KindInt, KindBool, KindAddress, KindBytes:
		return k, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown field type %q", s))
	}
}

// FieldValue is a closed union of the five storable variants. The zero value
// holds no variant and is never stored.
type FieldValue struct {
	kind FieldKind
	str  string
	num  Int128
	flag bool
	addr id.Principal
	raw  []byte
}

func StringValue(s string) FieldValue { return FieldValue{kind: KindString, str: s} }
func IntValue(v Int128) FieldValue { return FieldValue{kind: KindInt, num: v} }
func BoolValue(b bool) FieldValue { return FieldValue{kind: KindBool, flag: b} }
func AddressValue(p id.Principal) FieldValue { return FieldValue{kind: KindAddress, addr: p} }
func BytesValue(b []byte) FieldValue {
	return FieldValue{kind: KindBytes, raw: append([]byte(nil), b...)}
}

// Kind returns the variant tag, empty for the zero value.
func (v FieldValue) Kind() FieldKind { return v.kind }

// IsZero reports whether v holds no variant.
func (v FieldValue) IsZero() bool { return v.kind == "" }

func (v FieldValue) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v FieldValue) AsInt() (Int128, bool) {
	if v.kind != KindInt {
		return Int128{}, false
	}
	return v.num, true
}

func (v FieldValue) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.flag, true
}

func (v FieldValue) AsAddress() (id.Principal, bool) {
	if v.kind != KindAddress {
		return "", false
	}
	return v.addr, true
}

func (v FieldValue) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return append([]byte(nil), v.raw...), true
}

// Equal compares variant and payload.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindInt:
		return v.num == o.num
	case KindBool:
		return v.flag == o.flag
	case KindAddress:
		return v.addr == o.addr
	case KindBytes:
		return string(v.raw) == string(o.raw)
	default:
		return true
	}
}

type fieldValueJSON struct {
	Type  FieldKind       `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.kind {
	case KindString:
		payload = v.str
	case KindInt:
		payload = v.num
	case KindBool:
		payload = v.flag
	case KindAddress:
		payload = v.addr
	case KindBytes:
		payload = v.raw
	default:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "field value has no variant")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fieldValueJSON{Type: v.kind, Value: raw})
}

func (v *FieldValue) UnmarshalJSON(b []byte) error {
	var wire fieldValueJSON
	if err := json.Unmarshal(b, &wire); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "field value must be an object with type and value")
	}
	parsed, err := DecodeFieldValue(wire.Type, wire.Value)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// DecodeFieldValue builds a value of the given kind from its JSON payload.
func DecodeFieldValue(kind FieldKind, raw json.RawMessage) (FieldValue, error) {
	if len(raw) == 0 {
		return FieldValue{}, dErrors.New(dErrors.CodeValidation, "field value is required")
	}
	invalid := func(err error) error {
		return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("value is not a valid %s", kind))
	}
	switch kind {
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return FieldValue{}, invalid(err)
		}
		return StringValue(s), nil
	case KindInt:
		var n Int128
		if err := json.Unmarshal(raw, &n); err != nil {
			return FieldValue{}, invalid(err)
		}
		return IntValue(n), nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return FieldValue{}, invalid(err)
		}
		return BoolValue(b), nil
	case KindAddress:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return FieldValue{}, invalid(err)
		}
		p, err := id.ParsePrincipal(s)
		if err != nil {
			return FieldValue{}, err
		}
		return AddressValue(p), nil
	case KindBytes:
		var b []byte
		if err := json.Unmarshal(raw, &b); err != nil {
			return FieldValue{}, invalid(err)
		}
		return BytesValue(b), nil
	default:
		return FieldValue{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown field type %q", kind))
	}
}
