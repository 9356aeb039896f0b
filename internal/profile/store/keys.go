package store

import (
	"encoding/base64"

	"profilereg/internal/kv"
	"profilereg/internal/profile/models"
	"profilereg/internal/profile/username"
	id "profilereg/pkg/domain"
)

// Instance entries hold registry-wide configuration.
var (
	AdminKey           = kv.Key{Name: "admin", Durability: kv.Instance}
	ProfileCountKey    = kv.Key{Name: "profile_count", Durability: kv.Instance}
	RegistrationFeeKey = kv.Key{Name: "registration_fee", Durability: kv.Instance}
	CodeHashKey        = kv.Key{Name: "code_hash", Durability: kv.Instance}
)

// Variable key components are base64url encoded so ':' never appears
// inside a component.
func enc(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

// UsernameKey addresses the username -> owner index entry.
func UsernameKey(u username.Username) kv.Key {
	return kv.Key{Name: "username:" + enc(u.Bytes())}
}

// ProfileKey addresses the profile record owned by p.
func ProfileKey(p id.Principal) kv.Key {
	return kv.Key{Name: "profile:" + enc([]byte(p))}
}

// FieldKey addresses one field of p. Field names are [A-Za-z0-9_] only.
func FieldKey(p id.Principal, name models.FieldName) kv.Key {
	return kv.Key{Name: "field:" + enc([]byte(p)) + ":" + name.String()}
}

// ReservedKey addresses a reservation marker. Reservations are admin state
// and stay until unreserved.
func ReservedKey(u username.Username) kv.Key {
	return kv.Key{Name: "reserved:" + enc(u.Bytes()), Durability: kv.Instance}
}
