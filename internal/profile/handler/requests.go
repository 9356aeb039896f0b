package handler

import (
	"encoding/json"
	"strings"

	"profilereg/internal/profile/models"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
)

// InitRequest is the body of POST /v1/init.
type InitRequest struct {
	Admin string `json:"admin"`

	parsedAdmin id.Principal
}

func (r *InitRequest) Validate() error {
	p, err := id.ParsePrincipal(strings.TrimSpace(r.Admin))
	if err != nil {
		return err
	}
	r.parsedAdmin = p
	return nil
}

// RegisterRequest is the body of POST /v1/profiles. The username is passed
// through untouched; the registry owns its syntax.
type RegisterRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

func (r *RegisterRequest) Validate() error {
	if r.Username == "" {
		return dErrors.New(dErrors.CodeValidation, "username is required")
	}
	return nil
}

// DisplayNameRequest is the body of PUT /v1/profile/display-name.
type DisplayNameRequest struct {
	DisplayName string `json:"display_name"`
}

func (r *DisplayNameRequest) Validate() error { return nil }

// FieldRequest is the body of PUT /v1/profile/fields/{name}.
type FieldRequest struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	parsed models.FieldValue
}

func (r *FieldRequest) Validate() error {
	kind, err := models.ParseFieldKind(strings.TrimSpace(r.Type))
	if err != nil {
		return err
	}
	v, err := models.DecodeFieldValue(kind, r.Value)
	if err != nil {
		return err
	}
	r.parsed = v
	return nil
}

// ParsedValue returns the decoded field value.
func (r *FieldRequest) ParsedValue() models.FieldValue { return r.parsed }

// TransferRequest is the body of POST /v1/profile/transfer.
type TransferRequest struct {
	NewOwner string `json:"new_owner"`

	parsedOwner id.Principal
}

func (r *TransferRequest) Validate() error {
	p, err := id.ParsePrincipal(strings.TrimSpace(r.NewOwner))
	if err != nil {
		return err
	}
	r.parsedOwner = p
	return nil
}

// FeeRequest is the body of PUT /v1/admin/registration-fee. The fee is a
// decimal string or number within the signed 128-bit range.
type FeeRequest struct {
	Fee *models.Int128 `json:"fee"`
}

func (r *FeeRequest) Validate() error {
	if r.Fee == nil {
		return dErrors.New(dErrors.CodeValidation, "fee is required")
	}
	return nil
}

// UpgradeRequest is the body of POST /v1/admin/upgrade.
type UpgradeRequest struct {
	CodeHash string `json:"code_hash"`

	parsedHash id.CodeHash
}

func (r *UpgradeRequest) Validate() error {
	h, err := id.ParseCodeHash(strings.TrimSpace(r.CodeHash))
	if err != nil {
		return err
	}
	r.parsedHash = h
	return nil
}
