package handler

import (
	"time"

	"profilereg/internal/profile/models"
	id "profilereg/pkg/domain"
)

type ProfileResponse struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Owner       string    `json:"owner"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func FromProfile(p *models.Profile) ProfileResponse {
	return ProfileResponse{
		Username:    p.Username.String(),
		DisplayName: p.DisplayName,
		Owner:       p.Owner.String(),
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type AvailabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

type AdminResponse struct {
	Admin id.Principal `json:"admin"`
}

type StatsResponse struct {
	ProfileCount    uint64        `json:"profile_count"`
	RegistrationFee models.Int128 `json:"registration_fee"`
}

type FeeResponse struct {
	RegistrationFee models.Int128 `json:"registration_fee"`
}

type CodeHashResponse struct {
	CodeHash id.CodeHash `json:"code_hash"`
}

type FieldResponse struct {
	Name  models.FieldName  `json:"name"`
	Value models.FieldValue `json:"field"`
}

type FieldsResponse struct {
	Owner  id.Principal                           `json:"owner"`
	Fields map[models.FieldName]models.FieldValue `json:"fields"`
}
