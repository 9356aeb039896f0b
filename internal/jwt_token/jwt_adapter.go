package jwttoken

import (
	id "profilereg/pkg/domain"
	authmw "profilereg/pkg/platform/middleware/auth"
)

// JWTServiceAdapter exposes JWTService as the auth middleware's validator.
type JWTServiceAdapter struct {
	service *JWTService
}

var _ authmw.PrincipalValidator = (*JWTServiceAdapter)(nil)

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateBearer(token string) (id.Principal, error) {
	return a.service.ValidatePrincipal(token, PurposeBearer)
}

func (a *JWTServiceAdapter) ValidateCosign(token string) (id.Principal, error) {
	return a.service.ValidatePrincipal(token, PurposeCosign)
}
